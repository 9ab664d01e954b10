/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package lifecycle

import (
	"time"

	"github.com/containershare/lifecycle/config"
	"github.com/containershare/lifecycle/model"
)

const dateLayout = "2006-01-02"

// Evaluator decides whether an announcement has reached the end of its life.
// It holds no mutable state, so the live run and the dry run can share one.
type Evaluator struct {
	location      *time.Location
	searchTTLDays int
}

// NewEvaluator returns an Evaluator comparing calendar days in loc.
// A nil loc means UTC and a non-positive TTL means config.DEFAULT_SEARCH_TTL_DAYS.
func NewEvaluator(loc *time.Location, searchTTLDays int) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	if searchTTLDays <= 0 {
		searchTTLDays = config.DEFAULT_SEARCH_TTL_DAYS
	}
	return &Evaluator{location: loc, searchTTLDays: searchTTLDays}
}

// day truncates t to midnight of its calendar day in the evaluator's location.
func (e *Evaluator) day(t time.Time) time.Time {
	y, m, d := t.In(e.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.location)
}

// recordDay is day for stored dates. A value at exactly midnight is a
// date-only field and keeps its calendar date instead of being shifted into
// the evaluator's location.
func (e *Evaluator) recordDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, e.location)
	}
	return e.day(t)
}

// Evaluate applies the expiration rules to a, in order:
//  1. an explicit expires_at on or before today, whatever the request type;
//  2. for offers, the day after shipping_date;
//  3. for searches, created_at plus the search TTL.
//
// Missing dates never match. The result depends only on a and now.
// Comparisons are by calendar day, so an expires_at later today already
// fires at the start of that day.
func (e *Evaluator) Evaluate(a model.Announcement, now time.Time) model.Decision {
	today := e.day(now)

	if a.ExpiresAt != nil && !today.Before(e.recordDay(*a.ExpiresAt)) {
		return model.Decision{
			ShouldExpire: true,
			Reason:       model.ReasonExplicitDeadline,
			Evidence: map[string]string{
				"expires_at": e.recordDay(*a.ExpiresAt).Format(dateLayout),
			},
		}
	}

	switch a.RequestType {
	case model.RequestTypeOffer:
		if a.ShippingDate == nil {
			break
		}
		cutoff := e.recordDay(*a.ShippingDate).AddDate(0, 0, 1)
		if !today.Before(cutoff) {
			return model.Decision{
				ShouldExpire: true,
				Reason:       model.ReasonDeparturePassed,
				Evidence: map[string]string{
					"shipping_date": e.recordDay(*a.ShippingDate).Format(dateLayout),
					"cutoff":        cutoff.Format(dateLayout),
				},
			}
		}
	case model.RequestTypeSearch:
		if a.CreatedAt == nil {
			break
		}
		cutoff := e.recordDay(*a.CreatedAt).AddDate(0, 0, e.searchTTLDays)
		if !today.Before(cutoff) {
			return model.Decision{
				ShouldExpire: true,
				Reason:       model.ReasonSearchTimedOut,
				Evidence: map[string]string{
					"created_at": e.recordDay(*a.CreatedAt).Format(dateLayout),
					"cutoff":     cutoff.Format(dateLayout),
				},
			}
		}
	}

	return model.Decision{ShouldExpire: false, Reason: model.ReasonNotExpired}
}
