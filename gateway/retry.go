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

package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/containershare/lifecycle/internal/request"
	"github.com/containershare/lifecycle/model"
)

// RetryPolicy bounds the attempts made by the retry decorator.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
}

type retryingGateway struct {
	next   Gateway
	policy RetryPolicy
}

// WithRetry wraps next so that each call is retried with exponential backoff
// up to policy.MaxAttempts times. Client errors (4XX other than 429) are not
// retried. A policy of one attempt or fewer returns next unchanged.
func WithRetry(next Gateway, policy RetryPolicy) Gateway {
	if policy.MaxAttempts <= 1 {
		return next
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = backoff.DefaultInitialInterval
	}
	return &retryingGateway{next: next, policy: policy}
}

func (g *retryingGateway) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.policy.InitialInterval
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.policy.MaxAttempts-1)), ctx)
}

func classify(err error) error {
	var statusErr *request.StatusError
	if errors.As(err, &statusErr) && !statusErr.Temporary() {
		return backoff.Permanent(err)
	}
	return err
}

func notify(op string) backoff.Notify {
	return func(err error, next time.Duration) {
		logrus.WithFields(logrus.Fields{
			"operation": op,
			"retry_in":  next.String(),
		}).WithError(err).Warn("Records store call failed, retrying")
	}
}

func (g *retryingGateway) FetchCandidates(ctx context.Context, filter CandidateFilter) ([]model.Announcement, error) {
	var announcements []model.Announcement
	operation := func() error {
		result, err := g.next.FetchCandidates(ctx, filter)
		if err != nil {
			return classify(err)
		}
		announcements = result
		return nil
	}
	if err := backoff.RetryNotify(operation, g.newBackOff(ctx), notify("fetch_candidates")); err != nil {
		return nil, err
	}
	return announcements, nil
}

func (g *retryingGateway) MarkExpired(ctx context.Context, id string, reason model.ExpirationReason, at time.Time) error {
	operation := func() error {
		return classify(g.next.MarkExpired(ctx, id, reason, at))
	}
	return backoff.RetryNotify(operation, g.newBackOff(ctx), notify("mark_expired"))
}
