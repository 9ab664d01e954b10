package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/containershare/lifecycle/config"
	"github.com/containershare/lifecycle/model"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func at(t time.Time) *time.Time {
	return &t
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	evaluator := NewEvaluator(time.UTC, 60)

	tests := []struct {
		name         string
		announcement model.Announcement
		wantExpire   bool
		wantReason   model.ExpirationReason
	}{
		{
			name:         "offer shipped yesterday",
			announcement: model.Announcement{ID: "rec1", RequestType: model.RequestTypeOffer, ShippingDate: date(2025, 6, 9)},
			wantExpire:   true,
			wantReason:   model.ReasonDeparturePassed,
		},
		{
			name:         "offer shipping today",
			announcement: model.Announcement{ID: "rec2", RequestType: model.RequestTypeOffer, ShippingDate: date(2025, 6, 10)},
			wantReason:   model.ReasonNotExpired,
		},
		{
			name:         "offer shipping next month",
			announcement: model.Announcement{ID: "rec3", RequestType: model.RequestTypeOffer, ShippingDate: date(2025, 7, 1)},
			wantReason:   model.ReasonNotExpired,
		},
		{
			name:         "offer without shipping date",
			announcement: model.Announcement{ID: "rec4", RequestType: model.RequestTypeOffer},
			wantReason:   model.ReasonNotExpired,
		},
		{
			name:         "search created sixty days ago",
			announcement: model.Announcement{ID: "rec5", RequestType: model.RequestTypeSearch, CreatedAt: date(2025, 4, 11)},
			wantExpire:   true,
			wantReason:   model.ReasonSearchTimedOut,
		},
		{
			name:         "search created fifty nine days ago",
			announcement: model.Announcement{ID: "rec6", RequestType: model.RequestTypeSearch, CreatedAt: date(2025, 4, 12)},
			wantReason:   model.ReasonNotExpired,
		},
		{
			name:         "search without created date",
			announcement: model.Announcement{ID: "rec7", RequestType: model.RequestTypeSearch},
			wantReason:   model.ReasonNotExpired,
		},
		{
			name: "explicit deadline takes precedence over offer rule",
			announcement: model.Announcement{
				ID: "rec8", RequestType: model.RequestTypeOffer,
				ShippingDate: date(2025, 6, 1), ExpiresAt: date(2025, 6, 5),
			},
			wantExpire: true,
			wantReason: model.ReasonExplicitDeadline,
		},
		{
			name: "explicit deadline on a fresh search",
			announcement: model.Announcement{
				ID: "rec9", RequestType: model.RequestTypeSearch,
				CreatedAt: date(2025, 6, 1), ExpiresAt: date(2025, 6, 9),
			},
			wantExpire: true,
			wantReason: model.ReasonExplicitDeadline,
		},
		{
			name:         "explicit deadline today",
			announcement: model.Announcement{ID: "rec10", ExpiresAt: date(2025, 6, 10)},
			wantExpire:   true,
			wantReason:   model.ReasonExplicitDeadline,
		},
		{
			name: "future deadline falls through to type rule",
			announcement: model.Announcement{
				ID: "rec11", RequestType: model.RequestTypeOffer,
				ShippingDate: date(2025, 6, 1), ExpiresAt: date(2025, 12, 31),
			},
			wantExpire: true,
			wantReason: model.ReasonDeparturePassed,
		},
		{
			name:         "unknown request type",
			announcement: model.Announcement{ID: "rec12", RequestType: "swap", ShippingDate: date(2024, 1, 1), CreatedAt: date(2024, 1, 1)},
			wantReason:   model.ReasonNotExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := evaluator.Evaluate(tt.announcement, now)
			assert.Equal(t, tt.wantExpire, decision.ShouldExpire)
			assert.Equal(t, tt.wantReason, decision.Reason)
		})
	}
}

func TestEvaluate_AcrossMonths(t *testing.T) {
	evaluator := NewEvaluator(time.UTC, 60)

	tests := []struct {
		name         string
		announcement model.Announcement
		now          time.Time
		wantExpire   bool
		wantReason   model.ExpirationReason
		wantCutoff   string
	}{
		{
			name:         "offer two days after departure",
			announcement: model.Announcement{ID: "recA", RequestType: model.RequestTypeOffer, ShippingDate: date(2025, 1, 10)},
			now:          time.Date(2025, 1, 12, 8, 0, 0, 0, time.UTC),
			wantExpire:   true,
			wantReason:   model.ReasonDeparturePassed,
			wantCutoff:   "2025-01-11",
		},
		{
			name:         "search on day fifty nine across february",
			announcement: model.Announcement{ID: "recB", RequestType: model.RequestTypeSearch, CreatedAt: date(2025, 1, 1)},
			now:          time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
			wantReason:   model.ReasonNotExpired,
		},
		{
			name:         "search past its ttl across february",
			announcement: model.Announcement{ID: "recB", RequestType: model.RequestTypeSearch, CreatedAt: date(2025, 1, 1)},
			now:          time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC),
			wantExpire:   true,
			wantReason:   model.ReasonSearchTimedOut,
			wantCutoff:   "2025-03-02",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := evaluator.Evaluate(tt.announcement, tt.now)
			assert.Equal(t, tt.wantExpire, decision.ShouldExpire)
			assert.Equal(t, tt.wantReason, decision.Reason)
			if tt.wantCutoff != "" {
				assert.Equal(t, tt.wantCutoff, decision.Evidence["cutoff"])
			}
		})
	}
}

func TestEvaluate_SameDayDeadlineFiresAtStartOfDay(t *testing.T) {
	evaluator := NewEvaluator(time.UTC, 60)
	announcement := model.Announcement{
		ID:        "rec1",
		ExpiresAt: at(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)),
	}

	decision := evaluator.Evaluate(announcement, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	assert.True(t, decision.ShouldExpire)
	assert.Equal(t, model.ReasonExplicitDeadline, decision.Reason)

	assert.False(t, evaluator.Evaluate(announcement, time.Date(2025, 6, 9, 23, 59, 0, 0, time.UTC)).ShouldExpire)
}

func TestEvaluate_DepartureBoundary(t *testing.T) {
	evaluator := NewEvaluator(time.UTC, 60)
	offer := model.Announcement{ID: "rec1", RequestType: model.RequestTypeOffer, ShippingDate: date(2025, 6, 9)}

	justBefore := time.Date(2025, 6, 9, 23, 59, 59, 0, time.UTC)
	assert.False(t, evaluator.Evaluate(offer, justBefore).ShouldExpire)

	cutoff := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	decision := evaluator.Evaluate(offer, cutoff)
	assert.True(t, decision.ShouldExpire)
	assert.Equal(t, "2025-06-09", decision.Evidence["shipping_date"])
	assert.Equal(t, "2025-06-10", decision.Evidence["cutoff"])
}

func TestEvaluate_SearchBoundaryHonoursConfiguredTTL(t *testing.T) {
	evaluator := NewEvaluator(time.UTC, 30)
	search := model.Announcement{ID: "rec1", RequestType: model.RequestTypeSearch, CreatedAt: date(2025, 5, 1)}

	assert.False(t, evaluator.Evaluate(search, time.Date(2025, 5, 30, 23, 0, 0, 0, time.UTC)).ShouldExpire)

	decision := evaluator.Evaluate(search, time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC))
	assert.True(t, decision.ShouldExpire)
	assert.Equal(t, "2025-05-31", decision.Evidence["cutoff"])
}

func TestEvaluate_ComparesCalendarDaysInLocation(t *testing.T) {
	paris := time.FixedZone("CEST", 2*60*60)
	offer := model.Announcement{ID: "rec1", RequestType: model.RequestTypeOffer, ShippingDate: date(2025, 6, 9)}

	// 22:30 UTC on the 9th is already the 10th two hours east.
	now := time.Date(2025, 6, 9, 22, 30, 0, 0, time.UTC)

	assert.False(t, NewEvaluator(time.UTC, 60).Evaluate(offer, now).ShouldExpire)
	assert.True(t, NewEvaluator(paris, 60).Evaluate(offer, now).ShouldExpire)
}

func TestEvaluate_TimestampedCreatedAtUsesLocalDay(t *testing.T) {
	paris := time.FixedZone("CEST", 2*60*60)
	search := model.Announcement{
		ID:          "rec1",
		RequestType: model.RequestTypeSearch,
		CreatedAt:   at(time.Date(2025, 4, 10, 23, 30, 0, 0, time.UTC)),
	}
	// Created on 04-10 in UTC but 04-11 two hours east.
	now := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)

	assert.True(t, NewEvaluator(time.UTC, 60).Evaluate(search, now).ShouldExpire)
	assert.False(t, NewEvaluator(paris, 60).Evaluate(search, now).ShouldExpire)
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	evaluator := NewEvaluator(time.UTC, 60)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	announcement := model.Announcement{
		ID: "rec1", RequestType: model.RequestTypeSearch,
		CreatedAt: date(2025, 1, 1), ExpiresAt: date(2025, 8, 1),
	}

	first := evaluator.Evaluate(announcement, now)
	second := evaluator.Evaluate(announcement, now)
	assert.Equal(t, first, second)
}

func TestNewEvaluator_Defaults(t *testing.T) {
	evaluator := NewEvaluator(nil, 0)
	assert.Equal(t, time.UTC, evaluator.location)
	assert.Equal(t, config.DEFAULT_SEARCH_TTL_DAYS, evaluator.searchTTLDays)
}
