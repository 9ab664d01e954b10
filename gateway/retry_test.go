package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/containershare/lifecycle/gateway"
	"github.com/containershare/lifecycle/gateway/mocks"
	"github.com/containershare/lifecycle/internal/request"
	"github.com/containershare/lifecycle/model"
)

var fastRetry = gateway.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond}

func TestWithRetry_SingleAttemptReturnsNext(t *testing.T) {
	next := &mocks.MockGateway{}
	assert.Same(t, next, gateway.WithRetry(next, gateway.RetryPolicy{MaxAttempts: 1}))
}

func TestWithRetry_FetchRecoversFromTransientFailure(t *testing.T) {
	next := &mocks.MockGateway{}
	transient := &gateway.UnavailableError{Op: "fetch candidates", Cause: &request.StatusError{Code: 503}}
	candidates := []model.Announcement{{ID: "rec1"}}

	next.On("FetchCandidates", mock.Anything, gateway.CandidateFilter{}).Return(nil, transient).Once()
	next.On("FetchCandidates", mock.Anything, gateway.CandidateFilter{}).Return(candidates, nil).Once()

	got, err := gateway.WithRetry(next, fastRetry).FetchCandidates(context.Background(), gateway.CandidateFilter{})
	assert.NoError(t, err)
	assert.Equal(t, candidates, got)
	next.AssertNumberOfCalls(t, "FetchCandidates", 2)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	next := &mocks.MockGateway{}
	failure := &gateway.UnavailableError{Op: "fetch candidates", Cause: errors.New("connection reset")}
	next.On("FetchCandidates", mock.Anything, mock.Anything).Return(nil, failure)

	got, err := gateway.WithRetry(next, fastRetry).FetchCandidates(context.Background(), gateway.CandidateFilter{})
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, gateway.ErrGatewayUnavailable))
	next.AssertNumberOfCalls(t, "FetchCandidates", 3)
}

func TestWithRetry_ClientErrorIsNotRetried(t *testing.T) {
	next := &mocks.MockGateway{}
	rejected := &gateway.RecordUpdateError{ID: "rec1", Cause: &request.StatusError{Code: 422}}
	next.On("MarkExpired", mock.Anything, "rec1", model.ReasonDeparturePassed, mock.Anything).Return(rejected)

	err := gateway.WithRetry(next, fastRetry).MarkExpired(context.Background(), "rec1", model.ReasonDeparturePassed, time.Now())
	assert.True(t, errors.Is(err, gateway.ErrRecordUpdateFailed))
	next.AssertNumberOfCalls(t, "MarkExpired", 1)
}

func TestWithRetry_MarkExpiredRetriesRateLimit(t *testing.T) {
	next := &mocks.MockGateway{}
	limited := &gateway.RecordUpdateError{ID: "rec1", Cause: &request.StatusError{Code: 429}}
	next.On("MarkExpired", mock.Anything, "rec1", model.ReasonSearchTimedOut, mock.Anything).Return(limited).Once()
	next.On("MarkExpired", mock.Anything, "rec1", model.ReasonSearchTimedOut, mock.Anything).Return(nil).Once()

	err := gateway.WithRetry(next, fastRetry).MarkExpired(context.Background(), "rec1", model.ReasonSearchTimedOut, time.Now())
	assert.NoError(t, err)
	next.AssertNumberOfCalls(t, "MarkExpired", 2)
}
