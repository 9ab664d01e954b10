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
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/containershare/lifecycle/gateway"
	redlock "github.com/containershare/lifecycle/internal/lock"
	"github.com/containershare/lifecycle/model"
)

// RunExpiration performs one live expiration batch.
//
// Candidates are processed sequentially in the order the gateway returns them.
// A failed update is counted in Errors and never stops the batch; only a failed
// candidate fetch, lock contention or ctx expiry end the run early, in which
// case the returned result has State failed alongside a non-nil error.
//
// Parameters:
// - ctx context.Context: Bounds the whole run. Records already expired stay expired if it ends.
//
// Returns:
// - model.BatchResult: The counters of the run.
// - error: ErrBatchInProgress, an error wrapping gateway.ErrGatewayUnavailable, or ctx.Err().
func (e *Engine) RunExpiration(ctx context.Context) (model.BatchResult, error) {
	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "RunExpiration")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID))

	result := model.BatchResult{RunID: runID, State: model.BatchIdle, StartedAt: e.clock()}
	logger := logrus.WithField("run_id", runID)

	if e.newLocker != nil {
		locker := e.newLocker(runID)
		if err := locker.Lock(ctx, e.lockTTL); err != nil {
			if errors.Is(err, redlock.ErrLockHeld) {
				return e.fail(span, result, fmt.Errorf("%w: %v", ErrBatchInProgress, err))
			}
			logger.WithError(err).Warn("Batch lock unavailable, running without it")
		} else {
			defer func() {
				if err := locker.Unlock(context.Background()); err != nil {
					logger.WithError(err).Warn("Failed to release batch lock")
				}
			}()
		}
	}

	result.State = model.BatchRunning
	logger.Info("Starting announcement expiration run")

	candidates, err := e.gateway.FetchCandidates(ctx, gateway.CandidateFilter{RequireExpiresAt: e.requireExpiresAt})
	if err != nil {
		return e.fail(span, result, err)
	}
	span.SetAttributes(attribute.Int("candidates.count", len(candidates)))

	for i, announcement := range candidates {
		if err := ctx.Err(); err != nil {
			return e.fail(span, result, fmt.Errorf("expiration run stopped after %d of %d candidates: %w", result.Processed, len(candidates), err))
		}

		result.Processed++
		e.processCandidate(ctx, logger, announcement, &result)

		if e.paceEvery > 0 && result.Processed%e.paceEvery == 0 && i < len(candidates)-1 {
			if err := e.sleep(ctx, e.pacePause); err != nil {
				return e.fail(span, result, fmt.Errorf("expiration run stopped after %d of %d candidates: %w", result.Processed, len(candidates), err))
			}
		}
	}

	result.State = model.BatchCompleted
	result.FinishedAt = e.clock()
	span.SetAttributes(
		attribute.Int("result.processed", result.Processed),
		attribute.Int("result.expired", result.Expired),
		attribute.Int("result.errors", result.Errors),
	)

	logger.WithFields(logrus.Fields{
		"processed": result.Processed,
		"expired":   result.Expired,
		"errors":    result.Errors,
		"duration":  result.Duration().String(),
	}).Info("Announcement expiration run completed")

	return result, nil
}

// processCandidate evaluates one announcement and expires it when due. Every
// outcome is absorbed into result.
func (e *Engine) processCandidate(ctx context.Context, logger *logrus.Entry, a model.Announcement, result *model.BatchResult) {
	entry := logger.WithFields(logrus.Fields{
		"announcement_id":    a.ID,
		"request_type":       a.RequestType,
		"contact_first_name": a.ContactFirstName,
		"departure_country":  a.DepartureCountry,
		"arrival_country":    a.ArrivalCountry,
	})

	if len(a.Issues) > 0 {
		entry.WithField("issues", a.Issues).Warn("Announcement has unreadable fields")
	}

	if err := a.Validate(); err != nil {
		result.Errors++
		entry.WithError(err).Error("Skipping malformed announcement")
		return
	}

	now := e.clock()
	decision := e.evaluator.Evaluate(a, now)
	if !decision.ShouldExpire {
		return
	}

	entry = entry.WithField("reason", decision.Reason)
	if err := e.gateway.MarkExpired(ctx, a.ID, decision.Reason, now); err != nil {
		result.Errors++
		entry.WithError(err).Error("Failed to expire announcement")
		return
	}

	result.Expired++
	trace.SpanFromContext(ctx).AddEvent("Announcement expired", trace.WithAttributes(
		attribute.String("announcement.id", a.ID),
		attribute.String("announcement.reason", string(decision.Reason)),
	))
	entry.WithField("evidence", decision.Evidence).Info("Announcement expired")
}

func (e *Engine) fail(span trace.Span, result model.BatchResult, err error) (model.BatchResult, error) {
	result.State = model.BatchFailed
	result.FinishedAt = e.clock()

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	logrus.WithFields(logrus.Fields{
		"run_id":    result.RunID,
		"processed": result.Processed,
		"expired":   result.Expired,
		"errors":    result.Errors,
		"duration":  result.Duration().String(),
	}).WithError(err).Error("Announcement expiration run failed")

	if e.onFailure != nil && !errors.Is(err, ErrBatchInProgress) {
		e.onFailure(err)
	}
	return result, err
}
