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

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/containershare/lifecycle"
	"github.com/containershare/lifecycle/config"
	"github.com/containershare/lifecycle/model"
)

const TypeExpireAnnouncements = "announcements:expire"

type ExpirePayload struct {
	DryRun bool `json:"dry_run"`
}

// Runner is the part of lifecycle.Engine the task handler needs.
type Runner interface {
	RunExpiration(ctx context.Context) (model.BatchResult, error)
	SimulateExpiration(ctx context.Context) (model.DryRunReport, error)
}

// NewExpireTask builds an expiration task for queue. A positive timeout bounds
// the task so it cannot outlive the batch lock.
func NewExpireTask(queue string, dryRun bool, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ExpirePayload{DryRun: dryRun})
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(queue), asynq.MaxRetry(2)}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TypeExpireAnnouncements, payload, opts...), nil
}

// RegisterSchedule adds the live expiration run to scheduler on cfg.Cron,
// bounded by runTimeout.
//
// Returns:
// - string: The scheduler entry ID.
// - error: If the task cannot be built or the cron spec is invalid.
func RegisterSchedule(scheduler *asynq.Scheduler, cfg config.ScheduleConfig, runTimeout time.Duration) (string, error) {
	task, err := NewExpireTask(cfg.Queue, false, runTimeout)
	if err != nil {
		return "", err
	}
	return scheduler.Register(cfg.Cron, task)
}

type Handler struct {
	runner     Runner
	runTimeout time.Duration
}

// NewHandler returns a Handler whose runs are cut off after runTimeout.
// Zero leaves the deadline to the queue.
func NewHandler(runner Runner, runTimeout time.Duration) *Handler {
	return &Handler{runner: runner, runTimeout: runTimeout}
}

// Register binds the handler to the expiration task type on mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeExpireAnnouncements, h.ProcessTask)
}

// ProcessTask runs the expiration batch for t. Malformed payloads and lock
// contention are not retried.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("lifecycle.tasks").Start(ctx, "Process Expiration Task")
	defer span.End()

	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	var payload ExpirePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logrus.Error(err)
			return fmt.Errorf("invalid %s payload: %v: %w", TypeExpireAnnouncements, err, asynq.SkipRetry)
		}
	}

	if payload.DryRun {
		report, err := h.runner.SimulateExpiration(ctx)
		if err != nil {
			return err
		}
		return writeResult(t, report)
	}

	result, err := h.runner.RunExpiration(ctx)
	if err != nil {
		if errors.Is(err, lifecycle.ErrBatchInProgress) {
			logrus.WithError(err).Info("Skipping scheduled expiration run")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	logrus.Printf(" [*] Expiration run %s processed %d, expired %d", result.RunID, result.Processed, result.Expired)
	return writeResult(t, result)
}

// writeResult stores v on the task so it shows up in monitoring. Tasks built
// outside a server have no writer.
func writeResult(t *asynq.Task, v interface{}) error {
	w := t.ResultWriter()
	if w == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
