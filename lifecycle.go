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
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/containershare/lifecycle/config"
	"github.com/containershare/lifecycle/gateway"
	redlock "github.com/containershare/lifecycle/internal/lock"
)

const BatchLockKey = "lifecycle:expiration:lock"

// ErrBatchInProgress is returned when another live run holds the batch lock.
var ErrBatchInProgress = errors.New("expiration batch already in progress")

var tracer = otel.Tracer("lifecycle.expiration")

// BatchLocker guards a live run against overlapping activations.
type BatchLocker interface {
	Lock(ctx context.Context, ttl time.Duration) error
	Unlock(ctx context.Context) error
}

// Engine runs the announcement expiration batch and its dry-run variant.
// It keeps no state between runs.
type Engine struct {
	gateway          gateway.Gateway
	evaluator        *Evaluator
	paceEvery        int
	pacePause        time.Duration
	requireExpiresAt bool
	lockTTL          time.Duration
	newLocker        func(owner string) BatchLocker
	onFailure        func(error)
	clock            func() time.Time
	sleep            func(ctx context.Context, d time.Duration) error
}

// Option customises an Engine built by NewEngine.
type Option func(*Engine)

// WithPacing pauses for pause after every `every` processed records.
func WithPacing(every int, pause time.Duration) Option {
	return func(e *Engine) {
		e.paceEvery = every
		e.pacePause = pause
	}
}

// WithRequireExpiresAt restricts live runs to candidates carrying an explicit expires_at.
func WithRequireExpiresAt(require bool) Option {
	return func(e *Engine) {
		e.requireExpiresAt = require
	}
}

// WithBatchLock serialises live runs through a Redis lock held for at most ttl.
func WithBatchLock(client redis.UniversalClient, ttl time.Duration) Option {
	return func(e *Engine) {
		if client == nil {
			return
		}
		if ttl > 0 {
			e.lockTTL = ttl
		}
		e.newLocker = func(owner string) BatchLocker {
			return redlock.NewLocker(client, BatchLockKey, owner)
		}
	}
}

// WithLocker installs a custom lock factory.
func WithLocker(ttl time.Duration, newLocker func(owner string) BatchLocker) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
		e.newLocker = newLocker
	}
}

// WithFailureHook registers fn to be called with the error of every failed live run.
func WithFailureHook(fn func(error)) Option {
	return func(e *Engine) {
		e.onFailure = fn
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithSleeper replaces the pacing pause, mainly for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// NewEngine initializes an Engine over gw. The evaluator and the defaults for
// pacing and candidate filtering come from cfg; opts are applied last.
//
// Parameters:
// - gw gateway.Gateway: The records store gateway.
// - cfg *config.Configuration: The loaded configuration. nil uses built-in defaults.
// - opts ...Option: Overrides.
//
// Returns:
// - *Engine: The ready engine.
func NewEngine(gw gateway.Gateway, cfg *config.Configuration, opts ...Option) *Engine {
	e := &Engine{
		gateway:   gw,
		evaluator: NewEvaluator(time.UTC, config.DEFAULT_SEARCH_TTL_DAYS),
		paceEvery: config.DEFAULT_PACE_EVERY,
		pacePause: config.DEFAULT_PACE_PAUSE_MS * time.Millisecond,
		lockTTL:   config.DEFAULT_RUN_TIMEOUT * time.Second,
		clock:     time.Now,
		sleep:     sleepContext,
	}

	if cfg != nil {
		exp := cfg.Expiration
		e.evaluator = NewEvaluator(exp.Location(), exp.SearchTTLDays)
		if exp.PaceEvery > 0 {
			e.paceEvery = exp.PaceEvery
		}
		e.pacePause = exp.PacePause()
		e.requireExpiresAt = exp.RequireExpiresAt
		if exp.RunTimeoutSec > 0 {
			e.lockTTL = exp.RunTimeout()
		}
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluator returns the evaluator shared by live and dry runs.
func (e *Engine) Evaluator() *Evaluator {
	return e.evaluator
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
