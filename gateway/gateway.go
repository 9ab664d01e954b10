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
	"fmt"
	"time"

	"github.com/containershare/lifecycle/model"
)

var (
	// ErrGatewayUnavailable means the candidate list could not be read in full.
	ErrGatewayUnavailable = errors.New("records store unavailable")
	// ErrRecordUpdateFailed means a single record could not be marked expired.
	ErrRecordUpdateFailed = errors.New("record update failed")
)

// Gateway is the narrow view of the remote records store the expiration engine needs.
type Gateway interface {
	// FetchCandidates returns every published announcement matching filter,
	// draining pagination. It never returns a partial list.
	FetchCandidates(ctx context.Context, filter CandidateFilter) ([]model.Announcement, error)
	// MarkExpired sets status to expired and expired_at to at on one record.
	MarkExpired(ctx context.Context, id string, reason model.ExpirationReason, at time.Time) error
}

// CandidateFilter narrows the published set returned by FetchCandidates.
type CandidateFilter struct {
	RequireExpiresAt bool
}

// UnavailableError wraps the cause of a failed candidate fetch.
type UnavailableError struct {
	Op    string
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrGatewayUnavailable, e.Op, e.Cause)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrGatewayUnavailable, e.Cause}
}

// RecordUpdateError wraps the cause of a failed MarkExpired call.
type RecordUpdateError struct {
	ID    string
	Cause error
}

func (e *RecordUpdateError) Error() string {
	return fmt.Sprintf("%s: record %s: %v", ErrRecordUpdateFailed, e.ID, e.Cause)
}

func (e *RecordUpdateError) Unwrap() []error {
	return []error{ErrRecordUpdateFailed, e.Cause}
}
