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
package mocks

import (
	"context"
	"time"

	"github.com/containershare/lifecycle/gateway"
	"github.com/containershare/lifecycle/model"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a mock implementation of the gateway.Gateway interface
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FetchCandidates(ctx context.Context, filter gateway.CandidateFilter) ([]model.Announcement, error) {
	args := m.Called(ctx, filter)
	announcements, _ := args.Get(0).([]model.Announcement)
	return announcements, args.Error(1)
}

func (m *MockGateway) MarkExpired(ctx context.Context, id string, reason model.ExpirationReason, at time.Time) error {
	args := m.Called(ctx, id, reason, at)
	return args.Error(0)
}
