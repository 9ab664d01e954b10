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

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/containershare/lifecycle/gateway"
	"github.com/containershare/lifecycle/model"
)

// SimulateExpiration reports what a live run would expire without mutating
// any record. It reads every published announcement, regardless of the
// live-run filter, and evaluates them with the same Evaluator as RunExpiration.
// Announcements failing validation are counted in Skipped.
func (e *Engine) SimulateExpiration(ctx context.Context) (model.DryRunReport, error) {
	ctx, span := tracer.Start(ctx, "SimulateExpiration")
	defer span.End()

	candidates, err := e.gateway.FetchCandidates(ctx, gateway.CandidateFilter{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logrus.WithError(err).Error("Expiration dry run failed")
		return model.DryRunReport{}, err
	}

	now := e.clock()
	report := model.DryRunReport{Items: []model.DryRunItem{}}
	for _, a := range candidates {
		report.TotalChecked++
		if err := a.Validate(); err != nil {
			report.Skipped++
			continue
		}

		decision := e.evaluator.Evaluate(a, now)
		if !decision.ShouldExpire {
			continue
		}
		report.WouldExpire++
		report.Items = append(report.Items, model.DryRunItem{
			ID:     a.ID,
			Type:   a.RequestType,
			Reason: decision.Reason,
		})
	}

	span.SetAttributes(
		attribute.Int("dry_run.total_checked", report.TotalChecked),
		attribute.Int("dry_run.would_expire", report.WouldExpire),
	)
	logrus.WithFields(logrus.Fields{
		"total_checked": report.TotalChecked,
		"would_expire":  report.WouldExpire,
		"skipped":       report.Skipped,
	}).Info("Expiration dry run completed")

	return report, nil
}
