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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/containershare/lifecycle/config"
	"github.com/containershare/lifecycle/internal/request"
	"github.com/containershare/lifecycle/model"
)

const (
	FieldStatus           = "status"
	FieldRequestType      = "request_type"
	FieldShippingDate     = "shipping_date"
	FieldCreatedAt        = "created_at"
	FieldExpiresAt        = "expires_at"
	FieldExpiredAt        = "expired_at"
	FieldContactFirstName = "contact_first_name"
	FieldDepartureCountry = "departure_country"
	FieldArrivalCountry   = "arrival_country"

	pageSize = 100

	// expiredAtLayout matches the millisecond ISO-8601 timestamps already stored.
	expiredAtLayout = "2006-01-02T15:04:05.000Z07:00"
)

// ProjectedFields is the field set requested for every candidate.
var ProjectedFields = []string{
	FieldStatus,
	FieldRequestType,
	FieldShippingDate,
	FieldCreatedAt,
	FieldExpiresAt,
	FieldContactFirstName,
	FieldDepartureCountry,
	FieldArrivalCountry,
}

// Client talks to the hosted records store over its REST API.
// Every call is a single attempt bounded by the configured timeout.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	baseID     string
	table      string
}

type recordsPage struct {
	Records []rawRecord `json:"records"`
	Offset  string      `json:"offset,omitempty"`
}

type patchRequest struct {
	Fields map[string]string `json:"fields"`
}

// NewClient builds a Client from cfg. A missing API key or base identifier
// is reported as config.ErrConfigurationMissing.
func NewClient(cfg config.StoreConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: store API key is required", config.ErrConfigurationMissing)
	}
	if cfg.BaseID == "" {
		return nil, fmt.Errorf("%w: store base ID is required", config.ErrConfigurationMissing)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DEFAULT_STORE_BASE_URL
	}
	table := cfg.Table
	if table == "" {
		table = config.DEFAULT_STORE_TABLE
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = config.DEFAULT_STORE_TIMEOUT * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		baseID:     cfg.BaseID,
		table:      table,
	}, nil
}

func (c *Client) tableURL() string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(c.table))
}

func candidateFormula(filter CandidateFilter) string {
	formula := fmt.Sprintf("{%s}='%s'", FieldStatus, model.StatusPublished)
	if filter.RequireExpiresAt {
		formula = fmt.Sprintf("AND(%s,{%s}!='')", formula, FieldExpiresAt)
	}
	return formula
}

func (c *Client) newRequest(ctx context.Context, method, target string, payload interface{}) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		buf, err := request.ToJsonReq(payload)
		if err != nil {
			return nil, err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", request.BearerAuth(c.apiKey))
	return req, nil
}

func (c *Client) fetchPage(ctx context.Context, filter CandidateFilter, offset string) (*recordsPage, error) {
	query := url.Values{}
	query.Set("filterByFormula", candidateFormula(filter))
	query.Set("pageSize", fmt.Sprint(pageSize))
	for _, field := range ProjectedFields {
		query.Add("fields[]", field)
	}
	if offset != "" {
		query.Set("offset", offset)
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.tableURL()+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build candidates request")
	}

	var page recordsPage
	if _, err := request.Call(c.httpClient, req, &page); err != nil {
		return nil, errors.Wrap(err, "read candidates page")
	}
	return &page, nil
}

// FetchCandidates returns all published announcements, following the
// pagination cursor until the store reports no further page.
func (c *Client) FetchCandidates(ctx context.Context, filter CandidateFilter) ([]model.Announcement, error) {
	var announcements []model.Announcement
	seen := make(map[string]bool)
	offset := ""
	pages := 0

	for {
		page, err := c.fetchPage(ctx, filter, offset)
		if err != nil {
			return nil, &UnavailableError{Op: "fetch candidates", Cause: err}
		}
		pages++

		for _, record := range page.Records {
			announcements = append(announcements, decodeRecord(record))
		}

		if page.Offset == "" {
			break
		}
		if seen[page.Offset] {
			return nil, &UnavailableError{Op: "fetch candidates", Cause: fmt.Errorf("pagination cursor %q repeated", page.Offset)}
		}
		seen[page.Offset] = true
		offset = page.Offset
	}

	logrus.WithFields(logrus.Fields{
		"candidates":         len(announcements),
		"pages":              pages,
		"require_expires_at": filter.RequireExpiresAt,
	}).Debug("Fetched expiration candidates")

	return announcements, nil
}

// MarkExpired patches exactly the status and expired_at fields of one record.
// The reason is only logged; the store schema carries no field for it.
func (c *Client) MarkExpired(ctx context.Context, id string, reason model.ExpirationReason, at time.Time) error {
	if id == "" {
		return &RecordUpdateError{ID: id, Cause: model.ErrMalformedRecord}
	}

	payload := patchRequest{Fields: map[string]string{
		FieldStatus:    string(model.StatusExpired),
		FieldExpiredAt: at.UTC().Format(expiredAtLayout),
	}}

	req, err := c.newRequest(ctx, http.MethodPatch, c.tableURL()+"/"+url.PathEscape(id), payload)
	if err != nil {
		return &RecordUpdateError{ID: id, Cause: err}
	}

	if _, err := request.Call(c.httpClient, req, nil); err != nil {
		return &RecordUpdateError{ID: id, Cause: err}
	}

	logrus.WithFields(logrus.Fields{
		"announcement_id": id,
		"reason":          reason,
	}).Debug("Announcement marked expired")
	return nil
}
