package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/containershare/lifecycle/model"
)

// rawRecord is a record as the store returns it: loosely typed fields keyed by name.
type rawRecord struct {
	ID          string                 `json:"id"`
	CreatedTime string                 `json:"createdTime"`
	Fields      map[string]interface{} `json:"fields"`
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

func stringField(fields map[string]interface{}, name string) (string, bool) {
	v, ok := fields[name]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case []interface{}:
		// lookup and single-select-as-array fields come back as one-element lists
		if len(s) == 1 {
			if str, ok := s[0].(string); ok {
				return strings.TrimSpace(str), true
			}
		}
	}
	return "", false
}

// dateField returns nil when the field is absent or empty. An unparseable
// value is recorded on issues and also yields nil.
func dateField(fields map[string]interface{}, name string, issues *[]string) *time.Time {
	raw, present := fields[name]
	if !present || raw == nil {
		return nil
	}
	value, ok := stringField(fields, name)
	if !ok {
		*issues = append(*issues, fmt.Sprintf("%s: unexpected type %T", name, raw))
		return nil
	}
	if value == "" {
		return nil
	}
	t, err := parseDate(value)
	if err != nil {
		*issues = append(*issues, fmt.Sprintf("%s: %v", name, err))
		return nil
	}
	return &t
}

func decodeRecord(r rawRecord) model.Announcement {
	fields := r.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}

	var issues []string
	a := model.Announcement{ID: strings.TrimSpace(r.ID)}

	if status, ok := stringField(fields, FieldStatus); ok {
		a.Status = model.AnnouncementStatus(status)
	}
	if requestType, ok := stringField(fields, FieldRequestType); ok {
		a.RequestType = model.RequestType(strings.ToLower(requestType))
	}

	a.ShippingDate = dateField(fields, FieldShippingDate, &issues)
	a.ExpiresAt = dateField(fields, FieldExpiresAt, &issues)
	a.CreatedAt = dateField(fields, FieldCreatedAt, &issues)
	if a.CreatedAt == nil && r.CreatedTime != "" {
		if t, err := parseDate(r.CreatedTime); err == nil {
			a.CreatedAt = &t
		} else {
			issues = append(issues, fmt.Sprintf("createdTime: %v", err))
		}
	}

	a.ContactFirstName, _ = stringField(fields, FieldContactFirstName)
	a.DepartureCountry, _ = stringField(fields, FieldDepartureCountry)
	a.ArrivalCountry, _ = stringField(fields, FieldArrivalCountry)
	a.Issues = issues
	return a
}
