package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containershare/lifecycle/model"
)

func TestDecodeRecord(t *testing.T) {
	record := rawRecord{
		ID:          " rec42 ",
		CreatedTime: "2025-01-01T08:30:00.000Z",
		Fields: map[string]interface{}{
			"status":            "published",
			"request_type":      "Offer",
			"shipping_date":     "2025-01-10",
			"expires_at":        "2025-02-01T00:00:00Z",
			"created_at":        "2024-12-31",
			"departure_country": []interface{}{"France"},
			"arrival_country":   "Guadeloupe",
		},
	}

	a := decodeRecord(record)
	assert.Equal(t, "rec42", a.ID)
	assert.Equal(t, model.StatusPublished, a.Status)
	assert.Equal(t, model.RequestTypeOffer, a.RequestType)
	require.NotNil(t, a.ShippingDate)
	require.NotNil(t, a.ExpiresAt)
	require.NotNil(t, a.CreatedAt)
	assert.Equal(t, "2024-12-31", a.CreatedAt.Format("2006-01-02"))
	assert.Equal(t, "France", a.DepartureCountry)
	assert.Equal(t, "Guadeloupe", a.ArrivalCountry)
	assert.Empty(t, a.Issues)
}

func TestDecodeRecord_UnparseableDatesBecomeAbsent(t *testing.T) {
	record := rawRecord{
		ID: "rec1",
		Fields: map[string]interface{}{
			"request_type":  "offer",
			"shipping_date": "next tuesday",
			"expires_at":    float64(12),
			"created_at":    "",
		},
	}

	a := decodeRecord(record)
	assert.Nil(t, a.ShippingDate)
	assert.Nil(t, a.ExpiresAt)
	assert.Nil(t, a.CreatedAt)
	assert.Len(t, a.Issues, 2)
}

func TestDecodeRecord_NoFields(t *testing.T) {
	a := decodeRecord(rawRecord{})
	assert.Equal(t, "", a.ID)
	assert.Equal(t, model.RequestType(""), a.RequestType)
	assert.Nil(t, a.CreatedAt)
}

func TestParseDate(t *testing.T) {
	for _, value := range []string{"2025-01-10", "2025-01-10T12:00:00Z", "2025-01-10T12:00:00.123Z", "2025-01-10T12:00:00+01:00", "2025-01-10T12:00:00"} {
		parsed, err := parseDate(value)
		assert.NoError(t, err, value)
		assert.Equal(t, 2025, parsed.Year())
	}

	_, err := parseDate("10/01/2025")
	assert.Error(t, err)
}
