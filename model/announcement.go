package model

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrMalformedRecord marks a candidate the engine cannot act on, such as one
// returned by the store without an identifier.
var ErrMalformedRecord = errors.New("malformed record")

type AnnouncementStatus string

const (
	StatusPublished AnnouncementStatus = "published"
	StatusExpired   AnnouncementStatus = "expired"
)

type RequestType string

const (
	RequestTypeOffer  RequestType = "offer"
	RequestTypeSearch RequestType = "search"
)

type ExpirationReason string

const (
	ReasonExplicitDeadline ExpirationReason = "date_expiration_depassee"
	ReasonDeparturePassed  ExpirationReason = "date_depart_passee"
	ReasonSearchTimedOut   ExpirationReason = "delai_recherche_expire"
	ReasonNotExpired       ExpirationReason = "non_expire"
)

// Announcement is the subset of a listing record the expiration engine reads
// or writes. Date fields are nil when absent or unparseable.
type Announcement struct {
	ID               string             `json:"id"`
	Status           AnnouncementStatus `json:"status"`
	RequestType      RequestType        `json:"request_type"`
	ShippingDate     *time.Time         `json:"shipping_date,omitempty"`
	CreatedAt        *time.Time         `json:"created_at,omitempty"`
	ExpiresAt        *time.Time         `json:"expires_at,omitempty"`
	ExpiredAt        *time.Time         `json:"expired_at,omitempty"`
	ContactFirstName string             `json:"contact_first_name,omitempty"`
	DepartureCountry string             `json:"departure_country,omitempty"`
	ArrivalCountry   string             `json:"arrival_country,omitempty"`
	Issues           []string           `json:"-"`
}

// Validate reports ErrMalformedRecord when the announcement cannot be
// mutated safely.
func (a *Announcement) Validate() error {
	err := validation.ValidateStruct(a,
		validation.Field(&a.ID, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return nil
}

// Decision is the outcome of evaluating one announcement.
type Decision struct {
	ShouldExpire bool              `json:"should_expire"`
	Reason       ExpirationReason  `json:"reason"`
	Evidence     map[string]string `json:"evidence,omitempty"`
}
