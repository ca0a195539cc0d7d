package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// BookingStatus represents the lifecycle state of a provider booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusFailed    BookingStatus = "failed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// BookingKind tells flight and hotel bookings apart
type BookingKind string

const (
	BookingKindFlight BookingKind = "flight"
	BookingKindHotel  BookingKind = "hotel"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusFailed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled},
}

// ParseBookingStatus accepts provider status strings in any case
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "on_hold", "on-hold":
		return BookingStatusPending, nil
	case "confirmed":
		return BookingStatusConfirmed, nil
	case "failed", "rejected":
		return BookingStatusFailed, nil
	case "cancelled", "canceled":
		return BookingStatusCancelled, nil
	}
	return "", invalid("status", "unknown booking status %q", s)
}

// CanTransitionTo reports whether a move to next is allowed. Re-applying the
// current status is allowed.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z '\-]*$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^[0-9]{4,15}$`)
)

// TravelerInput is a passenger as supplied by the caller
type TravelerInput struct {
	FirstName        string `json:"firstName" binding:"required"`
	LastName         string `json:"lastName" binding:"required"`
	DateOfBirth      string `json:"dateOfBirth" binding:"required"`
	Gender           string `json:"gender" binding:"required"`
	Email            string `json:"email"`
	PhoneCountryCode string `json:"phoneCountryCode"`
	Phone            string `json:"phone"`
}

// Validate checks a traveler; index is used in error field names
func (t *TravelerInput) Validate(index int) error {
	field := func(name string) string { return fmt.Sprintf("travelers[%d].%s", index, name) }

	if !namePattern.MatchString(strings.TrimSpace(t.FirstName)) {
		return invalid(field("firstName"), "must contain letters only")
	}
	if !namePattern.MatchString(strings.TrimSpace(t.LastName)) {
		return invalid(field("lastName"), "must contain letters only")
	}
	dob, err := time.Parse(DateLayout, t.DateOfBirth)
	if err != nil {
		return invalid(field("dateOfBirth"), "must be a date in YYYY-MM-DD format")
	}
	if dob.After(time.Now()) {
		return invalid(field("dateOfBirth"), "must be in the past")
	}
	switch strings.ToUpper(t.Gender) {
	case "MALE", "FEMALE":
	default:
		return invalid(field("gender"), "must be MALE or FEMALE")
	}
	if t.Email != "" && !emailPattern.MatchString(t.Email) {
		return invalid(field("email"), "must be a valid email address")
	}
	if t.Phone != "" && !phonePattern.MatchString(t.Phone) {
		return invalid(field("phone"), "must contain 4 to 15 digits")
	}
	return nil
}

// ContactInput overrides the booking contact derived from the first traveler
type ContactInput struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	PhoneCountryCode string `json:"phoneCountryCode"`
	Phone            string `json:"phone"`
}

// Validate checks the override fields that are set
func (c *ContactInput) Validate() error {
	if c.Email != "" && !emailPattern.MatchString(c.Email) {
		return invalid("contact.email", "must be a valid email address")
	}
	if c.Phone != "" && !phonePattern.MatchString(c.Phone) {
		return invalid("contact.phone", "must contain 4 to 15 digits")
	}
	return nil
}

// PricedOffer is a flight offer after re-pricing. When pricing failed it
// wraps the original offer with Degraded set.
type PricedOffer struct {
	Offer             CanonicalFlightOffer `json:"offer"`
	RawOffer          json.RawMessage      `json:"rawOffer"`
	Price             Money                `json:"price"`
	Degraded          bool                 `json:"degraded"`
	DegradationReason string               `json:"degradationReason,omitempty"`
	PricedAt          time.Time            `json:"pricedAt"`
	QuoteToken        string               `json:"quoteToken"`
}

// BookingMetadata is stored alongside an order as JSONB
type BookingMetadata struct {
	Provider          string `json:"provider,omitempty"`
	ProviderOrderID   string `json:"providerOrderId,omitempty"`
	OfferID           string `json:"offerId,omitempty"`
	PricingDegraded   bool   `json:"pricingDegraded,omitempty"`
	DegradationReason string `json:"degradationReason,omitempty"`
	StatusSource      string `json:"statusSource,omitempty"`
}

// Value implements the driver.Valuer interface
func (m BookingMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (m *BookingMetadata) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// Travelers is a JSONB list of passengers
type Travelers []TravelerInput

// Value implements the driver.Valuer interface
func (t Travelers) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (t *Travelers) Scan(value interface{}) error {
	return scanJSON(value, t)
}

// BookingOrder is a confirmed (or pending) provider booking
type BookingOrder struct {
	OrderID         string          `json:"orderId" db:"order_id"`
	CustomerID      string          `json:"customerId,omitempty" db:"customer_id"`
	Kind            BookingKind     `json:"kind" db:"kind"`
	ConfirmationRef string          `json:"pnrOrConfirmationRef" db:"confirmation_ref"`
	Status          BookingStatus   `json:"status" db:"status"`
	TotalAmount     float64         `json:"totalAmount" db:"total_amount"`
	Currency        string          `json:"currency" db:"currency"`
	Travelers       Travelers       `json:"travelers" db:"travelers"`
	ContactEmail    *string         `json:"contactEmail,omitempty" db:"contact_email"`
	Metadata        BookingMetadata `json:"metadata" db:"metadata"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// TransitionTo applies a status change if it is allowed
func (o *BookingOrder) TransitionTo(next BookingStatus, at time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return &StatusTransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.UpdatedAt = at
	return nil
}

// ============================================================================
// HOTEL BOOKING INPUT
// ============================================================================

// HotelGuestInput is a hotel guest as supplied by the caller
type HotelGuestInput struct {
	Title     string `json:"title"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
	Email     string `json:"email" binding:"required"`
}

// Validate checks a guest; index is used in error field names
func (g *HotelGuestInput) Validate(index int) error {
	field := func(name string) string { return fmt.Sprintf("guests[%d].%s", index, name) }

	if !namePattern.MatchString(strings.TrimSpace(g.FirstName)) {
		return invalid(field("firstName"), "must contain letters only")
	}
	if !namePattern.MatchString(strings.TrimSpace(g.LastName)) {
		return invalid(field("lastName"), "must contain letters only")
	}
	if !emailPattern.MatchString(g.Email) {
		return invalid(field("email"), "must be a valid email address")
	}
	if !phonePattern.MatchString(strings.TrimPrefix(g.Phone, "+")) {
		return invalid(field("phone"), "must contain 4 to 15 digits")
	}
	return nil
}

var (
	vendorCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)
	cardNumberPattern = regexp.MustCompile(`^[0-9]{13,19}$`)
	yearMonthPattern  = regexp.MustCompile(`^[0-9]{4}-(0[1-9]|1[0-2])$`)
)

// HotelPaymentCard is the guarantee card passed through to the hotel
type HotelPaymentCard struct {
	VendorCode string `json:"vendorCode" binding:"required"`
	CardNumber string `json:"cardNumber" binding:"required"`
	ExpiryDate string `json:"expiryDate" binding:"required"`
	HolderName string `json:"holderName" binding:"required"`
}

// Validate checks the card format
func (c *HotelPaymentCard) Validate() error {
	if !vendorCodePattern.MatchString(c.VendorCode) {
		return invalid("payment.vendorCode", "must be a 2-letter card vendor code")
	}
	if !cardNumberPattern.MatchString(c.CardNumber) {
		return invalid("payment.cardNumber", "must contain 13 to 19 digits")
	}
	if !yearMonthPattern.MatchString(c.ExpiryDate) {
		return invalid("payment.expiryDate", "must be in YYYY-MM format")
	}
	if strings.TrimSpace(c.HolderName) == "" {
		return invalid("payment.holderName", "is required")
	}
	return nil
}

// PricedHotelOffer is a hotel offer after re-pricing
type PricedHotelOffer struct {
	Listing           CanonicalHotelListing `json:"listing"`
	OfferID           string                `json:"offerId"`
	Price             Money                 `json:"price"`
	Degraded          bool                  `json:"degraded"`
	DegradationReason string                `json:"degradationReason,omitempty"`
	PricedAt          time.Time             `json:"pricedAt"`
	QuoteToken        string                `json:"quoteToken"`
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	}
	return fmt.Errorf("cannot scan %T into %T", value, dest)
}
