package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/normalizer"
	"github.com/tripnest/booking-backend/internal/utils"
	"github.com/tripnest/booking-backend/pkg/inventory"
)

const (
	providerName           = "amadeus"
	defaultCallingCode     = "91"
	ticketingDelayToCancel = "DELAY_TO_CANCEL"
	ticketingDelay         = "6D"
)

// BookingProvider is the slice of the inventory client used for
// price-then-book
type BookingProvider interface {
	PriceFlightOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
	CreateFlightOrder(ctx context.Context, req inventory.FlightOrderRequest) (*inventory.FlightOrderResponse, error)
	HotelOffer(ctx context.Context, offerID string) ([]byte, error)
	CreateHotelOrder(ctx context.Context, req inventory.HotelOrderRequest) (*inventory.HotelOrderResponse, error)
}

// BookingOrderStore persists booking orders
type BookingOrderStore interface {
	Create(ctx context.Context, order *models.BookingOrder) error
	GetByID(ctx context.Context, orderID string) (*models.BookingOrder, error)
	UpdateStatus(ctx context.Context, order *models.BookingOrder) error
}

// BookingService re-prices offers and books them with the provider
type BookingService struct {
	provider BookingProvider
	store    BookingOrderStore
	quotes   QuoteSigner
	config   BookingConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewBookingService creates a new booking service. A nil store keeps orders
// in memory.
func NewBookingService(provider BookingProvider, store BookingOrderStore, quotes QuoteSigner, config BookingConfig, logger *logrus.Logger) *BookingService {
	if store == nil {
		store = NewMemoryBookingStore()
	}
	if config.QuoteTTL <= 0 {
		config.QuoteTTL = DefaultBookingConfig().QuoteTTL
	}
	return &BookingService{
		provider: provider,
		store:    store,
		quotes:   quotes,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the service clock
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

// PriceOffer confirms an offer's price. A pricing failure does not abort:
// the original offer comes back marked as degraded.
func (s *BookingService) PriceOffer(ctx context.Context, offer models.CanonicalFlightOffer) (*models.PricedOffer, error) {
	if len(offer.RawProviderOffer) == 0 {
		return nil, &models.ValidationError{Field: "offer.rawProviderOffer", Message: "is required"}
	}

	priced, err := s.provider.PriceFlightOffer(ctx, offer.RawProviderOffer)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.WithFields(logrus.Fields{
			"offer_id": offer.ID,
		}).WithError(err).Warn("Flight pricing failed, continuing with unpriced offer")
		return s.degradedOffer(offer, pricingFailureReason(err))
	}

	price, ok := normalizer.PricedOfferMoney(priced)
	if !ok {
		s.logger.WithField("offer_id", offer.ID).Warn("Priced offer has no price, continuing with unpriced offer")
		return s.degradedOffer(offer, "priced offer carries no price")
	}

	s.logger.WithFields(logrus.Fields{
		"offer_id":     offer.ID,
		"quoted_total": offer.Price.Amount,
		"priced_total": price.Amount,
		"currency":     price.Currency,
	}).Info("Flight offer priced")

	result := &models.PricedOffer{
		Offer:    offer,
		RawOffer: priced,
		Price:    price,
		PricedAt: s.now(),
	}
	if err := s.sealFlightQuote(result); err != nil {
		return nil, err
	}
	return result, nil
}

// degradedOffer wraps the original raw offer when pricing gave nothing usable
func (s *BookingService) degradedOffer(offer models.CanonicalFlightOffer, reason string) (*models.PricedOffer, error) {
	result := &models.PricedOffer{
		Offer:             offer,
		RawOffer:          offer.RawProviderOffer,
		Price:             offer.Price,
		Degraded:          true,
		DegradationReason: reason,
		PricedAt:          s.now(),
	}
	if price, ok := normalizer.PricedOfferMoney(offer.RawProviderOffer); ok {
		result.Price = price
	}
	if err := s.sealFlightQuote(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BookingService) sealFlightQuote(priced *models.PricedOffer) error {
	digest, err := flightQuoteDigest(priced.RawOffer)
	if err != nil {
		return &models.ValidationError{Field: "offer.rawProviderOffer", Message: "is not valid JSON"}
	}
	priced.QuoteToken, err = s.signQuote(digest, priced.Degraded, priced.DegradationReason)
	return err
}

// CreateBooking submits a flight order for a priced offer on behalf of
// customerID. The total and the degraded flag come from the raw offer and its
// quote token, never from the caller's copy. Failures are never retried.
func (s *BookingService) CreateBooking(ctx context.Context, customerID string, priced *models.PricedOffer, travelers []models.TravelerInput, contact *models.ContactInput) (*models.BookingOrder, error) {
	if priced == nil || len(priced.RawOffer) == 0 {
		return nil, &models.ValidationError{Field: "pricedOffer", Message: "is required"}
	}
	if err := validateTravelers(travelers); err != nil {
		return nil, err
	}
	if contact != nil {
		if err := contact.Validate(); err != nil {
			return nil, err
		}
	}

	price, ok := normalizer.PricedOfferMoney(priced.RawOffer)
	if !ok {
		return nil, &models.ValidationError{Field: "pricedOffer.rawOffer", Message: "carries no price"}
	}
	digest, err := flightQuoteDigest(priced.RawOffer)
	if err != nil {
		return nil, &models.ValidationError{Field: "pricedOffer.rawOffer", Message: "is not valid JSON"}
	}
	quote, err := s.verifyQuote(priced.QuoteToken, digest)
	if err != nil {
		return nil, err
	}

	req := inventory.FlightOrderRequest{
		Offer:              priced.RawOffer,
		Travelers:          providerTravelers(travelers),
		Contacts:           []inventory.Contact{bookingContact(travelers[0], contact)},
		TicketingAgreement: inventory.TicketingAgreement{Option: ticketingDelayToCancel, Delay: ticketingDelay},
	}

	resp, err := s.provider.CreateFlightOrder(ctx, req)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"offer_id":  priced.Offer.ID,
			"travelers": len(travelers),
		}).WithError(err).Error("Flight booking failed")
		return nil, bookingFailed(err)
	}

	reference := resp.Data.ID
	if len(resp.Data.AssociatedRecords) > 0 && resp.Data.AssociatedRecords[0].Reference != "" {
		reference = resp.Data.AssociatedRecords[0].Reference
	}

	now := s.now()
	order := &models.BookingOrder{
		OrderID:         utils.NewID("BKG", now),
		CustomerID:      customerID,
		Kind:            models.BookingKindFlight,
		ConfirmationRef: reference,
		Status:          models.BookingStatusConfirmed,
		TotalAmount:     price.Amount,
		Currency:        price.Currency,
		Travelers:       travelers,
		ContactEmail:    optionalString(req.Contacts[0].EmailAddress),
		Metadata: models.BookingMetadata{
			Provider:          providerName,
			ProviderOrderID:   resp.Data.ID,
			OfferID:           priced.Offer.ID,
			PricingDegraded:   quote.Degraded,
			DegradationReason: quote.DegradationReason,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.persist(ctx, order)

	s.logger.WithFields(logrus.Fields{
		"order_id":          order.OrderID,
		"provider_order_id": resp.Data.ID,
		"pnr":               reference,
		"total":             price.Amount,
		"pricing_degraded":  quote.Degraded,
	}).Info("Flight booking confirmed")

	return order, nil
}

// ApplyProviderStatus records a status reported by the provider. Confirmed
// orders only move to cancelled.
func (s *BookingService) ApplyProviderStatus(ctx context.Context, orderID, status string) (*models.BookingOrder, error) {
	next, err := models.ParseBookingStatus(status)
	if err != nil {
		return nil, err
	}
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	previous := order.Status
	if err := order.TransitionTo(next, s.now()); err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"from":     previous,
			"to":       next,
		}).Warn("Rejected provider status change")
		return nil, err
	}
	order.Metadata.StatusSource = "provider"

	if err := s.store.UpdateStatus(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"from":     previous,
		"to":       next,
	}).Info("Booking status updated by provider")

	return order, nil
}

// GetBooking returns a booking order owned by customerID. Orders owned by
// someone else are reported as not found.
func (s *BookingService) GetBooking(ctx context.Context, customerID, orderID string) (*models.BookingOrder, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		s.logger.WithFields(logrus.Fields{
			"order_id":    orderID,
			"customer_id": customerID,
		}).Warn("Booking lookup by non-owner")
		return nil, models.ErrBookingNotFound
	}
	return order, nil
}

// persist saves the order. The provider booking already exists at this
// point, so a storage failure is logged and the order still returned.
func (s *BookingService) persist(ctx context.Context, order *models.BookingOrder) {
	if err := s.store.Create(ctx, order); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"order_id":         order.OrderID,
			"confirmation_ref": order.ConfirmationRef,
		}).Error("CRITICAL: Failed to persist confirmed booking")
	}
}

func validateTravelers(travelers []models.TravelerInput) error {
	if len(travelers) == 0 {
		return &models.ValidationError{Field: "travelers", Message: "at least one traveler is required"}
	}
	if len(travelers) > models.MaxTravelers {
		return &models.ValidationError{Field: "travelers", Message: fmt.Sprintf("must not exceed %d", models.MaxTravelers)}
	}
	for i := range travelers {
		if err := travelers[i].Validate(i); err != nil {
			return err
		}
	}
	return nil
}

func providerTravelers(travelers []models.TravelerInput) []inventory.Traveler {
	out := make([]inventory.Traveler, 0, len(travelers))
	for i, t := range travelers {
		traveler := inventory.Traveler{
			ID:          strconv.Itoa(i + 1),
			DateOfBirth: t.DateOfBirth,
			Name: inventory.TravelerName{
				FirstName: strings.ToUpper(strings.TrimSpace(t.FirstName)),
				LastName:  strings.ToUpper(strings.TrimSpace(t.LastName)),
			},
			Gender: strings.ToUpper(t.Gender),
			Contact: inventory.TravelerContact{
				EmailAddress: t.Email,
				Phones:       phones(t.PhoneCountryCode, t.Phone),
			},
		}
		out = append(out, traveler)
	}
	return out
}

// bookingContact derives the single order contact from the first traveler;
// fields set on override win.
func bookingContact(first models.TravelerInput, override *models.ContactInput) inventory.Contact {
	firstName, lastName := first.FirstName, first.LastName
	email, code, phone := first.Email, first.PhoneCountryCode, first.Phone
	if override != nil {
		firstName = firstNonEmpty(override.FirstName, firstName)
		lastName = firstNonEmpty(override.LastName, lastName)
		email = firstNonEmpty(override.Email, email)
		if override.Phone != "" {
			code, phone = override.PhoneCountryCode, override.Phone
		}
	}
	return inventory.Contact{
		AddresseeName: inventory.TravelerName{
			FirstName: strings.ToUpper(strings.TrimSpace(firstName)),
			LastName:  strings.ToUpper(strings.TrimSpace(lastName)),
		},
		Purpose:      "STANDARD",
		Phones:       phones(code, phone),
		EmailAddress: email,
	}
}

func phones(countryCode, number string) []inventory.Phone {
	if number == "" {
		return nil
	}
	return []inventory.Phone{{
		DeviceType:         "MOBILE",
		CountryCallingCode: firstNonEmpty(strings.TrimPrefix(countryCode, "+"), defaultCallingCode),
		Number:             number,
	}}
}

// bookingFailed converts a provider failure into a BookingFailedError
func bookingFailed(err error) error {
	failure := &models.BookingFailedError{Reason: err.Error(), Err: err}
	var pe *inventory.ProviderError
	if errors.As(err, &pe) {
		failure.Reason = pe.Message()
		failure.ProviderErrorCode = pe.Code
	}
	return failure
}

func pricingFailureReason(err error) string {
	var pe *inventory.ProviderError
	if errors.As(err, &pe) {
		return pe.Message()
	}
	return err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
