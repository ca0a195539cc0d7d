package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/normalizer"
	"github.com/tripnest/booking-backend/internal/utils"
	"github.com/tripnest/booking-backend/pkg/inventory"
)

// PriceHotelOffer re-fetches a hotel offer before booking. As with flights,
// a failed lookup degrades to the caller's offer id instead of aborting.
func (s *BookingService) PriceHotelOffer(ctx context.Context, offerID string) (*models.PricedHotelOffer, error) {
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return nil, &models.ValidationError{Field: "offerId", Message: "is required"}
	}

	listing, err := s.fetchHotelOffer(ctx, offerID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.WithField("offer_id", offerID).WithError(err).Warn("Hotel offer pricing failed, continuing with unpriced offer")
		result := &models.PricedHotelOffer{
			Listing:           models.CanonicalHotelListing{OfferID: offerID},
			OfferID:           offerID,
			Degraded:          true,
			DegradationReason: pricingFailureReason(err),
			PricedAt:          s.now(),
		}
		if err := s.sealHotelQuote(result); err != nil {
			return nil, err
		}
		return result, nil
	}

	result := &models.PricedHotelOffer{
		Listing:  *listing,
		OfferID:  listing.OfferID,
		Price:    models.Money{Amount: *listing.Price, Currency: listing.Currency},
		PricedAt: s.now(),
	}
	if err := s.sealHotelQuote(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BookingService) sealHotelQuote(priced *models.PricedHotelOffer) error {
	token, err := s.signQuote(hotelQuoteDigest(priced.OfferID, priced.Price), priced.Degraded, priced.DegradationReason)
	if err != nil {
		return err
	}
	priced.QuoteToken = token
	return nil
}

func (s *BookingService) fetchHotelOffer(ctx context.Context, offerID string) (*models.CanonicalHotelListing, error) {
	raw, err := s.provider.HotelOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	payload, err := normalizer.ParseHotelPayload(raw)
	if err != nil {
		return nil, &inventory.ProviderError{Kind: inventory.ErrProviderRejected, Operation: "hotel_offer", Err: err}
	}
	listings, err := normalizer.NormalizeHotelListings(payload, &payload)
	if err != nil {
		return nil, &inventory.ProviderError{Kind: inventory.ErrProviderRejected, Operation: "hotel_offer", Err: err}
	}
	if len(listings) == 0 {
		return nil, &inventory.ProviderError{Kind: inventory.ErrProviderRejected, Operation: "hotel_offer", Detail: "offer is no longer available"}
	}
	return &listings[0], nil
}

// CreateHotelBooking books a priced hotel offer for the given guests on
// behalf of customerID. The quote token binds the offer id to its price.
func (s *BookingService) CreateHotelBooking(ctx context.Context, customerID string, priced *models.PricedHotelOffer, guests []models.HotelGuestInput, card models.HotelPaymentCard) (*models.BookingOrder, error) {
	if priced == nil || priced.OfferID == "" {
		return nil, &models.ValidationError{Field: "pricedOffer", Message: "is required"}
	}
	if len(guests) == 0 {
		return nil, &models.ValidationError{Field: "guests", Message: "at least one guest is required"}
	}
	for i := range guests {
		if err := guests[i].Validate(i); err != nil {
			return nil, err
		}
	}
	if err := card.Validate(); err != nil {
		return nil, err
	}
	quote, err := s.verifyQuote(priced.QuoteToken, hotelQuoteDigest(priced.OfferID, priced.Price))
	if err != nil {
		return nil, err
	}

	req := inventory.HotelOrderRequest{
		OfferID:    priced.OfferID,
		Guests:     make([]inventory.HotelGuest, 0, len(guests)),
		AgentEmail: guests[0].Email,
		PaymentCard: inventory.HotelPaymentCard{
			VendorCode: card.VendorCode,
			CardNumber: card.CardNumber,
			ExpiryDate: card.ExpiryDate,
			HolderName: card.HolderName,
		},
	}
	for i, g := range guests {
		req.Guests = append(req.Guests, inventory.HotelGuest{
			TID:       i + 1,
			Title:     strings.ToUpper(g.Title),
			FirstName: strings.ToUpper(strings.TrimSpace(g.FirstName)),
			LastName:  strings.ToUpper(strings.TrimSpace(g.LastName)),
			Phone:     g.Phone,
			Email:     g.Email,
		})
	}

	resp, err := s.provider.CreateHotelOrder(ctx, req)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"offer_id": priced.OfferID,
			"guests":   len(guests),
		}).WithError(err).Error("Hotel booking failed")
		return nil, bookingFailed(err)
	}

	status, total, currency := s.hotelBookingOutcome(resp, priced)

	now := s.now()
	travelers := make(models.Travelers, 0, len(guests))
	for _, g := range guests {
		travelers = append(travelers, models.TravelerInput{FirstName: g.FirstName, LastName: g.LastName, Email: g.Email, Phone: g.Phone})
	}
	order := &models.BookingOrder{
		OrderID:         utils.NewID("BKG", now),
		CustomerID:      customerID,
		Kind:            models.BookingKindHotel,
		ConfirmationRef: hotelConfirmation(resp),
		Status:          status,
		TotalAmount:     total,
		Currency:        currency,
		Travelers:       travelers,
		ContactEmail:    optionalString(guests[0].Email),
		Metadata: models.BookingMetadata{
			Provider:          providerName,
			ProviderOrderID:   resp.Data.ID,
			OfferID:           priced.OfferID,
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
		"confirmation_ref":  order.ConfirmationRef,
		"status":            order.Status,
	}).Info("Hotel booking created")

	return order, nil
}

// hotelConfirmation prefers the associated record, then the hotel's own
// confirmation number, then the provider order id.
func hotelConfirmation(resp *inventory.HotelOrderResponse) string {
	if len(resp.Data.AssociatedRecords) > 0 && resp.Data.AssociatedRecords[0].Reference != "" {
		return resp.Data.AssociatedRecords[0].Reference
	}
	if len(resp.Data.HotelBookings) > 0 {
		for _, info := range resp.Data.HotelBookings[0].HotelProviderInformation {
			if info.ConfirmationNumber != "" {
				return info.ConfirmationNumber
			}
		}
	}
	return resp.Data.ID
}

func (s *BookingService) hotelBookingOutcome(resp *inventory.HotelOrderResponse, priced *models.PricedHotelOffer) (models.BookingStatus, float64, string) {
	status := models.BookingStatusConfirmed
	total, currency := priced.Price.Amount, priced.Price.Currency
	if len(resp.Data.HotelBookings) == 0 {
		return status, total, currency
	}

	booking := resp.Data.HotelBookings[0]
	if booking.BookingStatus != "" {
		parsed, err := models.ParseBookingStatus(booking.BookingStatus)
		if err != nil {
			s.logger.WithField("booking_status", booking.BookingStatus).Warn("Unknown hotel booking status, treating as pending")
			parsed = models.BookingStatusPending
		}
		status = parsed
	}
	if v, err := strconv.ParseFloat(booking.HotelOffer.Price.Total, 64); err == nil && v > 0 {
		total = v
		currency = firstNonEmpty(booking.HotelOffer.Price.Currency, currency)
	}
	return status, total, currency
}
