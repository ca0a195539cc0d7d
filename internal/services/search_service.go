package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/normalizer"
	"github.com/tripnest/booking-backend/pkg/inventory"
)

// InventoryProvider is the slice of the inventory client used by search
type InventoryProvider interface {
	SearchFlightOffers(ctx context.Context, params inventory.FlightOffersParams) (*inventory.FlightOffersResponse, error)
	HotelsByCity(ctx context.Context, params inventory.HotelListParams) ([]byte, error)
	HotelOffers(ctx context.Context, params inventory.HotelOffersParams) ([]byte, error)
}

// HotelListCache stores raw hotels-by-city payloads
type HotelListCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte) error
}

// SearchConfig holds configuration for the search orchestrator
type SearchConfig struct {
	FallbackHotelID string // known-good property priced when the batch yields nothing
	CandidateLimit  int    // hotels per availability batch
	StayLeadDays    int
	StayNights      int
	Currency        string
}

// DefaultSearchConfig returns default configuration
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		FallbackHotelID: "MCLONGHM",
		CandidateLimit:  5,
		StayLeadDays:    models.DefaultStayLeadDays,
		StayNights:      models.DefaultStayNights,
		Currency:        "INR",
	}
}

// SearchService runs flight and hotel searches against the inventory provider
type SearchService struct {
	provider InventoryProvider
	cache    HotelListCache
	config   SearchConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewSearchService creates a new search service. cache may be nil.
func NewSearchService(provider InventoryProvider, cache HotelListCache, config SearchConfig, logger *logrus.Logger) *SearchService {
	defaults := DefaultSearchConfig()
	if config.CandidateLimit <= 0 {
		config.CandidateLimit = defaults.CandidateLimit
	}
	if config.StayLeadDays <= 0 {
		config.StayLeadDays = defaults.StayLeadDays
	}
	if config.StayNights <= 0 {
		config.StayNights = defaults.StayNights
	}
	if config.Currency == "" {
		config.Currency = defaults.Currency
	}
	return &SearchService{
		provider: provider,
		cache:    cache,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the service clock
func (s *SearchService) SetClock(now func() time.Time) {
	s.now = now
}

// SearchFlights returns canonical offers for the query. No inventory is an
// empty slice, never an error.
func (s *SearchService) SearchFlights(ctx context.Context, query models.FlightSearchQuery) ([]models.CanonicalFlightOffer, error) {
	query.Normalize()
	if err := query.Validate(s.now()); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.provider.SearchFlightOffers(ctx, inventory.FlightOffersParams{
		Origin:        query.Origin,
		Destination:   query.Destination,
		DepartureDate: query.DepartureDate,
		ReturnDate:    query.ReturnDate,
		Adults:        query.Adults,
		Max:           query.Max,
		CurrencyCode:  s.config.Currency,
		NonStop:       query.NonStop,
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"from": query.Origin,
			"to":   query.Destination,
		}).WithError(err).Error("Flight search failed")
		return nil, classifySearchError(err)
	}

	offers := normalizer.NormalizeFlightOffers(resp.Data, resp.Dictionaries, s.logger)

	s.logger.WithFields(logrus.Fields{
		"from":        query.Origin,
		"to":          query.Destination,
		"depart_date": query.DepartureDate,
		"results":     len(offers),
		"dropped":     len(resp.Data) - len(offers),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Flight search completed")

	return offers, nil
}

// SearchHotels lists hotels in a city and, when stay dates were requested,
// prices the best candidates through the availability fallback chain.
func (s *SearchService) SearchHotels(ctx context.Context, query models.HotelSearchQuery) (*models.HotelSearchResult, error) {
	query.Normalize()
	if err := query.Validate(); err != nil {
		return nil, err
	}
	window, err := query.ResolveStayWindow(s.now(), s.config.StayLeadDays, s.config.StayNights)
	if err != nil {
		return nil, err
	}

	listPayload, err := s.hotelList(ctx, query)
	if err != nil {
		return nil, err
	}
	listings, err := normalizer.NormalizeHotelListings(listPayload, nil)
	if err != nil {
		return nil, &inventory.ProviderError{Kind: inventory.ErrProviderRejected, Operation: "hotel_list", Err: err}
	}

	result := &models.HotelSearchResult{
		CheckIn:          window.CheckIn,
		CheckOut:         window.CheckOut,
		DatesSynthesized: !query.DatesRequested(),
		Strategy:         StrategyUnpriced,
	}

	if !query.DatesRequested() {
		result.Hotels = listings
		return result, nil
	}

	candidates := PrioritizeHotels(listings)
	strategies := []hotelStrategy{
		{name: StrategyPrimaryBatch, run: s.batchStrategy(listPayload, topHotelIDs(candidates, s.config.CandidateLimit), window, query.Adults)},
		{name: StrategyKnownGoodFallback, run: s.knownGoodStrategy(listPayload, window, query.Adults)},
	}

	priced, strategy, err := runHotelStrategies(ctx, s.logger, strategies)
	if err != nil {
		return nil, classifySearchError(err)
	}

	if len(priced) > 0 {
		result.Hotels = priced
		result.Strategy = strategy
		result.Priced = true
	} else {
		result.Hotels = candidates
	}

	s.logger.WithFields(logrus.Fields{
		"city_code":  query.CityCode,
		"check_in":   window.CheckIn,
		"check_out":  window.CheckOut,
		"candidates": len(candidates),
		"results":    len(result.Hotels),
		"strategy":   result.Strategy,
	}).Info("Hotel search completed")

	return result, nil
}

// GetHotelOffers prices a single hotel for the given stay
func (s *SearchService) GetHotelOffers(ctx context.Context, hotelID string, window models.StayWindow, adults int) ([]models.CanonicalHotelListing, error) {
	hotelID = strings.ToUpper(strings.TrimSpace(hotelID))
	if hotelID == "" {
		return nil, &models.ValidationError{Field: "hotelId", Message: "is required"}
	}
	if adults < 1 || adults > models.MaxTravelers {
		return nil, &models.ValidationError{Field: "adults", Message: fmt.Sprintf("must be between 1 and %d", models.MaxTravelers)}
	}
	query := models.HotelSearchQuery{CheckIn: window.CheckIn, CheckOut: window.CheckOut}
	resolved, err := query.ResolveStayWindow(s.now(), s.config.StayLeadDays, s.config.StayNights)
	if err != nil {
		return nil, err
	}

	raw, err := s.provider.HotelOffers(ctx, s.offersParams([]string{hotelID}, resolved, adults))
	if err != nil {
		return nil, classifySearchError(err)
	}
	payload, err := normalizer.ParseHotelPayload(raw)
	if err != nil {
		return nil, &inventory.ProviderError{Kind: inventory.ErrProviderRejected, Operation: "hotel_offers", Err: err}
	}
	listings, err := normalizer.NormalizeHotelListings(payload, &payload)
	if err != nil {
		return nil, &inventory.ProviderError{Kind: inventory.ErrProviderRejected, Operation: "hotel_offers", Err: err}
	}
	return listings, nil
}

func (s *SearchService) hotelList(ctx context.Context, query models.HotelSearchQuery) (normalizer.HotelPayload, error) {
	key := fmt.Sprintf("%s:%d", query.CityCode, query.RadiusKm)

	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Hotel list cache read failed")
		}
		if ok {
			if payload, err := normalizer.ParseHotelPayload(raw); err == nil {
				return payload, nil
			}
		}
	}

	raw, err := s.provider.HotelsByCity(ctx, inventory.HotelListParams{
		CityCode: query.CityCode,
		RadiusKm: query.RadiusKm,
	})
	if err != nil {
		s.logger.WithError(err).WithField("city_code", query.CityCode).Error("Hotel list lookup failed")
		return normalizer.HotelPayload{}, classifySearchError(err)
	}

	payload, err := normalizer.ParseHotelPayload(raw)
	if err != nil {
		return normalizer.HotelPayload{}, &inventory.ProviderError{Kind: inventory.ErrProviderRejected, Operation: "hotel_list", Err: err}
	}

	if s.cache != nil && payload.Shape == normalizer.HotelShapeList {
		if err := s.cache.Set(ctx, key, raw); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Hotel list cache write failed")
		}
	}
	return payload, nil
}

func (s *SearchService) batchStrategy(list normalizer.HotelPayload, ids []string, window models.StayWindow, adults int) func(context.Context) ([]models.CanonicalHotelListing, error) {
	return func(ctx context.Context) ([]models.CanonicalHotelListing, error) {
		if len(ids) == 0 {
			return nil, errTryNext
		}
		return s.priceHotels(ctx, list, ids, window, adults)
	}
}

func (s *SearchService) knownGoodStrategy(list normalizer.HotelPayload, window models.StayWindow, adults int) func(context.Context) ([]models.CanonicalHotelListing, error) {
	return func(ctx context.Context) ([]models.CanonicalHotelListing, error) {
		if s.config.FallbackHotelID == "" {
			return nil, errTryNext
		}
		return s.priceHotels(ctx, list, []string{s.config.FallbackHotelID}, window, adults)
	}
}

func (s *SearchService) priceHotels(ctx context.Context, list normalizer.HotelPayload, ids []string, window models.StayWindow, adults int) ([]models.CanonicalHotelListing, error) {
	raw, err := s.provider.HotelOffers(ctx, s.offersParams(ids, window, adults))
	if err != nil {
		return nil, err
	}
	availability, err := normalizer.ParseHotelPayload(raw)
	if err != nil {
		return nil, err
	}
	return normalizer.NormalizeHotelListings(list, &availability)
}

func (s *SearchService) offersParams(ids []string, window models.StayWindow, adults int) inventory.HotelOffersParams {
	return inventory.HotelOffersParams{
		HotelIDs:     ids,
		CheckIn:      window.CheckIn,
		CheckOut:     window.CheckOut,
		Adults:       adults,
		RoomQuantity: 1,
		Currency:     s.config.Currency,
		BestRateOnly: true,
	}
}

// classifySearchError maps credential and auth failures to
// ErrProviderUnavailable. Timeouts and provider rejections pass through.
func classifySearchError(err error) error {
	if errors.Is(err, inventory.ErrCredentialsMissing) || errors.Is(err, inventory.ErrAuthRejected) {
		return fmt.Errorf("%w: %w", inventory.ErrProviderUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, inventory.ErrProviderTimeout) {
		return fmt.Errorf("%w: %w", inventory.ErrProviderTimeout, err)
	}
	return err
}
