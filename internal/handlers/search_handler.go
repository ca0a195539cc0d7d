package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
)

// SearchOrchestrator is the search surface the handler needs
type SearchOrchestrator interface {
	SearchFlights(ctx context.Context, query models.FlightSearchQuery) ([]models.CanonicalFlightOffer, error)
	SearchHotels(ctx context.Context, query models.HotelSearchQuery) (*models.HotelSearchResult, error)
	GetHotelOffers(ctx context.Context, hotelID string, window models.StayWindow, adults int) ([]models.CanonicalHotelListing, error)
}

// SearchHandler handles HTTP requests for flight and hotel search
type SearchHandler struct {
	service         SearchOrchestrator
	defaultRadiusKm int
	logger          *logrus.Logger
}

// NewSearchHandler creates a new search handler. defaultRadiusKm applies to
// hotel searches that omit a radius.
func NewSearchHandler(service SearchOrchestrator, defaultRadiusKm int, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		service:         service,
		defaultRadiusKm: defaultRadiusKm,
		logger:          logger,
	}
}

// SearchFlights handles GET /api/v1/flights/search
// @Summary Search for flight offers
// @Tags Search
// @Produce json
// @Param from query string true "Origin IATA code"
// @Param to query string true "Destination IATA code"
// @Param departDate query string true "Departure date (YYYY-MM-DD)"
// @Param returnDate query string false "Return date (YYYY-MM-DD)"
// @Param adults query int false "Number of adults"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /api/v1/flights/search [get]
func (h *SearchHandler) SearchFlights(c *gin.Context) {
	var query models.FlightSearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	offers, err := h.service.SearchFlights(c.Request.Context(), query)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if offers == nil {
		offers = []models.CanonicalFlightOffer{}
	}

	respondOK(c, http.StatusOK, offers)
}

// SearchHotels handles GET /api/v1/hotels/search
// @Summary Search hotels in a city
// @Tags Search
// @Produce json
// @Param cityCode query string true "City IATA code"
// @Param checkIn query string false "Check-in date (YYYY-MM-DD)"
// @Param checkOut query string false "Check-out date (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/hotels/search [get]
func (h *SearchHandler) SearchHotels(c *gin.Context) {
	var query models.HotelSearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}
	if query.RadiusKm == 0 {
		query.RadiusKm = h.defaultRadiusKm
	}

	result, err := h.service.SearchHotels(c.Request.Context(), query)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if result.Hotels == nil {
		result.Hotels = []models.CanonicalHotelListing{}
	}

	respondOK(c, http.StatusOK, result)
}

// GetHotelOffers handles GET /api/v1/hotels/:hotelId/offers
func (h *SearchHandler) GetHotelOffers(c *gin.Context) {
	adults := 1
	if raw := c.Query("adults"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, h.logger, &models.ValidationError{Field: "adults", Message: "must be a number"})
			return
		}
		adults = parsed
	}

	window := models.StayWindow{
		CheckIn:  c.Query("checkIn"),
		CheckOut: c.Query("checkOut"),
	}

	offers, err := h.service.GetHotelOffers(c.Request.Context(), c.Param("hotelId"), window, adults)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if offers == nil {
		offers = []models.CanonicalHotelListing{}
	}

	respondOK(c, http.StatusOK, offers)
}
