package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/middleware"
	"github.com/tripnest/booking-backend/internal/models"
)

// BookingPipeline is the pricing and booking surface the handler needs
type BookingPipeline interface {
	PriceOffer(ctx context.Context, offer models.CanonicalFlightOffer) (*models.PricedOffer, error)
	CreateBooking(ctx context.Context, customerID string, priced *models.PricedOffer, travelers []models.TravelerInput, contact *models.ContactInput) (*models.BookingOrder, error)
	PriceHotelOffer(ctx context.Context, offerID string) (*models.PricedHotelOffer, error)
	CreateHotelBooking(ctx context.Context, customerID string, priced *models.PricedHotelOffer, guests []models.HotelGuestInput, card models.HotelPaymentCard) (*models.BookingOrder, error)
	ApplyProviderStatus(ctx context.Context, orderID, status string) (*models.BookingOrder, error)
	GetBooking(ctx context.Context, customerID, orderID string) (*models.BookingOrder, error)
}

// PriceFlightRequest is the body of POST /flights/price
type PriceFlightRequest struct {
	Offer models.CanonicalFlightOffer `json:"offer"`
}

// BookFlightRequest is the body of POST /flights/book
type BookFlightRequest struct {
	PricedOffer models.PricedOffer     `json:"pricedOffer"`
	Travelers   []models.TravelerInput `json:"travelers" binding:"required,min=1,dive"`
	Contact     *models.ContactInput   `json:"contact"`
}

// PriceHotelRequest is the body of POST /hotels/price
type PriceHotelRequest struct {
	OfferID string `json:"offerId" binding:"required"`
}

// BookHotelRequest is the body of POST /hotels/book
type BookHotelRequest struct {
	PricedOffer models.PricedHotelOffer  `json:"pricedOffer"`
	Guests      []models.HotelGuestInput `json:"guests" binding:"required,min=1,dive"`
	Payment     models.HotelPaymentCard  `json:"payment"`
}

// ProviderStatusRequest is the body of POST /webhooks/bookings/:orderId/status
type ProviderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// BookingHandler handles pricing and booking requests
type BookingHandler struct {
	service BookingPipeline
	logger  *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(service BookingPipeline, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		logger:  logger,
	}
}

// PriceFlight handles POST /api/v1/flights/price
// @Summary Re-price a flight offer before booking
// @Tags Booking
// @Accept json
// @Produce json
// @Param request body PriceFlightRequest true "Offer to price"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/flights/price [post]
func (h *BookingHandler) PriceFlight(c *gin.Context) {
	var req PriceFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	priced, err := h.service.PriceOffer(c.Request.Context(), req.Offer)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusOK, priced)
}

// BookFlight handles POST /api/v1/flights/book
// @Summary Create a flight order from a priced offer
// @Tags Booking
// @Accept json
// @Produce json
// @Param request body BookFlightRequest true "Priced offer and travelers"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/flights/book [post]
func (h *BookingHandler) BookFlight(c *gin.Context) {
	var req BookFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.service.CreateBooking(c.Request.Context(), callerID(c), &req.PricedOffer, req.Travelers, req.Contact)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusCreated, order)
}

// PriceHotel handles POST /api/v1/hotels/price
func (h *BookingHandler) PriceHotel(c *gin.Context) {
	var req PriceHotelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	priced, err := h.service.PriceHotelOffer(c.Request.Context(), req.OfferID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusOK, priced)
}

// BookHotel handles POST /api/v1/hotels/book
func (h *BookingHandler) BookHotel(c *gin.Context) {
	var req BookHotelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.service.CreateHotelBooking(c.Request.Context(), callerID(c), &req.PricedOffer, req.Guests, req.Payment)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusCreated, order)
}

// ApplyProviderStatus handles POST /api/v1/webhooks/bookings/:orderId/status.
// The route is authenticated with the provider webhook secret.
func (h *BookingHandler) ApplyProviderStatus(c *gin.Context) {
	var req ProviderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.service.ApplyProviderStatus(c.Request.Context(), c.Param("orderId"), req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}

// GetBooking handles GET /api/v1/bookings/:orderId
func (h *BookingHandler) GetBooking(c *gin.Context) {
	order, err := h.service.GetBooking(c.Request.Context(), callerID(c), c.Param("orderId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}

// callerID is the authenticated customer, or empty when auth is disabled
func callerID(c *gin.Context) string {
	customer, _ := middleware.GetCustomerContext(c)
	return customer.CustomerID
}
