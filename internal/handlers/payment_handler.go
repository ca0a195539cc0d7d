package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/pkg/payment"
)

// PaymentProcessor is the payment surface the handler needs
type PaymentProcessor interface {
	GatewayStatus(ctx context.Context) (*payment.GatewayStatus, error)
	CreateSession(ctx context.Context) (*models.PaymentSession, error)
	CreateOrder(ctx context.Context, req models.CreatePaymentOrderRequest) (*models.PaymentOrder, error)
	ProcessPayment(ctx context.Context, orderID string, card models.CardDetails) (*models.PaymentResult, error)
	VerifyPayment(ctx context.Context, orderID string) (*models.PaymentVerification, error)
	RefundPayment(ctx context.Context, req models.RefundRequest) (*models.RefundRecord, error)
}

// PaymentAuditReader reads the audit trail of an order
type PaymentAuditReader interface {
	GetByOrderID(ctx context.Context, orderID string) ([]*models.PaymentAudit, error)
}

// PaymentHandler handles payment requests
type PaymentHandler struct {
	service PaymentProcessor
	audits  PaymentAuditReader
	logger  *logrus.Logger
}

// NewPaymentHandler creates a new payment handler. audits may be nil when no
// database is configured.
func NewPaymentHandler(service PaymentProcessor, audits PaymentAuditReader, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		audits:  audits,
		logger:  logger,
	}
}

// GatewayStatus handles GET /api/v1/payments/gateway/status
func (h *PaymentHandler) GatewayStatus(c *gin.Context) {
	status, err := h.service.GatewayStatus(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, status)
}

// CreateSession handles POST /api/v1/payments/session
// @Summary Open a payment session
// @Tags Payments
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Router /api/v1/payments/session [post]
func (h *PaymentHandler) CreateSession(c *gin.Context) {
	session, err := h.service.CreateSession(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, session)
}

// CreateOrder handles POST /api/v1/payments/order
// @Summary Create a payment order
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body models.CreatePaymentOrderRequest true "Order details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/payments/order [post]
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req models.CreatePaymentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusCreated, order)
}

// ProcessPayment handles POST /api/v1/payments/:orderId/pay
// @Summary Charge a card against an order
// @Tags Payments
// @Accept json
// @Produce json
// @Param orderId path string true "Payment order id"
// @Param card body models.CardDetails true "Card details"
// @Success 200 {object} map[string]interface{}
// @Failure 402 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/payments/{orderId}/pay [post]
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	var card models.CardDetails
	if err := c.ShouldBindJSON(&card); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.service.ProcessPayment(c.Request.Context(), c.Param("orderId"), card)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// VerifyPayment handles GET /api/v1/payments/:orderId/verify
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	verification, err := h.service.VerifyPayment(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, verification)
}

// RefundPayment handles POST /api/v1/payments/:orderId/refund
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.OrderID = c.Param("orderId")

	refund, err := h.service.RefundPayment(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusAccepted, refund)
}

// GetAuditTrail handles GET /api/v1/payments/:orderId/audit
func (h *PaymentHandler) GetAuditTrail(c *gin.Context) {
	if h.audits == nil {
		respondFailure(c, http.StatusServiceUnavailable, "AUDIT_UNAVAILABLE", "Payment audit storage is not configured", nil)
		return
	}

	audits, err := h.audits.GetByOrderID(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if audits == nil {
		audits = []*models.PaymentAudit{}
	}
	respondOK(c, http.StatusOK, audits)
}
