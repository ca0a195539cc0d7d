package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/services"
	"github.com/tripnest/booking-backend/pkg/payment"
)

type fakeAuditReader struct {
	audits []*models.PaymentAudit
	err    error
}

func (f *fakeAuditReader) GetByOrderID(ctx context.Context, orderID string) ([]*models.PaymentAudit, error) {
	return f.audits, f.err
}

func setupPaymentHandler(audits PaymentAuditReader) *gin.Engine {
	svc := services.NewPaymentService(payment.NewSimulator(nil), services.NewMemoryPaymentStore(), nil, services.DefaultPaymentConfig(), quietLogger())

	router := newTestRouter()
	h := NewPaymentHandler(svc, audits, quietLogger())
	router.GET("/payments/gateway/status", h.GatewayStatus)
	router.POST("/payments/session", h.CreateSession)
	router.POST("/payments/order", h.CreateOrder)
	router.POST("/payments/:orderId/pay", h.ProcessPayment)
	router.GET("/payments/:orderId/verify", h.VerifyPayment)
	router.POST("/payments/:orderId/refund", h.RefundPayment)
	router.GET("/payments/:orderId/audit", h.GetAuditTrail)
	return router
}

func createOrder(t *testing.T, router *gin.Engine, amount float64) models.PaymentOrder {
	t.Helper()

	w, env := doRequest(t, router, http.MethodPost, "/payments/order", map[string]interface{}{
		"amount":   amount,
		"currency": "INR",
		"customer": map[string]string{"name": "Asha Verma", "email": "asha@example.com"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order models.PaymentOrder
	require.NoError(t, json.Unmarshal(env.Data, &order))
	require.NotEmpty(t, order.ID)
	return order
}

func pay(t *testing.T, router *gin.Engine, orderID, number string) (int, envelope) {
	t.Helper()
	w, env := doRequest(t, router, http.MethodPost, "/payments/"+orderID+"/pay", map[string]string{
		"number": number,
		"expiry": "12/30",
		"cvv":    "123",
	})
	return w.Code, env
}

func TestGatewayStatus(t *testing.T) {
	router := setupPaymentHandler(nil)

	w, env := doRequest(t, router, http.MethodGet, "/payments/gateway/status", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var status payment.GatewayStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "simulator", status.Gateway)
}

func TestCreateSession(t *testing.T) {
	router := setupPaymentHandler(nil)

	w, env := doRequest(t, router, http.MethodPost, "/payments/session", nil)

	require.Equal(t, http.StatusCreated, w.Code)
	var session models.PaymentSession
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.NotEmpty(t, session.ID)
	assert.True(t, session.ExpiresAt.After(session.CreatedAt))
}

func TestCreateOrder_Rejections(t *testing.T) {
	router := setupPaymentHandler(nil)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"malformed", `{"amount":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"zero amount", map[string]interface{}{"amount": 0, "customer": map[string]string{"name": "Asha"}}, http.StatusBadRequest, "INVALID_ORDER"},
		{"no customer", map[string]interface{}{"amount": 100}, http.StatusBadRequest, "INVALID_ORDER"},
		{"unknown session", map[string]interface{}{"amount": 100, "sessionId": "SES_missing", "customer": map[string]string{"name": "Asha"}}, http.StatusNotFound, "SESSION_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doRequest(t, router, http.MethodPost, "/payments/order", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestProcessPayment_AuthorizedThenVerified(t *testing.T) {
	router := setupPaymentHandler(nil)
	order := createOrder(t, router, 2450.50)

	code, env := pay(t, router, order.ID, "4111111111111111")
	require.Equal(t, http.StatusOK, code)

	var result models.PaymentResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, models.PaymentStatusAuthorized, result.Order.Status)
	assert.Equal(t, "1111", result.Transaction.CardLast4)

	first, firstEnv := doRequest(t, router, http.MethodGet, "/payments/"+order.ID+"/verify", nil)
	second, secondEnv := doRequest(t, router, http.MethodGet, "/payments/"+order.ID+"/verify", nil)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)

	var v1, v2 models.PaymentVerification
	require.NoError(t, json.Unmarshal(firstEnv.Data, &v1))
	require.NoError(t, json.Unmarshal(secondEnv.Data, &v2))
	assert.Equal(t, v1.Status, v2.Status)
	assert.True(t, v2.Verified)
}

func TestProcessPayment_Declined(t *testing.T) {
	router := setupPaymentHandler(nil)
	order := createOrder(t, router, 999)

	code, env := pay(t, router, order.ID, "4000000000000002")

	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PAYMENT_DECLINED", env.Error.Code)
}

func TestProcessPayment_InvalidCard(t *testing.T) {
	router := setupPaymentHandler(nil)
	order := createOrder(t, router, 999)

	code, env := pay(t, router, order.ID, "1234")

	assert.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_CARD", env.Error.Code)
}

func TestProcessPayment_UnknownOrder(t *testing.T) {
	router := setupPaymentHandler(nil)

	code, env := pay(t, router, "ORD_missing", "4111111111111111")

	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ORDER_NOT_FOUND", env.Error.Code)
}

func TestRefundPayment(t *testing.T) {
	router := setupPaymentHandler(nil)
	order := createOrder(t, router, 1000)
	code, _ := pay(t, router, order.ID, "4111111111111111")
	require.Equal(t, http.StatusOK, code)

	w, env := doRequest(t, router, http.MethodPost, "/payments/"+order.ID+"/refund", map[string]interface{}{"amount": -5})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_REFUND_AMOUNT", env.Error.Code)

	w, env = doRequest(t, router, http.MethodPost, "/payments/"+order.ID+"/refund", map[string]interface{}{"amount": 400, "reason": "schedule change"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var refund models.RefundRecord
	require.NoError(t, json.Unmarshal(env.Data, &refund))
	assert.Equal(t, order.ID, refund.OrderID)
	assert.Equal(t, 400.0, refund.Amount)
	assert.NotEmpty(t, refund.ID)
}

func TestGetAuditTrail(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		router := setupPaymentHandler(nil)
		w, env := doRequest(t, router, http.MethodGet, "/payments/ORD_1/audit", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "AUDIT_UNAVAILABLE", env.Error.Code)
	})

	t.Run("entries", func(t *testing.T) {
		entry := models.NewPaymentAudit(models.PaymentEventAuthorized, models.PaymentSourceGateway, "simulator").SetOrder("ORD_1")
		router := setupPaymentHandler(&fakeAuditReader{audits: []*models.PaymentAudit{entry}})

		w, env := doRequest(t, router, http.MethodGet, "/payments/ORD_1/audit", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"event_type":"payment_authorized"`)
	})

	t.Run("empty", func(t *testing.T) {
		router := setupPaymentHandler(&fakeAuditReader{})
		w, env := doRequest(t, router, http.MethodGet, "/payments/ORD_1/audit", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, string(env.Data))
	})

	t.Run("read failure", func(t *testing.T) {
		router := setupPaymentHandler(&fakeAuditReader{err: errors.New("connection reset")})
		w, _ := doRequest(t, router, http.MethodGet, "/payments/ORD_1/audit", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
