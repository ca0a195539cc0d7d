package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// EnvironmentURLs maps environment names to gateway API base URLs
var EnvironmentURLs = map[string]string{
	"sandbox":    "https://sandbox.gateway.tripnest.dev/api/rest/version/72",
	"production": "https://gateway.tripnest.com/api/rest/version/72",
}

const maxGatewayBodyBytes = 1 << 20

// HTTPConfig holds the hosted gateway credentials
type HTTPConfig struct {
	Environment string
	BaseURL     string
	MerchantID  string
	APIPassword string
	Timeout     time.Duration
}

// HTTPGateway drives a hosted card gateway over its REST API
type HTTPGateway struct {
	baseURL    string
	merchantID string
	password   string
	client     *http.Client
	logger     *logrus.Logger
	now        func() time.Time
}

// NewHTTPGateway creates a hosted gateway client. BaseURL wins over
// Environment when both are set.
func NewHTTPGateway(cfg HTTPConfig, logger *logrus.Logger) (*HTTPGateway, error) {
	if cfg.MerchantID == "" || cfg.APIPassword == "" {
		return nil, fmt.Errorf("payment gateway not configured: missing merchant credentials")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		u, ok := EnvironmentURLs[cfg.Environment]
		if !ok {
			u = EnvironmentURLs["sandbox"]
		}
		baseURL = u
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantID: cfg.MerchantID,
		password:   cfg.APIPassword,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (g *HTTPGateway) Name() string {
	return "hosted"
}

type gatewayResponse struct {
	Result   string `json:"result"`
	Status   string `json:"status"`
	Response struct {
		GatewayCode     string `json:"gatewayCode"`
		AcquirerMessage string `json:"acquirerMessage"`
	} `json:"response"`
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
	Transaction struct {
		ID                string `json:"id"`
		AuthorizationCode string `json:"authorizationCode"`
	} `json:"transaction"`
	SourceOfFunds struct {
		Provided struct {
			Card struct {
				Brand string `json:"brand"`
			} `json:"card"`
		} `json:"provided"`
	} `json:"sourceOfFunds"`
	Error struct {
		Cause       string `json:"cause"`
		Explanation string `json:"explanation"`
	} `json:"error"`

	// order retrieval
	ID                  string  `json:"id"`
	Amount              float64 `json:"amount"`
	TotalRefundedAmount float64 `json:"totalRefundedAmount"`
}

// Status checks whether the gateway is accepting requests
func (g *HTTPGateway) Status(ctx context.Context) (*GatewayStatus, error) {
	resp, err := g.call(ctx, http.MethodGet, "/information", nil)
	if err != nil {
		return nil, err
	}
	status := resp.Status
	if status == "" {
		status = "OPERATING"
	}
	return &GatewayStatus{Gateway: g.Name(), Status: status, CheckedAt: g.now()}, nil
}

// CreateSession opens a hosted session. The gateway may assign its own id.
func (g *HTTPGateway) CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	body := map[string]interface{}{
		"session": map[string]interface{}{
			"authenticationLimit": 5,
		},
		"correlationId": req.SessionID,
	}
	resp, err := g.call(ctx, http.MethodPost, g.merchantPath("/session"), body)
	if err != nil {
		return nil, err
	}
	id := resp.Session.ID
	if id == "" {
		id = req.SessionID
	}
	return &SessionResult{SessionID: id}, nil
}

// CreateOrder registers the order amount with the gateway
func (g *HTTPGateway) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	body := map[string]interface{}{
		"apiOperation": "INITIATE_CHECKOUT",
		"order": map[string]interface{}{
			"id":          req.OrderID,
			"amount":      formatAmount(req.Amount),
			"currency":    req.Currency,
			"description": req.Description,
		},
	}
	if req.SessionID != "" {
		body["session"] = map[string]string{"id": req.SessionID}
	}
	if req.CustomerEmail != "" {
		body["customer"] = map[string]string{"email": req.CustomerEmail}
	}
	resp, err := g.call(ctx, http.MethodPut, g.merchantPath("/order/"+url.PathEscape(req.OrderID)), body)
	if err != nil {
		return nil, err
	}
	return &OrderResult{OrderID: req.OrderID, Status: resp.Status}, nil
}

// Charge submits a PAY operation. A declined card is a result, not an error.
func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	month, year, _ := strings.Cut(req.Card.Expiry, "/")
	body := map[string]interface{}{
		"apiOperation": "PAY",
		"order": map[string]string{
			"amount":   formatAmount(req.Amount),
			"currency": req.Currency,
		},
		"sourceOfFunds": map[string]interface{}{
			"type": "CARD",
			"provided": map[string]interface{}{
				"card": map[string]interface{}{
					"number":       req.Card.Number,
					"nameOnCard":   req.Card.Holder,
					"securityCode": req.Card.CVV,
					"expiry":       map[string]string{"month": month, "year": year},
				},
			},
		},
	}

	path := g.merchantPath("/order/" + url.PathEscape(req.OrderID) + "/transaction/" + url.PathEscape(req.TransactionID))
	resp, err := g.call(ctx, http.MethodPut, path, body)
	if err != nil {
		return nil, err
	}

	result := &ChargeResult{
		TransactionID: req.TransactionID,
		Brand:         resp.SourceOfFunds.Provided.Card.Brand,
	}
	if resp.Transaction.ID != "" {
		result.TransactionID = resp.Transaction.ID
	}
	if result.Brand == "" {
		result.Brand = CardBrand(req.Card.Number)
	}

	switch {
	case resp.Result == "SUCCESS" && resp.Response.GatewayCode == "APPROVED":
		result.Outcome = OutcomeAuthorized
		result.AuthCode = resp.Transaction.AuthorizationCode
	case resp.Result == "FAILURE":
		result.Outcome = OutcomeDeclined
		result.DeclineCode = strings.ToLower(resp.Response.GatewayCode)
		result.DeclineReason = resp.Response.AcquirerMessage
		if result.DeclineReason == "" {
			result.DeclineReason = "Your card was declined."
		}
	default:
		return nil, fmt.Errorf("%w: unexpected charge result %q/%q", ErrGatewayRejected, resp.Result, resp.Response.GatewayCode)
	}
	return result, nil
}

// Refund submits a REFUND operation for a previous transaction
func (g *HTTPGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	body := map[string]interface{}{
		"apiOperation": "REFUND",
		"transaction": map[string]string{
			"amount":    formatAmount(req.Amount),
			"currency":  req.Currency,
			"reference": req.TransactionID,
		},
	}
	path := g.merchantPath("/order/" + url.PathEscape(req.OrderID) + "/transaction/" + url.PathEscape(req.RefundID))
	if _, err := g.call(ctx, http.MethodPut, path, body); err != nil {
		return nil, err
	}
	return &RefundResult{RefundID: req.RefundID, Status: "PROCESSING"}, nil
}

// Verify retrieves the gateway's view of an order
func (g *HTTPGateway) Verify(ctx context.Context, orderID string) (*VerifyResult, error) {
	resp, err := g.call(ctx, http.MethodGet, g.merchantPath("/order/"+url.PathEscape(orderID)), nil)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		OrderID:        orderID,
		Status:         resp.Status,
		Amount:         resp.Amount,
		RefundedAmount: resp.TotalRefundedAmount,
	}, nil
}

func (g *HTTPGateway) merchantPath(p string) string {
	return "/merchant/" + url.PathEscape(g.merchantID) + p
}

func (g *HTTPGateway) call(ctx context.Context, method, path string, payload interface{}) (*gatewayResponse, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	req.SetBasicAuth("merchant."+g.merchantID, g.password)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).WithField("path", path).Error("Failed to call payment gateway")
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrGatewayUnavailable, err)
	}

	g.logger.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Payment gateway response received")

	var parsed gatewayResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("%w: failed to parse response: %v", ErrGatewayRejected, err)
		}
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 || parsed.Result == "ERROR" {
		msg := parsed.Error.Explanation
		if msg == "" {
			msg = "status " + strconv.Itoa(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, msg)
	}
	return &parsed, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
