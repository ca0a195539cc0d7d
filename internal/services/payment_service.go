package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/utils"
	"github.com/tripnest/booking-backend/pkg/payment"
)

// PaymentStore persists payment sessions, orders, transactions and refunds
type PaymentStore interface {
	SaveSession(ctx context.Context, session *models.PaymentSession) error
	GetSession(ctx context.Context, id string) (*models.PaymentSession, error)
	SaveOrder(ctx context.Context, order *models.PaymentOrder) error
	GetOrder(ctx context.Context, id string) (*models.PaymentOrder, error)
	SaveTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	SaveRefund(ctx context.Context, refund *models.RefundRecord) error
	RefundsForTransaction(ctx context.Context, transactionID string) ([]models.RefundRecord, error)
}

// PaymentAuditLogger records payment events
type PaymentAuditLogger interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// PaymentConfig holds configuration for the payment service
type PaymentConfig struct {
	SessionTTL      time.Duration
	SettlementDays  int
	DefaultCurrency string
}

// DefaultPaymentConfig returns default configuration
func DefaultPaymentConfig() PaymentConfig {
	return PaymentConfig{
		SessionTTL:      30 * time.Minute,
		SettlementDays:  3,
		DefaultCurrency: "INR",
	}
}

const orderLockStripes = 64

// PaymentService drives a gateway through session, order, charge, verify and
// refund.
type PaymentService struct {
	gateway payment.Gateway
	store   PaymentStore
	audit   PaymentAuditLogger
	config  PaymentConfig
	logger  *logrus.Logger
	now     func() time.Time
	locks   [orderLockStripes]sync.Mutex
}

// NewPaymentService creates a new payment service. store defaults to memory;
// audit may be nil.
func NewPaymentService(gateway payment.Gateway, store PaymentStore, audit PaymentAuditLogger, config PaymentConfig, logger *logrus.Logger) *PaymentService {
	defaults := DefaultPaymentConfig()
	if config.SessionTTL <= 0 {
		config.SessionTTL = defaults.SessionTTL
	}
	if config.SettlementDays <= 0 {
		config.SettlementDays = defaults.SettlementDays
	}
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = defaults.DefaultCurrency
	}
	if store == nil {
		store = NewMemoryPaymentStore()
	}
	return &PaymentService{
		gateway: gateway,
		store:   store,
		audit:   audit,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the service clock
func (s *PaymentService) SetClock(now func() time.Time) {
	s.now = now
}

// GatewayStatus reports whether the configured gateway is up
func (s *PaymentService) GatewayStatus(ctx context.Context) (*payment.GatewayStatus, error) {
	return s.gateway.Status(ctx)
}

// CreateSession opens a new session. Sessions are never deduplicated.
func (s *PaymentService) CreateSession(ctx context.Context) (*models.PaymentSession, error) {
	now := s.now()
	session := &models.PaymentSession{
		ID:        utils.NewID("SES", now),
		Status:    models.SessionStatusActive,
		Gateway:   s.gateway.Name(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.SessionTTL),
	}

	res, err := s.gateway.CreateSession(ctx, payment.SessionRequest{SessionID: session.ID, ExpiresAt: session.ExpiresAt})
	if err != nil {
		s.logger.WithError(err).Error("Failed to create payment session")
		s.record(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceGateway, s.gateway.Name()).
			SetSession(session.ID).
			SetError(err.Error(), "session_failed"))
		return nil, err
	}
	if res.SessionID != "" {
		session.ID = res.SessionID
	}

	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.record(ctx, models.NewPaymentAudit(models.PaymentEventSessionCreated, models.PaymentSourceBackend, s.gateway.Name()).
		SetSession(session.ID))

	s.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"expires_at": session.ExpiresAt,
	}).Info("Payment session created")

	return session, nil
}

// CreateOrder registers an amount to collect. The order id is minted when
// the caller does not supply one.
func (s *PaymentService) CreateOrder(ctx context.Context, req models.CreatePaymentOrderRequest) (*models.PaymentOrder, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidOrder, err)
	}
	if req.Customer == nil || (strings.TrimSpace(req.Customer.Name) == "" && strings.TrimSpace(req.Customer.Email) == "") {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidOrder, &models.ValidationError{Field: "customer", Message: "name or email is required"})
	}

	now := s.now()
	if req.SessionID != "" {
		session, err := s.store.GetSession(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		if session.Expired(now) {
			return nil, models.ErrSessionExpired
		}
	}

	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		orderID = utils.NewID("ORD", now)
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.config.DefaultCurrency
	}

	unlock := s.lockOrder(orderID)
	defer unlock()

	if existing, err := s.store.GetOrder(ctx, orderID); err == nil {
		if existing.Amount == req.Amount && existing.Currency == currency {
			return existing, nil
		}
		return nil, fmt.Errorf("%w: order %s already exists with a different amount", models.ErrInvalidOrder, orderID)
	}

	if _, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		OrderID:       orderID,
		SessionID:     req.SessionID,
		Amount:        req.Amount,
		Currency:      currency,
		Description:   req.Description,
		CustomerName:  req.Customer.Name,
		CustomerEmail: req.Customer.Email,
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Error("Failed to create payment order")
		return nil, err
	}

	order := &models.PaymentOrder{
		ID:          orderID,
		SessionID:   req.SessionID,
		Amount:      req.Amount,
		Currency:    currency,
		Description: req.Description,
		Customer:    req.Customer,
		Status:      models.PaymentStatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.record(ctx, models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceBackend, s.gateway.Name()).
		SetSession(order.SessionID).
		SetOrder(order.ID).
		SetAmount(order.Amount, order.Currency).
		SetPaymentStatus(order.Status))

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
	}).Info("Payment order created")

	return order, nil
}

// ProcessPayment charges a card against an order. A decline leaves the order
// chargeable; charging an already authorized order returns the existing
// transaction without a new charge.
func (s *PaymentService) ProcessPayment(ctx context.Context, orderID string, card models.CardDetails) (*models.PaymentResult, error) {
	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.PaymentStatusAuthorized, models.PaymentStatusVerified, models.PaymentStatusRefunded:
		txn, err := s.store.GetTransaction(ctx, order.LastTransactionID)
		if err != nil {
			return nil, err
		}
		s.logger.WithField("order_id", orderID).Info("Order already paid, returning existing transaction")
		return &models.PaymentResult{Order: order, Transaction: txn}, nil
	}

	card = card.Sanitized()
	gatewayCard := payment.Card{Number: card.Number, Expiry: card.Expiry, CVV: card.CVV, Holder: card.HolderName}
	if err := payment.ValidateCard(gatewayCard); err != nil {
		s.rejectCard(ctx, order, card, err)
		return nil, err
	}

	now := s.now()
	txnID := utils.NewID("TXN", now)
	order.Attempts++
	order.UpdatedAt = now

	s.record(ctx, models.NewPaymentAudit(models.PaymentEventChargeAttempted, models.PaymentSourceUser, s.gateway.Name()).
		SetOrder(order.ID).
		SetTransaction(txnID).
		SetAmount(order.Amount, order.Currency).
		AddMetadata(map[string]interface{}{"card_last4": card.Last4(), "attempt": order.Attempts}))

	res, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		OrderID:       order.ID,
		TransactionID: txnID,
		Amount:        order.Amount,
		Currency:      order.Currency,
		Card:          gatewayCard,
	})
	if err != nil {
		if saveErr := s.store.SaveOrder(ctx, order); saveErr != nil {
			s.logger.WithError(saveErr).WithField("order_id", order.ID).Error("Failed to save order attempt")
		}
		if errors.Is(err, payment.ErrInvalidCard) {
			s.rejectCard(ctx, order, card, err)
			return nil, err
		}
		s.logger.WithError(err).WithField("order_id", order.ID).Error("Payment gateway charge failed")
		s.record(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceGateway, s.gateway.Name()).
			SetOrder(order.ID).
			SetTransaction(txnID).
			SetError(err.Error(), "gateway_error"))
		return nil, err
	}

	txn := &models.Transaction{
		ID:        res.TransactionID,
		OrderID:   order.ID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		CardLast4: card.Last4(),
		CardBrand: res.Brand,
		CreatedAt: now,
	}
	if txn.ID == "" {
		txn.ID = txnID
	}
	order.LastTransactionID = txn.ID

	if res.Outcome == payment.OutcomeDeclined {
		txn.Status = models.TransactionDeclined
		txn.DeclineReason = res.DeclineReason
		txn.DeclineCode = res.DeclineCode
		order.Status = models.PaymentStatusDeclined
		if err := s.saveCharge(ctx, order, txn); err != nil {
			return nil, err
		}

		s.record(ctx, models.NewPaymentAudit(models.PaymentEventDeclined, models.PaymentSourceGateway, s.gateway.Name()).
			SetOrder(order.ID).
			SetTransaction(txn.ID).
			SetAmount(order.Amount, order.Currency).
			SetPaymentStatus(order.Status).
			SetError(res.DeclineReason, res.DeclineCode))

		s.logger.WithFields(logrus.Fields{
			"order_id":       order.ID,
			"transaction_id": txn.ID,
			"decline_code":   res.DeclineCode,
			"attempt":        order.Attempts,
		}).Warn("Payment declined")

		return nil, &payment.DeclinedError{Reason: res.DeclineReason, Code: res.DeclineCode}
	}

	txn.Status = models.TransactionAuthorized
	txn.AuthCode = res.AuthCode
	order.Status = models.PaymentStatusAuthorized
	order.ChargedAmount = order.Amount
	if err := s.saveCharge(ctx, order, txn); err != nil {
		return nil, err
	}

	s.record(ctx, models.NewPaymentAudit(models.PaymentEventAuthorized, models.PaymentSourceGateway, s.gateway.Name()).
		SetOrder(order.ID).
		SetTransaction(txn.ID).
		SetAmount(order.Amount, order.Currency).
		SetPaymentStatus(order.Status).
		AddMetadata(map[string]interface{}{"auth_code": txn.AuthCode, "card_brand": txn.CardBrand}))

	s.logger.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"transaction_id": txn.ID,
		"amount":         order.Amount,
	}).Info("Payment authorized")

	return &models.PaymentResult{Order: order, Transaction: txn}, nil
}

// VerifyPayment reports the order's current status. The first verify of an
// authorized order marks it verified; later calls return the same answer.
func (s *PaymentService) VerifyPayment(ctx context.Context, orderID string) (*models.PaymentVerification, error) {
	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == models.PaymentStatusAuthorized {
		now := s.now()
		order.Status = models.PaymentStatusVerified
		order.VerifiedAt = &now
		order.UpdatedAt = now
		if err := s.store.SaveOrder(ctx, order); err != nil {
			return nil, fmt.Errorf("failed to save order: %w", err)
		}
		s.record(ctx, models.NewPaymentAudit(models.PaymentEventVerified, models.PaymentSourceBackend, s.gateway.Name()).
			SetOrder(order.ID).
			SetTransaction(order.LastTransactionID).
			SetAmount(order.ChargedAmount, order.Currency).
			SetPaymentStatus(order.Status))
	}

	verification := &models.PaymentVerification{
		OrderID:           order.ID,
		Status:            order.Status,
		Verified:          order.VerifiedAt != nil,
		Amount:            order.Amount,
		Currency:          order.Currency,
		ChargedAmount:     order.ChargedAmount,
		RefundedAmount:    order.RefundedAmount,
		LastTransactionID: order.LastTransactionID,
		Attempts:          order.Attempts,
		VerifiedAt:        order.VerifiedAt,
	}

	if verifier, ok := s.gateway.(payment.Verifier); ok && order.LastTransactionID != "" {
		s.reconcile(ctx, verifier, order, verification)
	}

	return verification, nil
}

// reconcile compares the gateway's view with ours. Gateway errors and
// mismatches are logged and audited but do not fail the verify.
func (s *PaymentService) reconcile(ctx context.Context, verifier payment.Verifier, order *models.PaymentOrder, verification *models.PaymentVerification) {
	remote, err := verifier.Verify(ctx, order.ID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Gateway verification unavailable")
		return
	}
	verification.GatewayStatus = remote.Status

	if !amountsEqual(remote.Amount, order.ChargedAmount) || !amountsEqual(remote.RefundedAmount, order.RefundedAmount) {
		s.logger.WithFields(logrus.Fields{
			"order_id":        order.ID,
			"local_charged":   order.ChargedAmount,
			"remote_charged":  remote.Amount,
			"local_refunded":  order.RefundedAmount,
			"remote_refunded": remote.RefundedAmount,
		}).Error("Payment reconciliation mismatch")

		s.record(ctx, models.NewPaymentAudit(models.PaymentEventReconciliationMismatch, models.PaymentSourceGateway, s.gateway.Name()).
			SetOrder(order.ID).
			SetAmount(order.ChargedAmount, order.Currency).
			SetPaymentStatus(order.Status).
			AddMetadata(map[string]interface{}{
				"remote_status":   remote.Status,
				"remote_amount":   remote.Amount,
				"remote_refunded": remote.RefundedAmount,
			}))
	}
}

// RefundPayment issues a refund. Non-positive amounts are rejected before
// anything is recorded. On a known order the refund must name one of the
// order's authorized transactions and refunds may not add up to more than was
// charged. Refunds for orders this service never saw are accepted.
func (s *PaymentService) RefundPayment(ctx context.Context, req models.RefundRequest) (*models.RefundRecord, error) {
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		s.record(ctx, models.NewPaymentAudit(models.PaymentEventRefundRejected, models.PaymentSourceUser, s.gateway.Name()).
			SetOrder(req.OrderID).
			SetTransaction(req.TransactionID).
			SetError("refund amount must be greater than zero", "invalid_refund_amount"))
		return nil, models.ErrInvalidRefundAmount
	}

	unlock := s.lockOrder(req.OrderID)
	defer unlock()

	currency := s.config.DefaultCurrency
	order, err := s.store.GetOrder(ctx, req.OrderID)
	switch {
	case errors.Is(err, models.ErrOrderNotFound):
		s.logger.WithField("order_id", req.OrderID).Warn("Refund requested for unknown order")
		order = nil
	case err != nil:
		return nil, err
	default:
		currency = order.Currency
	}

	transactionID := req.TransactionID
	if transactionID == "" && order != nil {
		transactionID = order.LastTransactionID
	}

	if err := s.checkRefundLedger(ctx, req, order, transactionID); err != nil {
		return nil, err
	}

	now := s.now()
	refund := &models.RefundRecord{
		ID:                  utils.NewID("RFD", now),
		OrderID:             req.OrderID,
		TransactionID:       transactionID,
		Amount:              req.Amount,
		Currency:            currency,
		Reason:              req.Reason,
		Status:              models.RefundStatusProcessing,
		EstimatedSettlement: now.AddDate(0, 0, s.config.SettlementDays),
		CreatedAt:           now,
	}

	if _, err := s.gateway.Refund(ctx, payment.RefundRequest{
		RefundID:      refund.ID,
		OrderID:       refund.OrderID,
		TransactionID: refund.TransactionID,
		Amount:        refund.Amount,
		Currency:      refund.Currency,
		Reason:        refund.Reason,
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", req.OrderID).Error("Payment gateway refund failed")
		return nil, err
	}

	if err := s.store.SaveRefund(ctx, refund); err != nil {
		return nil, fmt.Errorf("failed to save refund: %w", err)
	}

	if order != nil {
		order.RefundedAmount += refund.Amount
		if order.ChargedAmount > 0 && order.RefundedAmount >= order.ChargedAmount-0.005 {
			order.Status = models.PaymentStatusRefunded
		}
		order.UpdatedAt = now
		if err := s.store.SaveOrder(ctx, order); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to update refunded amount")
		}
	}

	s.record(ctx, models.NewPaymentAudit(models.PaymentEventRefundInitiated, models.PaymentSourceBackend, s.gateway.Name()).
		SetOrder(refund.OrderID).
		SetTransaction(refund.TransactionID).
		SetRefund(refund.ID).
		SetAmount(refund.Amount, refund.Currency).
		AddMetadata(map[string]interface{}{"reason": refund.Reason}))

	s.logger.WithFields(logrus.Fields{
		"refund_id": refund.ID,
		"order_id":  refund.OrderID,
		"amount":    refund.Amount,
	}).Info("Refund initiated")

	return refund, nil
}

func (s *PaymentService) checkRefundLedger(ctx context.Context, req models.RefundRequest, order *models.PaymentOrder, transactionID string) error {
	reject := func(currency, message, code string) error {
		entry := models.NewPaymentAudit(models.PaymentEventRefundRejected, models.PaymentSourceUser, s.gateway.Name()).
			SetOrder(req.OrderID).
			SetTransaction(transactionID).
			SetError(message, code)
		if currency != "" {
			entry.SetAmount(req.Amount, currency)
		}
		s.record(ctx, entry)
		return fmt.Errorf("%w: %s", models.ErrInvalidRefundAmount, message)
	}

	if order != nil {
		if order.ChargedAmount <= 0 {
			return reject(order.Currency, "order has no captured charge", "nothing_charged")
		}
		if order.RefundedAmount+req.Amount > order.ChargedAmount+0.005 {
			return reject(order.Currency, fmt.Sprintf("%.2f already refunded of %.2f charged", order.RefundedAmount, order.ChargedAmount), "refund_exceeds_charge")
		}
		if transactionID == "" {
			return reject(order.Currency, "no transaction to refund", "unknown_transaction")
		}
	}
	if transactionID == "" {
		return nil
	}

	txn, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn == nil {
		if order != nil {
			return reject(order.Currency, fmt.Sprintf("transaction %s is not a charge on order %s", transactionID, order.ID), "unknown_transaction")
		}
		s.logger.WithField("transaction_id", transactionID).Warn("Refund requested for unknown transaction")
		return nil
	}
	if order != nil && txn.OrderID != order.ID {
		return reject(order.Currency, fmt.Sprintf("transaction %s is not a charge on order %s", transactionID, order.ID), "unknown_transaction")
	}

	charged := 0.0
	if txn.Status == models.TransactionAuthorized {
		charged = txn.Amount
	}
	prior, err := s.store.RefundsForTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	refunded := 0.0
	for _, r := range prior {
		refunded += r.Amount
	}

	if refunded+req.Amount > charged+0.005 {
		return reject(txn.Currency, fmt.Sprintf("%.2f already refunded of %.2f charged", refunded, charged), "refund_exceeds_charge")
	}
	return nil
}

func (s *PaymentService) saveCharge(ctx context.Context, order *models.PaymentOrder, txn *models.Transaction) error {
	if err := s.store.SaveTransaction(ctx, txn); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (s *PaymentService) rejectCard(ctx context.Context, order *models.PaymentOrder, card models.CardDetails, err error) {
	s.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"card_last4": card.Last4(),
	}).Warn("Card rejected")

	s.record(ctx, models.NewPaymentAudit(models.PaymentEventInvalidCard, models.PaymentSourceUser, s.gateway.Name()).
		SetOrder(order.ID).
		SetAmount(order.Amount, order.Currency).
		SetError(err.Error(), "invalid_card").
		AddMetadata(map[string]interface{}{"card_last4": card.Last4()}))
}

// record writes an audit entry. Audit failures are logged, never returned.
func (s *PaymentService) record(ctx context.Context, entry *models.PaymentAudit) {
	if s.audit == nil {
		return
	}
	if meta, ok := utils.RequestMetaFrom(ctx); ok {
		entry.SetRequestMetadata(meta.IPAddress, meta.UserAgent, meta.CorrelationID)
		if meta.UserAgent != "" {
			entry.AddMetadata(utils.ParseUserAgent(meta.UserAgent).AsMetadata())
		}
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("event_type", entry.EventType).Error("Failed to write payment audit")
	}
}

// lockOrder serializes work on one order. Orders hash onto a fixed set of
// stripes, so unrelated orders may occasionally wait on each other.
func (s *PaymentService) lockOrder(orderID string) func() {
	h := fnv.New32a()
	h.Write([]byte(orderID))
	mu := &s.locks[h.Sum32()%orderLockStripes]
	mu.Lock()
	return mu.Unlock
}

func amountsEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
