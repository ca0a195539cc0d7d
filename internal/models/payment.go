package models

import (
	"strings"
	"time"
)

// SessionStatus represents the state of a payment session
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusExpired SessionStatus = "expired"
)

// PaymentStatus represents where a payment order is in its lifecycle
type PaymentStatus string

const (
	PaymentStatusCreated    PaymentStatus = "order_created"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusDeclined   PaymentStatus = "declined"
	PaymentStatusVerified   PaymentStatus = "verified"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// TransactionStatus is the outcome of a charge attempt
type TransactionStatus string

const (
	TransactionAuthorized TransactionStatus = "authorized"
	TransactionDeclined   TransactionStatus = "declined"
)

// RefundStatus is the state of a refund request
type RefundStatus string

const (
	RefundStatusProcessing RefundStatus = "processing"
)

// PaymentSession is the short-lived context a checkout runs in
type PaymentSession struct {
	ID        string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
	Gateway   string        `json:"gateway"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// Expired reports whether the session's TTL has elapsed at now
func (s *PaymentSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Customer identifies who is paying
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// PaymentOrder is an amount to be collected, optionally inside a session
type PaymentOrder struct {
	ID                string        `json:"orderId"`
	SessionID         string        `json:"sessionId,omitempty"`
	Amount            float64       `json:"amount"`
	Currency          string        `json:"currency"`
	Description       string        `json:"description,omitempty"`
	Customer          *Customer     `json:"customer,omitempty"`
	Status            PaymentStatus `json:"status"`
	ChargedAmount     float64       `json:"chargedAmount"`
	RefundedAmount    float64       `json:"refundedAmount"`
	LastTransactionID string        `json:"lastTransactionId,omitempty"`
	Attempts          int           `json:"attempts"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
	VerifiedAt        *time.Time    `json:"verifiedAt,omitempty"`
}

// CreatePaymentOrderRequest is the input for opening a payment order
type CreatePaymentOrderRequest struct {
	OrderID     string    `json:"orderId"`
	SessionID   string    `json:"sessionId"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Customer    *Customer `json:"customer"`
}

// Validate checks the order request
func (r *CreatePaymentOrderRequest) Validate() error {
	if r.Amount <= 0 {
		return invalid("amount", "must be greater than zero")
	}
	if r.Currency != "" && len(r.Currency) != 3 {
		return invalid("currency", "must be a 3-letter ISO code")
	}
	if r.Customer != nil && r.Customer.Email != "" && !emailPattern.MatchString(r.Customer.Email) {
		return invalid("customer.email", "must be a valid email address")
	}
	return nil
}

// CardDetails is raw card input for a charge
type CardDetails struct {
	Number     string `json:"number" binding:"required"`
	Expiry     string `json:"expiry" binding:"required"`
	CVV        string `json:"cvv" binding:"required"`
	HolderName string `json:"holderName"`
}

// Sanitized strips spaces and dashes from the card number
func (c CardDetails) Sanitized() CardDetails {
	c.Number = strings.NewReplacer(" ", "", "-", "").Replace(c.Number)
	c.Expiry = strings.TrimSpace(c.Expiry)
	c.CVV = strings.TrimSpace(c.CVV)
	return c
}

// Last4 returns the last four digits of the number
func (c CardDetails) Last4() string {
	n := c.Sanitized().Number
	if len(n) < 4 {
		return n
	}
	return n[len(n)-4:]
}

// Transaction is one charge attempt against an order
type Transaction struct {
	ID            string            `json:"transactionId"`
	OrderID       string            `json:"orderId"`
	Status        TransactionStatus `json:"status"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	AuthCode      string            `json:"authCode,omitempty"`
	DeclineReason string            `json:"declineReason,omitempty"`
	DeclineCode   string            `json:"declineCode,omitempty"`
	CardLast4     string            `json:"cardLast4"`
	CardBrand     string            `json:"cardBrand,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// PaymentResult is returned from a successful charge
type PaymentResult struct {
	Order       *PaymentOrder `json:"order"`
	Transaction *Transaction  `json:"transaction"`
}

// RefundRequest is the input for a refund
type RefundRequest struct {
	OrderID       string  `json:"-"`
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
}

// RefundRecord is an accepted refund awaiting settlement
type RefundRecord struct {
	ID                  string       `json:"refundId"`
	OrderID             string       `json:"orderId"`
	TransactionID       string       `json:"transactionId,omitempty"`
	Amount              float64      `json:"amount"`
	Currency            string       `json:"currency"`
	Reason              string       `json:"reason,omitempty"`
	Status              RefundStatus `json:"status"`
	EstimatedSettlement time.Time    `json:"estimatedSettlement"`
	CreatedAt           time.Time    `json:"createdAt"`
}

// PaymentVerification is the read-back view of an order
type PaymentVerification struct {
	OrderID           string        `json:"orderId"`
	Status            PaymentStatus `json:"status"`
	Verified          bool          `json:"verified"`
	Amount            float64       `json:"amount"`
	Currency          string        `json:"currency"`
	ChargedAmount     float64       `json:"chargedAmount"`
	RefundedAmount    float64       `json:"refundedAmount"`
	LastTransactionID string        `json:"lastTransactionId,omitempty"`
	Attempts          int           `json:"attempts"`
	GatewayStatus     string        `json:"gatewayStatus,omitempty"`
	VerifiedAt        *time.Time    `json:"verifiedAt,omitempty"`
}
