package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JSONB is a free-form JSON object column
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	return scanJSON(value, j)
}

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventSessionCreated         PaymentEventType = "session_created"
	PaymentEventOrderCreated           PaymentEventType = "order_created"
	PaymentEventChargeAttempted        PaymentEventType = "charge_attempted"
	PaymentEventAuthorized             PaymentEventType = "payment_authorized"
	PaymentEventDeclined               PaymentEventType = "payment_declined"
	PaymentEventInvalidCard            PaymentEventType = "invalid_card"
	PaymentEventVerified               PaymentEventType = "payment_verified"
	PaymentEventRefundInitiated        PaymentEventType = "refund_initiated"
	PaymentEventRefundRejected         PaymentEventType = "refund_rejected"
	PaymentEventReconciliationMismatch PaymentEventType = "reconciliation_mismatch"
	PaymentEventError                  PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend PaymentEventSource = "backend"
	PaymentSourceGateway PaymentEventSource = "gateway"
	PaymentSourceUser    PaymentEventSource = "user"
)

// PaymentAudit is an append-only record of a payment event
type PaymentAudit struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	SessionID     *string            `json:"session_id,omitempty" db:"session_id"`
	OrderID       *string            `json:"order_id,omitempty" db:"order_id"`
	TransactionID *string            `json:"transaction_id,omitempty" db:"transaction_id"`
	RefundID      *string            `json:"refund_id,omitempty" db:"refund_id"`
	EventType     PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource   PaymentEventSource `json:"event_source" db:"event_source"`
	Gateway       string             `json:"gateway" db:"gateway"`

	Amount        *float64 `json:"amount,omitempty" db:"amount"`
	Currency      *string  `json:"currency,omitempty" db:"currency"`
	PaymentStatus *string  `json:"payment_status,omitempty" db:"payment_status"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	ErrorCode    *string `json:"error_code,omitempty" db:"error_code"`

	IPAddress     *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent     *string `json:"user_agent,omitempty" db:"user_agent"`
	CorrelationID *string `json:"correlation_id,omitempty" db:"correlation_id"`
	Metadata      JSONB   `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource, gateway string) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		Gateway:     gateway,
		CreatedAt:   time.Now(),
	}
}

// SetSession sets the session id
func (pa *PaymentAudit) SetSession(sessionID string) *PaymentAudit {
	if sessionID != "" {
		pa.SessionID = &sessionID
	}
	return pa
}

// SetOrder sets the order id
func (pa *PaymentAudit) SetOrder(orderID string) *PaymentAudit {
	if orderID != "" {
		pa.OrderID = &orderID
	}
	return pa
}

// SetTransaction sets the transaction id
func (pa *PaymentAudit) SetTransaction(transactionID string) *PaymentAudit {
	if transactionID != "" {
		pa.TransactionID = &transactionID
	}
	return pa
}

// SetRefund sets the refund id
func (pa *PaymentAudit) SetRefund(refundID string) *PaymentAudit {
	if refundID != "" {
		pa.RefundID = &refundID
	}
	return pa
}

// SetAmount sets the amount involved in the event
func (pa *PaymentAudit) SetAmount(amount float64, currency string) *PaymentAudit {
	pa.Amount = &amount
	pa.Currency = &currency
	return pa
}

// SetPaymentStatus sets the resulting payment status
func (pa *PaymentAudit) SetPaymentStatus(status PaymentStatus) *PaymentAudit {
	s := string(status)
	pa.PaymentStatus = &s
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message, code string) *PaymentAudit {
	pa.ErrorMessage = &message
	if code != "" {
		pa.ErrorCode = &code
	}
	return pa
}

// SetRequestMetadata sets caller details
func (pa *PaymentAudit) SetRequestMetadata(ip, userAgent, correlationID string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	if correlationID != "" {
		pa.CorrelationID = &correlationID
	}
	return pa
}

// AddMetadata merges key/value pairs into the metadata document
func (pa *PaymentAudit) AddMetadata(values map[string]interface{}) *PaymentAudit {
	if len(values) == 0 {
		return pa
	}
	if pa.Metadata == nil {
		pa.Metadata = JSONB{}
	}
	for k, v := range values {
		pa.Metadata[k] = v
	}
	return pa
}
