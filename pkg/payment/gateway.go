package payment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	ErrInvalidCard        = errors.New("invalid card")
	ErrDeclined           = errors.New("payment declined")
	ErrGatewayTimeout     = errors.New("payment gateway timed out")
	ErrGatewayRejected    = errors.New("payment gateway rejected request")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// DeclinedError carries the gateway's decline reason
type DeclinedError struct {
	Reason string
	Code   string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s (%s)", e.Reason, e.Code)
}

func (e *DeclinedError) Is(target error) bool {
	return target == ErrDeclined
}

// Outcome is the result of a charge attempt
type Outcome string

const (
	OutcomeAuthorized Outcome = "AUTHORIZED"
	OutcomeDeclined   Outcome = "DECLINED"
)

// Card is the raw card presented for a charge
type Card struct {
	Number string
	Expiry string
	CVV    string
	Holder string
}

// Gateway is the set of operations a payment gateway adapter must provide.
// Identifiers are minted by the caller and passed in.
type Gateway interface {
	Name() string
	Status(ctx context.Context) (*GatewayStatus, error)
	CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error)
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// Verifier is implemented by gateways that can report an order's remote
// state for reconciliation.
type Verifier interface {
	Verify(ctx context.Context, orderID string) (*VerifyResult, error)
}

type GatewayStatus struct {
	Gateway   string    `json:"gateway"`
	Status    string    `json:"status"`
	CheckedAt time.Time `json:"checkedAt"`
}

type SessionRequest struct {
	SessionID string
	ExpiresAt time.Time
}

type SessionResult struct {
	SessionID string
}

type OrderRequest struct {
	OrderID       string
	SessionID     string
	Amount        float64
	Currency      string
	Description   string
	CustomerName  string
	CustomerEmail string
}

type OrderResult struct {
	OrderID string
	Status  string
}

type ChargeRequest struct {
	OrderID       string
	TransactionID string
	Amount        float64
	Currency      string
	Card          Card
}

type ChargeResult struct {
	Outcome       Outcome
	TransactionID string
	AuthCode      string
	Brand         string
	DeclineReason string
	DeclineCode   string
}

type RefundRequest struct {
	RefundID      string
	OrderID       string
	TransactionID string
	Amount        float64
	Currency      string
	Reason        string
}

type RefundResult struct {
	RefundID string
	Status   string
}

type VerifyResult struct {
	OrderID        string
	Status         string
	Amount         float64
	RefundedAmount float64
}

var (
	cardNumberPattern = regexp.MustCompile(`^[0-9]{13,19}$`)
	cvvPattern        = regexp.MustCompile(`^[0-9]{3,4}$`)
	expiryPattern     = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
)

// ValidateCard checks the card's format. The check is purely syntactic: no
// checksum is applied and the expiry date is not compared with the clock,
// which is the gateway's call.
func ValidateCard(card Card) error {
	if !cardNumberPattern.MatchString(card.Number) {
		return fmt.Errorf("%w: card number must be 13 to 19 digits", ErrInvalidCard)
	}
	if !cvvPattern.MatchString(card.CVV) {
		return fmt.Errorf("%w: cvv must be 3 or 4 digits", ErrInvalidCard)
	}
	if !expiryPattern.MatchString(card.Expiry) {
		return fmt.Errorf("%w: expiry must be MM/YY", ErrInvalidCard)
	}
	return nil
}

// CardBrand guesses the scheme from the number prefix
func CardBrand(number string) string {
	switch {
	case len(number) == 0:
		return ""
	case number[0] == '4':
		return "VISA"
	case len(number) >= 2 && (number[:2] == "34" || number[:2] == "37"):
		return "AMEX"
	case len(number) >= 2 && number[0] == '5' && number[1] >= '1' && number[1] <= '5':
		return "MASTERCARD"
	case len(number) >= 4 && number[:4] >= "2221" && number[:4] <= "2720":
		return "MASTERCARD"
	}
	return "UNKNOWN"
}
