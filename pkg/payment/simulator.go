package payment

import (
	"context"
	"fmt"
	"hash/crc32"
	"time"
)

// TestVector fixes the outcome of charging a given card number
type TestVector struct {
	Number  string
	Outcome Outcome
	Reason  string
	Code    string
}

// DefaultTestVectors are the card numbers the simulator recognizes
var DefaultTestVectors = []TestVector{
	{Number: "4111111111111111", Outcome: OutcomeAuthorized},
	{Number: "5555555555554444", Outcome: OutcomeAuthorized},
	{Number: "4242424242424242", Outcome: OutcomeAuthorized},
	{Number: "378282246310005", Outcome: OutcomeAuthorized},
	{Number: "5123450000000008", Outcome: OutcomeAuthorized},
	{Number: "4000000000000002", Outcome: OutcomeDeclined, Reason: "Your card was declined.", Code: "card_declined"},
	{Number: "4000000000009995", Outcome: OutcomeDeclined, Reason: "Your card has insufficient funds.", Code: "insufficient_funds"},
	{Number: "4000000000000069", Outcome: OutcomeDeclined, Reason: "Your card has expired.", Code: "expired_card"},
	{Number: "4000000000000127", Outcome: OutcomeDeclined, Reason: "Your card's security code is incorrect.", Code: "incorrect_cvc"},
}

// Simulator is an in-process gateway whose charge outcomes are keyed off
// card numbers. Numbers not in its vector table are rejected as invalid.
type Simulator struct {
	vectors map[string]TestVector
	now     func() time.Time
}

// NewSimulator creates a simulator. A nil vectors slice uses DefaultTestVectors.
func NewSimulator(vectors []TestVector) *Simulator {
	if vectors == nil {
		vectors = DefaultTestVectors
	}
	table := make(map[string]TestVector, len(vectors))
	for _, v := range vectors {
		table[v.Number] = v
	}
	return &Simulator{
		vectors: table,
		now:     time.Now,
	}
}

func (s *Simulator) Name() string {
	return "simulator"
}

func (s *Simulator) Status(ctx context.Context) (*GatewayStatus, error) {
	return &GatewayStatus{Gateway: s.Name(), Status: "OPERATING", CheckedAt: s.now()}, nil
}

func (s *Simulator) CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	return &SessionResult{SessionID: req.SessionID}, nil
}

func (s *Simulator) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	return &OrderResult{OrderID: req.OrderID, Status: "CREATED"}, nil
}

func (s *Simulator) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	vector, ok := s.vectors[req.Card.Number]
	if !ok {
		return nil, fmt.Errorf("%w: card number is not accepted by this gateway", ErrInvalidCard)
	}

	result := &ChargeResult{
		Outcome:       vector.Outcome,
		TransactionID: req.TransactionID,
		Brand:         CardBrand(req.Card.Number),
	}
	if vector.Outcome == OutcomeDeclined {
		result.DeclineReason = vector.Reason
		result.DeclineCode = vector.Code
		return result, nil
	}

	result.AuthCode = fmt.Sprintf("%06d", crc32.ChecksumIEEE([]byte(req.TransactionID))%1000000)
	return result, nil
}

func (s *Simulator) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	return &RefundResult{RefundID: req.RefundID, Status: "PROCESSING"}, nil
}
