package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/utils"
	"github.com/tripnest/booking-backend/pkg/payment"
)

type fakeAuditLogger struct {
	mu      sync.Mutex
	entries []*models.PaymentAudit
	err     error
}

func (f *fakeAuditLogger) Log(ctx context.Context, audit *models.PaymentAudit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, audit)
	return f.err
}

func (f *fakeAuditLogger) events() []models.PaymentEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PaymentEventType, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.EventType)
	}
	return out
}

func (f *fakeAuditLogger) last(event models.PaymentEventType) *models.PaymentAudit {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].EventType == event {
			return f.entries[i]
		}
	}
	return nil
}

// verifyingGateway is a simulator that also answers reconciliation reads
type verifyingGateway struct {
	*payment.Simulator
	result *payment.VerifyResult
	err    error
}

func (g *verifyingGateway) Verify(ctx context.Context, orderID string) (*payment.VerifyResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

const (
	approvedCard = "4111 1111 1111 1111"
	declinedCard = "4000000000000002"
)

func card(number string) models.CardDetails {
	return models.CardDetails{Number: number, Expiry: "12/28", CVV: "123", HolderName: "Asha Verma"}
}

func setupPaymentTest(t *testing.T, gateway payment.Gateway) (*PaymentService, *MemoryPaymentStore, *fakeAuditLogger) {
	t.Helper()
	if gateway == nil {
		gateway = payment.NewSimulator(nil)
	}
	store := NewMemoryPaymentStore()
	audit := &fakeAuditLogger{}
	svc := NewPaymentService(gateway, store, audit, DefaultPaymentConfig(), quietLogger())
	svc.SetClock(func() time.Time { return testNow })
	return svc, store, audit
}

func createTestOrder(t *testing.T, svc *PaymentService, amount float64) *models.PaymentOrder {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), models.CreatePaymentOrderRequest{
		Amount:   amount,
		Customer: &models.Customer{Name: "Asha Verma", Email: "asha@example.com"},
	})
	require.NoError(t, err)
	return order
}

func TestCreateSession(t *testing.T) {
	svc, store, audit := setupPaymentTest(t, nil)

	first, err := svc.CreateSession(context.Background())
	require.NoError(t, err)
	second, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Regexp(t, `^SES_\d+_[0-9A-F]{8}$`, first.ID)
	assert.Equal(t, models.SessionStatusActive, first.Status)
	assert.Equal(t, testNow.Add(30*time.Minute), first.ExpiresAt)
	assert.Equal(t, "simulator", first.Gateway)

	_, err = store.GetSession(context.Background(), first.ID)
	assert.NoError(t, err)
	assert.Equal(t, []models.PaymentEventType{models.PaymentEventSessionCreated, models.PaymentEventSessionCreated}, audit.events())
}

func TestCreateOrder(t *testing.T) {
	svc, _, audit := setupPaymentTest(t, nil)

	order := createTestOrder(t, svc, 5348)

	assert.Regexp(t, `^ORD_\d+_[0-9A-F]{8}$`, order.ID)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, models.PaymentStatusCreated, order.Status)
	entry := audit.last(models.PaymentEventOrderCreated)
	require.NotNil(t, entry)
	require.NotNil(t, entry.OrderID)
	assert.Equal(t, order.ID, *entry.OrderID)
}

func TestCreateOrder_Rejections(t *testing.T) {
	svc, store, _ := setupPaymentTest(t, nil)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, &models.PaymentSession{ID: "SES_OLD", ExpiresAt: testNow.Add(-time.Minute)}))
	customer := &models.Customer{Email: "asha@example.com"}

	tests := []struct {
		name string
		req  models.CreatePaymentOrderRequest
		want error
	}{
		{name: "zero amount", req: models.CreatePaymentOrderRequest{Amount: 0, Customer: customer}, want: models.ErrInvalidOrder},
		{name: "bad currency", req: models.CreatePaymentOrderRequest{Amount: 10, Currency: "RUPEE", Customer: customer}, want: models.ErrInvalidOrder},
		{name: "no customer", req: models.CreatePaymentOrderRequest{Amount: 10}, want: models.ErrInvalidOrder},
		{name: "unknown session", req: models.CreatePaymentOrderRequest{Amount: 10, SessionID: "SES_NOPE", Customer: customer}, want: models.ErrSessionNotFound},
		{name: "expired session", req: models.CreatePaymentOrderRequest{Amount: 10, SessionID: "SES_OLD", Customer: customer}, want: models.ErrSessionExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateOrder_CallerSuppliedIDIsIdempotent(t *testing.T) {
	svc, _, _ := setupPaymentTest(t, nil)
	ctx := context.Background()
	req := models.CreatePaymentOrderRequest{
		OrderID:  "BKG-7781",
		Amount:   1200,
		Currency: "inr",
		Customer: &models.Customer{Name: "Asha Verma"},
	}

	first, err := svc.CreateOrder(ctx, req)
	require.NoError(t, err)
	second, err := svc.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "INR", second.Currency)

	req.Amount = 1300
	_, err = svc.CreateOrder(ctx, req)
	assert.ErrorIs(t, err, models.ErrInvalidOrder)
}

func TestProcessPayment_Authorized(t *testing.T) {
	svc, store, audit := setupPaymentTest(t, nil)
	order := createTestOrder(t, svc, 2450.5)

	result, err := svc.ProcessPayment(context.Background(), order.ID, card(approvedCard))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusAuthorized, result.Order.Status)
	assert.Equal(t, 2450.5, result.Order.ChargedAmount)
	assert.Equal(t, 1, result.Order.Attempts)
	assert.Equal(t, models.TransactionAuthorized, result.Transaction.Status)
	assert.Equal(t, "1111", result.Transaction.CardLast4)
	assert.Equal(t, "VISA", result.Transaction.CardBrand)
	assert.Len(t, result.Transaction.AuthCode, 6)
	assert.Regexp(t, `^TXN_\d+_[0-9A-F]{8}$`, result.Transaction.ID)

	stored, err := store.GetTransaction(context.Background(), result.Transaction.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.Equal(t, []models.PaymentEventType{
		models.PaymentEventOrderCreated,
		models.PaymentEventChargeAttempted,
		models.PaymentEventAuthorized,
	}, audit.events())
}

func TestProcessPayment_DeclineThenRetry(t *testing.T) {
	svc, _, audit := setupPaymentTest(t, nil)
	order := createTestOrder(t, svc, 999)

	_, err := svc.ProcessPayment(context.Background(), order.ID, card(declinedCard))
	require.ErrorIs(t, err, payment.ErrDeclined)
	var declined *payment.DeclinedError
	require.True(t, errors.As(err, &declined))
	assert.Equal(t, "card_declined", declined.Code)
	assert.Equal(t, "Your card was declined.", declined.Reason)

	entry := audit.last(models.PaymentEventDeclined)
	require.NotNil(t, entry)
	require.NotNil(t, entry.ErrorCode)
	assert.Equal(t, "card_declined", *entry.ErrorCode)

	result, err := svc.ProcessPayment(context.Background(), order.ID, card(approvedCard))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusAuthorized, result.Order.Status)
	assert.Equal(t, 2, result.Order.Attempts)
}

func TestProcessPayment_InvalidCards(t *testing.T) {
	tests := []struct {
		name   string
		number string
		expiry string
	}{
		{name: "unknown number", number: "4012888888881881", expiry: "12/28"},
		{name: "too short", number: "4111", expiry: "12/28"},
		{name: "bad expiry", number: "4111111111111111", expiry: "2028-12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, audit := setupPaymentTest(t, nil)
			order := createTestOrder(t, svc, 100)

			c := card(tt.number)
			c.Expiry = tt.expiry
			_, err := svc.ProcessPayment(context.Background(), order.ID, c)

			assert.ErrorIs(t, err, payment.ErrInvalidCard)
			assert.NotErrorIs(t, err, payment.ErrDeclined)
			assert.NotNil(t, audit.last(models.PaymentEventInvalidCard))
			assert.Nil(t, audit.last(models.PaymentEventAuthorized))

			stored, err := store.GetOrder(context.Background(), order.ID)
			require.NoError(t, err)
			assert.Equal(t, models.PaymentStatusCreated, stored.Status)
		})
	}
}

func TestProcessPayment_ChargingPaidOrderReturnsExistingTransaction(t *testing.T) {
	svc, _, audit := setupPaymentTest(t, nil)
	order := createTestOrder(t, svc, 750)

	first, err := svc.ProcessPayment(context.Background(), order.ID, card(approvedCard))
	require.NoError(t, err)
	second, err := svc.ProcessPayment(context.Background(), order.ID, card(approvedCard))
	require.NoError(t, err)

	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, 1, second.Order.Attempts)

	charges := 0
	for _, e := range audit.events() {
		if e == models.PaymentEventChargeAttempted {
			charges++
		}
	}
	assert.Equal(t, 1, charges)
}

func TestProcessPayment_ConcurrentChargesAuthorizeOnce(t *testing.T) {
	svc, _, _ := setupPaymentTest(t, nil)
	order := createTestOrder(t, svc, 300)

	var wg sync.WaitGroup
	ids := make([]string, 5)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.ProcessPayment(context.Background(), order.ID, card(approvedCard))
			if err == nil {
				ids[i] = result.Transaction.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.NotEmpty(t, ids[0])
}

func TestProcessPayment_UnknownOrder(t *testing.T) {
	svc, _, _ := setupPaymentTest(t, nil)

	_, err := svc.ProcessPayment(context.Background(), "ORD_MISSING", card(approvedCard))
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestVerifyPayment_IsStable(t *testing.T) {
	svc, _, audit := setupPaymentTest(t, nil)
	order := createTestOrder(t, svc, 1500)
	_, err := svc.ProcessPayment(context.Background(), order.ID, card(approvedCard))
	require.NoError(t, err)

	first, err := svc.VerifyPayment(context.Background(), order.ID)
	require.NoError(t, err)
	second, err := svc.VerifyPayment(context.Background(), order.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusVerified, first.Status)
	assert.True(t, first.Verified)
	assert.Equal(t, first, second)

	verified := 0
	for _, e := range audit.events() {
		if e == models.PaymentEventVerified {
			verified++
		}
	}
	assert.Equal(t, 1, verified)
}

func TestVerifyPayment_UnpaidOrder(t *testing.T) {
	svc, _, _ := setupPaymentTest(t, nil)
	order := createTestOrder(t, svc, 1500)

	v, err := svc.VerifyPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCreated, v.Status)
	assert.False(t, v.Verified)
}

func TestVerifyPayment_ReconciliationMismatchIsAudited(t *testing.T) {
	gateway := &verifyingGateway{
		Simulator: payment.NewSimulator(nil),
		result:    &payment.VerifyResult{Status: "CAPTURED", Amount: 1400},
	}
	svc, _, audit := setupPaymentTest(t, gateway)
	order := createTestOrder(t, svc, 1500)
	_, err := svc.ProcessPayment(context.Background(), order.ID, card(approvedCard))
	require.NoError(t, err)

	v, err := svc.VerifyPayment(context.Background(), order.ID)
	require.NoError(t, err)

	assert.Equal(t, "CAPTURED", v.GatewayStatus)
	entry := audit.last(models.PaymentEventReconciliationMismatch)
	require.NotNil(t, entry)
	assert.Equal(t, 1400.0, entry.Metadata["remote_amount"])
}

func TestVerifyPayment_GatewayFailureDoesNotFailVerify(t *testing.T) {
	gateway := &verifyingGateway{Simulator: payment.NewSimulator(nil), err: payment.ErrGatewayUnavailable}
	svc, _, audit := setupPaymentTest(t, gateway)
	order := createTestOrder(t, svc, 1500)
	_, err := svc.ProcessPayment(context.Background(), order.ID, card(approvedCard))
	require.NoError(t, err)

	v, err := svc.VerifyPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusVerified, v.Status)
	assert.Empty(t, v.GatewayStatus)
	assert.Nil(t, audit.last(models.PaymentEventReconciliationMismatch))
}

func TestRefundPayment_RejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []float64{-5, 0, math.NaN(), math.Inf(1)} {
		svc, store, audit := setupPaymentTest(t, nil)

		_, err := svc.RefundPayment(context.Background(), models.RefundRequest{OrderID: "ORD_1", TransactionID: "TXN_1", Amount: amount})

		assert.ErrorIs(t, err, models.ErrInvalidRefundAmount)
		refunds, err := store.RefundsForTransaction(context.Background(), "TXN_1")
		require.NoError(t, err)
		assert.Empty(t, refunds)
		assert.NotNil(t, audit.last(models.PaymentEventRefundRejected))
		assert.Nil(t, audit.last(models.PaymentEventRefundInitiated))
	}
}

func TestRefundPayment_PartialThenFull(t *testing.T) {
	svc, store, audit := setupPaymentTest(t, nil)
	ctx := context.Background()
	order := createTestOrder(t, svc, 1000)
	paid, err := svc.ProcessPayment(ctx, order.ID, card(approvedCard))
	require.NoError(t, err)

	refund, err := svc.RefundPayment(ctx, models.RefundRequest{OrderID: order.ID, Amount: 400, Reason: "schedule change"})
	require.NoError(t, err)
	assert.Regexp(t, `^RFD_\d+_[0-9A-F]{8}$`, refund.ID)
	assert.Equal(t, paid.Transaction.ID, refund.TransactionID)
	assert.Equal(t, models.RefundStatusProcessing, refund.Status)
	assert.Equal(t, testNow.AddDate(0, 0, 3), refund.EstimatedSettlement)
	assert.Equal(t, "INR", refund.Currency)

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 400.0, stored.RefundedAmount)
	assert.Equal(t, models.PaymentStatusAuthorized, stored.Status)

	_, err = svc.RefundPayment(ctx, models.RefundRequest{OrderID: order.ID, Amount: 700})
	assert.ErrorIs(t, err, models.ErrInvalidRefundAmount)

	_, err = svc.RefundPayment(ctx, models.RefundRequest{OrderID: order.ID, Amount: 600})
	require.NoError(t, err)
	stored, err = store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, stored.RefundedAmount)
	assert.Equal(t, models.PaymentStatusRefunded, stored.Status)

	entry := audit.last(models.PaymentEventRefundInitiated)
	require.NotNil(t, entry)
	require.NotNil(t, entry.RefundID)
}

func TestRefundPayment_DeclinedTransactionHasNothingToRefund(t *testing.T) {
	svc, _, _ := setupPaymentTest(t, nil)
	order := createTestOrder(t, svc, 1000)
	_, err := svc.ProcessPayment(context.Background(), order.ID, card(declinedCard))
	require.ErrorIs(t, err, payment.ErrDeclined)

	_, err = svc.RefundPayment(context.Background(), models.RefundRequest{OrderID: order.ID, Amount: 10})
	assert.ErrorIs(t, err, models.ErrInvalidRefundAmount)
}

func TestRefundPayment_UnknownOrderIsAccepted(t *testing.T) {
	svc, store, _ := setupPaymentTest(t, nil)

	refund, err := svc.RefundPayment(context.Background(), models.RefundRequest{OrderID: "ORD_LEGACY", TransactionID: "TXN_LEGACY", Amount: 250})
	require.NoError(t, err)

	assert.Equal(t, "ORD_LEGACY", refund.OrderID)
	assert.Equal(t, "INR", refund.Currency)
	refunds, err := store.RefundsForTransaction(context.Background(), "TXN_LEGACY")
	require.NoError(t, err)
	assert.Len(t, refunds, 1)
}

func TestRefundPayment_KnownOrderRejectsForeignTransactions(t *testing.T) {
	svc, store, audit := setupPaymentTest(t, nil)
	ctx := context.Background()
	order := createTestOrder(t, svc, 100)
	paid, err := svc.ProcessPayment(ctx, order.ID, card(approvedCard))
	require.NoError(t, err)

	other := createTestOrder(t, svc, 100)
	otherPaid, err := svc.ProcessPayment(ctx, other.ID, card(approvedCard))
	require.NoError(t, err)

	_, err = svc.RefundPayment(ctx, models.RefundRequest{OrderID: order.ID, TransactionID: paid.Transaction.ID, Amount: 100})
	require.NoError(t, err)

	tests := []struct {
		name          string
		transactionID string
	}{
		{"same transaction again", paid.Transaction.ID},
		{"made up transaction", "TXN_FAKE"},
		{"another order's transaction", otherPaid.Transaction.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RefundPayment(ctx, models.RefundRequest{OrderID: order.ID, TransactionID: tt.transactionID, Amount: 100})
			assert.ErrorIs(t, err, models.ErrInvalidRefundAmount)
		})
	}

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.ChargedAmount)
	assert.Equal(t, 100.0, stored.RefundedAmount)

	fake, err := store.RefundsForTransaction(ctx, "TXN_FAKE")
	require.NoError(t, err)
	assert.Empty(t, fake)
	assert.NotNil(t, audit.last(models.PaymentEventRefundRejected))
}

func TestRefundPayment_ChargedOrderRejectsTransactionsItDoesNotOwn(t *testing.T) {
	svc, store, audit := setupPaymentTest(t, nil)
	ctx := context.Background()
	order := createTestOrder(t, svc, 1000)
	_, err := svc.ProcessPayment(ctx, order.ID, card(approvedCard))
	require.NoError(t, err)

	other := createTestOrder(t, svc, 1000)
	otherPaid, err := svc.ProcessPayment(ctx, other.ID, card(approvedCard))
	require.NoError(t, err)

	for _, txnID := range []string{"TXN_FAKE", otherPaid.Transaction.ID} {
		_, err = svc.RefundPayment(ctx, models.RefundRequest{OrderID: order.ID, TransactionID: txnID, Amount: 10})
		assert.ErrorIs(t, err, models.ErrInvalidRefundAmount, txnID)

		entry := audit.last(models.PaymentEventRefundRejected)
		require.NotNil(t, entry)
		require.NotNil(t, entry.ErrorCode)
		assert.Equal(t, "unknown_transaction", *entry.ErrorCode)
	}

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.RefundedAmount)
	otherRefunds, err := store.RefundsForTransaction(ctx, otherPaid.Transaction.ID)
	require.NoError(t, err)
	assert.Empty(t, otherRefunds)
}

func TestRefundPayment_NeverChargedOrder(t *testing.T) {
	svc, store, audit := setupPaymentTest(t, nil)
	ctx := context.Background()
	order := createTestOrder(t, svc, 1000)

	_, err := svc.RefundPayment(ctx, models.RefundRequest{OrderID: order.ID, Amount: 50})
	assert.ErrorIs(t, err, models.ErrInvalidRefundAmount)

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.RefundedAmount)
	entry := audit.last(models.PaymentEventRefundRejected)
	require.NotNil(t, entry)
	require.NotNil(t, entry.ErrorCode)
	assert.Equal(t, "nothing_charged", *entry.ErrorCode)
	assert.Nil(t, audit.last(models.PaymentEventRefundInitiated))
}

func TestLockOrder_SerializesSameOrder(t *testing.T) {
	svc, _, _ := setupPaymentTest(t, nil)

	for i := 0; i < 10000; i++ {
		release := svc.lockOrder(fmt.Sprintf("ORD_%d", i))
		release()
	}

	// the same order id always maps to the same stripe
	unlock := svc.lockOrder("ORD_1")
	acquired := make(chan struct{})
	go func() {
		release := svc.lockOrder("ORD_1")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same order acquired while the first was held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not released")
	}
}

func TestPaymentAudit_CarriesRequestMetadata(t *testing.T) {
	svc, _, audit := setupPaymentTest(t, nil)
	ctx := utils.WithRequestMeta(context.Background(), utils.RequestMeta{
		IPAddress:     "203.0.113.9",
		UserAgent:     "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		CorrelationID: "corr-42",
	})

	_, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	entry := audit.last(models.PaymentEventSessionCreated)
	require.NotNil(t, entry)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "203.0.113.9", *entry.IPAddress)
	require.NotNil(t, entry.CorrelationID)
	assert.Equal(t, "corr-42", *entry.CorrelationID)
	assert.Equal(t, "mobile", entry.Metadata["device_type"])
}

func TestPaymentAudit_FailureDoesNotFailPayment(t *testing.T) {
	svc, _, audit := setupPaymentTest(t, nil)
	audit.err = errors.New("audit table locked")

	order := createTestOrder(t, svc, 100)
	_, err := svc.ProcessPayment(context.Background(), order.ID, card(approvedCard))
	assert.NoError(t, err)
}
