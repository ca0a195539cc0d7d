package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/tripnest/booking-backend/internal/models"
)

// MemoryBookingStore keeps booking orders in process memory. It backs the
// booking service when no database is configured.
type MemoryBookingStore struct {
	mu     sync.RWMutex
	orders map[string]models.BookingOrder
}

func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{orders: make(map[string]models.BookingOrder)}
}

func (m *MemoryBookingStore) Create(ctx context.Context, order *models.BookingOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[order.OrderID]; exists {
		return fmt.Errorf("booking %s already exists", order.OrderID)
	}
	m.orders[order.OrderID] = *order
	return nil
}

func (m *MemoryBookingStore) GetByID(ctx context.Context, orderID string) (*models.BookingOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	return &order, nil
}

func (m *MemoryBookingStore) UpdateStatus(ctx context.Context, order *models.BookingOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.OrderID]; !ok {
		return models.ErrBookingNotFound
	}
	m.orders[order.OrderID] = *order
	return nil
}

// MemoryPaymentStore keeps payment state in process memory
type MemoryPaymentStore struct {
	mu           sync.RWMutex
	sessions     map[string]models.PaymentSession
	orders       map[string]models.PaymentOrder
	transactions map[string]models.Transaction
	refunds      map[string][]models.RefundRecord // by transaction id
}

func NewMemoryPaymentStore() *MemoryPaymentStore {
	return &MemoryPaymentStore{
		sessions:     make(map[string]models.PaymentSession),
		orders:       make(map[string]models.PaymentOrder),
		transactions: make(map[string]models.Transaction),
		refunds:      make(map[string][]models.RefundRecord),
	}
}

func (m *MemoryPaymentStore) SaveSession(ctx context.Context, session *models.PaymentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

func (m *MemoryPaymentStore) GetSession(ctx context.Context, id string) (*models.PaymentSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return &session, nil
}

func (m *MemoryPaymentStore) SaveOrder(ctx context.Context, order *models.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = *order
	return nil
}

func (m *MemoryPaymentStore) GetOrder(ctx context.Context, id string) (*models.PaymentOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return &order, nil
}

func (m *MemoryPaymentStore) SaveTransaction(ctx context.Context, txn *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[txn.ID] = *txn
	return nil
}

// GetTransaction returns nil without error when the id is unknown
func (m *MemoryPaymentStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txn, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	return &txn, nil
}

func (m *MemoryPaymentStore) SaveRefund(ctx context.Context, refund *models.RefundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds[refund.TransactionID] = append(m.refunds[refund.TransactionID], *refund)
	return nil
}

func (m *MemoryPaymentStore) RefundsForTransaction(ctx context.Context, transactionID string) ([]models.RefundRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.RefundRecord(nil), m.refunds[transactionID]...), nil
}
