package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/tripnest/booking-backend/internal/models"
)

// BookingOrderRepository handles database operations for booking_orders
type BookingOrderRepository struct {
	db *sqlx.DB
}

// NewBookingOrderRepository creates a new BookingOrderRepository
func NewBookingOrderRepository(db *sqlx.DB) *BookingOrderRepository {
	return &BookingOrderRepository{db: db}
}

// Create inserts a new booking order
func (r *BookingOrderRepository) Create(ctx context.Context, order *models.BookingOrder) error {
	query := `
		INSERT INTO booking_orders (
			order_id, customer_id, kind, confirmation_ref, status, total_amount, currency,
			travelers, contact_email, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := r.db.ExecContext(ctx, query,
		order.OrderID, order.CustomerID, order.Kind, order.ConfirmationRef, order.Status, order.TotalAmount, order.Currency,
		order.Travelers, order.ContactEmail, order.Metadata, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking order: %w", err)
	}
	return nil
}

// GetByID retrieves a booking order by its order id
func (r *BookingOrderRepository) GetByID(ctx context.Context, orderID string) (*models.BookingOrder, error) {
	query := `
		SELECT order_id, customer_id, kind, confirmation_ref, status, total_amount, currency,
			   travelers, contact_email, metadata, created_at, updated_at
		FROM booking_orders
		WHERE order_id = $1`

	var order models.BookingOrder
	if err := r.db.GetContext(ctx, &order, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking order: %w", err)
	}
	return &order, nil
}

// UpdateStatus writes the order's status, metadata and updated_at
func (r *BookingOrderRepository) UpdateStatus(ctx context.Context, order *models.BookingOrder) error {
	query := `
		UPDATE booking_orders
		SET status = $2, metadata = $3, updated_at = $4
		WHERE order_id = $1`

	result, err := r.db.ExecContext(ctx, query, order.OrderID, order.Status, order.Metadata, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrBookingNotFound
	}
	return nil
}
