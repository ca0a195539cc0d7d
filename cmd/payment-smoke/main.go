package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/config"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/internal/services"
	"github.com/tripnest/booking-backend/pkg/payment"
)

// payment-smoke drives the payment lifecycle against the built-in simulator
// and exits non-zero if any step misbehaves.
func main() {
	fmt.Println("TripNest payment smoke run")
	fmt.Println("--------------------------")

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	// Zero values fall back to the service defaults when no .env is present
	var defaults config.PaymentConfig
	if cfg, err := config.Load(); err == nil {
		defaults = cfg.Payment
	}

	svc := services.NewPaymentService(payment.NewSimulator(nil), services.NewMemoryPaymentStore(), nil, services.PaymentConfig{
		SessionTTL:      defaults.SessionTTL,
		SettlementDays:  defaults.SettlementDays,
		DefaultCurrency: defaults.DefaultCurrency,
	}, logger)

	ctx := context.Background()
	failures := 0
	step := func(name string, err error) {
		if err != nil {
			failures++
			fmt.Printf("FAIL  %s: %v\n", name, err)
			return
		}
		fmt.Printf("OK    %s\n", name)
	}

	session, err := svc.CreateSession(ctx)
	step("create session", err)
	if err != nil {
		os.Exit(1)
	}

	customer := &models.Customer{Name: "Smoke Test", Email: "smoke@tripnest.test"}

	order, err := svc.CreateOrder(ctx, models.CreatePaymentOrderRequest{
		SessionID: session.ID,
		Amount:    2450.50,
		Customer:  customer,
	})
	step("create order", err)
	if err != nil {
		os.Exit(1)
	}

	result, err := svc.ProcessPayment(ctx, order.ID, models.CardDetails{Number: "4111 1111 1111 1111", Expiry: "12/30", CVV: "123"})
	step("authorize approved card", err)

	verification, err := svc.VerifyPayment(ctx, order.ID)
	if err == nil && !verification.Verified {
		err = fmt.Errorf("order %s not verified, status %s", order.ID, verification.Status)
	}
	step("verify payment", err)

	if result != nil {
		_, err = svc.RefundPayment(ctx, models.RefundRequest{
			OrderID:       order.ID,
			TransactionID: result.Transaction.ID,
			Amount:        450.50,
			Reason:        "smoke partial refund",
		})
		step("partial refund", err)
	}

	declineOrder, err := svc.CreateOrder(ctx, models.CreatePaymentOrderRequest{Amount: 99, Customer: customer})
	step("create second order", err)
	if err == nil {
		_, err = svc.ProcessPayment(ctx, declineOrder.ID, models.CardDetails{Number: "4000000000000002", Expiry: "12/30", CVV: "123"})
		var declined *payment.DeclinedError
		if errors.As(err, &declined) {
			err = nil
		} else if err == nil {
			err = fmt.Errorf("expected a decline")
		}
		step("decline test card", err)
	}

	fmt.Println("--------------------------")
	if failures > 0 {
		log.Fatalf("%d step(s) failed", failures)
	}
	fmt.Println("All payment steps passed")
}
