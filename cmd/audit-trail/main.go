package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/config"
	"github.com/tripnest/booking-backend/internal/database"
)

// audit-trail prints the recorded payment events for one order.
func main() {
	var (
		orderID  string
		asJSON   bool
		deadline time.Duration
	)
	flag.StringVar(&orderID, "order", "", "payment order id")
	flag.BoolVar(&asJSON, "json", false, "print raw audit rows as JSON")
	flag.DurationVar(&deadline, "timeout", 10*time.Second, "query timeout")
	flag.Parse()

	if orderID == "" {
		log.Fatal("-order is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	db, err := database.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	audits, err := database.NewPaymentAuditRepository(db.DB, logger).GetByOrderID(ctx, orderID)
	if err != nil {
		log.Fatalf("Failed to load audit trail: %v", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(audits); err != nil {
			log.Fatalf("Failed to encode audit trail: %v", err)
		}
		return
	}

	fmt.Printf("=== Payment audit trail for %s (%d events) ===\n", orderID, len(audits))
	for _, a := range audits {
		line := fmt.Sprintf("%s  %-24s %-8s %s", a.CreatedAt.Format(time.RFC3339), a.EventType, a.EventSource, a.Gateway)
		if a.Amount != nil {
			currency := ""
			if a.Currency != nil {
				currency = *a.Currency
			}
			line += fmt.Sprintf("  %.2f %s", *a.Amount, currency)
		}
		if a.TransactionID != nil {
			line += "  txn=" + *a.TransactionID
		}
		if a.ErrorMessage != nil {
			line += "  error=" + *a.ErrorMessage
		}
		fmt.Println(line)
	}
}
