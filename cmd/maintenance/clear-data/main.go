package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/tripnest/booking-backend/internal/config"
	"github.com/tripnest/booking-backend/internal/database"
)

func main() {
	var (
		dbURLFlag string
		olderThan time.Duration
		all       bool
		confirm   bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.DurationVar(&olderThan, "older-than", 90*24*time.Hour, "delete booking orders and payment audits created before now minus this")
	flag.BoolVar(&all, "all", false, "truncate both tables instead of deleting by age")
	flag.BoolVar(&confirm, "yes", false, "required to actually delete anything")
	flag.Parse()

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	// Build minimal database config without loading full app config
	dbCfg := config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.NewConnection(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	tables := []string{"payment_audits", "booking_orders"}

	if !confirm {
		fmt.Println("Dry run, pass -yes to delete. Current row counts:")
		printCounts(ctx, db, tables)
		return
	}

	if all {
		fmt.Println("Connected to database. Truncating tables...")
		if _, err := db.ExecContext(ctx, `TRUNCATE TABLE payment_audits, booking_orders`); err != nil {
			log.Fatalf("failed to truncate tables: %v", err)
		}
	} else {
		cutoff := time.Now().Add(-olderThan)
		fmt.Printf("Connected to database. Deleting rows created before %s...\n", cutoff.Format(time.RFC3339))
		for _, t := range tables {
			res, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE created_at < $1", t), cutoff)
			if err != nil {
				log.Fatalf("failed to purge %s: %v", t, err)
			}
			n, _ := res.RowsAffected()
			fmt.Printf("  %s: %d deleted\n", t, n)
		}
	}

	fmt.Println("Post-clear row counts:")
	printCounts(ctx, db, tables)
}

func printCounts(ctx context.Context, db *database.PostgresDB, tables []string) {
	for _, t := range tables {
		var count int
		if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
