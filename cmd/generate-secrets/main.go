package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tripnest/booking-backend/pkg/jwt"
)

func main() {
	var (
		subject string
		email   string
		roles   string
		issuer  string
		secret  string
		expiry  time.Duration
	)
	flag.StringVar(&subject, "subject", "", "customer id to mint a development access token for")
	flag.StringVar(&email, "email", "", "email claim for the development token")
	flag.StringVar(&roles, "roles", "customer", "comma separated roles for the development token")
	flag.StringVar(&issuer, "issuer", "tripnest", "issuer claim, must match JWT_ISSUER")
	flag.StringVar(&secret, "secret", "", "sign with an existing secret instead of a new one")
	flag.DurationVar(&expiry, "expiry", time.Hour, "development token lifetime")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("JWT Secret Generator for TripNest")
	fmt.Println("===========================================")
	fmt.Println()

	if secret == "" {
		generated, err := generateSecret(32)
		if err != nil {
			log.Fatalf("Failed to generate secret: %v", err)
		}
		secret = generated

		fmt.Println("Add this to your .env file:")
		fmt.Println()
		fmt.Printf("JWT_SECRET=%s\n", secret)
		fmt.Printf("JWT_ISSUER=%s\n", issuer)
		fmt.Println()
	}

	if subject != "" {
		service := jwt.NewService(secret, issuer, expiry)
		token, err := service.GenerateAccessToken(subject, email, splitRoles(roles))
		if err != nil {
			log.Fatalf("Failed to mint access token: %v", err)
		}

		fmt.Printf("Development access token for %s (expires in %s):\n", subject, expiry)
		fmt.Println()
		fmt.Printf("Authorization: Bearer %s\n", token)
		fmt.Println()
	}

	fmt.Println("IMPORTANT: Keep secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}

func generateSecret(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func splitRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
