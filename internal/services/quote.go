package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/pkg/jwt"
)

// QuoteSigner seals pricing outcomes so a later booking call can prove the
// offer and its degraded state came from this service
type QuoteSigner interface {
	GenerateQuoteToken(digest string, degraded bool, reason string, ttl time.Duration) (string, error)
	ValidateQuoteToken(token, digest string) (*jwt.QuoteClaims, error)
}

// BookingConfig holds booking service settings
type BookingConfig struct {
	QuoteTTL time.Duration
}

// DefaultBookingConfig returns the default booking settings
func DefaultBookingConfig() BookingConfig {
	return BookingConfig{QuoteTTL: 30 * time.Minute}
}

// flightQuoteDigest identifies a priced flight offer by its compacted
// provider payload, so whitespace changes on the way back do not matter.
func flightQuoteDigest(raw json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("failed to compact offer: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// hotelQuoteDigest binds a hotel offer id to the price it was quoted at
func hotelQuoteDigest(offerID string, price models.Money) string {
	sum := sha256.Sum256([]byte(offerID + "|" + strconv.FormatFloat(price.Amount, 'f', 2, 64) + "|" + price.Currency))
	return hex.EncodeToString(sum[:])
}

func (s *BookingService) signQuote(digest string, degraded bool, reason string) (string, error) {
	token, err := s.quotes.GenerateQuoteToken(digest, degraded, reason, s.config.QuoteTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign quote: %w", err)
	}
	return token, nil
}

// verifyQuote returns the pricing outcome sealed in token. Any mismatch is a
// validation failure; the caller has to price the offer again.
func (s *BookingService) verifyQuote(token, digest string) (*jwt.QuoteClaims, error) {
	if token == "" {
		return nil, &models.ValidationError{Field: "pricedOffer.quoteToken", Message: "is required, price the offer first"}
	}
	claims, err := s.quotes.ValidateQuoteToken(token, digest)
	if err != nil {
		s.logger.WithError(err).Warn("Rejected priced offer quote")
		return nil, &models.ValidationError{Field: "pricedOffer.quoteToken", Message: "is invalid or expired, price the offer again"}
	}
	return claims, nil
}
