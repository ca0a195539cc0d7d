package services

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
)

// Strategy names reported in HotelSearchResult.Strategy
const (
	StrategyUnpriced          = "unpriced"
	StrategyPrimaryBatch      = "primary-batch"
	StrategyKnownGoodFallback = "known-good-fallback"
)

// names carrying these markers are sandbox test properties
var testPropertyPattern = regexp.MustCompile(`\b(TEST|SANDBOX|DUMMY|SYNTHETIC|DO NOT BOOK)\b`)

var majorChainPattern = regexp.MustCompile(`\b(HILTON|MARRIOTT|HYATT|SHERATON|WESTIN|RADISSON|NOVOTEL|IBIS|HOLIDAY INN|CROWNE PLAZA|INTERCONTINENTAL|TAJ|OBEROI|ITC)\b`)

var majorChainCodes = map[string]bool{
	"HL": true, "HH": true, "MC": true, "HY": true, "SI": true, "WI": true, "RD": true,
	"NO": true, "IB": true, "HI": true, "CP": true, "IC": true, "TJ": true, "OB": true,
}

// ScoreHotel ranks a listing for availability lookups. A negative score
// marks a synthetic or test property.
func ScoreHotel(l models.CanonicalHotelListing) int {
	name := strings.ToUpper(l.Name)
	if testPropertyPattern.MatchString(name) {
		return -1
	}

	score := 0
	if strings.Contains(name, "HOTEL") {
		score++
	}
	if isMajorChain(name, l.ChainCode) {
		score += 2
	}
	return score
}

func isMajorChain(name, chainCode string) bool {
	return majorChainCodes[strings.ToUpper(chainCode)] || majorChainPattern.MatchString(name)
}

// PrioritizeHotels drops test properties and orders the rest by score,
// keeping provider order among equals. If nothing survives the filter the
// unfiltered list is returned as given.
func PrioritizeHotels(listings []models.CanonicalHotelListing) []models.CanonicalHotelListing {
	kept := make([]models.CanonicalHotelListing, 0, len(listings))
	for _, l := range listings {
		l.Priority = ScoreHotel(l)
		if l.Priority >= 0 {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return append([]models.CanonicalHotelListing(nil), listings...)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Priority > kept[j].Priority
	})
	return kept
}

func topHotelIDs(listings []models.CanonicalHotelListing, limit int) []string {
	ids := make([]string, 0, limit)
	for _, l := range listings {
		if len(ids) == limit {
			break
		}
		if l.ID != "" {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// errTryNext tells the strategy runner to move on without treating the
// outcome as a failure.
var errTryNext = errors.New("strategy produced no result")

// hotelStrategy is one step of the availability fallback chain
type hotelStrategy struct {
	name string
	run  func(ctx context.Context) ([]models.CanonicalHotelListing, error)
}

// runHotelStrategies tries each strategy in order and returns the first
// non-empty result. Strategy errors are logged and skipped; only a cancelled
// context stops the chain.
func runHotelStrategies(ctx context.Context, logger *logrus.Logger, strategies []hotelStrategy) ([]models.CanonicalHotelListing, string, error) {
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		listings, err := s.run(ctx)
		if err == nil && len(listings) > 0 {
			return listings, s.name, nil
		}
		if err != nil && !errors.Is(err, errTryNext) {
			logger.WithError(err).WithField("strategy", s.name).Warn("Hotel availability strategy failed")
		}
	}
	return []models.CanonicalHotelListing{}, "", nil
}
