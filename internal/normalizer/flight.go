package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/pkg/inventory"
)

const (
	providerTimeLayout = "2006-01-02T15:04:05"
	defaultCabin       = "ECONOMY"
	defaultBaggage     = "23kg"
)

// NormalizeFlightOffers maps provider offers to canonical offers in input
// order. Offers without at least one segment are dropped and logged.
func NormalizeFlightOffers(offers []inventory.FlightOffer, dict inventory.Dictionaries, logger *logrus.Logger) []models.CanonicalFlightOffer {
	result := make([]models.CanonicalFlightOffer, 0, len(offers))
	for _, offer := range offers {
		canonical, err := NormalizeFlightOffer(offer, dict)
		if err != nil {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"offer_id": offer.ID,
				}).WithError(err).Warn("Dropping malformed flight offer")
			}
			continue
		}
		result = append(result, canonical)
	}
	return result
}

// NormalizeFlightOffer maps a single offer. Only the first itinerary is
// described; the raw offer keeps the rest.
func NormalizeFlightOffer(offer inventory.FlightOffer, dict inventory.Dictionaries) (models.CanonicalFlightOffer, error) {
	if len(offer.Itineraries) == 0 || len(offer.Itineraries[0].Segments) == 0 {
		return models.CanonicalFlightOffer{}, fmt.Errorf("offer %q has no segments", offer.ID)
	}

	itinerary := offer.Itineraries[0]
	segments := itinerary.Segments
	first := segments[0]
	last := segments[len(segments)-1]

	airlineCode := first.CarrierCode
	if len(offer.ValidatingAirlineCodes) > 0 && offer.ValidatingAirlineCodes[0] != "" {
		airlineCode = offer.ValidatingAirlineCodes[0]
	}

	raw := offer.Raw
	if len(raw) == 0 {
		// offers built in code rather than decoded have no captured bytes
		encoded, err := json.Marshal(offer)
		if err != nil {
			return models.CanonicalFlightOffer{}, fmt.Errorf("encode offer %q: %w", offer.ID, err)
		}
		raw = encoded
	}

	canonical := models.CanonicalFlightOffer{
		ID:               offer.ID,
		AirlineCode:      airlineCode,
		AirlineName:      lookup(dict.Carriers, airlineCode),
		FlightNumber:     first.CarrierCode + first.Number,
		Price:            offerMoney(offer.Price),
		Duration:         itineraryDuration(itinerary),
		Departure:        endpoint(first.Departure),
		Arrival:          endpoint(last.Arrival),
		StopCount:        len(segments) - 1,
		StopDetails:      stopDetails(segments),
		CabinClass:       defaultCabin,
		BaggageAllowance: defaultBaggage,
		Refundable:       offer.PricingOptions.RefundableFare,
		Aircraft:         lookup(dict.Aircraft, first.Aircraft.Code),
		SeatsAvailable:   offer.NumberOfBookableSeats,
		RawProviderOffer: raw,
	}

	if fare, ok := firstFareDetail(offer); ok {
		if fare.Cabin != "" {
			canonical.CabinClass = fare.Cabin
		}
		if bags := fare.IncludedCheckedBags; bags != nil {
			canonical.BaggageAllowance = describeBaggage(*bags)
		}
	}

	return canonical, nil
}

// PricedOfferMoney extracts the price of a raw (priced) offer
func PricedOfferMoney(raw json.RawMessage) (models.Money, bool) {
	var offer struct {
		Price inventory.OfferPrice `json:"price"`
	}
	if err := json.Unmarshal(raw, &offer); err != nil {
		return models.Money{}, false
	}
	if offer.Price.GrandTotal == "" && offer.Price.Total == "" {
		return models.Money{}, false
	}
	return offerMoney(offer.Price), true
}

func offerMoney(p inventory.OfferPrice) models.Money {
	amount := p.GrandTotal
	if amount == "" {
		amount = p.Total
	}
	value, _ := strconv.ParseFloat(amount, 64)
	return models.Money{Amount: value, Currency: p.Currency}
}

// itineraryDuration renders the provider's ISO duration. Segment times are
// airport-local, so they are not used to derive one.
func itineraryDuration(it inventory.Itinerary) string {
	return HumanizeISODuration(it.Duration)
}

func endpoint(e inventory.SegmentEndpoint) models.FlightEndpoint {
	out := models.FlightEndpoint{Airport: e.IataCode, Terminal: e.Terminal}
	if t, err := time.Parse(providerTimeLayout, e.At); err == nil {
		out.Date = t.Format(models.DateLayout)
		out.Time = t.Format("15:04")
		return out
	}
	if date, clock, ok := strings.Cut(e.At, "T"); ok {
		out.Date = date
		out.Time = clock
	}
	return out
}

func stopDetails(segments []inventory.Segment) []models.StopDetail {
	stops := make([]models.StopDetail, 0, len(segments)-1)
	for i := 0; i < len(segments)-1; i++ {
		in := segments[i].Arrival
		out := segments[i+1].Departure
		stop := models.StopDetail{
			Airport:       in.IataCode,
			ArrivalTime:   endpoint(in).Time,
			DepartureTime: endpoint(out).Time,
			Layover:       FormatDuration(0),
		}
		arr, err1 := time.Parse(providerTimeLayout, in.At)
		dep, err2 := time.Parse(providerTimeLayout, out.At)
		if err1 == nil && err2 == nil {
			stop.Layover = FormatDuration(dep.Sub(arr))
		}
		stops = append(stops, stop)
	}
	return stops
}

func firstFareDetail(offer inventory.FlightOffer) (inventory.FareDetail, bool) {
	for _, tp := range offer.TravelerPricings {
		if len(tp.FareDetailsBySegment) > 0 {
			return tp.FareDetailsBySegment[0], true
		}
	}
	return inventory.FareDetail{}, false
}

func describeBaggage(b inventory.CheckedBags) string {
	switch {
	case b.Weight > 0:
		unit := b.WeightUnit
		if unit == "" {
			unit = "KG"
		}
		return fmt.Sprintf("%d%s", b.Weight, strings.ToLower(unit))
	case b.Quantity > 0:
		return fmt.Sprintf("%dPC", b.Quantity)
	}
	return defaultBaggage
}

func lookup(dict map[string]string, code string) string {
	if name, ok := dict[code]; ok && name != "" {
		return name
	}
	return code
}
