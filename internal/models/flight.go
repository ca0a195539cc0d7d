package models

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultFlightResults = 20
	MaxFlightResults     = 250
	MaxTravelers         = 9
)

var iataCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Money is an amount in a given currency
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// FlightEndpoint is the departure or arrival side of an offer
type FlightEndpoint struct {
	Airport  string `json:"airport"`
	Time     string `json:"time"`
	Date     string `json:"date"`
	Terminal string `json:"terminal,omitempty"`
}

// StopDetail describes a connection between two segments
type StopDetail struct {
	Airport       string `json:"airport"`
	ArrivalTime   string `json:"arrivalTime"`
	DepartureTime string `json:"departureTime"`
	Layover       string `json:"layover"`
}

// CanonicalFlightOffer is the provider-independent view of a flight offer.
// RawProviderOffer holds the provider's bytes and must survive unchanged.
type CanonicalFlightOffer struct {
	ID               string          `json:"id"`
	AirlineCode      string          `json:"airlineCode"`
	AirlineName      string          `json:"airlineName"`
	FlightNumber     string          `json:"flightNumber"`
	Price            Money           `json:"price"`
	Duration         string          `json:"duration"`
	Departure        FlightEndpoint  `json:"departure"`
	Arrival          FlightEndpoint  `json:"arrival"`
	StopCount        int             `json:"stopCount"`
	StopDetails      []StopDetail    `json:"stopDetails"`
	CabinClass       string          `json:"cabinClass"`
	BaggageAllowance string          `json:"baggageAllowance"`
	Refundable       bool            `json:"refundable"`
	Aircraft         string          `json:"aircraft,omitempty"`
	SeatsAvailable   int             `json:"seatsAvailable,omitempty"`
	RawProviderOffer json.RawMessage `json:"rawProviderOffer"`
}

// FlightSearchQuery is a one-way or return flight search
type FlightSearchQuery struct {
	Origin        string `json:"from" form:"from"`
	Destination   string `json:"to" form:"to"`
	DepartureDate string `json:"departDate" form:"departDate"`
	ReturnDate    string `json:"returnDate,omitempty" form:"returnDate"`
	Adults        int    `json:"adults" form:"adults"`
	Max           int    `json:"max,omitempty" form:"max"`
	NonStop       bool   `json:"nonStop,omitempty" form:"nonStop"`
}

// Normalize upper-cases codes, fills defaults and clamps Max to
// 1..MaxFlightResults
func (q *FlightSearchQuery) Normalize() {
	q.Origin = strings.ToUpper(strings.TrimSpace(q.Origin))
	q.Destination = strings.ToUpper(strings.TrimSpace(q.Destination))
	q.DepartureDate = strings.TrimSpace(q.DepartureDate)
	q.ReturnDate = strings.TrimSpace(q.ReturnDate)
	if q.Adults == 0 {
		q.Adults = 1
	}
	if q.Max <= 0 {
		q.Max = DefaultFlightResults
	}
	if q.Max > MaxFlightResults {
		q.Max = MaxFlightResults
	}
}

// Validate checks the query against the given current time
func (q *FlightSearchQuery) Validate(now time.Time) error {
	if !iataCodePattern.MatchString(q.Origin) {
		return invalid("from", "must be a 3-letter IATA code")
	}
	if !iataCodePattern.MatchString(q.Destination) {
		return invalid("to", "must be a 3-letter IATA code")
	}
	if q.Origin == q.Destination {
		return invalid("to", "must differ from origin")
	}

	depart, err := time.Parse(DateLayout, q.DepartureDate)
	if err != nil {
		return invalid("departDate", "must be a date in YYYY-MM-DD format")
	}
	today := truncateToDay(now)
	if depart.Before(today) {
		return invalid("departDate", "must not be in the past")
	}
	if q.ReturnDate != "" {
		ret, err := time.Parse(DateLayout, q.ReturnDate)
		if err != nil {
			return invalid("returnDate", "must be a date in YYYY-MM-DD format")
		}
		if ret.Before(depart) {
			return invalid("returnDate", "must not be before departDate")
		}
	}
	if q.Adults < 1 || q.Adults > MaxTravelers {
		return invalid("adults", "must be between 1 and %d", MaxTravelers)
	}
	return nil
}
