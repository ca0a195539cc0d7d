package models

import (
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"

	DefaultStayLeadDays = 30
	DefaultStayNights   = 3
	DefaultHotelRadius  = 5
	MaxHotelRadius      = 300
)

// GeoCode is a latitude/longitude pair
type GeoCode struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CanonicalHotelListing is the provider-independent view of a hotel. Price is
// nil when availability was not requested or could not be obtained.
type CanonicalHotelListing struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ChainCode  string   `json:"chainCode,omitempty"`
	CityCode   string   `json:"cityCode"`
	Location   string   `json:"location,omitempty"`
	Address    string   `json:"address,omitempty"`
	GeoCode    *GeoCode `json:"geoCode,omitempty"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
	Amenities  []string `json:"amenities,omitempty"`
	Price      *float64 `json:"price"`
	Currency   string   `json:"currency,omitempty"`
	OfferID    string   `json:"offerId,omitempty"`
	RoomType   string   `json:"roomType,omitempty"`
	CheckIn    string   `json:"checkIn,omitempty"`
	CheckOut   string   `json:"checkOut,omitempty"`
	Priority   int      `json:"-"`
}

// Priced reports whether the listing carries a usable price
func (l CanonicalHotelListing) Priced() bool {
	return l.Price != nil && l.OfferID != ""
}

// HotelSearchQuery is a hotels-in-city search, optionally with stay dates
type HotelSearchQuery struct {
	CityCode string `json:"cityCode" form:"cityCode"`
	CheckIn  string `json:"checkIn,omitempty" form:"checkIn"`
	CheckOut string `json:"checkOut,omitempty" form:"checkOut"`
	Adults   int    `json:"adults" form:"adults"`
	RadiusKm int    `json:"radiusKm,omitempty" form:"radius"`
}

// Normalize upper-cases the city code and fills defaults
func (q *HotelSearchQuery) Normalize() {
	q.CityCode = strings.ToUpper(strings.TrimSpace(q.CityCode))
	q.CheckIn = strings.TrimSpace(q.CheckIn)
	q.CheckOut = strings.TrimSpace(q.CheckOut)
	if q.Adults == 0 {
		q.Adults = 1
	}
	if q.RadiusKm == 0 {
		q.RadiusKm = DefaultHotelRadius
	}
}

// Validate checks the static constraints of the query
func (q *HotelSearchQuery) Validate() error {
	if !iataCodePattern.MatchString(q.CityCode) {
		return invalid("cityCode", "must be a 3-letter IATA city code")
	}
	if q.Adults < 1 || q.Adults > MaxTravelers {
		return invalid("adults", "must be between 1 and %d", MaxTravelers)
	}
	if q.RadiusKm < 1 || q.RadiusKm > MaxHotelRadius {
		return invalid("radius", "must be between 1 and %d", MaxHotelRadius)
	}
	if q.CheckOut != "" && q.CheckIn == "" {
		return invalid("checkIn", "is required when checkOut is given")
	}
	return nil
}

// DatesRequested reports whether the caller asked for priced availability
func (q *HotelSearchQuery) DatesRequested() bool {
	return q.CheckIn != ""
}

// StayWindow is a check-in/check-out pair in YYYY-MM-DD form
type StayWindow struct {
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

// ResolveStayWindow returns the stay to price. Missing dates are synthesized:
// check-in leadDays from now, check-out nights after check-in.
func (q *HotelSearchQuery) ResolveStayWindow(now time.Time, leadDays, nights int) (StayWindow, error) {
	if leadDays <= 0 {
		leadDays = DefaultStayLeadDays
	}
	if nights <= 0 {
		nights = DefaultStayNights
	}

	today := truncateToDay(now)
	checkIn := today.AddDate(0, 0, leadDays)
	if q.CheckIn != "" {
		parsed, err := time.Parse(DateLayout, q.CheckIn)
		if err != nil {
			return StayWindow{}, invalid("checkIn", "must be a date in YYYY-MM-DD format")
		}
		if parsed.Before(today) {
			return StayWindow{}, invalid("checkIn", "must not be in the past")
		}
		checkIn = parsed
	}

	checkOut := checkIn.AddDate(0, 0, nights)
	if q.CheckOut != "" {
		parsed, err := time.Parse(DateLayout, q.CheckOut)
		if err != nil {
			return StayWindow{}, invalid("checkOut", "must be a date in YYYY-MM-DD format")
		}
		if !parsed.After(checkIn) {
			return StayWindow{}, invalid("checkOut", "must be after checkIn")
		}
		checkOut = parsed
	}

	return StayWindow{
		CheckIn:  checkIn.Format(DateLayout),
		CheckOut: checkOut.Format(DateLayout),
	}, nil
}

// HotelSearchResult is the normalized hotel search response
type HotelSearchResult struct {
	Hotels           []CanonicalHotelListing `json:"hotels"`
	CheckIn          string                  `json:"checkIn"`
	CheckOut         string                  `json:"checkOut"`
	DatesSynthesized bool                    `json:"datesSynthesized"`
	Priced           bool                    `json:"priced"`
	Strategy         string                  `json:"strategy"`
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
