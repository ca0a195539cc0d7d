package inventory

import "encoding/json"

// ============================================================================
// FLIGHT OFFERS
// ============================================================================

// FlightOffersParams are the query parameters of a flight offer search
type FlightOffersParams struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	Adults        int
	Max           int
	CurrencyCode  string
	NonStop       bool
}

// FlightOffersResponse is the provider's flight offer search document
type FlightOffersResponse struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Data         []FlightOffer `json:"data"`
	Dictionaries Dictionaries  `json:"dictionaries"`
}

// Dictionaries maps codes in the offers to display names
type Dictionaries struct {
	Carriers map[string]string `json:"carriers"`
	Aircraft map[string]string `json:"aircraft"`
}

// FlightOffer is one provider offer. Raw keeps the exact bytes the provider
// sent so they can be echoed back on pricing and booking.
type FlightOffer struct {
	Type                   string            `json:"type"`
	ID                     string            `json:"id"`
	Source                 string            `json:"source"`
	LastTicketingDate      string            `json:"lastTicketingDate"`
	NumberOfBookableSeats  int               `json:"numberOfBookableSeats"`
	Itineraries            []Itinerary       `json:"itineraries"`
	Price                  OfferPrice        `json:"price"`
	PricingOptions         PricingOptions    `json:"pricingOptions"`
	ValidatingAirlineCodes []string          `json:"validatingAirlineCodes"`
	TravelerPricings       []TravelerPricing `json:"travelerPricings"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the offer and retains its raw form.
func (o *FlightOffer) UnmarshalJSON(b []byte) error {
	type plain FlightOffer
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*o = FlightOffer(p)
	o.Raw = append(json.RawMessage(nil), b...)
	return nil
}

type Itinerary struct {
	Duration string    `json:"duration"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	ID            string          `json:"id"`
	Departure     SegmentEndpoint `json:"departure"`
	Arrival       SegmentEndpoint `json:"arrival"`
	CarrierCode   string          `json:"carrierCode"`
	Number        string          `json:"number"`
	Aircraft      AircraftRef     `json:"aircraft"`
	Duration      string          `json:"duration"`
	NumberOfStops int             `json:"numberOfStops"`
}

type AircraftRef struct {
	Code string `json:"code"`
}

type SegmentEndpoint struct {
	IataCode string `json:"iataCode"`
	Terminal string `json:"terminal"`
	At       string `json:"at"`
}

type OfferPrice struct {
	Currency   string `json:"currency"`
	Total      string `json:"total"`
	Base       string `json:"base"`
	GrandTotal string `json:"grandTotal"`
}

type PricingOptions struct {
	FareType                []string `json:"fareType"`
	IncludedCheckedBagsOnly bool     `json:"includedCheckedBagsOnly"`
	RefundableFare          bool     `json:"refundableFare"`
}

type TravelerPricing struct {
	TravelerID           string       `json:"travelerId"`
	FareOption           string       `json:"fareOption"`
	TravelerType         string       `json:"travelerType"`
	FareDetailsBySegment []FareDetail `json:"fareDetailsBySegment"`
}

type FareDetail struct {
	SegmentID           string       `json:"segmentId"`
	Cabin               string       `json:"cabin"`
	FareBasis           string       `json:"fareBasis"`
	Class               string       `json:"class"`
	IncludedCheckedBags *CheckedBags `json:"includedCheckedBags,omitempty"`
}

type CheckedBags struct {
	Quantity   int    `json:"quantity"`
	Weight     int    `json:"weight"`
	WeightUnit string `json:"weightUnit"`
}

// ============================================================================
// FLIGHT ORDERS
// ============================================================================

// FlightOrderRequest is everything needed to create a flight order. Offer is
// written into the request body unchanged.
type FlightOrderRequest struct {
	Offer              json.RawMessage
	Travelers          []Traveler
	Contacts           []Contact
	TicketingAgreement TicketingAgreement
}

type Traveler struct {
	ID          string          `json:"id"`
	DateOfBirth string          `json:"dateOfBirth"`
	Name        TravelerName    `json:"name"`
	Gender      string          `json:"gender"`
	Contact     TravelerContact `json:"contact"`
}

type TravelerName struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type TravelerContact struct {
	EmailAddress string  `json:"emailAddress"`
	Phones       []Phone `json:"phones"`
}

type Phone struct {
	DeviceType         string `json:"deviceType"`
	CountryCallingCode string `json:"countryCallingCode"`
	Number             string `json:"number"`
}

type Contact struct {
	AddresseeName TravelerName `json:"addresseeName"`
	Purpose       string       `json:"purpose"`
	Phones        []Phone      `json:"phones"`
	EmailAddress  string       `json:"emailAddress"`
}

type TicketingAgreement struct {
	Option string `json:"option"`
	Delay  string `json:"delay,omitempty"`
}

// FlightOrderResponse is the provider's flight order document
type FlightOrderResponse struct {
	Data struct {
		Type              string             `json:"type"`
		ID                string             `json:"id"`
		QueuingOfficeID   string             `json:"queuingOfficeId"`
		AssociatedRecords []AssociatedRecord `json:"associatedRecords"`
		FlightOffers      []json.RawMessage  `json:"flightOffers"`
	} `json:"data"`
}

type AssociatedRecord struct {
	Reference        string `json:"reference"`
	CreationDate     string `json:"creationDate"`
	OriginSystemCode string `json:"originSystemCode"`
	FlightOfferID    string `json:"flightOfferId"`
}

// ============================================================================
// HOTELS
// ============================================================================

// HotelListParams are the query parameters of a hotels-by-city lookup
type HotelListParams struct {
	CityCode   string
	RadiusKm   int
	ChainCodes []string
}

// HotelOffersParams are the query parameters of a batch availability lookup
type HotelOffersParams struct {
	HotelIDs     []string
	CheckIn      string
	CheckOut     string
	Adults       int
	RoomQuantity int
	Currency     string
	BestRateOnly bool
}

// HotelListEntry is one element of the hotels-by-city payload
type HotelListEntry struct {
	HotelID   string        `json:"hotelId"`
	Name      string        `json:"name"`
	IataCode  string        `json:"iataCode"`
	ChainCode string        `json:"chainCode"`
	GeoCode   *GeoCode      `json:"geoCode,omitempty"`
	Address   *HotelAddress `json:"address,omitempty"`
	Distance  *Distance     `json:"distance,omitempty"`
	Amenities []string      `json:"amenities,omitempty"`
}

type GeoCode struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type HotelAddress struct {
	CountryCode string   `json:"countryCode"`
	CityName    string   `json:"cityName"`
	PostalCode  string   `json:"postalCode"`
	Lines       []string `json:"lines"`
}

type Distance struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// HotelOfferEntry is one element of the hotel availability payload
type HotelOfferEntry struct {
	Type      string       `json:"type"`
	Available *bool        `json:"available,omitempty"`
	Hotel     OfferedHotel `json:"hotel"`
	Offers    []HotelOffer `json:"offers"`
}

type OfferedHotel struct {
	HotelID   string   `json:"hotelId"`
	Name      string   `json:"name"`
	CityCode  string   `json:"cityCode"`
	ChainCode string   `json:"chainCode"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Amenities []string `json:"amenities,omitempty"`
}

type HotelOffer struct {
	ID           string `json:"id"`
	CheckInDate  string `json:"checkInDate"`
	CheckOutDate string `json:"checkOutDate"`
	Room         struct {
		Type        string `json:"type"`
		Description struct {
			Text string `json:"text"`
		} `json:"description"`
	} `json:"room"`
	Guests struct {
		Adults int `json:"adults"`
	} `json:"guests"`
	Price struct {
		Currency string `json:"currency"`
		Base     string `json:"base"`
		Total    string `json:"total"`
	} `json:"price"`
}

// HotelOrderRequest is everything needed to create a hotel order
type HotelOrderRequest struct {
	OfferID     string
	Guests      []HotelGuest
	AgentEmail  string
	PaymentCard HotelPaymentCard
}

type HotelGuest struct {
	TID       int    `json:"tid"`
	Title     string `json:"title,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

type HotelPaymentCard struct {
	VendorCode string `json:"vendorCode"`
	CardNumber string `json:"cardNumber"`
	ExpiryDate string `json:"expiryDate"`
	HolderName string `json:"holderName"`
}

// HotelOrderResponse is the provider's hotel order document
type HotelOrderResponse struct {
	Data struct {
		Type          string `json:"type"`
		ID            string `json:"id"`
		HotelBookings []struct {
			ID                       string `json:"id"`
			BookingStatus            string `json:"bookingStatus"`
			HotelProviderInformation []struct {
				HotelProviderCode  string `json:"hotelProviderCode"`
				ConfirmationNumber string `json:"confirmationNumber"`
			} `json:"hotelProviderInformation"`
			HotelOffer struct {
				ID    string `json:"id"`
				Price struct {
					Currency string `json:"currency"`
					Total    string `json:"total"`
				} `json:"price"`
			} `json:"hotelOffer"`
		} `json:"hotelBookings"`
		AssociatedRecords []AssociatedRecord `json:"associatedRecords"`
	} `json:"data"`
}
