package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 5, 10, 15, 30, 0, 0, time.UTC)

func TestFlightSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name      string
		query     FlightSearchQuery
		wantField string
	}{
		{name: "valid one way", query: FlightSearchQuery{Origin: "del", Destination: "jai", DepartureDate: "2025-06-01"}},
		{name: "valid same day", query: FlightSearchQuery{Origin: "DEL", Destination: "BOM", DepartureDate: "2025-05-10"}},
		{name: "bad origin", query: FlightSearchQuery{Origin: "DELHI", Destination: "JAI", DepartureDate: "2025-06-01"}, wantField: "from"},
		{name: "same airports", query: FlightSearchQuery{Origin: "DEL", Destination: "DEL", DepartureDate: "2025-06-01"}, wantField: "to"},
		{name: "past date", query: FlightSearchQuery{Origin: "DEL", Destination: "JAI", DepartureDate: "2025-05-09"}, wantField: "departDate"},
		{name: "bad date", query: FlightSearchQuery{Origin: "DEL", Destination: "JAI", DepartureDate: "06/01/2025"}, wantField: "departDate"},
		{name: "return before depart", query: FlightSearchQuery{Origin: "DEL", Destination: "JAI", DepartureDate: "2025-06-05", ReturnDate: "2025-06-01"}, wantField: "returnDate"},
		{name: "too many adults", query: FlightSearchQuery{Origin: "DEL", Destination: "JAI", DepartureDate: "2025-06-01", Adults: 10}, wantField: "adults"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			q.Normalize()
			err := q.Validate(testNow)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestFlightSearchQuery_NormalizeClampsMax(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{name: "unset uses default", max: 0, want: DefaultFlightResults},
		{name: "negative uses default", max: -3, want: DefaultFlightResults},
		{name: "in range kept", max: 40, want: 40},
		{name: "upper bound kept", max: MaxFlightResults, want: MaxFlightResults},
		{name: "above bound clamped", max: 1000, want: MaxFlightResults},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := FlightSearchQuery{Origin: "DEL", Destination: "JAI", DepartureDate: "2025-06-01", Max: tt.max}
			q.Normalize()
			assert.Equal(t, tt.want, q.Max)
			assert.NoError(t, q.Validate(testNow))
		})
	}
}

func TestHotelSearchQuery_ResolveStayWindow(t *testing.T) {
	tests := []struct {
		name         string
		query        HotelSearchQuery
		wantCheckIn  string
		wantCheckOut string
		wantErr      bool
	}{
		{name: "synthesized", query: HotelSearchQuery{CityCode: "PAR"}, wantCheckIn: "2025-06-09", wantCheckOut: "2025-06-12"},
		{name: "check-in only", query: HotelSearchQuery{CityCode: "PAR", CheckIn: "2025-07-01"}, wantCheckIn: "2025-07-01", wantCheckOut: "2025-07-04"},
		{name: "both given", query: HotelSearchQuery{CityCode: "PAR", CheckIn: "2025-07-01", CheckOut: "2025-07-02"}, wantCheckIn: "2025-07-01", wantCheckOut: "2025-07-02"},
		{name: "checkout before checkin", query: HotelSearchQuery{CityCode: "PAR", CheckIn: "2025-07-03", CheckOut: "2025-07-02"}, wantErr: true},
		{name: "past checkin", query: HotelSearchQuery{CityCode: "PAR", CheckIn: "2025-05-01"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window, err := tt.query.ResolveStayWindow(testNow, 30, 3)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCheckIn, window.CheckIn)
			assert.Equal(t, tt.wantCheckOut, window.CheckOut)
		})
	}
}

func TestHotelSearchQuery_Validate(t *testing.T) {
	q := HotelSearchQuery{CityCode: " par "}
	q.Normalize()
	require.NoError(t, q.Validate())
	assert.Equal(t, "PAR", q.CityCode)
	assert.Equal(t, 1, q.Adults)
	assert.Equal(t, DefaultHotelRadius, q.RadiusKm)

	q = HotelSearchQuery{CityCode: "PAR", CheckOut: "2025-07-01"}
	q.Normalize()
	assert.ErrorIs(t, q.Validate(), ErrValidation)
}

func TestBookingStatus_Transitions(t *testing.T) {
	tests := []struct {
		from BookingStatus
		to   BookingStatus
		ok   bool
	}{
		{BookingStatusPending, BookingStatusConfirmed, true},
		{BookingStatusPending, BookingStatusFailed, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusConfirmed, true},
		{BookingStatusConfirmed, BookingStatusFailed, false},
		{BookingStatusFailed, BookingStatusConfirmed, false},
		{BookingStatusCancelled, BookingStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			order := &BookingOrder{Status: tt.from}
			err := order.TransitionTo(tt.to, testNow)
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, tt.to, order.Status)
			} else {
				assert.ErrorIs(t, err, ErrInvalidStatusTransition)
				assert.Equal(t, tt.from, order.Status)
			}
		})
	}
}

func TestParseBookingStatus(t *testing.T) {
	s, err := ParseBookingStatus("CANCELED")
	require.NoError(t, err)
	assert.Equal(t, BookingStatusCancelled, s)

	_, err = ParseBookingStatus("shipped")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTravelerInput_Validate(t *testing.T) {
	valid := TravelerInput{FirstName: "Asha", LastName: "Rao", DateOfBirth: "1990-04-12", Gender: "female", Email: "asha@example.com", Phone: "9812345678"}
	assert.NoError(t, valid.Validate(0))

	bad := valid
	bad.DateOfBirth = "12-04-1990"
	err := bad.Validate(1)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "travelers[1].dateOfBirth", ve.Field)

	bad = valid
	bad.Gender = "X"
	assert.ErrorIs(t, bad.Validate(0), ErrValidation)
}

func TestBookingFailedError(t *testing.T) {
	cause := errors.New("upstream")
	err := error(&BookingFailedError{Reason: "SEGMENT SELL FAILURE", ProviderErrorCode: "34651", Err: cause})

	assert.ErrorIs(t, err, ErrBookingFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "booking failed (34651): SEGMENT SELL FAILURE", err.Error())
}

func TestCardDetails_Sanitized(t *testing.T) {
	card := CardDetails{Number: "4111 1111-1111 1111", Expiry: " 12/29 ", CVV: "123"}
	clean := card.Sanitized()
	assert.Equal(t, "4111111111111111", clean.Number)
	assert.Equal(t, "12/29", clean.Expiry)
	assert.Equal(t, "1111", card.Last4())
}

func TestBookingMetadata_ValueScan(t *testing.T) {
	meta := BookingMetadata{Provider: "inventory", PricingDegraded: true, DegradationReason: "timeout"}
	v, err := meta.Value()
	require.NoError(t, err)

	var back BookingMetadata
	require.NoError(t, back.Scan([]byte(v.(string))))
	assert.Equal(t, meta, back)
}
