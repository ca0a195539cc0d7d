package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tripnest/booking-backend/pkg/inventory"
)

// HotelShape identifies which provider document a hotel payload holds
type HotelShape int

const (
	HotelShapeUnknown HotelShape = iota
	HotelShapeEmpty
	HotelShapeList
	HotelShapeOffers
)

func (s HotelShape) String() string {
	switch s {
	case HotelShapeEmpty:
		return "empty"
	case HotelShapeList:
		return "hotel-list"
	case HotelShapeOffers:
		return "hotel-offers"
	}
	return "unknown"
}

var ErrUnknownHotelShape = errors.New("unrecognized hotel payload shape")

// HotelPayload is a parsed hotel document. Exactly one of Hotels or Offers is
// populated, according to Shape.
type HotelPayload struct {
	Shape  HotelShape
	Hotels []inventory.HotelListEntry
	Offers []inventory.HotelOfferEntry
}

// ParseHotelPayload classifies and decodes a raw hotel response. A payload
// whose elements match neither known shape is an error, not a partial result.
func ParseHotelPayload(raw []byte) (HotelPayload, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return HotelPayload{}, fmt.Errorf("decode hotel payload: %w", err)
	}

	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return HotelPayload{Shape: HotelShapeEmpty}, nil
	}

	// single-offer lookups return an object rather than an array
	if data[0] == '{' {
		data = append(append([]byte{'['}, data...), ']')
	}

	var elements []map[string]json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return HotelPayload{}, fmt.Errorf("%w: %v", ErrUnknownHotelShape, err)
	}
	if len(elements) == 0 {
		return HotelPayload{Shape: HotelShapeEmpty}, nil
	}

	shape := classify(elements[0])
	for i, el := range elements[1:] {
		if s := classify(el); s != shape {
			return HotelPayload{}, fmt.Errorf("%w: element %d is %s, expected %s", ErrUnknownHotelShape, i+1, s, shape)
		}
	}

	payload := HotelPayload{Shape: shape}
	switch shape {
	case HotelShapeList:
		if err := json.Unmarshal(data, &payload.Hotels); err != nil {
			return HotelPayload{}, fmt.Errorf("decode hotel list: %w", err)
		}
	case HotelShapeOffers:
		if err := json.Unmarshal(data, &payload.Offers); err != nil {
			return HotelPayload{}, fmt.Errorf("decode hotel offers: %w", err)
		}
	default:
		return HotelPayload{}, ErrUnknownHotelShape
	}
	return payload, nil
}

func classify(el map[string]json.RawMessage) HotelShape {
	_, hasHotel := el["hotel"]
	_, hasOffers := el["offers"]
	if hasHotel && hasOffers {
		return HotelShapeOffers
	}
	if _, ok := el["hotelId"]; ok {
		return HotelShapeList
	}
	return HotelShapeUnknown
}
