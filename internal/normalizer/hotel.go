package normalizer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/pkg/inventory"
)

// NormalizeHotelListings turns a hotel-list payload, optionally joined with
// an availability payload, into canonical listings.
//
// Without availability every hotel is returned unpriced. With availability
// only hotels that have a priced offer are returned, so a listing never
// carries a nil price when availability exists for it.
func NormalizeHotelListings(list HotelPayload, availability *HotelPayload) ([]models.CanonicalHotelListing, error) {
	index := make(map[string]inventory.HotelListEntry)
	var ordered []inventory.HotelListEntry

	switch list.Shape {
	case HotelShapeEmpty:
	case HotelShapeList:
		ordered = list.Hotels
		for _, h := range list.Hotels {
			index[h.HotelID] = h
		}
	case HotelShapeOffers:
		if availability == nil {
			availability = &list
		}
	default:
		return nil, fmt.Errorf("%w: list payload is %s", ErrUnknownHotelShape, list.Shape)
	}

	if availability == nil {
		listings := make([]models.CanonicalHotelListing, 0, len(ordered))
		for _, h := range ordered {
			listings = append(listings, listingFromEntry(h))
		}
		return listings, nil
	}

	switch availability.Shape {
	case HotelShapeEmpty:
		return []models.CanonicalHotelListing{}, nil
	case HotelShapeOffers:
		listings := make([]models.CanonicalHotelListing, 0, len(availability.Offers))
		for _, entry := range availability.Offers {
			listing, ok := pricedListing(entry, index)
			if ok {
				listings = append(listings, listing)
			}
		}
		return listings, nil
	default:
		return nil, fmt.Errorf("%w: availability payload is %s", ErrUnknownHotelShape, availability.Shape)
	}
}

func listingFromEntry(h inventory.HotelListEntry) models.CanonicalHotelListing {
	listing := models.CanonicalHotelListing{
		ID:        h.HotelID,
		Name:      h.Name,
		ChainCode: h.ChainCode,
		CityCode:  h.IataCode,
		Location:  h.IataCode,
		Amenities: h.Amenities,
	}
	if h.GeoCode != nil {
		listing.GeoCode = &models.GeoCode{Latitude: h.GeoCode.Latitude, Longitude: h.GeoCode.Longitude}
	}
	if h.Address != nil {
		listing.Address = formatAddress(*h.Address)
		if h.Address.CityName != "" {
			listing.Location = h.Address.CityName
		}
	}
	if h.Distance != nil {
		km := h.Distance.Value
		if strings.EqualFold(h.Distance.Unit, "MI") {
			km = math.Round(km*1.609344*100) / 100
		}
		listing.DistanceKm = &km
	}
	return listing
}

func pricedListing(entry inventory.HotelOfferEntry, index map[string]inventory.HotelListEntry) (models.CanonicalHotelListing, bool) {
	if entry.Available != nil && !*entry.Available {
		return models.CanonicalHotelListing{}, false
	}

	var best *inventory.HotelOffer
	var bestPrice float64
	for i := range entry.Offers {
		price, err := strconv.ParseFloat(entry.Offers[i].Price.Total, 64)
		if err != nil || price <= 0 {
			continue
		}
		if best == nil || price < bestPrice {
			best = &entry.Offers[i]
			bestPrice = price
		}
	}
	if best == nil {
		return models.CanonicalHotelListing{}, false
	}

	var listing models.CanonicalHotelListing
	if base, ok := index[entry.Hotel.HotelID]; ok {
		listing = listingFromEntry(base)
	} else {
		listing = models.CanonicalHotelListing{
			ID:        entry.Hotel.HotelID,
			ChainCode: entry.Hotel.ChainCode,
			CityCode:  entry.Hotel.CityCode,
			Location:  entry.Hotel.CityCode,
			Amenities: entry.Hotel.Amenities,
		}
		if entry.Hotel.Latitude != 0 || entry.Hotel.Longitude != 0 {
			listing.GeoCode = &models.GeoCode{Latitude: entry.Hotel.Latitude, Longitude: entry.Hotel.Longitude}
		}
	}
	if entry.Hotel.Name != "" {
		listing.Name = entry.Hotel.Name
	}
	if listing.CityCode == "" {
		listing.CityCode = entry.Hotel.CityCode
	}

	listing.Price = &bestPrice
	listing.Currency = best.Price.Currency
	listing.OfferID = best.ID
	listing.RoomType = best.Room.Type
	listing.CheckIn = best.CheckInDate
	listing.CheckOut = best.CheckOutDate
	return listing, true
}

func formatAddress(a inventory.HotelAddress) string {
	parts := make([]string, 0, len(a.Lines)+3)
	for _, line := range a.Lines {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	for _, p := range []string{a.CityName, a.PostalCode, a.CountryCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
