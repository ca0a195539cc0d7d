package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout    = 20 * time.Second
	defaultRate       = 10
	defaultBurst      = 5
	maxDataBodyBytes  = 8 << 20
	flightOrderPath   = "/v1/booking/flight-orders"
	flightPricingPath = "/v1/shopping/flight-offers/pricing"
	flightOffersPath  = "/v2/shopping/flight-offers"
	hotelListPath     = "/v1/reference-data/locations/hotels/by-city"
	hotelOffersPath   = "/v3/shopping/hotel-offers"
	hotelOrderPath    = "/v2/booking/hotel-orders"
	tokenPath         = "/v1/security/oauth2/token"
)

// Config holds the inventory provider connection settings
type Config struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	Timeout           time.Duration
	TokenSafetyMargin time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the inventory provider's REST API. Every call carries a
// bearer token from the embedded TokenManager and is bounded by Timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenManager
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     *logrus.Logger
}

// NewClient creates an inventory client
func NewClient(config Config, logger *logrus.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaultRate
	}
	if config.Burst <= 0 {
		config.Burst = defaultBurst
	}
	if logger == nil {
		logger = logrus.New()
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	httpClient := &http.Client{Timeout: config.Timeout}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens: NewTokenManager(TokenManagerConfig{
			TokenURL:     baseURL + tokenPath,
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			SafetyMargin: config.TokenSafetyMargin,
			Timeout:      config.Timeout,
		}, httpClient, logger),
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		timeout: config.Timeout,
		logger:  logger,
	}
}

// Tokens exposes the token manager backing this client
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// Configured reports whether credentials are present
func (c *Client) Configured() bool {
	return c.tokens.config.ClientID != "" && c.tokens.config.ClientSecret != ""
}

// ============================================================================
// FLIGHTS
// ============================================================================

// SearchFlightOffers runs a flight offer search
func (c *Client) SearchFlightOffers(ctx context.Context, params FlightOffersParams) (*FlightOffersResponse, error) {
	q := url.Values{}
	q.Set("originLocationCode", params.Origin)
	q.Set("destinationLocationCode", params.Destination)
	q.Set("departureDate", params.DepartureDate)
	if params.ReturnDate != "" {
		q.Set("returnDate", params.ReturnDate)
	}
	q.Set("adults", strconv.Itoa(max(params.Adults, 1)))
	if params.Max > 0 {
		q.Set("max", strconv.Itoa(params.Max))
	}
	if params.CurrencyCode != "" {
		q.Set("currencyCode", params.CurrencyCode)
	}
	if params.NonStop {
		q.Set("nonStop", "true")
	}

	body, err := c.do(ctx, "flight_offers", http.MethodGet, flightOffersPath, q, nil)
	if err != nil {
		return nil, err
	}

	var resp FlightOffersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Kind: ErrProviderRejected, Operation: "flight_offers", Err: fmt.Errorf("decode response: %w", err)}
	}
	return &resp, nil
}

// PriceFlightOffer confirms the current price of an offer. The offer bytes
// are sent exactly as received; the returned offer is the provider's priced
// version.
func (c *Client) PriceFlightOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"data":{"type":"flight-offers-pricing","flightOffers":[`)
	buf.Write(offer)
	buf.WriteString(`]}}`)

	body, err := c.do(ctx, "flight_pricing", http.MethodPost, flightPricingPath, nil, buf.Bytes())
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			FlightOffers []json.RawMessage `json:"flightOffers"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Kind: ErrProviderRejected, Operation: "flight_pricing", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(resp.Data.FlightOffers) == 0 {
		return nil, &ProviderError{Kind: ErrProviderRejected, Operation: "flight_pricing", Detail: "pricing response contained no offers"}
	}
	return resp.Data.FlightOffers[0], nil
}

// BuildFlightOrderBody renders the flight order request. The offer is copied
// into the body byte for byte.
func BuildFlightOrderBody(req FlightOrderRequest) ([]byte, error) {
	travelers, err := json.Marshal(req.Travelers)
	if err != nil {
		return nil, fmt.Errorf("encode travelers: %w", err)
	}
	contacts, err := json.Marshal(req.Contacts)
	if err != nil {
		return nil, fmt.Errorf("encode contacts: %w", err)
	}
	agreement, err := json.Marshal(req.TicketingAgreement)
	if err != nil {
		return nil, fmt.Errorf("encode ticketing agreement: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"data":{"type":"flight-order","flightOffers":[`)
	buf.Write(req.Offer)
	buf.WriteString(`],"travelers":`)
	buf.Write(travelers)
	buf.WriteString(`,"contacts":`)
	buf.Write(contacts)
	buf.WriteString(`,"ticketingAgreement":`)
	buf.Write(agreement)
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// CreateFlightOrder books a priced offer for the given travelers
func (c *Client) CreateFlightOrder(ctx context.Context, req FlightOrderRequest) (*FlightOrderResponse, error) {
	if len(req.Offer) == 0 {
		return nil, &ProviderError{Kind: ErrProviderRejected, Operation: "flight_order", Detail: "offer is empty"}
	}
	payload, err := BuildFlightOrderBody(req)
	if err != nil {
		return nil, &ProviderError{Kind: ErrProviderRejected, Operation: "flight_order", Err: err}
	}

	body, err := c.do(ctx, "flight_order", http.MethodPost, flightOrderPath, nil, payload)
	if err != nil {
		return nil, err
	}

	var resp FlightOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Kind: ErrProviderRejected, Operation: "flight_order", Err: fmt.Errorf("decode response: %w", err)}
	}
	return &resp, nil
}

// ============================================================================
// HOTELS
// ============================================================================

// HotelsByCity returns the raw hotels-by-city payload
func (c *Client) HotelsByCity(ctx context.Context, params HotelListParams) ([]byte, error) {
	q := url.Values{}
	q.Set("cityCode", params.CityCode)
	if params.RadiusKm > 0 {
		q.Set("radius", strconv.Itoa(params.RadiusKm))
		q.Set("radiusUnit", "KM")
	}
	if len(params.ChainCodes) > 0 {
		q.Set("chainCodes", strings.Join(params.ChainCodes, ","))
	}
	q.Set("hotelSource", "ALL")

	return c.do(ctx, "hotel_list", http.MethodGet, hotelListPath, q, nil)
}

// HotelOffers returns the raw availability payload for a batch of hotels
func (c *Client) HotelOffers(ctx context.Context, params HotelOffersParams) ([]byte, error) {
	q := url.Values{}
	q.Set("hotelIds", strings.Join(params.HotelIDs, ","))
	q.Set("adults", strconv.Itoa(max(params.Adults, 1)))
	if params.CheckIn != "" {
		q.Set("checkInDate", params.CheckIn)
	}
	if params.CheckOut != "" {
		q.Set("checkOutDate", params.CheckOut)
	}
	if params.RoomQuantity > 0 {
		q.Set("roomQuantity", strconv.Itoa(params.RoomQuantity))
	}
	if params.Currency != "" {
		q.Set("currency", params.Currency)
	}
	q.Set("bestRateOnly", strconv.FormatBool(params.BestRateOnly))

	return c.do(ctx, "hotel_offers", http.MethodGet, hotelOffersPath, q, nil)
}

// HotelOffer re-prices a single hotel offer by id
func (c *Client) HotelOffer(ctx context.Context, offerID string) ([]byte, error) {
	return c.do(ctx, "hotel_offer", http.MethodGet, hotelOffersPath+"/"+url.PathEscape(offerID), nil, nil)
}

// CreateHotelOrder books a hotel offer
func (c *Client) CreateHotelOrder(ctx context.Context, req HotelOrderRequest) (*HotelOrderResponse, error) {
	type guestReference struct {
		GuestReference string `json:"guestReference"`
	}
	references := make([]guestReference, 0, len(req.Guests))
	for _, g := range req.Guests {
		references = append(references, guestReference{GuestReference: strconv.Itoa(g.TID)})
	}

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"type":   "hotel-order",
			"guests": req.Guests,
			"travelAgent": map[string]interface{}{
				"contact": map[string]string{"email": req.AgentEmail},
			},
			"roomAssociations": []map[string]interface{}{
				{"guestReferences": references, "hotelOfferId": req.OfferID},
			},
			"payment": map[string]interface{}{
				"method": "CREDIT_CARD",
				"paymentCard": map[string]interface{}{
					"paymentCardInfo": req.PaymentCard,
				},
			},
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Kind: ErrProviderRejected, Operation: "hotel_order", Err: err}
	}

	body, err := c.do(ctx, "hotel_order", http.MethodPost, hotelOrderPath, nil, encoded)
	if err != nil {
		return nil, err
	}

	var resp HotelOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Kind: ErrProviderRejected, Operation: "hotel_order", Err: fmt.Errorf("decode response: %w", err)}
	}
	return &resp, nil
}

// ============================================================================
// TRANSPORT
// ============================================================================

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, newTransportError(op, err)
	}

	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &ProviderError{Kind: ErrProviderUnavailable, Operation: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token.Value)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"operation": op,
			"path":      path,
		}).WithError(err).Warn("Inventory request failed")
		return nil, newTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDataBodyBytes))
	if err != nil {
		return nil, newTransportError(op, err)
	}

	c.logger.WithFields(logrus.Fields{
		"operation":   op,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Inventory request completed")

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return nil, newStatusError(ErrAuthRejected, op, resp.StatusCode, body)
	}
	if resp.StatusCode >= 300 {
		return nil, newStatusError(ErrProviderRejected, op, resp.StatusCode, body)
	}
	return body, nil
}
