package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"autobook/internal/model"
)

// BookingOrder booking instruction sent to the airline
type BookingOrder struct {
	RequestRef string // dedupe reference, stable across retries
	Offer      *model.FlightOfferSnapshot
	Traveler   *model.TravelerSnapshot
}

// BookingConfirmation confirmed airline booking
type BookingConfirmation struct {
	ConfirmationCode string
	FlightDetails    json.RawMessage
}

// AirlineClient books flights against the airline API
type AirlineClient interface {
	Book(ctx context.Context, order *BookingOrder) (*BookingConfirmation, error)
}

// AirlineError booking failure. Permanent failures (offer gone, fare no
// longer available, traveler rejected) will never succeed on retry.
type AirlineError struct {
	Code      string
	Message   string
	Permanent bool
}

// Error implement error interface
func (e *AirlineError) Error() string {
	return fmt.Sprintf("airline booking failed: %s (%s)", e.Message, e.Code)
}

// IsPermanentBookingError checks if a booking error will never succeed on retry
func IsPermanentBookingError(err error) bool {
	var airlineErr *AirlineError
	if errors.As(err, &airlineErr) {
		return airlineErr.Permanent
	}
	return false
}

// RESTAirlineClient books through the airline's REST order API
type RESTAirlineClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewRESTAirlineClient creates an airline client
func NewRESTAirlineClient(baseURL, apiKey string, timeout time.Duration) *RESTAirlineClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RESTAirlineClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

type airlineBookingRequest struct {
	Reference     string                  `json:"reference"`
	OfferID       string                  `json:"offer_id"`
	Airline       string                  `json:"airline"`
	FlightNumber  string                  `json:"flight_number"`
	Route         string                  `json:"route"`
	DepartureDate string                  `json:"departure_date"`
	ReturnDate    *string                 `json:"return_date,omitempty"`
	Traveler      *model.TravelerSnapshot `json:"traveler,omitempty"`
}

type airlineBookingResponse struct {
	ConfirmationCode string          `json:"confirmation_code"`
	FlightDetails    json.RawMessage `json:"flight_details"`
}

type airlineErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Book places a booking order. Orders carry a dedupe reference so a retry
// of an already placed order returns the existing confirmation.
func (c *RESTAirlineClient) Book(ctx context.Context, order *BookingOrder) (*BookingConfirmation, error) {
	body := airlineBookingRequest{
		Reference:     order.RequestRef,
		OfferID:       order.Offer.OfferID,
		Airline:       order.Offer.Airline,
		FlightNumber:  order.Offer.FlightNumber,
		Route:         order.Offer.Route,
		DepartureDate: order.Offer.DepartureDate,
		ReturnDate:    order.Offer.ReturnDate,
		Traveler:      order.Traveler,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, &AirlineError{Code: "encode_failed", Message: err.Error(), Permanent: true}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bookings", bytes.NewReader(data))
	if err != nil {
		return nil, &AirlineError{Code: "request_failed", Message: err.Error(), Permanent: true}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Dedupe-Reference", order.RequestRef)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AirlineError{Code: "network_error", Message: err.Error(), Permanent: false}
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &AirlineError{Code: "read_failed", Message: err.Error(), Permanent: false}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var confirmed airlineBookingResponse
		if err := json.Unmarshal(respData, &confirmed); err != nil {
			return nil, &AirlineError{Code: "decode_failed", Message: err.Error(), Permanent: false}
		}
		return &BookingConfirmation{
			ConfirmationCode: confirmed.ConfirmationCode,
			FlightDetails:    confirmed.FlightDetails,
		}, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		// Airline side trouble, the order may succeed later
		return nil, &AirlineError{
			Code:      fmt.Sprintf("http_%d", resp.StatusCode),
			Message:   "airline temporarily unavailable",
			Permanent: false,
		}

	default:
		// The airline rejected the order itself. Offer expired, fare gone,
		// traveler data rejected; retrying the same order cannot help.
		airlineErr := &AirlineError{
			Code:      fmt.Sprintf("http_%d", resp.StatusCode),
			Message:   "booking rejected",
			Permanent: true,
		}
		var parsed airlineErrorResponse
		if json.Unmarshal(respData, &parsed) == nil && parsed.Code != "" {
			airlineErr.Code = parsed.Code
			airlineErr.Message = parsed.Message
		}
		return nil, airlineErr
	}
}
