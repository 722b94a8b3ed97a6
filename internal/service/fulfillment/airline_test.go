package fulfillment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autobook/internal/model"
)

func testOrder() *BookingOrder {
	return &BookingOrder{
		RequestRef: "100",
		Offer: &model.FlightOfferSnapshot{
			OfferID:       "off_1",
			Price:         42000,
			Currency:      "USD",
			Airline:       "UA",
			FlightNumber:  "UA100",
			Route:         "SFO-JFK",
			DepartureDate: "2026-10-01",
		},
		Traveler: &model.TravelerSnapshot{FullName: "Ada Lovelace", Email: "ada@example.com"},
	}
}

func TestRESTAirlineClient_Book(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bookings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.Header.Get("Dedupe-Reference"))

		var body airlineBookingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "100", body.Reference)
		assert.Equal(t, "off_1", body.OfferID)
		assert.Equal(t, "Ada Lovelace", body.Traveler.FullName)

		json.NewEncoder(w).Encode(airlineBookingResponse{
			ConfirmationCode: "ABC123",
			FlightDetails:    []byte(`{"seat":"12A"}`),
		})
	}))
	defer server.Close()

	client := NewRESTAirlineClient(server.URL, "test-key", 5*time.Second)
	confirmation, err := client.Book(context.Background(), testOrder())
	require.NoError(t, err)

	assert.Equal(t, "ABC123", confirmation.ConfirmationCode)
	assert.JSONEq(t, `{"seat":"12A"}`, string(confirmation.FlightDetails))
}

func TestRESTAirlineClient_RejectedIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(airlineErrorResponse{Code: "offer_expired", Message: "offer no longer available"})
	}))
	defer server.Close()

	client := NewRESTAirlineClient(server.URL, "test-key", 5*time.Second)
	_, err := client.Book(context.Background(), testOrder())
	require.Error(t, err)

	assert.True(t, IsPermanentBookingError(err))
	assert.Contains(t, err.Error(), "offer_expired")
}

func TestRESTAirlineClient_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewRESTAirlineClient(server.URL, "test-key", 5*time.Second)
	_, err := client.Book(context.Background(), testOrder())
	require.Error(t, err)

	assert.False(t, IsPermanentBookingError(err))
}

func TestRESTAirlineClient_NetworkErrorIsTransient(t *testing.T) {
	client := NewRESTAirlineClient("http://127.0.0.1:1", "test-key", time.Second)
	_, err := client.Book(context.Background(), testOrder())
	require.Error(t, err)

	assert.False(t, IsPermanentBookingError(err))
}
