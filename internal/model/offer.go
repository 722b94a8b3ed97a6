package model

// FlightOfferSnapshot immutable copy of a priced offer, captured at charge
// time. Disputes replay against these exact terms regardless of what the
// live offer does afterwards.
type FlightOfferSnapshot struct {
	OfferID       string  `json:"offer_id"`
	Price         int64   `json:"price"` // minor units
	Currency      string  `json:"currency"`
	Airline       string  `json:"airline"`
	FlightNumber  string  `json:"flight_number"`
	Route         string  `json:"route"`
	DepartureDate string  `json:"departure_date"`
	ReturnDate    *string `json:"return_date,omitempty"`
}

// PriceDecimal get snapshot price in major units
func (o *FlightOfferSnapshot) PriceDecimal() float64 {
	return float64(o.Price) / 100
}

// TravelerSnapshot traveler data captured alongside the offer so the
// fulfillment step books against the terms present at charge time.
type TravelerSnapshot struct {
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	DateOfBirth   string `json:"date_of_birth,omitempty"`
	PassportLast4 string `json:"passport_last4,omitempty"`
}
