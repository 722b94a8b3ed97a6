package model

// FulfillmentMessage fulfillment trigger for MQ. The charge orchestrator
// publishes it fire-and-forget after the booking request is durably recorded;
// the sweeper republishes it for requests stuck in pending_booking.
type FulfillmentMessage struct {
	BookingRequestID uint64 `json:"booking_request_id"`
	Timestamp        int64  `json:"timestamp"`
	TraceID          string `json:"trace_id,omitempty"`
}
