package outbox

import "encoding/json"

const (
	EventBookingBooked       = "booking.appointment.booked.v1"
	EventBookingCancelled    = "booking.appointment.cancelled.v1"
	EventAvailabilityChanged = "staff.availability.changed.v1"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// BookingPayload is the body of booking.appointment.* events.
type BookingPayload struct {
	BookingID   string `json:"booking_id"`
	ShopID      string `json:"shop_id"`
	StaffID     string `json:"staff_id"`
	ServiceID   string `json:"service_id,omitempty"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// AvailabilityPayload is the body of staff.availability.changed.v1.
type AvailabilityPayload struct {
	ShopID  string `json:"shop_id"`
	StaffID string `json:"staff_id"`
	Change  string `json:"change"`
}

func NewBookingEvent(eventType string, p BookingPayload) (Event, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{AggregateType: "booking", AggregateID: p.BookingID, EventType: eventType, Payload: body}, nil
}

func NewAvailabilityEvent(p AvailabilityPayload) (Event, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{AggregateType: "staff", AggregateID: p.StaffID, EventType: EventAvailabilityChanged, Payload: body}, nil
}
