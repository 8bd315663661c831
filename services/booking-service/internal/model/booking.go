package model

import "time"

const (
	BookingStatusBooked    = "booked"
	BookingStatusCancelled = "cancelled"
)

// Booking is one appointment. Date is the shop-local calendar day; StartMinute and
// EndMinute are wall-clock minutes since midnight on that day.
type Booking struct {
	ID            string
	ShopID        string
	StaffID       string
	ServiceID     string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Date          time.Time
	StartMinute   int
	EndMinute     int
	Status        string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
}
