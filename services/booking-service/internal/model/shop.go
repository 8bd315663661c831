package model

import (
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
)

type Shop struct {
	ID       string
	OwnerID  string
	Name     string
	Timezone string
}

// Location resolves the shop timezone, falling back to fallback when unset or unknown.
func (s Shop) Location(fallback *time.Location) *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

type StaffMember struct {
	ID        string
	ShopID    string
	Name      string
	IsActive  bool
	Schedule  availability.WeeklySchedule
	Leaves    []availability.LeaveInterval
	CreatedAt time.Time
}

// Availability returns the calculator's view of the staff member.
func (s StaffMember) Availability() availability.Staff {
	return availability.Staff{
		ID:       s.ID,
		Name:     s.Name,
		Schedule: s.Schedule,
		Leaves:   s.Leaves,
	}
}

type Service struct {
	ID              string
	ShopID          string
	Name            string
	DurationMinutes int
	PriceCents      int64
	CreatedAt       time.Time
}
