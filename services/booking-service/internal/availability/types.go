package availability

import "time"

// DaySchedule is one weekday entry of a WeeklySchedule. Times are shop-local "HH:MM".
type DaySchedule struct {
	IsWorking bool   `json:"is_working"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// WeeklySchedule is keyed by lowercase English day name ("sunday" .. "saturday").
type WeeklySchedule map[string]DaySchedule

type LeaveInterval struct {
	ID        string
	Title     string
	StartDate time.Time
	EndDate   time.Time
	Type      string
}

// Staff is the availability view of a staff member. A nil Schedule means the
// record carries no schedule data at all.
type Staff struct {
	ID       string
	Name     string
	Schedule WeeklySchedule
	Leaves   []LeaveInterval
}

// BookedInterval is an existing booking for one staff member on one date.
type BookedInterval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type TimeSlot struct {
	ID             string `json:"id"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Available      bool   `json:"available"`
	StaffAvailable bool   `json:"staff_available"`
	Reason         string `json:"reason,omitempty"`
}

type WorkingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Availability struct {
	IsAvailable  bool          `json:"is_available"`
	WorkingHours *WorkingHours `json:"working_hours,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

type DateStatus string

const (
	StatusAvailable   DateStatus = "available"
	StatusUnavailable DateStatus = "unavailable"
	StatusLeave       DateStatus = "leave"
)

// MissingDataPolicy decides how incomplete staff records are treated.
type MissingDataPolicy int

const (
	// PermitBooking treats missing schedule data as available.
	PermitBooking MissingDataPolicy = iota
	// BlockBooking treats missing schedule data as unavailable.
	BlockBooking
)

func (p MissingDataPolicy) String() string {
	switch p {
	case PermitBooking:
		return "permit_booking"
	case BlockBooking:
		return "block_booking"
	default:
		return "unknown"
	}
}
