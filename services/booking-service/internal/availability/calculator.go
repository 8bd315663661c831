package availability

import (
	"log/slog"
	"time"
)

const (
	// SlotStepMinutes is the grid candidate start times are enumerated on,
	// independent of the service duration.
	SlotStepMinutes = 30

	DefaultCalendarDays = 60

	ReasonOnLeave = "on leave"
	ReasonBooked  = "already booked"
)

// DefaultWorkingHours applies when a staff member is available only because
// of PermitBooking and no hours are known.
var DefaultWorkingHours = WorkingHours{Start: "09:00", End: "17:00"}

// Calculator answers availability questions for a single staff member. It holds
// no state between calls.
type Calculator struct {
	policy MissingDataPolicy
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Calculator)

func WithPolicy(p MissingDataPolicy) Option {
	return func(c *Calculator) { c.policy = p }
}

// WithClock sets the source of "today". The returned time should be in the
// shop's location.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(opts ...Option) *Calculator {
	c := &Calculator{
		policy: PermitBooking,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calculator) Policy() MissingDataPolicy {
	return c.policy
}

// IsOnLeave reports whether date falls inside any leave interval, both ends
// inclusive, comparing calendar dates only.
func IsOnLeave(date time.Time, leaves []LeaveInterval) bool {
	d := dayKey(date)
	for _, l := range leaves {
		if l.StartDate.IsZero() || l.EndDate.IsZero() {
			continue
		}
		if dayKey(l.StartDate) <= d && d <= dayKey(l.EndDate) {
			return true
		}
	}
	return false
}

func (c *Calculator) AvailabilityForDate(date time.Time, staff Staff) Availability {
	if staff.Schedule == nil {
		return c.missingData(staff, "no schedule configured")
	}

	wd := date.Weekday()
	if IsOnLeave(date, staff.Leaves) {
		return Availability{IsAvailable: false, Reason: ReasonOnLeave}
	}

	entry, ok := staff.Schedule[DayName(wd)]
	if !ok {
		return c.missingData(staff, "no schedule for "+wd.String())
	}
	if !entry.IsWorking {
		return Availability{IsAvailable: false, Reason: "does not work on " + wd.String()}
	}

	start, errStart := TimeToMinutes(entry.StartTime)
	end, errEnd := TimeToMinutes(entry.EndTime)
	if errStart != nil || errEnd != nil || start >= end {
		return c.missingData(staff, "invalid working hours for "+wd.String())
	}
	return Availability{
		IsAvailable:  true,
		WorkingHours: &WorkingHours{Start: MinutesToTime(start), End: MinutesToTime(end)},
	}
}

func (c *Calculator) DateStatus(date time.Time, staff Staff) DateStatus {
	if dayKey(date) < dayKey(c.now()) {
		return StatusUnavailable
	}
	if IsOnLeave(date, staff.Leaves) {
		return StatusLeave
	}
	if c.AvailabilityForDate(date, staff).IsAvailable {
		return StatusAvailable
	}
	return StatusUnavailable
}

// CalendarMarks returns the status of daysAhead consecutive dates starting at
// start, keyed by YYYY-MM-DD. daysAhead <= 0 selects DefaultCalendarDays.
func (c *Calculator) CalendarMarks(staff Staff, start time.Time, daysAhead int) map[string]DateStatus {
	if daysAhead <= 0 {
		daysAhead = DefaultCalendarDays
	}
	marks := make(map[string]DateStatus, daysAhead)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for i := 0; i < daysAhead; i++ {
		d := day.AddDate(0, 0, i)
		marks[d.Format(time.DateOnly)] = c.DateStatus(d, staff)
	}
	return marks
}

func (c *Calculator) missingData(staff Staff, reason string) Availability {
	c.logger.Warn("incomplete staff data",
		"staff_id", staff.ID,
		"reason", reason,
		"policy", c.policy.String(),
	)
	if c.policy == BlockBooking {
		return Availability{IsAvailable: false, Reason: reason}
	}
	return Availability{IsAvailable: true, Reason: reason}
}
