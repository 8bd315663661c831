package availability

import (
	"errors"
	"time"
)

var (
	ErrStaffUnavailable = errors.New("staff member is not available on this date")
	ErrInvalidSlot      = errors.New("requested time is not a bookable slot")
	ErrSlotTaken        = errors.New("time slot already booked")
)

type minuteInterval struct {
	start int
	end   int
}

// GenerateTimeSlots enumerates candidate starts on the SlotStepMinutes grid from
// the start of working hours while the service still ends by closing time.
// Slots overlapping a booked interval are returned with Available=false.
func (c *Calculator) GenerateTimeSlots(date time.Time, staff Staff, durationMinutes int, booked []BookedInterval) []TimeSlot {
	slots := []TimeSlot{}
	if durationMinutes <= 0 {
		return slots
	}

	avail := c.AvailabilityForDate(date, staff)
	if !avail.IsAvailable {
		return slots
	}
	hours := DefaultWorkingHours
	if avail.WorkingHours != nil {
		hours = *avail.WorkingHours
	}
	workStart, err := TimeToMinutes(hours.Start)
	if err != nil {
		return slots
	}
	workEnd, err := TimeToMinutes(hours.End)
	if err != nil {
		return slots
	}

	busy := c.bookedMinutes(staff, booked)
	prefix := date.Format(time.DateOnly) + "T"
	for start := workStart; start+durationMinutes <= workEnd; start += SlotStepMinutes {
		end := start + durationMinutes
		isBooked := overlapsAny(start, end, busy)
		slot := TimeSlot{
			ID:             prefix + MinutesToTime(start),
			StartTime:      MinutesToTime(start),
			EndTime:        MinutesToTime(end),
			Available:      !isBooked,
			StaffAvailable: true,
		}
		if isBooked {
			slot.Reason = ReasonBooked
		}
		slots = append(slots, slot)
	}
	return slots
}

// CheckSlot validates that start (HH:MM) is one of the generated slots for date
// and is still free.
func (c *Calculator) CheckSlot(date time.Time, staff Staff, start string, durationMinutes int, booked []BookedInterval) error {
	startMin, err := TimeToMinutes(start)
	if err != nil {
		return ErrInvalidSlot
	}
	if !c.AvailabilityForDate(date, staff).IsAvailable {
		return ErrStaffUnavailable
	}
	want := MinutesToTime(startMin)
	for _, slot := range c.GenerateTimeSlots(date, staff, durationMinutes, booked) {
		if slot.StartTime != want {
			continue
		}
		if !slot.Available {
			return ErrSlotTaken
		}
		return nil
	}
	return ErrInvalidSlot
}

func (c *Calculator) bookedMinutes(staff Staff, booked []BookedInterval) []minuteInterval {
	busy := make([]minuteInterval, 0, len(booked))
	for _, b := range booked {
		start, errStart := TimeToMinutes(b.Start)
		end, errEnd := TimeToMinutes(b.End)
		if errStart != nil || errEnd != nil || end <= start {
			c.logger.Warn("ignoring malformed booked interval",
				"staff_id", staff.ID,
				"start", b.Start,
				"end", b.End,
			)
			continue
		}
		busy = append(busy, minuteInterval{start: start, end: end})
	}
	return busy
}

func overlapsAny(start, end int, busy []minuteInterval) bool {
	for _, b := range busy {
		// Half-open intervals: touching endpoints do not conflict.
		if start < b.end && end > b.start {
			return true
		}
	}
	return false
}
