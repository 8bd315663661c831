package availability

import (
	"errors"
	"fmt"
)

var ErrInvalidSchedule = errors.New("invalid weekly schedule")

// DefaultWeeklySchedule is Monday to Friday 09:00-17:00 with weekends off.
func DefaultWeeklySchedule() WeeklySchedule {
	ws := make(WeeklySchedule, len(DayNames))
	for i, day := range DayNames {
		if i >= 1 && i <= 5 {
			ws[day] = DaySchedule{IsWorking: true, StartTime: DefaultWorkingHours.Start, EndTime: DefaultWorkingHours.End}
			continue
		}
		ws[day] = DaySchedule{IsWorking: false, StartTime: DefaultWorkingHours.Start, EndTime: DefaultWorkingHours.End}
	}
	return ws
}

// Validate enforces the write-time invariants: exactly the seven day keys, and
// start before end on working days.
func (ws WeeklySchedule) Validate() error {
	if len(ws) != len(DayNames) {
		return fmt.Errorf("%w: expected %d days, got %d", ErrInvalidSchedule, len(DayNames), len(ws))
	}
	for _, day := range DayNames {
		entry, ok := ws[day]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrInvalidSchedule, day)
		}
		if !entry.IsWorking {
			continue
		}
		start, err := TimeToMinutes(entry.StartTime)
		if err != nil {
			return fmt.Errorf("%w: %s start: %v", ErrInvalidSchedule, day, err)
		}
		end, err := TimeToMinutes(entry.EndTime)
		if err != nil {
			return fmt.Errorf("%w: %s end: %v", ErrInvalidSchedule, day, err)
		}
		if start >= end {
			return fmt.Errorf("%w: %s start_time must be before end_time", ErrInvalidSchedule, day)
		}
	}
	return nil
}
