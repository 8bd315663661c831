package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const MinutesPerDay = 24 * 60

var ErrInvalidClock = errors.New("invalid HH:MM time")

// TimeToMinutes converts a zero-padded "HH:MM" wall-clock value to minutes since
// midnight. "24:00" is accepted as the end of the day.
func TimeToMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	hh, ok1 := twoDigits(s[0:2])
	mm, ok2 := twoDigits(s[3:5])
	if !ok1 || !ok2 || hh > 24 || mm > 59 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return hh*60 + mm, nil
}

// MinutesToTime formats minutes since midnight as "HH:MM". Negative input clamps to 00:00.
func MinutesToTime(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// dayKey collapses a time to its calendar date in its own location, so that
// comparisons ignore time of day.
func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// DayName returns the WeeklySchedule key for a weekday.
func DayName(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

// DayNames lists schedule keys in weekday order, Sunday first.
var DayNames = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
