// Command slotgen runs the availability calculator against a staff record on
// disk and prints the result as JSON.
//
//	slotgen -staff staff.json -date 2026-10-19 -duration 60 -booked 10:00-11:00
//	slotgen -staff staff.json -calendar 30
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
)

type leaveFile struct {
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Type      string `json:"type"`
}

type staffFile struct {
	ID       string                      `json:"id"`
	Name     string                      `json:"name"`
	Schedule availability.WeeklySchedule `json:"schedule"`
	Leaves   []leaveFile                 `json:"leaves"`
}

type slotsOutput struct {
	StaffID      string                    `json:"staff_id"`
	Date         string                    `json:"date"`
	Availability availability.Availability `json:"availability"`
	Slots        []availability.TimeSlot   `json:"slots"`
}

type calendarOutput struct {
	StaffID string                             `json:"staff_id"`
	Start   string                             `json:"start"`
	Marks   map[string]availability.DateStatus `json:"marks"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "slotgen:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("slotgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		staffPath = fs.String("staff", "", "path to staff JSON ({id, name, schedule, leaves})")
		dateRaw   = fs.String("date", "", "date YYYY-MM-DD (default today)")
		todayRaw  = fs.String("today", "", "override today's date YYYY-MM-DD")
		duration  = fs.Int("duration", 30, "service duration in minutes")
		bookedRaw = fs.String("booked", "", "booked intervals, comma separated HH:MM-HH:MM")
		calendar  = fs.Int("calendar", 0, "print calendar marks for N days instead of slots")
		policyRaw = fs.String("policy", "permit", "missing data policy: permit or block")
		verbose   = fs.Bool("v", false, "log data-quality warnings to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *staffPath == "" {
		return errors.New("-staff is required")
	}

	staff, err := loadStaff(*staffPath)
	if err != nil {
		return err
	}
	policy, err := parsePolicy(*policyRaw)
	if err != nil {
		return err
	}

	today := time.Now()
	if *todayRaw != "" {
		if today, err = time.Parse(time.DateOnly, *todayRaw); err != nil {
			return fmt.Errorf("invalid -today: %w", err)
		}
	}
	opts := []availability.Option{
		availability.WithPolicy(policy),
		availability.WithClock(func() time.Time { return today }),
	}
	if *verbose {
		opts = append(opts, availability.WithLogger(slog.New(slog.NewJSONHandler(stderr, nil))))
	}
	calc := availability.New(opts...)

	date := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if *dateRaw != "" {
		if date, err = time.Parse(time.DateOnly, *dateRaw); err != nil {
			return fmt.Errorf("invalid -date: %w", err)
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if *calendar > 0 {
		return enc.Encode(calendarOutput{
			StaffID: staff.ID,
			Start:   date.Format(time.DateOnly),
			Marks:   calc.CalendarMarks(staff, date, *calendar),
		})
	}

	booked, err := parseBooked(*bookedRaw)
	if err != nil {
		return err
	}
	return enc.Encode(slotsOutput{
		StaffID:      staff.ID,
		Date:         date.Format(time.DateOnly),
		Availability: calc.AvailabilityForDate(date, staff),
		Slots:        calc.GenerateTimeSlots(date, staff, *duration, booked),
	})
}

func loadStaff(path string) (availability.Staff, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return availability.Staff{}, err
	}
	var f staffFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return availability.Staff{}, fmt.Errorf("decode %s: %w", path, err)
	}
	staff := availability.Staff{ID: f.ID, Name: f.Name, Schedule: f.Schedule}
	for i, l := range f.Leaves {
		start, err := time.Parse(time.DateOnly, l.StartDate)
		if err != nil {
			return availability.Staff{}, fmt.Errorf("leave %d start_date: %w", i, err)
		}
		end, err := time.Parse(time.DateOnly, l.EndDate)
		if err != nil {
			return availability.Staff{}, fmt.Errorf("leave %d end_date: %w", i, err)
		}
		staff.Leaves = append(staff.Leaves, availability.LeaveInterval{
			Title:     l.Title,
			StartDate: start,
			EndDate:   end,
			Type:      l.Type,
		})
	}
	return staff, nil
}

func parsePolicy(raw string) (availability.MissingDataPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "permit":
		return availability.PermitBooking, nil
	case "block":
		return availability.BlockBooking, nil
	default:
		return 0, fmt.Errorf("unknown -policy %q", raw)
	}
}

func parseBooked(raw string) ([]availability.BookedInterval, error) {
	var out []availability.BookedInterval
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		start, end, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("booked interval %q must be HH:MM-HH:MM", part)
		}
		out = append(out, availability.BookedInterval{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)})
	}
	return out, nil
}
