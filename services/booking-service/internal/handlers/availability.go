package handlers

import (
	"net/http"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

const maxCalendarDays = 366

type availabilityResponse struct {
	StaffID      string                    `json:"staff_id"`
	Date         string                    `json:"date"`
	Status       availability.DateStatus   `json:"status"`
	Availability availability.Availability `json:"availability"`
}

type slotsResponse struct {
	StaffID         string                  `json:"staff_id"`
	Date            string                  `json:"date"`
	DurationMinutes int                     `json:"duration_minutes"`
	Slots           []availability.TimeSlot `json:"slots"`
}

type calendarResponse struct {
	StaffID string                             `json:"staff_id"`
	Start   string                             `json:"start"`
	Days    int                                `json:"days"`
	Marks   map[string]availability.DateStatus `json:"marks"`
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	staffID := queryParam(r, "staff_id")
	if staffID == "" || queryParam(r, "date") == "" {
		http.Error(w, "staff_id and date are required", http.StatusBadRequest)
		return
	}

	staff, loc, ok := h.publicStaff(w, r, staffID)
	if !ok {
		return
	}
	date, err := parseDate(queryParam(r, "date"), loc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	calc := h.calculator(loc, availability.PermitBooking)
	httpx.WriteJSON(w, http.StatusOK, availabilityResponse{
		StaffID:      staff.ID,
		Date:         date.Format(time.DateOnly),
		Status:       calc.DateStatus(date, staff.Availability()),
		Availability: calc.AvailabilityForDate(date, staff.Availability()),
	})
}

func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	staffID := queryParam(r, "staff_id")
	serviceID := queryParam(r, "service_id")
	if staffID == "" || queryParam(r, "date") == "" {
		http.Error(w, "staff_id and date are required", http.StatusBadRequest)
		return
	}

	staff, loc, ok := h.publicStaff(w, r, staffID)
	if !ok {
		return
	}
	date, err := parseDate(queryParam(r, "date"), loc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	duration, ok := h.resolveDuration(w, r, staff.ShopID, serviceID, queryParam(r, "duration_minutes"))
	if !ok {
		return
	}

	booked, err := h.store.BookedIntervals(r.Context(), staff.ID, date)
	if err != nil {
		h.logger.Error("load booked intervals failed", "err", err, "staff_id", staff.ID)
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	// Past dates have nothing left to book.
	slots := []availability.TimeSlot{}
	if !date.Before(h.today(loc)) {
		slots = h.calculator(loc, availability.PermitBooking).GenerateTimeSlots(date, staff.Availability(), duration, booked)
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		StaffID:         staff.ID,
		Date:            date.Format(time.DateOnly),
		DurationMinutes: duration,
		Slots:           slots,
	})
}

// resolveDuration takes the duration from the shop's service when serviceID is set,
// else from the explicit duration_minutes parameter.
func (h *Handler) resolveDuration(w http.ResponseWriter, r *http.Request, shopID, serviceID, rawDuration string) (int, bool) {
	if serviceID != "" {
		svc, err := h.store.Service(r.Context(), serviceID)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "service not found", http.StatusNotFound)
				return 0, false
			}
			h.logger.Error("load service failed", "err", err, "service_id", serviceID)
			http.Error(w, "failed to load service", http.StatusInternalServerError)
			return 0, false
		}
		if svc.ShopID != shopID {
			http.Error(w, "service not offered by this shop", http.StatusBadRequest)
			return 0, false
		}
		return svc.DurationMinutes, true
	}
	if rawDuration == "" {
		http.Error(w, "service_id or duration_minutes is required", http.StatusBadRequest)
		return 0, false
	}
	duration, ok := parseBoundedInt(rawDuration, 0, 1, availability.MinutesPerDay)
	if !ok {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return 0, false
	}
	return duration, true
}

func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	staffID := queryParam(r, "staff_id")
	if staffID == "" {
		http.Error(w, "staff_id is required", http.StatusBadRequest)
		return
	}
	days, ok := parseBoundedInt(queryParam(r, "days"), availability.DefaultCalendarDays, 1, maxCalendarDays)
	if !ok {
		http.Error(w, "invalid days", http.StatusBadRequest)
		return
	}

	// The version must be read before the staff record so an invalidation racing
	// with this request orphans what it caches.
	useCache := h.cache != nil
	var version int64
	if useCache {
		v, err := h.cache.Version(r.Context(), staffID)
		if err != nil {
			h.logger.Warn("calendar cache version read failed", "err", err, "staff_id", staffID)
			useCache = false
		}
		version = v
	}

	staff, loc, ok := h.publicStaff(w, r, staffID)
	if !ok {
		return
	}
	today := h.today(loc)
	start := today
	if raw := queryParam(r, "start"); raw != "" {
		parsed, err := parseDate(raw, loc)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		start = parsed
	}

	key := cache.CalendarKey{
		StaffID: staff.ID,
		Version: version,
		Today:   today.Format(time.DateOnly),
		Start:   start.Format(time.DateOnly),
		Days:    days,
	}
	if useCache {
		marks, hit, err := h.cache.Get(r.Context(), key)
		if err != nil {
			h.logger.Warn("calendar cache read failed", "err", err, "staff_id", staff.ID)
		}
		if hit {
			h.writeCalendar(w, key, marks)
			return
		}
	}

	marks := h.calculator(loc, availability.PermitBooking).CalendarMarks(staff.Availability(), start, days)
	if useCache {
		if err := h.cache.Set(r.Context(), key, marks); err != nil {
			h.logger.Warn("calendar cache write failed", "err", err, "staff_id", staff.ID)
		}
	}
	h.writeCalendar(w, key, marks)
}

func (h *Handler) writeCalendar(w http.ResponseWriter, key cache.CalendarKey, marks map[string]availability.DateStatus) {
	httpx.WriteJSON(w, http.StatusOK, calendarResponse{
		StaffID: key.StaffID,
		Start:   key.Start,
		Days:    key.Days,
		Marks:   marks,
	})
}
