package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/realtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type createBookingRequest struct {
	StaffID         string `json:"staff_id"`
	ServiceID       string `json:"service_id"`
	DurationMinutes int    `json:"duration_minutes"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
}

type bookingItem struct {
	BookingID    string `json:"booking_id"`
	ShopID       string `json:"shop_id"`
	StaffID      string `json:"staff_id"`
	ServiceID    string `json:"service_id,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Status       string `json:"status"`
	CancelledAt  string `json:"cancelled_at,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type cancelBookingRequest struct {
	ShopID    string `json:"shop_id"`
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type cancelBookingResponse struct {
	BookingID   string `json:"booking_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
}

var errPastDate = errors.New("date is in the past")

// Book re-checks the requested slot against current data before inserting. Missing
// schedule data blocks the booking here, unlike the public read endpoints.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req createBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.StaffID == "" || req.CustomerName == "" || req.Date == "" || req.StartTime == "" {
		http.Error(w, "staff_id, date, start_time and customer_name are required", http.StatusBadRequest)
		return
	}
	startMin, err := availability.TimeToMinutes(strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "start_time must be HH:MM", http.StatusBadRequest)
		return
	}

	staff, loc, ok := h.publicStaff(w, r, req.StaffID)
	if !ok {
		return
	}
	date, err := parseDate(req.Date, loc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if date.Before(h.today(loc)) {
		http.Error(w, errPastDate.Error(), http.StatusUnprocessableEntity)
		return
	}

	rawDuration := ""
	if req.DurationMinutes != 0 {
		rawDuration = strconv.Itoa(req.DurationMinutes)
	}
	duration, ok := h.resolveDuration(w, r, staff.ShopID, req.ServiceID, rawDuration)
	if !ok {
		return
	}
	if startMin+duration > availability.MinutesPerDay {
		http.Error(w, availability.ErrInvalidSlot.Error(), http.StatusUnprocessableEntity)
		return
	}

	booking := model.Booking{
		ID:            uuid.NewString(),
		ShopID:        staff.ShopID,
		StaffID:       staff.ID,
		ServiceID:     req.ServiceID,
		CustomerName:  req.CustomerName,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Date:          date,
		StartMinute:   startMin,
		EndMinute:     startMin + duration,
		Status:        model.BookingStatusBooked,
	}
	payload := bookingPayload(booking)
	evt, err := outbox.NewBookingEvent(outbox.EventBookingBooked, payload)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	respBody, err := json.Marshal(toBookingItem(booking))
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}

	calc := h.calculator(loc, availability.BlockBooking)
	start := availability.MinutesToTime(startMin)
	replay, err := h.store.CreateBooking(r.Context(), storage.CreateBookingParams{
		Booking:        booking,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		Check: func(booked []availability.BookedInterval) error {
			return calc.CheckSlot(date, staff.Availability(), start, duration, booked)
		},
		Event:    evt,
		Response: storage.StoredResponse{StatusCode: http.StatusCreated, Body: respBody},
	})
	if err != nil {
		h.writeBookingError(w, err, booking)
		return
	}
	if replay != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(replay.StatusCode)
		_, _ = w.Write(replay.Body)
		return
	}

	h.logger.Info("booking created", "booking_id", booking.ID, "staff_id", booking.StaffID, "date", payload.Date, "start", payload.StartTime)
	h.publishBooking(realtime.EventBooked, payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *Handler) writeBookingError(w http.ResponseWriter, err error, b model.Booking) {
	switch {
	case errors.Is(err, availability.ErrSlotTaken), storage.IsConflict(err):
		http.Error(w, availability.ErrSlotTaken.Error(), http.StatusConflict)
	case errors.Is(err, availability.ErrStaffUnavailable), errors.Is(err, availability.ErrInvalidSlot):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case storage.IsNotFound(err), storage.IsForeignKey(err):
		http.Error(w, "staff member or service not found", http.StatusNotFound)
	default:
		h.logger.Error("create booking failed", "err", err, "staff_id", b.StaffID)
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
	}
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req cancelBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ShopID = strings.TrimSpace(req.ShopID)
	req.BookingID = strings.TrimSpace(req.BookingID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.ShopID == "" || req.BookingID == "" {
		http.Error(w, "shop_id and booking_id are required", http.StatusBadRequest)
		return
	}
	if _, ok := h.ownedShop(w, r, req.ShopID); !ok {
		return
	}

	var payload outbox.BookingPayload
	booking, changed, err := h.store.CancelBooking(r.Context(), req.ShopID, req.BookingID, req.Reason,
		func(b model.Booking) (outbox.Event, error) {
			payload = bookingPayload(b)
			return outbox.NewBookingEvent(outbox.EventBookingCancelled, payload)
		})
	if err != nil {
		switch {
		case storage.IsNotFound(err):
			http.Error(w, "booking not found", http.StatusNotFound)
		case errors.Is(err, storage.ErrNotCancellable):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("cancel booking failed", "err", err, "booking_id", req.BookingID)
			http.Error(w, "failed to cancel booking", http.StatusInternalServerError)
		}
		return
	}
	if changed {
		h.publishBooking(realtime.EventCancelled, payload)
	}

	resp := cancelBookingResponse{BookingID: booking.ID, Status: booking.Status}
	if booking.CancelledAt != nil {
		resp.CancelledAt = booking.CancelledAt.UTC().Format(time.RFC3339)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	shopID := queryParam(r, "shop_id")
	if shopID == "" {
		http.Error(w, "shop_id is required", http.StatusBadRequest)
		return
	}
	limit, ok := parseBoundedInt(queryParam(r, "limit"), 50, 1, 200)
	if !ok {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	shop, ok := h.ownedShop(w, r, shopID)
	if !ok {
		return
	}
	var date time.Time
	if raw := queryParam(r, "date"); raw != "" {
		d, err := parseDate(raw, shop.Location(h.defaultLoc))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		date = d
	}

	bookings, err := h.store.ListBookings(r.Context(), shopID, date, limit)
	if err != nil {
		h.logger.Error("list bookings failed", "err", err, "shop_id", shopID)
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}
	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingItem(b))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) publishBooking(eventType string, p outbox.BookingPayload) {
	if !h.publishDirect {
		return
	}
	h.hub.Publish(realtime.Event{
		Type:      eventType,
		ShopID:    p.ShopID,
		StaffID:   p.StaffID,
		BookingID: p.BookingID,
		Date:      p.Date,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
	})
}

func bookingPayload(b model.Booking) outbox.BookingPayload {
	p := outbox.BookingPayload{
		BookingID: b.ID,
		ShopID:    b.ShopID,
		StaffID:   b.StaffID,
		ServiceID: b.ServiceID,
		Date:      b.Date.Format(time.DateOnly),
		StartTime: availability.MinutesToTime(b.StartMinute),
		EndTime:   availability.MinutesToTime(b.EndMinute),
		Reason:    b.CancelReason,
	}
	if b.CancelledAt != nil {
		p.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return p
}

func toBookingItem(b model.Booking) bookingItem {
	item := bookingItem{
		BookingID:    b.ID,
		ShopID:       b.ShopID,
		StaffID:      b.StaffID,
		ServiceID:    b.ServiceID,
		CustomerName: b.CustomerName,
		Date:         b.Date.Format(time.DateOnly),
		StartTime:    availability.MinutesToTime(b.StartMinute),
		EndTime:      availability.MinutesToTime(b.EndMinute),
		Status:       b.Status,
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	if !b.CreatedAt.IsZero() {
		item.CreatedAt = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	return item
}
