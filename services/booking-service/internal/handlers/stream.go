package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/realtime"
)

const streamHeartbeat = 25 * time.Second

// Stream sends a shop's booking changes (optionally one staff member's) to its
// owner as server-sent events until the client disconnects.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	shopID := queryParam(r, "shop_id")
	if shopID == "" {
		http.Error(w, "shop_id is required", http.StatusBadRequest)
		return
	}
	if _, ok := h.ownedShop(w, r, shopID); !ok {
		return
	}
	h.stream(w, r, realtime.Filter{ShopID: shopID, StaffID: queryParam(r, "staff_id")}, nil)
}

// AvailabilityStream tells booking pages when one staff member's availability
// changed. Events carry only the affected date; clients refetch slots for it.
func (h *Handler) AvailabilityStream(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	staffID := queryParam(r, "staff_id")
	if staffID == "" {
		http.Error(w, "staff_id is required", http.StatusBadRequest)
		return
	}
	staff, _, ok := h.publicStaff(w, r, staffID)
	if !ok {
		return
	}
	h.stream(w, r, realtime.Filter{ShopID: staff.ShopID, StaffID: staff.ID}, publicEvent)
}

func publicEvent(e realtime.Event) realtime.Event {
	return realtime.Event{
		Type:       realtime.EventAvailabilityChanged,
		ShopID:     e.ShopID,
		StaffID:    e.StaffID,
		Date:       e.Date,
		OccurredAt: e.OccurredAt,
	}
}

// stream writes every event matching filter, passed through redact when set.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, filter realtime.Filter, redact func(realtime.Event) realtime.Event) {
	if h.hub == nil {
		http.Error(w, "realtime updates unavailable", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.hub.Subscribe(filter)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt, open := <-sub.Events():
			if !open {
				return
			}
			if redact != nil {
				evt = redact(evt)
			}
			data, err := json.Marshal(evt)
			if err != nil {
				h.logger.Error("encode realtime event failed", "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
