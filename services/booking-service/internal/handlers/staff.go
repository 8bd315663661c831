package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type createStaffRequest struct {
	ShopID   string                      `json:"shop_id"`
	Name     string                      `json:"name"`
	Schedule availability.WeeklySchedule `json:"schedule,omitempty"`
}

type staffItem struct {
	ID        string                      `json:"id"`
	ShopID    string                      `json:"shop_id"`
	Name      string                      `json:"name"`
	IsActive  bool                        `json:"is_active"`
	Schedule  availability.WeeklySchedule `json:"schedule"`
	CreatedAt string                      `json:"created_at,omitempty"`
}

type scheduleResponse struct {
	StaffID  string                      `json:"staff_id"`
	Schedule availability.WeeklySchedule `json:"schedule"`
}

type createLeaveRequest struct {
	StaffID   string `json:"staff_id"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Type      string `json:"type"`
}

type leaveItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Type      string `json:"type"`
}

// Staff handles POST (create) and GET (list by shop_id).
func (h *Handler) Staff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createStaff(w, r)
	case http.MethodGet:
		h.listStaff(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createStaff(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ShopID = strings.TrimSpace(req.ShopID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ShopID == "" || req.Name == "" {
		http.Error(w, "shop_id and name are required", http.StatusBadRequest)
		return
	}
	if req.Schedule == nil {
		req.Schedule = availability.DefaultWeeklySchedule()
	} else if err := req.Schedule.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := h.ownedShop(w, r, req.ShopID); !ok {
		return
	}

	staff := model.StaffMember{
		ID:       uuid.NewString(),
		ShopID:   req.ShopID,
		Name:     req.Name,
		IsActive: true,
		Schedule: req.Schedule,
	}
	evt, err := availabilityEvent(staff.ShopID, staff.ID, "staff_created")
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.store.CreateStaff(r.Context(), staff, evt); err != nil {
		h.logger.Error("create staff failed", "err", err, "shop_id", staff.ShopID)
		http.Error(w, "failed to create staff member", http.StatusInternalServerError)
		return
	}
	h.availabilityChanged(r.Context(), staff.ShopID, staff.ID)
	httpx.WriteJSON(w, http.StatusCreated, toStaffItem(staff))
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	shopID := queryParam(r, "shop_id")
	if shopID == "" {
		http.Error(w, "shop_id is required", http.StatusBadRequest)
		return
	}
	if _, ok := h.ownedShop(w, r, shopID); !ok {
		return
	}
	staff, err := h.store.ListStaff(r.Context(), shopID)
	if err != nil {
		h.logger.Error("list staff failed", "err", err, "shop_id", shopID)
		http.Error(w, "failed to list staff", http.StatusInternalServerError)
		return
	}
	items := make([]staffItem, 0, len(staff))
	for _, s := range staff {
		items = append(items, toStaffItem(s))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// Schedule handles GET and PUT of a staff member's weekly schedule.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	staffID := queryParam(r, "staff_id")
	if staffID == "" {
		http.Error(w, "staff_id is required", http.StatusBadRequest)
		return
	}
	staff, _, ok := h.ownedStaff(w, r, staffID)
	if !ok {
		return
	}
	if r.Method == http.MethodGet {
		httpx.WriteJSON(w, http.StatusOK, scheduleResponse{StaffID: staff.ID, Schedule: staff.Schedule})
		return
	}

	var ws availability.WeeklySchedule
	if err := httpx.DecodeJSON(r, &ws); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := ws.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	evt, err := availabilityEvent(staff.ShopID, staff.ID, "schedule_updated")
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.store.ReplaceSchedule(r.Context(), staff.ID, ws, evt); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "staff member not found", http.StatusNotFound)
			return
		}
		h.logger.Error("replace schedule failed", "err", err, "staff_id", staff.ID)
		http.Error(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}
	h.availabilityChanged(r.Context(), staff.ShopID, staff.ID)
	httpx.WriteJSON(w, http.StatusOK, scheduleResponse{StaffID: staff.ID, Schedule: ws})
}

// Leaves handles POST (add), GET (list by staff_id) and DELETE (staff_id + leave_id).
func (h *Handler) Leaves(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.addLeave(w, r)
	case http.MethodGet:
		h.listLeaves(w, r)
	case http.MethodDelete:
		h.deleteLeave(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

var errLeaveRange = errors.New("start_date must not be after end_date")

func (h *Handler) addLeave(w http.ResponseWriter, r *http.Request) {
	var req createLeaveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.StaffID == "" {
		http.Error(w, "staff_id is required", http.StatusBadRequest)
		return
	}
	// Leave dates are calendar days; UTC keeps them zone-free.
	start, err := parseDate(req.StartDate, time.UTC)
	if err != nil {
		http.Error(w, "start_date: "+err.Error(), http.StatusBadRequest)
		return
	}
	end, err := parseDate(req.EndDate, time.UTC)
	if err != nil {
		http.Error(w, "end_date: "+err.Error(), http.StatusBadRequest)
		return
	}
	if end.Before(start) {
		http.Error(w, errLeaveRange.Error(), http.StatusBadRequest)
		return
	}
	leaveType := strings.TrimSpace(req.Type)
	if leaveType == "" {
		leaveType = "leave"
	}

	staff, _, ok := h.ownedStaff(w, r, req.StaffID)
	if !ok {
		return
	}
	leave := availability.LeaveInterval{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		StartDate: start,
		EndDate:   end,
		Type:      leaveType,
	}
	evt, err := availabilityEvent(staff.ShopID, staff.ID, "leave_added")
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.store.AddLeave(r.Context(), staff.ID, leave, evt); err != nil {
		h.logger.Error("add leave failed", "err", err, "staff_id", staff.ID)
		http.Error(w, "failed to add leave", http.StatusInternalServerError)
		return
	}
	h.availabilityChanged(r.Context(), staff.ShopID, staff.ID)
	httpx.WriteJSON(w, http.StatusCreated, toLeaveItem(leave))
}

func (h *Handler) listLeaves(w http.ResponseWriter, r *http.Request) {
	staffID := queryParam(r, "staff_id")
	if staffID == "" {
		http.Error(w, "staff_id is required", http.StatusBadRequest)
		return
	}
	staff, _, ok := h.ownedStaff(w, r, staffID)
	if !ok {
		return
	}
	items := make([]leaveItem, 0, len(staff.Leaves))
	for _, l := range staff.Leaves {
		items = append(items, toLeaveItem(l))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) deleteLeave(w http.ResponseWriter, r *http.Request) {
	staffID := queryParam(r, "staff_id")
	leaveID := queryParam(r, "leave_id")
	if staffID == "" || leaveID == "" {
		http.Error(w, "staff_id and leave_id are required", http.StatusBadRequest)
		return
	}
	staff, _, ok := h.ownedStaff(w, r, staffID)
	if !ok {
		return
	}
	evt, err := availabilityEvent(staff.ShopID, staff.ID, "leave_deleted")
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.store.DeleteLeave(r.Context(), staff.ID, leaveID, evt); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "leave not found", http.StatusNotFound)
			return
		}
		h.logger.Error("delete leave failed", "err", err, "staff_id", staff.ID)
		http.Error(w, "failed to delete leave", http.StatusInternalServerError)
		return
	}
	h.availabilityChanged(r.Context(), staff.ShopID, staff.ID)
	w.WriteHeader(http.StatusNoContent)
}

func toStaffItem(s model.StaffMember) staffItem {
	item := staffItem{
		ID:       s.ID,
		ShopID:   s.ShopID,
		Name:     s.Name,
		IsActive: s.IsActive,
		Schedule: s.Schedule,
	}
	if !s.CreatedAt.IsZero() {
		item.CreatedAt = s.CreatedAt.UTC().Format(time.RFC3339)
	}
	return item
}

func toLeaveItem(l availability.LeaveInterval) leaveItem {
	return leaveItem{
		ID:        l.ID,
		Title:     l.Title,
		StartDate: l.StartDate.Format(time.DateOnly),
		EndDate:   l.EndDate.Format(time.DateOnly),
		Type:      l.Type,
	}
}
