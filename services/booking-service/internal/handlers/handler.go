package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/realtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

// Store is the persistence the handlers need; *storage.Repository implements it.
type Store interface {
	CreateShop(ctx context.Context, s model.Shop) error
	Shop(ctx context.Context, shopID string) (model.Shop, error)
	UpdateShop(ctx context.Context, s model.Shop) (model.Shop, error)
	ListShops(ctx context.Context, ownerID string) ([]model.Shop, error)

	StaffMember(ctx context.Context, staffID string) (model.StaffMember, error)
	ListStaff(ctx context.Context, shopID string) ([]model.StaffMember, error)
	CreateStaff(ctx context.Context, s model.StaffMember, evt outbox.Event) error
	ReplaceSchedule(ctx context.Context, staffID string, ws availability.WeeklySchedule, evt outbox.Event) error

	AddLeave(ctx context.Context, staffID string, l availability.LeaveInterval, evt outbox.Event) error
	ListLeaves(ctx context.Context, staffID string) ([]availability.LeaveInterval, error)
	DeleteLeave(ctx context.Context, staffID, leaveID string, evt outbox.Event) error

	CreateService(ctx context.Context, s model.Service) error
	Service(ctx context.Context, serviceID string) (model.Service, error)
	ListServices(ctx context.Context, shopID string) ([]model.Service, error)

	BookedIntervals(ctx context.Context, staffID string, date time.Time) ([]availability.BookedInterval, error)
	CreateBooking(ctx context.Context, p storage.CreateBookingParams) (*storage.StoredResponse, error)
	CancelBooking(ctx context.Context, shopID, bookingID, reason string, eventFor func(model.Booking) (outbox.Event, error)) (model.Booking, bool, error)
	ListBookings(ctx context.Context, shopID string, date time.Time, limit int) ([]model.Booking, error)
}

// CalendarCache stores computed calendar marks; *cache.CalendarCache implements it.
type CalendarCache interface {
	Version(ctx context.Context, staffID string) (int64, error)
	Get(ctx context.Context, key cache.CalendarKey) (map[string]availability.DateStatus, bool, error)
	Set(ctx context.Context, key cache.CalendarKey, marks map[string]availability.DateStatus) error
	Invalidate(ctx context.Context, staffID string) error
}

type Options struct {
	// Cache is optional; without it calendars are computed on every request.
	Cache CalendarCache
	// Hub receives changes directly when PublishDirect is set (no Kafka consumer running).
	Hub           *realtime.Hub
	PublishDirect bool
	// DefaultLocation applies to shops without a valid timezone.
	DefaultLocation *time.Location
	Now             func() time.Time
}

type Handler struct {
	store         Store
	logger        *slog.Logger
	cache         CalendarCache
	hub           *realtime.Hub
	publishDirect bool
	defaultLoc    *time.Location
	now           func() time.Time
}

func New(store Store, logger *slog.Logger, opts Options) *Handler {
	if opts.DefaultLocation == nil {
		opts.DefaultLocation = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{
		store:         store,
		logger:        logger,
		cache:         opts.Cache,
		hub:           opts.Hub,
		publishDirect: opts.PublishDirect && opts.Hub != nil,
		defaultLoc:    opts.DefaultLocation,
		now:           opts.Now,
	}
}

// Register mounts every route on mux. Owner routes are wrapped with requireUser.
func (h *Handler) Register(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.HandleFunc("/api/v1/public/availability", h.Availability)
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/calendar", h.Calendar)
	mux.HandleFunc("/api/v1/public/services", h.PublicServices)
	mux.HandleFunc("/api/v1/public/book", h.Book)
	mux.HandleFunc("/api/v1/realtime/availability", h.AvailabilityStream)

	mux.Handle("/api/v1/shops", requireUser(http.HandlerFunc(h.Shops)))
	mux.Handle("/api/v1/shops/staff", requireUser(http.HandlerFunc(h.Staff)))
	mux.Handle("/api/v1/shops/staff/schedule", requireUser(http.HandlerFunc(h.Schedule)))
	mux.Handle("/api/v1/shops/staff/leaves", requireUser(http.HandlerFunc(h.Leaves)))
	mux.Handle("/api/v1/shops/services", requireUser(http.HandlerFunc(h.Services)))
	mux.Handle("/api/v1/appointments", requireUser(http.HandlerFunc(h.ListBookings)))
	mux.Handle("/api/v1/appointments/cancel", requireUser(http.HandlerFunc(h.Cancel)))
	mux.Handle("/api/v1/realtime/bookings", requireUser(http.HandlerFunc(h.Stream)))
}

// calculator builds a calculator whose "today" is the shop-local date.
func (h *Handler) calculator(loc *time.Location, policy availability.MissingDataPolicy) *availability.Calculator {
	return availability.New(
		availability.WithPolicy(policy),
		availability.WithClock(func() time.Time { return h.now().In(loc) }),
		availability.WithLogger(h.logger),
	)
}

func (h *Handler) today(loc *time.Location) time.Time {
	now := h.now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}

// publicStaff loads an active staff member and the location of their shop.
func (h *Handler) publicStaff(w http.ResponseWriter, r *http.Request, staffID string) (model.StaffMember, *time.Location, bool) {
	staff, err := h.store.StaffMember(r.Context(), staffID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "staff member not found", http.StatusNotFound)
			return model.StaffMember{}, nil, false
		}
		h.logger.Error("load staff failed", "err", err, "staff_id", staffID)
		http.Error(w, "failed to load staff member", http.StatusInternalServerError)
		return model.StaffMember{}, nil, false
	}
	if !staff.IsActive {
		http.Error(w, "staff member not found", http.StatusNotFound)
		return model.StaffMember{}, nil, false
	}
	shop, err := h.store.Shop(r.Context(), staff.ShopID)
	if err != nil {
		h.logger.Error("load shop failed", "err", err, "shop_id", staff.ShopID)
		http.Error(w, "failed to load shop", http.StatusInternalServerError)
		return model.StaffMember{}, nil, false
	}
	return staff, shop.Location(h.defaultLoc), true
}

// ownedShop loads shopID and checks the authenticated user owns it.
func (h *Handler) ownedShop(w http.ResponseWriter, r *http.Request, shopID string) (model.Shop, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return model.Shop{}, false
	}
	shop, err := h.store.Shop(r.Context(), shopID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "shop not found", http.StatusNotFound)
			return model.Shop{}, false
		}
		h.logger.Error("load shop failed", "err", err, "shop_id", shopID)
		http.Error(w, "failed to load shop", http.StatusInternalServerError)
		return model.Shop{}, false
	}
	if shop.OwnerID != claims.Sub {
		http.Error(w, "forbidden", http.StatusForbidden)
		return model.Shop{}, false
	}
	return shop, true
}

// ownedStaff loads staffID and checks the authenticated user owns its shop.
func (h *Handler) ownedStaff(w http.ResponseWriter, r *http.Request, staffID string) (model.StaffMember, model.Shop, bool) {
	staff, err := h.store.StaffMember(r.Context(), staffID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "staff member not found", http.StatusNotFound)
			return model.StaffMember{}, model.Shop{}, false
		}
		h.logger.Error("load staff failed", "err", err, "staff_id", staffID)
		http.Error(w, "failed to load staff member", http.StatusInternalServerError)
		return model.StaffMember{}, model.Shop{}, false
	}
	shop, ok := h.ownedShop(w, r, staff.ShopID)
	if !ok {
		return model.StaffMember{}, model.Shop{}, false
	}
	return staff, shop, true
}

// availabilityChanged drops cached calendars and notifies live subscribers.
func (h *Handler) availabilityChanged(ctx context.Context, shopID, staffID string) {
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, staffID); err != nil {
			h.logger.Warn("calendar cache invalidation failed", "err", err, "staff_id", staffID)
		}
	}
	if h.publishDirect {
		h.hub.Publish(realtime.Event{
			Type:    realtime.EventAvailabilityChanged,
			ShopID:  shopID,
			StaffID: staffID,
		})
	}
}

func availabilityEvent(shopID, staffID, change string) (outbox.Event, error) {
	return outbox.NewAvailabilityEvent(outbox.AvailabilityPayload{ShopID: shopID, StaffID: staffID, Change: change})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func queryParam(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

var errInvalidDate = errors.New("date must be YYYY-MM-DD")

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return d, nil
}

// parseBoundedInt returns fallback for an empty value and ok=false for anything
// outside [lo, hi].
func parseBoundedInt(raw string, fallback, lo, hi int) (int, bool) {
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}
