package handlers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	shops    map[string]model.Shop
	staff    map[string]model.StaffMember
	services map[string]model.Service
	bookings []model.Booking
	idem     map[string]storage.StoredResponse
	events   []outbox.Event
	// afterStaffLoad runs once the staff snapshot is taken, outside the lock.
	afterStaffLoad func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		shops:    map[string]model.Shop{},
		staff:    map[string]model.StaffMember{},
		services: map[string]model.Service{},
		idem:     map[string]storage.StoredResponse{},
	}
}

func (f *fakeStore) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

func (f *fakeStore) Shop(_ context.Context, shopID string) (model.Shop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shops[shopID]
	if !ok {
		return model.Shop{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) CreateShop(_ context.Context, s model.Shop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shops[s.ID] = s
	return nil
}

func (f *fakeStore) UpdateShop(_ context.Context, s model.Shop) (model.Shop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.shops[s.ID]
	if !ok {
		return model.Shop{}, pgx.ErrNoRows
	}
	existing.Name = s.Name
	existing.Timezone = s.Timezone
	f.shops[s.ID] = existing
	return existing, nil
}

func (f *fakeStore) ListShops(_ context.Context, ownerID string) ([]model.Shop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Shop
	for _, s := range f.shops {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) StaffMember(_ context.Context, staffID string) (model.StaffMember, error) {
	f.mu.Lock()
	s, ok := f.staff[staffID]
	hook := f.afterStaffLoad
	f.afterStaffLoad = nil
	f.mu.Unlock()
	if !ok {
		return model.StaffMember{}, pgx.ErrNoRows
	}
	if hook != nil {
		hook()
	}
	return s, nil
}

func (f *fakeStore) ListStaff(_ context.Context, shopID string) ([]model.StaffMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.StaffMember
	for _, s := range f.staff {
		if s.ShopID == shopID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateStaff(_ context.Context, s model.StaffMember, evt outbox.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staff[s.ID] = s
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeStore) ReplaceSchedule(_ context.Context, staffID string, ws availability.WeeklySchedule, evt outbox.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.staff[staffID]
	if !ok {
		return pgx.ErrNoRows
	}
	s.Schedule = ws
	f.staff[staffID] = s
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeStore) AddLeave(_ context.Context, staffID string, l availability.LeaveInterval, evt outbox.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.staff[staffID]
	s.Leaves = append(s.Leaves, l)
	f.staff[staffID] = s
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeStore) ListLeaves(_ context.Context, staffID string) ([]availability.LeaveInterval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.staff[staffID].Leaves, nil
}

func (f *fakeStore) DeleteLeave(_ context.Context, staffID, leaveID string, evt outbox.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.staff[staffID]
	for i, l := range s.Leaves {
		if l.ID == leaveID {
			s.Leaves = append(s.Leaves[:i], s.Leaves[i+1:]...)
			f.staff[staffID] = s
			f.events = append(f.events, evt)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeStore) CreateService(_ context.Context, s model.Service) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services[s.ID] = s
	return nil
}

func (f *fakeStore) Service(_ context.Context, serviceID string) (model.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.services[serviceID]
	if !ok {
		return model.Service{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) ListServices(_ context.Context, shopID string) ([]model.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Service
	for _, s := range f.services {
		if s.ShopID == shopID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) BookedIntervals(_ context.Context, staffID string, date time.Time) ([]availability.BookedInterval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookedLocked(staffID, date), nil
}

func (f *fakeStore) bookedLocked(staffID string, date time.Time) []availability.BookedInterval {
	booked := []availability.BookedInterval{}
	for _, b := range f.bookings {
		if b.StaffID == staffID && b.Status == model.BookingStatusBooked && sameDay(b.Date, date) {
			booked = append(booked, availability.BookedInterval{
				Start: availability.MinutesToTime(b.StartMinute),
				End:   availability.MinutesToTime(b.EndMinute),
			})
		}
	}
	return booked
}

func (f *fakeStore) CreateBooking(_ context.Context, p storage.CreateBookingParams) (*storage.StoredResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b := p.Booking
	idemKey := b.ShopID + ":" + p.IdempotencyKey
	if p.IdempotencyKey != "" {
		if stored, ok := f.idem[idemKey]; ok {
			return &stored, nil
		}
	}
	if _, ok := f.staff[b.StaffID]; !ok {
		return nil, pgx.ErrNoRows
	}
	if p.Check != nil {
		if err := p.Check(f.bookedLocked(b.StaffID, b.Date)); err != nil {
			return nil, err
		}
	}
	for _, existing := range f.bookings {
		if existing.StaffID == b.StaffID && existing.Status == model.BookingStatusBooked && sameDay(existing.Date, b.Date) &&
			b.StartMinute < existing.EndMinute && b.EndMinute > existing.StartMinute {
			return nil, &pgconn.PgError{Code: "23P01"}
		}
	}
	b.CreatedAt = time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC)
	f.bookings = append(f.bookings, b)
	f.events = append(f.events, p.Event)
	if p.IdempotencyKey != "" {
		f.idem[idemKey] = p.Response
	}
	return nil, nil
}

func (f *fakeStore) CancelBooking(_ context.Context, shopID, bookingID, reason string, eventFor func(model.Booking) (outbox.Event, error)) (model.Booking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.bookings {
		if b.ID != bookingID || b.ShopID != shopID {
			continue
		}
		if b.Status == model.BookingStatusCancelled {
			return b, false, nil
		}
		at := time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)
		b.Status = model.BookingStatusCancelled
		b.CancelledAt = &at
		b.CancelReason = reason
		evt, err := eventFor(b)
		if err != nil {
			return model.Booking{}, false, err
		}
		f.bookings[i] = b
		f.events = append(f.events, evt)
		return b, true, nil
	}
	return model.Booking{}, false, pgx.ErrNoRows
}

func (f *fakeStore) ListBookings(_ context.Context, shopID string, date time.Time, limit int) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.ShopID != shopID || (!date.IsZero() && !sameDay(b.Date, date)) {
			continue
		}
		out = append(out, b)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func sameDay(a, b time.Time) bool {
	return a.Format(time.DateOnly) == b.Format(time.DateOnly)
}

type fakeCache struct {
	mu            sync.Mutex
	versions      map[string]int64
	entries       map[string]map[string]availability.DateStatus
	hits          int
	invalidations []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		versions: map[string]int64{},
		entries:  map[string]map[string]availability.DateStatus{},
	}
}

func (c *fakeCache) Version(_ context.Context, staffID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[staffID], nil
}

func (c *fakeCache) Get(_ context.Context, key cache.CalendarKey) (map[string]availability.DateStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	marks, ok := c.entries[fmt.Sprint(key)]
	if ok {
		c.hits++
	}
	return marks, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key cache.CalendarKey, marks map[string]availability.DateStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fmt.Sprint(key)] = marks
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, staffID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations = append(c.invalidations, staffID)
	c.versions[staffID]++
	return nil
}
