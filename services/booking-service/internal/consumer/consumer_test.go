package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/realtime"
	"github.com/segmentio/kafka-go"
)

type fakeInvalidator struct {
	mu    sync.Mutex
	staff []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, staffID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staff = append(f.staff, staffID)
	return nil
}

func message(t *testing.T, evt outbox.Event) kafka.Message {
	t.Helper()
	return kafka.Message{
		Topic:   evt.EventType,
		Key:     []byte(evt.AggregateID),
		Value:   evt.Payload,
		Headers: kafkax.MetaHeaders(kafkax.EventMeta{EventID: "evt-1", EventType: evt.EventType}),
	}
}

func receive(t *testing.T, sub *realtime.Subscription) realtime.Event {
	t.Helper()
	select {
	case evt := <-sub.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("expected event")
		return realtime.Event{}
	}
}

func TestDispatcherBookingEvents(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	sub := hub.Subscribe(realtime.Filter{ShopID: "shop-1"})
	defer sub.Close()
	d := NewDispatcher(hub, nil, slog.New(slog.DiscardHandler))

	payload := outbox.BookingPayload{
		BookingID: "b-1", ShopID: "shop-1", StaffID: "staff-1",
		Date: "2026-01-27", StartTime: "10:00", EndTime: "11:00",
	}
	booked, _ := outbox.NewBookingEvent(outbox.EventBookingBooked, payload)
	if err := d.Handle(context.Background(), message(t, booked)); err != nil {
		t.Fatalf("handle booked: %v", err)
	}
	got := receive(t, sub)
	if got.Type != realtime.EventBooked || got.BookingID != "b-1" || got.StartTime != "10:00" || got.EndTime != "11:00" {
		t.Fatalf("unexpected event %+v", got)
	}

	cancelled, _ := outbox.NewBookingEvent(outbox.EventBookingCancelled, payload)
	if err := d.Handle(context.Background(), message(t, cancelled)); err != nil {
		t.Fatalf("handle cancelled: %v", err)
	}
	if got := receive(t, sub); got.Type != realtime.EventCancelled {
		t.Fatalf("expected cancellation, got %+v", got)
	}
}

func TestDispatcherAvailabilityInvalidatesCache(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	sub := hub.Subscribe(realtime.Filter{ShopID: "shop-1", StaffID: "staff-1"})
	defer sub.Close()
	inv := &fakeInvalidator{}
	d := NewDispatcher(hub, inv, slog.New(slog.DiscardHandler))

	evt, _ := outbox.NewAvailabilityEvent(outbox.AvailabilityPayload{ShopID: "shop-1", StaffID: "staff-1", Change: "leave_added"})
	if err := d.Handle(context.Background(), message(t, evt)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := receive(t, sub); got.Type != realtime.EventAvailabilityChanged {
		t.Fatalf("unexpected event %+v", got)
	}
	if len(inv.staff) != 1 || inv.staff[0] != "staff-1" {
		t.Fatalf("expected invalidation for staff-1, got %v", inv.staff)
	}
}

func TestDispatcherRejectsBadPayloadAndIgnoresUnknown(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	d := NewDispatcher(hub, nil, slog.New(slog.DiscardHandler))

	bad := kafka.Message{Topic: outbox.EventBookingBooked, Value: []byte("{")}
	if err := d.Handle(context.Background(), bad); err == nil {
		t.Fatal("expected decode error")
	}
	if err := d.Handle(context.Background(), kafka.Message{Topic: "billing.invoice.paid.v1", Value: []byte("{}")}); err != nil {
		t.Fatalf("unknown events must be ignored, got %v", err)
	}
}

type fakeReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	errs   []error
	closed bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestConsumerRunSurvivesErrors(t *testing.T) {
	reader := &fakeReader{
		errs: []error{errors.New("broker unavailable")},
		msgs: []kafka.Message{
			{Topic: "a", Value: []byte("fail")},
			{Topic: "b", Value: []byte("ok")},
		},
	}

	handled := make(chan string, 2)
	c := NewWithReader(slog.New(slog.DiscardHandler), reader, func(_ context.Context, msg kafka.Message) error {
		handled <- msg.Topic
		if string(msg.Value) == "fail" {
			return errors.New("boom")
		}
		return nil
	})
	c.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	for _, want := range []string{"a", "b"} {
		select {
		case got := <-handled:
			if got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	reader.mu.Lock()
	defer reader.mu.Unlock()
	if !reader.closed {
		t.Fatal("reader must be closed on shutdown")
	}
}
