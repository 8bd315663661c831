package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/realtime"
	"github.com/segmentio/kafka-go"
)

// Topics lists every event type the dispatcher understands.
var Topics = []string{
	outbox.EventBookingBooked,
	outbox.EventBookingCancelled,
	outbox.EventAvailabilityChanged,
}

// Invalidator drops cached calendar marks; *cache.CalendarCache implements it.
type Invalidator interface {
	Invalidate(ctx context.Context, staffID string) error
}

// Dispatcher turns outbox events into hub notifications.
type Dispatcher struct {
	hub    *realtime.Hub
	cache  Invalidator
	logger *slog.Logger
}

// NewDispatcher returns a dispatcher; cache may be nil.
func NewDispatcher(hub *realtime.Hub, cache Invalidator, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, cache: cache, logger: logger}
}

func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	eventType := kafkax.ExtractEventMeta(msg).EventType
	switch eventType {
	case outbox.EventBookingBooked, outbox.EventBookingCancelled:
		var p outbox.BookingPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		typ := realtime.EventBooked
		if eventType == outbox.EventBookingCancelled {
			typ = realtime.EventCancelled
		}
		d.hub.Publish(realtime.Event{
			Type:      typ,
			ShopID:    p.ShopID,
			StaffID:   p.StaffID,
			BookingID: p.BookingID,
			Date:      p.Date,
			StartTime: p.StartTime,
			EndTime:   p.EndTime,
		})
	case outbox.EventAvailabilityChanged:
		var p outbox.AvailabilityPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		// The writing instance already invalidated; this covers readers that
		// cached the old version before the write committed.
		if d.cache != nil {
			if err := d.cache.Invalidate(ctx, p.StaffID); err != nil {
				d.logger.Warn("calendar cache invalidation failed", "err", err, "staff_id", p.StaffID)
			}
		}
		d.hub.Publish(realtime.Event{
			Type:    realtime.EventAvailabilityChanged,
			ShopID:  p.ShopID,
			StaffID: p.StaffID,
		})
	default:
		d.logger.Debug("ignoring unknown event type", "event_type", eventType)
	}
	return nil
}
