package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

// StoredResponse is a booking response remembered under an Idempotency-Key.
type StoredResponse struct {
	StatusCode int
	Body       []byte
}

type CreateBookingParams struct {
	Booking        model.Booking
	IdempotencyKey string
	// Check runs inside the transaction, after the staff row is locked, against the
	// intervals already booked for that day. A non-nil error aborts the booking.
	Check func(booked []availability.BookedInterval) error
	Event outbox.Event
	// Response is remembered under IdempotencyKey once the booking commits.
	Response StoredResponse
}

// CreateBooking inserts a booking. When the idempotency key has already completed,
// the stored response is returned and nothing is written.
func (r *Repository) CreateBooking(ctx context.Context, p CreateBookingParams) (*StoredResponse, error) {
	var replay *StoredResponse
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		b := p.Booking
		if p.IdempotencyKey != "" {
			stored, err := lockIdempotencyKey(ctx, tx, b.ShopID, p.IdempotencyKey)
			if err != nil {
				return err
			}
			if stored != nil {
				replay = stored
				return nil
			}
		}

		var locked string
		if err := tx.QueryRow(ctx, `SELECT id::text FROM staff WHERE id = $1 FOR UPDATE`, b.StaffID).Scan(&locked); err != nil {
			return err
		}
		if p.Check != nil {
			booked, err := bookedIntervals(ctx, tx, b.StaffID, b.Date)
			if err != nil {
				return err
			}
			if err := p.Check(booked); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO bookings
				(id, shop_id, staff_id, service_id, customer_name, customer_email, customer_phone,
				 booking_date, start_minute, end_minute, status)
			VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10, $11)
		`, b.ID, b.ShopID, b.StaffID, b.ServiceID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
			b.Date, b.StartMinute, b.EndMinute, model.BookingStatusBooked); err != nil {
			return err
		}
		if err := r.outbox.Insert(ctx, tx, p.Event); err != nil {
			return err
		}
		if p.IdempotencyKey != "" {
			return finalizeIdempotency(ctx, tx, b.ShopID, p.IdempotencyKey, b.ID, p.Response)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replay, nil
}

// ErrNotCancellable is returned when a booking is neither booked nor already cancelled.
var ErrNotCancellable = errors.New("booking cannot be cancelled")

// CancelBooking marks a booking cancelled and writes the event built by eventFor.
// Cancelling an already cancelled booking returns it unchanged with changed=false.
func (r *Repository) CancelBooking(ctx context.Context, shopID, bookingID, reason string, eventFor func(model.Booking) (outbox.Event, error)) (model.Booking, bool, error) {
	var (
		out     model.Booking
		changed bool
	)
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, selectBooking+` WHERE id = $1 AND shop_id = $2 FOR UPDATE`, bookingID, shopID))
		if err != nil {
			return err
		}
		if b.Status == model.BookingStatusCancelled {
			out = b
			return nil
		}
		if b.Status != model.BookingStatusBooked {
			return ErrNotCancellable
		}

		var cancelledAt time.Time
		if err := tx.QueryRow(ctx, `
			UPDATE bookings
			SET status = 'cancelled', cancelled_at = now(), cancellation_reason = $2
			WHERE id = $1
			RETURNING cancelled_at
		`, b.ID, reason).Scan(&cancelledAt); err != nil {
			return err
		}
		b.Status = model.BookingStatusCancelled
		b.CancelledAt = &cancelledAt
		b.CancelReason = reason

		evt, err := eventFor(b)
		if err != nil {
			return err
		}
		if err := r.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
		out, changed = b, true
		return nil
	})
	return out, changed, err
}

func (r *Repository) BookedIntervals(ctx context.Context, staffID string, date time.Time) ([]availability.BookedInterval, error) {
	return bookedIntervals(ctx, r.pool, staffID, date)
}

// ListBookings returns a shop's bookings, newest first. A zero date lists every day.
func (r *Repository) ListBookings(ctx context.Context, shopID string, date time.Time, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	var dateArg any
	if !date.IsZero() {
		dateArg = date
	}
	rows, err := r.pool.Query(ctx, selectBooking+`
		WHERE shop_id = $1 AND ($2::date IS NULL OR booking_date = $2::date)
		ORDER BY booking_date DESC, start_minute ASC
		LIMIT $3
	`, shopID, dateArg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func bookedIntervals(ctx context.Context, q querier, staffID string, date time.Time) ([]availability.BookedInterval, error) {
	rows, err := q.Query(ctx, `
		SELECT start_minute, end_minute
		FROM bookings
		WHERE staff_id = $1 AND booking_date = $2 AND status = 'booked'
		ORDER BY start_minute ASC
	`, staffID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	booked := []availability.BookedInterval{}
	for rows.Next() {
		var start, end int
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		booked = append(booked, availability.BookedInterval{
			Start: availability.MinutesToTime(start),
			End:   availability.MinutesToTime(end),
		})
	}
	return booked, rows.Err()
}

const selectBooking = `
	SELECT id::text, shop_id::text, staff_id::text, COALESCE(service_id::text, ''),
		customer_name, COALESCE(customer_email, ''), COALESCE(customer_phone, ''),
		booking_date, start_minute, end_minute, status, cancelled_at,
		COALESCE(cancellation_reason, ''), created_at
	FROM bookings`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.ShopID, &b.StaffID, &b.ServiceID,
		&b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
		&b.Date, &b.StartMinute, &b.EndMinute, &b.Status, &b.CancelledAt,
		&b.CancelReason, &b.CreatedAt)
	return b, err
}

func lockIdempotencyKey(ctx context.Context, tx pgx.Tx, shopID, key string) (*StoredResponse, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (shop_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (shop_id, idempotency_key) DO NOTHING
	`, shopID, key); err != nil {
		return nil, err
	}

	var (
		status int
		body   []byte
	)
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(status_code, 0), response_payload
		FROM booking_idempotency_keys
		WHERE shop_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, shopID, key).Scan(&status, &body); err != nil {
		return nil, err
	}
	if status == 0 {
		return nil, nil
	}
	return &StoredResponse{StatusCode: status, Body: body}, nil
}

func finalizeIdempotency(ctx context.Context, tx pgx.Tx, shopID, key, bookingID string, resp StoredResponse) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $3, status_code = $4, response_payload = $5, updated_at = now()
		WHERE shop_id = $1 AND idempotency_key = $2
	`, shopID, key, bookingID, resp.StatusCode, resp.Body)
	return err
}
