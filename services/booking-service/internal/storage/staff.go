package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

func (r *Repository) CreateStaff(ctx context.Context, s model.StaffMember, evt outbox.Event) error {
	schedule, err := encodeSchedule(s.Schedule)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff (id, shop_id, name, is_active, schedule)
			VALUES ($1, $2, $3, $4, $5)
		`, s.ID, s.ShopID, s.Name, s.IsActive, schedule); err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
}

func (r *Repository) ListStaff(ctx context.Context, shopID string) ([]model.StaffMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, shop_id::text, name, is_active, schedule, created_at
		FROM staff
		WHERE shop_id = $1
		ORDER BY name ASC
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StaffMember
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StaffMember loads one staff member together with the leaves the calculator needs.
func (r *Repository) StaffMember(ctx context.Context, staffID string) (model.StaffMember, error) {
	s, err := scanStaff(r.pool.QueryRow(ctx, `
		SELECT id::text, shop_id::text, name, is_active, schedule, created_at
		FROM staff
		WHERE id = $1
	`, staffID))
	if err != nil {
		return model.StaffMember{}, err
	}
	s.Leaves, err = r.ListLeaves(ctx, staffID)
	if err != nil {
		return model.StaffMember{}, err
	}
	return s, nil
}

func (r *Repository) ReplaceSchedule(ctx context.Context, staffID string, schedule availability.WeeklySchedule, evt outbox.Event) error {
	raw, err := encodeSchedule(schedule)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE staff SET schedule = $2, updated_at = now() WHERE id = $1`, staffID, raw)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
}

func scanStaff(row pgx.Row) (model.StaffMember, error) {
	var s model.StaffMember
	var schedule []byte
	if err := row.Scan(&s.ID, &s.ShopID, &s.Name, &s.IsActive, &schedule, &s.CreatedAt); err != nil {
		return model.StaffMember{}, err
	}
	ws, err := decodeSchedule(schedule)
	if err != nil {
		return model.StaffMember{}, fmt.Errorf("staff %s: %w", s.ID, err)
	}
	s.Schedule = ws
	return s, nil
}

// decodeSchedule keeps a NULL column as a nil schedule so the calculator can
// tell "no data" apart from "not working".
func decodeSchedule(raw []byte) (availability.WeeklySchedule, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var ws availability.WeeklySchedule
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return ws, nil
}

func encodeSchedule(ws availability.WeeklySchedule) ([]byte, error) {
	if ws == nil {
		return nil, nil
	}
	return json.Marshal(ws)
}
