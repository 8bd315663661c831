package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

func (r *Repository) AddLeave(ctx context.Context, staffID string, l availability.LeaveInterval, evt outbox.Event) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_leaves (id, staff_id, title, start_date, end_date, type)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, l.ID, staffID, l.Title, l.StartDate, l.EndDate, l.Type); err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
}

func (r *Repository) ListLeaves(ctx context.Context, staffID string) ([]availability.LeaveInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, title, start_date, end_date, type
		FROM staff_leaves
		WHERE staff_id = $1
		ORDER BY start_date ASC
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leaves []availability.LeaveInterval
	for rows.Next() {
		var l availability.LeaveInterval
		if err := rows.Scan(&l.ID, &l.Title, &l.StartDate, &l.EndDate, &l.Type); err != nil {
			return nil, err
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

func (r *Repository) DeleteLeave(ctx context.Context, staffID, leaveID string, evt outbox.Event) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM staff_leaves WHERE id = $1 AND staff_id = $2`, leaveID, staffID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
}
