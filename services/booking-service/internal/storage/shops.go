package storage

import (
	"context"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

func (r *Repository) CreateShop(ctx context.Context, s model.Shop) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO shops (id, owner_id, name, timezone)
		VALUES ($1, $2, $3, NULLIF($4, ''))
	`, s.ID, s.OwnerID, s.Name, s.Timezone)
	return err
}

func (r *Repository) Shop(ctx context.Context, shopID string) (model.Shop, error) {
	var s model.Shop
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, owner_id::text, name, COALESCE(timezone, '')
		FROM shops
		WHERE id = $1
	`, shopID).Scan(&s.ID, &s.OwnerID, &s.Name, &s.Timezone)
	return s, err
}

// UpdateShop rewrites name and timezone. It returns pgx.ErrNoRows when the shop is gone.
func (r *Repository) UpdateShop(ctx context.Context, s model.Shop) (model.Shop, error) {
	var out model.Shop
	err := r.pool.QueryRow(ctx, `
		UPDATE shops
		SET name = $2, timezone = NULLIF($3, '')
		WHERE id = $1
		RETURNING id::text, owner_id::text, name, COALESCE(timezone, '')
	`, s.ID, s.Name, s.Timezone).Scan(&out.ID, &out.OwnerID, &out.Name, &out.Timezone)
	return out, err
}

func (r *Repository) ListShops(ctx context.Context, ownerID string) ([]model.Shop, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, owner_id::text, name, COALESCE(timezone, '')
		FROM shops
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Shop
	for rows.Next() {
		var s model.Shop
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Timezone); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
