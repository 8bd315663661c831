package storage

import (
	"context"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

func (r *Repository) CreateService(ctx context.Context, s model.Service) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO shop_services (id, shop_id, name, duration_minutes, price_cents)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.ShopID, s.Name, s.DurationMinutes, s.PriceCents)
	return err
}

func (r *Repository) Service(ctx context.Context, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, shop_id::text, name, duration_minutes, price_cents, created_at
		FROM shop_services
		WHERE id = $1
	`, serviceID).Scan(&s.ID, &s.ShopID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.CreatedAt)
	return s, err
}

func (r *Repository) ListServices(ctx context.Context, shopID string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, shop_id::text, name, duration_minutes, price_cents, created_at
		FROM shop_services
		WHERE shop_id = $1
		ORDER BY name ASC
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.ShopID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
