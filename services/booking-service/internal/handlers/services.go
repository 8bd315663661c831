package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type createServiceRequest struct {
	ShopID          string `json:"shop_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

type serviceItem struct {
	ID              string `json:"id"`
	ShopID          string `json:"shop_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

// Services handles the owner's POST (create) and GET (list) of the service catalog.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createService(w, r)
	case http.MethodGet:
		shopID := queryParam(r, "shop_id")
		if shopID == "" {
			http.Error(w, "shop_id is required", http.StatusBadRequest)
			return
		}
		if _, ok := h.ownedShop(w, r, shopID); !ok {
			return
		}
		h.writeServices(w, r, shopID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// PublicServices lists a shop's catalog for customers choosing what to book.
func (h *Handler) PublicServices(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	shopID := queryParam(r, "shop_id")
	if shopID == "" {
		http.Error(w, "shop_id is required", http.StatusBadRequest)
		return
	}
	h.writeServices(w, r, shopID)
}

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
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
	if req.DurationMinutes <= 0 || req.DurationMinutes > availability.MinutesPerDay {
		http.Error(w, "duration_minutes must be between 1 and 1440", http.StatusBadRequest)
		return
	}
	if req.PriceCents < 0 {
		http.Error(w, "price_cents must not be negative", http.StatusBadRequest)
		return
	}
	if _, ok := h.ownedShop(w, r, req.ShopID); !ok {
		return
	}

	svc := model.Service{
		ID:              uuid.NewString(),
		ShopID:          req.ShopID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		PriceCents:      req.PriceCents,
	}
	if err := h.store.CreateService(r.Context(), svc); err != nil {
		h.logger.Error("create service failed", "err", err, "shop_id", svc.ShopID)
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toServiceItem(svc))
}

func (h *Handler) writeServices(w http.ResponseWriter, r *http.Request, shopID string) {
	services, err := h.store.ListServices(r.Context(), shopID)
	if err != nil {
		h.logger.Error("list services failed", "err", err, "shop_id", shopID)
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	items := make([]serviceItem, 0, len(services))
	for _, s := range services {
		items = append(items, toServiceItem(s))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func toServiceItem(s model.Service) serviceItem {
	return serviceItem{
		ID:              s.ID,
		ShopID:          s.ShopID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		PriceCents:      s.PriceCents,
	}
}
