package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type shopRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type shopItem struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone,omitempty"`
}

// Shops handles POST (create), GET (one shop or the caller's shops) and PUT (update).
// The owner is always the authenticated user.
func (h *Handler) Shops(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createShop(w, r)
	case http.MethodGet:
		shopID := queryParam(r, "shop_id")
		if shopID == "" {
			h.listShops(w, r)
			return
		}
		shop, ok := h.ownedShop(w, r, shopID)
		if !ok {
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toShopItem(shop))
	case http.MethodPut:
		h.updateShop(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createShop(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	req, ok := decodeShopRequest(w, r)
	if !ok {
		return
	}

	shop := model.Shop{
		ID:       uuid.NewString(),
		OwnerID:  claims.Sub,
		Name:     req.Name,
		Timezone: req.Timezone,
	}
	if err := h.store.CreateShop(r.Context(), shop); err != nil {
		h.logger.Error("create shop failed", "err", err, "owner_id", shop.OwnerID)
		http.Error(w, "failed to create shop", http.StatusInternalServerError)
		return
	}
	h.logger.Info("shop created", "shop_id", shop.ID, "owner_id", shop.OwnerID)
	httpx.WriteJSON(w, http.StatusCreated, toShopItem(shop))
}

func (h *Handler) updateShop(w http.ResponseWriter, r *http.Request) {
	shopID := queryParam(r, "shop_id")
	if shopID == "" {
		http.Error(w, "shop_id is required", http.StatusBadRequest)
		return
	}
	req, ok := decodeShopRequest(w, r)
	if !ok {
		return
	}
	shop, ok := h.ownedShop(w, r, shopID)
	if !ok {
		return
	}

	// Cached calendars key on the shop-local date, so a timezone change needs no invalidation.
	shop.Name = req.Name
	shop.Timezone = req.Timezone
	updated, err := h.store.UpdateShop(r.Context(), shop)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "shop not found", http.StatusNotFound)
			return
		}
		h.logger.Error("update shop failed", "err", err, "shop_id", shopID)
		http.Error(w, "failed to update shop", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toShopItem(updated))
}

func (h *Handler) listShops(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	shops, err := h.store.ListShops(r.Context(), claims.Sub)
	if err != nil {
		h.logger.Error("list shops failed", "err", err, "owner_id", claims.Sub)
		http.Error(w, "failed to list shops", http.StatusInternalServerError)
		return
	}
	items := make([]shopItem, 0, len(shops))
	for _, s := range shops {
		items = append(items, toShopItem(s))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func decodeShopRequest(w http.ResponseWriter, r *http.Request) (shopRequest, bool) {
	var req shopRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return req, false
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return req, false
	}
	// An empty timezone falls back to the service default.
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			http.Error(w, "invalid timezone", http.StatusBadRequest)
			return req, false
		}
	}
	return req, true
}

func toShopItem(s model.Shop) shopItem {
	return shopItem{
		ID:       s.ID,
		OwnerID:  s.OwnerID,
		Name:     s.Name,
		Timezone: s.Timezone,
	}
}
