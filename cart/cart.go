package cart

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"cropconnect/db"
	"cropconnect/models"
	"cropconnect/utils"
)

// CropReader is the listing lookup the cart needs.
type CropReader interface {
	Get(ctx context.Context, cropID string) (models.Crop, error)
}

type Handler struct {
	items Store
	crops CropReader
}

func NewHandler(items Store, crops CropReader) *Handler {
	return &Handler{items: items, crops: crops}
}

type cartResponse struct {
	Success bool              `json:"success"`
	Items   []models.CartItem `json:"items"`
	Total   float64           `json:"total"`
}

// Snapshot returns the user's cart with each availableQuantity refreshed
// from the live listing. Lines whose listing was removed are dropped.
func (h *Handler) Snapshot(ctx context.Context, userID string) ([]models.CartItem, error) {
	items, err := h.items.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		crop, err := h.crops.Get(ctx, it.ItemID)
		if errors.Is(err, db.ErrNotFound) {
			_ = h.items.Remove(ctx, userID, it.ItemID)
			continue
		}
		if err != nil {
			return nil, err
		}
		it.AvailableQuantity = crop.QuantityAvailable
		it.UnitPrice = crop.PricePerUnit
		out = append(out, it)
	}
	return out, nil
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	items, err := h.Snapshot(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		log.Printf("[cart] snapshot: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, cartResponse{Success: true, Items: items, Total: models.CartTotal(items)})
}

func respondStock(w http.ResponseWriter, available int) {
	utils.RespondWithErrorFields(w, http.StatusConflict,
		(&models.StockError{Available: available}).Error(),
		utils.M{"availableQuantity": available})
}

// AddToCart merges quantity into an existing line or creates a new one.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in struct {
		ItemID   string `json:"itemId"`
		CropID   string `json:"cropId"`
		Quantity int    `json:"quantity"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	itemID := utils.FirstNonEmpty(in.ItemID, in.CropID)
	if itemID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "itemId is required")
		return
	}
	if in.Quantity < 1 {
		utils.RespondWithError(w, http.StatusBadRequest, "quantity must be at least 1")
		return
	}

	userID := utils.GetUserIDFromRequest(r)
	crop, err := h.crops.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Crop not found")
			return
		}
		log.Printf("[cart] crop lookup %s: %v", itemID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to add to cart")
		return
	}
	if crop.SellerID == userID {
		utils.RespondWithError(w, http.StatusBadRequest, "You cannot buy your own listing")
		return
	}

	quantity := in.Quantity
	line, err := h.items.Get(ctx, userID, itemID)
	switch {
	case err == nil:
		quantity += line.Quantity
	case errors.Is(err, db.ErrNotFound):
		line = models.CartItem{UserID: userID, ItemID: itemID, AddedAt: time.Now()}
	default:
		log.Printf("[cart] line lookup: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to add to cart")
		return
	}
	if quantity > crop.QuantityAvailable {
		respondStock(w, crop.QuantityAvailable)
		return
	}

	line.Name = crop.CropName
	line.UnitPrice = crop.PricePerUnit
	line.Unit = crop.Unit
	line.SellerID = crop.SellerID
	line.AvailableQuantity = crop.QuantityAvailable
	line.Quantity = quantity
	if err := h.items.Put(ctx, line); err != nil {
		log.Printf("[cart] put: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to add to cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "item": line})
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in struct {
		Quantity int `json:"quantity"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if in.Quantity < 1 {
		utils.RespondWithError(w, http.StatusBadRequest, "quantity must be at least 1")
		return
	}

	userID := utils.GetUserIDFromRequest(r)
	line, err := h.items.Get(ctx, userID, ps.ByName("itemId"))
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Item not in cart")
		return
	}
	crop, err := h.crops.Get(ctx, line.ItemID)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Crop not found")
		return
	}
	if in.Quantity > crop.QuantityAvailable {
		respondStock(w, crop.QuantityAvailable)
		return
	}

	line.Quantity = in.Quantity
	line.AvailableQuantity = crop.QuantityAvailable
	line.UnitPrice = crop.PricePerUnit
	if err := h.items.Put(ctx, line); err != nil {
		log.Printf("[cart] update: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "item": line})
}

// RemoveCartItem succeeds whether or not the line exists.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.items.Remove(ctx, utils.GetUserIDFromRequest(r), ps.ByName("itemId")); err != nil {
		log.Printf("[cart] remove: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to remove item")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.items.Clear(ctx, utils.GetUserIDFromRequest(r)); err != nil {
		log.Printf("[cart] clear: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to clear cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}
