package client

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"cropconnect/models"
)

// Cart mirrors the server cart. Local checks only avoid pointless requests;
// the server's answer always wins.
type Cart struct {
	api   *Transport
	mu    sync.RWMutex
	items []models.CartItem
}

func NewCart(api *Transport) *Cart {
	return &Cart{api: api}
}

func (c *Cart) Items() []models.CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.CartItem(nil), c.items...)
}

func (c *Cart) Item(itemID string) (models.CartItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.FindCartItem(c.items, itemID)
}

// Total is recomputed from the snapshot on every call.
func (c *Cart) Total() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.CartTotal(c.items)
}

// ClampQuantity pulls typed input into [1, available].
func ClampQuantity(n, available int) (int, string) {
	return models.ClampQuantity(n, available)
}

func (c *Cart) Refresh(ctx context.Context) error {
	var res struct {
		Items []models.CartItem `json:"items"`
	}
	if err := c.api.Do(ctx, "GET", "/api/cart", nil, &res); err != nil {
		return err
	}
	c.mu.Lock()
	c.items = res.Items
	c.mu.Unlock()
	return nil
}

func (c *Cart) AddItem(ctx context.Context, crop models.Crop, quantity int) error {
	already := 0
	if it, ok := c.Item(crop.CropID); ok {
		already = it.Quantity
	}
	if quantity < 1 {
		return models.FieldError("quantity", "must be at least 1")
	}
	if quantity+already > crop.QuantityAvailable {
		return models.CheckQuantity(quantity+already, crop.QuantityAvailable)
	}

	body := map[string]any{"cropId": crop.CropID, "quantity": quantity}
	if err := c.api.Do(ctx, "POST", "/api/cart", body, nil); err != nil {
		return c.reconcile(ctx, crop.CropID, err)
	}
	return c.Refresh(ctx)
}

func (c *Cart) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	it, ok := c.Item(itemID)
	if !ok {
		return models.Invalid("itemId", "Item is not in your cart")
	}
	if err := models.CheckQuantity(quantity, it.AvailableQuantity); err != nil {
		return err
	}
	body := map[string]int{"quantity": quantity}
	if err := c.api.Do(ctx, "PUT", "/api/cart/"+url.PathEscape(itemID), body, nil); err != nil {
		return c.reconcile(ctx, itemID, err)
	}
	return c.Refresh(ctx)
}

// RemoveItem is a no-op without a request when the item is absent.
func (c *Cart) RemoveItem(ctx context.Context, itemID string) error {
	if _, ok := c.Item(itemID); !ok {
		return nil
	}
	if err := c.api.Do(ctx, "DELETE", "/api/cart/"+url.PathEscape(itemID), nil, nil); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

func (c *Cart) Clear(ctx context.Context) error {
	if err := c.api.Do(ctx, "DELETE", "/api/cart", nil, nil); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// reconcile turns a stock conflict into *StockConflictError after re-fetching.
func (c *Cart) reconcile(ctx context.Context, itemID string, err error) error {
	var api *APIError
	if !errors.As(err, &api) || !api.IsConflict() {
		return err
	}
	if rerr := c.Refresh(ctx); rerr != nil {
		return rerr
	}
	conflict := &StockConflictError{ItemID: itemID, Message: api.Message}
	if api.AvailableQuantity != nil {
		conflict.Available = *api.AvailableQuantity
	} else if it, ok := c.Item(itemID); ok {
		conflict.Available = it.AvailableQuantity
	}
	return conflict
}
