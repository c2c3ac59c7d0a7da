package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CartItem represents a single crop in the buyer's cart.
// AvailableQuantity is a snapshot of the listing's stock and is advisory only.
type CartItem struct {
	UserID            string    `json:"userId" bson:"userId"`
	ItemID            string    `json:"itemId" bson:"itemId"`
	Name              string    `json:"name" bson:"name"`
	UnitPrice         float64   `json:"unitPrice" bson:"unitPrice"`
	Quantity          int       `json:"quantity" bson:"quantity"`
	Unit              string    `json:"unit,omitempty" bson:"unit,omitempty"`
	AvailableQuantity int       `json:"availableQuantity" bson:"availableQuantity"`
	SellerID          string    `json:"sellerId" bson:"sellerId"`
	AddedAt           time.Time `json:"addedAt" bson:"addedAt"`
}

// CheckQuantity reports whether quantity lies in [1, available].
func CheckQuantity(quantity, available int) error {
	if quantity < 1 {
		return FieldError("quantity", "must be at least 1")
	}
	if quantity > available {
		return Invalid("quantity", fmt.Sprintf("Only %d available", available))
	}
	return nil
}

// ClampQuantity pulls typed input back into [1, available]. The warning is
// non-empty when the value had to be lowered to the stock bound. With nothing
// in stock the result is 0 and the warning says so.
func ClampQuantity(quantity, available int) (int, string) {
	if available < 1 {
		return 0, "Out of stock"
	}
	if quantity < 1 {
		return 1, ""
	}
	if quantity > available {
		return available, fmt.Sprintf("Only %d available", available)
	}
	return quantity, ""
}

// CartTotal is Σ unitPrice × quantity, rounded to paise.
func CartTotal(items []CartItem) float64 {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(lineTotal(it.UnitPrice, it.Quantity))
	}
	return total.Round(2).InexactFloat64()
}

// FindCartItem returns the item with the given id and whether it was found.
func FindCartItem(items []CartItem, itemID string) (CartItem, bool) {
	for _, it := range items {
		if it.ItemID == itemID {
			return it, true
		}
	}
	return CartItem{}, false
}
