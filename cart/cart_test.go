package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropconnect/farms"
	"cropconnect/globals"
	"cropconnect/models"
)

func setup() (*httprouter.Router, *MemoryStore, *farms.MemoryStore) {
	crops := farms.NewMemoryStore(
		models.Crop{CropID: "wheat", CropName: "Wheat", PricePerUnit: 24.5, Unit: "kg", QuantityAvailable: 5, SellerID: "farmer-1"},
		models.Crop{CropID: "rice", CropName: "Rice", PricePerUnit: 40, Unit: "kg", QuantityAvailable: 10, SellerID: "farmer-2"},
	)
	items := NewMemoryStore()
	h := NewHandler(items, crops)

	asBuyer := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			ctx := context.WithValue(r.Context(), globals.UserIDKey, "buyer-1")
			next(w, r.WithContext(ctx), ps)
		}
	}
	r := httprouter.New()
	r.GET("/api/cart", asBuyer(h.GetCart))
	r.POST("/api/cart", asBuyer(h.AddToCart))
	r.PUT("/api/cart/:itemId", asBuyer(h.UpdateCartItem))
	r.DELETE("/api/cart/:itemId", asBuyer(h.RemoveCartItem))
	r.DELETE("/api/cart", asBuyer(h.ClearCart))
	return r, items, crops
}

func call(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestAddMergesQuantity(t *testing.T) {
	r, items, _ := setup()

	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/api/cart", map[string]any{"itemId": "wheat", "quantity": 2}).Code)
	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/api/cart", map[string]any{"itemId": "wheat", "quantity": 3}).Code)

	line, err := items.Get(context.Background(), "buyer-1", "wheat")
	require.NoError(t, err)
	assert.Equal(t, 5, line.Quantity)
	assert.Equal(t, "farmer-1", line.SellerID)
}

func TestAddBeyondStockConflicts(t *testing.T) {
	r, _, _ := setup()
	call(t, r, http.MethodPost, "/api/cart", map[string]any{"itemId": "wheat", "quantity": 4})

	rec := call(t, r, http.MethodPost, "/api/cart", map[string]any{"itemId": "wheat", "quantity": 2})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Only 5 available","availableQuantity":5}`, rec.Body.String())
}

func TestGetCartRefreshesAvailability(t *testing.T) {
	r, _, crops := setup()
	call(t, r, http.MethodPost, "/api/cart", map[string]any{"itemId": "wheat", "quantity": 2})
	call(t, r, http.MethodPost, "/api/cart", map[string]any{"itemId": "rice", "quantity": 1})
	require.NoError(t, crops.DecrementStock(context.Background(), "wheat", 2))

	rec := call(t, r, http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)

	byID := map[string]models.CartItem{}
	for _, it := range body.Items {
		byID[it.ItemID] = it
	}
	assert.Equal(t, 3, byID["wheat"].AvailableQuantity)
	assert.Equal(t, 89.0, body.Total)
}

func TestUpdateQuantityBounds(t *testing.T) {
	r, _, _ := setup()
	call(t, r, http.MethodPost, "/api/cart", map[string]any{"itemId": "rice", "quantity": 1})

	assert.Equal(t, http.StatusBadRequest, call(t, r, http.MethodPut, "/api/cart/rice", map[string]any{"quantity": 0}).Code)
	assert.Equal(t, http.StatusConflict, call(t, r, http.MethodPut, "/api/cart/rice", map[string]any{"quantity": 11}).Code)
	assert.Equal(t, http.StatusOK, call(t, r, http.MethodPut, "/api/cart/rice", map[string]any{"quantity": 10}).Code)
	assert.Equal(t, http.StatusNotFound, call(t, r, http.MethodPut, "/api/cart/wheat", map[string]any{"quantity": 1}).Code)
}

func TestRemoveIsIdempotentAndClearEmpties(t *testing.T) {
	r, items, _ := setup()
	call(t, r, http.MethodPost, "/api/cart", map[string]any{"itemId": "rice", "quantity": 1})
	call(t, r, http.MethodPost, "/api/cart", map[string]any{"itemId": "wheat", "quantity": 1})

	assert.Equal(t, http.StatusOK, call(t, r, http.MethodDelete, "/api/cart/rice", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, r, http.MethodDelete, "/api/cart/rice", nil).Code)

	assert.Equal(t, http.StatusOK, call(t, r, http.MethodDelete, "/api/cart", nil).Code)
	left, _ := items.List(context.Background(), "buyer-1")
	assert.Empty(t, left)
}
