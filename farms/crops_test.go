package farms

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropconnect/filemgr"
	"cropconnect/middleware"
	"cropconnect/models"
)

type harness struct {
	router *httprouter.Router
	store  *MemoryStore
	tokens *middleware.Auth
}

func newHarness(t *testing.T) *harness {
	store := NewMemoryStore()
	files := filemgr.NewManager(t.TempDir())
	tokens := middleware.NewAuth("secret", time.Hour, nil)
	h := NewHandler(store, files)

	seller := func(next httprouter.Handle) httprouter.Handle {
		return middleware.Chain(next, tokens.Authenticate, middleware.RequireRoles(models.RoleFarmer), files.Upload(filemgr.EntityCrop, "image"))
	}
	r := httprouter.New()
	r.GET("/api/crops", h.ListCrops)
	r.GET("/api/crops/:id", h.GetCrop)
	r.POST("/api/crops", seller(h.CreateCrop))
	r.PUT("/api/crops/:id", seller(h.UpdateCrop))
	r.DELETE("/api/crops/:id", middleware.Chain(h.DeleteCrop, tokens.Authenticate))
	return &harness{router: r, store: store, tokens: tokens}
}

func (hs *harness) token(t *testing.T, id string, role models.Role) string {
	tok, _, err := hs.tokens.IssueToken(models.User{UserID: id, Role: role})
	require.NoError(t, err)
	return tok
}

func form(t *testing.T, method, path, token string, fields map[string]string) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (hs *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndFetchCrop(t *testing.T) {
	hs := newHarness(t)
	tok := hs.token(t, "farmer-1", models.RoleFarmer)

	rec := hs.serve(form(t, http.MethodPost, "/api/crops", tok, map[string]string{
		"cropName": "Wheat", "pricePerUnit": "24.5", "unit": "kg",
		"quantityAvailable": "100", "location": "Ludhiana", "arrivalDate": "2026-03-01",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Crop models.Crop `json:"crop"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "farmer-1", created.Crop.SellerID)
	assert.Equal(t, 100, created.Crop.QuantityAvailable)
	require.NotNil(t, created.Crop.ArrivalDate)

	rec = hs.serve(httptest.NewRequest(http.MethodGet, "/api/crops/"+created.Crop.CropID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = hs.serve(httptest.NewRequest(http.MethodGet, "/api/crops?search=whe&location=ludh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestCreateCropValidation(t *testing.T) {
	hs := newHarness(t)
	tok := hs.token(t, "farmer-1", models.RoleFarmer)

	rec := hs.serve(form(t, http.MethodPost, "/api/crops", tok, map[string]string{"cropName": "Rice", "unit": "kg", "pricePerUnit": "0"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "pricePerUnit")

	buyer := hs.token(t, "buyer-1", models.RoleBuyer)
	rec = hs.serve(form(t, http.MethodPost, "/api/crops", buyer, map[string]string{"cropName": "Rice", "unit": "kg", "pricePerUnit": "30"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOnlyOwnerEditsOrDeletes(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.store.Create(context.Background(), models.Crop{
		CropID: "c1", CropName: "Maize", PricePerUnit: 18, Unit: "kg", QuantityAvailable: 40, SellerID: "farmer-1",
	}))

	other := hs.token(t, "farmer-2", models.RoleFarmer)
	rec := hs.serve(form(t, http.MethodPut, "/api/crops/c1", other, map[string]string{"pricePerUnit": "20"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	owner := hs.token(t, "farmer-1", models.RoleFarmer)
	rec = hs.serve(form(t, http.MethodPut, "/api/crops/c1", owner, map[string]string{"pricePerUnit": "20", "quantityAvailable": "35"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	crop, err := hs.store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, crop.PricePerUnit)
	assert.Equal(t, 35, crop.QuantityAvailable)
	assert.Equal(t, "Maize", crop.CropName)

	req := httptest.NewRequest(http.MethodDelete, "/api/crops/c1", nil)
	req.Header.Set("Authorization", "Bearer "+owner)
	assert.Equal(t, http.StatusOK, hs.serve(req).Code)
	_, err = hs.store.Get(context.Background(), "c1")
	assert.Error(t, err)
}

func TestMemoryStoreStockGuard(t *testing.T) {
	s := NewMemoryStore(models.Crop{CropID: "c1", CropName: "Onion", QuantityAvailable: 5})
	ctx := context.Background()

	require.NoError(t, s.DecrementStock(ctx, "c1", 3))
	err := s.DecrementStock(ctx, "c1", 3)
	var stock *models.StockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, 2, stock.Available)

	require.NoError(t, s.RestoreStock(ctx, "c1", 3))
	c, _ := s.Get(ctx, "c1")
	assert.Equal(t, 5, c.QuantityAvailable)
}

func TestUpdateCropWithJSONBody(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.store.Create(context.Background(), models.Crop{
		CropID: "c1", CropName: "Maize", PricePerUnit: 18, Unit: "kg", QuantityAvailable: 40, SellerID: "farmer-1",
	}))
	owner := hs.token(t, "farmer-1", models.RoleFarmer)

	req := httptest.NewRequest(http.MethodPut, "/api/crops/c1", bytes.NewBufferString(`{"pricePerUnit": 21.5, "quantityAvailable": 12}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+owner)
	rec := hs.serve(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	crop, err := hs.store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 21.5, crop.PricePerUnit)
	assert.Equal(t, 12, crop.QuantityAvailable)
	assert.Equal(t, "Maize", crop.CropName)
	assert.Empty(t, crop.ImageURL)
}
