package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropconnect/activity"
	"cropconnect/auth"
	"cropconnect/booking"
	"cropconnect/cart"
	"cropconnect/farms"
	"cropconnect/filemgr"
	"cropconnect/middleware"
	"cropconnect/models"
	"cropconnect/mq"
	"cropconnect/notify"
	"cropconnect/orders"
	"cropconnect/pay"
	"cropconnect/ratelim"
	"cropconnect/ratings"
	"cropconnect/rdx"
)

type harness struct {
	handler http.Handler
	tokens  *middleware.Auth
	notes   *notify.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bp := rdx.NewMemory()
	tokens := middleware.NewAuth("secret", time.Hour, bp)
	crops := farms.NewMemoryStore()
	carts := cart.NewMemoryStore()
	files := filemgr.NewManager(t.TempDir())
	payments := pay.NewService(pay.NewMockGateway(), pay.NewMemoryGatewayOrders(), pay.NewMemoryLedger())
	hiring := booking.NewService(booking.NewMemoryRequirements(), booking.NewMemoryBids(), booking.NewMemoryBookings(), bp, payments, mq.Discard{})
	market := orders.NewService(orders.NewMemoryStore(), crops, carts, bp, payments, mq.Discard{}, "receipt")
	notes := notify.NewMemoryStore()

	router := New(&Deps{
		Auth:        tokens,
		Limiter:     ratelim.NewRateLimiter(6000, 1000),
		Files:       files,
		Users:       auth.NewHandler(auth.NewMemoryStore(), tokens, bp),
		Farms:       farms.NewHandler(crops, files),
		Cart:        cart.NewHandler(carts, crops),
		Hiring:      hiring,
		Orders:      market,
		Pay:         payments,
		Idempotency: pay.NewMemoryIdempotency(),
		Ratings:     ratings.NewHandler(ratings.NewMemoryStore(), bp, market, hiring, mq.Discard{}),
		Notify:      notify.NewHandler(notes, notify.NewHub(), nil),
		Activity:    activity.NewHandler(hiring, market, payments),
		UploadDir:   t.TempDir(),
	})
	return &harness{handler: router, tokens: tokens, notes: notes}
}

func (h *harness) do(t *testing.T, method, path, body string, role models.Role) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if role != "" {
		tok, _, err := h.tokens.IssueToken(models.User{UserID: "user-" + string(role), Role: role})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndAuthRequired(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/cart", "", "").Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/cart", "", models.RoleBuyer).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/crops", "", "").Code)
}

func TestOrderPathsDispatch(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/orders/buyer", "", models.RoleBuyer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orders"`)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/orders/seller", "", models.RoleFarmer).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/orders/nope", "", models.RoleBuyer).Code)

	rec = h.do(t, http.MethodPost, "/api/orders/create-razorpay-order", `{"amount":480}`, models.RoleBuyer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"amount":48000`)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/api/orders/other", `{}`, models.RoleBuyer).Code)
}

func TestRoleGuards(t *testing.T) {
	h := newHarness(t)
	body := `{"workDescription":"Ploughing","budget":500,"location":{"village":"Rampur"},"startDate":"2025-04-01"}`
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/api/requirements/tractor", body, models.RoleBuyer).Code)
	assert.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/requirements/tractor", body, models.RoleFarmer).Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/api/bids/b1/accept", "", models.RoleWorker).Code)
}

func TestNotificationPathsDispatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.notes.Create(ctx, models.Notification{NotificationID: "n1", UserID: "user-farmer", CreatedAt: time.Now()}))
	require.NoError(t, h.notes.Create(ctx, models.Notification{NotificationID: "n2", UserID: "user-farmer", CreatedAt: time.Now()}))

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPut, "/api/notifications/n1/read", "", models.RoleFarmer).Code)
	rec := h.do(t, http.MethodPut, "/api/notifications/read-all", "", models.RoleFarmer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updated":1`)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPut, "/api/notifications/n2", "", models.RoleFarmer).Code)
}

func TestActivityFeedMounted(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/activity?type=debit", "", models.RoleFarmer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"failedSources":[]`)
}
