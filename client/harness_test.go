package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

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
	"cropconnect/routes"
)

// liveServer runs the real router on in-memory stores.
type liveServer struct {
	*httptest.Server
	crops   *farms.MemoryStore
	gateway *pay.MockGateway
	hub     *notify.Hub
	fail    atomic.Pointer[func(*http.Request) bool]
	seq     atomic.Int64
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()
	bp := rdx.NewMemory()
	tokens := middleware.NewAuth("secret", time.Hour, bp)
	crops := farms.NewMemoryStore()
	carts := cart.NewMemoryStore()
	files := filemgr.NewManager(t.TempDir())
	gateway := pay.NewMockGateway()
	payments := pay.NewService(gateway, pay.NewMemoryGatewayOrders(), pay.NewMemoryLedger())
	hiring := booking.NewService(booking.NewMemoryRequirements(), booking.NewMemoryBids(), booking.NewMemoryBookings(), bp, payments, mq.Discard{})
	market := orders.NewService(orders.NewMemoryStore(), crops, carts, bp, payments, mq.Discard{}, "receipt")
	hub := notify.NewHub()
	go hub.Run()

	router := routes.New(&routes.Deps{
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
		Notify:      notify.NewHandler(notify.NewMemoryStore(), hub, nil),
		Activity:    activity.NewHandler(hiring, market, payments),
		UploadDir:   t.TempDir(),
	})

	s := &liveServer{crops: crops, gateway: gateway, hub: hub}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f := s.fail.Load(); f != nil && (*f)(r) {
			http.Error(w, `{"success":false,"message":"unavailable"}`, http.StatusInternalServerError)
			return
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		s.Close()
		hub.Stop()
	})
	return s
}

// failWhen makes the server answer 500 to every request f matches.
func (s *liveServer) failWhen(f func(*http.Request) bool) {
	s.fail.Store(&f)
}

// signup registers a fresh account with role and returns its client.
func (s *liveServer) signup(t *testing.T, role models.Role, gateway PaymentGateway) *Client {
	t.Helper()
	c := New(s.URL, NewMemorySessionStore(), gateway, WithRetry(0, time.Millisecond))
	n := s.seq.Add(1)
	_, err := c.Session.Register(context.Background(), Registration{
		Name:     fmt.Sprintf("%s %d", role, n),
		Email:    fmt.Sprintf("%s%d@example.com", role, n),
		Password: "secret123",
		Role:     role,
	})
	require.NoError(t, err)
	return c
}

func (s *liveServer) seedCrop(t *testing.T, id, seller string, price float64, stock int) models.Crop {
	t.Helper()
	c := models.Crop{
		CropID:            id,
		CropName:          "Wheat " + id,
		PricePerUnit:      price,
		Unit:              "quintal",
		QuantityAvailable: stock,
		SellerID:          seller,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	require.NoError(t, s.crops.Create(context.Background(), c))
	return c
}

// gatewayFunc adapts a function to PaymentGateway.
type gatewayFunc func(ctx context.Context, o GatewayOrder) (PaymentResult, error)

func (f gatewayFunc) Collect(ctx context.Context, o GatewayOrder) (PaymentResult, error) {
	return f(ctx, o)
}

// payingGateway signs every order the way the checkout widget would.
func payingGateway(m *pay.MockGateway) PaymentGateway {
	return gatewayFunc(func(_ context.Context, o GatewayOrder) (PaymentResult, error) {
		pid := "pay_" + o.ID
		return PaymentResult{Outcome: PaymentSucceeded, Payload: models.PaymentVerification{
			OrderID: o.ID, PaymentID: pid, Signature: m.Sign(o.ID, pid),
		}}, nil
	})
}

func dismissingGateway(calls *atomic.Int32) PaymentGateway {
	return gatewayFunc(func(context.Context, GatewayOrder) (PaymentResult, error) {
		calls.Add(1)
		return PaymentResult{Outcome: PaymentDismissed}, nil
	})
}

func pickup() *time.Time {
	d := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	return &d
}

func checkoutDetails(method models.OrderPaymentMethod) CheckoutDetails {
	return CheckoutDetails{
		PaymentMethod: method,
		VehicleDetails: models.VehicleDetails{
			VehicleType: "truck", VehicleNumber: "MH12AB1234", DriverName: "Ravi", DriverPhone: "9999999999",
		},
		PickupDate: pickup(),
		TimeSlot:   "morning",
	}
}
