package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropconnect/db"
	"cropconnect/globals"
	"cropconnect/models"
	"cropconnect/mq"
	"cropconnect/pay"
	"cropconnect/rdx"
)

type recorder struct {
	mu     sync.Mutex
	events []mq.Event
}

func (r *recorder) Emit(_ context.Context, evt mq.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) ofType(typ string) []mq.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []mq.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	router   *httprouter.Router
	svc      *Service
	bookings *MemoryBookings
	bids     *MemoryBids
	gateway  *pay.MockGateway
	orders   *pay.MemoryGatewayOrders
	ledger   *pay.MemoryLedger
	events   *recorder
}

// identity takes the caller from the X-User and X-Role headers.
func identity(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), globals.UserIDKey, r.Header.Get("X-User"))
		ctx = context.WithValue(ctx, globals.RoleKey, r.Header.Get("X-Role"))
		next(w, r.WithContext(ctx), ps)
	}
}

func newFixture() *fixture {
	f := &fixture{
		bookings: NewMemoryBookings(),
		bids:     NewMemoryBids(),
		gateway:  pay.NewMockGateway(),
		orders:   pay.NewMemoryGatewayOrders(),
		ledger:   pay.NewMemoryLedger(),
		events:   &recorder{},
	}
	payments := pay.NewService(f.gateway, f.orders, f.ledger)
	f.svc = NewService(NewMemoryRequirements(), f.bids, f.bookings, rdx.NewMemory(), payments, f.events)

	r := httprouter.New()
	r.POST("/api/requirements/:kind", identity(f.svc.CreateRequirement))
	r.GET("/api/requirements/:kind", identity(f.svc.ListRequirements))
	r.GET("/api/requirements/:kind/:id", identity(f.svc.GetRequirement))
	r.PUT("/api/requirements/:kind/:id/cancel", identity(f.svc.CancelRequirement))
	r.PUT("/api/requirements/:kind/:id/complete", identity(f.svc.CompleteRequirement))
	r.POST("/api/requirements/:kind/:id/bids", identity(f.svc.PlaceBid))
	r.GET("/api/requirements/:kind/:id/bids", identity(f.svc.ListBids))
	r.GET("/api/bids/mine", identity(f.svc.MyBids))
	r.POST("/api/bids/:id/accept", identity(f.svc.AcceptBid))
	r.POST("/api/bids/:id/reject", identity(f.svc.RejectBid))
	r.POST("/api/bookings", identity(f.svc.CreateBooking))
	r.GET("/api/bookings", identity(f.svc.ListBookings))
	r.GET("/api/bookings/:id", identity(f.svc.GetBooking))
	r.PUT("/api/bookings/:id/status", identity(f.svc.UpdateBookingStatus))
	r.PUT("/api/bookings/:id/cancel", identity(f.svc.CancelBooking))
	r.PUT("/api/bookings/:id/payment-method", identity(f.svc.SetPaymentMethod))
	r.POST("/api/bookings/:id/verify-payment", identity(f.svc.VerifyPayment))
	r.POST("/api/bookings/:id/settle-cash", identity(f.svc.SettleCash))
	f.router = r
	return f
}

type caller struct {
	id   string
	role models.Role
}

var (
	farmer  = caller{"farmer-1", models.RoleFarmer}
	owner1  = caller{"owner-1", models.RoleTractorOwner}
	owner2  = caller{"owner-2", models.RoleTractorOwner}
	worker1 = caller{"worker-1", models.RoleWorker}
)

func (f *fixture) do(t *testing.T, who caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User", who.id)
	req.Header.Set("X-Role", string(who.role))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[struct {
		Message string `json:"message"`
	}](t, rec).Message
}

func (f *fixture) postTractorRequirement(t *testing.T) models.Requirement {
	t.Helper()
	rec := f.do(t, farmer, http.MethodPost, "/api/requirements/tractor", map[string]any{
		"workDescription": "Plough 3 acres",
		"budget":          500,
		"location":        map[string]string{"village": "Rampur"},
		"startDate":       "2026-03-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[struct {
		Requirement models.Requirement `json:"requirement"`
	}](t, rec).Requirement
}

func (f *fixture) bid(t *testing.T, who caller, req models.Requirement, amount float64) models.Bid {
	t.Helper()
	rec := f.do(t, who, http.MethodPost, "/api/requirements/"+string(req.Kind)+"/"+req.RequirementID+"/bids", map[string]any{
		"proposedAmount":   amount,
		"proposedDuration": "1 day",
		"proposedDate":     "2026-03-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[struct {
		Bid models.Bid `json:"bid"`
	}](t, rec).Bid
}

func TestCreateRequirementValidation(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{"no budget", map[string]any{"location": map[string]string{"village": "R"}, "startDate": "2026-03-10"}, "budget must be greater than 0"},
		{"no location", map[string]any{"budget": 500, "startDate": "2026-03-10"}, "location at least one location field is required"},
		{"no start", map[string]any{"budget": 500, "location": map[string]string{"district": "D"}}, "startDate is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, farmer, http.MethodPost, "/api/requirements/tractor", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.want, message(t, rec))
		})
	}

	rec := f.do(t, farmer, http.MethodPost, "/api/requirements/harvester", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAcceptBidRejectsSiblingsAndBooksOnce(t *testing.T) {
	f := newFixture()
	req := f.postTractorRequirement(t)
	cheap := f.bid(t, owner1, req, 480)
	dear := f.bid(t, owner2, req, 520)

	rec := f.do(t, farmer, http.MethodPost, "/api/bids/"+cheap.BidID+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[struct {
		Booking     models.Booking     `json:"booking"`
		Requirement models.Requirement `json:"requirement"`
	}](t, rec)

	assert.Equal(t, 480.0, out.Booking.TotalCost)
	assert.Equal(t, models.BookingConfirmed, out.Booking.Status)
	assert.Equal(t, models.PaymentPending, out.Booking.PaymentStatus)
	assert.Equal(t, owner1.id, out.Booking.ProviderID)
	assert.Equal(t, models.RequirementInProgress, out.Requirement.Status)
	assert.Equal(t, cheap.BidID, out.Requirement.AcceptedBidID)

	got, err := f.bids.Get(context.Background(), dear.BidID)
	require.NoError(t, err)
	assert.Equal(t, models.BidRejected, got.Status)

	all, err := f.bids.ForRequirement(context.Background(), req.RequirementID)
	require.NoError(t, err)
	assert.Equal(t, 1, models.CountAccepted(all))

	bookings, err := f.bookings.ForUser(context.Background(), BookingQuery{UserID: farmer.id})
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	assert.Len(t, f.events.ofType(mq.BidAccepted), 1)
	rejected := f.events.ofType(mq.BidRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, owner2.id, rejected[0].UserID)

	again := f.do(t, farmer, http.MethodPost, "/api/bids/"+dear.BidID+"/accept", nil)
	assert.Equal(t, http.StatusConflict, again.Code)

	same := f.do(t, farmer, http.MethodPost, "/api/bids/"+cheap.BidID+"/accept", nil)
	assert.Equal(t, http.StatusConflict, same.Code)
	assert.Equal(t, "bid already accepted", message(t, same))
}

func TestConcurrentAcceptCreatesOneBooking(t *testing.T) {
	f := newFixture()
	req := f.postTractorRequirement(t)
	a := f.bid(t, owner1, req, 480)
	b := f.bid(t, owner2, req, 520)

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i, id := range []string{a.BidID, b.BidID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			codes[i] = f.do(t, farmer, http.MethodPost, "/api/bids/"+id+"/accept", nil).Code
		}(i, id)
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, codes)
	bookings, err := f.bookings.ForUser(context.Background(), BookingQuery{UserID: farmer.id})
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestPlaceBidRules(t *testing.T) {
	f := newFixture()
	req := f.postTractorRequirement(t)
	body := map[string]any{"proposedAmount": 400, "proposedDuration": "1 day", "proposedDate": "2026-03-10"}
	path := "/api/requirements/tractor/" + req.RequirementID + "/bids"

	assert.Equal(t, http.StatusForbidden, f.do(t, worker1, http.MethodPost, path, body).Code)

	f.bid(t, owner1, req, 400)
	dup := f.do(t, owner1, http.MethodPost, path, body)
	assert.Equal(t, http.StatusConflict, dup.Code)

	bad := f.do(t, owner2, http.MethodPost, path, map[string]any{"proposedAmount": 400, "proposedDuration": "1 day"})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "proposedDate is required", message(t, bad))

	require.Equal(t, http.StatusOK, f.do(t, farmer, http.MethodPut, "/api/requirements/tractor/"+req.RequirementID+"/cancel", nil).Code)
	closed := f.do(t, owner2, http.MethodPost, path, body)
	assert.Equal(t, http.StatusConflict, closed.Code)
}

func TestListRequirementsOpenAndMine(t *testing.T) {
	f := newFixture()
	open := f.postTractorRequirement(t)
	done := f.postTractorRequirement(t)
	require.Equal(t, http.StatusOK, f.do(t, farmer, http.MethodPut, "/api/requirements/tractor/"+done.RequirementID+"/cancel", nil).Code)

	list := decode[struct {
		Requirements []models.Requirement `json:"requirements"`
	}](t, f.do(t, owner1, http.MethodGet, "/api/requirements/tractor", nil)).Requirements
	require.Len(t, list, 1)
	assert.Equal(t, open.RequirementID, list[0].RequirementID)

	mine := decode[struct {
		Requirements []models.Requirement `json:"requirements"`
	}](t, f.do(t, farmer, http.MethodGet, "/api/requirements/tractor?mine=true", nil)).Requirements
	assert.Len(t, mine, 2)
}

func acceptedBooking(t *testing.T, f *fixture) models.Booking {
	t.Helper()
	req := f.postTractorRequirement(t)
	bid := f.bid(t, owner1, req, 480)
	rec := f.do(t, farmer, http.MethodPost, "/api/bids/"+bid.BidID+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[struct {
		Booking models.Booking `json:"booking"`
	}](t, rec).Booking
}

func TestBookingStatusFlow(t *testing.T) {
	f := newFixture()
	b := acceptedBooking(t, f)
	path := "/api/bookings/" + b.BookingID + "/status"

	assert.Equal(t, http.StatusForbidden, f.do(t, farmer, http.MethodPut, path, map[string]string{"status": "in_progress"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, owner1, http.MethodPut, path, map[string]string{"status": "pending"}).Code)
	assert.Equal(t, http.StatusOK, f.do(t, owner1, http.MethodPut, path, map[string]string{"status": "in_progress"}).Code)
	assert.Equal(t, http.StatusOK, f.do(t, farmer, http.MethodPut, path, map[string]string{"status": "completed"}).Code)

	req, err := f.svc.Requirement(context.Background(), b.RequirementID)
	require.NoError(t, err)
	assert.Equal(t, models.RequirementCompleted, req.Status)

	assert.Equal(t, http.StatusNotFound, f.do(t, owner2, http.MethodGet, "/api/bookings/"+b.BookingID, nil).Code)
}

func TestCancelBooking(t *testing.T) {
	f := newFixture()
	b := acceptedBooking(t, f)
	path := "/api/bookings/" + b.BookingID + "/cancel"

	noReason := f.do(t, farmer, http.MethodPut, path, map[string]string{"reason": "  "})
	assert.Equal(t, http.StatusBadRequest, noReason.Code)
	assert.Equal(t, "Cancellation reason is required", message(t, noReason))

	rec := f.do(t, farmer, http.MethodPut, path, map[string]string{"reason": "Rain"})
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := f.bookings.Get(context.Background(), b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, got.Status)
	assert.Equal(t, "Rain", got.CancellationReason)

	req, err := f.svc.Requirement(context.Background(), b.RequirementID)
	require.NoError(t, err)
	assert.Equal(t, models.RequirementCancelled, req.Status)
}

func TestVerifyPaymentMarksPaid(t *testing.T) {
	f := newFixture()
	b := acceptedBooking(t, f)
	ctx := context.Background()
	require.NoError(t, f.orders.Save(ctx, models.GatewayOrder{
		ID: "order_1", Purpose: models.RefBooking, ReferenceID: b.BookingID,
		UserID: farmer.id, Amount: 48000, Currency: "INR", CreatedAt: time.Now(),
	}))

	path := "/api/bookings/" + b.BookingID + "/verify-payment"
	forged := f.do(t, farmer, http.MethodPost, path, map[string]string{
		"razorpay_order_id": "order_1", "razorpay_payment_id": "pay_1", "razorpay_signature": "bad",
	})
	assert.Equal(t, http.StatusBadRequest, forged.Code)

	rec := f.do(t, farmer, http.MethodPost, path, map[string]string{
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  f.gateway.Sign("order_1", "pay_1"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := f.bookings.Get(ctx, b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, models.PayNow, got.PaymentMethod)

	txns, err := f.ledger.ForUser(ctx, owner1.id)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, 480.0, txns[0].Amount)
	assert.Equal(t, models.CategoryTractor, txns[0].Category)

	blocked := f.do(t, farmer, http.MethodPut, "/api/bookings/"+b.BookingID+"/cancel", map[string]string{"reason": "Changed plans"})
	assert.Equal(t, http.StatusConflict, blocked.Code)
}

func TestSettleCashAfterWork(t *testing.T) {
	f := newFixture()
	b := acceptedBooking(t, f)
	base := "/api/bookings/" + b.BookingID

	assert.Equal(t, http.StatusBadRequest, f.do(t, owner1, http.MethodPost, base+"/settle-cash", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, farmer, http.MethodPut, base+"/payment-method", map[string]string{"paymentMethod": "pay_after_work"}).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, farmer, http.MethodPost, base+"/settle-cash", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, owner1, http.MethodPost, base+"/settle-cash", nil).Code)

	txns, err := f.ledger.ForUser(context.Background(), farmer.id)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.MethodCash, txns[0].Method)
	assert.Equal(t, http.StatusConflict, f.do(t, owner1, http.MethodPost, base+"/settle-cash", nil).Code)
}

func TestDirectBookingRejectsBusyProvider(t *testing.T) {
	f := newFixture()
	body := map[string]any{
		"serviceType": "worker", "providerId": worker1.id, "bookingDate": "2026-04-01",
		"location": map[string]string{"village": "Rampur"}, "totalCost": 350,
	}
	rec := f.do(t, farmer, http.MethodPost, "/api/bookings", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Booking models.Booking `json:"booking"`
	}](t, rec).Booking
	assert.Equal(t, models.BookingPending, created.Status)

	assert.Equal(t, http.StatusConflict, f.do(t, farmer, http.MethodPost, "/api/bookings", body).Code)

	list := decode[struct {
		Bookings []models.Booking `json:"bookings"`
	}](t, f.do(t, worker1, http.MethodGet, "/api/bookings?serviceType=worker", nil)).Bookings
	assert.Len(t, list, 1)
}

func (f *fixture) directBooking(t *testing.T, date string) models.Booking {
	t.Helper()
	rec := f.do(t, farmer, http.MethodPost, "/api/bookings", map[string]any{
		"serviceType": "worker", "providerId": worker1.id, "bookingDate": date,
		"location": map[string]string{"village": "Rampur"}, "totalCost": 350,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[struct {
		Booking models.Booking `json:"booking"`
	}](t, rec).Booking
}

func TestGatewayOrderPaysOnlyItsBooking(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.directBooking(t, "2026-04-01")
	b := f.directBooking(t, "2026-04-02")
	require.NoError(t, f.orders.Save(ctx, models.GatewayOrder{
		ID: "order_a", Purpose: models.RefBooking, ReferenceID: a.BookingID,
		UserID: farmer.id, Amount: 35000, Currency: "INR", CreatedAt: time.Now(),
	}))
	proof := map[string]string{
		"razorpay_order_id":   "order_a",
		"razorpay_payment_id": "pay_a",
		"razorpay_signature":  f.gateway.Sign("order_a", "pay_a"),
	}

	wrong := f.do(t, farmer, http.MethodPost, "/api/bookings/"+b.BookingID+"/verify-payment", proof)
	assert.Equal(t, http.StatusBadRequest, wrong.Code)
	assert.Equal(t, "Unknown payment order", message(t, wrong))

	right := f.do(t, farmer, http.MethodPost, "/api/bookings/"+a.BookingID+"/verify-payment", proof)
	require.Equal(t, http.StatusOK, right.Code, right.Body.String())

	gotA, err := f.bookings.Get(ctx, a.BookingID)
	require.NoError(t, err)
	gotB, err := f.bookings.Get(ctx, b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, gotA.PaymentStatus)
	assert.Equal(t, models.PaymentPending, gotB.PaymentStatus)

	gwo, err := f.orders.Get(ctx, "order_a")
	require.NoError(t, err)
	assert.Equal(t, a.BookingID, gwo.UsedBy)

	txns, err := f.ledger.ForUser(ctx, farmer.id)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestGatewayOrderIsConsumedOnce(t *testing.T) {
	g := pay.NewMockGateway()
	orders := pay.NewMemoryGatewayOrders()
	payments := pay.NewService(g, orders, pay.NewMemoryLedger())
	ctx := context.Background()
	require.NoError(t, orders.Save(ctx, models.GatewayOrder{ID: "order_1", Purpose: models.RefBooking, ReferenceID: "b1", UserID: farmer.id, Amount: 35000}))
	v := models.PaymentVerification{OrderID: "order_1", PaymentID: "pay_1", Signature: g.Sign("order_1", "pay_1")}

	claim := pay.Claim{UserID: farmer.id, Purpose: models.RefBooking, ReferenceID: "b1", UsedBy: "b1", Amount: 350}
	require.NoError(t, payments.Confirm(ctx, claim, v))
	require.NoError(t, payments.Confirm(ctx, claim, v))

	other := claim
	other.UsedBy = "b2"
	assert.ErrorIs(t, payments.Confirm(ctx, other, v), pay.ErrPaymentUsed)

	payments.Release(ctx, "order_1", "b1")
	assert.NoError(t, payments.Confirm(ctx, other, v))
}

func TestMemoryBookingsRejectReusedGatewayOrder(t *testing.T) {
	s := NewMemoryBookings()
	ctx := context.Background()
	a := models.Booking{BookingID: "a", Status: models.BookingPending, PaymentStatus: models.PaymentPending}
	b := models.Booking{BookingID: "b", Status: models.BookingPending, PaymentStatus: models.PaymentPending}
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	a.GatewayOrderID = "order_1"
	require.NoError(t, s.UpdateIf(ctx, a, models.BookingPending, models.PaymentPending))
	b.GatewayOrderID = "order_1"
	assert.ErrorIs(t, s.UpdateIf(ctx, b, models.BookingPending, models.PaymentPending), db.ErrDuplicate)
}

// flakyBookings fails Create until healed.
type flakyBookings struct {
	BookingStore
	broken bool
}

func (s *flakyBookings) Create(ctx context.Context, b models.Booking) error {
	if s.broken {
		return errors.New("write timeout")
	}
	return s.BookingStore.Create(ctx, b)
}

func TestAcceptBidRollsBackWhenBookingFails(t *testing.T) {
	f := newFixture()
	flaky := &flakyBookings{BookingStore: f.bookings, broken: true}
	f.svc.bookings = flaky
	req := f.postTractorRequirement(t)
	cheap := f.bid(t, owner1, req, 480)
	dear := f.bid(t, owner2, req, 520)

	rec := f.do(t, farmer, http.MethodPost, "/api/bids/"+cheap.BidID+"/accept", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	ctx := context.Background()
	got, err := f.svc.Requirement(ctx, req.RequirementID)
	require.NoError(t, err)
	assert.Equal(t, models.RequirementOpen, got.Status)
	assert.Empty(t, got.BookingID)
	for _, id := range []string{cheap.BidID, dear.BidID} {
		bid, err := f.bids.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.BidPending, bid.Status)
	}
	assert.Empty(t, f.events.ofType(mq.BidAccepted))

	flaky.broken = false
	retry := f.do(t, farmer, http.MethodPost, "/api/bids/"+cheap.BidID+"/accept", nil)
	require.Equal(t, http.StatusOK, retry.Code, retry.Body.String())
	bookings, err := f.bookings.ForUser(ctx, BookingQuery{UserID: farmer.id})
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

type brokenLocker struct{}

func (brokenLocker) Lock(context.Context, string, time.Duration) (func(), error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestAcceptBidLockBackendDown(t *testing.T) {
	f := newFixture()
	req := f.postTractorRequirement(t)
	bid := f.bid(t, owner1, req, 480)
	f.svc.locker = brokenLocker{}

	rec := f.do(t, farmer, http.MethodPost, "/api/bids/"+bid.BidID+"/accept", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEqual(t, "bid already accepted", message(t, rec))
}
