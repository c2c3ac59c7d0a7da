package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropconnect/activity"
	"cropconnect/models"
)

func TestAwaitPaymentTakesFirstCallback(t *testing.T) {
	v := models.PaymentVerification{OrderID: "o1", PaymentID: "p1", Signature: "s"}
	res, err := AwaitPayment(context.Background(), func(cb PaymentCallbacks) error {
		go func() {
			cb.OnSuccess(v)
			cb.OnDismiss()
			cb.OnFailure("late")
		}()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, PaymentSucceeded, res.Outcome)
	assert.Equal(t, v, res.Payload)
}

func TestAwaitPaymentCancelledContextIsDismissal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := AwaitPayment(ctx, func(PaymentCallbacks) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, PaymentDismissed, res.Outcome)
}

func TestCheckoutDetailsValidate(t *testing.T) {
	d := checkoutDetails(models.PayAfterDelivery)
	d.VehicleDetails.DriverPhone = " "
	var verr *ValidationError
	require.ErrorAs(t, d.Validate(), &verr)
	assert.Equal(t, "driverPhone", verr.Field)

	d = checkoutDetails("cash")
	require.ErrorAs(t, d.Validate(), &verr)
	assert.Equal(t, "paymentMethod", verr.Field)

	d = checkoutDetails(models.PayRazorpay)
	d.PickupDate = nil
	require.ErrorAs(t, d.Validate(), &verr)
	assert.Equal(t, "pickupDate", verr.Field)
}

// completedOrder runs a pay after delivery order through to completed.
func completedOrder(t *testing.T, s *liveServer, buyer, seller *Client) models.Order {
	t.Helper()
	ctx := context.Background()
	crop := s.seedCrop(t, "c-"+seller.Session.User().UserID, seller.Session.User().UserID, 300, 10)
	require.NoError(t, buyer.Cart.AddItem(ctx, crop, 1))
	o, err := buyer.Checkout.CreateOrderFromCart(ctx, checkoutDetails(models.PayAfterDelivery))
	require.NoError(t, err)

	_, err = seller.Orders.MarkPicked(ctx, o)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr, "pending cannot jump to picked")

	for _, step := range []func(context.Context, models.Order) (models.Order, error){
		seller.Orders.ConfirmOrder, seller.Orders.MarkPicked, seller.Orders.MarkCompleted,
	} {
		o, err = step(ctx, o)
		require.NoError(t, err)
	}
	require.Equal(t, models.OrderCompleted, o.Status)
	return o
}

func TestOrderLifecycleAndCashSettlement(t *testing.T) {
	s := newLiveServer(t)
	ctx := context.Background()
	buyer := s.signup(t, models.RoleBuyer, nil)
	seller := s.signup(t, models.RoleFarmer, nil)
	o := completedOrder(t, s, buyer, seller)

	sold, err := seller.Orders.Sold(ctx)
	require.NoError(t, err)
	require.Len(t, sold, 1)

	_, err = buyer.Orders.CancelOrder(ctx, o, "late")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "This can no longer be cancelled", verr.Message)

	settled, err := seller.Orders.SettleCash(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, settled.PaymentStatus)

	_, err = seller.Orders.SettleCash(ctx, settled)
	require.ErrorAs(t, err, &verr)
}

func TestCancelOrderNeedsReason(t *testing.T) {
	s := newLiveServer(t)
	ctx := context.Background()
	buyer := s.signup(t, models.RoleBuyer, nil)
	crop := s.seedCrop(t, "c1", "seller-1", 100, 5)
	require.NoError(t, buyer.Cart.AddItem(ctx, crop, 1))
	o, err := buyer.Checkout.CreateOrderFromCart(ctx, checkoutDetails(models.PayAfterDelivery))
	require.NoError(t, err)

	_, err = buyer.Orders.CancelOrder(ctx, o, "  ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)

	cancelled, err := buyer.Orders.CancelOrder(ctx, o, "found another seller")
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)
}

func TestRatingSubmitEditDelete(t *testing.T) {
	s := newLiveServer(t)
	ctx := context.Background()
	buyer := s.signup(t, models.RoleBuyer, nil)
	seller := s.signup(t, models.RoleFarmer, nil)
	o := completedOrder(t, s, buyer, seller)
	sellerID := seller.Session.User().UserID

	_, _, err := buyer.Ratings.SubmitRating(ctx, models.Rating{RateeID: sellerID, Rating: 6, RelatedOrder: o.OrderID})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	r, stats, err := buyer.Ratings.SubmitRating(ctx, models.Rating{RateeID: sellerID, Rating: 4, Review: "Good grain", RelatedOrder: o.OrderID})
	require.NoError(t, err)
	assert.Equal(t, buyer.Session.User().UserID, r.RaterID)
	assert.Equal(t, 1, stats.TotalRatings)
	assert.Equal(t, 4.0, stats.AverageRating)

	_, _, err = buyer.Ratings.SubmitRating(ctx, models.Rating{RateeID: sellerID, Rating: 5, RelatedOrder: o.OrderID})
	assert.True(t, IsConflict(err))

	five := 5
	edited, stats, err := buyer.Ratings.EditRating(ctx, r, RatingEdit{Rating: &five})
	require.NoError(t, err)
	assert.Equal(t, 5, edited.Rating)
	assert.Equal(t, 5.0, stats.AverageRating)

	_, _, err = seller.Ratings.EditRating(ctx, r, RatingEdit{Rating: &five})
	require.ErrorAs(t, err, &verr)

	_, err = buyer.Ratings.DeleteRating(ctx, r, func() bool { return false })
	assert.ErrorIs(t, err, ErrNotConfirmed)

	stats, err = buyer.Ratings.DeleteRating(ctx, r, func() bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRatings)

	page, err := buyer.Ratings.UserRatings(ctx, sellerID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Ratings)
}

func TestFeedPollerStopsCleanly(t *testing.T) {
	s := newLiveServer(t)
	farmer := s.signup(t, models.RoleFarmer, nil)

	var mu sync.Mutex
	var updates int
	var stopped atomic.Bool
	p := &FeedPoller{Feed: farmer.Feed, Interval: 10 * time.Millisecond, OnUpdate: func(res activity.Result) {
		assert.False(t, stopped.Load(), "update after Stop")
		mu.Lock()
		updates++
		mu.Unlock()
	}}
	p.Start(context.Background())
	p.Start(context.Background())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return updates >= 2
	}, 2*time.Second, 5*time.Millisecond)

	p.Stop()
	stopped.Store(true)
	p.Stop()
	time.Sleep(30 * time.Millisecond)
}

func TestNotificationListenerReceivesPush(t *testing.T) {
	s := newLiveServer(t)
	farmer := s.signup(t, models.RoleFarmer, nil)
	userID := farmer.Session.User().UserID

	got := make(chan models.Notification, 4)
	l := farmer.Notifications
	l.OnNotification = func(n models.Notification) { got <- n }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Listen(ctx) }()

	data, err := json.Marshal(models.Notification{NotificationID: "n1", UserID: userID, Title: "Bid accepted", CreatedAt: time.Now()})
	require.NoError(t, err)
	var first models.Notification
	require.Eventually(t, func() bool {
		s.hub.Send(userID, data)
		select {
		case first = <-got:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "Bid accepted", first.Title)
	assert.GreaterOrEqual(t, l.Unread(), 1)
	assert.Equal(t, "n1", l.Notifications()[0].NotificationID)

	require.NoError(t, l.MarkSeen(context.Background()))
	assert.Zero(t, l.Unread())

	n, err := l.SyncUnread(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNotificationListenerNeedsSession(t *testing.T) {
	s := newLiveServer(t)
	c := New(s.URL, nil, nil)
	assert.ErrorIs(t, c.Notifications.Listen(context.Background()), ErrUnauthorized)
}

func TestOrderActionOnStaleCopyReturnsFreshOrder(t *testing.T) {
	s := newLiveServer(t)
	ctx := context.Background()
	buyer := s.signup(t, models.RoleBuyer, nil)
	seller := s.signup(t, models.RoleFarmer, nil)
	crop := s.seedCrop(t, "c-stale", seller.Session.User().UserID, 200, 5)
	require.NoError(t, buyer.Cart.AddItem(ctx, crop, 1))
	stale, err := buyer.Checkout.CreateOrderFromCart(ctx, checkoutDetails(models.PayAfterDelivery))
	require.NoError(t, err)

	_, err = seller.Orders.ConfirmOrder(ctx, stale)
	require.NoError(t, err)

	fresh, err := seller.Orders.ConfirmOrder(ctx, stale)
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, http.StatusBadRequest, api.Status)
	assert.Equal(t, stale.OrderID, fresh.OrderID)
	assert.Equal(t, models.OrderConfirmed, fresh.Status)
}
