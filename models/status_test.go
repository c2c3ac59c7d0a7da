package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkFlow walks every from -> to pair and compares it with allowed.
func checkFlow[S ~string](t *testing.T, states []S, allowed map[[2]S]bool, can func(from, to S) bool) {
	t.Helper()
	for _, from := range states {
		for _, to := range states {
			want := allowed[[2]S{from, to}]
			assert.Equal(t, want, can(from, to), "%s -> %s", from, to)
		}
	}
}

func TestOrderTransitions(t *testing.T) {
	states := []OrderStatus{OrderPending, OrderConfirmed, OrderPicked, OrderCompleted, OrderCancelled}
	checkFlow(t, states, map[[2]OrderStatus]bool{
		{OrderPending, OrderConfirmed}:   true,
		{OrderPending, OrderCancelled}:   true,
		{OrderConfirmed, OrderPicked}:    true,
		{OrderConfirmed, OrderCancelled}: true,
		{OrderPicked, OrderCompleted}:    true,
	}, OrderStatus.CanTransition)
	assert.True(t, OrderCompleted.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.False(t, OrderPicked.Terminal())
}

func TestBookingTransitions(t *testing.T) {
	states := []BookingStatus{BookingPending, BookingConfirmed, BookingInProgress, BookingCompleted, BookingCancelled}
	checkFlow(t, states, map[[2]BookingStatus]bool{
		{BookingPending, BookingConfirmed}:    true,
		{BookingPending, BookingCancelled}:    true,
		{BookingConfirmed, BookingInProgress}: true,
		{BookingConfirmed, BookingCancelled}:  true,
		{BookingInProgress, BookingCompleted}: true,
	}, BookingStatus.CanTransition)
}

func TestRequirementTransitions(t *testing.T) {
	states := []RequirementStatus{RequirementOpen, RequirementInProgress, RequirementCompleted, RequirementCancelled}
	checkFlow(t, states, map[[2]RequirementStatus]bool{
		{RequirementOpen, RequirementInProgress}:      true,
		{RequirementOpen, RequirementCancelled}:       true,
		{RequirementInProgress, RequirementCompleted}: true,
		{RequirementInProgress, RequirementCancelled}: true,
	}, RequirementStatus.CanTransition)
}

func TestBidTransitions(t *testing.T) {
	states := []BidStatus{BidPending, BidAccepted, BidRejected}
	checkFlow(t, states, map[[2]BidStatus]bool{
		{BidPending, BidAccepted}: true,
		{BidPending, BidRejected}: true,
	}, BidStatus.CanTransition)
	assert.False(t, BidStatus("withdrawn").CanTransition(BidAccepted))
}

func TestOrderCanCancel(t *testing.T) {
	o := Order{Status: OrderConfirmed, PaymentMethod: PayAfterDelivery, PaymentStatus: PaymentPending}
	assert.NoError(t, o.CanCancel("changed plans"))
	assert.ErrorIs(t, o.CanCancel("  "), ErrReasonRequired)

	o.Status = OrderPicked
	assert.ErrorIs(t, o.CanCancel("late"), ErrInvalidTransition)

	paid := Order{Status: OrderPending, PaymentMethod: PayRazorpay, PaymentStatus: PaymentPaid}
	assert.ErrorIs(t, paid.CanCancel("late"), ErrAlreadyPaid)
}

func TestMultiSellerOrderProgress(t *testing.T) {
	o := Order{SellerIDs: []string{"s1", "s2"}, Status: OrderPending, PaymentMethod: PayAfterDelivery, PaymentStatus: PaymentPending}

	require.NoError(t, o.AdvanceSeller("s1", OrderConfirmed))
	assert.Equal(t, OrderPending, o.Status)
	assert.Equal(t, OrderConfirmed, o.StatusFor("s1"))
	assert.ErrorIs(t, o.AdvanceSeller("s2", OrderPicked), ErrInvalidTransition)
	assert.ErrorIs(t, o.AdvanceSeller("s1", OrderCancelled), ErrInvalidTransition)

	require.NoError(t, o.AdvanceSeller("s1", OrderPicked))
	assert.ErrorIs(t, o.CanCancel("late"), ErrInvalidTransition)

	require.NoError(t, o.AdvanceSeller("s2", OrderConfirmed))
	assert.Equal(t, OrderConfirmed, o.Status)

	require.NoError(t, o.SettleSeller("s1"))
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.ErrorIs(t, o.SettleSeller("s1"), ErrAlreadyPaid)
	require.NoError(t, o.SettleSeller("s2"))
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
}

func TestSingleSellerOrderMovesWhole(t *testing.T) {
	o := Order{SellerIDs: []string{"s1"}, Status: OrderPending}
	require.NoError(t, o.AdvanceSeller("s1", OrderConfirmed))
	assert.Equal(t, OrderConfirmed, o.Status)
	assert.Nil(t, o.Shares)
	require.NoError(t, o.SettleSeller("s1"))
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
}
