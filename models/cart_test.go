package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampQuantity(t *testing.T) {
	cases := []struct {
		name          string
		in, available int
		want          int
		warning       string
	}{
		{"within stock", 3, 5, 3, ""},
		{"at stock", 5, 5, 5, ""},
		{"over stock", 6, 5, 5, "Only 5 available"},
		{"zero typed", 0, 5, 1, ""},
		{"negative typed", -4, 5, 1, ""},
		{"nothing left", 2, 0, 0, "Out of stock"},
		{"negative stock", 2, -1, 0, "Out of stock"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, warning := ClampQuantity(tc.in, tc.available)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.warning, warning)
		})
	}
}

func TestCheckQuantity(t *testing.T) {
	assert.NoError(t, CheckQuantity(5, 5))
	var verr *ValidationError
	require.ErrorAs(t, CheckQuantity(6, 5), &verr)
	assert.Equal(t, "Only 5 available", verr.Message)
	assert.Error(t, CheckQuantity(0, 5))
}

func TestCartTotalInPaise(t *testing.T) {
	items := []CartItem{
		{UnitPrice: 0.1, Quantity: 3},
		{UnitPrice: 1000, Quantity: 2},
	}
	assert.Equal(t, 2000.3, CartTotal(items))
	assert.Zero(t, CartTotal(nil))
}

func TestOrderConsistent(t *testing.T) {
	items := []OrderItem{
		{SellerID: "s1", UnitPrice: 25, Quantity: 4},
		{SellerID: "s2", UnitPrice: 12.35, Quantity: 3},
	}
	o := Order{Items: items, TotalAmount: OrderTotal(items)}
	assert.Equal(t, 137.05, o.TotalAmount)
	assert.True(t, o.Consistent())

	tampered := o
	tampered.TotalAmount = 1
	assert.False(t, tampered.Consistent())
	tampered.TotalAmount = 137.04
	assert.False(t, tampered.Consistent())

	assert.Equal(t, 100.0, o.SellerTotal("s1"))
	assert.Equal(t, []string{"s1", "s2"}, SellersOf(items))
}

func TestPaiseConversion(t *testing.T) {
	assert.EqualValues(t, 24550, ToPaise(245.5))
	assert.EqualValues(t, 30, ToPaise(0.1+0.2))
	assert.Equal(t, 480.0, FromPaise(48000))
	assert.True(t, AmountsEqual(0.1+0.2, 0.3))
}
