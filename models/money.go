package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

func lineTotal(unitPrice float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity)))
}

// LineTotal is unitPrice × quantity rounded to paise.
func LineTotal(unitPrice float64, quantity int) float64 {
	return lineTotal(unitPrice, quantity).Round(2).InexactFloat64()
}

// ToPaise converts a rupee amount to the integer minor unit the gateway expects.
func ToPaise(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

func FromPaise(paise int64) float64 {
	return decimal.NewFromInt(paise).Div(hundred).Round(2).InexactFloat64()
}

// AmountsEqual compares two rupee amounts at paise precision.
func AmountsEqual(a, b float64) bool {
	return ToPaise(a) == ToPaise(b)
}
