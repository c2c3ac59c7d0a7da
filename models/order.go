package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderPaymentMethod string

const (
	PayRazorpay      OrderPaymentMethod = "razorpay"
	PayAfterDelivery OrderPaymentMethod = "payAfterDelivery"
)

func (m OrderPaymentMethod) Valid() bool {
	return m == PayRazorpay || m == PayAfterDelivery
}

type OrderItem struct {
	CropID    string  `json:"cropId" bson:"cropId"`
	CropName  string  `json:"cropName" bson:"cropName"`
	SellerID  string  `json:"sellerId" bson:"sellerId"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	Unit      string  `json:"unit,omitempty" bson:"unit,omitempty"`
	UnitPrice float64 `json:"unitPrice" bson:"unitPrice"`
	Total     float64 `json:"total" bson:"total"`
}

type VehicleDetails struct {
	VehicleType   string `json:"vehicleType" bson:"vehicleType"`
	VehicleNumber string `json:"vehicleNumber" bson:"vehicleNumber"`
	DriverName    string `json:"driverName" bson:"driverName"`
	DriverPhone   string `json:"driverPhone" bson:"driverPhone"`
}

func (v VehicleDetails) Validate() error {
	switch {
	case isBlank(v.VehicleType):
		return FieldError("vehicleType", "is required")
	case isBlank(v.VehicleNumber):
		return FieldError("vehicleNumber", "is required")
	case isBlank(v.DriverName):
		return FieldError("driverName", "is required")
	case isBlank(v.DriverPhone):
		return FieldError("driverPhone", "is required")
	}
	return nil
}

type PickupSchedule struct {
	Date     *time.Time `json:"date" bson:"date"`
	TimeSlot string     `json:"timeSlot,omitempty" bson:"timeSlot,omitempty"`
}

func (p PickupSchedule) Validate() error {
	if p.Date == nil || p.Date.IsZero() {
		return FieldError("pickupDate", "is required")
	}
	return nil
}

// SellerShare is one seller's progress on a multi-seller order.
type SellerShare struct {
	Status OrderStatus `json:"status" bson:"status"`
	Paid   bool        `json:"paid,omitempty" bson:"paid,omitempty"`
}

// Order is a single checkout. It may span several sellers; the order status
// is then the status of the slowest seller.
type Order struct {
	OrderID            string             `json:"orderId" bson:"orderId"`
	BuyerID            string             `json:"buyerId" bson:"buyerId"`
	SellerIDs          []string           `json:"sellerIds" bson:"sellerIds"`
	Items              []OrderItem        `json:"items" bson:"items"`
	TotalAmount        float64            `json:"totalAmount" bson:"totalAmount"`
	PaymentMethod      OrderPaymentMethod `json:"paymentMethod" bson:"paymentMethod"`
	PaymentStatus      PaymentStatus      `json:"paymentStatus" bson:"paymentStatus"`
	Status             OrderStatus        `json:"status" bson:"status"`
	VehicleDetails     VehicleDetails     `json:"vehicleDetails" bson:"vehicleDetails"`
	PickupSchedule     PickupSchedule     `json:"pickupSchedule" bson:"pickupSchedule"`
	DeliveryAddress    string             `json:"deliveryAddress,omitempty" bson:"deliveryAddress,omitempty"`
	GatewayOrderID     string             `json:"gatewayOrderId,omitempty" bson:"gatewayOrderId,omitempty"`
	GatewayPaymentID   string             `json:"gatewayPaymentId,omitempty" bson:"gatewayPaymentId,omitempty"`
	CancellationReason string             `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	// Shares tracks each seller separately once an order spans several sellers.
	Shares    map[string]SellerShare `json:"sellerShares,omitempty" bson:"sellerShares,omitempty"`
	CreatedAt time.Time              `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt" bson:"updatedAt"`
}

// BuildOrderItems turns cart lines into order lines with their totals.
func BuildOrderItems(cart []CartItem) []OrderItem {
	items := make([]OrderItem, 0, len(cart))
	for _, c := range cart {
		items = append(items, OrderItem{
			CropID:    c.ItemID,
			CropName:  c.Name,
			SellerID:  c.SellerID,
			Quantity:  c.Quantity,
			Unit:      c.Unit,
			UnitPrice: c.UnitPrice,
			Total:     LineTotal(c.UnitPrice, c.Quantity),
		})
	}
	return items
}

func OrderTotal(items []OrderItem) float64 {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(lineTotal(it.UnitPrice, it.Quantity))
	}
	return total.Round(2).InexactFloat64()
}

// SellersOf returns the distinct seller ids in first-seen order.
func SellersOf(items []OrderItem) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		if it.SellerID == "" || seen[it.SellerID] {
			continue
		}
		seen[it.SellerID] = true
		out = append(out, it.SellerID)
	}
	return out
}

// Consistent reports whether the stored total matches the line items.
func (o Order) Consistent() bool {
	return AmountsEqual(o.TotalAmount, OrderTotal(o.Items))
}

func (o Order) HasSeller(userID string) bool {
	for _, s := range o.SellerIDs {
		if s == userID {
			return true
		}
	}
	return false
}

// SellerTotal is the part of the order that belongs to seller.
func (o Order) SellerTotal(seller string) float64 {
	total := decimal.Zero
	for _, it := range o.Items {
		if it.SellerID == seller {
			total = total.Add(lineTotal(it.UnitPrice, it.Quantity))
		}
	}
	return total.Round(2).InexactFloat64()
}

// PaidOnline is true once the gateway has collected the money.
func (o Order) PaidOnline() bool {
	return o.PaymentMethod == PayRazorpay && o.PaymentStatus == PaymentPaid
}

// StatusFor is the status of seller's part of the order.
func (o Order) StatusFor(seller string) OrderStatus {
	if sh, ok := o.Shares[seller]; ok {
		return sh.Status
	}
	return o.Status
}

// SellerPaid reports whether seller's share has been settled.
func (o Order) SellerPaid(seller string) bool {
	if o.PaymentStatus == PaymentPaid {
		return true
	}
	return o.Shares[seller].Paid
}

func (o *Order) initShares() {
	if o.Shares != nil {
		return
	}
	o.Shares = make(map[string]SellerShare, len(o.SellerIDs))
	for _, id := range o.SellerIDs {
		o.Shares[id] = SellerShare{Status: o.Status}
	}
}

// AdvanceSeller moves seller's part forward. A single-seller order moves as a
// whole; otherwise the order settles on its slowest seller.
func (o *Order) AdvanceSeller(seller string, to OrderStatus) error {
	if to == OrderCancelled || !o.StatusFor(seller).CanTransition(to) {
		return ErrInvalidTransition
	}
	if len(o.SellerIDs) <= 1 {
		o.Status = to
		return nil
	}
	o.initShares()
	sh := o.Shares[seller]
	sh.Status = to
	o.Shares[seller] = sh
	o.Status = o.slowest()
	return nil
}

// SettleSeller marks seller's share as paid in cash. The order is paid once
// every share is.
func (o *Order) SettleSeller(seller string) error {
	if o.SellerPaid(seller) {
		return ErrAlreadyPaid
	}
	if len(o.SellerIDs) <= 1 {
		o.PaymentStatus = PaymentPaid
		return nil
	}
	o.initShares()
	sh := o.Shares[seller]
	sh.Paid = true
	o.Shares[seller] = sh
	for _, id := range o.SellerIDs {
		if !o.Shares[id].Paid {
			return nil
		}
	}
	o.PaymentStatus = PaymentPaid
	return nil
}

var orderRank = map[OrderStatus]int{OrderPending: 0, OrderConfirmed: 1, OrderPicked: 2, OrderCompleted: 3}

func (o Order) slowest() OrderStatus {
	out := OrderCompleted
	for _, id := range o.SellerIDs {
		if st := o.StatusFor(id); orderRank[st] < orderRank[out] {
			out = st
		}
	}
	return out
}

// CanCancel checks a cancellation request against the order state. No part
// of the order may have moved past confirmed.
func (o Order) CanCancel(reason string) error {
	if o.PaidOnline() {
		return ErrAlreadyPaid
	}
	if !o.Status.CanTransition(OrderCancelled) {
		return ErrInvalidTransition
	}
	for _, sh := range o.Shares {
		if !sh.Status.CanTransition(OrderCancelled) {
			return ErrInvalidTransition
		}
	}
	if isBlank(reason) {
		return ErrReasonRequired
	}
	return nil
}
