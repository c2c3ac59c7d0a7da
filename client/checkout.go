package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cropconnect/models"
	"cropconnect/utils"
)

type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "succeeded"
	PaymentDismissed PaymentOutcome = "dismissed"
	PaymentFailed    PaymentOutcome = "failed"
)

// PaymentResult is what the checkout widget produced. Payload is set only on success.
type PaymentResult struct {
	Outcome PaymentOutcome
	Payload models.PaymentVerification
	Reason  string
}

// GatewayOrder is the order the server opened with the payment gateway.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"-"`
}

// PaymentGateway opens the payment UI and waits for it to finish.
type PaymentGateway interface {
	Collect(ctx context.Context, order GatewayOrder) (PaymentResult, error)
}

// PaymentCallbacks are handed to a callback style checkout SDK.
type PaymentCallbacks struct {
	OnSuccess func(models.PaymentVerification)
	OnDismiss func()
	OnFailure func(reason string)
}

// AwaitPayment starts a callback style checkout and blocks until one of its
// callbacks fires. Later callbacks are ignored. A cancelled ctx counts as dismissed.
func AwaitPayment(ctx context.Context, start func(PaymentCallbacks) error) (PaymentResult, error) {
	done := make(chan PaymentResult, 1)
	var once sync.Once
	finish := func(r PaymentResult) {
		once.Do(func() { done <- r })
	}
	err := start(PaymentCallbacks{
		OnSuccess: func(v models.PaymentVerification) { finish(PaymentResult{Outcome: PaymentSucceeded, Payload: v}) },
		OnDismiss: func() { finish(PaymentResult{Outcome: PaymentDismissed}) },
		OnFailure: func(reason string) { finish(PaymentResult{Outcome: PaymentFailed, Reason: reason}) },
	})
	if err != nil {
		return PaymentResult{Outcome: PaymentFailed, Reason: err.Error()}, err
	}
	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return PaymentResult{Outcome: PaymentDismissed}, ctx.Err()
	}
}

// CheckoutDetails are the buyer's inputs on the checkout form.
type CheckoutDetails struct {
	PaymentMethod   models.OrderPaymentMethod
	VehicleDetails  models.VehicleDetails
	PickupDate      *time.Time
	TimeSlot        string
	DeliveryAddress string
}

func (d CheckoutDetails) Validate() error {
	if !d.PaymentMethod.Valid() {
		return models.FieldError("paymentMethod", "must be razorpay or payAfterDelivery")
	}
	if err := d.VehicleDetails.Validate(); err != nil {
		return err
	}
	return models.PickupSchedule{Date: d.PickupDate}.Validate()
}

type Checkout struct {
	api     *Transport
	cart    *Cart
	gateway PaymentGateway
	guard   guard
}

func NewCheckout(api *Transport, cart *Cart, gateway PaymentGateway) *Checkout {
	return &Checkout{api: api, cart: cart, gateway: gateway}
}

type orderLine struct {
	CropID   string `json:"cropId"`
	Quantity int    `json:"quantity"`
}

type orderRequest struct {
	Items          []orderLine               `json:"items"`
	PaymentMethod  models.OrderPaymentMethod `json:"paymentMethod"`
	VehicleDetails models.VehicleDetails     `json:"vehicleDetails"`
	PickupSchedule struct {
		Date     string `json:"date"`
		TimeSlot string `json:"timeSlot,omitempty"`
	} `json:"pickupSchedule"`
	DeliveryAddress string  `json:"deliveryAddress,omitempty"`
	TotalAmount     float64 `json:"totalAmount"`
	models.PaymentVerification
}

// CreateOrderFromCart checks out the current cart snapshot. For online
// payment no order is created unless the gateway reports success.
func (c *Checkout) CreateOrderFromCart(ctx context.Context, d CheckoutDetails) (models.Order, error) {
	if err := d.Validate(); err != nil {
		return models.Order{}, err
	}
	items := c.cart.Items()
	if len(items) == 0 {
		return models.Order{}, models.Invalid("items", "Your cart is empty")
	}

	var order models.Order
	err := c.guard.run("checkout", func() error {
		lines := models.BuildOrderItems(items)
		req := orderRequest{
			PaymentMethod:   d.PaymentMethod,
			VehicleDetails:  d.VehicleDetails,
			DeliveryAddress: d.DeliveryAddress,
			TotalAmount:     models.OrderTotal(lines),
		}
		for _, l := range lines {
			req.Items = append(req.Items, orderLine{CropID: l.CropID, Quantity: l.Quantity})
		}
		req.PickupSchedule.Date = d.PickupDate.Format(time.RFC3339)
		req.PickupSchedule.TimeSlot = d.TimeSlot

		if d.PaymentMethod == models.PayRazorpay {
			proof, err := c.collect(ctx, req.TotalAmount)
			if err != nil {
				return err
			}
			req.PaymentVerification = proof
		}

		var res struct {
			Order models.Order `json:"order"`
		}
		key := "order-" + utils.GetUUID()
		if err := c.api.Do(ctx, "POST", "/api/orders", req, &res, IdempotencyKey(key)); err != nil {
			return c.cart.reconcile(ctx, "", err)
		}
		order = res.Order
		return c.cart.Refresh(ctx)
	})
	return order, err
}

func (c *Checkout) collect(ctx context.Context, amount float64) (models.PaymentVerification, error) {
	if c.gateway == nil {
		return models.PaymentVerification{}, fmt.Errorf("%w: no payment gateway configured", ErrPaymentFailed)
	}
	gw, err := c.CreateGatewayOrder(ctx, models.RefOrder, "", amount)
	if err != nil {
		return models.PaymentVerification{}, err
	}
	if !models.AmountsEqual(models.FromPaise(gw.Amount), amount) {
		return models.PaymentVerification{}, fmt.Errorf("%w: gateway order is for %d paise", ErrPaymentFailed, gw.Amount)
	}
	result, err := c.gateway.Collect(ctx, gw)
	if err != nil && result.Outcome == "" {
		return models.PaymentVerification{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	switch result.Outcome {
	case PaymentSucceeded:
		if verr := result.Payload.Validate(); verr != nil {
			return models.PaymentVerification{}, fmt.Errorf("%w: %v", ErrPaymentFailed, verr)
		}
		return result.Payload, nil
	case PaymentDismissed:
		return models.PaymentVerification{}, ErrPaymentDismissed
	default:
		if result.Reason != "" {
			return models.PaymentVerification{}, fmt.Errorf("%w: %s", ErrPaymentFailed, result.Reason)
		}
		return models.PaymentVerification{}, ErrPaymentFailed
	}
}

// CreateGatewayOrder opens a gateway order for amount rupees.
func (c *Checkout) CreateGatewayOrder(ctx context.Context, purpose models.ReferenceType, referenceID string, amount float64) (GatewayOrder, error) {
	body := map[string]any{"amount": amount, "purpose": purpose, "referenceId": referenceID}
	var res struct {
		Key   string       `json:"key"`
		Order GatewayOrder `json:"order"`
	}
	if err := c.api.Do(ctx, "POST", "/api/orders/create-razorpay-order", body, &res, NoRetry()); err != nil {
		return GatewayOrder{}, err
	}
	res.Order.Key = res.Key
	return res.Order, nil
}

// PayBooking runs the online payment for a pay_now booking and has the server verify it.
func (c *Checkout) PayBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	if b.PaymentStatus == models.PaymentPaid {
		return models.Booking{}, models.Invalid("paymentStatus", "This booking is already paid")
	}
	if c.gateway == nil {
		return models.Booking{}, fmt.Errorf("%w: no payment gateway configured", ErrPaymentFailed)
	}
	var out models.Booking
	err := c.guard.run("pay:"+b.BookingID, func() error {
		gw, err := c.CreateGatewayOrder(ctx, models.RefBooking, b.BookingID, b.TotalCost)
		if err != nil {
			return err
		}
		result, err := c.gateway.Collect(ctx, gw)
		switch {
		case result.Outcome == PaymentDismissed:
			return ErrPaymentDismissed
		case result.Outcome != PaymentSucceeded:
			if err == nil {
				err = fmt.Errorf("%s", result.Reason)
			}
			return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
		var res struct {
			Booking models.Booking `json:"booking"`
		}
		path := "/api/bookings/" + b.BookingID + "/verify-payment"
		if err := c.api.Do(ctx, "POST", path, result.Payload, &res, IdempotencyKey("verify-"+gw.ID)); err != nil {
			return err
		}
		out = res.Booking
		return nil
	})
	return out, err
}
