package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"cropconnect/models"
)

// Orders reads and advances marketplace orders for the signed-in user.
type Orders struct {
	api   *Transport
	guard guard
}

func NewOrders(api *Transport) *Orders {
	return &Orders{api: api}
}

func (o *Orders) Bought(ctx context.Context) ([]models.Order, error) {
	return o.list(ctx, "/api/orders/buyer")
}

func (o *Orders) Sold(ctx context.Context) ([]models.Order, error) {
	return o.list(ctx, "/api/orders/seller")
}

func (o *Orders) list(ctx context.Context, path string) ([]models.Order, error) {
	var res struct {
		Orders []models.Order `json:"orders"`
	}
	if err := o.api.Do(ctx, "GET", path, nil, &res); err != nil {
		return nil, err
	}
	if res.Orders == nil {
		res.Orders = []models.Order{}
	}
	return res.Orders, nil
}

func (o *Orders) Get(ctx context.Context, orderID string) (models.Order, error) {
	var res struct {
		Order models.Order `json:"order"`
	}
	err := o.api.Do(ctx, "GET", "/api/orders/"+url.PathEscape(orderID), nil, &res)
	return res.Order, err
}

func (o *Orders) ConfirmOrder(ctx context.Context, ord models.Order) (models.Order, error) {
	return o.advance(ctx, ord, models.OrderConfirmed, "confirm")
}

func (o *Orders) MarkPicked(ctx context.Context, ord models.Order) (models.Order, error) {
	return o.advance(ctx, ord, models.OrderPicked, "picked")
}

func (o *Orders) MarkCompleted(ctx context.Context, ord models.Order) (models.Order, error) {
	return o.advance(ctx, ord, models.OrderCompleted, "complete")
}

// viewer is the signed-in user, or "" without a session.
func (o *Orders) viewer() string {
	if o.api.session == nil {
		return ""
	}
	return o.api.session.User().UserID
}

func (o *Orders) advance(ctx context.Context, ord models.Order, to models.OrderStatus, action string) (models.Order, error) {
	if from := ord.StatusFor(o.viewer()); !from.CanTransition(to) {
		return models.Order{}, models.Invalid("status", fmt.Sprintf("Order cannot move from %s to %s", from, to))
	}
	return o.send(ctx, "PUT", ord.OrderID, action, nil)
}

// CancelOrder cancels an order that was not paid online. reason is required.
func (o *Orders) CancelOrder(ctx context.Context, ord models.Order, reason string) (models.Order, error) {
	if err := ord.CanCancel(reason); err != nil {
		return models.Order{}, cancelError(err)
	}
	return o.send(ctx, "PUT", ord.OrderID, "cancel", map[string]string{"reason": reason})
}

// SettleCash records the cash payment of a pay after delivery order.
func (o *Orders) SettleCash(ctx context.Context, ord models.Order) (models.Order, error) {
	if ord.PaymentMethod != models.PayAfterDelivery {
		return models.Order{}, models.Invalid("paymentMethod", "Order is not pay after delivery")
	}
	if ord.SellerPaid(o.viewer()) {
		return models.Order{}, models.Invalid("paymentStatus", "Order is already paid")
	}
	return o.send(ctx, "POST", ord.OrderID, "settle-cash", nil)
}

// send runs one order action. When the server turns it down on a business
// rule the order is read again and returned with the error, so the caller
// never keeps showing a stale order.
func (o *Orders) send(ctx context.Context, method, orderID, action string, body any) (models.Order, error) {
	var out models.Order
	err := o.guard.run("order:"+orderID, func() error {
		var res struct {
			Order models.Order `json:"order"`
		}
		path := "/api/orders/" + url.PathEscape(orderID) + "/" + action
		if err := o.api.Do(ctx, method, path, body, &res, NoRetry()); err != nil {
			return err
		}
		out = res.Order
		return nil
	})
	if !rejected(err) {
		return out, err
	}
	fresh, gerr := o.Get(ctx, orderID)
	if gerr != nil {
		return models.Order{}, err
	}
	return fresh, err
}

// rejected reports a business-rule refusal from the server.
func rejected(err error) bool {
	var api *APIError
	if !errors.As(err, &api) {
		return false
	}
	switch api.Status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}
