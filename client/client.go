// Package client talks to the marketplace REST API from a device.
package client

// Client bundles the services that share one session and transport.
type Client struct {
	Session       *Session
	Transport     *Transport
	Cart          *Cart
	Checkout      *Checkout
	Orders        *Orders
	Hiring        *Hiring
	Feed          *Feed
	Ratings       *Ratings
	Notifications *NotificationListener
}

// New restores any saved session from store. gateway may be nil when the
// caller never pays online.
func New(baseURL string, store SessionStore, gateway PaymentGateway, opts ...TransportOption) *Client {
	session := NewSession(store)
	api := NewTransport(baseURL, session, opts...)
	cart := NewCart(api)
	return &Client{
		Session:       session,
		Transport:     api,
		Cart:          cart,
		Checkout:      NewCheckout(api, cart, gateway),
		Orders:        NewOrders(api),
		Hiring:        NewHiring(api),
		Feed:          NewFeed(api, session),
		Ratings:       NewRatings(api, session),
		Notifications: NewNotificationListener(api, session),
	}
}
