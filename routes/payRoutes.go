package routes

import (
	"github.com/julienschmidt/httprouter"

	"cropconnect/models"
)

func AddOrderRoutes(router *httprouter.Router, d *Deps) {
	o := d.Orders
	router.POST("/api/orders", d.once(o.CreateOrder))

	// httprouter cannot hold a static segment next to :id
	router.GET("/api/orders/:id", d.private(byID(map[string]httprouter.Handle{
		"buyer":  o.BuyerOrders,
		"seller": o.SellerOrders,
	}, o.GetOrder)))
	router.POST("/api/orders/:id", d.private(byID(map[string]httprouter.Handle{
		"create-razorpay-order": d.Pay.CreateGatewayOrder,
	}, notFound)))

	router.GET("/api/orders/:id/receipt", d.private(o.Receipt))
	router.PUT("/api/orders/:id/confirm", d.private(o.Advance(models.OrderConfirmed)))
	router.PUT("/api/orders/:id/picked", d.private(o.Advance(models.OrderPicked)))
	router.PUT("/api/orders/:id/complete", d.private(o.Advance(models.OrderCompleted)))
	router.PUT("/api/orders/:id/cancel", d.private(o.CancelOrder))
	router.POST("/api/orders/:id/settle-cash", d.private(o.SettleCash))
}

func AddPayRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/transactions", d.private(d.Pay.ListTransactions))
}
