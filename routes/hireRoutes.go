package routes

import (
	"github.com/julienschmidt/httprouter"

	"cropconnect/models"
)

func AddRequirementRoutes(router *httprouter.Router, d *Deps) {
	h := d.Hiring
	router.POST("/api/requirements/:kind", d.private(h.CreateRequirement, models.RoleFarmer))
	router.GET("/api/requirements/:kind", d.private(h.ListRequirements))
	router.GET("/api/requirements/:kind/:id", d.private(h.GetRequirement))
	router.PUT("/api/requirements/:kind/:id/cancel", d.private(h.CancelRequirement, models.RoleFarmer))
	router.PUT("/api/requirements/:kind/:id/complete", d.private(h.CompleteRequirement, models.RoleFarmer))

	// bidder role depends on :kind and is checked by the handler
	router.POST("/api/requirements/:kind/:id/bids", d.private(h.PlaceBid))
	router.GET("/api/requirements/:kind/:id/bids", d.private(h.ListBids, models.RoleFarmer))
	router.GET("/api/bids/mine", d.private(h.MyBids))
	router.POST("/api/bids/:id/accept", d.private(h.AcceptBid, models.RoleFarmer))
	router.POST("/api/bids/:id/reject", d.private(h.RejectBid, models.RoleFarmer))
}

func AddBookingRoutes(router *httprouter.Router, d *Deps) {
	h := d.Hiring
	router.POST("/api/bookings", d.once(h.CreateBooking, models.RoleFarmer))
	router.GET("/api/bookings", d.private(h.ListBookings))
	router.GET("/api/bookings/:id", d.private(h.GetBooking))
	router.PUT("/api/bookings/:id/status", d.private(h.UpdateBookingStatus))
	router.PUT("/api/bookings/:id/cancel", d.private(h.CancelBooking))
	router.PUT("/api/bookings/:id/payment-method", d.private(h.SetPaymentMethod, models.RoleFarmer))
	router.POST("/api/bookings/:id/verify-payment", d.once(h.VerifyPayment, models.RoleFarmer))
	router.POST("/api/bookings/:id/settle-cash", d.private(h.SettleCash))
}
