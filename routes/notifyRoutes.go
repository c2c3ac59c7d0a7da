package routes

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"cropconnect/utils"
)

func notFound(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	utils.RespondWithError(w, http.StatusNotFound, "Not found")
}

func AddRatingRoutes(router *httprouter.Router, d *Deps) {
	h := d.Ratings
	router.POST("/api/ratings", d.private(h.CreateRating))
	router.PUT("/api/ratings/:id", d.private(h.UpdateRating))
	router.DELETE("/api/ratings/:id", d.private(h.DeleteRating))
	router.GET("/api/ratings/mine", d.private(h.MyRatings))
	router.GET("/api/ratings/user/:userId", d.Limiter.Limit(d.Auth.OptionalAuth(h.UserRatings)))
	router.GET("/api/ratings/user/:userId/stats", d.Limiter.Limit(d.Auth.OptionalAuth(h.UserStats)))
}

func AddNotificationRoutes(router *httprouter.Router, d *Deps) {
	h := d.Notify
	router.GET("/api/notifications", d.private(h.List))
	router.GET("/api/notifications/unread-count", d.private(h.UnreadCount))
	router.PUT("/api/notifications/:id", d.private(byID(map[string]httprouter.Handle{
		"read-all": h.MarkAllRead,
	}, notFound)))
	router.PUT("/api/notifications/:id/read", d.private(h.MarkRead))
	router.GET("/ws/notifications", d.Auth.Authenticate(h.Socket))
}

func AddActivityRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/activity", d.private(d.Activity.Feed))
}
