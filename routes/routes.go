package routes

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"cropconnect/activity"
	"cropconnect/auth"
	"cropconnect/booking"
	"cropconnect/cart"
	"cropconnect/farms"
	"cropconnect/filemgr"
	"cropconnect/middleware"
	"cropconnect/models"
	"cropconnect/notify"
	"cropconnect/orders"
	"cropconnect/pay"
	"cropconnect/ratelim"
	"cropconnect/ratings"
)

// Deps holds every handler the router mounts. It is built in main.
type Deps struct {
	Auth        *middleware.Auth
	Limiter     *ratelim.RateLimiter
	Files       *filemgr.Manager
	Users       *auth.Handler
	Farms       *farms.Handler
	Cart        *cart.Handler
	Hiring      *booking.Service
	Orders      *orders.Service
	Pay         *pay.Service
	Idempotency pay.IdempotencyStore
	Ratings     *ratings.Handler
	Notify      *notify.Handler
	Activity    *activity.Handler
	UploadDir   string
}

// private wraps h with rate limiting, authentication and an optional role check.
func (d *Deps) private(h httprouter.Handle, roles ...models.Role) httprouter.Handle {
	mws := []func(httprouter.Handle) httprouter.Handle{d.Limiter.Limit, d.Auth.Authenticate}
	if len(roles) > 0 {
		mws = append(mws, middleware.RequireRoles(roles...))
	}
	return middleware.Chain(h, mws...)
}

// once adds Idempotency-Key replay on top of private.
func (d *Deps) once(h httprouter.Handle, roles ...models.Role) httprouter.Handle {
	return d.private(pay.Idempotency(d.Idempotency)(h), roles...)
}

// byID routes a static segment that shares a position with :id.
func byID(static map[string]httprouter.Handle, fallback httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if h, ok := static[ps.ByName("id")]; ok {
			h(w, r, ps)
			return
		}
		fallback(w, r, ps)
	}
}

func Index(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

// New builds the router with every route mounted.
func New(d *Deps) *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", Index)

	AddStaticRoutes(router, d)
	AddAuthRoutes(router, d)
	AddCropRoutes(router, d)
	AddCartRoutes(router, d)
	AddRequirementRoutes(router, d)
	AddBookingRoutes(router, d)
	AddOrderRoutes(router, d)
	AddPayRoutes(router, d)
	AddRatingRoutes(router, d)
	AddNotificationRoutes(router, d)
	AddActivityRoutes(router, d)
	return router
}

func AddStaticRoutes(router *httprouter.Router, d *Deps) {
	router.ServeFiles("/static/uploads/*filepath", http.Dir(d.UploadDir))
}

func AddAuthRoutes(router *httprouter.Router, d *Deps) {
	router.POST("/api/auth/register", d.Limiter.Limit(d.Users.Register))
	router.POST("/api/auth/login", d.Limiter.Limit(d.Users.Login))
	router.POST("/api/auth/logout", d.private(d.Users.Logout))
	router.GET("/api/auth/me", d.private(d.Users.Me))
	router.PUT("/api/auth/profile", d.private(d.Users.UpdateProfile))
}

func AddCropRoutes(router *httprouter.Router, d *Deps) {
	seller := func(h httprouter.Handle) httprouter.Handle {
		return middleware.Chain(h, d.Limiter.Limit, d.Auth.Authenticate,
			middleware.RequireRoles(models.RoleFarmer), d.Files.Upload(filemgr.EntityCrop, "image"))
	}
	router.GET("/api/crops", d.Limiter.Limit(d.Farms.ListCrops))
	router.GET("/api/crops/:id", d.Limiter.Limit(d.Farms.GetCrop))
	router.POST("/api/crops", seller(d.Farms.CreateCrop))
	router.PUT("/api/crops/:id", seller(d.Farms.UpdateCrop))
	router.DELETE("/api/crops/:id", d.private(d.Farms.DeleteCrop))
}

func AddCartRoutes(router *httprouter.Router, d *Deps) {
	router.GET("/api/cart", d.private(d.Cart.GetCart))
	router.POST("/api/cart", d.private(d.Cart.AddToCart))
	router.PUT("/api/cart/:itemId", d.private(d.Cart.UpdateCartItem))
	router.DELETE("/api/cart/:itemId", d.private(d.Cart.RemoveCartItem))
	router.DELETE("/api/cart", d.private(d.Cart.ClearCart))
}
