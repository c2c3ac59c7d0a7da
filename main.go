package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/mongo"

	"cropconnect/activity"
	"cropconnect/auth"
	"cropconnect/booking"
	"cropconnect/cart"
	"cropconnect/config"
	"cropconnect/db"
	"cropconnect/farms"
	"cropconnect/filemgr"
	"cropconnect/middleware"
	"cropconnect/mq"
	"cropconnect/notify"
	"cropconnect/orders"
	"cropconnect/pay"
	"cropconnect/ratelim"
	"cropconnect/ratings"
	"cropconnect/rdx"
	"cropconnect/routes"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s – %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// backplane is the lock, cache, pub/sub and revocation service: Redis or in process.
type backplane interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) <-chan []byte
	CacheGet(ctx context.Context, key string) ([]byte, bool)
	CacheSet(ctx context.Context, key string, val []byte, ttl time.Duration)
	CacheDel(ctx context.Context, keys ...string)
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) bool
	Close() error
}

type stores struct {
	users         auth.UserStore
	crops         farms.CropStore
	cart          cart.Store
	requirements  booking.RequirementStore
	bids          booking.BidStore
	bookings      booking.BookingStore
	orders        orders.Store
	gatewayOrders pay.GatewayOrders
	ledger        pay.Ledger
	idempotency   pay.IdempotencyStore
	ratings       ratings.Store
	notifications notify.Store
}

func memoryStores() stores {
	return stores{
		users:         auth.NewMemoryStore(),
		crops:         farms.NewMemoryStore(),
		cart:          cart.NewMemoryStore(),
		requirements:  booking.NewMemoryRequirements(),
		bids:          booking.NewMemoryBids(),
		bookings:      booking.NewMemoryBookings(),
		orders:        orders.NewMemoryStore(),
		gatewayOrders: pay.NewMemoryGatewayOrders(),
		ledger:        pay.NewMemoryLedger(),
		idempotency:   pay.NewMemoryIdempotency(),
		ratings:       ratings.NewMemoryStore(),
		notifications: notify.NewMemoryStore(),
	}
}

func mongoStores(database *mongo.Database) stores {
	return stores{
		users:         auth.NewMongoStore(database),
		crops:         farms.NewMongoStore(database),
		cart:          cart.NewMongoStore(database),
		requirements:  booking.NewMongoRequirements(database),
		bids:          booking.NewMongoBids(database),
		bookings:      booking.NewMongoBookings(database),
		orders:        orders.NewMongoStore(database),
		gatewayOrders: pay.NewMongoGatewayOrders(database),
		ledger:        pay.NewMongoLedger(database),
		idempotency:   pay.NewMongoIdempotency(database),
		ratings:       ratings.NewMongoStore(database),
		notifications: notify.NewMongoStore(database),
	}
}

// originCheck turns the CORS allow list into a websocket origin check.
func originCheck(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}

func main() {
	cfg := config.Load()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var (
		st     stores
		bp     backplane
		client *mongo.Client
	)
	if cfg.InMemory {
		log.Println("[main] STORAGE=memory; state is lost on restart")
		st, bp = memoryStores(), rdx.NewMemory()
	} else {
		mc, database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("❌ MongoDB: %v", err)
		}
		if err := db.EnsureIndexes(ctx, database); err != nil {
			log.Fatalf("❌ MongoDB indexes: %v", err)
		}
		rc, err := rdx.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("❌ Redis: %v", err)
		}
		client, st, bp = mc, mongoStores(database), rc
	}

	gateway, err := pay.NewGateway(cfg.PaymentGatewayMock, cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	if err != nil {
		log.Fatalf("❌ payment gateway: %v", err)
	}

	events := mq.NewPublisher(bp)
	tokens := middleware.NewAuth(cfg.JWTSecret, cfg.TokenTTL, bp)
	payments := pay.NewService(gateway, st.gatewayOrders, st.ledger)
	files := filemgr.NewManager(cfg.UploadDir)
	hiring := booking.NewService(st.requirements, st.bids, st.bookings, bp, payments, events)
	market := orders.NewService(st.orders, st.crops, st.cart, bp, payments, events, cfg.ReceiptSecret)

	hub := notify.NewHub()
	go hub.Run()
	go notify.NewWorker(st.notifications, hub).Run(ctx, bp)

	rateLimiter := ratelim.NewRateLimiter(120, 30)
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				rateLimiter.Cleanup()
			}
		}
	}()

	router := routes.New(&routes.Deps{
		Auth:        tokens,
		Limiter:     rateLimiter,
		Files:       files,
		Users:       auth.NewHandler(st.users, tokens, bp),
		Farms:       farms.NewHandler(st.crops, files),
		Cart:        cart.NewHandler(st.cart, st.crops),
		Hiring:      hiring,
		Orders:      market,
		Pay:         payments,
		Idempotency: st.idempotency,
		Ratings:     ratings.NewHandler(st.ratings, bp, market, hiring, events),
		Notify:      notify.NewHandler(st.notifications, hub, originCheck(cfg.AllowedOrigins)),
		Activity:    activity.NewHandler(hiring, market, payments),
		UploadDir:   cfg.UploadDir,
	})

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           loggingMiddleware(securityHeaders(corsHandler)),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Println("🛑 Stopping notification hub...")
		stop()
		hub.Stop()
	})

	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Graceful shutdown failed: %v", err)
	}
	if client != nil {
		if err := client.Disconnect(shutdownCtx); err != nil {
			log.Printf("[main] mongo disconnect: %v", err)
		}
	}
	if err := bp.Close(); err != nil {
		log.Printf("[main] redis close: %v", err)
	}
	log.Println("✅ Server stopped cleanly")
}
