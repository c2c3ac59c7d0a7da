package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string

	JWTSecret string
	TokenTTL  time.Duration

	RazorpayKeyID      string
	RazorpayKeySecret  string
	PaymentGatewayMock bool
	ReceiptSecret      string

	UploadDir      string
	AllowedOrigins []string

	// InMemory runs every store, lock and broker in process (STORAGE=memory).
	InMemory bool
}

const devSecret = "dev-only-secret-change-me"

// Load reads the process environment, merging a .env file when one exists.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	cfg := &Config{
		Port:               normalizePort(os.Getenv("PORT")),
		MongoURI:           getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:            getenv("MONGO_DB", "cropconnect"),
		RedisAddr:          getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenTTL:           parseDuration(os.Getenv("TOKEN_TTL"), 12*time.Hour),
		RazorpayKeyID:      os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:  os.Getenv("RAZORPAY_KEY_SECRET"),
		PaymentGatewayMock: truthy(os.Getenv("PAYMENT_GATEWAY_MOCK")),
		ReceiptSecret:      os.Getenv("RECEIPT_SECRET"),
		UploadDir:          getenv("UPLOAD_DIR", "static/uploads"),
		AllowedOrigins:     splitList(getenv("ALLOWED_ORIGINS", "*")),
		InMemory:           strings.EqualFold(os.Getenv("STORAGE"), "memory"),
	}

	if cfg.JWTSecret == "" {
		log.Println("[config] JWT_SECRET not set; using development secret")
		cfg.JWTSecret = devSecret
	}
	if cfg.ReceiptSecret == "" {
		cfg.ReceiptSecret = cfg.JWTSecret
	}
	return cfg
}

func normalizePort(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] != ':' {
		return ":" + port
	}
	return port
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid duration %q, using %s", s, fallback)
		return fallback
	}
	return d
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on", "mock":
		return true
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
