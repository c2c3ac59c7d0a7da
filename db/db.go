package db

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names
const (
	Users         = "users"
	Crops         = "crops"
	Carts         = "carts"
	Requirements  = "requirements"
	Bids          = "bids"
	Bookings      = "bookings"
	Orders        = "orders"
	Transactions  = "transactions"
	GatewayOrders = "gateway_orders"
	Ratings       = "ratings"
	Notifications = "notifications"
	Idempotency   = "idempotency"
)

// Connect dials MongoDB and pings the primary.
func Connect(ctx context.Context, uri, name string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	log.Printf("[db] connected to %s/%s", uri, name)
	return client, client.Database(name), nil
}

func index(keys bson.D, opts *options.IndexOptions) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: opts}
}

// EnsureIndexes creates the unique and lookup indexes every store relies on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		Users: {
			index(bson.D{{Key: "userId", Value: 1}}, options.Index().SetUnique(true)),
			index(bson.D{{Key: "email", Value: 1}}, options.Index().SetUnique(true)),
		},
		Crops: {
			index(bson.D{{Key: "cropId", Value: 1}}, options.Index().SetUnique(true)),
			index(bson.D{{Key: "sellerId", Value: 1}, {Key: "createdAt", Value: -1}}, nil),
		},
		Carts: {
			index(bson.D{{Key: "userId", Value: 1}, {Key: "itemId", Value: 1}}, options.Index().SetUnique(true)),
		},
		Requirements: {
			index(bson.D{{Key: "requirementId", Value: 1}}, options.Index().SetUnique(true)),
			index(bson.D{{Key: "kind", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}, nil),
		},
		Bids: {
			index(bson.D{{Key: "bidId", Value: 1}}, options.Index().SetUnique(true)),
			index(bson.D{{Key: "requirementId", Value: 1}, {Key: "status", Value: 1}}, nil),
			index(bson.D{{Key: "bidderId", Value: 1}}, nil),
		},
		Bookings: {
			index(bson.D{{Key: "bookingId", Value: 1}}, options.Index().SetUnique(true)),
			index(bson.D{{Key: "farmerId", Value: 1}}, nil),
			index(bson.D{{Key: "providerId", Value: 1}, {Key: "bookingDate", Value: 1}}, nil),
			index(bson.D{{Key: "gatewayOrderId", Value: 1}}, options.Index().SetUnique(true).SetSparse(true)),
		},
		Orders: {
			index(bson.D{{Key: "orderId", Value: 1}}, options.Index().SetUnique(true)),
			index(bson.D{{Key: "buyerId", Value: 1}, {Key: "createdAt", Value: -1}}, nil),
			index(bson.D{{Key: "sellerIds", Value: 1}, {Key: "createdAt", Value: -1}}, nil),
			index(bson.D{{Key: "gatewayOrderId", Value: 1}}, options.Index().SetUnique(true).SetSparse(true)),
		},
		Transactions: {
			index(bson.D{{Key: "transactionId", Value: 1}}, options.Index().SetUnique(true)),
			index(bson.D{{Key: "payerId", Value: 1}}, nil),
			index(bson.D{{Key: "payeeId", Value: 1}}, nil),
		},
		GatewayOrders: {
			index(bson.D{{Key: "id", Value: 1}}, options.Index().SetUnique(true)),
		},
		Ratings: {
			index(bson.D{{Key: "ratingId", Value: 1}}, options.Index().SetUnique(true)),
			index(bson.D{
				{Key: "raterId", Value: 1}, {Key: "rateeId", Value: 1},
				{Key: "relatedOrder", Value: 1}, {Key: "relatedBooking", Value: 1}, {Key: "relatedHireRequest", Value: 1},
			}, options.Index().SetUnique(true).SetName("unique_rating_per_reference")),
			index(bson.D{{Key: "rateeId", Value: 1}, {Key: "createdAt", Value: -1}}, nil),
		},
		Notifications: {
			index(bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, nil),
		},
		Idempotency: {
			index(bson.D{{Key: "key", Value: 1}}, options.Index().SetUnique(true).SetName("unique_key")),
			index(bson.D{{Key: "expiresAt", Value: 1}}, options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at")),
		},
	}

	for name, models := range specs {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			log.Printf("[db] index creation failed for %s: %v", name, err)
			return err
		}
	}
	return nil
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
	// ErrStale is returned when a conditional update matched nothing.
	ErrStale = errors.New("record changed concurrently")
)

// Translate maps driver errors onto the package sentinels.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}
