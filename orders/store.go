package orders

import (
	"context"
	"slices"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cropconnect/db"
	"cropconnect/models"
)

type Store interface {
	Create(ctx context.Context, o models.Order) error
	Get(ctx context.Context, id string) (models.Order, error)
	ForBuyer(ctx context.Context, buyerID string) ([]models.Order, error)
	ForSeller(ctx context.Context, sellerID string) ([]models.Order, error)
	// UpdateIf replaces o only while the stored status and payment status are unchanged.
	UpdateIf(ctx context.Context, o models.Order, expect models.OrderStatus, expectPay models.PaymentStatus) error
}

type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{col: database.Collection(db.Orders)}
}

func (s *MongoStore) Create(ctx context.Context, o models.Order) error {
	_, err := s.col.InsertOne(ctx, o)
	return db.Translate(err)
}

func (s *MongoStore) Get(ctx context.Context, id string) (models.Order, error) {
	var o models.Order
	err := s.col.FindOne(ctx, bson.M{"orderId": id}).Decode(&o)
	return o, db.Translate(err)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	out := []models.Order{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) ForBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	return s.find(ctx, bson.M{"buyerId": buyerID})
}

func (s *MongoStore) ForSeller(ctx context.Context, sellerID string) ([]models.Order, error) {
	return s.find(ctx, bson.M{"sellerIds": sellerID})
}

func (s *MongoStore) UpdateIf(ctx context.Context, o models.Order, expect models.OrderStatus, expectPay models.PaymentStatus) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"orderId": o.OrderID, "status": expect, "paymentStatus": expectPay}, o)
	if err != nil {
		return db.Translate(err)
	}
	if res.MatchedCount == 0 {
		return db.ErrStale
	}
	return nil
}

// MemoryStore keeps orders in process.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]models.Order)}
}

func (s *MemoryStore) Create(_ context.Context, o models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[o.OrderID]; ok {
		return db.ErrDuplicate
	}
	if o.GatewayOrderID != "" {
		for _, cur := range s.byID {
			if cur.GatewayOrderID == o.GatewayOrderID {
				return db.ErrDuplicate
			}
		}
	}
	s.byID[o.OrderID] = o
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[id]
	if !ok {
		return models.Order{}, db.ErrNotFound
	}
	return o, nil
}

func (s *MemoryStore) filter(keep func(models.Order) bool) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Order{}
	for _, o := range s.byID {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) ForBuyer(_ context.Context, buyerID string) ([]models.Order, error) {
	return s.filter(func(o models.Order) bool { return o.BuyerID == buyerID }), nil
}

func (s *MemoryStore) ForSeller(_ context.Context, sellerID string) ([]models.Order, error) {
	return s.filter(func(o models.Order) bool { return slices.Contains(o.SellerIDs, sellerID) }), nil
}

func (s *MemoryStore) UpdateIf(_ context.Context, o models.Order, expect models.OrderStatus, expectPay models.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[o.OrderID]
	if !ok || cur.Status != expect || cur.PaymentStatus != expectPay {
		return db.ErrStale
	}
	s.byID[o.OrderID] = o
	return nil
}
