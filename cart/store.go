package cart

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cropconnect/db"
	"cropconnect/models"
)

// Store keeps one document per (userId, itemId).
type Store interface {
	List(ctx context.Context, userID string) ([]models.CartItem, error)
	Get(ctx context.Context, userID, itemID string) (models.CartItem, error)
	// Put inserts the line or replaces its quantity and snapshot fields.
	Put(ctx context.Context, item models.CartItem) error
	Remove(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
}

type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{col: database.Collection(db.Carts)}
}

func (s *MongoStore) List(ctx context.Context, userID string) ([]models.CartItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "addedAt", Value: 1}})
	cursor, err := s.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	items := []models.CartItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *MongoStore) Get(ctx context.Context, userID, itemID string) (models.CartItem, error) {
	var it models.CartItem
	err := s.col.FindOne(ctx, bson.M{"userId": userID, "itemId": itemID}).Decode(&it)
	return it, db.Translate(err)
}

func (s *MongoStore) Put(ctx context.Context, item models.CartItem) error {
	filter := bson.M{"userId": item.UserID, "itemId": item.ItemID}
	update := bson.M{
		"$set": bson.M{
			"name":              item.Name,
			"unitPrice":         item.UnitPrice,
			"quantity":          item.Quantity,
			"unit":              item.Unit,
			"availableQuantity": item.AvailableQuantity,
			"sellerId":          item.SellerID,
		},
		"$setOnInsert": bson.M{"addedAt": item.AddedAt},
	}
	_, err := s.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) Remove(ctx context.Context, userID, itemID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"userId": userID, "itemId": itemID})
	return err
}

func (s *MongoStore) Clear(ctx context.Context, userID string) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"userId": userID})
	return err
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	lines map[string]map[string]models.CartItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lines: make(map[string]map[string]models.CartItem)}
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.CartItem{}
	for _, it := range s.lines[userID] {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, userID, itemID string) (models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.lines[userID][itemID]
	if !ok {
		return models.CartItem{}, db.ErrNotFound
	}
	return it, nil
}

func (s *MemoryStore) Put(_ context.Context, item models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lines[item.UserID] == nil {
		s.lines[item.UserID] = make(map[string]models.CartItem)
	}
	if cur, ok := s.lines[item.UserID][item.ItemID]; ok {
		item.AddedAt = cur.AddedAt
	}
	s.lines[item.UserID][item.ItemID] = item
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, userID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines[userID], itemID)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, userID)
	return nil
}
