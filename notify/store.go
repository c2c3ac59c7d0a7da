package notify

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

type Store interface {
	Create(ctx context.Context, n models.Notification) error
	ForUser(ctx context.Context, userID string, skip, limit int64) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{col: database.Collection(db.Notifications)}
}

func (s *MongoStore) Create(ctx context.Context, n models.Notification) error {
	_, err := s.col.InsertOne(ctx, n)
	return db.Translate(err)
}

func (s *MongoStore) ForUser(ctx context.Context, userID string, skip, limit int64) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetSkip(skip).SetLimit(limit)
	cursor, err := s.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.col.CountDocuments(ctx, bson.M{"userId": userID, "read": false})
}

func (s *MongoStore) MarkRead(ctx context.Context, userID, id string) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"notificationId": id, "userId": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *MongoStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.col.UpdateMany(ctx, bson.M{"userId": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

type MemoryStore struct {
	mu    sync.Mutex
	items []models.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
	return nil
}

func (s *MemoryStore) ForUser(_ context.Context, userID string, skip, limit int64) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Notification{}
	for _, n := range s.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if skip >= int64(len(out)) {
		return []models.Notification{}, nil
	}
	return out[skip:min(skip+limit, int64(len(out)))], nil
}

func (s *MemoryStore) UnreadCount(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, it := range s.items {
		if it.UserID == userID && !it.Read {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].NotificationID == id && s.items[i].UserID == userID {
			s.items[i].Read = true
			return nil
		}
	}
	return db.ErrNotFound
}

func (s *MemoryStore) MarkAllRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.items {
		if s.items[i].UserID == userID && !s.items[i].Read {
			s.items[i].Read = true
			n++
		}
	}
	return n, nil
}
