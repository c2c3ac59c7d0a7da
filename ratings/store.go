package ratings

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
	Create(ctx context.Context, r models.Rating) error
	Get(ctx context.Context, id string) (models.Rating, error)
	Update(ctx context.Context, r models.Rating) error
	Delete(ctx context.Context, id string) error
	ForRatee(ctx context.Context, rateeID string, skip, limit int64) ([]models.Rating, int64, error)
	ByRater(ctx context.Context, raterID string) ([]models.Rating, error)
	Stats(ctx context.Context, rateeID string) (models.RatingStats, error)
}

type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{col: database.Collection(db.Ratings)}
}

func (s *MongoStore) Create(ctx context.Context, r models.Rating) error {
	_, err := s.col.InsertOne(ctx, r)
	return db.Translate(err)
}

func (s *MongoStore) Get(ctx context.Context, id string) (models.Rating, error) {
	var r models.Rating
	err := s.col.FindOne(ctx, bson.M{"ratingId": id}).Decode(&r)
	return r, db.Translate(err)
}

func (s *MongoStore) Update(ctx context.Context, r models.Rating) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"ratingId": r.RatingID}, bson.M{"$set": bson.M{
		"rating":    r.Rating,
		"review":    r.Review,
		"isEdited":  r.IsEdited,
		"updatedAt": r.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"ratingId": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *MongoStore) ForRatee(ctx context.Context, rateeID string, skip, limit int64) ([]models.Rating, int64, error) {
	filter := bson.M{"rateeId": rateeID}
	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	out := []models.Rating{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *MongoStore) ByRater(ctx context.Context, raterID string) ([]models.Rating, error) {
	cursor, err := s.col.Find(ctx, bson.M{"raterId": raterID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	out := []models.Rating{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats groups the ratee's scores inside MongoDB.
func (s *MongoStore) Stats(ctx context.Context, rateeID string) (models.RatingStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"rateeId": rateeID}}},
		{{Key: "$group", Value: bson.M{"_id": "$rating", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return models.RatingStats{}, err
	}
	var rows []struct {
		Score int `bson:"_id"`
		Count int `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return models.RatingStats{}, err
	}
	stats := models.RatingStats{Distribution: models.EmptyDistribution()}
	sum := 0
	for _, row := range rows {
		if row.Score < 1 || row.Score > 5 {
			continue
		}
		stats.Distribution[row.Score] = row.Count
		stats.TotalRatings += row.Count
		sum += row.Score * row.Count
	}
	if stats.TotalRatings > 0 {
		stats.AverageRating = models.RoundAverage(float64(sum) / float64(stats.TotalRatings))
	}
	return stats, nil
}

// MemoryStore keeps ratings in process.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]models.Rating
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]models.Rating)}
}

func sameReference(a, b models.Rating) bool {
	return a.RaterID == b.RaterID && a.RateeID == b.RateeID &&
		a.RelatedOrder == b.RelatedOrder && a.RelatedBooking == b.RelatedBooking &&
		a.RelatedHireRequest == b.RelatedHireRequest
}

func (s *MemoryStore) Create(_ context.Context, r models.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.byID {
		if cur.RatingID == r.RatingID || sameReference(cur, r) {
			return db.ErrDuplicate
		}
	}
	s.byID[r.RatingID] = r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return models.Rating{}, db.ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) Update(_ context.Context, r models.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.RatingID]; !ok {
		return db.ErrNotFound
	}
	s.byID[r.RatingID] = r
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *MemoryStore) matching(keep func(models.Rating) bool) []models.Rating {
	out := []models.Rating{}
	for _, r := range s.byID {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) ForRatee(_ context.Context, rateeID string, skip, limit int64) ([]models.Rating, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.matching(func(r models.Rating) bool { return r.RateeID == rateeID })
	total := int64(len(all))
	if skip >= total {
		return []models.Rating{}, total, nil
	}
	end := min(skip+limit, total)
	return all[skip:end], total, nil
}

func (s *MemoryStore) ByRater(_ context.Context, raterID string) ([]models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matching(func(r models.Rating) bool { return r.RaterID == raterID }), nil
}

func (s *MemoryStore) Stats(_ context.Context, rateeID string) (models.RatingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ComputeRatingStats(s.matching(func(r models.Rating) bool { return r.RateeID == rateeID })), nil
}
