package farms

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cropconnect/db"
	"cropconnect/models"
)

// CropStore persists listings and guards stock changes.
type CropStore interface {
	Create(ctx context.Context, c models.Crop) error
	Get(ctx context.Context, cropID string) (models.Crop, error)
	List(ctx context.Context, f models.CropFilter) ([]models.Crop, int64, error)
	Update(ctx context.Context, c models.Crop) error
	Delete(ctx context.Context, cropID string) error
	// DecrementStock fails with *models.StockError unless quantityAvailable >= n.
	DecrementStock(ctx context.Context, cropID string, n int) error
	RestoreStock(ctx context.Context, cropID string, n int) error
}

type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{col: database.Collection(db.Crops)}
}

func (s *MongoStore) Create(ctx context.Context, c models.Crop) error {
	_, err := s.col.InsertOne(ctx, c)
	return db.Translate(err)
}

func (s *MongoStore) Get(ctx context.Context, cropID string) (models.Crop, error) {
	var c models.Crop
	err := s.col.FindOne(ctx, bson.M{"cropId": cropID}).Decode(&c)
	return c, db.Translate(err)
}

func buildFilter(f models.CropFilter) bson.M {
	q := bson.M{}
	if f.Search != "" {
		q["cropName"] = bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
	}
	if f.Location != "" {
		q["location"] = bson.M{"$regex": regexp.QuoteMeta(f.Location), "$options": "i"}
	}
	if f.Grade != "" {
		q["grade"] = f.Grade
	}
	if f.SellerID != "" {
		q["sellerId"] = f.SellerID
	}
	if f.InStock {
		q["quantityAvailable"] = bson.M{"$gt": 0}
	}
	return q
}

func (s *MongoStore) List(ctx context.Context, f models.CropFilter) ([]models.Crop, int64, error) {
	q := buildFilter(f)
	total, err := s.col.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetSkip(f.Skip)
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cursor, err := s.col.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	crops := []models.Crop{}
	if err := cursor.All(ctx, &crops); err != nil {
		return nil, 0, err
	}
	return crops, total, nil
}

func (s *MongoStore) Update(ctx context.Context, c models.Crop) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"cropId": c.CropID}, c)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, cropID string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"cropId": cropID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *MongoStore) DecrementStock(ctx context.Context, cropID string, n int) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"cropId": cropID, "quantityAvailable": bson.M{"$gte": n}},
		bson.M{"$inc": bson.M{"quantityAvailable": -n}, "$set": bson.M{"updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.ModifiedCount == 1 {
		return nil
	}
	crop, err := s.Get(ctx, cropID)
	if err != nil {
		return err
	}
	return &models.StockError{CropID: cropID, CropName: crop.CropName, Available: crop.QuantityAvailable}
}

func (s *MongoStore) RestoreStock(ctx context.Context, cropID string, n int) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"cropId": cropID},
		bson.M{"$inc": bson.M{"quantityAvailable": n}, "$set": bson.M{"updatedAt": time.Now()}},
	)
	return err
}
