package auth

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"cropconnect/db"
	"cropconnect/models"
)

// UserStore persists accounts. Lookups by email are case-insensitive.
type UserStore interface {
	Create(ctx context.Context, u models.User) error
	ByEmail(ctx context.Context, email string) (models.User, error)
	ByID(ctx context.Context, userID string) (models.User, error)
	UpdateProfile(ctx context.Context, u models.User) error
	TouchLogin(ctx context.Context, userID string, at time.Time) error
}

type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{col: database.Collection(db.Users)}
}

func (s *MongoStore) Create(ctx context.Context, u models.User) error {
	u.Email = strings.ToLower(u.Email)
	_, err := s.col.InsertOne(ctx, u)
	return db.Translate(err)
}

func (s *MongoStore) ByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&u)
	return u, db.Translate(err)
}

func (s *MongoStore) ByID(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, bson.M{"userId": userID}).Decode(&u)
	return u, db.Translate(err)
}

// UpdateProfile writes the editable profile fields. Role and email never change here.
func (s *MongoStore) UpdateProfile(ctx context.Context, u models.User) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"userId": u.UserID}, bson.M{"$set": bson.M{
		"name":      u.Name,
		"phone":     u.Phone,
		"address":   u.Address,
		"updatedAt": u.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *MongoStore) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"userId": userID}, bson.M{"$set": bson.M{"lastLogin": at}})
	return err
}
