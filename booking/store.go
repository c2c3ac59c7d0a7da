package booking

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cropconnect/db"
	"cropconnect/models"
)

type RequirementQuery struct {
	Kind     models.ServiceKind
	FarmerID string
	// OpenOnly limits the result to status open.
	OpenOnly bool
}

type RequirementStore interface {
	Create(ctx context.Context, r models.Requirement) error
	Get(ctx context.Context, id string) (models.Requirement, error)
	List(ctx context.Context, q RequirementQuery) ([]models.Requirement, error)
	// UpdateIf replaces r only while the stored status still equals expect.
	UpdateIf(ctx context.Context, r models.Requirement, expect models.RequirementStatus) error
}

type BidStore interface {
	Create(ctx context.Context, b models.Bid) error
	Get(ctx context.Context, id string) (models.Bid, error)
	ForRequirement(ctx context.Context, requirementID string) ([]models.Bid, error)
	ForBidder(ctx context.Context, bidderID string) ([]models.Bid, error)
	HasPending(ctx context.Context, requirementID, bidderID string) (bool, error)
	// SetStatusIf moves a bid from expect to status.
	SetStatusIf(ctx context.Context, id string, expect, status models.BidStatus) error
	// RejectPending rejects every pending bid of the requirement except keep
	// and returns the bids it changed.
	RejectPending(ctx context.Context, requirementID, keep string) ([]models.Bid, error)
}

type BookingQuery struct {
	UserID      string
	ServiceType models.ServiceKind
}

type BookingStore interface {
	Create(ctx context.Context, b models.Booking) error
	Get(ctx context.Context, id string) (models.Booking, error)
	ForRequirement(ctx context.Context, requirementID string) (models.Booking, error)
	// ForUser returns bookings where the user is farmer or provider.
	ForUser(ctx context.Context, q BookingQuery) ([]models.Booking, error)
	// ProviderBusy reports a live booking of the provider on the given day.
	ProviderBusy(ctx context.Context, providerID string, day time.Time) (bool, error)
	// UpdateIf replaces b only while the stored status and payment status are unchanged.
	UpdateIf(ctx context.Context, b models.Booking, expect models.BookingStatus, expectPay models.PaymentStatus) error
}

func newest() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func replaceIf(ctx context.Context, col *mongo.Collection, filter bson.M, doc any) error {
	res, err := col.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return db.Translate(err)
	}
	if res.MatchedCount == 0 {
		return db.ErrStale
	}
	return nil
}

type MongoRequirements struct{ col *mongo.Collection }

func NewMongoRequirements(database *mongo.Database) *MongoRequirements {
	return &MongoRequirements{col: database.Collection(db.Requirements)}
}

func (s *MongoRequirements) Create(ctx context.Context, r models.Requirement) error {
	_, err := s.col.InsertOne(ctx, r)
	return db.Translate(err)
}

func (s *MongoRequirements) Get(ctx context.Context, id string) (models.Requirement, error) {
	var r models.Requirement
	err := s.col.FindOne(ctx, bson.M{"requirementId": id}).Decode(&r)
	return r, db.Translate(err)
}

func (s *MongoRequirements) List(ctx context.Context, q RequirementQuery) ([]models.Requirement, error) {
	filter := bson.M{}
	if q.Kind != "" {
		filter["kind"] = q.Kind
	}
	if q.FarmerID != "" {
		filter["farmerId"] = q.FarmerID
	}
	if q.OpenOnly {
		filter["status"] = models.RequirementOpen
	}
	return findAll[models.Requirement](ctx, s.col, filter, newest())
}

func (s *MongoRequirements) UpdateIf(ctx context.Context, r models.Requirement, expect models.RequirementStatus) error {
	return replaceIf(ctx, s.col, bson.M{"requirementId": r.RequirementID, "status": expect}, r)
}

type MongoBids struct{ col *mongo.Collection }

func NewMongoBids(database *mongo.Database) *MongoBids {
	return &MongoBids{col: database.Collection(db.Bids)}
}

func (s *MongoBids) Create(ctx context.Context, b models.Bid) error {
	_, err := s.col.InsertOne(ctx, b)
	return db.Translate(err)
}

func (s *MongoBids) Get(ctx context.Context, id string) (models.Bid, error) {
	var b models.Bid
	err := s.col.FindOne(ctx, bson.M{"bidId": id}).Decode(&b)
	return b, db.Translate(err)
}

func (s *MongoBids) ForRequirement(ctx context.Context, requirementID string) ([]models.Bid, error) {
	return findAll[models.Bid](ctx, s.col, bson.M{"requirementId": requirementID}, newest())
}

func (s *MongoBids) ForBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	return findAll[models.Bid](ctx, s.col, bson.M{"bidderId": bidderID}, newest())
}

func (s *MongoBids) HasPending(ctx context.Context, requirementID, bidderID string) (bool, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{
		"requirementId": requirementID, "bidderId": bidderID, "status": models.BidPending,
	})
	return n > 0, err
}

func (s *MongoBids) SetStatusIf(ctx context.Context, id string, expect, status models.BidStatus) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"bidId": id, "status": expect},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return db.ErrStale
	}
	return nil
}

func (s *MongoBids) RejectPending(ctx context.Context, requirementID, keep string) ([]models.Bid, error) {
	filter := bson.M{"requirementId": requirementID, "status": models.BidPending, "bidId": bson.M{"$ne": keep}}
	pending, err := findAll[models.Bid](ctx, s.col, filter)
	if err != nil || len(pending) == 0 {
		return nil, err
	}
	ids := make([]string, 0, len(pending))
	for _, b := range pending {
		ids = append(ids, b.BidID)
	}
	_, err = s.col.UpdateMany(ctx,
		bson.M{"bidId": bson.M{"$in": ids}, "status": models.BidPending},
		bson.M{"$set": bson.M{"status": models.BidRejected, "updatedAt": time.Now()}},
	)
	if err != nil {
		return nil, err
	}
	for i := range pending {
		pending[i].Status = models.BidRejected
	}
	return pending, nil
}

type MongoBookings struct{ col *mongo.Collection }

func NewMongoBookings(database *mongo.Database) *MongoBookings {
	return &MongoBookings{col: database.Collection(db.Bookings)}
}

func (s *MongoBookings) Create(ctx context.Context, b models.Booking) error {
	_, err := s.col.InsertOne(ctx, b)
	return db.Translate(err)
}

func (s *MongoBookings) Get(ctx context.Context, id string) (models.Booking, error) {
	var b models.Booking
	err := s.col.FindOne(ctx, bson.M{"bookingId": id}).Decode(&b)
	return b, db.Translate(err)
}

func (s *MongoBookings) ForRequirement(ctx context.Context, requirementID string) (models.Booking, error) {
	var b models.Booking
	err := s.col.FindOne(ctx, bson.M{"requirementId": requirementID}).Decode(&b)
	return b, db.Translate(err)
}

func (s *MongoBookings) ForUser(ctx context.Context, q BookingQuery) ([]models.Booking, error) {
	filter := bson.M{"$or": []bson.M{{"farmerId": q.UserID}, {"providerId": q.UserID}}}
	if q.ServiceType != "" {
		filter["serviceType"] = q.ServiceType
	}
	return findAll[models.Booking](ctx, s.col, filter, newest())
}

func (s *MongoBookings) ProviderBusy(ctx context.Context, providerID string, day time.Time) (bool, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	n, err := s.col.CountDocuments(ctx, bson.M{
		"providerId":  providerID,
		"bookingDate": bson.M{"$gte": start, "$lt": start.AddDate(0, 0, 1)},
		"status":      bson.M{"$nin": []models.BookingStatus{models.BookingCancelled, models.BookingCompleted}},
	})
	return n > 0, err
}

func (s *MongoBookings) UpdateIf(ctx context.Context, b models.Booking, expect models.BookingStatus, expectPay models.PaymentStatus) error {
	return replaceIf(ctx, s.col, bson.M{"bookingId": b.BookingID, "status": expect, "paymentStatus": expectPay}, b)
}
