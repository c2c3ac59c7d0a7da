package pay

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

// Ledger stores payment transactions.
type Ledger interface {
	Record(ctx context.Context, txn models.Transaction) error
	// ForUser returns entries where the user is payer or payee, newest first.
	ForUser(ctx context.Context, userID string) ([]models.Transaction, error)
}

// GatewayOrders remembers created gateway orders so a payment can be matched to its amount.
type GatewayOrders interface {
	Save(ctx context.Context, o models.GatewayOrder) error
	Get(ctx context.Context, id string) (models.GatewayOrder, error)
	// Consume marks the order as spent by usedBy. It fails with ErrPaymentUsed
	// when another record already holds it; repeating the same usedBy succeeds.
	Consume(ctx context.Context, id, usedBy string) error
	// Release undoes Consume when the record could not be written.
	Release(ctx context.Context, id, usedBy string) error
}

type MongoLedger struct {
	col *mongo.Collection
}

func NewMongoLedger(database *mongo.Database) *MongoLedger {
	return &MongoLedger{col: database.Collection(db.Transactions)}
}

func (l *MongoLedger) Record(ctx context.Context, txn models.Transaction) error {
	_, err := l.col.InsertOne(ctx, txn)
	return db.Translate(err)
}

func (l *MongoLedger) ForUser(ctx context.Context, userID string) ([]models.Transaction, error) {
	filter := bson.M{"$or": []bson.M{{"payerId": userID}, {"payeeId": userID}}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(500)
	cursor, err := l.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Transaction{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type MongoGatewayOrders struct {
	col *mongo.Collection
}

func NewMongoGatewayOrders(database *mongo.Database) *MongoGatewayOrders {
	return &MongoGatewayOrders{col: database.Collection(db.GatewayOrders)}
}

func (g *MongoGatewayOrders) Save(ctx context.Context, o models.GatewayOrder) error {
	_, err := g.col.InsertOne(ctx, o)
	return db.Translate(err)
}

func (g *MongoGatewayOrders) Get(ctx context.Context, id string) (models.GatewayOrder, error) {
	var o models.GatewayOrder
	err := g.col.FindOne(ctx, bson.M{"id": id}).Decode(&o)
	return o, db.Translate(err)
}

func (g *MongoGatewayOrders) Consume(ctx context.Context, id, usedBy string) error {
	filter := bson.M{"id": id, "$or": []bson.M{
		{"usedBy": bson.M{"$exists": false}},
		{"usedBy": ""},
		{"usedBy": usedBy},
	}}
	res, err := g.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"usedBy": usedBy}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := g.Get(ctx, id); err != nil {
			return err
		}
		return ErrPaymentUsed
	}
	return nil
}

func (g *MongoGatewayOrders) Release(ctx context.Context, id, usedBy string) error {
	_, err := g.col.UpdateOne(ctx, bson.M{"id": id, "usedBy": usedBy}, bson.M{"$unset": bson.M{"usedBy": ""}})
	return err
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu   sync.Mutex
	txns []models.Transaction
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Record(_ context.Context, txn models.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txns = append(l.txns, txn)
	return nil
}

func (l *MemoryLedger) ForUser(_ context.Context, userID string) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []models.Transaction{}
	for _, t := range l.txns {
		if t.PayerID == userID || t.PayeeID == userID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MemoryGatewayOrders is a process-local GatewayOrders.
type MemoryGatewayOrders struct {
	mu     sync.Mutex
	orders map[string]models.GatewayOrder
}

func NewMemoryGatewayOrders() *MemoryGatewayOrders {
	return &MemoryGatewayOrders{orders: make(map[string]models.GatewayOrder)}
}

func (g *MemoryGatewayOrders) Save(_ context.Context, o models.GatewayOrder) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.orders[o.ID]; ok {
		return db.ErrDuplicate
	}
	g.orders[o.ID] = o
	return nil
}

func (g *MemoryGatewayOrders) Get(_ context.Context, id string) (models.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return models.GatewayOrder{}, db.ErrNotFound
	}
	return o, nil
}

func (g *MemoryGatewayOrders) Consume(_ context.Context, id, usedBy string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return db.ErrNotFound
	}
	if o.UsedBy != "" && o.UsedBy != usedBy {
		return ErrPaymentUsed
	}
	o.UsedBy = usedBy
	g.orders[id] = o
	return nil
}

func (g *MemoryGatewayOrders) Release(_ context.Context, id, usedBy string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if o, ok := g.orders[id]; ok && o.UsedBy == usedBy {
		o.UsedBy = ""
		g.orders[id] = o
	}
	return nil
}
