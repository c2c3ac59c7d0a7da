package pay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"cropconnect/db"
	"cropconnect/models"
	"cropconnect/utils"
)

const idempotencyTTL = 24 * time.Hour

// IdempotencyStore reserves keys and remembers the responses sent for them.
type IdempotencyStore interface {
	// Reserve inserts rec, or returns the existing record with db.ErrDuplicate.
	Reserve(ctx context.Context, rec models.IdempotencyRecord) (models.IdempotencyRecord, error)
	Complete(ctx context.Context, key string, status int, body []byte) error
	Release(ctx context.Context, key string) error
}

func computeRequestHash(r *http.Request, bodyBytes []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + userID + ":"))
	h.Write(bodyBytes)
	return hex.EncodeToString(h.Sum(nil))
}

// CaptureResponseWriter wraps http.ResponseWriter to capture status and body.
type CaptureResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	buf         bytes.Buffer
	wroteHeader bool
}

func NewCaptureResponseWriter(w http.ResponseWriter) *CaptureResponseWriter {
	return &CaptureResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (c *CaptureResponseWriter) WriteHeader(statusCode int) {
	if !c.wroteHeader {
		c.statusCode = statusCode
		c.wroteHeader = true
		c.ResponseWriter.WriteHeader(statusCode)
	}
}

func (c *CaptureResponseWriter) Write(b []byte) (int, error) {
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

// Idempotency replays the stored response when a client retries a mutation
// with the same Idempotency-Key. Requests without the header pass through.
//   - first use: the handler runs and a 2xx response is stored
//   - same key, different request: 409
//   - same key while the first request is still running: 409
//   - non-2xx responses are not stored so the client may retry
func Idempotency(store IdempotencyStore) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next(w, r, ps)
				return
			}

			userID := utils.GetUserIDFromRequest(r)
			bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			now := time.Now()
			rec := models.IdempotencyRecord{
				Key:         userID + ":" + key,
				Method:      r.Method,
				Path:        r.URL.Path,
				UserID:      userID,
				RequestHash: computeRequestHash(r, bodyBytes, userID),
				CreatedAt:   now,
				ExpiresAt:   now.Add(idempotencyTTL),
			}

			existing, err := store.Reserve(r.Context(), rec)
			switch {
			case err == nil:
				crw := NewCaptureResponseWriter(w)
				next(crw, r, ps)
				ctx := context.WithoutCancel(r.Context())
				if crw.statusCode >= 200 && crw.statusCode < 300 {
					if err := store.Complete(ctx, rec.Key, crw.statusCode, crw.buf.Bytes()); err != nil {
						log.Printf("[pay] idempotency complete %s: %v", key, err)
					}
				} else if err := store.Release(ctx, rec.Key); err != nil {
					log.Printf("[pay] idempotency release %s: %v", key, err)
				}
				return
			case !errors.Is(err, db.ErrDuplicate):
				log.Printf("[pay] idempotency reserve %s: %v", key, err)
				utils.RespondWithError(w, http.StatusInternalServerError, "idempotency lookup error")
				return
			}

			if existing.RequestHash != rec.RequestHash {
				utils.RespondWithError(w, http.StatusConflict, "idempotency-key conflict")
				return
			}
			if existing.Status == 0 {
				utils.RespondWithError(w, http.StatusConflict, "request already in progress")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(existing.Status)
			_, _ = w.Write(existing.Body)
		}
	}
}

type MongoIdempotency struct {
	col *mongo.Collection
}

func NewMongoIdempotency(database *mongo.Database) *MongoIdempotency {
	return &MongoIdempotency{col: database.Collection(db.Idempotency)}
}

func (m *MongoIdempotency) Reserve(ctx context.Context, rec models.IdempotencyRecord) (models.IdempotencyRecord, error) {
	_, err := m.col.InsertOne(ctx, rec)
	if err == nil {
		return rec, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return models.IdempotencyRecord{}, err
	}
	var existing models.IdempotencyRecord
	if err := m.col.FindOne(ctx, bson.M{"key": rec.Key}).Decode(&existing); err != nil {
		return models.IdempotencyRecord{}, err
	}
	return existing, db.ErrDuplicate
}

func (m *MongoIdempotency) Complete(ctx context.Context, key string, status int, body []byte) error {
	_, err := m.col.UpdateOne(ctx, bson.M{"key": key}, bson.M{"$set": bson.M{"status": status, "body": body}})
	return err
}

func (m *MongoIdempotency) Release(ctx context.Context, key string) error {
	_, err := m.col.DeleteOne(ctx, bson.M{"key": key})
	return err
}

// MemoryIdempotency is a process-local IdempotencyStore.
type MemoryIdempotency struct {
	mu   sync.Mutex
	recs map[string]models.IdempotencyRecord
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{recs: make(map[string]models.IdempotencyRecord)}
}

func (m *MemoryIdempotency) Reserve(_ context.Context, rec models.IdempotencyRecord) (models.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.recs[rec.Key]; ok && time.Now().Before(cur.ExpiresAt) {
		return cur, db.ErrDuplicate
	}
	m.recs[rec.Key] = rec
	return rec, nil
}

func (m *MemoryIdempotency) Complete(_ context.Context, key string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.recs[key]
	rec.Status, rec.Body = status, append([]byte(nil), body...)
	m.recs[key] = rec
	return nil
}

func (m *MemoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, key)
	return nil
}
