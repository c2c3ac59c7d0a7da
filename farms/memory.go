package farms

import (
	"context"
	"sort"
	"sync"
	"time"

	"cropconnect/db"
	"cropconnect/models"
	"cropconnect/utils"
)

// MemoryStore is a process-local CropStore.
type MemoryStore struct {
	mu    sync.Mutex
	crops map[string]models.Crop
}

func NewMemoryStore(seed ...models.Crop) *MemoryStore {
	s := &MemoryStore{crops: make(map[string]models.Crop)}
	for _, c := range seed {
		s.crops[c.CropID] = c
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, c models.Crop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.crops[c.CropID]; ok {
		return db.ErrDuplicate
	}
	s.crops[c.CropID] = c
	return nil
}

func (s *MemoryStore) Get(_ context.Context, cropID string) (models.Crop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.crops[cropID]
	if !ok {
		return models.Crop{}, db.ErrNotFound
	}
	return c, nil
}

func matches(c models.Crop, f models.CropFilter) bool {
	switch {
	case f.Search != "" && !utils.ContainsIgnoreCase(c.CropName, f.Search):
		return false
	case f.Location != "" && !utils.ContainsIgnoreCase(c.Location, f.Location):
		return false
	case f.Grade != "" && c.Grade != f.Grade:
		return false
	case f.SellerID != "" && c.SellerID != f.SellerID:
		return false
	case f.InStock && c.QuantityAvailable <= 0:
		return false
	}
	return true
}

func (s *MemoryStore) List(_ context.Context, f models.CropFilter) ([]models.Crop, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Crop{}
	for _, c := range s.crops {
		if matches(c, f) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	if f.Skip >= total {
		return []models.Crop{}, total, nil
	}
	out = out[f.Skip:]
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (s *MemoryStore) Update(_ context.Context, c models.Crop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.crops[c.CropID]; !ok {
		return db.ErrNotFound
	}
	s.crops[c.CropID] = c
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, cropID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.crops[cropID]; !ok {
		return db.ErrNotFound
	}
	delete(s.crops, cropID)
	return nil
}

func (s *MemoryStore) DecrementStock(_ context.Context, cropID string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.crops[cropID]
	if !ok {
		return db.ErrNotFound
	}
	if c.QuantityAvailable < n {
		return &models.StockError{CropID: cropID, CropName: c.CropName, Available: c.QuantityAvailable}
	}
	c.QuantityAvailable -= n
	c.UpdatedAt = time.Now()
	s.crops[cropID] = c
	return nil
}

func (s *MemoryStore) RestoreStock(_ context.Context, cropID string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.crops[cropID]
	if !ok {
		return db.ErrNotFound
	}
	c.QuantityAvailable += n
	c.UpdatedAt = time.Now()
	s.crops[cropID] = c
	return nil
}
