package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"cropconnect/db"
	"cropconnect/models"
)

// MemoryStore is a process-local UserStore.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]models.User)}
}

func (m *MemoryStore) Create(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return db.ErrDuplicate
		}
	}
	m.users[u.UserID] = u
	return nil
}

func (m *MemoryStore) ByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, db.ErrNotFound
}

func (m *MemoryStore) ByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, db.ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) UpdateProfile(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.UserID]
	if !ok {
		return db.ErrNotFound
	}
	cur.Name, cur.Phone, cur.Address, cur.UpdatedAt = u.Name, u.Phone, u.Address, u.UpdatedAt
	m.users[u.UserID] = cur
	return nil
}

func (m *MemoryStore) TouchLogin(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.LastLogin = at
		m.users[userID] = u
	}
	return nil
}
