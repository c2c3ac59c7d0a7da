package client

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"cropconnect/models"
)

// SessionView is the read-only side of a Session that components receive.
type SessionView interface {
	User() models.User
	Token() string
	Authenticated() bool
}

type SessionState struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

type SessionStore interface {
	Load() (SessionState, error)
	Save(SessionState) error
	Clear() error
}

// Session owns the signed-in user and token. It changes only through
// Login, Register, Logout, and the transport's 401 handling.
type Session struct {
	mu    sync.RWMutex
	state SessionState
	store SessionStore
	api   *Transport
}

// NewSession restores any state the store holds.
func NewSession(store SessionStore) *Session {
	if store == nil {
		store = NewMemorySessionStore()
	}
	s := &Session{store: store}
	if st, err := store.Load(); err == nil {
		s.state = st
	}
	return s
}

func (s *Session) User() models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone,omitempty"`
	Password string         `json:"password"`
	Role     models.Role    `json:"role"`
	Address  models.Address `json:"address"`
}

func (s *Session) Login(ctx context.Context, c Credentials) (models.User, error) {
	if c.Email == "" || c.Password == "" {
		return models.User{}, models.Invalid("credentials", "Email and password are required")
	}
	return s.authenticate(ctx, "/api/auth/login", c)
}

func (s *Session) Register(ctx context.Context, r Registration) (models.User, error) {
	switch {
	case r.Name == "":
		return models.User{}, models.FieldError("name", "is required")
	case r.Email == "":
		return models.User{}, models.FieldError("email", "is required")
	case len(r.Password) < 6:
		return models.User{}, models.FieldError("password", "must be at least 6 characters")
	case !r.Role.Valid():
		return models.User{}, models.FieldError("role", "must be farmer, buyer, worker or tractor_owner")
	}
	return s.authenticate(ctx, "/api/auth/register", r)
}

func (s *Session) authenticate(ctx context.Context, path string, body any) (models.User, error) {
	var res models.AuthResponse
	if err := s.api.Do(ctx, "POST", path, body, &res); err != nil {
		return models.User{}, err
	}
	s.set(SessionState{User: res.User, Token: res.Token})
	return res.User, nil
}

// Logout revokes the token server side when possible and always clears locally.
func (s *Session) Logout(ctx context.Context) error {
	var err error
	if s.Authenticated() {
		err = s.api.Do(ctx, "POST", "/api/auth/logout", nil, nil, NoRetry())
		if errors.Is(err, ErrUnauthorized) {
			err = nil
		}
	}
	s.clear()
	return err
}

func (s *Session) set(st SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	_ = s.store.Save(st)
}

func (s *Session) clear() {
	s.mu.Lock()
	s.state = SessionState{}
	s.mu.Unlock()
	_ = s.store.Clear()
}

// FileSessionStore keeps the session as JSON readable only by the owner.
type FileSessionStore struct {
	Path string
}

func (f FileSessionStore) Load() (SessionState, error) {
	var st SessionState
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}

func (f FileSessionStore) Save(st SessionState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(f.Path, 0o600)
}

func (f FileSessionStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type MemorySessionStore struct {
	mu    sync.Mutex
	state *SessionState
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (m *MemorySessionStore) Load() (SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return SessionState{}, fs.ErrNotExist
	}
	return *m.state, nil
}

func (m *MemorySessionStore) Save(st SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &st
	return nil
}

func (m *MemorySessionStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}
