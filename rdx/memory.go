package rdx

import (
	"context"
	"sync"
	"time"

	"cropconnect/utils"
)

type entry struct {
	val     []byte
	expires time.Time
}

func (e entry) live(now time.Time) bool {
	return e.expires.IsZero() || now.Before(e.expires)
}

// Memory provides the Client helpers inside one process.
type Memory struct {
	mu   sync.Mutex
	keys map[string]entry
	subs map[string][]chan []byte
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]entry), subs: make(map[string][]chan []byte)}
}

func (m *Memory) Lock(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	k := "lock:" + key
	if e, ok := m.keys[k]; ok && e.live(now) {
		return nil, ErrLocked
	}
	token := utils.GetUUID()
	m.keys[k] = entry{val: []byte(token), expires: now.Add(ttl)}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if cur, ok := m.keys[k]; ok && string(cur.val) == token {
			delete(m.keys, k)
		}
	}, nil
}

func (m *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	subs := append([]chan []byte(nil), m.subs[channel]...)
	m.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, channel string) <-chan []byte {
	ch := make(chan []byte, 64)
	m.mu.Lock()
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer m.unsubscribe(channel, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-ch:
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (m *Memory) unsubscribe(channel string, ch chan []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[channel]
	for i, s := range subs {
		if s == ch {
			m.subs[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (m *Memory) CacheGet(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[key]
	if !ok || !e.live(time.Now()) {
		return nil, false
	}
	return e.val, true
}

func (m *Memory) CacheSet(_ context.Context, key string, val []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = entry{val: val, expires: time.Now().Add(ttl)}
}

func (m *Memory) CacheDel(_ context.Context, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
}

func (m *Memory) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl > 0 {
		m.CacheSet(ctx, "revoked:"+jti, []byte("1"), ttl)
	}
	return nil
}

func (m *Memory) IsRevoked(ctx context.Context, jti string) bool {
	_, ok := m.CacheGet(ctx, "revoked:"+jti)
	return ok
}

func (m *Memory) Close() error { return nil }
