package client

import "sync"

// guard rejects a second concurrent run of the same action.
type guard struct {
	mu   sync.Mutex
	busy map[string]bool
}

func (g *guard) run(key string, fn func() error) error {
	g.mu.Lock()
	if g.busy == nil {
		g.busy = make(map[string]bool)
	}
	if g.busy[key] {
		g.mu.Unlock()
		return ErrInFlight
	}
	g.busy[key] = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.busy, key)
		g.mu.Unlock()
	}()
	return fn()
}
