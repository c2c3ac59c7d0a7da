package client

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"cropconnect/models"
)

// NotificationListener keeps the live notification list and the unread badge.
type NotificationListener struct {
	api     *Transport
	session *Session
	dialer  *websocket.Dialer

	// OnNotification, if set, runs for every pushed notification.
	OnNotification func(models.Notification)

	mu     sync.Mutex
	items  []models.Notification
	unread int
}

func NewNotificationListener(api *Transport, session *Session) *NotificationListener {
	return &NotificationListener{api: api, session: session, dialer: websocket.DefaultDialer}
}

func (l *NotificationListener) socketURL() (string, error) {
	u, err := url.Parse(l.api.BaseURL())
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/notifications"
	u.RawQuery = url.Values{"token": {l.session.Token()}}.Encode()
	return u.String(), nil
}

// Listen reads pushed notifications until ctx ends or the socket closes.
func (l *NotificationListener) Listen(ctx context.Context) error {
	if !l.session.Authenticated() {
		return ErrUnauthorized
	}
	target, err := l.socketURL()
	if err != nil {
		return err
	}
	conn, resp, err := l.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			l.session.clear()
			return ErrUnauthorized
		}
		return &NetworkError{Method: "GET", Path: "/ws/notifications", Attempts: 1, Err: err}
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var n models.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			log.Printf("[client] bad notification frame: %v", err)
			continue
		}
		l.push(n)
	}
}

func (l *NotificationListener) push(n models.Notification) {
	l.mu.Lock()
	l.items = append([]models.Notification{n}, l.items...)
	if !n.Read {
		l.unread++
	}
	cb := l.OnNotification
	l.mu.Unlock()
	if cb != nil {
		cb(n)
	}
}

// Notifications are newest first.
func (l *NotificationListener) Notifications() []models.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Notification(nil), l.items...)
}

func (l *NotificationListener) Unread() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unread
}

// MarkSeen clears the badge and marks everything read on the server.
func (l *NotificationListener) MarkSeen(ctx context.Context) error {
	if err := l.api.Do(ctx, "PUT", "/api/notifications/read-all", nil, nil); err != nil {
		return err
	}
	l.mu.Lock()
	for i := range l.items {
		l.items[i].Read = true
	}
	l.unread = 0
	l.mu.Unlock()
	return nil
}

// SyncUnread replaces the badge with the server's count.
func (l *NotificationListener) SyncUnread(ctx context.Context) (int, error) {
	var res struct {
		Count int `json:"count"`
	}
	if err := l.api.Do(ctx, "GET", "/api/notifications/unread-count", nil, &res); err != nil {
		return 0, err
	}
	l.mu.Lock()
	l.unread = res.Count
	l.mu.Unlock()
	return res.Count, nil
}

// Load fetches the stored notifications.
func (l *NotificationListener) Load(ctx context.Context) error {
	var res struct {
		Notifications []models.Notification `json:"notifications"`
		Unread        int                   `json:"unread"`
	}
	if err := l.api.Do(ctx, "GET", "/api/notifications", nil, &res); err != nil {
		return err
	}
	l.mu.Lock()
	l.items = res.Notifications
	l.unread = res.Unread
	l.mu.Unlock()
	return nil
}
