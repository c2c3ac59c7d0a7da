package notify

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"cropconnect/db"
	"cropconnect/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type Handler struct {
	store    Store
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler accepts websocket origins through allowOrigin; nil allows all.
func NewHandler(store Store, hub *Hub, allowOrigin func(*http.Request) bool) *Handler {
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{store: store, hub: hub, upgrader: websocket.Upgrader{CheckOrigin: allowOrigin}}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	skip, limit := utils.ParsePagination(r, 20, 100)
	list, err := h.store.ForUser(ctx, userID, skip, limit)
	if err != nil {
		log.Printf("[notify] list for %s: %v", userID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch notifications")
		return
	}
	unread, err := h.store.UnreadCount(ctx, userID)
	if err != nil {
		log.Printf("[notify] unread for %s: %v", userID, err)
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "notifications": list, "unread": unread})
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	n, err := h.store.UnreadCount(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		log.Printf("[notify] unread: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to count notifications")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "count": n})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	err := h.store.MarkRead(ctx, utils.GetUserIDFromRequest(r), ps.ByName("id"))
	if errors.Is(err, db.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Notification not found")
		return
	}
	if err != nil {
		log.Printf("[notify] mark read: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update notification")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	n, err := h.store.MarkAllRead(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		log.Printf("[notify] mark all read: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update notifications")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "updated": n})
}

// Socket upgrades an authenticated request and streams the user's notifications.
func (h *Handler) Socket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[notify] upgrade: %v", err)
		return
	}
	client := &Client{Conn: conn, Send: make(chan []byte, 32), UserID: userID}
	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	go writePump(client)
	go readPump(client, h.hub)
}

func writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for close and pong frames; clients do not send data.
func readPump(c *Client, hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
