package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"codebattle/pkg/utils/logger"
)

// defaultWriteWait bounds one websocket write. A peer with a stalled TCP
// window must not block the matcher tick or the result pipeline.
const defaultWriteWait = 10 * time.Second

// connection pairs a socket with its write lock. gorilla allows one
// concurrent writer per connection, so every send goes through the mutex.
type connection struct {
	sessionID string
	userID    string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	writeWait time.Duration
}

func (c *connection) send(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	wait := c.writeWait
	if wait <= 0 {
		wait = defaultWriteWait
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks live connections by user and match topic membership. It is the
// process-local delivery fabric behind the service layer's Notifier.
type Hub struct {
	mu      sync.RWMutex
	byUser  map[string]*connection
	matches map[string]map[string]*connection // matchID -> userID -> conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		byUser:  make(map[string]*connection),
		matches: make(map[string]map[string]*connection),
	}
}

// Register adds an authenticated connection. A user reconnecting replaces
// their old socket; the stale one is closed so its read loop terminates.
func (h *Hub) Register(sessionID, userID string, conn *websocket.Conn) {
	c := &connection{sessionID: sessionID, userID: userID, conn: conn, writeWait: defaultWriteWait}

	h.mu.Lock()
	old := h.byUser[userID]
	h.byUser[userID] = c
	h.mu.Unlock()

	if old != nil {
		logger.Info(context.Background(), "replacing stale connection for user",
			zap.String("userId", userID), zap.String("oldSessionId", old.sessionID))
		_ = old.conn.Close()
	}
}

// Unregister removes a connection and its topic memberships. Only the
// connection with the matching session is removed, so a reconnect that
// already replaced the entry is untouched.
func (h *Hub) Unregister(sessionID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.byUser[userID]; ok && cur.sessionID == sessionID {
		delete(h.byUser, userID)
	}
	for matchID, members := range h.matches {
		if cur, ok := members[userID]; ok && cur.sessionID == sessionID {
			delete(members, userID)
			if len(members) == 0 {
				delete(h.matches, matchID)
			}
		}
	}
}

// JoinMatch subscribes the user's live connection to a match topic.
func (h *Hub) JoinMatch(matchID, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.byUser[userID]
	if !ok {
		return false
	}
	members, ok := h.matches[matchID]
	if !ok {
		members = make(map[string]*connection)
		h.matches[matchID] = members
	}
	members[userID] = c
	return true
}

// PublishToUser pushes a payload on a user's personal topic. Users without a
// live connection are skipped; realtime delivery has no replay.
func (h *Hub) PublishToUser(ctx context.Context, userID string, payload interface{}) error {
	h.mu.RLock()
	c, ok := h.byUser[userID]
	h.mu.RUnlock()
	if !ok {
		logger.Warn(ctx, "no live connection for user, dropping payload",
			zap.String("userId", userID))
		return nil
	}
	return c.send(payload)
}

// PublishToMatch pushes a payload to every subscriber of a match topic.
func (h *Hub) PublishToMatch(ctx context.Context, matchID string, payload interface{}) error {
	h.mu.RLock()
	members := make([]*connection, 0, 2)
	for _, c := range h.matches[matchID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if err := c.send(payload); err != nil {
			logger.Warn(ctx, "match topic delivery failed",
				zap.String("matchId", matchID), zap.String("userId", c.userID), zap.Error(err))
		}
	}
	return nil
}
