package ws

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"codebattle/internal/match/repository"
	"codebattle/internal/match/service"
	appErr "codebattle/pkg/errors"
	"codebattle/pkg/utils/logger"
)

// Client message types.
const (
	msgMatchJoin   = "MATCH_JOIN"
	msgMatchCancel = "MATCH_CANCEL"
	msgGameJoin    = "GAME_JOIN"
	msgGameSubmit  = "GAME_SUBMIT"
)

// clientMessage is the envelope for everything a player sends. Fields beyond
// Type are populated per message kind.
type clientMessage struct {
	Type     string `json:"type"`
	GameType string `json:"gameType,omitempty"`
	MatchID  string `json:"matchId,omitempty"`
	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`
}

type ackMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	MatchID string `json:"matchId,omitempty"`
}

// Handler upgrades HTTP requests to websocket sessions and routes client
// messages into the service layer.
type Handler struct {
	hub        *Hub
	auth       *Authenticator
	queues     *service.QueueService
	rooms      *service.RoomService
	roomRepo   *repository.RoomRepository
	sessions   *repository.SessionRepository
	disconnect *service.DisconnectService
	upgrader   websocket.Upgrader
}

// NewHandler wires the websocket entry point.
func NewHandler(
	hub *Hub,
	auth *Authenticator,
	queues *service.QueueService,
	rooms *service.RoomService,
	roomRepo *repository.RoomRepository,
	sessions *repository.SessionRepository,
	disconnect *service.DisconnectService,
) *Handler {
	return &Handler{
		hub:        hub,
		auth:       auth,
		queues:     queues,
		rooms:      rooms,
		roomRepo:   roomRepo,
		sessions:   sessions,
		disconnect: disconnect,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Token auth is the access control; origin is not.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates the handshake, upgrades, and runs the session's
// read loop until the socket closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := h.auth.Authenticate(r)
	if err != nil {
		logger.Warn(ctx, "websocket handshake rejected", zap.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(ctx, "websocket upgrade failed", zap.Error(err))
		return
	}

	sessionID := uuid.NewString()
	h.hub.Register(sessionID, userID, conn)
	if err := h.sessions.BindUser(ctx, sessionID, userID); err != nil {
		logger.Error(ctx, "session bind failed, closing connection",
			zap.String("sessionId", sessionID), zap.Error(err))
		h.hub.Unregister(sessionID, userID)
		_ = conn.Close()
		return
	}

	logger.Info(ctx, "websocket session opened",
		zap.String("sessionId", sessionID), zap.String("userId", userID))

	h.readLoop(sessionID, userID, conn)
}

func (h *Handler) readLoop(sessionID, userID string, conn *websocket.Conn) {
	// The request context dies with the handshake; session work gets its own.
	ctx := context.Background()

	defer func() {
		_ = conn.Close()
		h.hub.Unregister(sessionID, userID)
		h.disconnect.HandleDisconnect(ctx, sessionID)
		logger.Info(ctx, "websocket session closed",
			zap.String("sessionId", sessionID), zap.String("userId", userID))
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn(ctx, "websocket read error",
					zap.String("sessionId", sessionID), zap.Error(err))
			}
			return
		}
		h.dispatch(ctx, sessionID, userID, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, sessionID, userID string, msg clientMessage) {
	var err error
	switch msg.Type {
	case msgMatchJoin:
		err = h.queues.Join(ctx, msg.GameType, userID)
		if err == nil {
			h.ack(ctx, userID, ackMessage{Type: "QUEUE_JOINED"})
		}
	case msgMatchCancel:
		err = h.queues.Leave(ctx, msg.GameType, userID)
		if err == nil {
			h.ack(ctx, userID, ackMessage{Type: "QUEUE_LEFT"})
		}
	case msgGameJoin:
		err = h.handleGameJoin(ctx, sessionID, userID, msg.MatchID)
	case msgGameSubmit:
		err = h.rooms.SubmitCode(ctx, msg.MatchID, userID, msg.Code, msg.Language)
	default:
		logger.Warn(ctx, "unknown client message type",
			zap.String("type", msg.Type), zap.String("userId", userID))
		return
	}

	if err != nil {
		logger.Warn(ctx, "client message handling failed",
			zap.String("type", msg.Type), zap.String("userId", userID), zap.Error(err))
		h.sendError(ctx, userID, err)
	}
}

// handleGameJoin binds the socket session to a match so a later drop can be
// converted into a forfeiture, and subscribes it to the match topic.
func (h *Handler) handleGameJoin(ctx context.Context, sessionID, userID, matchID string) error {
	room, ok, err := h.roomRepo.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if !ok {
		return appErr.Newf(appErr.RoomNotFound, "match %s not found", matchID)
	}
	if _, isPlayer := room.RoleOf(userID); !isPlayer {
		return appErr.Newf(appErr.UnknownParticipant, "user %s is not in match %s", userID, matchID)
	}

	if err := h.sessions.BindMatch(ctx, sessionID, userID, matchID); err != nil {
		return err
	}
	h.hub.JoinMatch(matchID, userID)
	h.ack(ctx, userID, ackMessage{Type: "GAME_JOINED", MatchID: matchID})
	return nil
}

func (h *Handler) ack(ctx context.Context, userID string, msg ackMessage) {
	if err := h.hub.PublishToUser(ctx, userID, msg); err != nil {
		logger.Warn(ctx, "ack delivery failed",
			zap.String("userId", userID), zap.String("type", msg.Type), zap.Error(err))
	}
}

// sendError goes through the hub so it serializes with concurrent pushes on
// the same socket.
func (h *Handler) sendError(ctx context.Context, userID string, err error) {
	payload := map[string]string{
		"type":  "ERROR",
		"error": appErr.GetCode(err).Message(),
	}
	_ = h.hub.PublishToUser(ctx, userID, payload)
}
