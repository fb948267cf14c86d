package service

import (
	"context"

	"go.uber.org/zap"

	"codebattle/internal/match/repository"
	"codebattle/pkg/utils/logger"
)

// DisconnectService turns a dropped connection into clean state: queue
// tickets are withdrawn, an active match becomes a walkover for the
// opponent, and the session bindings are removed. Every step tolerates the
// state already being gone, so reconnect races and double-close events
// resolve quietly.
type DisconnectService struct {
	sessions  *repository.SessionRepository
	rooms     *repository.RoomRepository
	queues    *QueueService
	publisher *ResultPublisher
}

// NewDisconnectService creates the disconnect coordinator.
func NewDisconnectService(
	sessions *repository.SessionRepository,
	rooms *repository.RoomRepository,
	queues *QueueService,
	publisher *ResultPublisher,
) *DisconnectService {
	return &DisconnectService{
		sessions:  sessions,
		rooms:     rooms,
		queues:    queues,
		publisher: publisher,
	}
}

// HandleDisconnect runs the full cleanup for one closed session.
func (s *DisconnectService) HandleDisconnect(ctx context.Context, sessionID string) {
	defer func() {
		if err := s.sessions.UnbindSession(ctx, sessionID); err != nil {
			logger.Warn(ctx, "session unbind failed",
				zap.String("sessionId", sessionID), zap.Error(err))
		}
	}()

	userID, err := s.sessions.UserOf(ctx, sessionID)
	if err != nil {
		logger.Warn(ctx, "session user lookup failed",
			zap.String("sessionId", sessionID), zap.Error(err))
		return
	}
	if userID == "" {
		// Connection dropped before identifying itself.
		return
	}

	logger.Info(ctx, "user disconnected",
		zap.String("sessionId", sessionID), zap.String("userId", userID))

	s.queues.LeaveAll(ctx, userID)

	matchID, err := s.sessions.MatchOf(ctx, sessionID)
	if err != nil {
		logger.Warn(ctx, "session match lookup failed",
			zap.String("sessionId", sessionID), zap.Error(err))
		return
	}
	if matchID == "" {
		// Matched but never joined the game topic; the pairing-time binding
		// still routes the forfeit.
		matchID, err = s.sessions.MatchOfUser(ctx, userID)
		if err != nil {
			logger.Warn(ctx, "active match lookup failed",
				zap.String("userId", userID), zap.Error(err))
			return
		}
	}
	if matchID == "" {
		return
	}

	room, ok, err := s.rooms.Get(ctx, matchID)
	if err != nil {
		logger.Warn(ctx, "room lookup failed on disconnect",
			zap.String("matchId", matchID), zap.Error(err))
		return
	}
	if !ok {
		// Room already torn down; the match concluded while the socket was
		// closing. Nothing to forfeit.
		return
	}

	role, isPlayer := room.RoleOf(userID)
	if !isPlayer {
		logger.Warn(ctx, "disconnected user not a participant of bound match",
			zap.String("matchId", matchID), zap.String("userId", userID))
		return
	}

	logger.Info(ctx, "forfeiting match for disconnected player",
		zap.String("matchId", matchID), zap.String("role", string(role)))
	if err := s.publisher.PublishForfeit(ctx, room, role); err != nil {
		logger.Error(ctx, "forfeiture delivery failed",
			zap.String("matchId", matchID), zap.Error(err))
	}
}
