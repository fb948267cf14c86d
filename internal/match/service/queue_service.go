package service

import (
	"context"

	"go.uber.org/zap"

	"codebattle/internal/match/repository"
	appErr "codebattle/pkg/errors"
	"codebattle/pkg/utils/logger"
)

// QueueService fronts the waiting pool for the transport layer. Matching
// itself happens in the Matcher loops; this only adds and removes tickets.
type QueueService struct {
	queues    *repository.QueueRepository
	gameTypes map[string]struct{}
}

// NewQueueService creates a queue service accepting the given game types.
func NewQueueService(queues *repository.QueueRepository, gameTypes []string) *QueueService {
	known := make(map[string]struct{}, len(gameTypes))
	for _, gt := range gameTypes {
		known[gt] = struct{}{}
	}
	return &QueueService{queues: queues, gameTypes: known}
}

// Join places the user into the waiting pool for one game type. Joining
// twice is harmless; the original enqueue time is kept.
func (s *QueueService) Join(ctx context.Context, gameType, userID string) error {
	if _, ok := s.gameTypes[gameType]; !ok {
		return appErr.Newf(appErr.InvalidParams, "unknown game type %q", gameType)
	}
	return s.queues.Enqueue(ctx, gameType, userID)
}

// Leave withdraws the user's ticket for one game type. Cancelling without a
// ticket is a no-op.
func (s *QueueService) Leave(ctx context.Context, gameType, userID string) error {
	if _, ok := s.gameTypes[gameType]; !ok {
		return appErr.Newf(appErr.InvalidParams, "unknown game type %q", gameType)
	}
	return s.queues.Cancel(ctx, gameType, userID)
}

// LeaveAll withdraws the user's tickets from every game type. Used on
// disconnect, where the server does not know which pools the user joined.
func (s *QueueService) LeaveAll(ctx context.Context, userID string) {
	for gt := range s.gameTypes {
		if err := s.queues.Cancel(ctx, gt, userID); err != nil {
			logger.Warn(ctx, "queue withdrawal failed",
				zap.String("gameType", gt), zap.String("userId", userID), zap.Error(err))
		}
	}
}
