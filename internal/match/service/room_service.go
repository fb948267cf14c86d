package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"codebattle/internal/match/model"
	"codebattle/internal/match/repository"
	"codebattle/internal/match/sandbox"
	appErr "codebattle/pkg/errors"
	"codebattle/pkg/utils/logger"
)

// MatchRunner executes one full match. Implemented by the referee runner;
// faked in tests.
type MatchRunner interface {
	RunMatch(ctx context.Context, req sandbox.RunRequest) (model.MatchResult, error)
}

// RoomService owns the per-match submission state machine:
// WAITING_SUBMISSIONS -> RUNNING -> FINISHED | ABORTED.
type RoomService struct {
	rooms     *repository.RoomRepository
	runner    MatchRunner
	publisher *ResultPublisher
	notifier  Notifier

	// runTimeout bounds one whole match execution end to end; the referee
	// runner enforces its own per-invocation timeout underneath.
	runTimeout time.Duration
}

// NewRoomService creates the submission state machine service.
func NewRoomService(
	rooms *repository.RoomRepository,
	runner MatchRunner,
	publisher *ResultPublisher,
	notifier Notifier,
	runTimeout time.Duration,
) *RoomService {
	if runTimeout <= 0 {
		runTimeout = 2 * time.Minute
	}
	return &RoomService{
		rooms:      rooms,
		runner:     runner,
		publisher:  publisher,
		notifier:   notifier,
		runTimeout: runTimeout,
	}
}

// SubmitCode stores one player's submission and, when both sides are ready,
// starts the match exactly once. Submissions for unknown rooms or from
// outsiders are dropped with a log entry; submissions against a locked room
// are rejected.
func (s *RoomService) SubmitCode(ctx context.Context, matchID, userID, code, language string) error {
	room, ok, err := s.rooms.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if !ok {
		logger.Warn(ctx, "submission for non-existent or expired match",
			zap.String("matchId", matchID), zap.String("userId", userID))
		return nil
	}

	role, isPlayer := room.RoleOf(userID)
	if !isPlayer {
		logger.Warn(ctx, "unknown user tried to submit",
			zap.String("matchId", matchID), zap.String("userId", userID))
		return nil
	}

	if room.Status != model.StatusWaitingSubmissions {
		return appErr.Newf(appErr.RoomLocked, "match %s is locked pending result", matchID)
	}

	if err := s.rooms.StoreSubmission(ctx, matchID, role, code, language); err != nil {
		return err
	}
	logger.Info(ctx, "code saved",
		zap.String("matchId", matchID), zap.String("role", string(role)))

	// Role only, never the code.
	if err := s.notifier.PublishToMatch(ctx, matchID, model.NewSubmittedNotice(role)); err != nil {
		logger.Warn(ctx, "submitted notice delivery failed",
			zap.String("matchId", matchID), zap.Error(err))
	}

	// Re-read so the readiness check sees the opponent's concurrent write.
	room, ok, err = s.rooms.Get(ctx, matchID)
	if err != nil || !ok {
		return err
	}
	if !room.BothSubmitted() {
		logger.Info(ctx, "waiting for opponent", zap.String("matchId", matchID))
		return nil
	}

	// Two submissions can both observe "both ready"; the atomic claim lets
	// exactly one of them start the invocation.
	claimed, err := s.rooms.ClaimRun(ctx, matchID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	// The claim is consumed either way; skipping the launch here would leave
	// a match no later submission can ever start.
	if err := s.rooms.SetStatus(ctx, matchID, model.StatusRunning); err != nil {
		logger.Error(ctx, "status update failed, starting claimed run anyway",
			zap.String("matchId", matchID), zap.Error(err))
	}

	logger.Info(ctx, "all players ready, starting execution", zap.String("matchId", matchID))

	// The judge run is long and blocking; it must never hold up the
	// submission path, queue ticking, or disconnect handling.
	go s.runMatch(room)
	return nil
}

func (s *RoomService) runMatch(room *model.MatchRoom) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	req := sandbox.RunRequest{
		MatchID:  room.MatchID,
		GameType: room.GameType,
		MapJSON:  room.MapData,
		P1: sandbox.Submission{
			Role:     model.RoleP1,
			Code:     room.P1.Code,
			Language: room.P1.Language,
		},
		P2: sandbox.Submission{
			Role:     model.RoleP2,
			Code:     room.P2.Code,
			Language: room.P2.Language,
		},
	}

	result, err := s.runner.RunMatch(ctx, req)
	if err != nil {
		logger.Error(ctx, "match execution failed",
			zap.String("matchId", room.MatchID), zap.Error(err))
		if pubErr := s.publisher.PublishError(ctx, room, err); pubErr != nil {
			logger.Error(ctx, "error result delivery failed",
				zap.String("matchId", room.MatchID), zap.Error(pubErr))
		}
		return
	}

	if pubErr := s.publisher.PublishResult(ctx, room, result); pubErr != nil {
		logger.Error(ctx, "result delivery failed",
			zap.String("matchId", room.MatchID), zap.Error(pubErr))
	}
}
