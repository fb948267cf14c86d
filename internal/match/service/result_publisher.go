package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"codebattle/internal/match/model"
	"codebattle/internal/match/repository"
	"codebattle/pkg/utils/logger"
)

// ResultPublisher is the single exit path for a match. Every way a match can
// end (normal result, forfeiture, sandbox failure) funnels through it, and
// the finish claim guarantees at most one delivery per match no matter how
// many paths race.
type ResultPublisher struct {
	rooms    *repository.RoomRepository
	sessions *repository.SessionRepository
	notifier Notifier
	events   repository.ResultEventPublisher
	archiver *repository.LogArchiver
}

// NewResultPublisher creates the terminal delivery stage.
func NewResultPublisher(
	rooms *repository.RoomRepository,
	sessions *repository.SessionRepository,
	notifier Notifier,
	events repository.ResultEventPublisher,
	archiver *repository.LogArchiver,
) *ResultPublisher {
	return &ResultPublisher{
		rooms:    rooms,
		sessions: sessions,
		notifier: notifier,
		events:   events,
		archiver: archiver,
	}
}

// PublishResult delivers a completed match outcome to both players, records
// it for persistence, and tears the room down. Losing the finish claim means
// another path (usually a forfeiture) already delivered; this call becomes a
// no-op.
func (p *ResultPublisher) PublishResult(ctx context.Context, room *model.MatchRoom, result model.MatchResult) error {
	claimed, err := p.rooms.ClaimFinish(ctx, room.MatchID)
	if err != nil {
		return err
	}
	if !claimed {
		logger.Info(ctx, "result already delivered for match, dropping",
			zap.String("matchId", room.MatchID), zap.String("winner", result.Winner))
		return nil
	}

	if err := p.rooms.SetStatus(ctx, room.MatchID, model.StatusFinished); err != nil {
		logger.Warn(ctx, "status update to FINISHED failed",
			zap.String("matchId", room.MatchID), zap.Error(err))
	}

	if err := p.notifier.PublishToMatch(ctx, room.MatchID, model.NewResultEvent(result)); err != nil {
		logger.Warn(ctx, "result event delivery failed",
			zap.String("matchId", room.MatchID), zap.Error(err))
	}

	// Archiving and persistence are best effort: both players already have
	// the verdict, and the room must come down regardless.
	archiveKey := p.archiveLogs(ctx, room.MatchID, result)
	p.persist(ctx, room, result, archiveKey)

	p.teardown(ctx, room)
	logger.Info(ctx, "match finished",
		zap.String("matchId", room.MatchID),
		zap.String("winner", result.Winner),
		zap.Int("turns", result.TotalTurns))
	return nil
}

// PublishForfeit synthesizes and delivers a walkover verdict against the
// given player. It rides the same single-delivery claim as PublishResult, so
// a forfeiture racing a finishing sandbox run resolves to exactly one
// outcome.
func (p *ResultPublisher) PublishForfeit(ctx context.Context, room *model.MatchRoom, loser model.Role) error {
	return p.PublishResult(ctx, room, model.Forfeit(loser))
}

// PublishError notifies both players that the match could not be judged and
// aborts the room. Error outcomes are never persisted; there is no verdict
// to record.
func (p *ResultPublisher) PublishError(ctx context.Context, room *model.MatchRoom, cause error) error {
	claimed, err := p.rooms.ClaimFinish(ctx, room.MatchID)
	if err != nil {
		return err
	}
	if !claimed {
		logger.Info(ctx, "match already concluded, dropping error report",
			zap.String("matchId", room.MatchID), zap.Error(cause))
		return nil
	}

	if err := p.rooms.SetStatus(ctx, room.MatchID, model.StatusAborted); err != nil {
		logger.Warn(ctx, "status update to ABORTED failed",
			zap.String("matchId", room.MatchID), zap.Error(err))
	}

	if err := p.notifier.PublishToMatch(ctx, room.MatchID, model.NewErrorEvent("match execution failed")); err != nil {
		logger.Warn(ctx, "error event delivery failed",
			zap.String("matchId", room.MatchID), zap.Error(err))
	}

	p.teardown(ctx, room)
	logger.Warn(ctx, "match aborted",
		zap.String("matchId", room.MatchID), zap.Error(cause))
	return nil
}

func (p *ResultPublisher) archiveLogs(ctx context.Context, matchID string, result model.MatchResult) string {
	if p.archiver == nil || len(result.Logs) == 0 {
		return ""
	}
	key, err := p.archiver.Archive(ctx, matchID, result.Logs)
	if err != nil {
		logger.Warn(ctx, "replay log archive failed",
			zap.String("matchId", matchID), zap.Error(err))
		return ""
	}
	return key
}

func (p *ResultPublisher) persist(ctx context.Context, room *model.MatchRoom, result model.MatchResult, archiveKey string) {
	if p.events == nil {
		return
	}
	finished := model.FinishedMatch{
		MatchID:          room.MatchID,
		GameType:         room.GameType,
		P1UserID:         room.P1.UserID,
		P2UserID:         room.P2.UserID,
		P1Code:           room.P1.Code,
		P1Lang:           room.P1.Language,
		P2Code:           room.P2.Code,
		P2Lang:           room.P2.Language,
		Result:           result,
		LogArchiveKey:    archiveKey,
		FinishedAtMillis: time.Now().UnixMilli(),
	}
	if err := p.events.PublishFinishedMatch(ctx, finished); err != nil {
		logger.Error(ctx, "finished match persistence event failed",
			zap.String("matchId", room.MatchID), zap.Error(err))
	}
}

// teardown removes the room and the players' active-match bindings. Room
// deletion doubles as the completion signal for any disconnect handling that
// looks the match up afterwards.
func (p *ResultPublisher) teardown(ctx context.Context, room *model.MatchRoom) {
	if err := p.rooms.Delete(ctx, room.MatchID); err != nil {
		logger.Warn(ctx, "room cleanup failed",
			zap.String("matchId", room.MatchID), zap.Error(err))
	}
	if err := p.sessions.UnbindUsers(ctx, room.P1.UserID, room.P2.UserID); err != nil {
		logger.Warn(ctx, "user match binding cleanup failed",
			zap.String("matchId", room.MatchID), zap.Error(err))
	}
}
