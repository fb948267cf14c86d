package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codebattle/internal/common/cache"
	"codebattle/internal/match/model"
	"codebattle/internal/match/repository"
	appErr "codebattle/pkg/errors"
	"codebattle/pkg/utils/logger"
)

const (
	defaultTickPeriod = time.Second
	mapAttempts       = 3
)

// MapGenerator produces a fresh, validated match map. Implemented by the
// referee runner's init phase.
type MapGenerator interface {
	GenerateMap(ctx context.Context, gameType string) (model.MapData, error)
}

// TickOutcome is the explicit result of one Matcher tick. Compensating
// actions hang off each failure branch instead of nested error handling,
// which keeps the rollback logic testable on its own.
type TickOutcome int

const (
	// TickNoOp: fewer than two waiters, nothing popped.
	TickNoOp TickOutcome = iota
	// TickMatched: a room was created and both players notified.
	TickMatched
	// TickRequeued: popped entries were returned at their original scores.
	TickRequeued
	// TickFailed: rollback itself hit an error; details in the returned error.
	TickFailed
)

// MatcherConfig holds pairing scheduler settings.
type MatcherConfig struct {
	GameTypes  []string      `yaml:"gameTypes"`
	TickPeriod time.Duration `yaml:"tickPeriod"`
}

// Matcher pairs waiters in strict arrival order, one independent periodic
// loop per game type. Ticks for the same game type never overlap; queue
// atomicity keeps multiple Matcher instances across replicas correct.
type Matcher struct {
	queues   *repository.QueueRepository
	rooms    *repository.RoomRepository
	sessions *repository.SessionRepository
	mapGen   MapGenerator
	notifier Notifier

	gameTypes []string
	period    time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMatcher creates a pairing scheduler.
func NewMatcher(
	queues *repository.QueueRepository,
	rooms *repository.RoomRepository,
	sessions *repository.SessionRepository,
	mapGen MapGenerator,
	notifier Notifier,
	cfg MatcherConfig,
) *Matcher {
	period := cfg.TickPeriod
	if period <= 0 {
		period = defaultTickPeriod
	}
	return &Matcher{
		queues:    queues,
		rooms:     rooms,
		sessions:  sessions,
		mapGen:    mapGen,
		notifier:  notifier,
		gameTypes: cfg.GameTypes,
		period:    period,
	}
}

// GameTypes returns the configured game types.
func (m *Matcher) GameTypes() []string {
	return m.gameTypes
}

// Start launches one tick loop per game type. Each loop runs its tick to
// completion before sleeping again, so ticks of one game type are serial
// while different game types proceed concurrently.
func (m *Matcher) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	for _, gameType := range m.gameTypes {
		m.wg.Add(1)
		go m.loop(ctx, gameType)
	}
}

// Stop cancels the tick loops and waits for in-flight ticks to finish.
func (m *Matcher) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Matcher) loop(ctx context.Context, gameType string) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Tick(ctx, gameType); err != nil {
				logger.Error(ctx, "matcher tick failed",
					zap.String("gameType", gameType), zap.Error(err))
			}
		}
	}
}

// Tick attempts one pairing for the game type.
func (m *Matcher) Tick(ctx context.Context, gameType string) (TickOutcome, error) {
	size, err := m.queues.Size(ctx, gameType)
	if err != nil {
		return TickFailed, err
	}
	if size < 2 {
		return TickNoOp, nil
	}

	p1, ok1, err := m.queues.PopOldest(ctx, gameType)
	if err != nil {
		return TickFailed, err
	}
	if !ok1 {
		// A concurrent consumer drained the queue after the size check.
		return TickNoOp, nil
	}
	p2, ok2, err := m.queues.PopOldest(ctx, gameType)
	if err != nil || !ok2 {
		// Lost the race for the second entry: the first ticket must not be
		// dropped.
		if reqErr := m.queues.Requeue(ctx, gameType, p1.Member, p1.Score); reqErr != nil {
			return TickFailed, reqErr
		}
		if err != nil {
			return TickFailed, err
		}
		logger.Warn(ctx, "queue drained mid-tick, first entry requeued",
			zap.String("gameType", gameType), zap.String("userId", p1.Member))
		return TickRequeued, nil
	}

	mapData, err := m.generateValidMap(ctx, gameType)
	if err != nil {
		logger.Error(ctx, "map generation exhausted, pairing aborted",
			zap.String("gameType", gameType), zap.Error(err))
		return m.requeueBoth(ctx, gameType, p1, p2)
	}
	mapJSON, err := mapData.JSON()
	if err != nil {
		return m.requeueBoth(ctx, gameType, p1, p2)
	}

	matchID := uuid.NewString()
	if err := m.rooms.Create(ctx, matchID, gameType, p1.Member, p2.Member, mapJSON); err != nil {
		return m.requeueBoth(ctx, gameType, p1, p2)
	}
	if err := m.openRoom(ctx, matchID, gameType, p1.Member, p2.Member, mapJSON); err != nil {
		// Compensating rollback after the room already exists: return both
		// tickets and retract the room so nothing is orphaned.
		logger.Error(ctx, "match open failed after room creation, rolling back",
			zap.String("matchId", matchID), zap.Error(err))
		_ = m.rooms.Delete(ctx, matchID)
		_ = m.sessions.UnbindUsers(ctx, p1.Member, p2.Member)
		return m.requeueBoth(ctx, gameType, p1, p2)
	}

	logger.Info(ctx, "match found",
		zap.String("gameType", gameType), zap.String("matchId", matchID),
		zap.String("p1", p1.Member), zap.String("p2", p2.Member))
	return TickMatched, nil
}

// openRoom registers the user mappings and sends one personalized
// MATCH_FOUND to each player.
func (m *Matcher) openRoom(ctx context.Context, matchID, gameType, p1ID, p2ID, mapJSON string) error {
	if err := m.sessions.BindUserMatch(ctx, p1ID, matchID); err != nil {
		return err
	}
	if err := m.sessions.BindUserMatch(ctx, p2ID, matchID); err != nil {
		return err
	}
	eventP1 := model.NewMatchFoundEvent(matchID, p1ID, p2ID, mapJSON, model.RoleP1)
	if err := m.notifier.PublishToUser(ctx, p1ID, eventP1); err != nil {
		return appErr.Wrap(err, appErr.PublishFailed)
	}
	eventP2 := model.NewMatchFoundEvent(matchID, p1ID, p2ID, mapJSON, model.RoleP2)
	if err := m.notifier.PublishToUser(ctx, p2ID, eventP2); err != nil {
		return appErr.Wrap(err, appErr.PublishFailed)
	}
	return nil
}

// generateValidMap retries the init phase within a bounded budget. A map that
// fails validation counts as a failed attempt.
func (m *Matcher) generateValidMap(ctx context.Context, gameType string) (model.MapData, error) {
	var lastErr error
	for attempt := 1; attempt <= mapAttempts; attempt++ {
		mapData, err := m.mapGen.GenerateMap(ctx, gameType)
		if err == nil {
			return mapData, nil
		}
		lastErr = err
		logger.Warn(ctx, "map generation attempt failed",
			zap.String("gameType", gameType), zap.Int("attempt", attempt), zap.Error(err))
	}
	return model.MapData{}, appErr.Wrapf(lastErr, appErr.MapGenerationFailure,
		"map generation failed after %d attempts", mapAttempts)
}

func (m *Matcher) requeueBoth(ctx context.Context, gameType string, p1, p2 cache.ZMember) (TickOutcome, error) {
	err1 := m.queues.Requeue(ctx, gameType, p1.Member, p1.Score)
	err2 := m.queues.Requeue(ctx, gameType, p2.Member, p2.Score)
	if err1 != nil {
		return TickFailed, err1
	}
	if err2 != nil {
		return TickFailed, err2
	}
	return TickRequeued, nil
}
