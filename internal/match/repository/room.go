package repository

import (
	"context"
	"time"

	"codebattle/internal/common/cache"
	"codebattle/internal/match/model"
	appErr "codebattle/pkg/errors"
	"codebattle/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	roomKeyPrefix   = "match_room:"
	finishKeyPrefix = "match_finish:"
	finishMarkerTTL = time.Hour
)

// Room hash fields.
const (
	fieldGameType = "gameType"
	fieldP1       = "p1"
	fieldP2       = "p2"
	fieldMapData  = "mapData"
	fieldStatus   = "status"
	fieldP1Code   = "p1_code"
	fieldP1Lang   = "p1_lang"
	fieldP2Code   = "p2_code"
	fieldP2Lang   = "p2_lang"
	fieldStarted  = "started"
)

// RoomRepository stores match rooms as redis hashes, key match_room:{matchId}.
// Rooms with different match ids proceed fully independently; the run-trigger
// claim is atomic at the store so two replicas cannot both start a match.
type RoomRepository struct {
	cache cache.Cache
}

// NewRoomRepository creates a room repository backed by the given cache.
func NewRoomRepository(c cache.Cache) *RoomRepository {
	return &RoomRepository{cache: c}
}

func roomKey(matchID string) string {
	return roomKeyPrefix + matchID
}

// Create writes a fresh room in WAITING_SUBMISSIONS.
func (r *RoomRepository) Create(ctx context.Context, matchID, gameType, p1ID, p2ID, mapJSON string) error {
	fields := map[string]interface{}{
		fieldGameType: gameType,
		fieldP1:       p1ID,
		fieldP2:       p2ID,
		fieldMapData:  mapJSON,
		fieldStatus:   string(model.StatusWaitingSubmissions),
	}
	if err := r.cache.HMSet(ctx, roomKey(matchID), fields); err != nil {
		return appErr.Wrap(err, appErr.RoomCreateFailed)
	}
	logger.Info(ctx, "match room created",
		zap.String("matchId", matchID), zap.String("gameType", gameType))
	return nil
}

// Get loads the full room record. ok=false when no live room exists for the
// match id (already torn down, or never created).
func (r *RoomRepository) Get(ctx context.Context, matchID string) (*model.MatchRoom, bool, error) {
	fields, err := r.cache.HGetAll(ctx, roomKey(matchID))
	if err != nil {
		return nil, false, appErr.Wrap(err, appErr.CacheError)
	}
	if len(fields) == 0 || fields[fieldP1] == "" {
		return nil, false, nil
	}
	// Submission presence is field presence, so an empty source file still
	// counts as submitted.
	_, p1Submitted := fields[fieldP1Code]
	_, p2Submitted := fields[fieldP2Code]
	room := &model.MatchRoom{
		MatchID:  matchID,
		GameType: fields[fieldGameType],
		MapData:  fields[fieldMapData],
		Status:   model.RoomStatus(fields[fieldStatus]),
		P1: model.PlayerSlot{
			UserID:    fields[fieldP1],
			Code:      fields[fieldP1Code],
			Language:  fields[fieldP1Lang],
			Submitted: p1Submitted,
		},
		P2: model.PlayerSlot{
			UserID:    fields[fieldP2],
			Code:      fields[fieldP2Code],
			Language:  fields[fieldP2Lang],
			Submitted: p2Submitted,
		},
	}
	return room, true, nil
}

// StoreSubmission stores code and language under the given role, overwriting
// any previous submission for that role.
func (r *RoomRepository) StoreSubmission(ctx context.Context, matchID string, role model.Role, code, language string) error {
	fields := map[string]interface{}{
		string(role) + "_code": code,
		string(role) + "_lang": language,
	}
	if err := r.cache.HMSet(ctx, roomKey(matchID), fields); err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	return nil
}

// ClaimRun atomically claims the single run trigger for the match. Exactly one
// caller across all instances observes true; everyone else gets false.
func (r *RoomRepository) ClaimRun(ctx context.Context, matchID string) (bool, error) {
	claimed, err := r.cache.HSetNX(ctx, roomKey(matchID), fieldStarted, "1")
	if err != nil {
		return false, appErr.Wrap(err, appErr.CacheError)
	}
	return claimed, nil
}

// ClaimFinish atomically claims the single completion of the match. A normal
// result and a forfeiture (or two near-simultaneous forfeitures) can race;
// exactly one path observes true and publishes, the others drop out. The
// marker lives outside the room hash so it outlives room deletion, keeping a
// straggler from re-claiming a finished match. It expires on its own.
func (r *RoomRepository) ClaimFinish(ctx context.Context, matchID string) (bool, error) {
	claimed, err := r.cache.SetNX(ctx, finishKeyPrefix+matchID, "1", finishMarkerTTL)
	if err != nil {
		return false, appErr.Wrap(err, appErr.CacheError)
	}
	return claimed, nil
}

// SetStatus moves the room to a new lifecycle state. Transitions are forward
// only; callers enforce ordering via ClaimRun before RUNNING.
func (r *RoomRepository) SetStatus(ctx context.Context, matchID string, status model.RoomStatus) error {
	if err := r.cache.HSet(ctx, roomKey(matchID), fieldStatus, string(status)); err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	return nil
}

// Delete removes the room record. Deletion is the single completion signal:
// once gone, late submissions and duplicate disconnects become no-ops.
func (r *RoomRepository) Delete(ctx context.Context, matchID string) error {
	if err := r.cache.Del(ctx, roomKey(matchID)); err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	logger.Info(ctx, "match room deleted", zap.String("matchId", matchID))
	return nil
}
