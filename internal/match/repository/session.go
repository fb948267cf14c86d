package repository

import (
	"context"

	"codebattle/internal/common/cache"
	appErr "codebattle/pkg/errors"
)

// Session mapping keys. Lifetime is tied to the live connection/match and the
// entries are explicitly deleted at match end or disconnect.
const (
	sessionUserKeyPrefix  = "session:user:"  // session:{sid} -> userId
	sessionMatchKeyPrefix = "session:match:" // session:{sid} -> matchId
	userMatchKeyPrefix    = "user:match:"    // user:{uid} -> matchId
)

// SessionRepository maps transport sessions to users and matches.
type SessionRepository struct {
	cache cache.Cache
}

// NewSessionRepository creates a session repository backed by the given cache.
func NewSessionRepository(c cache.Cache) *SessionRepository {
	return &SessionRepository{cache: c}
}

// BindUser records the authenticated user behind a transport session.
func (r *SessionRepository) BindUser(ctx context.Context, sessionID, userID string) error {
	if err := r.cache.Set(ctx, sessionUserKeyPrefix+sessionID, userID, 0); err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	return nil
}

// BindMatch records that a session (and its user) is playing a match, so a
// dropped connection can be converted into a forfeiture.
func (r *SessionRepository) BindMatch(ctx context.Context, sessionID, userID, matchID string) error {
	if err := r.cache.Set(ctx, sessionMatchKeyPrefix+sessionID, matchID, 0); err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	if err := r.cache.Set(ctx, userMatchKeyPrefix+userID, matchID, 0); err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	return nil
}

// BindUserMatch records the user -> match mapping only, used at pairing time
// before the player has joined the match topic.
func (r *SessionRepository) BindUserMatch(ctx context.Context, userID, matchID string) error {
	if err := r.cache.Set(ctx, userMatchKeyPrefix+userID, matchID, 0); err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	return nil
}

// UserOf resolves the user behind a session; empty when unknown.
func (r *SessionRepository) UserOf(ctx context.Context, sessionID string) (string, error) {
	userID, err := r.cache.Get(ctx, sessionUserKeyPrefix+sessionID)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CacheError)
	}
	return userID, nil
}

// MatchOf resolves the match a session is playing; empty when none.
func (r *SessionRepository) MatchOf(ctx context.Context, sessionID string) (string, error) {
	matchID, err := r.cache.Get(ctx, sessionMatchKeyPrefix+sessionID)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CacheError)
	}
	return matchID, nil
}

// MatchOfUser resolves the match a user is playing; empty when none.
func (r *SessionRepository) MatchOfUser(ctx context.Context, userID string) (string, error) {
	matchID, err := r.cache.Get(ctx, userMatchKeyPrefix+userID)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CacheError)
	}
	return matchID, nil
}

// UnbindSession deletes the mappings tied to one transport session.
func (r *SessionRepository) UnbindSession(ctx context.Context, sessionID string) error {
	err := r.cache.Del(ctx, sessionUserKeyPrefix+sessionID, sessionMatchKeyPrefix+sessionID)
	if err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	return nil
}

// UnbindUsers deletes the user -> match mappings for the given users, called
// at match teardown for both players.
func (r *SessionRepository) UnbindUsers(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, userMatchKeyPrefix+id)
	}
	if err := r.cache.Del(ctx, keys...); err != nil {
		return appErr.Wrap(err, appErr.CacheError)
	}
	return nil
}
