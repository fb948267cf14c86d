package model

import "encoding/json"

// Result reasons. The judge reports its own reasons for normal finishes;
// these are the ones synthesized by the service.
const (
	ReasonOpponentDisconnected = "OPPONENT_DISCONNECTED"
)

// Winner values used by the judge and by forfeiture synthesis.
const (
	WinnerP1   = "p1"
	WinnerP2   = "p2"
	WinnerDraw = "draw"
)

// MatchResult is the outcome of one match. It is produced either by the judge
// process (normal path) or synthesized on disconnect (forfeiture); both shapes
// are identical for downstream consumers.
type MatchResult struct {
	Winner      string          `json:"winner"`
	Reason      string          `json:"reason,omitempty"`
	FinalScores Scores          `json:"final_scores"`
	TotalTurns  int             `json:"total_turns,omitempty"`
	Logs        json.RawMessage `json:"logs,omitempty"`
	P1Error     string          `json:"p1_error,omitempty"`
	P2Error     string          `json:"p2_error,omitempty"`

	// Error is set by the judge on a system-level failure. A result carrying
	// an error is delivered to clients but never persisted.
	Error string `json:"error,omitempty"`
}

// Scores holds the per-player final score.
type Scores struct {
	P1 int `json:"p1"`
	P2 int `json:"p2"`
}

// Forfeit synthesizes the result assigned when the player holding loserRole
// disconnects: the other role wins, zero scores, no logs.
func Forfeit(loserRole Role) MatchResult {
	return MatchResult{
		Winner:      string(loserRole.Other()),
		Reason:      ReasonOpponentDisconnected,
		FinalScores: Scores{},
	}
}

// FinishedMatch is the payload handed to the persistence collaborator once a
// match ends. Read/history access lives elsewhere; this service only emits.
type FinishedMatch struct {
	MatchID  string      `json:"match_id"`
	GameType string      `json:"game_type"`
	P1UserID string      `json:"p1_user_id"`
	P2UserID string      `json:"p2_user_id"`
	P1Code   string      `json:"p1_code,omitempty"`
	P1Lang   string      `json:"p1_lang,omitempty"`
	P2Code   string      `json:"p2_code,omitempty"`
	P2Lang   string      `json:"p2_lang,omitempty"`
	Result   MatchResult `json:"result"`

	// LogArchiveKey points at the gzipped replay log in object storage,
	// empty when archiving was skipped or failed.
	LogArchiveKey string `json:"log_archive_key,omitempty"`

	FinishedAtMillis int64 `json:"finished_at_ms"`
}
