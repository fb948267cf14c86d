package model

import "encoding/json"

// Push payload discriminators. Every payload sent on a user or match topic
// carries one of these in its "type" field.
const (
	PayloadMatchFound   = "MATCH_FOUND"
	PayloadNotification = "NOTIFICATION"
	PayloadResult       = "RESULT"
	PayloadError        = "ERROR"
)

// MatchFoundEvent is pushed to each player's personal topic when a pairing
// succeeds. MyRole is personalized per recipient; everything else is shared.
type MatchFoundEvent struct {
	Type    string          `json:"type"`
	MatchID string          `json:"matchId"`
	P1ID    string          `json:"p1Id"`
	P2ID    string          `json:"p2Id"`
	MapData json.RawMessage `json:"mapData"`
	MyRole  Role            `json:"myRole"`
}

// NewMatchFoundEvent builds the personalized pairing notification.
func NewMatchFoundEvent(matchID, p1ID, p2ID, mapJSON string, myRole Role) MatchFoundEvent {
	return MatchFoundEvent{
		Type:    PayloadMatchFound,
		MatchID: matchID,
		P1ID:    p1ID,
		P2ID:    p2ID,
		MapData: json.RawMessage(mapJSON),
		MyRole:  myRole,
	}
}

// SubmittedNotice is broadcast on the match topic when one side submits.
// It carries the role only, never the code.
type SubmittedNotice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Role    Role   `json:"role"`
}

// NewSubmittedNotice builds the submission broadcast for a role.
func NewSubmittedNotice(role Role) SubmittedNotice {
	return SubmittedNotice{Type: PayloadNotification, Message: "PLAYER_SUBMITTED", Role: role}
}

// ResultEvent wraps a finished MatchResult for the match topic.
type ResultEvent struct {
	Type string `json:"type"`
	MatchResult
}

// NewResultEvent tags a result for delivery.
func NewResultEvent(res MatchResult) ResultEvent {
	return ResultEvent{Type: PayloadResult, MatchResult: res}
}

// ErrorEvent reports a failed execution to both players of a match.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewErrorEvent tags an execution failure for delivery.
func NewErrorEvent(msg string) ErrorEvent {
	return ErrorEvent{Type: PayloadError, Error: msg}
}
