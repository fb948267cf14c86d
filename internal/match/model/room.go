package model

// RoomStatus is the lifecycle state of a match room. Transitions are forward
// only: WAITING_SUBMISSIONS -> RUNNING -> FINISHED | ABORTED, then deletion.
// A deleted room is never reopened.
type RoomStatus string

const (
	StatusWaitingSubmissions RoomStatus = "WAITING_SUBMISSIONS"
	StatusRunning            RoomStatus = "RUNNING"
	StatusFinished           RoomStatus = "FINISHED"
	StatusAborted            RoomStatus = "ABORTED"
)

// Role identifies a player slot inside a room.
type Role string

const (
	RoleP1 Role = "p1"
	RoleP2 Role = "p2"
)

// Other returns the opposing role.
func (r Role) Other() Role {
	if r == RoleP1 {
		return RoleP2
	}
	return RoleP1
}

// Valid reports whether the role is one of the two player slots.
func (r Role) Valid() bool {
	return r == RoleP1 || r == RoleP2
}

// PlayerSlot holds one player's registration and submission inside a room.
type PlayerSlot struct {
	UserID   string
	Code     string
	Language string

	// Submitted tracks submission presence in the store, not code content.
	// An intentionally empty source file still counts as a submission.
	Submitted bool
}

// MatchRoom is the live coordination record for one in-progress match.
// Exactly two distinct player slots; at most one live room per match id.
type MatchRoom struct {
	MatchID  string
	GameType string
	MapData  string // opaque JSON blob produced by the judge init phase
	Status   RoomStatus
	P1       PlayerSlot
	P2       PlayerSlot
}

// RoleOf resolves the role held by userID, or ok=false for an outsider.
func (r *MatchRoom) RoleOf(userID string) (Role, bool) {
	switch userID {
	case r.P1.UserID:
		return RoleP1, true
	case r.P2.UserID:
		return RoleP2, true
	default:
		return "", false
	}
}

// Slot returns the slot for the given role.
func (r *MatchRoom) Slot(role Role) PlayerSlot {
	if role == RoleP1 {
		return r.P1
	}
	return r.P2
}

// BothSubmitted reports whether both players have stored code.
func (r *MatchRoom) BothSubmitted() bool {
	return r.P1.Submitted && r.P2.Submitted
}

// WaitingEntry is one ticket in the matchmaking queue for a game type.
// Ordering key is EnqueuedAtMillis ascending (oldest first).
type WaitingEntry struct {
	GameType         string
	UserID           string
	EnqueuedAtMillis float64
}
