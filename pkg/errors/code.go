package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 20000-20999: Matchmaking queue errors
// 21000-21999: Match room errors
// 22000-22999: Sandbox & judge errors
// 23000-23999: Session, realtime & persistence errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	TooManyRequests     ErrorCode = 10005
	ServiceUnavailable  ErrorCode = 10006
	Timeout             ErrorCode = 10007

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// ========== Matchmaking Queue Errors (20000-20999) ==========

	QueueRace            ErrorCode = 20000
	QueueEnqueueFailed   ErrorCode = 20001
	QueueRequeueFailed   ErrorCode = 20002
	MapGenerationFailure ErrorCode = 20100
	InvalidMap           ErrorCode = 20101

	// ========== Match Room Errors (21000-21999) ==========

	RoomNotFound       ErrorCode = 21000
	RoomCreateFailed   ErrorCode = 21001
	RoomLocked         ErrorCode = 21002
	UnknownParticipant ErrorCode = 21003

	// ========== Sandbox & Judge Errors (22000-22999) ==========

	SandboxError        ErrorCode = 22000
	SandboxTimeout      ErrorCode = 22001
	SandboxOutputBroken ErrorCode = 22002
	UnsupportedLanguage ErrorCode = 22100
	HarnessLoadFailed   ErrorCode = 22101
	WorkspaceFailed     ErrorCode = 22102

	// ========== Session, Realtime & Persistence Errors (23000-23999) ==========

	TokenInvalid       ErrorCode = 23001
	PublishFailed      ErrorCode = 23100
	PersistenceFailure ErrorCode = 23200
)

// errorMessages maps error codes to their default messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized",
	TooManyRequests:     "Too many requests",
	ServiceUnavailable:  "Service unavailable",
	Timeout:             "Operation timed out",

	CacheError: "Cache operation failed",

	QueueRace:            "Queue entries drained by a concurrent consumer",
	QueueEnqueueFailed:   "Failed to join the matchmaking queue",
	QueueRequeueFailed:   "Failed to return entry to the matchmaking queue",
	MapGenerationFailure: "Map generation failed",
	InvalidMap:           "Generated map is invalid",

	RoomNotFound:       "Match room not found",
	RoomCreateFailed:   "Failed to create match room",
	RoomLocked:         "Match room is locked pending result",
	UnknownParticipant: "User is not a participant of this match",

	SandboxError:        "Judge execution failed",
	SandboxTimeout:      "Judge execution timed out",
	SandboxOutputBroken: "Judge output could not be parsed",
	UnsupportedLanguage: "Unsupported language",
	HarnessLoadFailed:   "Failed to load language harness",
	WorkspaceFailed:     "Failed to prepare match workspace",

	TokenInvalid:       "Invalid token",
	PublishFailed:      "Failed to publish realtime event",
	PersistenceFailure: "Failed to hand result to persistence",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == TokenInvalid:
		return 401
	case c == UnknownParticipant:
		return 403
	case c == NotFound, c == RoomNotFound:
		return 404
	case c == TooManyRequests:
		return 429
	case c == QueueRace, c == RoomLocked:
		return 409
	case c == MapGenerationFailure, c == InvalidMap, c == SandboxError, c == SandboxOutputBroken:
		return 502
	case c == Timeout, c == SandboxTimeout:
		return 504
	case c == ServiceUnavailable:
		return 503
	case c == InvalidParams, c == UnsupportedLanguage:
		return 400
	default:
		return 500
	}
}
