package controller

import (
	"context"

	"codebattle/internal/match/repository"
	"codebattle/internal/match/sandbox"
	"codebattle/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// CodeCompiler runs the judge's build-check phase. Implemented by the
// referee runner.
type CodeCompiler interface {
	Compile(ctx context.Context, req sandbox.CompileRequest) (sandbox.CompileResult, error)
}

// MatchController serves queue and room state over HTTP plus the standalone
// build check. The realtime flow lives on the websocket; these endpoints
// back the editor's compile button, ops tooling and polling fallbacks.
type MatchController struct {
	queues   *repository.QueueRepository
	rooms    *repository.RoomRepository
	compiler CodeCompiler
}

// NewMatchController creates a new controller.
func NewMatchController(queues *repository.QueueRepository, rooms *repository.RoomRepository, compiler CodeCompiler) *MatchController {
	return &MatchController{queues: queues, rooms: rooms, compiler: compiler}
}

// GetQueueSize returns the number of players waiting for one game type.
func (h *MatchController) GetQueueSize(c *gin.Context) {
	gameType := c.Param("gameType")
	if gameType == "" {
		response.BadRequest(c, "Invalid game type")
		return
	}
	size, err := h.queues.Size(c.Request.Context(), gameType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"gameType": gameType, "waiting": size})
}

// GetMatch returns the public view of an active room. Submitted code is
// never exposed, only whether each side has submitted.
func (h *MatchController) GetMatch(c *gin.Context) {
	matchID := c.Param("id")
	if matchID == "" {
		response.BadRequest(c, "Invalid match id")
		return
	}
	room, ok, err := h.rooms.Get(c.Request.Context(), matchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.NotFound(c, "match not found")
		return
	}
	response.Success(c, gin.H{
		"matchId":     room.MatchID,
		"gameType":    room.GameType,
		"status":      room.Status,
		"p1Id":        room.P1.UserID,
		"p2Id":        room.P2.UserID,
		"p1Submitted": room.P1.Submitted,
		"p2Submitted": room.P2.Submitted,
	})
}

type compileRequest struct {
	MatchID  string `json:"matchId" binding:"required"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

// CompileCode runs a build check against the judge before the player commits
// a submission. The match resolves the game variant; nothing about the room
// changes.
func (h *MatchController) CompileCode(c *gin.Context) {
	var req compileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if req.Language == "" {
		req.Language = "python"
	}

	room, ok, err := h.rooms.Get(c.Request.Context(), req.MatchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.NotFound(c, "match not found")
		return
	}

	result, err := h.compiler.Compile(c.Request.Context(), sandbox.CompileRequest{
		GameType: room.GameType,
		Code:     req.Code,
		Language: req.Language,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
