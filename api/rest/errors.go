package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studymon/server/game/battle"
)

// statusByCode is the fixed HTTP status of each domain error code.
var statusByCode = map[battle.Code]int{
	battle.CodeNotFound:         http.StatusNotFound,
	battle.CodeNoEligibleMoves:  http.StatusUnprocessableEntity,
	battle.CodeAlreadyInBattle:  http.StatusConflict,
	battle.CodeNotAParticipant:  http.StatusBadRequest,
	battle.CodeBattleNotOngoing: http.StatusConflict,
	battle.CodeMoveNotAssigned:  http.StatusBadRequest,
	battle.CodeMovePPExhausted:  http.StatusUnprocessableEntity,
	battle.CodeInvalidArgument:  http.StatusBadRequest,
	battle.CodeUnavailable:      http.StatusServiceUnavailable,
}

// HTTPStatus returns the status a domain error is reported with.
func HTTPStatus(err error) int {
	if s, ok := statusByCode[battle.CodeOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError answers with {"error": code, "message": message}. Errors
// without a known code become a generic 500 and are attached to the gin
// context for the request logger.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": string(battle.CodeInternal), "message": "internal"})
		return
	}
	msg := err.Error()
	var be *battle.Error
	if errors.As(err, &be) {
		msg = be.Message
	}
	c.JSON(status, gin.H{"error": string(battle.CodeOf(err)), "message": msg})
}

// badRequest reports a malformed request body or parameter.
func badRequest(c *gin.Context, msg string) {
	writeError(c, battle.NewError(battle.CodeInvalidArgument, msg))
}
