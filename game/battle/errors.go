package battle

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error kind. Each code maps to a fixed response
// at the API boundary.
type Code string

const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeNoEligibleMoves  Code = "NO_ELIGIBLE_MOVES"
	CodeAlreadyInBattle  Code = "ALREADY_IN_BATTLE"
	CodeNotAParticipant  Code = "NOT_A_PARTICIPANT"
	CodeBattleNotOngoing Code = "BATTLE_NOT_ONGOING"
	CodeMoveNotAssigned  Code = "MOVE_NOT_ASSIGNED"
	CodeMovePPExhausted  Code = "MOVE_PP_EXHAUSTED"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeInternal         Code = "INTERNAL"
)

// Error is the domain error returned by the battle engine and the services
// built on top of it.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a domain error with a code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a domain error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound         = NewError(CodeNotFound, "not found")
	ErrNoEligibleMoves  = NewError(CodeNoEligibleMoves, "no damage-eligible moves")
	ErrAlreadyInBattle  = NewError(CodeAlreadyInBattle, "creature is already in an ongoing battle")
	ErrNotAParticipant  = NewError(CodeNotAParticipant, "creature is not a participant of this battle")
	ErrBattleNotOngoing = NewError(CodeBattleNotOngoing, "battle is not ongoing")
	ErrMoveNotAssigned  = NewError(CodeMoveNotAssigned, "move is not assigned to this creature")
	ErrMovePPExhausted  = NewError(CodeMovePPExhausted, "move has no PP left")
	ErrInvalidArgument  = NewError(CodeInvalidArgument, "invalid argument")
	ErrUnavailable      = NewError(CodeUnavailable, "service unavailable")
)

// CodeOf extracts the domain code from err, or CodeInternal when err carries
// no domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
