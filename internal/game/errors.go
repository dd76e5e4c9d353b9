package game

import "errors"

// State and structural errors surfaced to the dispatcher and the REST
// layer. The dispatcher turns state errors into per-recipient
// GAME_EVENT frames; the REST layer maps structural ones to HTTP codes.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrRoomFull       = errors.New("room is full")
	ErrGameStarted    = errors.New("game already started")
	ErrNotHost        = errors.New("only the host may do that")
	ErrWrongStage     = errors.New("action not valid in current stage")
	ErrNotEligible    = errors.New("player not eligible for this action")
	ErrIllegalTarget  = errors.New("illegal target")
	ErrSeatTaken      = errors.New("seat already taken")
	ErrBadCount       = errors.New("player count does not match template")
)
