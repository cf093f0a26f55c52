package game

import "errors"

// The error taxonomy for session and betting operations. All of these are
// recoverable: they abort the one action for the one actor and leave the
// session unchanged. The transport layer maps them to stable wire codes.
var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrSeatNotFound          = errors.New("seat not found")
	ErrSessionFull           = errors.New("session is full")
	ErrSessionAlreadyStarted = errors.New("session already started")
	ErrNotEnoughPlayers      = errors.New("not enough players")
	ErrNotYourTurn           = errors.New("not your turn")
	ErrMustCallOrRaise       = errors.New("cannot check, must call or raise")
	ErrInvalidRaiseAmount    = errors.New("raise amount must be positive")
	ErrBelowMinimumRaise     = errors.New("raise must be at least double the current bet")
	ErrInsufficientChips     = errors.New("insufficient chips")
	ErrInvalidActionKind     = errors.New("invalid action kind")
)
