package server

import (
	"errors"

	"github.com/cardroom/holdem-rooms/internal/deck"
	"github.com/cardroom/holdem-rooms/internal/evaluator"
	"github.com/cardroom/holdem-rooms/internal/game"
)

// errorCode maps engine errors to the stable codes carried on the wire.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, game.ErrSeatNotFound):
		return "seat_not_found"
	case errors.Is(err, game.ErrSessionFull):
		return "session_full"
	case errors.Is(err, game.ErrSessionAlreadyStarted):
		return "session_already_started"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, game.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, game.ErrMustCallOrRaise):
		return "must_call_or_raise"
	case errors.Is(err, game.ErrInvalidRaiseAmount):
		return "invalid_raise_amount"
	case errors.Is(err, game.ErrBelowMinimumRaise):
		return "below_minimum_raise"
	case errors.Is(err, game.ErrInsufficientChips):
		return "insufficient_chips"
	case errors.Is(err, game.ErrInvalidActionKind):
		return "invalid_action_kind"
	case errors.Is(err, deck.ErrInsufficientCards):
		return "insufficient_cards"
	case errors.Is(err, evaluator.ErrInvalidHandSize):
		return "invalid_hand_size"
	default:
		return "internal_error"
	}
}
