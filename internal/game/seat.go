package game

import "github.com/cardroom/holdem-rooms/internal/deck"

// Seat represents one player's place at a session. Identity is a stable
// logical id that survives reconnects; the transport layer maps transient
// connection ids onto it.
type Seat struct {
	Identity        string
	DisplayName     string
	Chips           int
	HoleCards       []deck.Card
	Bet             int // chips committed this betting round
	Folded          bool
	Dealer          bool
	Turn            bool
	Connected       bool
	Position        int
	Winner          bool
	HandDescription string
}

// eligible reports whether the seat can be given the turn: in the hand,
// with chips behind, and connected.
func (s *Seat) eligible() bool {
	return !s.Folded && s.Chips > 0 && s.Connected
}

// resetForHand clears all per-hand state, keeping chips and connection.
func (s *Seat) resetForHand() {
	s.HoleCards = nil
	s.Bet = 0
	s.Folded = false
	s.Dealer = false
	s.Turn = false
	s.Winner = false
	s.HandDescription = ""
}
