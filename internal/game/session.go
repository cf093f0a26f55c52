// Package game implements the authoritative state machine for one poker
// session: turn order, betting legality, phase transitions and settlement.
//
// A Session is not safe for concurrent use. All inbound events for a
// session must be applied one at a time and in arrival order; the registry
// in internal/server serialises access with a per-session lock.
package game

import (
	"fmt"
	rand "math/rand/v2"

	"github.com/charmbracelet/log"

	"github.com/cardroom/holdem-rooms/internal/deck"
	"github.com/cardroom/holdem-rooms/internal/evaluator"
)

// Config carries per-session settings.
type Config struct {
	SmallBlind    int
	BigBlind      int
	MaxSeats      int
	StartingStack int
}

// Session is the authoritative state for one table.
type Session struct {
	ID            string
	Seats         []*Seat // insertion order == turn order
	Community     []deck.Card
	Deck          deck.Deck
	Pot           int
	CurrentBet    int // table bet this round
	Phase         Phase
	DealerIdx     int
	ActiveIdx     int
	SmallBlind    int
	BigBlind      int
	MaxSeats      int
	StartingStack int

	// LastAggressor holds the identity the betting round closes on: the
	// big blind preflop, the first to act postflop, and whoever raised
	// last thereafter.
	LastAggressor string

	rng    *rand.Rand
	logger *log.Logger
}

// NewSession creates an empty session in the Waiting phase.
func NewSession(id string, cfg Config, rng *rand.Rand, logger *log.Logger) *Session {
	return &Session{
		ID:            id,
		Phase:         Waiting,
		ActiveIdx:     -1,
		SmallBlind:    cfg.SmallBlind,
		BigBlind:      cfg.BigBlind,
		MaxSeats:      cfg.MaxSeats,
		StartingStack: cfg.StartingStack,
		rng:           rng,
		logger:        logger.WithPrefix("session").With("id", id),
	}
}

// AddSeat seats a new player at the next free position.
func (s *Session) AddSeat(identity, displayName string) (*Seat, error) {
	if s.Phase != Waiting {
		return nil, ErrSessionAlreadyStarted
	}
	if len(s.Seats) >= s.MaxSeats {
		return nil, ErrSessionFull
	}
	seat := &Seat{
		Identity:    identity,
		DisplayName: displayName,
		Chips:       s.StartingStack,
		Connected:   true,
		Position:    len(s.Seats),
	}
	s.Seats = append(s.Seats, seat)
	return seat, nil
}

// SeatByIdentity returns the seat with the given identity, or nil.
func (s *Session) SeatByIdentity(identity string) (*Seat, int) {
	for i, seat := range s.Seats {
		if seat.Identity == identity {
			return seat, i
		}
	}
	return nil, -1
}

// StartHand shuffles a fresh deck, deals hole cards, posts blinds and
// opens the preflop betting round. Seats with no chips sit the hand out:
// no cards, no blind, no claim on the pot.
func (s *Session) StartHand() error {
	if s.Phase != Waiting {
		return ErrSessionAlreadyStarted
	}
	funded := 0
	for _, seat := range s.Seats {
		if seat.Chips > 0 {
			funded++
		}
	}
	if len(s.Seats) < 2 || funded < 2 {
		return ErrNotEnoughPlayers
	}

	for _, seat := range s.Seats {
		seat.resetForHand()
		if seat.Chips == 0 {
			seat.Folded = true
		}
	}
	s.Community = nil
	s.Pot = 0
	s.CurrentBet = 0
	s.DealerIdx %= len(s.Seats)

	s.Phase = Dealing
	s.Deck = deck.NewShuffled(s.rng)
	for _, seat := range s.Seats {
		if seat.Folded {
			continue
		}
		cards, rest, err := s.Deck.Deal(2)
		if err != nil {
			return fmt.Errorf("dealing hole cards: %w", err)
		}
		seat.HoleCards = cards
		s.Deck = rest
	}

	s.Seats[s.DealerIdx].Dealer = true

	// Heads-up the small blind sits on the button and acts first preflop.
	var sbIdx int
	if funded == 2 && s.Seats[s.DealerIdx].Chips > 0 {
		sbIdx = s.DealerIdx
	} else {
		sbIdx = s.nextFunded(s.DealerIdx)
	}
	bbIdx := s.nextFunded(sbIdx)
	s.postBlind(s.Seats[sbIdx], s.SmallBlind)
	s.postBlind(s.Seats[bbIdx], s.BigBlind)

	s.CurrentBet = s.BigBlind
	s.LastAggressor = s.Seats[bbIdx].Identity
	s.Phase = Betting

	s.logger.Info("hand started",
		"seats", len(s.Seats), "funded", funded, "dealer", s.DealerIdx,
		"smallBlind", s.SmallBlind, "bigBlind", s.BigBlind)

	s.giveTurnAfter(bbIdx)
	return nil
}

// nextFunded returns the first seat after idx, cyclically, with chips
// behind.
func (s *Session) nextFunded(idx int) int {
	n := len(s.Seats)
	for i := 1; i <= n; i++ {
		p := (idx + i) % n
		if s.Seats[p].Chips > 0 {
			return p
		}
	}
	return idx
}

func (s *Session) postBlind(seat *Seat, amount int) {
	pay := min(amount, seat.Chips)
	seat.Chips -= pay
	seat.Bet += pay
}

// Apply validates and applies one betting action for the given identity.
// A rejected action leaves the session untouched.
func (s *Session) Apply(identity string, kind ActionKind, amount int) error {
	seat, idx := s.SeatByIdentity(identity)
	if seat == nil {
		return ErrSeatNotFound
	}
	if !seat.Turn {
		return ErrNotYourTurn
	}

	switch kind {
	case Fold:

	case Check:
		if seat.Bet != s.CurrentBet {
			return ErrMustCallOrRaise
		}

	case Call:

	case Raise:
		if amount <= 0 {
			return ErrInvalidRaiseAmount
		}
		if amount < s.CurrentBet*2 {
			return ErrBelowMinimumRaise
		}
		if amount > seat.Chips {
			return ErrInsufficientChips
		}

	default:
		return ErrInvalidActionKind
	}

	switch kind {
	case Fold:
		seat.Folded = true
		if s.countNonFolded() == 1 {
			seat.Turn = false
			s.ActiveIdx = -1
			s.collectBets()
			s.settle()
			return nil
		}

	case Call:
		// A short stack calls with whatever it has: an implicit all-in.
		pay := min(s.CurrentBet-seat.Bet, seat.Chips)
		seat.Chips -= pay
		seat.Bet += pay

	case Raise:
		delta := amount - seat.Bet
		seat.Chips -= delta
		seat.Bet = amount
		s.CurrentBet = amount
		s.LastAggressor = seat.Identity
	}

	s.advanceFrom(idx)
	return nil
}

// advanceFrom passes the turn to the next eligible seat after idx. The
// betting round closes when the scan reaches the last aggressor's position
// or finds nobody left to act.
func (s *Session) advanceFrom(idx int) {
	s.Seats[idx].Turn = false
	s.ActiveIdx = -1

	n := len(s.Seats)
	for i := 1; i <= n; i++ {
		p := (idx + i) % n
		seat := s.Seats[p]
		if seat.Identity == s.LastAggressor {
			break
		}
		if seat.eligible() {
			s.ActiveIdx = p
			seat.Turn = true
			return
		}
	}
	s.closeRound()
}

// giveTurnAfter seats the first actor of a betting round, scanning
// cyclically from the position after idx. With nobody able to act the
// round closes immediately (an all-in runout).
func (s *Session) giveTurnAfter(idx int) {
	n := len(s.Seats)
	for i := 1; i <= n; i++ {
		p := (idx + i) % n
		if s.Seats[p].eligible() {
			s.ActiveIdx = p
			s.Seats[p].Turn = true
			return
		}
	}
	s.closeRound()
}

// closeRound sweeps bets into the pot and advances the phase, dealing
// community cards as required.
func (s *Session) closeRound() {
	s.collectBets()
	s.LastAggressor = ""
	for _, seat := range s.Seats {
		seat.Turn = false
	}
	s.ActiveIdx = -1

	switch s.Phase {
	case Betting:
		s.Phase = Flop
		s.dealCommunity(3)
	case Flop:
		s.Phase = Turn
		s.dealCommunity(4)
	case Turn:
		s.Phase = River
		s.dealCommunity(5)
	case River:
		s.dealCommunity(5)
		s.settle()
		return
	default:
		return
	}

	// First to act on the new street is the next eligible seat after the
	// dealer; the round closes when action comes back around to them.
	n := len(s.Seats)
	for i := 1; i <= n; i++ {
		p := (s.DealerIdx + i) % n
		if s.Seats[p].eligible() {
			s.ActiveIdx = p
			s.Seats[p].Turn = true
			s.LastAggressor = s.Seats[p].Identity
			return
		}
	}
	// Everyone is folded or all-in: run the board out.
	s.closeRound()
}

// dealCommunity tops the board up to target cards. Re-entering a phase is
// harmless: cards already on the board are never dealt again.
func (s *Session) dealCommunity(target int) {
	if len(s.Community) >= target {
		return
	}
	cards, rest, err := s.Deck.Deal(target - len(s.Community))
	if err != nil {
		s.logger.Error("deck exhausted mid-hand", "error", err,
			"community", len(s.Community), "remaining", len(s.Deck))
		return
	}
	s.Community = append(s.Community, cards...)
	s.Deck = rest
}

func (s *Session) collectBets() {
	for _, seat := range s.Seats {
		s.Pot += seat.Bet
		seat.Bet = 0
	}
	s.CurrentBet = 0
}

// settle resolves the hand: a lone survivor wins by default, otherwise
// the best evaluated hand takes the pot. On an exact tie the whole pot
// goes to the first seat in evaluation order.
func (s *Session) settle() {
	s.Phase = Showdown
	for _, seat := range s.Seats {
		seat.Turn = false
	}
	s.ActiveIdx = -1

	var contenders []*Seat
	for _, seat := range s.Seats {
		if !seat.Folded {
			contenders = append(contenders, seat)
		}
	}
	if len(contenders) == 0 {
		s.logger.Error("settlement with no contenders")
		return
	}

	var winner *Seat
	if len(contenders) == 1 {
		winner = contenders[0]
		winner.HandDescription = "win by default"
	} else {
		bestValue := -1
		for _, seat := range contenders {
			cards := append(append([]deck.Card{}, seat.HoleCards...), s.Community...)
			result, err := evaluator.Evaluate(cards)
			if err != nil {
				s.logger.Error("hand evaluation failed", "error", err,
					"identity", seat.Identity, "cards", len(cards))
				continue
			}
			seat.HandDescription = result.Description
			if result.Value > bestValue {
				bestValue = result.Value
				winner = seat
			}
		}
		if winner == nil {
			return
		}
	}

	winner.Winner = true
	winner.Chips += s.Pot
	s.logger.Info("hand settled",
		"winner", winner.DisplayName, "pot", s.Pot, "hand", winner.HandDescription)
	s.Pot = 0
}

// FinishShowdown returns the session to Waiting after the showdown
// display delay and reports whether a new hand should begin automatically.
// A no-op outside the Showdown phase, so a stale timer cannot disturb a
// hand started by other means.
func (s *Session) FinishShowdown() bool {
	if s.Phase != Showdown {
		return false
	}
	s.Phase = Waiting
	if s.ConnectedCount() >= 2 {
		s.DealerIdx = (s.DealerIdx + 1) % len(s.Seats)
		return true
	}
	return false
}

// Disconnect marks the seat as away. If it held the turn, play moves on
// without it. Repeated delivery is a no-op.
func (s *Session) Disconnect(identity string) error {
	seat, idx := s.SeatByIdentity(identity)
	if seat == nil {
		return ErrSeatNotFound
	}
	if !seat.Connected {
		return nil
	}
	seat.Connected = false
	if seat.Turn {
		s.advanceFrom(idx)
	}
	return nil
}

// Reconnect marks the seat as present again, leaving chips, cards and
// turn state untouched. Reconnecting an already-connected seat is a no-op.
func (s *Session) Reconnect(identity string) (*Seat, error) {
	seat, _ := s.SeatByIdentity(identity)
	if seat == nil {
		return nil, ErrSeatNotFound
	}
	seat.Connected = true
	return seat, nil
}

// ConnectedCount returns the number of connected seats.
func (s *Session) ConnectedCount() int {
	n := 0
	for _, seat := range s.Seats {
		if seat.Connected {
			n++
		}
	}
	return n
}

func (s *Session) countNonFolded() int {
	n := 0
	for _, seat := range s.Seats {
		if !seat.Folded {
			n++
		}
	}
	return n
}

// TotalChips returns pot plus all stacks and outstanding bets. Constant
// across any single action; the tests assert it.
func (s *Session) TotalChips() int {
	total := s.Pot
	for _, seat := range s.Seats {
		total += seat.Chips + seat.Bet
	}
	return total
}

// CardsInPlay returns deck plus board plus hole cards, 52 within a hand.
func (s *Session) CardsInPlay() int {
	total := len(s.Deck) + len(s.Community)
	for _, seat := range s.Seats {
		total += len(seat.HoleCards)
	}
	return total
}
