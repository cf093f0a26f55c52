package deck

import (
	"errors"
	rand "math/rand/v2"
)

// Size is the number of cards in a full deck.
const Size = 52

// ErrInsufficientCards is returned when a deal asks for more cards than
// the deck holds. Given correct seat-count arithmetic this is unreachable
// mid-hand, so callers treat it as an internal fault.
var ErrInsufficientCards = errors.New("insufficient cards in deck")

// Deck is an ordered sequence of cards, consumed front to back.
type Deck []Card

// New returns a full 52-card deck in canonical order.
func New() Deck {
	d := make(Deck, 0, Size)
	for suit := Hearts; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d = append(d, NewCard(rank, suit))
		}
	}
	return d
}

// NewShuffled returns a full deck permuted by a Fisher-Yates shuffle
// driven by the supplied RNG.
func NewShuffled(rng *rand.Rand) Deck {
	d := New()
	for i := len(d) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		d[i], d[j] = d[j], d[i]
	}
	return d
}

// Deal returns the first n cards and the remaining deck, preserving
// relative order. The receiver is not modified; the caller reassigns.
func (d Deck) Deal(n int) ([]Card, Deck, error) {
	if n > len(d) {
		return nil, d, ErrInsufficientCards
	}
	dealt := make([]Card, n)
	copy(dealt, d[:n])
	return dealt, d[n:], nil
}
