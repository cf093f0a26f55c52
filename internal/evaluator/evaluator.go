// Package evaluator ranks poker hands. Five to seven cards go in, a
// category plus a single comparable value comes out; two results compare
// correctly with one integer comparison and equal values are exact ties.
package evaluator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cardroom/holdem-rooms/internal/deck"
)

// Category is the hand type, ordered weakest to strongest.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns a human-readable category name
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "One Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// ErrInvalidHandSize is returned when Evaluate is called with fewer than
// 5 or more than 7 cards. The engine never constructs such a hand, so
// callers log it as an internal fault.
var ErrInvalidHandSize = errors.New("hand must contain between 5 and 7 cards")

// Result is the outcome of evaluating a hand.
type Result struct {
	Category    Category
	Value       int
	Description string
}

const (
	// Each category owns a distinct one-million band of the value space.
	categoryWeight = 1_000_000

	// Tie-break ranks are packed positionally in base 15: ranks run 2..14,
	// so base 10 would let a high kicker bleed into the next position.
	kickerBase = 15
)

// Evaluate returns the best 5-card hand formable from the given cards.
// With 6 or 7 cards every 5-card subset is evaluated and the maximum by
// Value wins.
func Evaluate(cards []deck.Card) (Result, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return Result{}, ErrInvalidHandSize
	}
	if len(cards) == 5 {
		return evaluate5(cards), nil
	}

	best := Result{Value: -1}
	pick := make([]deck.Card, 5)
	n := len(cards)
	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						pick[0], pick[1], pick[2], pick[3], pick[4] =
							cards[a], cards[b], cards[c], cards[d], cards[e]
						if r := evaluate5(pick); r.Value > best.Value {
							best = r
						}
					}
				}
			}
		}
	}
	return best, nil
}

// Compare returns 1 if a beats b, -1 if b beats a, 0 for an exact tie.
func Compare(a, b Result) int {
	switch {
	case a.Value > b.Value:
		return 1
	case a.Value < b.Value:
		return -1
	default:
		return 0
	}
}

func evaluate5(cards []deck.Card) Result {
	vals := make([]int, 5)
	flush := true
	for i, c := range cards {
		vals[i] = c.Value()
		if c.Suit != cards[0].Suit {
			flush = false
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(vals)))

	straightHigh := straightHighCard(vals)

	counts := make(map[int]int, 5)
	for _, v := range vals {
		counts[v]++
	}
	// Group ranks by multiplicity, each group sorted high to low.
	var quads, trips, pairs, singles []int
	for v, n := range counts {
		switch n {
		case 4:
			quads = append(quads, v)
		case 3:
			trips = append(trips, v)
		case 2:
			pairs = append(pairs, v)
		default:
			singles = append(singles, v)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(pairs)))
	sort.Sort(sort.Reverse(sort.IntSlice(singles)))

	switch {
	case flush && straightHigh == int(deck.Ace) && vals[4] == int(deck.Ten):
		return result(RoyalFlush, nil, "Royal Flush")

	case flush && straightHigh > 0:
		return result(StraightFlush, []int{straightHigh},
			fmt.Sprintf("Straight Flush, %s high", rankWord(straightHigh)))

	case len(quads) == 1:
		return result(FourOfAKind, []int{quads[0], singles[0]},
			fmt.Sprintf("Four of a Kind, %s", rankPlural(quads[0])))

	case len(trips) == 1 && len(pairs) == 1:
		return result(FullHouse, []int{trips[0], pairs[0]},
			fmt.Sprintf("Full House, %s over %s", rankPlural(trips[0]), rankPlural(pairs[0])))

	case flush:
		return result(Flush, vals,
			fmt.Sprintf("Flush, %s high", rankWord(vals[0])))

	case straightHigh > 0:
		return result(Straight, []int{straightHigh},
			fmt.Sprintf("Straight, %s high", rankWord(straightHigh)))

	case len(trips) == 1:
		return result(ThreeOfAKind, append([]int{trips[0]}, singles...),
			fmt.Sprintf("Three of a Kind, %s", rankPlural(trips[0])))

	case len(pairs) == 2:
		return result(TwoPair, []int{pairs[0], pairs[1], singles[0]},
			fmt.Sprintf("Two Pair, %s and %s", rankPlural(pairs[0]), rankPlural(pairs[1])))

	case len(pairs) == 1:
		return result(OnePair, append([]int{pairs[0]}, singles...),
			fmt.Sprintf("Pair of %s", rankPlural(pairs[0])))

	default:
		return result(HighCard, vals,
			fmt.Sprintf("High Card, %s", rankWord(vals[0])))
	}
}

// result packs tie-break ranks into the category's value band, most
// significant rank first.
func result(cat Category, ranks []int, desc string) Result {
	v := int(cat) * categoryWeight
	weight := kickerBase * kickerBase * kickerBase * kickerBase
	for _, r := range ranks {
		v += r * weight
		weight /= kickerBase
	}
	return Result{Category: cat, Value: v, Description: desc}
}

// straightHighCard returns the high card of a straight formed by the
// five values (sorted descending), or 0 if they do not form one. The
// wheel A-2-3-4-5 counts as a 5-high straight, below every other.
func straightHighCard(vals []int) int {
	if vals[0] == int(deck.Ace) && vals[1] == int(deck.Five) &&
		vals[2] == int(deck.Four) && vals[3] == int(deck.Three) && vals[4] == int(deck.Two) {
		return int(deck.Five)
	}
	for i := 1; i < 5; i++ {
		if vals[i] != vals[i-1]-1 {
			return 0
		}
	}
	return vals[0]
}

func rankWord(v int) string {
	words := [...]string{"Two", "Three", "Four", "Five", "Six", "Seven",
		"Eight", "Nine", "Ten", "Jack", "Queen", "King", "Ace"}
	if v < 2 || v > 14 {
		return "?"
	}
	return words[v-2]
}

func rankPlural(v int) string {
	if v == int(deck.Six) {
		return "Sixes"
	}
	return rankWord(v) + "s"
}
