package game

// Phase represents where a session is in the hand lifecycle
type Phase int

const (
	Waiting Phase = iota
	Dealing
	Betting
	Flop
	Turn
	River
	Showdown
)

func (p Phase) String() string {
	return [...]string{"waiting", "dealing", "betting", "flop", "turn", "river", "showdown"}[p]
}

// ActionKind represents a betting action
type ActionKind int

const (
	Fold ActionKind = iota
	Check
	Call
	Raise
)

func (a ActionKind) String() string {
	return [...]string{"fold", "check", "call", "raise"}[a]
}

// ParseActionKind parses a wire action name.
func ParseActionKind(s string) (ActionKind, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise":
		return Raise, nil
	default:
		return 0, ErrInvalidActionKind
	}
}
