package server

import (
	"encoding/json"
	"time"

	"github.com/cardroom/holdem-rooms/internal/deck"
	"github.com/cardroom/holdem-rooms/internal/game"
)

// MessageType represents a WebSocket message type
type MessageType string

const (
	// Client to server messages
	MessageTypeCreateSession MessageType = "create_session"
	MessageTypeJoinSession   MessageType = "join_session"
	MessageTypeStartHand     MessageType = "start_hand"
	MessageTypeAct           MessageType = "act"
	MessageTypeReconnect     MessageType = "reconnect"
	MessageTypeLeaveSession  MessageType = "leave_session"
	MessageTypeListSessions  MessageType = "list_sessions"

	// Server to client messages
	MessageTypeSessionCreated   MessageType = "session_created"
	MessageTypeSessionJoined    MessageType = "session_joined"
	MessageTypeHandStarted      MessageType = "hand_started"
	MessageTypeSessionUpdated   MessageType = "session_updated"
	MessageTypeSeatDisconnected MessageType = "seat_disconnected"
	MessageTypeSessionList      MessageType = "session_list"
	MessageTypeError            MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
}

// Message is the JSON envelope carried over the WebSocket in both
// directions.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server payloads

type CreateSessionData struct {
	DisplayName string `json:"displayName"`
	SmallBlind  int    `json:"smallBlind,omitempty"`
	BigBlind    int    `json:"bigBlind,omitempty"`
	MaxSeats    int    `json:"maxSeats,omitempty"`
}

type JoinSessionData struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

type ActData struct {
	Kind   string `json:"kind"`
	Amount int    `json:"amount,omitempty"`
}

type ReconnectData struct {
	SessionID string `json:"sessionId"`
	Identity  string `json:"identity"`
}

// Server → Client payloads

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SessionCreatedData struct {
	SessionID string       `json:"sessionId"`
	Identity  string       `json:"identity"`
	Session   SessionState `json:"session"`
}

type SessionJoinedData struct {
	SessionID string       `json:"sessionId"`
	Identity  string       `json:"identity"`
	Session   SessionState `json:"session"`
}

type HandStartedData struct {
	Session SessionState `json:"session"`
}

// LastAction describes the action that produced a session update.
type LastAction struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Kind        string `json:"kind"`
	Amount      int    `json:"amount,omitempty"`
}

type SessionUpdatedData struct {
	Session    SessionState `json:"session"`
	LastAction *LastAction  `json:"lastAction,omitempty"`
}

type SeatDisconnectedData struct {
	SessionID   string `json:"sessionId"`
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
}

type SessionInfo struct {
	ID         string `json:"id"`
	Phase      string `json:"phase"`
	Seats      int    `json:"seats"`
	MaxSeats   int    `json:"maxSeats"`
	SmallBlind int    `json:"smallBlind"`
	BigBlind   int    `json:"bigBlind"`
}

type SessionListData struct {
	Sessions []SessionInfo `json:"sessions"`
}

// Snapshot types. Broadcasts carry full read-only session snapshots; the
// engine's state is never aliased to clients.

type SeatState struct {
	Identity        string      `json:"identity,omitempty"`
	DisplayName     string      `json:"displayName"`
	Chips           int         `json:"chips"`
	Bet             int         `json:"bet"`
	Folded          bool        `json:"folded"`
	Dealer          bool        `json:"dealer"`
	Turn            bool        `json:"turn"`
	Connected       bool        `json:"connected"`
	Position        int         `json:"position"`
	Winner          bool        `json:"winner"`
	HandDescription string      `json:"handDescription,omitempty"`
	HoleCards       []deck.Card `json:"holeCards,omitempty"`
}

type SessionState struct {
	ID             string      `json:"id"`
	Phase          string      `json:"phase"`
	Pot            int         `json:"pot"`
	CurrentBet     int         `json:"currentBet"`
	CommunityCards []deck.Card `json:"communityCards"`
	DealerSeat     int         `json:"dealerSeat"`
	ActiveSeat     int         `json:"activeSeat"`
	SmallBlind     int         `json:"smallBlind"`
	BigBlind       int         `json:"bigBlind"`
	Seats          []SeatState `json:"seats"`
}

// SessionStateFor builds a snapshot personalised for one viewer: hole
// cards and the seat identity appear only on the viewer's own seat, except
// at showdown where every non-folded hand is revealed.
func SessionStateFor(s *game.Session, viewer string) SessionState {
	seats := make([]SeatState, len(s.Seats))
	for i, seat := range s.Seats {
		ss := SeatState{
			DisplayName:     seat.DisplayName,
			Chips:           seat.Chips,
			Bet:             seat.Bet,
			Folded:          seat.Folded,
			Dealer:          seat.Dealer,
			Turn:            seat.Turn,
			Connected:       seat.Connected,
			Position:        seat.Position,
			Winner:          seat.Winner,
			HandDescription: seat.HandDescription,
		}
		own := seat.Identity == viewer
		if own {
			ss.Identity = seat.Identity
		}
		if own || (s.Phase == game.Showdown && !seat.Folded) {
			ss.HoleCards = append([]deck.Card{}, seat.HoleCards...)
		}
		seats[i] = ss
	}

	return SessionState{
		ID:             s.ID,
		Phase:          s.Phase.String(),
		Pot:            s.Pot,
		CurrentBet:     s.CurrentBet,
		CommunityCards: append([]deck.Card{}, s.Community...),
		DealerSeat:     s.DealerIdx,
		ActiveSeat:     s.ActiveIdx,
		SmallBlind:     s.SmallBlind,
		BigBlind:       s.BigBlind,
		Seats:          seats,
	}
}
