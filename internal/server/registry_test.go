package server

import (
	"context"
	"encoding/json"
	"io"
	rand "math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/holdem-rooms/internal/deck"
	"github.com/cardroom/holdem-rooms/internal/game"
	"github.com/cardroom/holdem-rooms/internal/gameid"
)

// fakeSender records every message the registry sends, per connection.
type fakeSender struct {
	mu   sync.Mutex
	msgs map[string][]*Message
}

func newFakeSender() *fakeSender {
	return &fakeSender{msgs: make(map[string][]*Message)}
}

func (f *fakeSender) Send(connID string, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs[connID] = append(f.msgs[connID], msg)
	return nil
}

func (f *fakeSender) byType(connID string, typ MessageType) []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Message
	for _, m := range f.msgs[connID] {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) lastOfType(t *testing.T, connID string, typ MessageType) *Message {
	t.Helper()
	msgs := f.byType(connID, typ)
	require.NotEmpty(t, msgs, "no %s message for %s", typ, connID)
	return msgs[len(msgs)-1]
}

func decodeData[T any](t *testing.T, msg *Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

func newTestRegistry(t *testing.T) (*Registry, *fakeSender, *quartz.Mock) {
	t.Helper()
	mClock := quartz.NewMock(t)
	r := NewRegistry(
		game.Config{SmallBlind: 5, BigBlind: 10, MaxSeats: 6, StartingStack: 1000},
		5*time.Second, mClock, log.New(io.Discard))
	r.SetRNGFactory(func() *rand.Rand { return deck.NewRNG(42) })
	sender := newFakeSender()
	r.SetSender(sender)
	return r, sender, mClock
}

func createTestSession(t *testing.T, r *Registry, sender *fakeSender, connID, name string) (string, string) {
	t.Helper()
	require.NoError(t, r.CreateSession(connID, CreateSessionData{DisplayName: name}))
	created := decodeData[SessionCreatedData](t, sender.lastOfType(t, connID, MessageTypeSessionCreated))
	return created.SessionID, created.Identity
}

func joinTestSession(t *testing.T, r *Registry, sender *fakeSender, connID, sessionID, name string) string {
	t.Helper()
	require.NoError(t, r.JoinSession(connID, JoinSessionData{SessionID: sessionID, DisplayName: name}))
	joined := decodeData[SessionJoinedData](t, sender.lastOfType(t, connID, MessageTypeSessionJoined))
	return joined.Identity
}

func TestCreateSessionRepliesWithIdentity(t *testing.T) {
	r, sender, _ := newTestRegistry(t)

	sessionID, identity := createTestSession(t, r, sender, "c1", "alice")

	require.NoError(t, gameid.Validate(sessionID))
	assert.NotEmpty(t, identity)
	assert.Equal(t, 1, r.SessionCount())

	created := decodeData[SessionCreatedData](t, sender.lastOfType(t, "c1", MessageTypeSessionCreated))
	require.Len(t, created.Session.Seats, 1)
	assert.Equal(t, identity, created.Session.Seats[0].Identity)
	assert.Equal(t, "alice", created.Session.Seats[0].DisplayName)
	assert.Equal(t, 1000, created.Session.Seats[0].Chips)
	assert.Equal(t, "waiting", created.Session.Phase)
}

func TestCreateSessionAppliesOverrides(t *testing.T) {
	r, sender, _ := newTestRegistry(t)

	require.NoError(t, r.CreateSession("c1", CreateSessionData{
		DisplayName: "alice", SmallBlind: 25, BigBlind: 50, MaxSeats: 4,
	}))
	created := decodeData[SessionCreatedData](t, sender.lastOfType(t, "c1", MessageTypeSessionCreated))
	assert.Equal(t, 25, created.Session.SmallBlind)
	assert.Equal(t, 50, created.Session.BigBlind)
}

func TestJoinSessionNotifiesEveryone(t *testing.T) {
	r, sender, _ := newTestRegistry(t)
	sessionID, _ := createTestSession(t, r, sender, "c1", "alice")

	identity := joinTestSession(t, r, sender, "c2", sessionID, "bob")
	assert.NotEmpty(t, identity)

	updated := decodeData[SessionUpdatedData](t, sender.lastOfType(t, "c1", MessageTypeSessionUpdated))
	assert.Len(t, updated.Session.Seats, 2)

	err := r.JoinSession("c3", JoinSessionData{SessionID: "NOPE1234", DisplayName: "eve"})
	assert.ErrorIs(t, err, game.ErrSessionNotFound)
}

func TestAnonymousDisplayName(t *testing.T) {
	r, sender, _ := newTestRegistry(t)
	createTestSession(t, r, sender, "c1", "")

	created := decodeData[SessionCreatedData](t, sender.lastOfType(t, "c1", MessageTypeSessionCreated))
	assert.Equal(t, "anonymous", created.Session.Seats[0].DisplayName)
}

func TestStartHandRedactsHoleCards(t *testing.T) {
	r, sender, _ := newTestRegistry(t)
	sessionID, _ := createTestSession(t, r, sender, "c1", "alice")
	joinTestSession(t, r, sender, "c2", sessionID, "bob")

	require.NoError(t, r.StartHand("c1"))

	forAlice := decodeData[HandStartedData](t, sender.lastOfType(t, "c1", MessageTypeHandStarted))
	forBob := decodeData[HandStartedData](t, sender.lastOfType(t, "c2", MessageTypeHandStarted))

	assert.Equal(t, "betting", forAlice.Session.Phase)
	assert.Len(t, forAlice.Session.Seats[0].HoleCards, 2)
	assert.Empty(t, forAlice.Session.Seats[1].HoleCards)
	assert.Len(t, forBob.Session.Seats[1].HoleCards, 2)
	assert.Empty(t, forBob.Session.Seats[0].HoleCards)

	// Seat identities are private to their owner too.
	assert.Empty(t, forAlice.Session.Seats[1].Identity)
	assert.Empty(t, forBob.Session.Seats[0].Identity)
}

func TestStartHandErrors(t *testing.T) {
	r, sender, _ := newTestRegistry(t)
	createTestSession(t, r, sender, "c1", "alice")

	assert.ErrorIs(t, r.StartHand("c1"), game.ErrNotEnoughPlayers)
	assert.ErrorIs(t, r.StartHand("stranger"), game.ErrSessionNotFound)
}

func TestActBroadcastsLastAction(t *testing.T) {
	r, sender, _ := newTestRegistry(t)
	sessionID, _ := createTestSession(t, r, sender, "c1", "alice")
	joinTestSession(t, r, sender, "c2", sessionID, "bob")
	require.NoError(t, r.StartHand("c1"))

	// Heads-up the creator holds the button and acts first.
	assert.ErrorIs(t, r.Act("c2", ActData{Kind: "call"}), game.ErrNotYourTurn)
	assert.ErrorIs(t, r.Act("c1", ActData{Kind: "bet"}), game.ErrInvalidActionKind)

	require.NoError(t, r.Act("c1", ActData{Kind: "call"}))
	updated := decodeData[SessionUpdatedData](t, sender.lastOfType(t, "c2", MessageTypeSessionUpdated))
	require.NotNil(t, updated.LastAction)
	assert.Equal(t, "call", updated.LastAction.Kind)
	assert.Equal(t, "alice", updated.LastAction.DisplayName)
	assert.Equal(t, "flop", updated.Session.Phase)
}

func TestAutoRestartAfterShowdown(t *testing.T) {
	r, sender, mClock := newTestRegistry(t)
	sessionID, _ := createTestSession(t, r, sender, "c1", "alice")
	joinTestSession(t, r, sender, "c2", sessionID, "bob")
	require.NoError(t, r.StartHand("c1"))

	// Folding heads-up ends the hand immediately.
	require.NoError(t, r.Act("c1", ActData{Kind: "fold"}))
	updated := decodeData[SessionUpdatedData](t, sender.lastOfType(t, "c2", MessageTypeSessionUpdated))
	assert.Equal(t, "showdown", updated.Session.Phase)

	mClock.Advance(5 * time.Second).MustWait(context.Background())

	started := sender.byType("c2", MessageTypeHandStarted)
	require.Len(t, started, 2, "expected a second hand to start automatically")
	next := decodeData[HandStartedData](t, started[1])
	assert.Equal(t, "betting", next.Session.Phase)
	// Button rotated, so the joiner now holds it.
	assert.Equal(t, 1, next.Session.DealerSeat)
}

func TestInstantShowdownArmsRestart(t *testing.T) {
	r, sender, mClock := newTestRegistry(t)
	sessionID, _ := createTestSession(t, r, sender, "c1", "alice")
	joinTestSession(t, r, sender, "c2", sessionID, "bob")

	// Stacks no bigger than the blinds: posting puts everyone all-in and
	// the hand runs straight to showdown with nobody to act.
	h := r.handle(sessionID)
	h.mu.Lock()
	h.session.Seats[0].Chips = 5
	h.session.Seats[1].Chips = 10
	h.mu.Unlock()

	require.NoError(t, r.StartHand("c1"))
	started := decodeData[HandStartedData](t, sender.lastOfType(t, "c1", MessageTypeHandStarted))
	require.Equal(t, "showdown", started.Session.Phase)

	// The restart timer must fire and release the session from showdown.
	before := len(sender.byType("c2", MessageTypeSessionUpdated))
	mClock.Advance(5 * time.Second).MustWait(context.Background())

	msgs := sender.byType("c2", MessageTypeSessionUpdated)
	require.Greater(t, len(msgs), before, "timer never fired")
	updated := decodeData[SessionUpdatedData](t, msgs[len(msgs)-1])
	assert.Equal(t, "waiting", updated.Session.Phase)

	// No longer wedged in showdown: a manual start now fails on the
	// busted stack, not on a hand supposedly still running.
	assert.ErrorIs(t, r.StartHand("c1"), game.ErrNotEnoughPlayers)
}

func TestAutoRestartReArmsAfterInstantShowdown(t *testing.T) {
	r, sender, mClock := newTestRegistry(t)
	sessionID, _ := createTestSession(t, r, sender, "c1", "alice")
	joinTestSession(t, r, sender, "c2", sessionID, "bob")
	require.NoError(t, r.StartHand("c1"))
	require.NoError(t, r.Act("c1", ActData{Kind: "fold"}))

	// Shrink both stacks so the automatically started next hand is an
	// immediate blind-versus-blind showdown.
	h := r.handle(sessionID)
	h.mu.Lock()
	h.session.Seats[0].Chips = 5
	h.session.Seats[1].Chips = 5
	h.mu.Unlock()

	mClock.Advance(5 * time.Second).MustWait(context.Background())
	started := sender.byType("c2", MessageTypeHandStarted)
	require.Len(t, started, 2)
	require.Equal(t, "showdown",
		decodeData[HandStartedData](t, started[1]).Session.Phase)

	// The auto-started hand went straight to showdown; the timer must be
	// armed again or the session would be stuck there.
	mClock.Advance(5 * time.Second).MustWait(context.Background())
	updated := decodeData[SessionUpdatedData](t, sender.lastOfType(t, "c2", MessageTypeSessionUpdated))
	assert.Equal(t, "waiting", updated.Session.Phase)
}

func TestListSessionsDuringPlay(t *testing.T) {
	r, sender, _ := newTestRegistry(t)
	sessionID, _ := createTestSession(t, r, sender, "c1", "alice")
	joinTestSession(t, r, sender, "c2", sessionID, "bob")
	require.NoError(t, r.StartHand("c1"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = r.ListSessions("c3")
		}
	}()

	require.NoError(t, r.Act("c1", ActData{Kind: "call"}))
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Act("c2", ActData{Kind: "check"}))
		require.NoError(t, r.Act("c1", ActData{Kind: "check"}))
	}
	<-done

	require.NoError(t, r.ListSessions("c3"))
	list := decodeData[SessionListData](t, sender.lastOfType(t, "c3", MessageTypeSessionList))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, "showdown", list.Sessions[0].Phase)
}

func TestAutoRestartWaitsForPlayers(t *testing.T) {
	r, sender, mClock := newTestRegistry(t)
	sessionID, _ := createTestSession(t, r, sender, "c1", "alice")
	joinTestSession(t, r, sender, "c2", sessionID, "bob")
	require.NoError(t, r.StartHand("c1"))
	require.NoError(t, r.Act("c1", ActData{Kind: "fold"}))

	r.HandleDisconnect("c1")
	mClock.Advance(5 * time.Second).MustWait(context.Background())

	started := sender.byType("c2", MessageTypeHandStarted)
	assert.Len(t, started, 1, "no new hand should start with one player connected")
	updated := decodeData[SessionUpdatedData](t, sender.lastOfType(t, "c2", MessageTypeSessionUpdated))
	assert.Equal(t, "waiting", updated.Session.Phase)
}

func TestDisconnectNotifiesAndMarksSeat(t *testing.T) {
	r, sender, _ := newTestRegistry(t)
	sessionID, _ := createTestSession(t, r, sender, "c1", "alice")
	bobIdentity := joinTestSession(t, r, sender, "c2", sessionID, "bob")

	r.HandleDisconnect("c2")

	away := decodeData[SeatDisconnectedData](t, sender.lastOfType(t, "c1", MessageTypeSeatDisconnected))
	assert.Equal(t, bobIdentity, away.Identity)
	assert.Equal(t, "bob", away.DisplayName)

	updated := decodeData[SessionUpdatedData](t, sender.lastOfType(t, "c1", MessageTypeSessionUpdated))
	require.Len(t, updated.Session.Seats, 2)
	assert.False(t, updated.Session.Seats[1].Connected)
	assert.Equal(t, 1, r.SessionCount())
}

func TestSessionDestroyedWhenEmpty(t *testing.T) {
	r, sender, _ := newTestRegistry(t)
	createTestSession(t, r, sender, "c1", "alice")

	r.HandleDisconnect("c1")
	assert.Equal(t, 0, r.SessionCount())

	// Unknown connections are ignored.
	r.HandleDisconnect("never-seen")
}

func TestLeaveSession(t *testing.T) {
	r, sender, _ := newTestRegistry(t)
	sessionID, _ := createTestSession(t, r, sender, "c1", "alice")
	bobIdentity := joinTestSession(t, r, sender, "c2", sessionID, "bob")

	require.NoError(t, r.LeaveSession("c2"))

	away := decodeData[SeatDisconnectedData](t, sender.lastOfType(t, "c1", MessageTypeSeatDisconnected))
	assert.Equal(t, bobIdentity, away.Identity)

	// The leaver is no longer routed anywhere.
	assert.ErrorIs(t, r.LeaveSession("c2"), game.ErrSessionNotFound)
	assert.Equal(t, 1, r.SessionCount())

	// The last seat leaving destroys the session.
	require.NoError(t, r.LeaveSession("c1"))
	assert.Equal(t, 0, r.SessionCount())
}

func TestReconnectRebindsSeat(t *testing.T) {
	r, sender, _ := newTestRegistry(t)
	sessionID, aliceIdentity := createTestSession(t, r, sender, "c1", "alice")
	joinTestSession(t, r, sender, "c2", sessionID, "bob")
	require.NoError(t, r.StartHand("c1"))

	r.HandleDisconnect("c1")
	require.NoError(t, r.Reconnect("c3", ReconnectData{SessionID: sessionID, Identity: aliceIdentity}))

	joined := decodeData[SessionJoinedData](t, sender.lastOfType(t, "c3", MessageTypeSessionJoined))
	assert.Equal(t, aliceIdentity, joined.Identity)
	assert.True(t, joined.Session.Seats[0].Connected)
	assert.Len(t, joined.Session.Seats[0].HoleCards, 2)
	assert.Equal(t, 995, joined.Session.Seats[0].Chips, "small blind should survive the reconnect")

	err := r.Reconnect("c4", ReconnectData{SessionID: sessionID, Identity: "bogus"})
	assert.ErrorIs(t, err, game.ErrSeatNotFound)
}

func TestListSessions(t *testing.T) {
	r, sender, _ := newTestRegistry(t)
	createTestSession(t, r, sender, "c1", "alice")
	createTestSession(t, r, sender, "c2", "bob")

	require.NoError(t, r.ListSessions("c3"))
	list := decodeData[SessionListData](t, sender.lastOfType(t, "c3", MessageTypeSessionList))
	require.Len(t, list.Sessions, 2)
	for _, info := range list.Sessions {
		assert.NoError(t, gameid.Validate(info.ID))
		assert.Equal(t, "waiting", info.Phase)
		assert.Equal(t, 1, info.Seats)
	}
}

func TestCloseStopsEverything(t *testing.T) {
	r, sender, mClock := newTestRegistry(t)
	sessionID, _ := createTestSession(t, r, sender, "c1", "alice")
	joinTestSession(t, r, sender, "c2", sessionID, "bob")
	require.NoError(t, r.StartHand("c1"))
	require.NoError(t, r.Act("c1", ActData{Kind: "fold"}))

	r.Close()
	assert.Equal(t, 0, r.SessionCount())

	// The armed restart timer must not fire after Close.
	before := len(sender.byType("c2", MessageTypeHandStarted))
	mClock.Advance(5 * time.Second).MustWait(context.Background())
	assert.Len(t, sender.byType("c2", MessageTypeHandStarted), before)
}
