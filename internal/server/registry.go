package server

import (
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/cardroom/holdem-rooms/internal/deck"
	"github.com/cardroom/holdem-rooms/internal/game"
	"github.com/cardroom/holdem-rooms/internal/gameid"
)

// Sender delivers a message to one connection. The WebSocket server
// implements it; tests substitute a recorder.
type Sender interface {
	Send(connID string, msg *Message) error
}

// route maps a connection to the seat it speaks for.
type route struct {
	sessionID string
	identity  string
}

// sessionHandle pairs a session with its serialisation lock and the
// pending showdown-restart timer.
type sessionHandle struct {
	mu      sync.Mutex
	session *game.Session
	restart *quartz.Timer
}

// Registry owns all live sessions and the connection-to-seat routing.
// Each session is mutated under its own lock, one event at a time;
// distinct sessions proceed in parallel.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionHandle
	routes   map[string]route

	defaults     game.Config
	restartDelay time.Duration
	clock        quartz.Clock
	sender       Sender
	logger       *log.Logger
	newRNG       func() *rand.Rand
}

// NewRegistry creates a registry with the given per-session defaults.
func NewRegistry(defaults game.Config, restartDelay time.Duration, clock quartz.Clock, logger *log.Logger) *Registry {
	return &Registry{
		sessions:     make(map[string]*sessionHandle),
		routes:       make(map[string]route),
		defaults:     defaults,
		restartDelay: restartDelay,
		clock:        clock,
		logger:       logger.WithPrefix("registry"),
		newRNG: func() *rand.Rand {
			return deck.NewRNG(time.Now().UnixNano())
		},
	}
}

// SetSender wires the outbound transport. Must be called before any
// connection traffic arrives.
func (r *Registry) SetSender(sender Sender) {
	r.sender = sender
}

// SetRNGFactory overrides per-session RNG construction, for deterministic
// tests.
func (r *Registry) SetRNGFactory(f func() *rand.Rand) {
	r.newRNG = f
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ResolveConnection returns the session and identity a connection is
// routed to.
func (r *Registry) ResolveConnection(connID string) (sessionID, identity string, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routes[connID]
	if !ok {
		return "", "", game.ErrSessionNotFound
	}
	return rt.sessionID, rt.identity, nil
}

// CreateSession allocates a session, seats the caller and replies with
// the shareable session id and the caller's identity.
func (r *Registry) CreateSession(connID string, req CreateSessionData) error {
	cfg := r.defaults
	if req.SmallBlind > 0 {
		cfg.SmallBlind = req.SmallBlind
	}
	if req.BigBlind > 0 {
		cfg.BigBlind = req.BigBlind
	}
	if req.MaxSeats > 0 {
		cfg.MaxSeats = req.MaxSeats
	}

	r.mu.Lock()
	id := gameid.New()
	for r.sessions[id] != nil {
		id = gameid.New()
	}
	sess := game.NewSession(id, cfg, r.newRNG(), r.logger)
	identity := uuid.NewString()
	seat, err := sess.AddSeat(identity, displayName(req.DisplayName))
	if err != nil {
		r.mu.Unlock()
		return err
	}
	h := &sessionHandle{session: sess}
	r.sessions[id] = h
	r.routes[connID] = route{sessionID: id, identity: identity}
	r.mu.Unlock()

	r.logger.Info("session created", "session", id,
		"creator", seat.DisplayName, "smallBlind", cfg.SmallBlind, "bigBlind", cfg.BigBlind)

	h.mu.Lock()
	defer h.mu.Unlock()
	r.reply(connID, MessageTypeSessionCreated, SessionCreatedData{
		SessionID: id,
		Identity:  identity,
		Session:   SessionStateFor(sess, identity),
	})
	return nil
}

// JoinSession seats the caller at an existing session.
func (r *Registry) JoinSession(connID string, req JoinSessionData) error {
	h := r.handle(req.SessionID)
	if h == nil {
		return game.ErrSessionNotFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	identity := uuid.NewString()
	seat, err := h.session.AddSeat(identity, displayName(req.DisplayName))
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.routes[connID] = route{sessionID: req.SessionID, identity: identity}
	r.mu.Unlock()

	r.logger.Info("seat joined", "session", req.SessionID,
		"player", seat.DisplayName, "position", seat.Position)

	r.reply(connID, MessageTypeSessionJoined, SessionJoinedData{
		SessionID: req.SessionID,
		Identity:  identity,
		Session:   SessionStateFor(h.session, identity),
	})
	r.broadcastLocked(req.SessionID, h, MessageTypeSessionUpdated, nil)
	return nil
}

// StartHand begins a new hand in the caller's session.
func (r *Registry) StartHand(connID string) error {
	sessionID, _, err := r.ResolveConnection(connID)
	if err != nil {
		return err
	}
	h := r.handle(sessionID)
	if h == nil {
		return game.ErrSessionNotFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.session.StartHand(); err != nil {
		return err
	}
	r.broadcastLocked(sessionID, h, MessageTypeHandStarted, nil)
	// Blinds can put everyone all-in, running the board out before anyone
	// acts; the restart timer still has to be armed then.
	if h.session.Phase == game.Showdown {
		r.scheduleRestart(sessionID, h)
	}
	return nil
}

// Act applies a betting action from the caller's seat.
func (r *Registry) Act(connID string, req ActData) error {
	sessionID, identity, err := r.ResolveConnection(connID)
	if err != nil {
		return err
	}
	kind, err := game.ParseActionKind(req.Kind)
	if err != nil {
		return err
	}
	h := r.handle(sessionID)
	if h == nil {
		return game.ErrSessionNotFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.session.Phase
	if err := h.session.Apply(identity, kind, req.Amount); err != nil {
		return err
	}

	seat, _ := h.session.SeatByIdentity(identity)
	r.broadcastLocked(sessionID, h, MessageTypeSessionUpdated, &LastAction{
		Identity:    identity,
		DisplayName: seat.DisplayName,
		Kind:        req.Kind,
		Amount:      req.Amount,
	})
	if prev != game.Showdown && h.session.Phase == game.Showdown {
		r.scheduleRestart(sessionID, h)
	}
	return nil
}

// Reconnect rebinds a seat to a new connection, leaving its game state
// untouched.
func (r *Registry) Reconnect(connID string, req ReconnectData) error {
	h := r.handle(req.SessionID)
	if h == nil {
		return game.ErrSessionNotFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	seat, err := h.session.Reconnect(req.Identity)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.routes[connID] = route{sessionID: req.SessionID, identity: req.Identity}
	r.mu.Unlock()

	r.logger.Info("seat reconnected", "session", req.SessionID, "player", seat.DisplayName)

	r.reply(connID, MessageTypeSessionJoined, SessionJoinedData{
		SessionID: req.SessionID,
		Identity:  req.Identity,
		Session:   SessionStateFor(h.session, req.Identity),
	})
	r.broadcastLocked(req.SessionID, h, MessageTypeSessionUpdated, nil)
	return nil
}

// HandleDisconnect drops a connection's routing, marks its seat away and
// tears the session down once no connected seats remain. Safe to call for
// connections that never joined a session.
func (r *Registry) HandleDisconnect(connID string) {
	r.mu.Lock()
	rt, ok := r.routes[connID]
	delete(r.routes, connID)
	r.mu.Unlock()
	if !ok {
		return
	}

	h := r.handle(rt.sessionID)
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	seat, _ := h.session.SeatByIdentity(rt.identity)
	if seat == nil {
		return
	}
	prev := h.session.Phase
	if err := h.session.Disconnect(rt.identity); err != nil {
		return
	}

	if h.session.ConnectedCount() == 0 {
		r.teardown(rt.sessionID, h)
		return
	}

	r.broadcastPayload(rt.sessionID, MessageTypeSeatDisconnected, SeatDisconnectedData{
		SessionID:   rt.sessionID,
		Identity:    rt.identity,
		DisplayName: seat.DisplayName,
	})
	r.broadcastLocked(rt.sessionID, h, MessageTypeSessionUpdated, nil)
	if prev != game.Showdown && h.session.Phase == game.Showdown {
		r.scheduleRestart(rt.sessionID, h)
	}
}

// LeaveSession detaches the caller from its session without closing the
// connection, freeing it to create or join another. The seat is marked
// away exactly as on a dropped connection.
func (r *Registry) LeaveSession(connID string) error {
	if _, _, err := r.ResolveConnection(connID); err != nil {
		return err
	}
	r.HandleDisconnect(connID)
	return nil
}

// ListSessions replies with a summary of all live sessions. Each session
// is read under its own lock; the registry lock only guards the map walk.
func (r *Registry) ListSessions(connID string) error {
	r.mu.RLock()
	handles := make(map[string]*sessionHandle, len(r.sessions))
	for id, h := range r.sessions {
		handles[id] = h
	}
	r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(handles))
	for id, h := range handles {
		h.mu.Lock()
		s := h.session
		infos = append(infos, SessionInfo{
			ID:         id,
			Phase:      s.Phase.String(),
			Seats:      len(s.Seats),
			MaxSeats:   s.MaxSeats,
			SmallBlind: s.SmallBlind,
			BigBlind:   s.BigBlind,
		})
		h.mu.Unlock()
	}

	r.reply(connID, MessageTypeSessionList, SessionListData{Sessions: infos})
	return nil
}

// Close stops all pending timers and drops every session. The handles
// are detached under the registry lock first, then each timer is stopped
// under its session lock.
func (r *Registry) Close() {
	r.mu.Lock()
	handles := make([]*sessionHandle, 0, len(r.sessions))
	for _, h := range r.sessions {
		handles = append(handles, h)
	}
	r.sessions = make(map[string]*sessionHandle)
	r.routes = make(map[string]route)
	r.mu.Unlock()

	for _, h := range handles {
		h.mu.Lock()
		if h.restart != nil {
			h.restart.Stop()
			h.restart = nil
		}
		h.mu.Unlock()
	}
}

func (r *Registry) handle(sessionID string) *sessionHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// scheduleRestart arms the deferred hand restart after a showdown. The
// timer re-checks session state when it fires, so it degrades to a no-op
// if the session was torn down or drained in the meantime.
func (r *Registry) scheduleRestart(sessionID string, h *sessionHandle) {
	if h.restart != nil {
		h.restart.Stop()
	}
	h.restart = r.clock.AfterFunc(r.restartDelay, func() {
		r.autoRestart(sessionID)
	})
}

func (r *Registry) autoRestart(sessionID string) {
	h := r.handle(sessionID)
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.restart = nil

	if !h.session.FinishShowdown() {
		r.broadcastLocked(sessionID, h, MessageTypeSessionUpdated, nil)
		return
	}
	if err := h.session.StartHand(); err != nil {
		r.logger.Error("auto restart failed", "session", sessionID, "error", err)
		r.broadcastLocked(sessionID, h, MessageTypeSessionUpdated, nil)
		return
	}
	r.broadcastLocked(sessionID, h, MessageTypeHandStarted, nil)
	if h.session.Phase == game.Showdown {
		r.scheduleRestart(sessionID, h)
	}
}

// teardown removes the session; the caller holds h.mu.
func (r *Registry) teardown(sessionID string, h *sessionHandle) {
	if h.restart != nil {
		h.restart.Stop()
		h.restart = nil
	}
	r.mu.Lock()
	delete(r.sessions, sessionID)
	for connID, rt := range r.routes {
		if rt.sessionID == sessionID {
			delete(r.routes, connID)
		}
	}
	r.mu.Unlock()
	r.logger.Info("session destroyed", "session", sessionID)
}

// broadcastLocked fans a snapshot out to every connection routed to the
// session, personalised per recipient. The caller holds h.mu.
func (r *Registry) broadcastLocked(sessionID string, h *sessionHandle, typ MessageType, last *LastAction) {
	r.mu.RLock()
	recipients := make(map[string]string) // connID -> identity
	for connID, rt := range r.routes {
		if rt.sessionID == sessionID {
			recipients[connID] = rt.identity
		}
	}
	r.mu.RUnlock()

	for connID, identity := range recipients {
		var payload interface{}
		if typ == MessageTypeHandStarted {
			payload = HandStartedData{Session: SessionStateFor(h.session, identity)}
		} else {
			payload = SessionUpdatedData{
				Session:    SessionStateFor(h.session, identity),
				LastAction: last,
			}
		}
		r.reply(connID, typ, payload)
	}
}

// broadcastPayload sends one identical payload to every connection routed
// to the session.
func (r *Registry) broadcastPayload(sessionID string, typ MessageType, payload interface{}) {
	r.mu.RLock()
	var recipients []string
	for connID, rt := range r.routes {
		if rt.sessionID == sessionID {
			recipients = append(recipients, connID)
		}
	}
	r.mu.RUnlock()

	for _, connID := range recipients {
		r.reply(connID, typ, payload)
	}
}

// reply sends one message, logging delivery failures rather than
// propagating them: a dead recipient must not abort the action that
// triggered the send.
func (r *Registry) reply(connID string, typ MessageType, data interface{}) {
	msg, err := NewMessage(typ, data)
	if err != nil {
		r.logger.Error("failed to encode message", "type", typ, "error", err)
		return
	}
	if err := r.sender.Send(connID, msg); err != nil {
		r.logger.Debug("failed to deliver message", "type", typ, "conn", connID, "error", err)
	}
}

func displayName(name string) string {
	if name == "" {
		return "anonymous"
	}
	return name
}
