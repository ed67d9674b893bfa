// ABOUTME: Hub owning the membership registry; the single serialization point
// ABOUTME: All registry mutations and fan-out snapshots happen under one mutex

package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pawhub/pawhub/internal/store"
)

// Options tunes hub and session behavior.
type Options struct {
	// SessionQueueSize bounds each session's outbound queue. A session
	// whose queue is full when a delivery arrives is evicted rather than
	// backpressuring the hub.
	SessionQueueSize int

	// ReadLimit caps the size of one inbound frame in bytes.
	ReadLimit int64

	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.SessionQueueSize <= 0 {
		o.SessionQueueSize = 64
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 * 1024
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 54 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
}

// Hub owns connection and subscription state for the whole process.
// Every mutation of the registry and every recipient-set computation runs
// under h.mu, so a subscriber arriving concurrently with a broadcast can
// never observe a half-applied membership change.
type Hub struct {
	store  store.Store
	opts   Options
	logger *slog.Logger
	router *Router

	mu     sync.Mutex
	reg    *registry
	closed bool
}

// NewHub creates a hub backed by the given storage collaborator.
func NewHub(st store.Store, opts Options, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()
	h := &Hub{
		store:  st,
		opts:   opts,
		logger: logger.With("component", "hub"),
		reg:    newRegistry(),
	}
	h.router = newRouter(h, st, logger)
	return h
}

// Accept registers a new live session for the authenticated identity and
// auto-subscribes its user to every conversation the user belongs to.
// For each conversation the user was not already subscribed to, a presence
// "joined" notice goes to its other current subscribers. Returns the
// session and the initial subscription set.
func (h *Hub) Accept(ctx context.Context, conn *websocket.Conn, userID uuid.UUID, role store.Role) (*Session, []*store.Conversation, error) {
	convs, err := h.store.GetUserConversations(ctx, userID, role)
	if err != nil {
		return nil, nil, fmt.Errorf("loading conversations for user %s: %w", userID, err)
	}

	type joinedConv struct {
		conversationID uuid.UUID
		others         []*Session
	}
	var joined []joinedConv

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, fmt.Errorf("hub is shut down")
	}
	sess := h.newSession(conn, userID, role)
	h.reg.addSession(sess)
	for _, conv := range convs {
		if h.reg.subscribe(conv.ID, userID) {
			joined = append(joined, joinedConv{
				conversationID: conv.ID,
				others:         h.reg.recipients(conv.ID, userID),
			})
		}
	}
	h.mu.Unlock()

	sess.logger.Info("session accepted",
		"role", string(role),
		"conversations", len(convs),
	)

	for _, j := range joined {
		h.notifyPresence(ctx, EventUserJoined, userID, j.conversationID, "", j.others)
	}

	if conn != nil {
		go sess.writePump()
		go sess.readPump()
	}
	return sess, convs, nil
}

// Detach removes a session on any exit path. If it was the user's last
// live session, the disconnect counts as an implicit unsubscribe from every
// conversation the user held, and remaining subscribers of each receive one
// presence "left" notice with reason "disconnected".
func (h *Hub) Detach(s *Session) {
	type leftConv struct {
		conversationID uuid.UUID
		remaining      []*Session
	}
	var left []leftConv

	h.mu.Lock()
	present, last := h.reg.removeSession(s)
	if present {
		close(s.send)
	}
	if last {
		for _, convID := range h.reg.userConversations(s.UserID) {
			if h.reg.unsubscribe(convID, s.UserID) {
				left = append(left, leftConv{
					conversationID: convID,
					remaining:      h.reg.recipients(convID, uuid.Nil),
				})
			}
		}
	}
	h.mu.Unlock()

	if !present {
		return
	}
	s.cancel()
	s.logger.Info("session detached", "last_session", last)

	for _, l := range left {
		h.notifyPresence(context.Background(), EventUserLeft, s.UserID, l.conversationID, LeaveReasonDisconnected, l.remaining)
	}
}

// Subscribe adds the user to a conversation's subscriber set and snapshots
// the other subscribers' sessions in the same critical section. The caller
// must have authorized the user already; the registry trusts nothing else.
func (h *Hub) Subscribe(conversationID, userID uuid.UUID) (newly bool, others []*Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	newly = h.reg.subscribe(conversationID, userID)
	if newly {
		others = h.reg.recipients(conversationID, userID)
	}
	return newly, others
}

// Unsubscribe removes the user from a conversation's subscriber set and
// snapshots the remaining subscribers' sessions.
func (h *Hub) Unsubscribe(conversationID, userID uuid.UUID) (existed bool, remaining []*Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	existed = h.reg.unsubscribe(conversationID, userID)
	if existed {
		remaining = h.reg.recipients(conversationID, uuid.Nil)
	}
	return existed, remaining
}

// MessageRecipients snapshots the sessions a message broadcast reaches:
// every subscriber's live sessions, plus all of the sender's own sessions
// even when the sender is not subscribed, so each of the sender's devices
// always sees its own confirmation. One critical section, no duplicates.
func (h *Hub) MessageRecipients(conversationID, senderID uuid.UUID) []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	recipients := h.reg.recipients(conversationID, uuid.Nil)
	if !h.reg.isSubscribed(conversationID, senderID) {
		recipients = append(recipients, h.reg.userSessions(senderID)...)
	}
	return recipients
}

// UserSessions snapshots all live sessions of one user.
func (h *Hub) UserSessions(userID uuid.UUID) []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reg.userSessions(userID)
}

// RegisterConversation subscribes a freshly created conversation's client
// and providers and snapshots their sessions, all in one critical section.
func (h *Hub) RegisterConversation(conv *store.Conversation) (clientSessions []*Session, providerSessions map[uuid.UUID][]*Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.reg.subscribe(conv.ID, conv.ClientID)
	clientSessions = h.reg.userSessions(conv.ClientID)

	providerSessions = make(map[uuid.UUID][]*Session, len(conv.ProviderIDs))
	for _, providerID := range conv.ProviderIDs {
		h.reg.subscribe(conv.ID, providerID)
		providerSessions[providerID] = h.reg.userSessions(providerID)
	}
	return clientSessions, providerSessions
}

// SessionCount reports the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, sessions := range h.reg.sessionsByUser {
		n += len(sessions)
	}
	return n
}

// deliver enqueues one payload onto each recipient session's outbound
// queue. Enqueuing never blocks; sessions already mid-teardown are skipped,
// and sessions whose queue is full are evicted after the critical section.
func (h *Hub) deliver(sessions []*Session, payload []byte) {
	var overloaded []*Session

	h.mu.Lock()
	for _, s := range sessions {
		if !h.reg.hasSession(s) {
			continue
		}
		if !s.enqueue(payload) {
			overloaded = append(overloaded, s)
		}
	}
	h.mu.Unlock()

	for _, s := range overloaded {
		h.evict(s)
	}
}

// evict force-drops a session whose outbound queue overflowed. The session
// is not told (it is already too far behind to hear it) but the condition
// is logged for operators.
func (h *Hub) evict(s *Session) {
	s.logger.Warn("outbound queue full, evicting slow session")
	if s.conn != nil {
		_ = s.conn.Close()
	}
	h.Detach(s)
}

// notifyPresence broadcasts a user_joined/user_left notice carrying the
// actor's profile. Presence is best effort: a profile lookup failure is
// logged and the notice skipped, never surfaced to clients.
func (h *Hub) notifyPresence(ctx context.Context, event string, userID, conversationID uuid.UUID, reason string, recipients []*Session) {
	if len(recipients) == 0 {
		return
	}
	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		h.logger.Warn("presence profile lookup failed",
			"user_id", userID.String(),
			"event", event,
			"error", err,
		)
		return
	}
	payload, err := encodeServerEvent(event, newPresencePayload(user, conversationID, reason))
	if err != nil {
		h.logger.Error("encoding presence event", "event", event, "error", err)
		return
	}
	h.deliver(recipients, payload)
}

// Close shuts the hub down: no new sessions are accepted and every live
// connection is closed. Shutdown emits no presence notices.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var sessions []*Session
	for _, userSessions := range h.reg.sessionsByUser {
		for _, s := range userSessions {
			sessions = append(sessions, s)
		}
	}
	h.reg = newRegistry()
	h.mu.Unlock()

	for _, s := range sessions {
		close(s.send)
		s.cancel()
		if s.conn != nil {
			_ = s.conn.Close()
		}
	}
	h.logger.Info("hub closed", "sessions", len(sessions))
}
