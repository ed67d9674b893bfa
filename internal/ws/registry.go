// ABOUTME: Membership registry mapping users to live sessions and conversations to subscribers
// ABOUTME: Pure data structure; the Hub serializes every mutation and read

package ws

import (
	"github.com/google/uuid"
)

// registry is the single source of truth for "who should receive what".
// It holds no lock of its own: every method must be called with the owning
// Hub's mutex held, which is what makes concurrent subscribe/broadcast
// interleavings impossible.
type registry struct {
	// sessionsByUser maps a user to all of their live sessions. A user may
	// hold several simultaneous connections (multiple devices).
	sessionsByUser map[uuid.UUID]map[string]*Session

	// subscribersByConversation maps a conversation to the set of users
	// subscribed to it. Subscription is per-user, not per-session.
	subscribersByConversation map[uuid.UUID]map[uuid.UUID]struct{}
}

func newRegistry() *registry {
	return &registry{
		sessionsByUser:            make(map[uuid.UUID]map[string]*Session),
		subscribersByConversation: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// addSession records a live session under its user.
func (r *registry) addSession(s *Session) {
	sessions, ok := r.sessionsByUser[s.UserID]
	if !ok {
		sessions = make(map[string]*Session)
		r.sessionsByUser[s.UserID] = sessions
	}
	sessions[s.ID] = s
}

// removeSession removes a session. Returns whether the session was present
// and whether it was the user's last live session.
func (r *registry) removeSession(s *Session) (present, last bool) {
	sessions, ok := r.sessionsByUser[s.UserID]
	if !ok {
		return false, false
	}
	if _, ok := sessions[s.ID]; !ok {
		return false, false
	}
	delete(sessions, s.ID)
	if len(sessions) == 0 {
		delete(r.sessionsByUser, s.UserID)
		return true, true
	}
	return true, false
}

// hasSession reports whether the session is still registered.
func (r *registry) hasSession(s *Session) bool {
	sessions, ok := r.sessionsByUser[s.UserID]
	if !ok {
		return false
	}
	_, ok = sessions[s.ID]
	return ok
}

// subscribe adds the user to the conversation's subscriber set.
// Idempotent; returns whether this was a new subscription.
func (r *registry) subscribe(conversationID, userID uuid.UUID) bool {
	subs, ok := r.subscribersByConversation[conversationID]
	if !ok {
		subs = make(map[uuid.UUID]struct{})
		r.subscribersByConversation[conversationID] = subs
	}
	if _, exists := subs[userID]; exists {
		return false
	}
	subs[userID] = struct{}{}
	return true
}

// unsubscribe removes the user from the conversation's subscriber set.
// Idempotent; returns whether a subscription actually existed.
func (r *registry) unsubscribe(conversationID, userID uuid.UUID) bool {
	subs, ok := r.subscribersByConversation[conversationID]
	if !ok {
		return false
	}
	if _, exists := subs[userID]; !exists {
		return false
	}
	delete(subs, userID)
	if len(subs) == 0 {
		delete(r.subscribersByConversation, conversationID)
	}
	return true
}

// isSubscribed reports whether the user is subscribed to the conversation.
func (r *registry) isSubscribed(conversationID, userID uuid.UUID) bool {
	subs, ok := r.subscribersByConversation[conversationID]
	if !ok {
		return false
	}
	_, exists := subs[userID]
	return exists
}

// userConversations lists every conversation the user is subscribed to.
func (r *registry) userConversations(userID uuid.UUID) []uuid.UUID {
	var convs []uuid.UUID
	for convID, subs := range r.subscribersByConversation {
		if _, ok := subs[userID]; ok {
			convs = append(convs, convID)
		}
	}
	return convs
}

// userSessions snapshots all live sessions of a user.
func (r *registry) userSessions(userID uuid.UUID) []*Session {
	sessions := r.sessionsByUser[userID]
	out := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s)
	}
	return out
}

// recipients snapshots the live sessions of every subscribed user of the
// conversation. Pass a non-nil excludeUser to leave out all of that user's
// sessions (used for presence events, which never echo to the actor).
func (r *registry) recipients(conversationID, excludeUser uuid.UUID) []*Session {
	subs, ok := r.subscribersByConversation[conversationID]
	if !ok {
		return nil
	}
	var out []*Session
	for userID := range subs {
		if excludeUser != uuid.Nil && userID == excludeUser {
			continue
		}
		for _, s := range r.sessionsByUser[userID] {
			out = append(out, s)
		}
	}
	return out
}
