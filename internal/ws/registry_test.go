// ABOUTME: Tests for the membership registry's session and subscription maps
// ABOUTME: Covers idempotence, recipient snapshots, and cleanup of empty sets

package ws

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(userID uuid.UUID) *Session {
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, 8),
	}
}

func TestRegistrySessionLifecycle(t *testing.T) {
	r := newRegistry()
	userID := uuid.New()
	s1 := testSession(userID)
	s2 := testSession(userID)

	r.addSession(s1)
	r.addSession(s2)
	assert.True(t, r.hasSession(s1))
	assert.Len(t, r.userSessions(userID), 2)

	present, last := r.removeSession(s1)
	assert.True(t, present)
	assert.False(t, last)

	present, last = r.removeSession(s2)
	assert.True(t, present)
	assert.True(t, last)
	assert.Empty(t, r.userSessions(userID))

	// Removing again reports absence.
	present, _ = r.removeSession(s2)
	assert.False(t, present)
}

func TestRegistrySubscribeIdempotent(t *testing.T) {
	r := newRegistry()
	convID := uuid.New()
	userID := uuid.New()

	assert.True(t, r.subscribe(convID, userID))
	assert.False(t, r.subscribe(convID, userID))
	assert.True(t, r.isSubscribed(convID, userID))

	assert.True(t, r.unsubscribe(convID, userID))
	assert.False(t, r.unsubscribe(convID, userID))
	assert.False(t, r.isSubscribed(convID, userID))
}

func TestRegistryRecipients(t *testing.T) {
	r := newRegistry()
	convID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	alicePhone := testSession(alice)
	aliceLaptop := testSession(alice)
	bobPhone := testSession(bob)
	r.addSession(alicePhone)
	r.addSession(aliceLaptop)
	r.addSession(bobPhone)

	r.subscribe(convID, alice)
	r.subscribe(convID, bob)

	all := r.recipients(convID, uuid.Nil)
	require.Len(t, all, 3)

	// Excluding a user skips every one of their sessions.
	others := r.recipients(convID, alice)
	require.Len(t, others, 1)
	assert.Equal(t, bobPhone.ID, others[0].ID)
}

func TestRegistryRecipientsSkipsOfflineSubscribers(t *testing.T) {
	r := newRegistry()
	convID := uuid.New()
	online := uuid.New()
	offline := uuid.New()

	r.addSession(testSession(online))
	r.subscribe(convID, online)
	r.subscribe(convID, offline)

	assert.Len(t, r.recipients(convID, uuid.Nil), 1)
}

func TestRegistryUserConversations(t *testing.T) {
	r := newRegistry()
	userID := uuid.New()
	conv1 := uuid.New()
	conv2 := uuid.New()

	r.subscribe(conv1, userID)
	r.subscribe(conv2, userID)
	r.subscribe(uuid.New(), uuid.New())

	assert.ElementsMatch(t, []uuid.UUID{conv1, conv2}, r.userConversations(userID))
}
