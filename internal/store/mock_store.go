// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows hub and router tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]*User
	pets          map[uuid.UUID]*Pet
	conversations map[uuid.UUID]*Conversation
	messages      map[uuid.UUID][]*Message // keyed by conversation ID

	// Err, when set, is returned by every storage operation. Lets tests
	// exercise the StorageFailure path.
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:         make(map[uuid.UUID]*User),
		pets:          make(map[uuid.UUID]*Pet),
		conversations: make(map[uuid.UUID]*Conversation),
		messages:      make(map[uuid.UUID][]*Message),
	}
}

// CreateUser stores a user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	u := *user
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = &u
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

// CreatePet stores a pet.
func (m *MockStore) CreatePet(ctx context.Context, pet *Pet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	p := *pet
	m.pets[p.ID] = &p
	return nil
}

// GetPet retrieves a pet by ID.
func (m *MockStore) GetPet(ctx context.Context, id uuid.UUID) (*Pet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	p, ok := m.pets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

// GetUserConversations lists conversations for the user filtered by role.
func (m *MockStore) GetUserConversations(ctx context.Context, userID uuid.UUID, role Role) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var convs []*Conversation
	for _, conv := range m.conversations {
		if conversationHasMember(conv, userID, role) {
			c := copyConversation(conv)
			convs = append(convs, c)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].LastUpdatedAt.After(convs[j].LastUpdatedAt)
	})
	return convs, nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(conv), nil
}

// CreateConversation creates a conversation.
func (m *MockStore) CreateConversation(ctx context.Context, petID, clientID uuid.UUID, providerIDs []uuid.UUID) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	if _, ok := m.pets[petID]; !ok {
		return nil, ErrNotFound
	}

	conv := &Conversation{
		ID:            uuid.New(),
		ClientID:      clientID,
		ProviderIDs:   append([]uuid.UUID(nil), providerIDs...),
		PetID:         petID,
		LastUpdatedAt: time.Now().UTC(),
	}
	m.conversations[conv.ID] = conv
	return copyConversation(conv), nil
}

// AppendMessage persists a message and updates the conversation summary.
func (m *MockStore) AppendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}

	msg := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Timestamp:      time.Now().UTC(),
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	conv.LastMessage = content
	conv.LastUpdatedAt = msg.Timestamp

	out := *msg
	return &out, nil
}

// PaginatedHistory pages messages newest-first, each page chronological.
func (m *MockStore) PaginatedHistory(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]*Message, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, 0, m.Err
	}

	all := m.messages[conversationID]
	total := len(all)

	// all is append-ordered (chronological); a newest-first page of size
	// limit at index page maps onto the slice [total-(page+1)*limit, total-page*limit)
	hi := total - page*limit
	if hi < 0 {
		hi = 0
	}
	lo := hi - limit
	if lo < 0 {
		lo = 0
	}

	out := make([]*Message, 0, hi-lo)
	for _, msg := range all[lo:hi] {
		c := *msg
		out = append(out, &c)
	}
	return out, total, nil
}

// Ping always succeeds unless Err is set.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Err
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}

func conversationHasMember(conv *Conversation, userID uuid.UUID, role Role) bool {
	switch role {
	case RoleClient:
		return conv.ClientID == userID
	case RoleProvider:
		for _, id := range conv.ProviderIDs {
			if id == userID {
				return true
			}
		}
	}
	return false
}

func copyConversation(conv *Conversation) *Conversation {
	c := *conv
	c.ProviderIDs = append([]uuid.UUID(nil), conv.ProviderIDs...)
	return &c
}
