// ABOUTME: Tests for the conversation access gate
// ABOUTME: Covers client, provider, and default-deny decisions

package ws

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pawhub/pawhub/internal/store"
)

func TestCanAccess(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	conv := &store.Conversation{
		ID:          uuid.New(),
		ClientID:    clientID,
		ProviderIDs: []uuid.UUID{providerID},
	}

	tests := []struct {
		name   string
		userID uuid.UUID
		role   store.Role
		want   bool
	}{
		{"client of the conversation", clientID, store.RoleClient, true},
		{"some other client", uuid.New(), store.RoleClient, false},
		{"listed provider", providerID, store.RoleProvider, true},
		{"unlisted provider", uuid.New(), store.RoleProvider, false},
		{"client id with provider role", clientID, store.RoleProvider, false},
		{"provider id with client role", providerID, store.RoleClient, false},
		{"unknown role", clientID, store.Role("admin"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.userID, tt.role, conv))
		})
	}
}
