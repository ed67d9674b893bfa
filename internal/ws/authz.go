// ABOUTME: Authorization gate for conversation access
// ABOUTME: Role-based membership checks consulted before any registry or storage mutation

package ws

import (
	"github.com/google/uuid"

	"github.com/pawhub/pawhub/internal/store"
)

// The wire message for rejected operations. Scripted clients match on it.
const unauthorizedMessage = "Unauthorized"

// CanAccess reports whether the user, acting in the given role, may
// subscribe to, post to, or read the conversation. A client may access
// only conversations where they are the client; a provider only those
// where they appear in the provider set. Unknown roles are denied.
func CanAccess(userID uuid.UUID, role store.Role, conv *store.Conversation) bool {
	switch role {
	case store.RoleClient:
		return conv.ClientID == userID
	case store.RoleProvider:
		for _, id := range conv.ProviderIDs {
			if id == userID {
				return true
			}
		}
		return false
	default:
		return false
	}
}
