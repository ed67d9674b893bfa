// ABOUTME: Store interface and data types for pawhub persistence
// ABOUTME: Defines User, Pet, Conversation, Message structs and the Store interface

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Role identifies which side of the marketplace a user is on.
// Roles arrive as free text on tokens and are narrowed to this closed
// type at the parse boundary; authorization logic never sees raw strings.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

// ParseRole converts an open role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleClient:
		return RoleClient, nil
	case RoleProvider:
		return RoleProvider, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User represents an account on either side of the marketplace.
// Registration and profile management live outside this service; the
// hub reads users only for identity and presence payloads.
type User struct {
	ID              uuid.UUID
	Role            Role
	FirstName       string
	LastName        string
	ProfileImageURL string
	CreatedAt       time.Time
}

// DisplayName composes a presentable name from the profile fields.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return "Unknown User"
	}
}

// Pet belongs to a client and anchors a conversation.
type Pet struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	Name    string
	Breed   string
}

// Conversation links one client with one or more providers around a pet.
// A user is a member iff they are the client or one of the providers.
type Conversation struct {
	ID            uuid.UUID
	ClientID      uuid.UUID
	ProviderIDs   []uuid.UUID
	PetID         uuid.UUID
	LastMessage   string
	LastUpdatedAt time.Time
}

// Message is a single persisted chat message.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
	Timestamp      time.Time
}

// Store is the persistence collaborator consumed by the conversation hub.
// The hub never owns storage; every durable effect goes through here.
type Store interface {
	// CreateUser inserts a user record. Used by bootstrap and tests.
	CreateUser(ctx context.Context, user *User) error

	// GetUser returns a user by ID, or ErrNotFound.
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	// CreatePet inserts a pet record. Used by bootstrap and tests.
	CreatePet(ctx context.Context, pet *Pet) error

	// GetPet returns a pet by ID, or ErrNotFound.
	GetPet(ctx context.Context, id uuid.UUID) (*Pet, error)

	// GetUserConversations lists the conversations the user belongs to,
	// filtered by role (client -> conversations where the user is the
	// client; provider -> where the user is among the providers), most
	// recently updated first.
	GetUserConversations(ctx context.Context, userID uuid.UUID, role Role) ([]*Conversation, error)

	// GetConversation returns a conversation by ID, or ErrNotFound.
	GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error)

	// CreateConversation creates a conversation for the given pet between
	// the client and the providers. Returns ErrNotFound if the pet does
	// not exist.
	CreateConversation(ctx context.Context, petID, clientID uuid.UUID, providerIDs []uuid.UUID) (*Conversation, error)

	// AppendMessage persists a message and updates the conversation's
	// last_message and last_updated timestamp atomically.
	AppendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*Message, error)

	// PaginatedHistory returns one page of a conversation's messages and
	// the total message count. Pages are windows over the newest-first
	// ordering (page 0 covers the most recent messages); within a page
	// messages are returned oldest to newest.
	PaginatedHistory(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]*Message, int, error)

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	Close() error
}
