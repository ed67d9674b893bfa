// ABOUTME: Wire envelope and typed event payloads for the conversation hub
// ABOUTME: Defines inbound/outbound event names and JSON codec helpers

package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pawhub/pawhub/internal/store"
)

// Inbound event names
const (
	EventSubscribeConversation   = "subscribe_conversation"
	EventUnsubscribeConversation = "unsubscribe_conversation"
	EventNewConversation         = "new_conversation"
	EventSendMessage             = "send_message"
	EventGetConversations        = "get_conversations"
	EventGetConversationHistory  = "get_conversation_history"
)

// Outbound event names
const (
	EventSubscribed                  = "subscribed"
	EventUnsubscribed                = "unsubscribed"
	EventUserJoined                  = "user_joined"
	EventUserLeft                    = "user_left"
	EventMessageSent                 = "message_sent"
	EventConversationsList           = "conversations_list"
	EventConversationHistoryResponse = "conversation_history_response"
	EventConversationCreated         = "conversation_created"
	EventNewConversationInvitation   = "new_conversation_invitation"
	EventError                       = "error"
)

// Presence leave reasons
const (
	LeaveReasonUnsubscribed = "unsubscribed"
	LeaveReasonDisconnected = "disconnected"
)

// Envelope is the bidirectional wire frame. Server-originated events carry
// the all-zero UUID as sender_id.
type Envelope struct {
	SenderID uuid.UUID       `json:"sender_id"`
	Event    string          `json:"event"`
	Params   json.RawMessage `json:"params"`
}

// decodeEnvelope parses a raw inbound frame into an Envelope.
func decodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Event == "" {
		return nil, fmt.Errorf("missing event field")
	}
	return &env, nil
}

// encodeServerEvent marshals a server-originated envelope.
func encodeServerEvent(event string, params any) ([]byte, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s params: %w", event, err)
	}
	return json.Marshal(Envelope{
		SenderID: uuid.Nil,
		Event:    event,
		Params:   rawParams,
	})
}

// Inbound event params

type subscribeParams struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type newConversationParams struct {
	PetID     uuid.UUID   `json:"pet_id"`
	Providers []uuid.UUID `json:"providers"`
}

type sendMessageParams struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
}

type historyParams struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Page           int       `json:"page"`
	Limit          int       `json:"limit"`
}

// Outbound event payloads. Timestamps are Unix milliseconds on the wire.

type ackPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Status         string    `json:"status"`
}

type presencePayload struct {
	UserID          uuid.UUID `json:"user_id"`
	DisplayName     string    `json:"display_name"`
	ProfileImageURL string    `json:"profile_image_url"`
	ConversationID  uuid.UUID `json:"conversation_id"`
	Timestamp       int64     `json:"timestamp"`
	Reason          string    `json:"reason,omitempty"`
}

type messagePayload struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	Timestamp      int64     `json:"timestamp"`
}

type conversationPayload struct {
	ID                   uuid.UUID   `json:"id"`
	ClientID             uuid.UUID   `json:"client_id"`
	ProviderIDs          []uuid.UUID `json:"provider_ids"`
	PetID                uuid.UUID   `json:"pet_id"`
	LastMessage          string      `json:"last_message"`
	LastUpdatedTimestamp int64       `json:"last_updated_timestamp"`
}

type conversationsListPayload struct {
	Conversations []conversationPayload `json:"conversations"`
}

type historyResponsePayload struct {
	Messages   []messagePayload `json:"messages"`
	TotalCount int              `json:"total_count"`
	HasMore    bool             `json:"has_more"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func newAckPayload(conversationID uuid.UUID) ackPayload {
	return ackPayload{ConversationID: conversationID, Status: "success"}
}

func newPresencePayload(user *store.User, conversationID uuid.UUID, reason string) presencePayload {
	return presencePayload{
		UserID:          user.ID,
		DisplayName:     user.DisplayName(),
		ProfileImageURL: user.ProfileImageURL,
		ConversationID:  conversationID,
		Timestamp:       time.Now().UnixMilli(),
		Reason:          reason,
	}
}

func newMessagePayload(msg *store.Message) messagePayload {
	return messagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Timestamp:      msg.Timestamp.UnixMilli(),
	}
}

func newConversationPayload(conv *store.Conversation) conversationPayload {
	providers := conv.ProviderIDs
	if providers == nil {
		providers = []uuid.UUID{}
	}
	return conversationPayload{
		ID:                   conv.ID,
		ClientID:             conv.ClientID,
		ProviderIDs:          providers,
		PetID:                conv.PetID,
		LastMessage:          conv.LastMessage,
		LastUpdatedTimestamp: conv.LastUpdatedAt.UnixMilli(),
	}
}
