// ABOUTME: Event router translating inbound envelopes into registry and
// ABOUTME: storage effects plus their fan-out, one event at a time per session

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pawhub/pawhub/internal/store"
)

// Router processes one inbound event to completion before the session's
// read loop admits the next, which preserves per-session ordering. Every
// handler is fail-closed: a precondition failure sends one error event to
// the originating session and leaves registry and storage untouched.
type Router struct {
	hub    *Hub
	store  store.Store
	logger *slog.Logger
}

func newRouter(h *Hub, st store.Store, logger *slog.Logger) *Router {
	return &Router{
		hub:    h,
		store:  st,
		logger: logger.With("component", "router"),
	}
}

func (r *Router) dispatch(ctx context.Context, s *Session, raw []byte) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		s.sendError("malformed event envelope: " + err.Error())
		return
	}

	switch env.Event {
	case EventSubscribeConversation:
		r.handleSubscribe(ctx, s, env.Params)
	case EventUnsubscribeConversation:
		r.handleUnsubscribe(ctx, s, env.Params)
	case EventNewConversation:
		r.handleNewConversation(ctx, s, env.Params)
	case EventSendMessage:
		r.handleSendMessage(ctx, s, env.Params)
	case EventGetConversations:
		r.handleGetConversations(ctx, s)
	case EventGetConversationHistory:
		r.handleHistory(ctx, s, env.Params)
	default:
		s.sendError(fmt.Sprintf("unsupported event: %q", env.Event))
	}
}

// loadAuthorized fetches a conversation and runs the access gate for the
// session's user. On failure it has already answered the session.
func (r *Router) loadAuthorized(ctx context.Context, s *Session, params subscribeParams) (*store.Conversation, bool) {
	conv, err := r.store.GetConversation(ctx, params.ConversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError("conversation not found")
		} else {
			r.storageFailure(s, "loading conversation", err)
		}
		return nil, false
	}
	if !CanAccess(s.UserID, s.Role, conv) {
		s.sendError(unauthorizedMessage)
		return nil, false
	}
	return conv, true
}

func (r *Router) handleSubscribe(ctx context.Context, s *Session, raw json.RawMessage) {
	var params subscribeParams
	if !r.decodeParams(s, raw, &params) {
		return
	}
	if _, ok := r.loadAuthorized(ctx, s, params); !ok {
		return
	}

	newly, others := r.hub.Subscribe(params.ConversationID, s.UserID)
	s.sendEvent(EventSubscribed, newAckPayload(params.ConversationID))
	if newly {
		r.hub.notifyPresence(ctx, EventUserJoined, s.UserID, params.ConversationID, "", others)
	}
}

func (r *Router) handleUnsubscribe(ctx context.Context, s *Session, raw json.RawMessage) {
	var params subscribeParams
	if !r.decodeParams(s, raw, &params) {
		return
	}

	existed, remaining := r.hub.Unsubscribe(params.ConversationID, s.UserID)
	s.sendEvent(EventUnsubscribed, newAckPayload(params.ConversationID))
	if existed {
		r.hub.notifyPresence(ctx, EventUserLeft, s.UserID, params.ConversationID, LeaveReasonUnsubscribed, remaining)
	}
}

func (r *Router) handleNewConversation(ctx context.Context, s *Session, raw json.RawMessage) {
	var params newConversationParams
	if !r.decodeParams(s, raw, &params) {
		return
	}
	if s.Role != store.RoleClient {
		s.sendError(unauthorizedMessage)
		return
	}

	conv, err := r.store.CreateConversation(ctx, params.PetID, s.UserID, params.Providers)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError("pet not found")
		} else {
			r.storageFailure(s, "creating conversation", err)
		}
		return
	}

	clientSessions, providerSessions := r.hub.RegisterConversation(conv)
	payload := newConversationPayload(conv)

	created, err := encodeServerEvent(EventConversationCreated, payload)
	if err != nil {
		r.logger.Error("encoding conversation_created", "error", err)
		return
	}
	r.hub.deliver(clientSessions, created)

	invitation, err := encodeServerEvent(EventNewConversationInvitation, payload)
	if err != nil {
		r.logger.Error("encoding new_conversation_invitation", "error", err)
		return
	}
	for _, sessions := range providerSessions {
		r.hub.deliver(sessions, invitation)
	}
}

func (r *Router) handleSendMessage(ctx context.Context, s *Session, raw json.RawMessage) {
	var params sendMessageParams
	if !r.decodeParams(s, raw, &params) {
		return
	}
	if _, ok := r.loadAuthorized(ctx, s, subscribeParams{ConversationID: params.ConversationID}); !ok {
		return
	}

	msg, err := r.store.AppendMessage(ctx, params.ConversationID, s.UserID, params.Content)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError("conversation not found")
		} else {
			r.storageFailure(s, "persisting message", err)
		}
		return
	}

	// All subscribers, plus every one of the sender's own sessions even
	// if the sender has unsubscribed, so each of the sender's devices
	// sees its own confirmation.
	recipients := r.hub.MessageRecipients(params.ConversationID, s.UserID)
	payload, err := encodeServerEvent(EventMessageSent, newMessagePayload(msg))
	if err != nil {
		r.logger.Error("encoding message_sent", "error", err)
		return
	}
	r.hub.deliver(recipients, payload)
}

func (r *Router) handleGetConversations(ctx context.Context, s *Session) {
	convs, err := r.store.GetUserConversations(ctx, s.UserID, s.Role)
	if err != nil {
		r.storageFailure(s, "listing conversations", err)
		return
	}

	list := conversationsListPayload{Conversations: make([]conversationPayload, 0, len(convs))}
	for _, conv := range convs {
		list.Conversations = append(list.Conversations, newConversationPayload(conv))
	}
	s.sendEvent(EventConversationsList, list)
}

func (r *Router) handleHistory(ctx context.Context, s *Session, raw json.RawMessage) {
	var params historyParams
	if !r.decodeParams(s, raw, &params) {
		return
	}
	if _, ok := r.loadAuthorized(ctx, s, subscribeParams{ConversationID: params.ConversationID}); !ok {
		return
	}
	if params.Page < 0 {
		params.Page = 0
	}
	if params.Page > maxHistoryPage {
		params.Page = maxHistoryPage
	}
	if params.Limit <= 0 {
		params.Limit = defaultHistoryLimit
	}
	if params.Limit > maxHistoryLimit {
		params.Limit = maxHistoryLimit
	}

	msgs, total, err := r.store.PaginatedHistory(ctx, params.ConversationID, params.Page, params.Limit)
	if err != nil {
		r.storageFailure(s, "loading history", err)
		return
	}

	resp := historyResponsePayload{
		Messages:   make([]messagePayload, 0, len(msgs)),
		TotalCount: total,
		HasMore:    (params.Page+1)*params.Limit < total,
	}
	for _, msg := range msgs {
		resp.Messages = append(resp.Messages, newMessagePayload(msg))
	}
	s.sendEvent(EventConversationHistoryResponse, resp)
}

// Paging bounds keep (page+1)*limit and the derived storage offset well
// inside int range no matter what a client supplies.
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxHistoryPage      = 1 << 20
)

func (r *Router) decodeParams(s *Session, raw json.RawMessage, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		s.sendError("malformed params: " + err.Error())
		return false
	}
	return true
}

func (r *Router) storageFailure(s *Session, op string, err error) {
	r.logger.Error("storage failure",
		"operation", op,
		"user_id", s.UserID.String(),
		"error", err,
	)
	s.sendError("internal storage error")
}
