// Package ws implements the real-time conversation hub and its websocket
// wire protocol.
//
// # Overview
//
// The ws package sits between the HTTP handshake layer and storage. It owns
// every live websocket session, the subscription state of every
// conversation, and the fan-out of conversation events to subscribers.
//
// # Hub
//
// The Hub is the single serialization point for membership state:
//
//	hub := ws.NewHub(store, opts, logger)
//	sess, convs, err := hub.Accept(ctx, conn, userID, role)
//
// All registry mutations and all recipient-set snapshots execute under one
// mutex, so a subscriber arriving concurrently with a broadcast can never
// race into an inconsistent recipient set. On connect, a user is
// auto-subscribed to every conversation they belong to.
//
// # Sessions
//
// Each connection runs a read pump and a write pump. Inbound events are
// processed to completion, one at a time, preserving per-session ordering.
// Outbound payloads go through a bounded queue; a session whose queue fills
// up is evicted rather than backpressuring the hub.
//
// # Wire Protocol
//
// Every frame is a JSON envelope:
//
//	{"sender_id": "<uuid>", "event": "<name>", "params": {...}}
//
// Server-originated events carry the all-zero UUID as sender_id.
//
// Inbound events: subscribe_conversation, unsubscribe_conversation,
// new_conversation, send_message, get_conversations,
// get_conversation_history.
//
// Outbound events: subscribed, unsubscribed, user_joined, user_left,
// message_sent, conversations_list, conversation_history_response,
// conversation_created, new_conversation_invitation, error.
//
// # Authorization
//
// CanAccess gates every conversation-scoped request before it touches the
// registry or storage: a client may access a conversation only as its
// client, a provider only when listed among its providers. Failures answer
// the requester with an error event and mutate nothing.
package ws
