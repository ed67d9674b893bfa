// Package store provides persistent storage for pawhub using SQLite.
//
// # Architecture
//
// The Store interface is the persistence collaborator consumed by the
// conversation hub and the bootstrap command. SQLiteStore implements it on
// modernc.org/sqlite (pure Go, no cgo) with WAL mode and foreign keys
// enabled; MockStore implements it in memory for tests.
//
// # Data Models
//
//   - User: client or provider profile (role, name, profile image)
//   - Pet: belongs to a client, anchors a conversation
//   - Conversation: one client, one or more providers, one pet, plus a
//     last_message/last_updated_at summary for listing
//   - Message: a persisted chat message
//
// # Membership
//
// A user is a member of a conversation iff they are its client or appear in
// its provider set. GetUserConversations answers the role-filtered listing,
// most recently updated first; providers are joined in from the
// conversation_providers table.
//
// # Pagination
//
// PaginatedHistory pages newest-first (page 0 holds the most recent
// messages) but returns each page in chronological order, together with the
// conversation's total message count.
package store
