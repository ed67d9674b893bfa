// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL CHECK (role IN ('client', 'provider')),
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		profile_image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pets (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		breed TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES users(id),
		pet_id TEXT NOT NULL REFERENCES pets(id),
		last_message TEXT NOT NULL DEFAULT '',
		last_updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversation_providers (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		provider_id TEXT NOT NULL REFERENCES users(id),
		PRIMARY KEY (conversation_id, provider_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_client ON conversations(client_id);
	CREATE INDEX IF NOT EXISTS idx_conversation_providers_provider ON conversation_providers(provider_id);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateUser inserts a user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, role, first_name, last_name, profile_image_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID.String(), string(user.Role), user.FirstName, user.LastName, user.ProfileImageURL, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, role, first_name, last_name, profile_image_url, created_at
		 FROM users WHERE id = ?`, id.String())

	var u User
	var rawID, rawRole string
	err := row.Scan(&rawID, &rawRole, &u.FirstName, &u.LastName, &u.ProfileImageURL, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}
	u.Role, err = ParseRole(rawRole)
	if err != nil {
		return nil, fmt.Errorf("parsing user role: %w", err)
	}
	return &u, nil
}

// CreatePet inserts a pet record.
func (s *SQLiteStore) CreatePet(ctx context.Context, pet *Pet) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pets (id, owner_id, name, breed) VALUES (?, ?, ?, ?)`,
		pet.ID.String(), pet.OwnerID.String(), pet.Name, pet.Breed)
	if err != nil {
		return fmt.Errorf("inserting pet: %w", err)
	}
	return nil
}

// GetPet retrieves a pet by ID.
func (s *SQLiteStore) GetPet(ctx context.Context, id uuid.UUID) (*Pet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, breed FROM pets WHERE id = ?`, id.String())

	var p Pet
	var rawID, rawOwner string
	err := row.Scan(&rawID, &rawOwner, &p.Name, &p.Breed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying pet: %w", err)
	}

	if p.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parsing pet id: %w", err)
	}
	if p.OwnerID, err = uuid.Parse(rawOwner); err != nil {
		return nil, fmt.Errorf("parsing pet owner id: %w", err)
	}
	return &p, nil
}

// GetUserConversations lists conversations the user belongs to, filtered by
// role, most recently updated first.
func (s *SQLiteStore) GetUserConversations(ctx context.Context, userID uuid.UUID, role Role) ([]*Conversation, error) {
	var query string
	switch role {
	case RoleClient:
		query = `SELECT id, client_id, pet_id, last_message, last_updated_at
			 FROM conversations WHERE client_id = ?
			 ORDER BY last_updated_at DESC`
	case RoleProvider:
		query = `SELECT c.id, c.client_id, c.pet_id, c.last_message, c.last_updated_at
			 FROM conversations c
			 JOIN conversation_providers cp ON cp.conversation_id = c.id
			 WHERE cp.provider_id = ?
			 ORDER BY c.last_updated_at DESC`
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	for _, conv := range convs {
		if err := s.loadProviders(ctx, conv); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, pet_id, last_message, last_updated_at
		 FROM conversations WHERE id = ?`, id.String())

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadProviders(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateConversation creates a conversation and its provider memberships in
// a single transaction. Returns ErrNotFound if the pet does not exist.
func (s *SQLiteStore) CreateConversation(ctx context.Context, petID, clientID uuid.UUID, providerIDs []uuid.UUID) (*Conversation, error) {
	if _, err := s.GetPet(ctx, petID); err != nil {
		return nil, err
	}

	conv := &Conversation{
		ID:            uuid.New(),
		ClientID:      clientID,
		ProviderIDs:   append([]uuid.UUID(nil), providerIDs...),
		PetID:         petID,
		LastUpdatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, client_id, pet_id, last_message, last_updated_at)
		 VALUES (?, ?, ?, '', ?)`,
		conv.ID.String(), clientID.String(), petID.String(), conv.LastUpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	for _, providerID := range providerIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_providers (conversation_id, provider_id) VALUES (?, ?)`,
			conv.ID.String(), providerID.String())
		if err != nil {
			return nil, fmt.Errorf("inserting conversation provider: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing conversation: %w", err)
	}
	return conv, nil
}

// AppendMessage persists a message and bumps the conversation's last_message
// and last_updated_at in the same transaction.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*Message, error) {
	msg := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Timestamp:      time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_message = ?, last_updated_at = ? WHERE id = ?`,
		content, msg.Timestamp, conversationID.String())
	if err != nil {
		return nil, fmt.Errorf("updating conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking update: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ID.String(), conversationID.String(), senderID.String(), content, msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}
	return msg, nil
}

// PaginatedHistory returns one newest-first page of messages in chronological
// order plus the total message count.
func (s *SQLiteStore) PaginatedHistory(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]*Message, int, error) {
	if page < 0 || limit <= 0 {
		return nil, 0, fmt.Errorf("invalid pagination (page=%d, limit=%d)", page, limit)
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`,
		conversationID.String()).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting messages: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender_id, content, timestamp
		 FROM messages WHERE conversation_id = ?
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ? OFFSET ?`,
		conversationID.String(), limit, page*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		var rawID, rawConv, rawSender string
		if err := rows.Scan(&rawID, &rawConv, &rawSender, &m.Content, &m.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("scanning message: %w", err)
		}
		if m.ID, err = uuid.Parse(rawID); err != nil {
			return nil, 0, fmt.Errorf("parsing message id: %w", err)
		}
		if m.ConversationID, err = uuid.Parse(rawConv); err != nil {
			return nil, 0, fmt.Errorf("parsing conversation id: %w", err)
		}
		if m.SenderID, err = uuid.Parse(rawSender); err != nil {
			return nil, 0, fmt.Errorf("parsing sender id: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating messages: %w", err)
	}

	// Flip the newest-first window into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, total, nil
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*Conversation, error) {
	var conv Conversation
	var rawID, rawClient, rawPet string
	err := row.Scan(&rawID, &rawClient, &rawPet, &conv.LastMessage, &conv.LastUpdatedAt)
	if err != nil {
		return nil, err
	}
	if conv.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parsing conversation id: %w", err)
	}
	if conv.ClientID, err = uuid.Parse(rawClient); err != nil {
		return nil, fmt.Errorf("parsing client id: %w", err)
	}
	if conv.PetID, err = uuid.Parse(rawPet); err != nil {
		return nil, fmt.Errorf("parsing pet id: %w", err)
	}
	return &conv, nil
}

func (s *SQLiteStore) loadProviders(ctx context.Context, conv *Conversation) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider_id FROM conversation_providers WHERE conversation_id = ? ORDER BY provider_id`,
		conv.ID.String())
	if err != nil {
		return fmt.Errorf("querying conversation providers: %w", err)
	}
	defer rows.Close()

	conv.ProviderIDs = nil
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scanning provider id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing provider id: %w", err)
		}
		conv.ProviderIDs = append(conv.ProviderIDs, id)
	}
	return rows.Err()
}
