// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Covers user/pet CRUD, conversation membership, and message pagination

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, role Role, first, last string) *User {
	t.Helper()
	u := &User{
		ID:        uuid.New(),
		Role:      role,
		FirstName: first,
		LastName:  last,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func seedPet(t *testing.T, s *SQLiteStore, owner *User, name string) *Pet {
	t.Helper()
	p := &Pet{ID: uuid.New(), OwnerID: owner.ID, Name: name, Breed: "corgi"}
	if err := s.CreatePet(context.Background(), p); err != nil {
		t.Fatalf("CreatePet failed: %v", err)
	}
	return p
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewSQLiteStoreCreatesParentDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	s.Close()
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &User{
		ID:              uuid.New(),
		Role:            RoleProvider,
		FirstName:       "Sam",
		LastName:        "Vet",
		ProfileImageURL: "https://img.example/sam.png",
	}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Role != RoleProvider {
		t.Errorf("role = %q, want %q", got.Role, RoleProvider)
	}
	if got.DisplayName() != "Sam Vet" {
		t.Errorf("display name = %q, want %q", got.DisplayName(), "Sam Vet")
	}
	if got.ProfileImageURL != u.ProfileImageURL {
		t.Errorf("profile image = %q, want %q", got.ProfileImageURL, u.ProfileImageURL)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at was not set")
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetUser(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, RoleClient, "Avery", "Quinn")
	pet := seedPet(t, s, owner, "Biscuit")

	got, err := s.GetPet(ctx, pet.ID)
	if err != nil {
		t.Fatalf("GetPet failed: %v", err)
	}
	if got.Name != "Biscuit" || got.OwnerID != owner.ID || got.Breed != "corgi" {
		t.Errorf("pet = %+v, want name=Biscuit owner=%s breed=corgi", got, owner.ID)
	}

	if _, err := s.GetPet(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateConversationUnknownPet(t *testing.T) {
	s := newTestStore(t)
	client := seedUser(t, s, RoleClient, "Avery", "Quinn")

	_, err := s.CreateConversation(context.Background(), uuid.New(), client.ID, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestConversationMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := seedUser(t, s, RoleClient, "Avery", "Quinn")
	providerA := seedUser(t, s, RoleProvider, "Sam", "Vet")
	providerB := seedUser(t, s, RoleProvider, "Blair", "Groomer")
	pet := seedPet(t, s, client, "Biscuit")

	conv, err := s.CreateConversation(ctx, pet.ID, client.ID, []uuid.UUID{providerA.ID, providerB.ID})
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.ClientID != client.ID || got.PetID != pet.ID {
		t.Errorf("conversation = %+v, want client=%s pet=%s", got, client.ID, pet.ID)
	}
	if len(got.ProviderIDs) != 2 {
		t.Fatalf("providers = %v, want 2 entries", got.ProviderIDs)
	}

	// Client sees it via the client query, each provider via the join.
	for _, tc := range []struct {
		userID uuid.UUID
		role   Role
	}{
		{client.ID, RoleClient},
		{providerA.ID, RoleProvider},
		{providerB.ID, RoleProvider},
	} {
		convs, err := s.GetUserConversations(ctx, tc.userID, tc.role)
		if err != nil {
			t.Fatalf("GetUserConversations(%s) failed: %v", tc.role, err)
		}
		if len(convs) != 1 || convs[0].ID != conv.ID {
			t.Errorf("GetUserConversations(%s) = %v, want [%s]", tc.role, convs, conv.ID)
		}
	}

	// Strangers see nothing.
	other := seedUser(t, s, RoleProvider, "Noa", "Walker")
	convs, err := s.GetUserConversations(ctx, other.ID, RoleProvider)
	if err != nil {
		t.Fatalf("GetUserConversations failed: %v", err)
	}
	if len(convs) != 0 {
		t.Errorf("stranger sees %d conversations, want 0", len(convs))
	}
}

func TestConversationsOrderedByActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := seedUser(t, s, RoleClient, "Avery", "Quinn")
	pet := seedPet(t, s, client, "Biscuit")

	older, err := s.CreateConversation(ctx, pet.ID, client.ID, nil)
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	newer, err := s.CreateConversation(ctx, pet.ID, client.ID, nil)
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	// A message in the older conversation bumps it to the top.
	time.Sleep(5 * time.Millisecond)
	if _, err := s.AppendMessage(ctx, older.ID, client.ID, "bump"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	convs, err := s.GetUserConversations(ctx, client.ID, RoleClient)
	if err != nil {
		t.Fatalf("GetUserConversations failed: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != older.ID || convs[1].ID != newer.ID {
		t.Errorf("order = [%s %s], want bumped conversation first", convs[0].ID, convs[1].ID)
	}
	if convs[0].LastMessage != "bump" {
		t.Errorf("last_message = %q, want %q", convs[0].LastMessage, "bump")
	}
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AppendMessage(context.Background(), uuid.New(), uuid.New(), "hello")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPaginatedHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := seedUser(t, s, RoleClient, "Avery", "Quinn")
	pet := seedPet(t, s, client, "Biscuit")
	conv, err := s.CreateConversation(ctx, pet.ID, client.ID, nil)
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	for i := 0; i < 45; i++ {
		if _, err := s.AppendMessage(ctx, conv.ID, client.ID, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	// Page 0 is the newest 20 messages, chronological within the page.
	msgs, total, err := s.PaginatedHistory(ctx, conv.ID, 0, 20)
	if err != nil {
		t.Fatalf("PaginatedHistory failed: %v", err)
	}
	if total != 45 {
		t.Errorf("total = %d, want 45", total)
	}
	if len(msgs) != 20 {
		t.Fatalf("got %d messages, want 20", len(msgs))
	}
	if msgs[0].Content != "msg 25" || msgs[19].Content != "msg 44" {
		t.Errorf("page 0 span = [%q, %q], want [msg 25, msg 44]", msgs[0].Content, msgs[19].Content)
	}

	// Last page is short.
	msgs, total, err = s.PaginatedHistory(ctx, conv.ID, 2, 20)
	if err != nil {
		t.Fatalf("PaginatedHistory failed: %v", err)
	}
	if total != 45 || len(msgs) != 5 {
		t.Fatalf("page 2: total=%d len=%d, want 45/5", total, len(msgs))
	}
	if msgs[0].Content != "msg 0" {
		t.Errorf("oldest message = %q, want %q", msgs[0].Content, "msg 0")
	}

	// Beyond the end is empty, not an error.
	msgs, _, err = s.PaginatedHistory(ctx, conv.ID, 5, 20)
	if err != nil {
		t.Fatalf("PaginatedHistory failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages past the end, want 0", len(msgs))
	}
}

func TestPaginatedHistoryRejectsInvalidArgs(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.PaginatedHistory(context.Background(), uuid.New(), -1, 20); err == nil {
		t.Error("negative page accepted")
	}
	if _, _, err := s.PaginatedHistory(context.Background(), uuid.New(), 0, 0); err == nil {
		t.Error("zero limit accepted")
	}
}
