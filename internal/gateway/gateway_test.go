// ABOUTME: Tests for the gateway's HTTP surface and websocket handshake
// ABOUTME: Covers health endpoints, handshake auth, and a live message round trip

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawhub/pawhub/internal/auth"
	"github.com/pawhub/pawhub/internal/config"
	"github.com/pawhub/pawhub/internal/store"
)

func newTestGateway(t *testing.T) (*Gateway, *httptest.Server, *auth.JWTVerifier) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "localhost:0"
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Auth.JWTSecret = "test-secret"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw, err := New(cfg, logger)
	require.NoError(t, err)

	srv := httptest.NewServer(gw.httpServer.Handler)
	t.Cleanup(func() {
		srv.Close()
		_ = gw.Shutdown(context.Background())
	})

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	require.NoError(t, err)
	return gw, srv, verifier
}

func wsURL(srv *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

type frame struct {
	SenderID uuid.UUID       `json:"sender_id"`
	Event    string          `json:"event"`
	Params   json.RawMessage `json:"params"`
}

// readUntil reads frames until one matches the wanted event, skipping
// presence chatter that may arrive first.
func readUntil(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Event == event {
			return f
		}
	}
}

func sendEvent(t *testing.T, conn *websocket.Conn, senderID uuid.UUID, event string, params any) {
	t.Helper()
	rawParams, err := json.Marshal(params)
	require.NoError(t, err)
	raw, err := json.Marshal(frame{SenderID: senderID, Event: event, Params: rawParams})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func TestHealthEndpoints(t *testing.T) {
	_, srv, _ := newTestGateway(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ready")
}

func TestWebsocketRejectsMissingToken(t *testing.T) {
	_, srv, _ := newTestGateway(t)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	_, srv, _ := newTestGateway(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocketMessageRoundTrip(t *testing.T) {
	gw, srv, verifier := newTestGateway(t)
	ctx := context.Background()

	client := &store.User{ID: uuid.New(), Role: store.RoleClient, FirstName: "Avery", LastName: "Quinn"}
	provider := &store.User{ID: uuid.New(), Role: store.RoleProvider, FirstName: "Sam", LastName: "Vet"}
	require.NoError(t, gw.store.CreateUser(ctx, client))
	require.NoError(t, gw.store.CreateUser(ctx, provider))

	pet := &store.Pet{ID: uuid.New(), OwnerID: client.ID, Name: "Biscuit"}
	require.NoError(t, gw.store.CreatePet(ctx, pet))

	conv, err := gw.store.CreateConversation(ctx, pet.ID, client.ID, []uuid.UUID{provider.ID})
	require.NoError(t, err)

	clientToken, err := verifier.Generate(auth.Identity{UserID: client.ID, Role: client.Role}, time.Hour)
	require.NoError(t, err)
	providerToken, err := verifier.Generate(auth.Identity{UserID: provider.ID, Role: provider.Role}, time.Hour)
	require.NoError(t, err)

	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, clientToken), nil)
	require.NoError(t, err)
	defer clientConn.Close()

	providerConn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, providerToken), nil)
	require.NoError(t, err)
	defer providerConn.Close()

	// The client hears the provider join before any messages flow.
	joined := readUntil(t, clientConn, "user_joined")
	var presence struct {
		UserID uuid.UUID `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(joined.Params, &presence))
	assert.Equal(t, provider.ID, presence.UserID)

	sendEvent(t, clientConn, client.ID, "send_message", map[string]any{
		"conversation_id": conv.ID,
		"content":         "hello from the wire",
	})

	for _, conn := range []*websocket.Conn{clientConn, providerConn} {
		f := readUntil(t, conn, "message_sent")
		assert.Equal(t, uuid.Nil, f.SenderID)
		var msg struct {
			ConversationID uuid.UUID `json:"conversation_id"`
			SenderID       uuid.UUID `json:"sender_id"`
			Content        string    `json:"content"`
		}
		require.NoError(t, json.Unmarshal(f.Params, &msg))
		assert.Equal(t, conv.ID, msg.ConversationID)
		assert.Equal(t, client.ID, msg.SenderID)
		assert.Equal(t, "hello from the wire", msg.Content)
	}

	// And the message was durably stored.
	msgs, total, err := gw.store.PaginatedHistory(ctx, conv.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello from the wire", msgs[0].Content)
}

func TestWebsocketBinaryFrameRejected(t *testing.T) {
	gw, srv, verifier := newTestGateway(t)
	ctx := context.Background()

	client := &store.User{ID: uuid.New(), Role: store.RoleClient, FirstName: "Avery"}
	require.NoError(t, gw.store.CreateUser(ctx, client))
	token, err := verifier.Generate(auth.Identity{UserID: client.ID, Role: client.Role}, time.Hour)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))

	f := readUntil(t, conn, "error")
	var p struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(f.Params, &p))
	assert.Contains(t, p.Message, "binary")
}
