// Package auth provides handshake authentication for pawhub.
//
// # Authentication Method
//
// Connections authenticate with JWT bearer tokens signed with HS256 using
// the configured jwt_secret. A token carries:
//
//   - sub: the user's UUID
//   - role: "client" or "provider"
//   - iat/exp: issue and expiry times
//
// # Handshake Resolution
//
// The Resolver extracts credentials from the websocket upgrade request.
// TokenResolver reads the Authorization: Bearer header; because browsers
// cannot set headers on websocket handshakes, a `token` query parameter is
// accepted as a fallback.
//
// Verification yields an Identity (user UUID plus role) which the gateway
// hands to the hub. Role strings are narrowed to the closed store.Role type
// during verification; nothing downstream handles raw role text.
package auth
