// Package gateway orchestrates the pawhub server components.
//
// # Overview
//
// The gateway owns process lifecycle: it opens storage, builds the
// conversation hub, authenticates websocket handshakes, and serves HTTP.
//
//	Gateway
//	    store        store.Store
//	    hub          *ws.Hub
//	    resolver     auth.Resolver
//	    httpServer   *http.Server
//	    tsnetServer  *tsnet.Server (optional)
//
// # Endpoints
//
//   - GET /ws: authenticated websocket handshake, upgraded and handed to
//     the hub
//   - GET /health: liveness, always 200 while the process serves
//   - GET /health/ready: readiness, 200 only when storage answers a ping
//
// # Serving Modes
//
// By default the gateway listens on a plain TCP address from
// server.http_addr. With tailscale.enabled it joins a tailnet via tsnet
// instead, optionally with Tailscale-provisioned TLS certs (https) or a
// public Funnel listener (funnel).
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx) // blocks until ctx is canceled
//
// Run shuts down gracefully on context cancellation: the HTTP server
// drains, the hub closes every live session, and the store is closed.
package gateway
