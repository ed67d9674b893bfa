// Package config handles configuration loading for pawhub.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PAWHUB_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/pawhub/server.yaml
//  3. ~/.config/pawhub/server.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${PAWHUB_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Hub timing values are written as Go duration strings:
//
//	hub:
//	  ping_interval: "54s"
//	  pong_timeout: "60s"
//	  write_timeout: "10s"
//
// Validation requires pong_timeout to be longer than ping_interval, an HTTP
// address unless Tailscale serving is enabled, and a database path.
package config
