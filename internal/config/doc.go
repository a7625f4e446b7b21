// Package config handles configuration loading for atende-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	whatsapp:
//	  token: "${WPP_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	session:
//	  timeout: "30m"
//	  reap_interval: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # Dashboard API and provider webhook
//
// WhatsApp provider (WPPConnect REST):
//
//	whatsapp:
//	  base_url: "http://localhost:21465"
//	  session: "atende"
//	  token: "${WPP_TOKEN}"
//	  operator_group: "120363000000000000@g.us"
//	  operator_numbers:
//	    - "5511900000001@c.us"
//
// Persistence (empty path keeps state in memory):
//
//	store:
//	  path: "/var/lib/atende/gateway.db"
//
// Redis-backed queue and claim lock (empty addr uses in-process fallbacks):
//
//	redis:
//	  addr: "localhost:6379"
//	  queue_key: "human:queue"
//	  lock_ttl: "30s"
//
// Intent detection chain, tried in order:
//
//	nlp:
//	  providers:
//	    - type: http
//	      url: "http://localhost:5005/intent"
//	      timeout: "5s"
//	    - type: keyword
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/atende/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
