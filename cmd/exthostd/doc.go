// Package main is the entry point for the Blueprint extension host.
//
// This daemon sits between the desktop renderer and third-party
// extensions. Extensions run in a separate runtime process; the host
// supervises it, proxies its API calls, and exposes the management
// surface the renderer drives.
//
// Architecture:
//
//	Renderer (desktop UI) → Extension Host → Extension Runtime (child process)
//	                                      → Extension Store (HTTPS)
//
// The host provides:
//   - REST API for extension lifecycle and installation
//   - WebSocket streaming for extension and runtime events
//   - Store browsing, updates, rollback and version pinning
//   - Crash-looping runtime supervision with capped restarts
//   - Rate limiting and request tracing
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./exthostd -port 7700 -extensions-root /var/lib/blueprint/extensions
//
//	# Development mode (colored logs, debug level)
//	./exthostd -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
