// Package ws streams controller events to the desktop renderer.
//
// This package implements the one WebSocket endpoint the renderer keeps
// open for the lifetime of the window. Extension state changes, runtime
// status transitions, watchdog violations and update notifications all
// arrive here; commands stay on the HTTP surface.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connection banner
//   - pong: Keep-alive reply
//   - extension:state: An extension changed lifecycle state
//   - host:status: The runtime supervisor changed state
//   - host:stats: A fresh runtime stats snapshot
//   - watchdog:violation: The runtime flagged a misbehaving extension
//   - updates:available: A scheduled update check found newer versions
//
// Example Usage:
//
//	handler := ws.NewHandler(controller.Events(), logger, metrics)
//	router.GET("/stream", handler.HandleConnection)
package ws
