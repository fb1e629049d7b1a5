// Package controller is the composition root of the extension system.
//
// It owns the registry, the runtime supervisor, the message bus, the
// installer, the store client, and the API bridge, and exposes the
// command surface the HTTP layer serves. Commands validate locally and
// return {success, ...} results; lifecycle requests are fire-and-forget
// toward the runtime, with authoritative state arriving back as bus
// events and fanning out to subscribers through the hub.
//
// The controller runs a small FSM (stopped, starting, ready, degraded)
// that mirrors the supervisor's transitions. Exhausting the restart
// ceiling parks it at stopped: the extension system becomes
// unavailable, the application keeps running.
package controller
