package types

// Kind identifies a message on the runtime channel
type Kind string

// Host to runtime
const (
	KindExtensionLoad       Kind = "extension:load"
	KindExtensionActivate   Kind = "extension:activate"
	KindExtensionDeactivate Kind = "extension:deactivate"
	KindExtensionKill       Kind = "extension:kill"
	KindHostShutdown        Kind = "host:shutdown"
)

// Runtime to host
const (
	KindHostReady            Kind = "host:ready"
	KindHostCrashed          Kind = "host:crashed"
	KindExtensionLoaded      Kind = "extension:loaded"
	KindExtensionActivated   Kind = "extension:activated"
	KindExtensionDeactivated Kind = "extension:deactivated"
	KindExtensionError       Kind = "extension:error"
	KindExtensionKilled      Kind = "extension:killed"
	KindWatchdogViolation    Kind = "watchdog:violation"
	KindAPICall              Kind = "api:call"
)

// Either direction: results travel back the way the matching call came,
// and host:stats is both the host's request (call_id set) and the
// runtime's reply (same call_id, extensions payload).
const (
	KindAPIResult Kind = "api:result"
	KindAPIError  Kind = "api:error"
	KindHostStats Kind = "host:stats"
)

// Message is a single frame on the runtime channel. Kind determines
// which of the optional fields are set.
type Message struct {
	Kind        Kind               `json:"kind"`
	CallID      string             `json:"call_id,omitempty"`
	ExtensionID string             `json:"extension_id,omitempty"`
	BundlePath  string             `json:"bundle_path,omitempty"`
	Manifest    *Manifest          `json:"manifest,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Error       string             `json:"error,omitempty"`
	API         string             `json:"api,omitempty"`
	Method      string             `json:"method,omitempty"`
	Args        []interface{}      `json:"args,omitempty"`
	Result      interface{}        `json:"result,omitempty"`
	Violation   *WatchdogViolation `json:"violation,omitempty"`
	Extensions  []ExtensionStats   `json:"extensions,omitempty"`
}
