package types

// Result is the {success, ...} shape every public operation returns.
// Nothing panics across the command boundary; failures carry a message.
type Result struct {
	Success                bool                   `json:"success"`
	Data                   map[string]interface{} `json:"data,omitempty"`
	Error                  *string                `json:"error,omitempty"`
	RequiresAcknowledgment bool                   `json:"requires_acknowledgment,omitempty"`
}

// Event types pushed toward the UI layer
const (
	EventStateChanged     = "extension:state"
	EventViolation        = "watchdog:violation"
	EventStats            = "host:stats"
	EventHostStatus       = "host:status"
	EventUpdatesAvailable = "updates:available"
)

// Event is a notification pushed toward the UI layer
type Event struct {
	Type        string                 `json:"type"`
	ExtensionID string                 `json:"extension_id,omitempty"`
	State       ExtensionState         `json:"state,omitempty"`
	Error       *string                `json:"error,omitempty"`
	Timestamp   int64                  `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
}
