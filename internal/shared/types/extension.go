package types

import "time"

// ExtensionState represents extension lifecycle states
type ExtensionState string

const (
	StateInstalled    ExtensionState = "installed"
	StateLoaded       ExtensionState = "loaded"
	StateActive       ExtensionState = "active"
	StateError        ExtensionState = "error"
	StateKilled       ExtensionState = "killed"
	StateNotInstalled ExtensionState = "not-installed"
)

// IsValid checks if the state is a known value
func (s ExtensionState) IsValid() bool {
	switch s {
	case StateInstalled, StateLoaded, StateActive, StateError, StateKilled, StateNotInstalled:
		return true
	}
	return false
}

// Verification represents the trust tier assigned at install time.
// It is fixed when the package is installed and never silently upgraded.
type Verification string

const (
	VerificationVerified   Verification = "verified"
	VerificationCommunity  Verification = "community"
	VerificationSideloaded Verification = "sideloaded"
)

// IsValid checks if the trust tier is a known value
func (v Verification) IsValid() bool {
	switch v {
	case VerificationVerified, VerificationCommunity, VerificationSideloaded:
		return true
	}
	return false
}

// Category separates sandboxed extensions from native ones
type Category string

const (
	CategorySandboxed Category = "sandboxed"
	CategoryNative    Category = "native"
)

// Manifest is the declarative descriptor bundled with every extension
// package. ID, Name and Version are required; everything else is
// extension-defined metadata.
type Manifest struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Category    Category               `json:"category,omitempty"`
	Description string                 `json:"description,omitempty"`
	Publisher   string                 `json:"publisher,omitempty"`
	Entry       string                 `json:"entry,omitempty"`
	Permissions []string               `json:"permissions,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Extension represents one installed extension, keyed by manifest ID.
// Exactly one Extension exists per ID; later installs replace it.
type Extension struct {
	Manifest      Manifest       `json:"manifest"`
	State         ExtensionState `json:"state"`
	Verification  Verification   `json:"verification"`
	InstalledAt   *time.Time     `json:"installed_at,omitempty"`
	ActivatedAt   *time.Time     `json:"activated_at,omitempty"`
	LastError     *string        `json:"last_error,omitempty"`
	PinnedVersion *string        `json:"pinned_version,omitempty"`
}

// Install sources recorded in the install metadata
const (
	SourceStore = "store"
	SourceFile  = "file"
)

// InstallRecord is the metadata file written next to the extracted
// package contents at install time. The registry loader reads it back
// on startup; the sideload marker file still overrides Verification.
type InstallRecord struct {
	Version         string       `json:"version"`
	Verification    Verification `json:"verification"`
	Source          string       `json:"source"`
	StoreID         string       `json:"store_id,omitempty"`
	InstalledAt     time.Time    `json:"installed_at"`
	PreviousVersion string       `json:"previous_version,omitempty"`
	PinnedVersion   string       `json:"pinned_version,omitempty"`
	ManifestHash    string       `json:"manifest_hash,omitempty"`
}

// HostStatus is the supervisor's externally visible view of the
// extension runtime process.
type HostStatus struct {
	Running      bool    `json:"running"`
	Ready        bool    `json:"ready"`
	UptimeMS     int64   `json:"uptime_ms"`
	RestartCount int     `json:"restart_count"`
	LastError    *string `json:"last_error,omitempty"`
}

// WatchdogViolation describes a runtime-detected resource or behavior
// abuse signal. Never persisted, only forwarded to the UI.
type WatchdogViolation struct {
	ExtensionID string `json:"extension_id"`
	Type        string `json:"type"`
	Details     string `json:"details"`
}

// ExtensionStats is the runtime's per-extension usage snapshot,
// reported through host:stats.
type ExtensionStats struct {
	ExtensionID string `json:"extension_id"`
	State       string `json:"state"`
	EvalCount   int64  `json:"eval_count"`
	EvalTimeMS  int64  `json:"eval_time_ms"`
	Violations  int    `json:"violations"`
}
