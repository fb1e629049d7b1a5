package types

// InstallRequest represents a store installation request
type InstallRequest struct {
	StoreID string `json:"store_id" binding:"required"`
	Version string `json:"version,omitempty"`
}

// InstallFileRequest represents a sideload installation request
type InstallFileRequest struct {
	Path        string `json:"path" binding:"required"`
	Acknowledge bool   `json:"acknowledge"`
}

// KillRequest represents a forced extension termination request
type KillRequest struct {
	Reason string `json:"reason,omitempty"`
}

// PinRequest represents a version pin request
type PinRequest struct {
	Version string `json:"version" binding:"required"`
}

// UpdateRequest represents an update-to-version request
type UpdateRequest struct {
	Version string `json:"version,omitempty"`
}
