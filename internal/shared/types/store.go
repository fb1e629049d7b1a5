package types

import "time"

// StoreExtension is the store's listing record for one extension
type StoreExtension struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Publisher   string     `json:"publisher,omitempty"`
	Verified    bool       `json:"verified"`
	Version     string     `json:"version"`
	Downloads   int64      `json:"downloads,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// StoreRelease resolves a concrete downloadable version of an extension
type StoreRelease struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
	Checksum    string `json:"checksum,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

// UpdateInfo describes one available update found by a check
type UpdateInfo struct {
	ExtensionID    string `json:"extension_id"`
	CurrentVersion string `json:"current_version"`
	LatestVersion  string `json:"latest_version"`
	Pinned         bool   `json:"pinned"`
}
