package paths

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Well-known file names inside an extension directory
const (
	// ManifestFile is the fixed manifest path inside a package archive
	// and inside an installed extension directory.
	ManifestFile = "manifest.json"

	// MetadataFile records install time, version, trust tier and source.
	MetadataFile = "install.json"

	// SideloadMarker is a zero-byte file whose presence, not content,
	// marks an extension as sideloaded. It overrides MetadataFile.
	SideloadMarker = ".sideloaded"

	// StorageDir holds the extension's key-value storage files.
	StorageDir = ".storage"
)

// PackageSuffix is the archive suffix install-from-file accepts
const PackageSuffix = ".bpx"

// Extension IDs are lowercase dot-separated segments (publisher.name).
// Dashes are excluded so the directory transform below cannot collide.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*(\.[a-z0-9][a-z0-9_]*)+$`)

// ValidateExtensionID checks that an id is namespaced and safe for
// directory construction.
func ValidateExtensionID(id string) error {
	if id == "" {
		return fmt.Errorf("extension ID cannot be empty")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("extension ID must be lowercase dot-separated segments: %q", id)
	}
	return nil
}

// DirName converts a manifest id into its directory name under the
// extensions root.
func DirName(id string) string {
	return strings.ReplaceAll(id, ".", "-")
}

// Extension returns filesystem paths for one installed extension
type Extension struct {
	Root string
	ID   string
}

// For returns path helpers for an extension id under a root
func For(root, id string) Extension {
	return Extension{Root: root, ID: id}
}

// Dir returns the extension's installation directory
func (e Extension) Dir() string {
	return filepath.Join(e.Root, DirName(e.ID))
}

// Manifest returns the installed manifest path
func (e Extension) Manifest() string {
	return filepath.Join(e.Dir(), ManifestFile)
}

// Metadata returns the install metadata path
func (e Extension) Metadata() string {
	return filepath.Join(e.Dir(), MetadataFile)
}

// Marker returns the sideload marker path
func (e Extension) Marker() string {
	return filepath.Join(e.Dir(), SideloadMarker)
}

// Storage returns the extension's key-value storage directory
func (e Extension) Storage() string {
	return filepath.Join(e.Dir(), StorageDir)
}

// Bundle resolves the extension's code entry point. An empty entry
// falls back to the conventional bundle name.
func (e Extension) Bundle(entry string) string {
	if entry == "" {
		entry = "index.js"
	}
	return filepath.Join(e.Dir(), entry)
}
