package extension

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/shared/paths"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// LoadFromDisk scans the extensions root and registers every directory
// carrying a manifest. Directories without one are skipped with a log
// line. The side-load marker is authoritative: its presence forces
// verification to sideloaded no matter what the install metadata says.
func (r *Registry) LoadFromDisk(root string) (loaded, failed int) {
	r.log.Info("Loading extensions", zap.String("root", root))

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			r.log.Warn("Extensions root not found", zap.String("root", root))
			return 0, 0
		}
		r.log.Error("Failed to read extensions root", zap.Error(err))
		return 0, 0
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		ext, err := r.loadDir(root, entry.Name())
		if err != nil {
			r.log.Warn("Failed to load extension",
				zap.String("dir", entry.Name()),
				zap.Error(err))
			failed++
			continue
		}
		if ext == nil {
			// No manifest, not an extension directory
			r.log.Info("Skipping directory without manifest",
				zap.String("dir", entry.Name()))
			continue
		}

		r.Register(ext)
		r.log.Info("Loaded extension",
			zap.String("extension_id", ext.Manifest.ID),
			zap.String("version", ext.Manifest.Version),
			zap.String("verification", string(ext.Verification)))
		loaded++
	}

	r.log.Info("Extension load complete",
		zap.Int("loaded", loaded),
		zap.Int("failed", failed))
	return loaded, failed
}

// loadDir reads one extension directory. Returns (nil, nil) when the
// directory has no manifest.
func (r *Registry) loadDir(root, dir string) (*types.Extension, error) {
	extDir := filepath.Join(root, dir)

	data, err := os.ReadFile(filepath.Join(extDir, paths.ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest types.Manifest
	if err := sonic.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if manifest.ID == "" || manifest.Name == "" || manifest.Version == "" {
		return nil, fmt.Errorf("manifest missing required fields (id, name, version)")
	}

	ext := &types.Extension{
		Manifest: manifest,
		State:    types.StateInstalled,
		// Manually placed directories without install metadata get the
		// lowest trust tier; trust is never silently upgraded
		Verification: types.VerificationSideloaded,
	}

	if meta, err := readInstallRecord(filepath.Join(extDir, paths.MetadataFile)); err != nil {
		r.log.Warn("Ignoring unreadable install metadata",
			zap.String("extension_id", manifest.ID),
			zap.Error(err))
	} else if meta != nil {
		if meta.Verification.IsValid() {
			ext.Verification = meta.Verification
		}
		if !meta.InstalledAt.IsZero() {
			installedAt := meta.InstalledAt
			ext.InstalledAt = &installedAt
		}
		if meta.PinnedVersion != "" {
			pinned := meta.PinnedVersion
			ext.PinnedVersion = &pinned
		}
	}

	// The marker wins over metadata
	if _, err := os.Stat(filepath.Join(extDir, paths.SideloadMarker)); err == nil {
		ext.Verification = types.VerificationSideloaded
	}

	return ext, nil
}

// readInstallRecord parses install metadata; (nil, nil) when absent
func readInstallRecord(path string) (*types.InstallRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var record types.InstallRecord
	if err := sonic.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
