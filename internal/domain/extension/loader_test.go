package extension

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueprint-desktop/exthost/internal/shared/paths"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

func writeExtensionDir(t *testing.T, root, id string, manifest types.Manifest, record *types.InstallRecord, sideloadMarker bool) string {
	t.Helper()

	dir := filepath.Join(root, paths.DirName(id))
	require.NoError(t, os.MkdirAll(dir, 0o755))

	data, err := sonic.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, paths.ManifestFile), data, 0o644))

	if record != nil {
		data, err := sonic.Marshal(record)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, paths.MetadataFile), data, 0o644))
	}

	if sideloadMarker {
		require.NoError(t, os.WriteFile(filepath.Join(dir, paths.SideloadMarker), nil, 0o644))
	}

	return dir
}

func TestLoadFromDisk(t *testing.T) {
	root := t.TempDir()
	installedAt := time.Now().Add(-time.Hour).Truncate(time.Second)

	writeExtensionDir(t, root, "acme.widget", types.Manifest{
		ID:      "acme.widget",
		Name:    "Widget",
		Version: "1.2.0",
	}, &types.InstallRecord{
		Version:      "1.2.0",
		Verification: types.VerificationCommunity,
		Source:       types.SourceStore,
		StoreID:      "acme.widget",
		InstalledAt:  installedAt,
	}, false)

	writeExtensionDir(t, root, "acme.theme", types.Manifest{
		ID:      "acme.theme",
		Name:    "Theme",
		Version: "0.3.1",
	}, &types.InstallRecord{
		Version:      "0.3.1",
		Verification: types.VerificationVerified,
		Source:       types.SourceStore,
		InstalledAt:  installedAt,
	}, false)

	reg := newTestRegistry()
	loaded, failed := reg.LoadFromDisk(root)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 0, failed)

	widget, ok := reg.Get("acme.widget")
	require.True(t, ok)
	assert.Equal(t, types.StateInstalled, widget.State)
	assert.Equal(t, types.VerificationCommunity, widget.Verification)
	require.NotNil(t, widget.InstalledAt)
	assert.WithinDuration(t, installedAt, *widget.InstalledAt, time.Second)

	theme, ok := reg.Get("acme.theme")
	require.True(t, ok)
	assert.Equal(t, types.VerificationVerified, theme.Verification)
}

func TestLoadMarkerOverridesMetadata(t *testing.T) {
	root := t.TempDir()

	// Metadata claims verified but the marker is present
	writeExtensionDir(t, root, "shady.tool", types.Manifest{
		ID:      "shady.tool",
		Name:    "Shady Tool",
		Version: "9.9.9",
	}, &types.InstallRecord{
		Version:      "9.9.9",
		Verification: types.VerificationVerified,
		Source:       types.SourceFile,
		InstalledAt:  time.Now(),
	}, true)

	reg := newTestRegistry()
	loaded, failed := reg.LoadFromDisk(root)
	assert.Equal(t, 1, loaded)
	assert.Equal(t, 0, failed)

	ext, ok := reg.Get("shady.tool")
	require.True(t, ok)
	assert.Equal(t, types.VerificationSideloaded, ext.Verification)
}

func TestLoadSkipsDirectoriesWithoutManifest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-an-extension"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray-file"), []byte("x"), 0o644))

	writeExtensionDir(t, root, "acme.widget", types.Manifest{
		ID:      "acme.widget",
		Name:    "Widget",
		Version: "1.0.0",
	}, nil, false)

	reg := newTestRegistry()
	loaded, failed := reg.LoadFromDisk(root)
	assert.Equal(t, 1, loaded)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, reg.Count())
}

func TestLoadCountsInvalidManifests(t *testing.T) {
	root := t.TempDir()

	// Manifest present but not JSON
	badDir := filepath.Join(root, "broken-ext")
	require.NoError(t, os.MkdirAll(badDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, paths.ManifestFile), []byte("{nope"), 0o644))

	// Manifest missing version
	writeExtensionDir(t, root, "acme.incomplete", types.Manifest{
		ID:   "acme.incomplete",
		Name: "Incomplete",
	}, nil, false)

	reg := newTestRegistry()
	loaded, failed := reg.LoadFromDisk(root)
	assert.Equal(t, 0, loaded)
	assert.Equal(t, 2, failed)
	assert.Equal(t, 0, reg.Count())
}

func TestLoadMissingMetadataDefaultsToSideloaded(t *testing.T) {
	root := t.TempDir()

	writeExtensionDir(t, root, "manual.drop", types.Manifest{
		ID:      "manual.drop",
		Name:    "Manual Drop",
		Version: "0.1.0",
	}, nil, false)

	reg := newTestRegistry()
	loaded, _ := reg.LoadFromDisk(root)
	require.Equal(t, 1, loaded)

	ext, ok := reg.Get("manual.drop")
	require.True(t, ok)
	assert.Equal(t, types.VerificationSideloaded, ext.Verification)
	assert.Nil(t, ext.InstalledAt)
}

func TestLoadMissingRoot(t *testing.T) {
	reg := newTestRegistry()
	loaded, failed := reg.LoadFromDisk(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Equal(t, 0, loaded)
	assert.Equal(t, 0, failed)
}
