package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/shared/paths"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

type fakeStore struct {
	listing *types.StoreExtension
	release *types.StoreRelease
	data    []byte
}

func (f *fakeStore) Get(ctx context.Context, id string) (*types.StoreExtension, error) {
	if f.listing == nil {
		return nil, fmt.Errorf("no listing for %s", id)
	}
	return f.listing, nil
}

func (f *fakeStore) ResolveRelease(ctx context.Context, id, version string) (*types.StoreRelease, error) {
	if f.release == nil {
		return nil, fmt.Errorf("no release for %s", id)
	}
	return f.release, nil
}

func (f *fakeStore) Download(ctx context.Context, release *types.StoreRelease) ([]byte, error) {
	return f.data, nil
}

func newTestInstaller(t *testing.T, store StoreClient) (*Installer, string) {
	t.Helper()
	root := t.TempDir()
	return New(root, store, logging.NewNop()), root
}

func buildPackage(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writePackage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pkg"+paths.PackageSuffix)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func manifestJSON(id, version string) string {
	return fmt.Sprintf(`{"id":%q,"name":"Test Extension","version":%q,"entry":"index.js"}`, id, version)
}

func readRecord(t *testing.T, root, id string) *types.InstallRecord {
	t.Helper()
	data, err := os.ReadFile(paths.For(root, id).Metadata())
	require.NoError(t, err)
	var record types.InstallRecord
	require.NoError(t, sonic.Unmarshal(data, &record))
	return &record
}

func TestInstallFromFile(t *testing.T) {
	inst, root := newTestInstaller(t, nil)

	pkg := buildPackage(t, map[string]string{
		paths.ManifestFile: manifestJSON("com.acme.notes", "1.2.0"),
		"index.js":         "exports.activate = () => {};",
		"lib/helper.js":    "module.exports = {};",
	})

	ext, err := inst.InstallFromFile(writePackage(t, pkg))
	require.NoError(t, err)

	assert.Equal(t, "com.acme.notes", ext.Manifest.ID)
	assert.Equal(t, types.StateInstalled, ext.State)
	assert.Equal(t, types.VerificationSideloaded, ext.Verification)
	require.NotNil(t, ext.InstalledAt)

	layout := paths.For(root, "com.acme.notes")
	assert.FileExists(t, layout.Manifest())
	assert.FileExists(t, filepath.Join(layout.Dir(), "index.js"))
	assert.FileExists(t, filepath.Join(layout.Dir(), "lib", "helper.js"))
	assert.FileExists(t, layout.Marker())

	record := readRecord(t, root, "com.acme.notes")
	assert.Equal(t, "1.2.0", record.Version)
	assert.Equal(t, types.VerificationSideloaded, record.Verification)
	assert.Equal(t, types.SourceFile, record.Source)
	assert.NotEmpty(t, record.ManifestHash)
	assert.Empty(t, record.PreviousVersion)
}

func TestInstallFromFileRejectsWrongSuffix(t *testing.T) {
	inst, root := newTestInstaller(t, nil)

	path := filepath.Join(t.TempDir(), "ext.zip")
	require.NoError(t, os.WriteFile(path, buildPackage(t, map[string]string{
		paths.ManifestFile: manifestJSON("com.acme.notes", "1.0.0"),
	}), 0o644))

	_, err := inst.InstallFromFile(path)
	assert.ErrorIs(t, err, ErrNotAPackage)
	assertRootEmpty(t, root)
}

func TestInstallRejectsNonArchive(t *testing.T) {
	inst, root := newTestInstaller(t, nil)

	path := filepath.Join(t.TempDir(), "bogus"+paths.PackageSuffix)
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip"), 0o644))

	_, err := inst.InstallFromFile(path)
	assert.ErrorIs(t, err, ErrInvalidArchive)
	assertRootEmpty(t, root)
}

func TestInstallValidationAbortsBeforeExtraction(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"missing manifest entirely", ""},
		{"not json", "{nope"},
		{"missing id", `{"name":"X","version":"1.0.0"}`},
		{"missing name", `{"id":"com.acme.x","version":"1.0.0"}`},
		{"missing version", `{"id":"com.acme.x","name":"X"}`},
		{"bad semver", `{"id":"com.acme.x","name":"X","version":"not-a-version"}`},
		{"single segment id", `{"id":"acme","name":"X","version":"1.0.0"}`},
		{"uppercase id", `{"id":"Com.Acme.X","name":"X","version":"1.0.0"}`},
		{"unknown category", `{"id":"com.acme.x","name":"X","version":"1.0.0","category":"kernel"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, root := newTestInstaller(t, nil)

			files := map[string]string{"index.js": "// code"}
			if tt.manifest != "" {
				files[paths.ManifestFile] = tt.manifest
			}

			_, err := inst.InstallFromFile(writePackage(t, buildPackage(t, files)))
			require.Error(t, err)
			assertRootEmpty(t, root)
		})
	}
}

func TestNativeSideloadRejected(t *testing.T) {
	inst, root := newTestInstaller(t, nil)

	pkg := buildPackage(t, map[string]string{
		paths.ManifestFile: `{"id":"com.acme.driver","name":"Driver","version":"1.0.0","category":"native"}`,
		"driver.node":      "binary",
	})

	_, err := inst.InstallFromFile(writePackage(t, pkg))
	assert.ErrorIs(t, err, ErrNativeSideload)
	assertRootEmpty(t, root)
}

func TestInstallFromStore(t *testing.T) {
	tests := []struct {
		name     string
		verified bool
		want     types.Verification
	}{
		{"verified publisher", true, types.VerificationVerified},
		{"community publisher", false, types.VerificationCommunity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := buildPackage(t, map[string]string{
				paths.ManifestFile: manifestJSON("com.acme.notes", "2.0.0"),
				"index.js":         "// code",
			})
			store := &fakeStore{
				listing: &types.StoreExtension{ID: "com.acme.notes", Verified: tt.verified},
				release: &types.StoreRelease{ID: "com.acme.notes", Version: "2.0.0"},
				data:    pkg,
			}
			inst, root := newTestInstaller(t, store)

			ext, err := inst.InstallFromStore(context.Background(), "com.acme.notes", "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ext.Verification)

			record := readRecord(t, root, "com.acme.notes")
			assert.Equal(t, tt.want, record.Verification)
			assert.Equal(t, types.SourceStore, record.Source)
			assert.Equal(t, "com.acme.notes", record.StoreID)

			// Store installs never get the sideload marker
			assert.NoFileExists(t, paths.For(root, "com.acme.notes").Marker())
		})
	}
}

func TestStoreInstallAllowsNativeCategory(t *testing.T) {
	pkg := buildPackage(t, map[string]string{
		paths.ManifestFile: `{"id":"com.acme.driver","name":"Driver","version":"1.0.0","category":"native"}`,
		"driver.node":      "binary",
	})
	store := &fakeStore{
		listing: &types.StoreExtension{ID: "com.acme.driver", Verified: true},
		release: &types.StoreRelease{ID: "com.acme.driver", Version: "1.0.0"},
		data:    pkg,
	}
	inst, _ := newTestInstaller(t, store)

	ext, err := inst.InstallFromStore(context.Background(), "com.acme.driver", "")
	require.NoError(t, err)
	assert.Equal(t, types.CategoryNative, ext.Manifest.Category)
	assert.Equal(t, types.VerificationVerified, ext.Verification)
}

func TestReinstallReplacesCleanly(t *testing.T) {
	inst, root := newTestInstaller(t, nil)

	first := buildPackage(t, map[string]string{
		paths.ManifestFile: manifestJSON("com.acme.notes", "1.0.0"),
		"index.js":         "// v1",
		"old.js":           "// removed in v2",
	})
	_, err := inst.InstallFromFile(writePackage(t, first))
	require.NoError(t, err)

	second := buildPackage(t, map[string]string{
		paths.ManifestFile: manifestJSON("com.acme.notes", "2.0.0"),
		"index.js":         "// v2",
	})
	ext, err := inst.InstallFromFile(writePackage(t, second))
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", ext.Manifest.Version)

	layout := paths.For(root, "com.acme.notes")
	assert.FileExists(t, filepath.Join(layout.Dir(), "index.js"))
	assert.NoFileExists(t, filepath.Join(layout.Dir(), "old.js"))

	record := readRecord(t, root, "com.acme.notes")
	assert.Equal(t, "2.0.0", record.Version)
	assert.Equal(t, "1.0.0", record.PreviousVersion)

	// Still exactly one directory under the root
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReinstallPreservesPin(t *testing.T) {
	inst, root := newTestInstaller(t, nil)

	pkg := buildPackage(t, map[string]string{
		paths.ManifestFile: manifestJSON("com.acme.notes", "1.0.0"),
		"index.js":         "// v1",
	})
	_, err := inst.InstallFromFile(writePackage(t, pkg))
	require.NoError(t, err)

	// Simulate a pin recorded by the controller
	record := readRecord(t, root, "com.acme.notes")
	record.PinnedVersion = "1.0.0"
	data, err := sonic.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(paths.For(root, "com.acme.notes").Metadata(), data, 0o644))

	next := buildPackage(t, map[string]string{
		paths.ManifestFile: manifestJSON("com.acme.notes", "1.1.0"),
		"index.js":         "// v1.1",
	})
	ext, err := inst.InstallFromFile(writePackage(t, next))
	require.NoError(t, err)

	require.NotNil(t, ext.PinnedVersion)
	assert.Equal(t, "1.0.0", *ext.PinnedVersion)
	assert.Equal(t, "1.0.0", readRecord(t, root, "com.acme.notes").PinnedVersion)
}

func TestZipSlipRejected(t *testing.T) {
	inst, root := newTestInstaller(t, nil)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(paths.ManifestFile)
	require.NoError(t, err)
	_, err = f.Write([]byte(manifestJSON("com.acme.evil", "1.0.0")))
	require.NoError(t, err)
	f, err = w.CreateHeader(&zip.FileHeader{Name: "../escape.js"})
	require.NoError(t, err)
	_, err = f.Write([]byte("// outside"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = inst.InstallFromFile(writePackage(t, buf.Bytes()))
	require.Error(t, err)

	assert.NoFileExists(t, filepath.Join(root, "escape.js"))
	assert.NoFileExists(t, filepath.Join(root, "..", "escape.js"))
	assertRootEmpty(t, root)
}

func TestUninstall(t *testing.T) {
	inst, root := newTestInstaller(t, nil)

	pkg := buildPackage(t, map[string]string{
		paths.ManifestFile: manifestJSON("com.acme.notes", "1.0.0"),
		"index.js":         "// code",
	})
	_, err := inst.InstallFromFile(writePackage(t, pkg))
	require.NoError(t, err)

	require.NoError(t, inst.Uninstall("com.acme.notes"))
	assert.NoDirExists(t, paths.For(root, "com.acme.notes").Dir())

	err = inst.Uninstall("com.acme.notes")
	assert.ErrorContains(t, err, "not installed")
}

func assertRootEmpty(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
