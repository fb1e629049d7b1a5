package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/monitoring"
	"github.com/blueprint-desktop/exthost/internal/shared/paths"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

var (
	ErrNotAPackage     = errors.New("invalid package: not a .bpx file")
	ErrInvalidArchive  = errors.New("invalid package: not a valid archive")
	ErrManifestMissing = errors.New("invalid package: manifest.json not found")
	ErrNativeSideload  = errors.New("native extensions cannot be sideloaded")
)

// StoreClient is the slice of the store API the installer needs
type StoreClient interface {
	Get(ctx context.Context, id string) (*types.StoreExtension, error)
	ResolveRelease(ctx context.Context, id, version string) (*types.StoreRelease, error)
	Download(ctx context.Context, release *types.StoreRelease) ([]byte, error)
}

// Installer implements the package pipeline: obtain archive bytes,
// validate the manifest, extract into the extensions root, write
// install metadata. Validation failures abort before any filesystem
// mutation. Registration stays with the caller.
type Installer struct {
	root    string
	store   StoreClient
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// New creates an installer rooted at the extensions directory
func New(root string, store StoreClient, log *logging.Logger) *Installer {
	return &Installer{
		root:  root,
		store: store,
		log:   log.Component("installer"),
	}
}

// WithMetrics adds metrics tracking to the installer
func (i *Installer) WithMetrics(metrics *monitoring.Metrics) *Installer {
	i.metrics = metrics
	return i
}

// InstallFromStore downloads and installs a store package. An empty
// version installs the latest release. The trust tier is community
// unless the store marks the publisher verified.
func (i *Installer) InstallFromStore(ctx context.Context, storeID, version string) (*types.Extension, error) {
	ext, err := i.installFromStore(ctx, storeID, version)
	i.record(types.SourceStore, err)
	return ext, err
}

func (i *Installer) installFromStore(ctx context.Context, storeID, version string) (*types.Extension, error) {
	listing, err := i.store.Get(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("fetch store metadata: %w", err)
	}

	verification := types.VerificationCommunity
	if listing.Verified {
		verification = types.VerificationVerified
	}

	release, err := i.store.ResolveRelease(ctx, storeID, version)
	if err != nil {
		return nil, fmt.Errorf("resolve release: %w", err)
	}

	data, err := i.store.Download(ctx, release)
	if err != nil {
		return nil, fmt.Errorf("download package: %w", err)
	}

	return i.installArchive(data, installOptions{
		Verification: verification,
		Source:       types.SourceStore,
		StoreID:      storeID,
	})
}

// InstallFromFile installs a local .bpx package as a sideload. The
// acknowledgment gate lives with the caller; this always assigns the
// sideloaded tier and rejects native-category packages outright.
func (i *Installer) InstallFromFile(path string) (*types.Extension, error) {
	ext, err := i.installFromFile(path)
	i.record(types.SourceFile, err)
	return ext, err
}

func (i *Installer) installFromFile(path string) (*types.Extension, error) {
	if !strings.HasSuffix(strings.ToLower(path), paths.PackageSuffix) {
		return nil, ErrNotAPackage
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read package: %w", err)
	}

	return i.installArchive(data, installOptions{
		Verification: types.VerificationSideloaded,
		Source:       types.SourceFile,
	})
}

// Record returns the install metadata written for an extension
func (i *Installer) Record(id string) (*types.InstallRecord, error) {
	if err := paths.ValidateExtensionID(id); err != nil {
		return nil, err
	}

	record, err := readInstallRecord(paths.For(i.root, id).Metadata())
	if err != nil {
		return nil, fmt.Errorf("read install metadata: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("no install metadata for %s", id)
	}
	return record, nil
}

// Pin records a pinned version in the install metadata so it survives
// restarts. An empty version clears the pin.
func (i *Installer) Pin(id, version string) error {
	record, err := i.Record(id)
	if err != nil {
		return err
	}

	record.PinnedVersion = version
	return writeInstallRecord(paths.For(i.root, id).Metadata(), record)
}

// Uninstall removes an extension's directory from disk
func (i *Installer) Uninstall(id string) error {
	if err := paths.ValidateExtensionID(id); err != nil {
		return err
	}

	dir := paths.For(i.root, id).Dir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("extension %s is not installed", id)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove extension directory: %w", err)
	}

	i.log.Info("Uninstalled extension", zap.String("extension_id", id))
	return nil
}

type installOptions struct {
	Verification types.Verification
	Source       string
	StoreID      string
}

// installArchive runs validation and extraction for one package
func (i *Installer) installArchive(data []byte, opts installOptions) (*types.Extension, error) {
	archive, err := openArchive(data)
	if err != nil {
		return nil, err
	}

	manifest, manifestRaw, err := archive.readManifest()
	if err != nil {
		return nil, err
	}

	if opts.Verification == types.VerificationSideloaded && manifest.Category == types.CategoryNative {
		return nil, ErrNativeSideload
	}

	layout := paths.For(i.root, manifest.ID)

	// Carry forward previous version and pin across reinstalls
	var previousVersion, pinnedVersion string
	if prev, err := readInstallRecord(layout.Metadata()); err == nil && prev != nil {
		previousVersion = prev.Version
		pinnedVersion = prev.PinnedVersion
	}

	// Everything is validated; filesystem mutation starts here with a
	// clean reinstall of the target directory
	if err := os.RemoveAll(layout.Dir()); err != nil {
		return nil, fmt.Errorf("clean previous install: %w", err)
	}

	extracted, err := archive.extractTo(layout.Dir())
	if err != nil {
		// Leave no partial install behind
		_ = os.RemoveAll(layout.Dir())
		return nil, err
	}

	now := time.Now()
	record := types.InstallRecord{
		Version:         manifest.Version,
		Verification:    opts.Verification,
		Source:          opts.Source,
		StoreID:         opts.StoreID,
		InstalledAt:     now,
		PreviousVersion: previousVersion,
		PinnedVersion:   pinnedVersion,
		ManifestHash:    hashManifest(manifestRaw),
	}
	if err := writeInstallRecord(layout.Metadata(), &record); err != nil {
		_ = os.RemoveAll(layout.Dir())
		return nil, err
	}

	if opts.Verification == types.VerificationSideloaded {
		if err := os.WriteFile(layout.Marker(), nil, 0o644); err != nil {
			_ = os.RemoveAll(layout.Dir())
			return nil, fmt.Errorf("write sideload marker: %w", err)
		}
	}

	ext := &types.Extension{
		Manifest:     *manifest,
		State:        types.StateInstalled,
		Verification: opts.Verification,
		InstalledAt:  &now,
	}
	if pinnedVersion != "" {
		pin := pinnedVersion
		ext.PinnedVersion = &pin
	}

	i.log.Info("Installed extension",
		zap.String("extension_id", manifest.ID),
		zap.String("version", manifest.Version),
		zap.String("verification", string(opts.Verification)),
		zap.String("source", opts.Source),
		zap.Int("files", extracted))
	return ext, nil
}

func (i *Installer) record(source string, err error) {
	if i.metrics != nil {
		i.metrics.RecordInstall(source, monitoring.StatusLabel(err))
	}
}

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

func writeInstallRecord(path string, record *types.InstallRecord) error {
	data, err := sonic.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode install metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write install metadata: %w", err)
	}
	return nil
}
