package installer

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/flate"

	"github.com/blueprint-desktop/exthost/internal/shared/paths"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// packageArchive wraps an opened .bpx zip
type packageArchive struct {
	reader *zip.Reader
}

// openArchive sniffs the content type before trusting the zip reader
func openArchive(data []byte) (*packageArchive, error) {
	if !mimetype.Detect(data).Is("application/zip") {
		return nil, ErrInvalidArchive
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	reader.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	return &packageArchive{reader: reader}, nil
}

// readManifest parses and validates manifest.json at the archive root
func (a *packageArchive) readManifest() (*types.Manifest, []byte, error) {
	var file *zip.File
	for _, f := range a.reader.File {
		if f.Name == paths.ManifestFile {
			file = f
			break
		}
	}
	if file == nil {
		return nil, nil, ErrManifestMissing
	}

	rc, err := file.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open manifest: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest types.Manifest
	if err := sonic.Unmarshal(raw, &manifest); err != nil {
		return nil, nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if err := validateManifest(&manifest); err != nil {
		return nil, nil, err
	}

	return &manifest, raw, nil
}

func validateManifest(m *types.Manifest) error {
	if m.ID == "" {
		return fmt.Errorf("invalid manifest: missing id")
	}
	if m.Name == "" {
		return fmt.Errorf("invalid manifest: missing name")
	}
	if m.Version == "" {
		return fmt.Errorf("invalid manifest: missing version")
	}
	if err := paths.ValidateExtensionID(m.ID); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("invalid manifest: version %q is not semver: %w", m.Version, err)
	}
	if m.Category != "" && m.Category != types.CategorySandboxed && m.Category != types.CategoryNative {
		return fmt.Errorf("invalid manifest: unknown category %q", m.Category)
	}
	return nil
}

// extractTo unpacks all archive entries under dest, rejecting any
// entry whose path would escape it
func (a *packageArchive) extractTo(dest string) (int, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("create extension directory: %w", err)
	}

	cleanDest := filepath.Clean(dest) + string(os.PathSeparator)
	extracted := 0

	for _, file := range a.reader.File {
		destPath := filepath.Join(dest, file.Name)
		if !strings.HasPrefix(destPath, cleanDest) {
			return extracted, fmt.Errorf("%w: entry %q escapes package root", ErrInvalidArchive, file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return extracted, fmt.Errorf("create directory %s: %w", file.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return extracted, fmt.Errorf("create parent for %s: %w", file.Name, err)
		}

		if err := extractFile(file, destPath); err != nil {
			return extracted, err
		}
		extracted++
	}

	return extracted, nil
}

func extractFile(file *zip.File, destPath string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", file.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", file.Name, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("extract %s: %w", file.Name, err)
	}
	return nil
}

func hashManifest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
