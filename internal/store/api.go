package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// List fetches the store's extension listing
func (c *Client) List(ctx context.Context) ([]types.StoreExtension, error) {
	var exts []types.StoreExtension
	if err := c.getJSON(ctx, "list", "/extensions", &exts, true); err != nil {
		return nil, err
	}
	return exts, nil
}

// Search queries the store listing
func (c *Client) Search(ctx context.Context, query string) ([]types.StoreExtension, error) {
	path := "/extensions?q=" + url.QueryEscape(query)

	var exts []types.StoreExtension
	if err := c.getJSON(ctx, "search", path, &exts, true); err != nil {
		return nil, err
	}
	return exts, nil
}

// Get fetches one store extension by id
func (c *Client) Get(ctx context.Context, id string) (*types.StoreExtension, error) {
	path := "/extensions/" + url.PathEscape(id)

	var ext types.StoreExtension
	if err := c.getJSON(ctx, "get", path, &ext, true); err != nil {
		return nil, err
	}
	return &ext, nil
}

// ResolveRelease resolves the downloadable release for an extension.
// An empty version resolves the latest release.
func (c *Client) ResolveRelease(ctx context.Context, id, version string) (*types.StoreRelease, error) {
	if version == "" {
		version = "latest"
	}
	path := fmt.Sprintf("/extensions/%s/releases/%s", url.PathEscape(id), url.PathEscape(version))

	var release types.StoreRelease
	if err := c.getJSON(ctx, "resolve", path, &release, false); err != nil {
		return nil, err
	}
	if release.DownloadURL == "" {
		return nil, fmt.Errorf("store release for %s has no download url", id)
	}
	return &release, nil
}

// Download fetches the release archive, following redirects, and
// verifies the store-supplied checksum when one is present.
func (c *Client) Download(ctx context.Context, release *types.StoreRelease) ([]byte, error) {
	resp, err := c.do(ctx, "download", func() (*resty.Response, error) {
		return c.resty.R().SetContext(ctx).Get(release.DownloadURL)
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == 404 {
		return nil, ErrNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("store returned %s", resp.Status())
	}

	data := resp.Body()
	if release.Checksum != "" {
		if err := verifyChecksum(data, release.Checksum); err != nil {
			return nil, err
		}
	}

	c.log.Info("Downloaded package",
		zap.String("store_id", release.ID),
		zap.String("version", release.Version),
		zap.Int("bytes", len(data)))
	return data, nil
}

// verifyChecksum compares the archive's sha256 against the expected
// hex digest. A "sha256:" prefix on the expected value is accepted.
func verifyChecksum(data []byte, expected string) error {
	expected = strings.TrimPrefix(strings.TrimSpace(expected), "sha256:")

	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

func unmarshal(data []byte, out interface{}) error {
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode store response: %w", err)
	}
	return nil
}
