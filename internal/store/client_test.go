package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/config"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

func testConfig(url string) config.StoreConfig {
	return config.StoreConfig{
		URL:               url,
		Timeout:           5 * time.Second,
		MaxRetries:        0,
		CacheSize:         16,
		CacheTTL:          time.Minute,
		RequestsPerSecond: 1000,
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(testConfig(ts.URL), logging.NewNop()), ts
}

func TestList(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/extensions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": "acme.widget", "name": "Widget", "version": "1.2.0", "verified": false},
			{"id": "acme.theme", "name": "Theme", "version": "0.3.1", "verified": true}
		]`))
	}))

	exts, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, exts, 2)
	assert.Equal(t, "acme.widget", exts[0].ID)
	assert.True(t, exts[1].Verified)
}

func TestListCached(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`[{"id": "acme.widget", "name": "Widget", "version": "1.0.0"}]`))
	}))

	for i := 0; i < 3; i++ {
		exts, err := client.List(context.Background())
		require.NoError(t, err)
		require.Len(t, exts, 1)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSearch(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "color picker", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[{"id": "acme_labs.color_picker", "name": "Color Picker", "version": "2.0.0"}]`))
	}))

	exts, err := client.Search(context.Background(), "color picker")
	require.NoError(t, err)
	require.Len(t, exts, 1)
	assert.Equal(t, "acme_labs.color_picker", exts[0].ID)
}

func TestGetNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.Get(context.Background(), "no.such")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRelease(t *testing.T) {
	client, ts := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/extensions/acme.widget/releases/latest":
			_, _ = w.Write([]byte(`{"id": "acme.widget", "version": "2.0.0", "download_url": "/packages/acme.widget-2.0.0.bpx"}`))
		case "/extensions/acme.widget/releases/1.0.0":
			_, _ = w.Write([]byte(`{"id": "acme.widget", "version": "1.0.0", "download_url": "/packages/acme.widget-1.0.0.bpx"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	_ = ts

	latest, err := client.ResolveRelease(context.Background(), "acme.widget", "")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", latest.Version)

	pinned, err := client.ResolveRelease(context.Background(), "acme.widget", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", pinned.Version)

	_, err = client.ResolveRelease(context.Background(), "acme.widget", "9.9.9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDownloadVerifiesChecksum(t *testing.T) {
	payload := []byte("fake zip bytes")
	sum := sha256.Sum256(payload)

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))

	// Matching checksum passes
	data, err := client.Download(context.Background(), &types.StoreRelease{
		ID:          "acme.widget",
		Version:     "1.0.0",
		DownloadURL: "/packages/acme.widget.bpx",
		Checksum:    hex.EncodeToString(sum[:]),
	})
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// Prefixed checksum accepted
	_, err = client.Download(context.Background(), &types.StoreRelease{
		DownloadURL: "/packages/acme.widget.bpx",
		Checksum:    "sha256:" + hex.EncodeToString(sum[:]),
	})
	require.NoError(t, err)

	// Mismatch rejected
	_, err = client.Download(context.Background(), &types.StoreRelease{
		DownloadURL: "/packages/acme.widget.bpx",
		Checksum:    "deadbeef",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestDownloadFollowsRedirect(t *testing.T) {
	payload := []byte("archive")
	mux := http.NewServeMux()
	mux.HandleFunc("/packages/acme.widget.bpx", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cdn/acme.widget.bpx", http.StatusFound)
	})
	mux.HandleFunc("/cdn/acme.widget.bpx", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	})

	client, _ := newTestClient(t, mux)

	data, err := client.Download(context.Background(), &types.StoreRelease{
		DownloadURL: "/packages/acme.widget.bpx",
	})
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestBreakerOpensOnRepeatedServerErrors(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	// Default trip threshold is three consecutive failures
	for i := 0; i < 3; i++ {
		_, err := client.List(context.Background())
		require.Error(t, err)
	}
	hitsBefore := atomic.LoadInt32(&hits)

	_, err := client.List(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, hitsBefore, atomic.LoadInt32(&hits))
}
