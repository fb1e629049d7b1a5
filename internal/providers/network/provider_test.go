package network

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueprint-desktop/exthost/internal/bridge"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
)

func fetchCall(args ...interface{}) *bridge.Call {
	return &bridge.Call{
		ID:          "call_1",
		ExtensionID: "com.acme.notes",
		Method:      "fetch",
		Args:        args,
	}
}

func TestFetchGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	p := New(logging.NewNop())
	result, err := p.Execute(context.Background(), fetchCall(srv.URL))
	require.NoError(t, err)

	res := result.(map[string]interface{})
	assert.Equal(t, http.StatusOK, res["status"])
	assert.Equal(t, `{"ok":true}`, res["body"])
	assert.Equal(t, "application/json", res["headers"].(map[string]string)["Content-Type"])
}

func TestFetchPostWithBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"q":"hello"}`, string(body))
		assert.Equal(t, "token-123", r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := New(logging.NewNop())
	result, err := p.Execute(context.Background(), fetchCall(srv.URL, map[string]interface{}{
		"method":  "post",
		"body":    `{"q":"hello"}`,
		"headers": map[string]interface{}{"X-Api-Key": "token-123"},
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, result.(map[string]interface{})["status"])
}

func TestFetchRejectsDisallowedMethod(t *testing.T) {
	p := New(logging.NewNop())

	_, err := p.Execute(context.Background(), fetchCall("http://example.com", map[string]interface{}{
		"method": "DELETE",
	}))
	assert.ErrorContains(t, err, "method not allowed")
}

func TestFetchRejectsBadScheme(t *testing.T) {
	p := New(logging.NewNop())

	_, err := p.Execute(context.Background(), fetchCall("ftp://example.com/file"))
	assert.ErrorContains(t, err, "unsupported scheme")

	_, err = p.Execute(context.Background(), fetchCall("file:///etc/passwd"))
	assert.ErrorContains(t, err, "unsupported scheme")
}

func TestFetchEnforcesBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	p := New(logging.NewNop()).WithBodyLimit(1024)
	_, err := p.Execute(context.Background(), fetchCall(srv.URL))
	assert.ErrorContains(t, err, "byte limit")
}

func TestFetchMissingURL(t *testing.T) {
	p := New(logging.NewNop())

	_, err := p.Execute(context.Background(), &bridge.Call{Method: "fetch"})
	assert.ErrorContains(t, err, "missing argument")
}

func TestUnknownNetworkMethod(t *testing.T) {
	p := New(logging.NewNop())

	_, err := p.Execute(context.Background(), &bridge.Call{Method: "socket"})
	assert.ErrorContains(t, err, "unknown network method")
}
