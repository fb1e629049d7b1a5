package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueprint-desktop/exthost/internal/bridge"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	return New(t.TempDir(), logging.NewNop())
}

func exec(t *testing.T, p *Provider, extID, method string, args ...interface{}) (interface{}, error) {
	t.Helper()
	return p.Execute(context.Background(), &bridge.Call{
		ID:          "call_1",
		ExtensionID: extID,
		Method:      method,
		Args:        args,
	})
}

func TestSetGetRoundTrip(t *testing.T) {
	p := newTestProvider(t)

	value := map[string]interface{}{"title": "groceries", "done": false}
	result, err := exec(t, p, "com.acme.notes", "set", "notes/current", value)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"stored": true, "key": "notes/current"}, result)

	got, err := exec(t, p, "com.acme.notes", "get", "notes/current")
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	p := newTestProvider(t)

	got, err := exec(t, p, "com.acme.notes", "get", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDelete(t *testing.T) {
	p := newTestProvider(t)

	_, err := exec(t, p, "com.acme.notes", "set", "draft", "hello")
	require.NoError(t, err)

	result, err := exec(t, p, "com.acme.notes", "delete", "draft")
	require.NoError(t, err)
	assert.Equal(t, true, result.(map[string]interface{})["deleted"])

	got, err := exec(t, p, "com.acme.notes", "get", "draft")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again reports false instead of failing
	result, err = exec(t, p, "com.acme.notes", "delete", "draft")
	require.NoError(t, err)
	assert.Equal(t, false, result.(map[string]interface{})["deleted"])
}

func TestListWithPatterns(t *testing.T) {
	p := newTestProvider(t)

	for _, key := range []string{"notes/a", "notes/b", "drafts/x", "config"} {
		_, err := exec(t, p, "com.acme.notes", "set", key, "v")
		require.NoError(t, err)
	}

	tests := []struct {
		pattern string
		want    []string
	}{
		{"**", []string{"config", "drafts/x", "notes/a", "notes/b"}},
		{"notes/*", []string{"notes/a", "notes/b"}},
		{"config", []string{"config"}},
		{"missing/*", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			result, err := exec(t, p, "com.acme.notes", "list", tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.(map[string]interface{})["keys"])
		})
	}
}

func TestListDefaultsToEverything(t *testing.T) {
	p := newTestProvider(t)

	_, err := exec(t, p, "com.acme.notes", "set", "a", 1)
	require.NoError(t, err)

	result, err := exec(t, p, "com.acme.notes", "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.(map[string]interface{})["keys"])
}

func TestListEmptyStore(t *testing.T) {
	p := newTestProvider(t)

	result, err := exec(t, p, "com.acme.notes", "list", "**")
	require.NoError(t, err)
	assert.Equal(t, []string{}, result.(map[string]interface{})["keys"])
	assert.Equal(t, 0, result.(map[string]interface{})["count"])
}

func TestExtensionsAreIsolated(t *testing.T) {
	p := newTestProvider(t)

	_, err := exec(t, p, "com.acme.notes", "set", "shared", "mine")
	require.NoError(t, err)

	got, err := exec(t, p, "com.other.tool", "get", "shared")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRejectsInvalidKeys(t *testing.T) {
	p := newTestProvider(t)

	for _, key := range []string{"../escape", "/abs", ".hidden", "a//b", "a/../b", ""} {
		t.Run(key, func(t *testing.T) {
			_, err := exec(t, p, "com.acme.notes", "set", key, "v")
			assert.Error(t, err)
		})
	}
}

func TestRejectsInvalidExtensionID(t *testing.T) {
	p := newTestProvider(t)

	_, err := exec(t, p, "../sneaky", "get", "key")
	assert.Error(t, err)
}

func TestUnknownMethod(t *testing.T) {
	p := newTestProvider(t)

	_, err := exec(t, p, "com.acme.notes", "compact")
	assert.ErrorContains(t, err, "unknown storage method")
}
