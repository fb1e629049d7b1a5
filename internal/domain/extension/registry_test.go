package extension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

func newTestRegistry() *Registry {
	return NewRegistry(logging.NewNop())
}

func entry(id, version string) *types.Extension {
	return &types.Extension{
		Manifest: types.Manifest{
			ID:      id,
			Name:    "Test Extension",
			Version: version,
		},
		State:        types.StateInstalled,
		Verification: types.VerificationCommunity,
	}
}

func TestRegisterAndGet(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(entry("acme.widget", "1.0.0"))

	ext, ok := reg.Get("acme.widget")
	require.True(t, ok)
	assert.Equal(t, "acme.widget", ext.Manifest.ID)
	assert.Equal(t, types.StateInstalled, ext.State)

	_, ok = reg.Get("acme.missing")
	assert.False(t, ok)
}

func TestRegisterReplacesSameID(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(entry("acme.widget", "1.0.0"))
	reg.Register(entry("other.tool", "0.1.0"))
	reg.Register(entry("acme.widget", "2.0.0"))

	assert.Equal(t, 2, reg.Count())

	ext, ok := reg.Get("acme.widget")
	require.True(t, ok)
	assert.Equal(t, "2.0.0", ext.Manifest.Version)

	// Replacement keeps the original listing position
	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "acme.widget", all[0].Manifest.ID)
	assert.Equal(t, "other.tool", all[1].Manifest.ID)
}

func TestAllInsertionOrder(t *testing.T) {
	reg := newTestRegistry()
	ids := []string{"zeta.last", "acme.widget", "mid.tool"}
	for _, id := range ids {
		reg.Register(entry(id, "1.0.0"))
	}

	all := reg.All()
	require.Len(t, all, 3)
	for i, id := range ids {
		assert.Equal(t, id, all[i].Manifest.ID)
	}
}

func TestUnregister(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(entry("acme.widget", "1.0.0"))
	reg.Register(entry("other.tool", "1.0.0"))

	assert.True(t, reg.Unregister("acme.widget"))
	assert.False(t, reg.Unregister("acme.widget"))
	assert.Equal(t, 1, reg.Count())

	all := reg.All()
	require.Len(t, all, 1)
	assert.Equal(t, "other.tool", all[0].Manifest.ID)
}

func TestSetState(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(entry("acme.widget", "1.0.0"))

	assert.True(t, reg.SetState("acme.widget", types.StateLoaded))
	ext, _ := reg.Get("acme.widget")
	assert.Equal(t, types.StateLoaded, ext.State)
	assert.Nil(t, ext.ActivatedAt)

	assert.True(t, reg.SetState("acme.widget", types.StateActive))
	ext, _ = reg.Get("acme.widget")
	assert.Equal(t, types.StateActive, ext.State)
	require.NotNil(t, ext.ActivatedAt)

	assert.False(t, reg.SetState("acme.missing", types.StateActive))
}

func TestSetErrorAndRecovery(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(entry("acme.widget", "1.0.0"))

	assert.True(t, reg.SetError("acme.widget", "eval exploded"))
	ext, _ := reg.Get("acme.widget")
	assert.Equal(t, types.StateError, ext.State)
	require.NotNil(t, ext.LastError)
	assert.Equal(t, "eval exploded", *ext.LastError)

	// Re-entering a healthy state clears the diagnostic
	reg.SetState("acme.widget", types.StateLoaded)
	ext, _ = reg.Get("acme.widget")
	assert.Nil(t, ext.LastError)
}

func TestSetPinned(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(entry("acme.widget", "2.0.0"))

	pin := "1.5.0"
	assert.True(t, reg.SetPinned("acme.widget", &pin))
	ext, _ := reg.Get("acme.widget")
	require.NotNil(t, ext.PinnedVersion)
	assert.Equal(t, "1.5.0", *ext.PinnedVersion)

	assert.True(t, reg.SetPinned("acme.widget", nil))
	ext, _ = reg.Get("acme.widget")
	assert.Nil(t, ext.PinnedVersion)
}

func TestGetReturnsCopy(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(entry("acme.widget", "1.0.0"))

	ext, _ := reg.Get("acme.widget")
	ext.State = types.StateKilled

	again, _ := reg.Get("acme.widget")
	assert.Equal(t, types.StateInstalled, again.State)
}

func TestCountByState(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(entry("acme.widget", "1.0.0"))
	reg.Register(entry("other.tool", "1.0.0"))
	reg.SetState("acme.widget", types.StateActive)

	assert.Equal(t, 1, reg.CountByState(types.StateActive))
	assert.Equal(t, 1, reg.CountByState(types.StateInstalled))
	assert.Equal(t, 0, reg.CountByState(types.StateKilled))
}
