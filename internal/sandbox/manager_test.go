package sandbox

import (
	"context"
	"os/exec"
	"testing"

	"bloom/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInstanceIsPassthroughWhenDisabled(t *testing.T) {
	m := NewManager(events.New(), nil)
	inst, err := m.CreateInstance(context.Background(), "claude", t.TempDir())
	require.NoError(t, err)
	assert.False(t, inst.Config().Enabled)
	assert.Nil(t, inst.runtime)
	assert.Nil(t, inst.container)
}

func TestCreateInstanceSelectsAvailableProcessRuntime(t *testing.T) {
	m := NewManager(events.New(), nil, unavailableRuntime{}, alwaysAvailableRuntime{})
	inst, err := m.CreateInstance(context.Background(), "claude", t.TempDir(), func(c *Config) { c.Enabled = true })
	require.NoError(t, err)
	assert.Equal(t, "always", inst.runtime.Name())
}

func TestCreateInstanceWarnsAndFallsBackWhenNoRuntimeAvailable(t *testing.T) {
	bus := events.New()
	sub := bus.Subscribe()
	defer sub.Close()

	m := NewManager(bus, nil, unavailableRuntime{})
	inst, err := m.CreateInstance(context.Background(), "claude", t.TempDir(), func(c *Config) { c.Enabled = true })
	require.NoError(t, err)
	assert.Nil(t, inst.runtime)
	assert.Nil(t, inst.container)

	select {
	case e := <-sub.C:
		assert.Equal(t, events.KindLog, e.Kind)
	default:
		t.Fatal("expected a fallback warning event")
	}
}

func TestCreateInstanceReplacesExisting(t *testing.T) {
	m := NewManager(events.New(), nil)
	first, err := m.CreateInstance(context.Background(), "claude", t.TempDir())
	require.NoError(t, err)

	second, err := m.CreateInstance(context.Background(), "claude", t.TempDir())
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	got, ok := m.Get("claude")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestDestroyInstanceRemovesIt(t *testing.T) {
	m := NewManager(events.New(), nil)
	_, err := m.CreateInstance(context.Background(), "claude", t.TempDir())
	require.NoError(t, err)

	m.DestroyInstance(context.Background(), "claude")
	_, ok := m.Get("claude")
	assert.False(t, ok)
}

func TestDestroyAllTearsDownEveryInstance(t *testing.T) {
	m := NewManager(events.New(), nil)
	_, err := m.CreateInstance(context.Background(), "claude", t.TempDir())
	require.NoError(t, err)
	_, err = m.CreateInstance(context.Background(), "copilot", t.TempDir())
	require.NoError(t, err)

	m.DestroyAll(context.Background())
	_, ok1 := m.Get("claude")
	_, ok2 := m.Get("copilot")
	assert.False(t, ok1)
	assert.False(t, ok2)
}

type alwaysAvailableRuntime struct{}

func (alwaysAvailableRuntime) Name() string            { return "always" }
func (alwaysAvailableRuntime) Available() bool         { return true }
func (alwaysAvailableRuntime) Wrap(Config, *exec.Cmd) bool { return true }
