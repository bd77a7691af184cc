package session

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/events"
	"bloom/internal/queue"
	"bloom/internal/sandbox"
	"bloom/internal/session/provider"
)

// scriptProvider runs an inline shell script as the "agent CLI", letting
// tests control stdout/stderr/exit code precisely without a real agent
// binary installed.
type scriptProvider struct {
	script string
}

func (scriptProvider) Name() string { return "script" }

func (p scriptProvider) BuildCommand(ctx context.Context, _ provider.Params) (*exec.Cmd, error) {
	return exec.CommandContext(ctx, "sh", "-c", p.script), nil
}

func (scriptProvider) RejectsResumeID(exitCode int, stderr string) bool {
	return exitCode != 0 && strings.Contains(stderr, "no such session")
}

func TestRunStreamsNormalizedEventsAndCapturesSessionID(t *testing.T) {
	bus := events.New()
	sub := bus.Subscribe()
	defer sub.Close()

	m := New(bus, nil)
	script := `
echo '{"type":"system","subtype":"init","session_id":"sess-abc"}'
echo '{"type":"assistant","content":"hello there"}'
echo '{"type":"result","total_cost_usd":0.01,"duration_ms":42}'
`
	var gotSessionID string
	res, err := m.Run(context.Background(), Params{
		AgentName: "claude",
		TaskID:    "t1",
		Provider:  scriptProvider{script: script},
		OnSessionID: func(id string) {
			gotSessionID = id
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "sess-abc", res.SessionID)
	assert.Equal(t, "sess-abc", gotSessionID)

	var kinds []string
	drain := true
	for drain {
		select {
		case e := <-sub.C:
			kinds = append(kinds, string(e.Kind)+":"+e.Data["subtype"])
		case <-time.After(200 * time.Millisecond):
			drain = false
		}
	}
	assert.Contains(t, kinds, "agent:process_started:")
	assert.Contains(t, kinds, "agent:output:session")
	assert.Contains(t, kinds, "agent:output:text")
	assert.Contains(t, kinds, "agent:output:done")
	assert.Contains(t, kinds, "agent:process_ended:")
}

func TestRunRoutesSpawnThroughSandboxInstance(t *testing.T) {
	bus := events.New()
	m := New(bus, nil)

	sm := sandbox.NewManager(bus, nil, fakeAlwaysWrapsRuntime{})
	inst, err := sm.CreateInstance(context.Background(), "claude", t.TempDir(), func(c *sandbox.Config) { c.Enabled = true })
	require.NoError(t, err)

	res, err := m.Run(context.Background(), Params{
		AgentName: "claude",
		Provider:  scriptProvider{script: "echo '{\"type\":\"result\"}'"},
		Sandbox:   inst,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, inst.Sandboxed())
}

func TestRunRejectsSecondConcurrentCallForSameAgent(t *testing.T) {
	bus := events.New()
	m := New(bus, nil)

	// A script that blocks until we're done checking busy-ness.
	longScript := `
echo '{"type":"system","subtype":"init","session_id":"sess-x"}'
sleep 1
`

	go func() {
		_, _ = m.Run(context.Background(), Params{
			AgentName: "claude",
			Provider:  scriptProvider{script: longScript},
		})
	}()

	require.Eventually(t, func() bool { return m.IsBusy("claude") }, time.Second, 5*time.Millisecond)

	_, err := m.Run(context.Background(), Params{
		AgentName: "claude",
		Provider:  scriptProvider{script: "echo hi"},
	})
	assert.ErrorIs(t, err, ErrAgentBusy)
}

func TestRunEnforcesActivityTimeout(t *testing.T) {
	bus := events.New()
	m := New(bus, nil)

	res, err := m.Run(context.Background(), Params{
		AgentName:       "claude",
		Provider:        scriptProvider{script: "sleep 5"},
		ActivityTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "timeout", res.Reason)
}

func TestInterjectKillsLiveSession(t *testing.T) {
	bus := events.New()
	q, err := queue.New(t.TempDir())
	require.NoError(t, err)
	m := New(bus, q)

	done := make(chan Result, 1)
	go func() {
		res, _ := m.Run(context.Background(), Params{
			AgentName: "claude",
			Provider:  scriptProvider{script: "sleep 5"},
		})
		done <- res
	}()

	require.Eventually(t, func() bool { return m.IsBusy("claude") }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Interject("claude", "please switch to tabs"))

	select {
	case <-done:
	case <-time.After(6 * time.Second):
		t.Fatal("expected interjected session to exit promptly")
	}

	pending, err := q.PendingInterjectionsFor("claude")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "please switch to tabs", pending[0].Message)
}

func TestInterjectErrorsWhenNoLiveSession(t *testing.T) {
	m := New(events.New(), nil)
	err := m.Interject("nobody-running", "hello")
	assert.Error(t, err)
}

// fakeAlwaysWrapsRuntime reports itself as available and claims every Wrap
// call succeeded without mutating cmd, exercising the sandbox plumbing in
// TestRunRoutesSpawnThroughSandboxInstance without depending on bwrap/
// Seatbelt being installed on the test host.
type fakeAlwaysWrapsRuntime struct{}

func (fakeAlwaysWrapsRuntime) Name() string               { return "fake" }
func (fakeAlwaysWrapsRuntime) Available() bool             { return true }
func (fakeAlwaysWrapsRuntime) Wrap(sandbox.Config, *exec.Cmd) bool { return true }
