package sandbox

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBwrapWrapPrependsArgsAndPreservesOriginalCommand(t *testing.T) {
	if !(BwrapRuntime{}).Available() {
		t.Skip("bwrap not installed on this host")
	}

	cfg := DefaultConfig("/tmp/workspace")
	cfg.Enabled = true
	cfg.WritablePaths = []string{"/tmp/extra"}
	cfg.DenyReadPaths = []string{"/root/.ssh"}
	cfg.NetworkPolicy = NetworkDenyAll

	cmd := exec.Command("echo", "hi")
	origPath := cmd.Path
	ok := (BwrapRuntime{}).Wrap(cfg, cmd)
	require.True(t, ok)

	assert.Contains(t, cmd.Args, "--unshare-net")
	assert.Contains(t, cmd.Args, "/tmp/extra")
	assert.Contains(t, cmd.Args, "/root/.ssh")
	assert.Equal(t, origPath, cmd.Args[len(cmd.Args)-2])
	assert.Equal(t, "hi", cmd.Args[len(cmd.Args)-1])
}

func TestBwrapWrapReturnsFalseWhenUnavailable(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	defer func() { lookPath = orig }()

	cmd := exec.Command("echo", "hi")
	ok := (BwrapRuntime{}).Wrap(DefaultConfig("/tmp"), cmd)
	assert.False(t, ok)
}
