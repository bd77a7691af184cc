package sandbox

import "os/exec"

// BwrapRuntime sandboxes children with bubblewrap on Linux.
type BwrapRuntime struct{}

func (BwrapRuntime) Name() string { return "bwrap" }

func (BwrapRuntime) Available() bool {
	_, err := lookPath("bwrap")
	return err == nil
}

// Wrap prepends a bwrap invocation ahead of cmd's original path/args,
// per §4.4's writable-set and network-policy rules. Read access to the
// whole filesystem is granted read-only by default (agents need to read
// toolchains, libraries, etc. outside the workspace); writablePaths are
// re-bound read-write on top of that, and denyReadPaths are hidden.
func (BwrapRuntime) Wrap(cfg Config, cmd *exec.Cmd) bool {
	bwrapPath, err := lookPath("bwrap")
	if err != nil {
		return false
	}

	args := []string{
		"--die-with-parent",
		"--proc", "/proc",
		"--dev", "/dev",
		"--ro-bind", "/", "/",
	}
	for _, p := range cfg.writablePaths() {
		if p == "" {
			continue
		}
		args = append(args, "--bind", p, p)
	}
	for _, p := range cfg.DenyReadPaths {
		if p == "" {
			continue
		}
		// Overmount with an empty tmpfs rather than --bind: the path keeps
		// existing (so a stat doesn't fail oddly) but reads as empty.
		args = append(args, "--tmpfs", p)
	}
	if cfg.NetworkPolicy == NetworkDenyAll || cfg.NetworkPolicy == NetworkAllowList {
		// bwrap has no domain-level filtering; allow-list is enforced (if
		// at all) by a caller-supplied egress proxy outside this runtime's
		// scope, so both policies fall back to a full network namespace.
		args = append(args, "--unshare-net")
	}
	if cfg.ProcessLimit > 0 {
		args = append(args, "--unshare-pid")
	}

	newArgs := append([]string{bwrapPath}, args...)
	newArgs = append(newArgs, "--")
	newArgs = append(newArgs, cmd.Path)
	newArgs = append(newArgs, cmd.Args[1:]...)

	cmd.Path = bwrapPath
	cmd.Args = newArgs
	return true
}
