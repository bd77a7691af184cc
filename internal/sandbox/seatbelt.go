package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// SeatbeltRuntime sandboxes children with macOS's sandbox-exec (Seatbelt).
type SeatbeltRuntime struct{}

func (SeatbeltRuntime) Name() string { return "seatbelt" }

func (SeatbeltRuntime) Available() bool {
	_, err := lookPath("sandbox-exec")
	return err == nil
}

// Wrap writes a throwaway .sb profile reflecting cfg and prepends
// `sandbox-exec -f <profile> --` ahead of cmd's original invocation.
func (SeatbeltRuntime) Wrap(cfg Config, cmd *exec.Cmd) bool {
	binPath, err := lookPath("sandbox-exec")
	if err != nil {
		return false
	}
	profilePath, err := writeSeatbeltProfile(cfg)
	if err != nil {
		return false
	}

	newArgs := []string{binPath, "-f", profilePath, "--", cmd.Path}
	newArgs = append(newArgs, cmd.Args[1:]...)

	cmd.Path = binPath
	cmd.Args = newArgs
	return true
}

func writeSeatbeltProfile(cfg Config) (string, error) {
	var b strings.Builder
	b.WriteString("(version 1)\n(allow default)\n")

	for _, p := range cfg.DenyReadPaths {
		if p == "" {
			continue
		}
		fmt.Fprintf(&b, "(deny file-read* (subpath %q))\n", p)
	}
	for _, p := range cfg.writablePaths() {
		if p == "" {
			continue
		}
		fmt.Fprintf(&b, "(allow file-write* (subpath %q))\n", p)
	}
	if cfg.NetworkPolicy == NetworkDenyAll || cfg.NetworkPolicy == NetworkAllowList {
		b.WriteString("(deny network*)\n")
		for _, d := range cfg.AllowedDomains {
			if d != "" {
				fmt.Fprintf(&b, "(allow network-outbound (remote ip \"%s:*\"))\n", d)
			}
		}
	}

	f, err := os.CreateTemp("", "bloom-sandbox-*.sb")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
