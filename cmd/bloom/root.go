package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"bloom/internal/config"
	"bloom/internal/telemetry"
)

var exit = os.Exit

var cfgFile string
var workspaceFlag string

var rootCmd = &cobra.Command{
	Use:           "bloom",
	Short:         "Bloom drives a fleet of AI coding agents against a task graph of git repos",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to rootCmd and runs it. Called once by
// main.main.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: command execution panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n", r)
			exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./bloom.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", ".", "workspace directory (holds tasks.yaml, bloom.config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose/debug logging")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig is cobra.OnInitialize's hook: load the viper-backed flag/env
// config layer, validate it (exiting 2 on failure per §6.5), then start
// logging and metrics. Grounded on the teacher's cmd/recac/root.go
// initConfig, generalized to exit(2) rather than exit(1) on validation
// failure (§6.5 reserves exit code 2 for config/validation errors
// specifically).
func initConfig() {
	config.Load(cfgFile)

	if err := config.ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(2)
	}

	telemetry.InitLogger(viper.GetBool("verbose"), "")

	if flag.Lookup("test.v") == nil {
		go func() {
			port := viper.GetInt("metrics_port")
			if err := telemetry.StartMetricsServer(port); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to start metrics server: %v\n", err)
			}
		}()
	}
}

// workspaceDir resolves the --workspace flag to an absolute path.
func workspaceDir() (string, error) {
	return filepath.Abs(workspaceFlag)
}

// tasksPath returns <workspace>/tasks.yaml.
func tasksPath() (string, error) {
	dir, err := workspaceDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tasks.yaml"), nil
}

// reposDir returns <workspace>/repos, honoring bloom.config.yaml's
// reposDir override when set (§6.1).
func reposDir(ws config.WorkspaceConfig, workspace string) string {
	if ws.ReposDir != "" {
		return ws.ReposDir
	}
	return filepath.Join(workspace, "repos")
}

// isInteractive reports whether stdin is a terminal, gating the
// survey-based prompts `bloom ask`/`bloom interject` fall back to when no
// message argument is given (SPEC_FULL.md §6's CLI ergonomics supplement).
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
