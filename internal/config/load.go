package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load initializes the runtime/flag configuration layer: flags (bound by
// cmd/bloom) override env vars, which override a discovered config file,
// which overrides the defaults set below. This is distinct from
// WorkspaceConfig/GlobalConfig (workspace.go, global.go): those are the
// two structured documents the spec names explicitly; this viper instance
// covers everything else an invocation can be tuned with (ports,
// intervals, provider credentials sourced from .env).
//
// Grounded on the teacher's internal/config/load.go, generalized from the
// RECAC_ prefix to BLOOM_ and from the teacher's feature-orchestrator
// defaults to the scheduler/session/sandbox knobs this spec defines.
func Load(cfgFile string) {
	if err := godotenv.Load(); err != nil {
		// no .env file in the working directory; provider credentials are
		// expected from the real environment instead.
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("bloom")
	}

	viper.SetEnvPrefix("BLOOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("poll_interval_seconds", 5)
	viper.SetDefault("merge_lock_poll_interval_seconds", 5)
	viper.SetDefault("merge_lock_max_wait_minutes", 5)
	viper.SetDefault("max_step_attempts", 3)
	viper.SetDefault("session_activity_timeout_seconds", 600)
	viper.SetDefault("metrics_port", 9090)
	viper.SetDefault("verbose", false)
	viper.SetDefault("git_user_email", "bloom-agent@example.com")
	viper.SetDefault("git_user_name", "Bloom Agent")
	viper.SetDefault("origin_remote", "origin")
	viper.SetDefault("sandbox_image", "ghcr.io/bloom-agents/sandbox:latest")

	slackEnabled := os.Getenv("SLACK_BOT_TOKEN") != ""
	viper.SetDefault("notifications.slack.enabled", slackEnabled)
	viper.SetDefault("notifications.slack.channel", "#bloom")
	viper.SetDefault("notifications.slack.events", []string{
		"task:blocked", "git:merge_conflict", "merge:lock_timeout", "task:completed",
	})

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
		fmt.Fprintf(os.Stderr, "Warning: failed to read config file: %v\n", err)
	}
}
