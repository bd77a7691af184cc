package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ValidateConfig checks the runtime viper layer for values that would make
// the scheduler or session manager misbehave if left unvalidated (zero or
// negative durations, an out-of-range port). Mirrors the teacher's
// validator.go's shape, trimmed to the knobs this spec actually defines.
func ValidateConfig() error {
	var errs []string

	if viper.IsSet("poll_interval_seconds") {
		if v := viper.GetInt("poll_interval_seconds"); v <= 0 {
			errs = append(errs, fmt.Sprintf("poll_interval_seconds must be positive, got: %d", v))
		}
	}
	if viper.IsSet("max_step_attempts") {
		if v := viper.GetInt("max_step_attempts"); v <= 0 {
			errs = append(errs, fmt.Sprintf("max_step_attempts must be positive, got: %d", v))
		}
	}
	if viper.IsSet("session_activity_timeout_seconds") {
		if v := viper.GetInt("session_activity_timeout_seconds"); v <= 0 {
			errs = append(errs, fmt.Sprintf("session_activity_timeout_seconds must be positive, got: %d", v))
		}
	}
	if viper.IsSet("merge_lock_poll_interval_seconds") {
		if v := viper.GetInt("merge_lock_poll_interval_seconds"); v <= 0 {
			errs = append(errs, fmt.Sprintf("merge_lock_poll_interval_seconds must be positive, got: %d", v))
		}
	}
	if viper.IsSet("merge_lock_max_wait_minutes") {
		if v := viper.GetInt("merge_lock_max_wait_minutes"); v <= 0 {
			errs = append(errs, fmt.Sprintf("merge_lock_max_wait_minutes must be positive, got: %d", v))
		}
	}
	if viper.IsSet("metrics_port") {
		if v := viper.GetInt("metrics_port"); v < 1 || v > 65535 {
			errs = append(errs, fmt.Sprintf("metrics_port must be between 1 and 65535, got: %d", v))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	msg := errs[0]
	for _, e := range errs[1:] {
		msg += "\n  " + e
	}
	return fmt.Errorf("configuration validation failed:\n  %s", msg)
}

// ValidateAndExit validates the runtime config and exits 2 (§6.5's
// config/validation error code) on failure.
func ValidateAndExit() {
	if err := ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}
