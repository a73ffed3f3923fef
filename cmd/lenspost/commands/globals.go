package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lenspost/lenspost/internal/config"
	"github.com/lenspost/lenspost/internal/logging"
)

// Global CLI flags
var (
	// ConfigPath is the config file; empty means config.DefaultConfigPath().
	ConfigPath string

	// Timeout bounds every command that talks to the network.
	Timeout time.Duration

	// LogLevel overrides client.log_level when set.
	LogLevel string

	// MetricsDump prints the collected metrics after the command.
	MetricsDump bool
)

// AddGlobalFlags registers the persistent flags on root.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&ConfigPath, "config", "", "Path to config file (default: ~/.lenspost/config.yaml)")
	root.PersistentFlags().DurationVar(&Timeout, "timeout", 2*time.Minute, "Overall timeout for network operations")
	root.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&MetricsDump, "metrics-dump", false, "Print pipeline metrics when the command finishes")
}

func configPath() string {
	if ConfigPath != "" {
		return ConfigPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads .env files and the config file, then sets up logging.
func loadConfig() (*config.Config, error) {
	path := configPath()
	if err := config.LoadEnv(".env", filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := cfg.Client.LogLevel
	if LogLevel != "" {
		level = LogLevel
	}
	logging.Setup(os.Stderr, cfg.Client.LogFormat, logging.ParseLevel(level))
	return cfg, nil
}

// commandContext is cancelled on SIGINT/SIGTERM or after --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if Timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// Version information (set at build time)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// GetVersion returns the version string
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

// GetCommit returns the git commit
func GetCommit() string {
	if Commit != "unknown" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				if len(setting.Value) > 8 {
					return setting.Value[:8]
				}
				return setting.Value
			}
		}
	}
	return "unknown"
}

// GetGoVersion returns the Go version
func GetGoVersion() string {
	return runtime.Version()
}
