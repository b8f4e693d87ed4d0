package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dockpack/dockpack/internal/compose"
	"github.com/dockpack/dockpack/internal/config"
	"github.com/dockpack/dockpack/internal/docker"
	"github.com/dockpack/dockpack/internal/engine"
	"github.com/dockpack/dockpack/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgPath      string
	dockerBinary string
	logLevel     string
	logFormat    string
	quiet        bool
	globalCfg    *config.Config
	logger       *slog.Logger

	// Global components
	globalStore   *store.Store
	globalCompose *compose.CLI
	globalEngine  *engine.Engine
)

// initializeComponents initializes the global store, compose client, and engine
func initializeComponents() error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	// Initialize run history store. History is best-effort: an unopenable
	// database downgrades to no recording rather than blocking backups.
	dbPath := globalCfg.Store.DBPath
	if dbPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dbPath = filepath.Join(home, ".local", "share", "dockpack", "history.db")
		}
	}
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			logger.Warn("cannot create history directory", "path", dbPath, "error", err)
		} else if st, err := store.New(dbPath, logger); err != nil {
			logger.Warn("run history disabled", "path", dbPath, "error", err)
		} else {
			globalStore = st
		}
	}

	globalCompose = compose.NewCLIWithBinary(globalCfg.Docker.Binary, logger)
	runtime := docker.NewClientWith(globalCfg.Docker.Binary, globalCfg.Backup.HelperImage, logger)
	encryptor := engine.NewGPGEncryptorWithBinary(globalCfg.Backup.GPGBinary, logger)

	templates, err := engine.LoadTemplates(globalCfg.Backup.TemplatesDir)
	if err != nil {
		return fmt.Errorf("failed to load script templates: %w", err)
	}

	globalEngine = engine.New(globalCompose, runtime, encryptor, templates, globalStore,
		globalCfg.Backup.HelperImage, logger)

	logger.Debug("components initialized")
	return nil
}

// shouldSkipComponentInit checks if a command should skip component initialization
func shouldSkipComponentInit(cmdName string) bool {
	skipInitCmds := map[string]bool{
		"help":    true,
		"version": true,
		"config":  true,
		"show":    true,
		"init":    true,
	}
	return skipInitCmds[cmdName]
}

// closeStore closes the global store connection
func closeStore() {
	if globalStore != nil {
		if err := globalStore.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dockpack",
		Short: "Package a running Docker Compose project into a portable backup",
		Long: `dockpack captures everything a running Docker Compose project needs to be
moved to another host: container images, named volumes, compose manifests,
bind-mounted files, and env files. The result is a single self-extracting
executable that restores the project with one command, optionally encrypted
with a passphrase.`,
		Example: `  dockpack backup shop -o shop.bin -p secret
  dockpack backup shop --allow-unencrypted --skip-images
  dockpack inspect shop --plan
  dockpack history --project shop`,
		Version: "0.1.0",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize logging
			setupLogging()

			// Skip config loading for commands that don't need it
			if shouldSkipConfig(cmd.Name()) {
				return nil
			}

			// Load config
			if cfgPath == "" {
				var err error
				cfgPath, err = config.FindConfigFile()
				if err != nil {
					logger.Debug("config file not found, using defaults", "error", err)
				}
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			// Override with command-line flags if provided
			if dockerBinary != "" {
				globalCfg.Docker.Binary = dockerBinary
			}

			if !quiet {
				logger.Debug("config loaded", "path", cfgPath, "docker_binary", globalCfg.Docker.Binary)
			}

			// Initialize components after config is loaded
			if !shouldSkipComponentInit(cmd.Name()) {
				if err := initializeComponents(); err != nil {
					return fmt.Errorf("failed to initialize components: %w", err)
				}
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeStore()
		},
	}

	// Add persistent flags
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&dockerBinary, "docker-binary", "", "override docker binary path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	// Add subcommands
	cmd.AddCommand(
		newBackupCmd(),
		newInspectCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)

	return cmd
}

// setupLogging initializes the slog logger based on flags
func setupLogging() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if quiet {
		level = slog.LevelError
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// shouldSkipConfig checks if a command should skip config loading
func shouldSkipConfig(cmdName string) bool {
	skipConfigCmds := map[string]bool{
		"help":    true,
		"version": true,
	}
	return skipConfigCmds[cmdName]
}

// formatBytes formats a byte count into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
