package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dockpack/dockpack/internal/engine"
	"github.com/spf13/cobra"
)

var (
	backupOutput           string
	backupPassphrase       string
	backupAllowUnencrypted bool
	backupSkipImages       bool
	backupAllImages        bool
	backupEnvFiles         []string
	backupCompression      string
	backupProgress         bool
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup [PROJECT]",
		Short: "Back up a running compose project into a self-extracting archive",
		Long: `Back up a running Docker Compose project. The project is resolved through
the compose CLI, so it must be known to the local daemon (running or stopped
containers both work). When no project is named, the base name of the current
directory is used, matching compose's own default project naming. Images,
named volumes, manifests, bind-mounted files, and env files are captured into
a single self-extracting executable.

Backups are encrypted with gpg when a passphrase is given via --passphrase
or the DOCKPACK_PASSPHRASE environment variable. Producing an unencrypted
archive requires the explicit --allow-unencrypted flag.`,
		Example: `  dockpack backup shop -o shop.bin -p secret
  DOCKPACK_PASSPHRASE=secret dockpack backup shop
  dockpack backup --allow-unencrypted
  dockpack backup shop --skip-images --env-file staging.env`,
		Args: cobra.MaximumNArgs(1),
		RunE: backupRun,
	}

	cmd.Flags().StringVarP(&backupOutput, "output", "o", "", "output file path (default PROJECT.bin)")
	cmd.Flags().StringVarP(&backupPassphrase, "passphrase", "p", "", "encryption passphrase (or DOCKPACK_PASSPHRASE)")
	cmd.Flags().BoolVar(&backupAllowUnencrypted, "allow-unencrypted", false, "permit writing an unencrypted archive")
	cmd.Flags().BoolVar(&backupSkipImages, "skip-images", false, "do not export container images")
	cmd.Flags().BoolVar(&backupAllImages, "all-images", false, "include images of stopped containers")
	cmd.Flags().StringArrayVar(&backupEnvFiles, "env-file", nil, "env file passed to compose (repeatable)")
	cmd.Flags().StringVar(&backupCompression, "compression", "", "archive compression (gzip, zstd, xz)")
	cmd.Flags().BoolVar(&backupProgress, "progress", false, "stream progress snapshots as JSON lines on stderr")

	return cmd
}

// streamProgress prints a JSON snapshot on every tracker update until the
// backup reaches a terminal phase.
func streamProgress(ctx context.Context, done <-chan struct{}) {
	enc := json.NewEncoder(os.Stderr)

	var tracker *engine.Tracker
	for tracker == nil {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-time.After(50 * time.Millisecond):
		}
		tracker = globalEngine.ActiveProgress()
	}

	for {
		snap := tracker.Snapshot()
		_ = enc.Encode(snap)
		if snap.Phase == engine.PhaseComplete || snap.Phase == engine.PhaseFailed {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-tracker.Wait():
		}
	}
}

// resolveProject returns the named project, falling back to the base name
// of the current directory when none is given.
func resolveProject(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return filepath.Base(cwd), nil
}

func backupRun(cmd *cobra.Command, args []string) error {
	project, err := resolveProject(args)
	if err != nil {
		return err
	}

	passphrase := backupPassphrase
	if passphrase == "" {
		passphrase = os.Getenv("DOCKPACK_PASSPHRASE")
	}

	output := backupOutput
	if output == "" {
		output = project + ".bin"
	}

	compression := backupCompression
	if compression == "" {
		compression = globalCfg.Backup.Compression
	}

	done := make(chan struct{})
	if backupProgress {
		go streamProgress(cmd.Context(), done)
	}

	report, err := globalEngine.Backup(cmd.Context(), engine.BackupOptions{
		Project:          project,
		OutputPath:       output,
		Passphrase:       passphrase,
		AllowUnencrypted: backupAllowUnencrypted || globalCfg.Backup.AllowUnencrypted,
		SkipImages:       backupSkipImages,
		AllImages:        backupAllImages,
		EnvFiles:         backupEnvFiles,
		Compression:      engine.Compression(compression),
	})
	close(done)
	if err != nil {
		if errors.Is(err, engine.ErrPassphraseRequired) {
			return fmt.Errorf("no passphrase given: use --passphrase, set DOCKPACK_PASSPHRASE, or pass --allow-unencrypted")
		}
		if engine.IsNotFound(err) {
			return fmt.Errorf("project %q not found: is it running? (docker compose ls)", project)
		}
		return fmt.Errorf("backup failed: %w", err)
	}

	fmt.Printf("Backup complete: %s\n", report.OutputPath)
	fmt.Printf("  Images: %d\n", report.Images)
	fmt.Printf("  Volumes: %d\n", report.Volumes)
	fmt.Printf("  Files: %d\n", report.Files)
	fmt.Printf("  Size: %s\n", formatBytes(report.Size))
	fmt.Printf("  SHA256: %s\n", report.SHA256)
	fmt.Printf("  Encrypted: %t\n", report.Encrypted)
	fmt.Printf("  Duration: %s\n", report.Duration.Round(time.Second))

	for _, skip := range report.Skips {
		fmt.Printf("  skipped %s (%s)\n", skip.Source, skip.Reason)
	}

	return nil
}
