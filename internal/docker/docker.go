// Package docker wraps the narrow slice of the container runtime the
// backup engine depends on: exporting images and snapshotting volumes.
// Both operations shell out to the docker CLI and block until it exits.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultHelperImage is the image used for disposable volume snapshot
// containers when none is configured.
const DefaultHelperImage = "busybox"

type commandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// Client invokes the docker binary for image export and volume snapshots.
type Client struct {
	binary      string
	helperImage string
	logger      *slog.Logger
	run         commandRunner
}

// NewClient creates a runtime client using the default docker binary and
// helper image.
func NewClient(logger *slog.Logger) *Client {
	return NewClientWith("docker", DefaultHelperImage, logger)
}

// NewClientWith creates a runtime client with a custom docker binary path
// and volume snapshot helper image.
func NewClientWith(binary, helperImage string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if helperImage == "" {
		helperImage = DefaultHelperImage
	}
	return &Client{
		binary:      binary,
		helperImage: helperImage,
		logger:      logger.With("component", "docker"),
		run:         runCommand,
	}
}

func runCommand(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", binary, strings.Join(args, " "), err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", binary, strings.Join(args, " "), err)
	}
	return stdout.Bytes(), nil
}

// ExportImage writes the given image reference as a tar stream to destPath.
func (c *Client) ExportImage(ctx context.Context, reference, destPath string) error {
	c.logger.Debug("exporting image", "image", reference, "dest", destPath)

	if _, err := c.run(ctx, c.binary, "image", "save", "-o", destPath, reference); err != nil {
		return fmt.Errorf("export image %s: %w", reference, err)
	}
	return nil
}

// SnapshotVolume archives a named volume's contents as a tar file at
// destPath. The volume is mounted read-only into a disposable helper
// container which tars it into the destination directory.
func (c *Client) SnapshotVolume(ctx context.Context, volume, destPath string) error {
	c.logger.Debug("snapshotting volume", "volume", volume, "dest", destPath)

	abs, err := filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("resolve snapshot path %q: %w", destPath, err)
	}
	mountDir := filepath.Dir(abs)
	archiveName := filepath.Base(abs)

	args := []string{
		"run", "--rm",
		"-v", volume + ":/input:ro",
		"-v", mountDir + ":/output",
		c.helperImage,
		"tar", "-C", "/input", "-cf", "/output/" + archiveName, ".",
	}
	if _, err := c.run(ctx, c.binary, args...); err != nil {
		return fmt.Errorf("snapshot volume %s: %w", volume, err)
	}
	return nil
}
