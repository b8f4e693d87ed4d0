package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ErrProjectNotFound indicates no known compose project matched the
// requested name exactly.
var ErrProjectNotFound = errors.New("project not found")

// commandRunner executes the docker binary and returns its stdout.
// Swapped out in tests.
type commandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// CLI wraps the `docker compose` command line for project inspection.
// It does not matter which working directory the caller uses: projects are
// resolved by name through the runtime's project metadata.
type CLI struct {
	binary string
	logger *slog.Logger
	run    commandRunner
}

// NewCLI creates a compose client using the default docker binary.
func NewCLI(logger *slog.Logger) *CLI {
	return NewCLIWithBinary("docker", logger)
}

// NewCLIWithBinary creates a compose client with a custom docker binary path.
func NewCLIWithBinary(binary string, logger *slog.Logger) *CLI {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLI{
		binary: binary,
		logger: logger.With("component", "compose"),
		run:    runCommand,
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

// projectEntry is one row of `docker compose ls --format json`.
type projectEntry struct {
	Name        string `json:"Name"`
	Status      string `json:"Status"`
	ConfigFiles string `json:"ConfigFiles"`
}

// InspectOptions configures project resolution.
type InspectOptions struct {
	// AllImages additionally collects the images backing currently
	// materialized containers, not just the per-service image fields.
	AllImages bool
	// EnvFiles are explicit env file paths forwarded to the interpreter
	// with --env-file.
	EnvFiles []string
}

// Inspect resolves a project name to a full descriptor: manifest files from
// the runtime's project list, the rendered document, and optionally the
// running images.
func (c *CLI) Inspect(ctx context.Context, name string, opts InspectOptions) (*Project, error) {
	files, err := c.listProjectFiles(ctx, name)
	if err != nil {
		return nil, err
	}

	doc, err := c.RenderConfig(ctx, name, files, opts.EnvFiles)
	if err != nil {
		return nil, err
	}

	var running []RunningImage
	if opts.AllImages {
		running, err = c.ListRunningImages(ctx, name, files, opts.EnvFiles)
		if err != nil {
			return nil, err
		}
	}

	c.logger.Debug("project inspected",
		"project", name,
		"manifests", len(files),
		"running_images", len(running),
	)
	return NewProject(doc, files, opts.EnvFiles, running)
}

// listProjectFiles looks up a project by exact name and returns its manifest
// file paths in the order the runtime reports them.
func (c *CLI) listProjectFiles(ctx context.Context, name string) ([]string, error) {
	args := []string{
		"compose", "ls", "--format", "json", "-a",
		"--filter", "Name=^" + name + "$",
	}
	out, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var entries []projectEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("parse project list: %w", err)
	}

	for _, e := range entries {
		// The Name filter is a regular expression, so verify exactness.
		if e.Name != name {
			continue
		}
		var files []string
		for _, f := range strings.Split(e.ConfigFiles, ",") {
			f = strings.TrimSpace(f)
			if f != "" {
				files = append(files, f)
			}
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("project %q: %w", name, ErrManifestEmpty)
		}
		return files, nil
	}
	return nil, fmt.Errorf("project %q: %w", name, ErrProjectNotFound)
}

// RenderConfig renders the normalized, non-interpolated configuration
// document for the given manifest set.
func (c *CLI) RenderConfig(ctx context.Context, name string, manifestFiles, envFiles []string) (*Document, error) {
	args := projectArgs(name, manifestFiles, envFiles)
	args = append(args, "config", "--no-interpolate", "--format", "json")

	out, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("parse rendered config: %w", err)
	}
	return &doc, nil
}

// ListRunningImages returns the images backing the project's materialized
// containers as repository:tag pairs.
func (c *CLI) ListRunningImages(ctx context.Context, name string, manifestFiles, envFiles []string) ([]RunningImage, error) {
	args := projectArgs(name, manifestFiles, envFiles)
	args = append(args, "images", "--format", "json")

	out, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("list running images: %w", err)
	}

	var images []RunningImage
	if err := json.Unmarshal(out, &images); err != nil {
		return nil, fmt.Errorf("parse image list: %w", err)
	}
	return images, nil
}

// projectArgs builds the common `compose -p <name> -f ... --env-file ...`
// argument prefix. Manifest order is preserved: the interpreter merges
// later files over earlier ones.
func projectArgs(name string, manifestFiles, envFiles []string) []string {
	args := []string{"compose", "-p", name}
	for _, f := range manifestFiles {
		args = append(args, "-f", f)
	}
	for _, e := range envFiles {
		args = append(args, "--env-file", e)
	}
	return args
}
