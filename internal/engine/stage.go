package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dockpack/dockpack/internal/fsutil"
	"github.com/dockpack/dockpack/internal/safety"
)

// Runtime is the slice of the container runtime the assembler needs:
// exporting an image and snapshotting a volume, each written to a
// caller-supplied path.
type Runtime interface {
	ExportImage(ctx context.Context, reference, destPath string) error
	SnapshotVolume(ctx context.Context, volume, destPath string) error
}

// Assembler materializes a resource plan into a staging tree.
type Assembler struct {
	runtime Runtime
	logger  *slog.Logger
}

// NewAssembler creates a staging assembler backed by the given runtime.
func NewAssembler(runtime Runtime, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		runtime: runtime,
		logger:  logger.With("component", "stage"),
	}
}

// NewStagingDir allocates a fresh temporary staging directory next to the
// output file, so the final write stays on one filesystem. The random
// suffix keeps concurrent invocations, even for the same project, from
// ever sharing a staging directory. The cleanup func removes the whole
// tree and is safe to call on every exit path.
func NewStagingDir(outputDir, project string) (string, func(), error) {
	dir, err := os.MkdirTemp(outputDir, "."+project+".*.pack.tmp")
	if err != nil {
		return "", nil, fmt.Errorf("create staging directory: %w", err)
	}
	cleanup := func() {
		_ = os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

// Materialize executes every plan item into the project root inside the
// staging directory, strictly sequentially. Any failure aborts the rest;
// nothing is retried.
func (a *Assembler) Materialize(ctx context.Context, plan *Plan, projectRoot string, tracker *Tracker) error {
	if err := os.MkdirAll(projectRoot, 0o755); err != nil {
		return fmt.Errorf("create project root: %w", err)
	}

	for _, item := range plan.Items {
		if err := ctx.Err(); err != nil {
			return err
		}

		dest, err := safety.SafeJoinUnder(projectRoot, item.Dest)
		if err != nil {
			return fmt.Errorf("destination for %s: %w", item.Source, err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("create destination directory: %w", err)
		}

		a.logger.Info("saving "+item.Kind.String(), "source", item.Source, "dest", item.Dest)

		if err := a.capture(ctx, item, dest); err != nil {
			if tracker != nil {
				tracker.ItemFailed(item.Kind.String(), item.Source, err.Error())
			}
			return err
		}
		if tracker != nil {
			tracker.ItemCompleted(item.Kind.String(), item.Source, item.Dest)
		}
	}
	return nil
}

func (a *Assembler) capture(ctx context.Context, item Item, dest string) error {
	switch item.Kind {
	case KindImage:
		if err := a.runtime.ExportImage(ctx, item.Source, dest); err != nil {
			return &ExternalToolError{Step: "export-image", Resource: item.Source, Err: err}
		}
		return nil
	case KindVolume:
		if err := a.runtime.SnapshotVolume(ctx, item.Source, dest); err != nil {
			return &ExternalToolError{Step: "snapshot-volume", Resource: item.Source, Err: err}
		}
		return nil
	case KindManifest, KindEnvFile:
		return fsutil.CopyFile(item.Source, dest)
	case KindBind:
		info, err := os.Stat(item.Source)
		if err != nil {
			return fmt.Errorf("stat bind source %s: %w", item.Source, err)
		}
		if info.IsDir() {
			return fsutil.CopyTree(item.Source, dest)
		}
		return fsutil.CopyFile(item.Source, dest)
	default:
		return fmt.Errorf("unknown plan item kind %d", item.Kind)
	}
}
