// Package engine implements the backup assembly pipeline: resolve a
// running compose project to its resources, plan a collision-free staging
// layout, materialize it, and pack it behind a self-extracting header.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dockpack/dockpack/internal/compose"
	"github.com/dockpack/dockpack/internal/store"
)

// Inspector resolves a project name to a full descriptor.
type Inspector interface {
	Inspect(ctx context.Context, name string, opts compose.InspectOptions) (*compose.Project, error)
}

// Engine wires the inspector, runtime, packager, and run history together.
type Engine struct {
	inspector Inspector
	assembler *Assembler
	packager  *Packager
	templates *Templates
	// store records run history; nil disables recording.
	store  *store.Store
	logger *slog.Logger

	// HelperImage is rendered into the restore script's volume untar step.
	helperImage string

	trackerMu     sync.RWMutex
	activeTracker *Tracker
}

// New creates a backup engine.
func New(inspector Inspector, runtime Runtime, encryptor Encryptor, templates *Templates, st *store.Store, helperImage string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if helperImage == "" {
		helperImage = "busybox"
	}
	return &Engine{
		inspector:   inspector,
		assembler:   NewAssembler(runtime, logger),
		packager:    NewPackager(templates, encryptor, logger),
		templates:   templates,
		store:       st,
		helperImage: helperImage,
		logger:      logger,
	}
}

// ActiveProgress returns the tracker for the currently running backup, or
// nil. The tracker stays set after completion so observers can read the
// terminal snapshot; it is replaced when the next backup starts.
func (e *Engine) ActiveProgress() *Tracker {
	e.trackerMu.RLock()
	defer e.trackerMu.RUnlock()
	return e.activeTracker
}

// BackupOptions configures one backup invocation.
type BackupOptions struct {
	Project    string
	OutputPath string
	Passphrase string
	// AllowUnencrypted permits a missing passphrase. Without it, a missing
	// passphrase fails before any capture work begins.
	AllowUnencrypted bool
	SkipImages       bool
	AllImages        bool
	EnvFiles         []string
	Compression      Compression
}

// Report summarizes a completed backup.
type Report struct {
	Project    string
	OutputPath string
	Images     int
	Volumes    int
	Files      int
	Skips      []Skip
	Encrypted  bool
	Size       int64
	SHA256     string
	Duration   time.Duration
}

// Backup runs the whole pipeline for one project: inspect, plan, stage,
// generate the restore script, and package. Execution is strictly
// sequential; any capture, compress, or encrypt failure aborts immediately.
// The staging directory is removed on every exit path.
func (e *Engine) Backup(ctx context.Context, opts BackupOptions) (*Report, error) {
	startTime := time.Now()

	if opts.Passphrase == "" && !opts.AllowUnencrypted {
		return nil, ErrPassphraseRequired
	}
	if opts.Compression == "" {
		opts.Compression = CompressionGzip
	}
	if !opts.Compression.valid() {
		return nil, fmt.Errorf("unsupported compression %q", opts.Compression)
	}

	outputPath, err := filepath.Abs(opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	tracker := NewTracker(opts.Project)
	tracker.SetMessage("Planning backup for " + opts.Project)
	e.trackerMu.Lock()
	e.activeTracker = tracker
	e.trackerMu.Unlock()

	run := &store.BackupRun{
		Project:     opts.Project,
		OutputPath:  outputPath,
		Compression: string(opts.Compression),
		Encrypted:   opts.Passphrase != "",
		Status:      "running",
		StartTime:   startTime,
	}
	e.recordRun(run, false)

	report, err := e.backup(ctx, opts, outputPath, tracker)
	if err != nil {
		tracker.SetPhase(PhaseFailed)
		run.Status = "failed"
		run.ErrorMessage = err.Error()
		run.EndTime = time.Now()
		e.recordRun(run, true)
		return nil, err
	}

	tracker.SetPhase(PhaseComplete)
	run.Status = "completed"
	run.Images = report.Images
	run.Volumes = report.Volumes
	run.Files = report.Files
	run.Skipped = len(report.Skips)
	run.TotalSize = report.Size
	run.SHA256 = report.SHA256
	run.EndTime = time.Now()
	e.recordRun(run, true)

	report.Duration = time.Since(startTime)
	e.logger.Info("backup completed",
		"project", opts.Project,
		"output", outputPath,
		"size", report.Size,
		"encrypted", report.Encrypted,
		"duration", report.Duration.Truncate(time.Millisecond),
	)
	return report, nil
}

func (e *Engine) backup(ctx context.Context, opts BackupOptions, outputPath string, tracker *Tracker) (*Report, error) {
	proj, err := e.inspector.Inspect(ctx, opts.Project, compose.InspectOptions{
		AllImages: opts.AllImages,
		EnvFiles:  opts.EnvFiles,
	})
	if err != nil {
		return nil, err
	}

	plan, err := Collect(proj, CollectOptions{SkipImages: opts.SkipImages})
	if err != nil {
		return nil, err
	}
	tracker.SetTotals(len(plan.Items))
	for _, skip := range plan.Skips {
		e.logger.Warn("skipping resource", "source", skip.Source, "reason", skip.Reason)
		tracker.ItemSkipped(skip.Source, skip.Reason)
	}

	stagingDir, cleanup, err := NewStagingDir(filepath.Dir(outputPath), proj.Name())
	if err != nil {
		return nil, err
	}
	defer cleanup()

	tracker.SetPhase(PhaseCapturing)
	projectRoot := filepath.Join(stagingDir, proj.Name())
	if err := e.assembler.Materialize(ctx, plan, projectRoot, tracker); err != nil {
		return nil, err
	}

	stagedNames := make([]string, 0, len(plan.Manifests()))
	for _, m := range plan.Manifests() {
		stagedNames = append(stagedNames, filepath.Base(m.Dest))
	}
	err = e.templates.WriteRestoreScript(projectRoot, RestoreSpec{
		ProjectName: proj.Name(),
		SourceArgs:  RestoreArgs(stagedNames, proj.EnvFiles()),
		HelperImage: e.helperImage,
	})
	if err != nil {
		return nil, err
	}

	result, err := e.packager.Package(ctx, PackageOptions{
		StagingRoot: stagingDir,
		Project:     proj.Name(),
		OutputPath:  outputPath,
		Passphrase:  opts.Passphrase,
		Compression: opts.Compression,
	}, tracker)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Project:    proj.Name(),
		OutputPath: outputPath,
		Skips:      plan.Skips,
		Encrypted:  result.Encrypted,
		Size:       result.Size,
		SHA256:     result.SHA256,
	}
	for _, item := range plan.Items {
		switch item.Kind {
		case KindImage:
			report.Images++
		case KindVolume:
			report.Volumes++
		default:
			report.Files++
		}
	}
	return report, nil
}

// recordRun persists run history on a best-effort basis: history must never
// fail a backup.
func (e *Engine) recordRun(run *store.BackupRun, update bool) {
	if e.store == nil {
		return
	}
	var err error
	if update {
		err = e.store.UpdateBackupRun(run)
	} else {
		err = e.store.CreateBackupRun(run)
	}
	if err != nil {
		e.logger.Warn("failed to record backup run", "error", err)
	}
}

// IsNotFound reports whether err means the project does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, compose.ErrProjectNotFound)
}
