package engine

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dockpack/dockpack/internal/fsutil"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression selects the archive compression codec. Gzip is the default;
// the self-extract header adapts its extraction pipeline to the choice.
type Compression string

const (
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionXz   Compression = "xz"
)

// Extension returns the archive file extension for the codec.
func (c Compression) Extension() string {
	switch c {
	case CompressionZstd:
		return ".tar.zst"
	case CompressionXz:
		return ".tar.xz"
	default:
		return ".tar.gz"
	}
}

// tarFlags returns the tar extraction flags the header script uses.
func (c Compression) tarFlags() string {
	switch c {
	case CompressionZstd:
		return "-x --zstd"
	case CompressionXz:
		return "-xJ"
	default:
		return "-xz"
	}
}

func (c Compression) valid() bool {
	switch c {
	case CompressionGzip, CompressionZstd, CompressionXz:
		return true
	}
	return false
}

// Encryptor symmetrically encrypts a file with a passphrase, writing the
// ciphertext to a caller-supplied path.
type Encryptor interface {
	Encrypt(ctx context.Context, srcPath, destPath, passphrase string) error
}

// Packager turns a completed staging tree into the final self-extracting
// output file: tar+compress, optional symmetric encryption, then a header
// script concatenated with the archive bytes.
type Packager struct {
	templates *Templates
	encryptor Encryptor
	logger    *slog.Logger
}

// NewPackager creates a packager.
func NewPackager(templates *Templates, encryptor Encryptor, logger *slog.Logger) *Packager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Packager{
		templates: templates,
		encryptor: encryptor,
		logger:    logger.With("component", "package"),
	}
}

// PackageOptions configures one packaging run.
type PackageOptions struct {
	// StagingRoot is the temporary directory whose sole top-level entry is
	// the project-named directory, so naive extraction reproduces the
	// nesting.
	StagingRoot string
	Project     string
	OutputPath  string
	Passphrase  string
	Compression Compression
}

// PackageResult describes the written artifact.
type PackageResult struct {
	Size      int64
	SHA256    string
	Encrypted bool
}

// headerSpec parameterizes the self-extract header template.
type headerSpec struct {
	Project     string
	Timestamp   string
	ExtractPipe string
}

// Package runs the three-stage pipeline. Failures abort without leaving a
// partial output file in place of a prior valid one: assembly happens in a
// sibling temp file which is renamed over the target only when complete.
func (p *Packager) Package(ctx context.Context, opts PackageOptions, tracker *Tracker) (*PackageResult, error) {
	if !opts.Compression.valid() {
		return nil, fmt.Errorf("unsupported compression %q", opts.Compression)
	}

	if tracker != nil {
		tracker.SetPhase(PhaseArchiving)
	}
	p.logger.Info("archiving staging tree", "compression", string(opts.Compression))

	archivePath := opts.OutputPath + opts.Compression.Extension()
	if err := p.compressDirectory(opts.StagingRoot, archivePath, opts.Compression); err != nil {
		return nil, err
	}
	defer func() {
		_ = os.Remove(archivePath)
	}()

	encrypted := opts.Passphrase != ""
	if encrypted {
		if tracker != nil {
			tracker.SetPhase(PhaseEncrypting)
		}
		p.logger.Info("encrypting archive")
		if err := p.encryptInPlace(ctx, archivePath, opts.Passphrase); err != nil {
			return nil, err
		}
	}

	if tracker != nil {
		tracker.SetPhase(PhaseFinalizing)
	}
	p.logger.Info("finalizing self-extracting output", "output", opts.OutputPath)

	header, err := p.renderHeader(opts.Project, opts.Compression, encrypted)
	if err != nil {
		return nil, err
	}
	if err := writeSelfExtract(opts.OutputPath, header, archivePath); err != nil {
		return nil, err
	}

	hash, size, err := hashFile(opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("hashing output: %w", err)
	}
	sidecar := opts.OutputPath + ".sha256"
	content := fmt.Sprintf("%s  %s\n", hash, filepath.Base(opts.OutputPath))
	if err := os.WriteFile(sidecar, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("writing sha256 sidecar: %w", err)
	}

	return &PackageResult{Size: size, SHA256: hash, Encrypted: encrypted}, nil
}

// compressDirectory tars the directory contents and compresses the stream
// into destPath.
func (p *Packager) compressDirectory(dir, destPath string, codec Compression) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating archive %s: %w", destPath, err)
	}

	compressor, err := newCompressor(out, codec)
	if err != nil {
		_ = out.Close()
		return err
	}
	tw := tar.NewWriter(compressor)

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("compare paths: %w", err)
		}
		if rel == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("tar header for %s: %w", rel, err)
		}
		header.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("writing tar header for %s: %w", rel, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archiving %s: %w", rel, err)
		}
		return nil
	})
	if walkErr != nil {
		_ = tw.Close()
		_ = compressor.Close()
		_ = out.Close()
		return walkErr
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar writer: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return fmt.Errorf("closing compressor: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing archive file: %w", err)
	}
	return nil
}

func newCompressor(w io.Writer, codec Compression) (io.WriteCloser, error) {
	switch codec {
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}
		return zw, nil
	case CompressionXz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating xz writer: %w", err)
		}
		return xw, nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", codec)
	}
}

// encryptInPlace replaces the plaintext archive with its ciphertext.
func (p *Packager) encryptInPlace(ctx context.Context, archivePath, passphrase string) error {
	encPath := archivePath + ".enc"
	if err := p.encryptor.Encrypt(ctx, archivePath, encPath, passphrase); err != nil {
		return &ExternalToolError{Step: "encrypt", Resource: filepath.Base(archivePath), Err: err}
	}
	if err := os.Rename(encPath, archivePath); err != nil {
		return fmt.Errorf("replacing archive with ciphertext: %w", err)
	}
	return nil
}

func (p *Packager) renderHeader(project string, codec Compression, encrypted bool) ([]byte, error) {
	pipe := "tar " + codec.tarFlags()
	if encrypted {
		pipe = "gpg --batch --quiet --decrypt | " + pipe
	}

	var buf bytes.Buffer
	err := p.templates.header.Execute(&buf, headerSpec{
		Project:     project,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		ExtractPipe: pipe,
	})
	if err != nil {
		return nil, fmt.Errorf("render header script: %w", err)
	}
	return buf.Bytes(), nil
}

// writeSelfExtract assembles header + archive bytes into outputPath via a
// sibling partial file, then renames and marks executable.
func writeSelfExtract(outputPath string, header []byte, archivePath string) error {
	partial := outputPath + ".partial"
	out, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(partial)
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() {
		_ = archive.Close()
	}()

	if _, err := out.Write(header); err != nil {
		_ = out.Close()
		_ = os.Remove(partial)
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(out, archive); err != nil {
		_ = out.Close()
		_ = os.Remove(partial)
		return fmt.Errorf("writing archive bytes: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("closing output file: %w", err)
	}

	if err := fsutil.MakeExecutable(partial); err != nil {
		_ = os.Remove(partial)
		return err
	}
	if err := os.Rename(partial, outputPath); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("moving output into place: %w", err)
	}
	return nil
}

// hashFile computes the SHA256 of a file, returning hex string and size.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
