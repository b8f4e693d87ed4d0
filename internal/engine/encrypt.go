package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// GPGEncryptor encrypts archives symmetrically by shelling out to gpg.
type GPGEncryptor struct {
	binary string
	logger *slog.Logger
	run    func(ctx context.Context, binary string, args ...string) ([]byte, error)
}

// NewGPGEncryptor creates an encryptor using the default gpg binary.
func NewGPGEncryptor(logger *slog.Logger) *GPGEncryptor {
	return NewGPGEncryptorWithBinary("gpg", logger)
}

// NewGPGEncryptorWithBinary creates an encryptor with a custom gpg path.
func NewGPGEncryptorWithBinary(binary string, logger *slog.Logger) *GPGEncryptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &GPGEncryptor{
		binary: binary,
		logger: logger.With("component", "gpg"),
		run:    runGPG,
	}
}

func runGPG(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", binary, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	return stdout.Bytes(), nil
}

// Encrypt writes a symmetrically encrypted copy of srcPath to destPath.
func (g *GPGEncryptor) Encrypt(ctx context.Context, srcPath, destPath, passphrase string) error {
	g.logger.Debug("encrypting file", "src", srcPath, "dest", destPath)

	args := []string{
		"--batch", "--yes",
		"--passphrase", passphrase,
		"--output", destPath,
		"--symmetric", srcPath,
	}
	if _, err := g.run(ctx, g.binary, args...); err != nil {
		return fmt.Errorf("encrypt %s: %w", srcPath, err)
	}
	return nil
}
