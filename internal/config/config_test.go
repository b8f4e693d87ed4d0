package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies that DefaultConfig returns sensible defaults
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		getValue func(*Config) string
		want     string
	}{
		{"docker binary", func(c *Config) string { return c.Docker.Binary }, "docker"},
		{"helper image", func(c *Config) string { return c.Backup.HelperImage }, "busybox"},
		{"compression", func(c *Config) string { return c.Backup.Compression }, "gzip"},
		{"gpg binary", func(c *Config) string { return c.Backup.GPGBinary }, "gpg"},
		{"templates dir", func(c *Config) string { return c.Backup.TemplatesDir }, ""},
		{"db path", func(c *Config) string { return c.Store.DBPath }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.getValue(cfg)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	// Backups require an explicit opt-out of encryption
	if cfg.Backup.AllowUnencrypted {
		t.Errorf("Backup.AllowUnencrypted = true, want false")
	}
}

// TestLoad tests loading a valid config file
func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "dockpack.yaml")

	configContent := `
docker:
  binary: "/usr/local/bin/docker"
backup:
  helper_image: "alpine:3.20"
  allow_unencrypted: true
  compression: "zstd"
  templates_dir: "/etc/dockpack/templates"
  gpg_binary: "gpg2"
store:
  db_path: "/var/lib/dockpack/history.db"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Docker.Binary != "/usr/local/bin/docker" {
		t.Errorf("Docker.Binary = %q, want %q", cfg.Docker.Binary, "/usr/local/bin/docker")
	}
	if cfg.Backup.HelperImage != "alpine:3.20" {
		t.Errorf("Backup.HelperImage = %q, want %q", cfg.Backup.HelperImage, "alpine:3.20")
	}
	if !cfg.Backup.AllowUnencrypted {
		t.Errorf("Backup.AllowUnencrypted = false, want true")
	}
	if cfg.Backup.Compression != "zstd" {
		t.Errorf("Backup.Compression = %q, want %q", cfg.Backup.Compression, "zstd")
	}
	if cfg.Backup.TemplatesDir != "/etc/dockpack/templates" {
		t.Errorf("Backup.TemplatesDir = %q, want %q", cfg.Backup.TemplatesDir, "/etc/dockpack/templates")
	}
	if cfg.Backup.GPGBinary != "gpg2" {
		t.Errorf("Backup.GPGBinary = %q, want %q", cfg.Backup.GPGBinary, "gpg2")
	}
	if cfg.Store.DBPath != "/var/lib/dockpack/history.db" {
		t.Errorf("Store.DBPath = %q, want %q", cfg.Store.DBPath, "/var/lib/dockpack/history.db")
	}
}

// TestLoadPartialConfig verifies unset keys keep their defaults
func TestLoadPartialConfig(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "dockpack.yaml")

	configContent := `
backup:
  compression: "xz"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Backup.Compression != "xz" {
		t.Errorf("Backup.Compression = %q, want %q", cfg.Backup.Compression, "xz")
	}
	if cfg.Docker.Binary != "docker" {
		t.Errorf("Docker.Binary = %q, want default %q", cfg.Docker.Binary, "docker")
	}
	if cfg.Backup.HelperImage != "busybox" {
		t.Errorf("Backup.HelperImage = %q, want default %q", cfg.Backup.HelperImage, "busybox")
	}
}

// TestLoadInvalidYAML tests that Load returns an error for invalid YAML
func TestLoadInvalidYAML(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "invalid.yaml")

	invalidContent := `
docker:
  binary: "docker"
  invalid: [unclosed bracket
`

	if err := os.WriteFile(configFile, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(configFile)
	if err == nil {
		t.Error("Load() succeeded, want error for invalid YAML")
	}
}

// TestLoadNonexistentFile tests that Load returns an error for missing files
func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Error("Load() succeeded, want error for nonexistent file")
	}
}
