package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration
type Config struct {
	Docker DockerConfig `yaml:"docker"`
	Backup BackupConfig `yaml:"backup"`
	Store  StoreConfig  `yaml:"store"`
}

// DockerConfig holds container runtime settings
type DockerConfig struct {
	Binary string `yaml:"binary"`
}

// BackupConfig holds backup assembly settings
type BackupConfig struct {
	HelperImage      string `yaml:"helper_image"`
	AllowUnencrypted bool   `yaml:"allow_unencrypted"`
	Compression      string `yaml:"compression"`
	TemplatesDir     string `yaml:"templates_dir"`
	GPGBinary        string `yaml:"gpg_binary"`
}

// StoreConfig holds run history settings
type StoreConfig struct {
	DBPath string `yaml:"db_path"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Docker: DockerConfig{
			Binary: "docker",
		},
		Backup: BackupConfig{
			HelperImage: "busybox",
			Compression: "gzip",
			GPGBinary:   "gpg",
		},
		Store: StoreConfig{
			DBPath: "",
		},
	}
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{
		"dockpack.yaml",
		"/etc/dockpack/dockpack.yaml",
	}

	// Add user config path
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "dockpack", "dockpack.yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}
