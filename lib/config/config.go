// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable Load reads the config path
// from.
const EnvVar = "BUREAU_ASSETS_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config is the asset service configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Storage configures the page store.
	Storage StorageConfig `yaml:"storage"`

	// Upload configures upload assembly.
	Upload UploadConfig `yaml:"upload"`

	// Delivery configures reads and the HTTP gateway.
	Delivery DeliveryConfig `yaml:"delivery"`

	// Access lists the peer uids allowed to mutate the store.
	Access AccessConfig `yaml:"access"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths    *PathsConfig    `yaml:"paths,omitempty"`
	Storage  *StorageConfig  `yaml:"storage,omitempty"`
	Delivery *DeliveryConfig `yaml:"delivery,omitempty"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// Root is the base directory for asset service data.
	Root string `yaml:"root"`

	// Socket is the Unix socket the service listens on.
	// Default: <root>/assets.sock
	Socket string `yaml:"socket"`

	// Data holds the page store of durable backends.
	// Default: <root>/pages
	Data string `yaml:"data"`

	// Snapshot is the state snapshot file. Empty disables snapshots.
	// Only valid with a durable backend.
	// Default: <root>/state.snapshot
	Snapshot string `yaml:"snapshot"`
}

// StorageConfig configures the page store.
type StorageConfig struct {
	// Backend is memory, sqlite or badger.
	// Default: sqlite
	Backend string `yaml:"backend"`

	// Codec compresses pages: none, lz4 or zstd.
	// Default: none
	Codec string `yaml:"codec"`

	// BucketSize is the page size in bytes.
	// Default: 2097152
	BucketSize int `yaml:"bucket_size"`

	// PoolSize is the SQLite connection pool size.
	// Default: 4
	PoolSize int `yaml:"pool_size"`

	// SyncWrites makes badger fsync every write.
	// Default: false (development), true (production)
	SyncWrites bool `yaml:"sync_writes"`
}

// UploadConfig configures upload assembly.
type UploadConfig struct {
	// HashAlgorithm is sha256 or blake3.
	// Default: sha256
	HashAlgorithm string `yaml:"hash_algorithm"`

	// Trusted is the initial trust flag. A restored snapshot's flag
	// takes precedence.
	Trusted bool `yaml:"trusted"`
}

// DeliveryConfig configures reads and the HTTP gateway.
type DeliveryConfig struct {
	// MaxResponseBytes caps each response body and continuation window.
	// Default: 2097152
	MaxResponseBytes int `yaml:"max_response_bytes"`

	// HTTPAddress is the gateway listen address. Empty disables the
	// gateway.
	// Default: 127.0.0.1:8480
	HTTPAddress string `yaml:"http_address"`
}

// AccessConfig lists peer uids granted mutating actions. An empty
// list grants the action to every peer.
type AccessConfig struct {
	// Writers may upload and delete.
	Writers []uint32 `yaml:"writers"`

	// Admins may change the trust flag. Admins are also writers.
	Admins []uint32 `yaml:"admins"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "bureau-assets")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:     defaultRoot,
			Socket:   filepath.Join(defaultRoot, "assets.sock"),
			Data:     filepath.Join(defaultRoot, "pages"),
			Snapshot: filepath.Join(defaultRoot, "state.snapshot"),
		},
		Storage: StorageConfig{
			Backend:    BackendSQLite,
			Codec:      "none",
			BucketSize: 2 * 1024 * 1024,
			PoolSize:   4,
		},
		Upload: UploadConfig{
			HashAlgorithm: "sha256",
		},
		Delivery: DeliveryConfig{
			MaxResponseBytes: 2 * 1024 * 1024,
			HTTPAddress:      "127.0.0.1:8480",
		},
	}
}

// Load loads configuration from the BUREAU_ASSETS_CONFIG environment
// variable. There is no fallback: if the variable is unset, Load
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your assets.yaml config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// Environment variables do not override config values. The only
// expansion performed is ${HOME}, ${BUREAU_ROOT} and ${VAR:-default}
// in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: durable writes.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Storage: &StorageConfig{SyncWrites: true},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Socket != "" {
			c.Paths.Socket = overrides.Paths.Socket
		}
		if overrides.Paths.Data != "" {
			c.Paths.Data = overrides.Paths.Data
		}
		if overrides.Paths.Snapshot != "" {
			c.Paths.Snapshot = overrides.Paths.Snapshot
		}
	}

	if overrides.Storage != nil {
		if overrides.Storage.Backend != "" {
			c.Storage.Backend = overrides.Storage.Backend
		}
		if overrides.Storage.Codec != "" {
			c.Storage.Codec = overrides.Storage.Codec
		}
		if overrides.Storage.BucketSize != 0 {
			c.Storage.BucketSize = overrides.Storage.BucketSize
		}
		if overrides.Storage.PoolSize != 0 {
			c.Storage.PoolSize = overrides.Storage.PoolSize
		}
		// SyncWrites is a bool, so we always apply it from overrides.
		c.Storage.SyncWrites = overrides.Storage.SyncWrites
	}

	if overrides.Delivery != nil {
		if overrides.Delivery.MaxResponseBytes != 0 {
			c.Delivery.MaxResponseBytes = overrides.Delivery.MaxResponseBytes
		}
		if overrides.Delivery.HTTPAddress != "" {
			c.Delivery.HTTPAddress = overrides.Delivery.HTTPAddress
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"BUREAU_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["BUREAU_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
	c.Paths.Data = expandVars(c.Paths.Data, vars)
	c.Paths.Snapshot = expandVars(c.Paths.Snapshot, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Durable reports whether the configured backend keeps pages across
// restarts.
func (c *Config) Durable() bool {
	return c.Storage.Backend == BackendSQLite || c.Storage.Backend == BackendBadger
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, fmt.Errorf("paths.socket is required"))
	}

	backends := []string{BackendMemory, BackendSQLite, BackendBadger}
	if !slices.Contains(backends, c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("storage.backend must be one of: %v", backends))
	}
	if c.Durable() && c.Paths.Data == "" {
		errs = append(errs, fmt.Errorf("paths.data is required for the %s backend", c.Storage.Backend))
	}
	if !c.Durable() && c.Paths.Snapshot != "" {
		errs = append(errs, fmt.Errorf("paths.snapshot requires a durable storage backend, not %s", c.Storage.Backend))
	}

	codecs := []string{"", "none", "lz4", "zstd"}
	if !slices.Contains(codecs, c.Storage.Codec) {
		errs = append(errs, fmt.Errorf("storage.codec must be one of: none, lz4, zstd"))
	}
	if c.Storage.BucketSize <= 0 {
		errs = append(errs, fmt.Errorf("storage.bucket_size must be positive"))
	}
	if c.Storage.Backend == BackendSQLite && c.Storage.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("storage.pool_size must be positive"))
	}

	algorithms := []string{"", "sha256", "blake3"}
	if !slices.Contains(algorithms, c.Upload.HashAlgorithm) {
		errs = append(errs, fmt.Errorf("upload.hash_algorithm must be one of: sha256, blake3"))
	}

	if c.Delivery.MaxResponseBytes <= 0 {
		errs = append(errs, fmt.Errorf("delivery.max_response_bytes must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the root and data directories and the parent
// directories of the socket and snapshot files.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Paths.Root}
	if c.Durable() {
		paths = append(paths, c.Paths.Data)
	}
	if c.Paths.Socket != "" {
		paths = append(paths, filepath.Dir(c.Paths.Socket))
	}
	if c.Paths.Snapshot != "" {
		paths = append(paths, filepath.Dir(c.Paths.Snapshot))
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
