// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"inferpack-cli/pkg/types"
)

var (
	// ErrInvalidBinaryFilePath is returned when a binary path is whitespace-only.
	ErrInvalidBinaryFilePath = errors.New("invalid binary file path")
	// ErrInvalidCacheDirPath is returned when a cache dir path is whitespace-only.
	ErrInvalidCacheDirPath = errors.New("invalid cache dir path")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Config is the process configuration, constructed once at process start
	// and immutable for the process lifetime.
	Config struct {
		// BindHost is the address the service binds (default 0.0.0.0).
		BindHost string `mapstructure:"bind_host"`

		// BindPort is the service port (default 8000).
		BindPort int `mapstructure:"bind_port"`

		// FetchAssets enables runtime asset acquisition (default true).
		FetchAssets bool `mapstructure:"fetch_assets"`

		// CredentialFile is the path to credential material mounted into the
		// runtime environment. Empty means no credential is configured.
		CredentialFile string `mapstructure:"credential_file"`

		// CacheDir overrides the build cache location
		// (default ~/.cache/inferpack).
		CacheDir CacheDirPath `mapstructure:"cache_dir"`

		Resolver ResolverConfig `mapstructure:"resolver"`
		System   SystemConfig   `mapstructure:"system"`
		Probe    ProbeConfig    `mapstructure:"probe"`
		UI       UIConfig       `mapstructure:"ui"`
	}

	// ResolverConfig controls the dependency resolver tool.
	ResolverConfig struct {
		// Binary is an explicit pip-compatible installer path.
		// Empty means auto-detect (pip3, then pip).
		Binary BinaryFilePath `mapstructure:"binary"`

		// NoCache passes the installer's no-cache flag so resolver runs do
		// not leave a package-manager cache behind.
		NoCache bool `mapstructure:"no_cache"`
	}

	// SystemConfig controls the system-package layer of the build.
	SystemConfig struct {
		// Enabled turns on the system-package install step. Off by default
		// because it usually needs root.
		Enabled bool `mapstructure:"enabled"`

		// Binary is an explicit apt-compatible installer path.
		Binary BinaryFilePath `mapstructure:"binary"`
	}

	// ProbeConfig carries the liveness-probe settings.
	ProbeConfig struct {
		Path             string `mapstructure:"path"`
		Interval         string `mapstructure:"interval"`
		Timeout          string `mapstructure:"timeout"`
		Grace            string `mapstructure:"grace"`
		FailureThreshold int    `mapstructure:"failure_threshold"`
	}

	// UIConfig carries terminal output preferences.
	UIConfig struct {
		Verbose bool `mapstructure:"verbose"`
	}

	// BinaryFilePath is a filesystem path to an executable. The zero value
	// ("") is valid and means "auto-detect".
	BinaryFilePath string

	// CacheDirPath is a filesystem path to the cache directory. The zero
	// value ("") is valid and means "use the default cache directory".
	CacheDirPath string

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks path fields and the bind port.
func (c *Config) Validate() error {
	var fieldErrs []error

	if string(c.Resolver.Binary) != "" && strings.TrimSpace(string(c.Resolver.Binary)) == "" {
		fieldErrs = append(fieldErrs, fmt.Errorf("resolver.binary: %w", ErrInvalidBinaryFilePath))
	}
	if string(c.System.Binary) != "" && strings.TrimSpace(string(c.System.Binary)) == "" {
		fieldErrs = append(fieldErrs, fmt.Errorf("system.binary: %w", ErrInvalidBinaryFilePath))
	}
	if string(c.CacheDir) != "" && strings.TrimSpace(string(c.CacheDir)) == "" {
		fieldErrs = append(fieldErrs, fmt.Errorf("cache_dir: %w", ErrInvalidCacheDirPath))
	}
	if err := types.ListenPort(c.BindPort).Validate(); err != nil {
		fieldErrs = append(fieldErrs, fmt.Errorf("bind_port: %w", err))
	}

	if len(fieldErrs) > 0 {
		return &InvalidConfigError{FieldErrors: fieldErrs}
	}
	return nil
}

// ProbeInterval returns the probe interval as a duration, falling back to
// 30s when unset or unparsable (the schema already rejects bad values from
// files; env vars can still carry garbage).
func (p ProbeConfig) ProbeInterval() time.Duration { return durationOr(p.Interval, 30*time.Second) }

// ProbeTimeout returns the per-request timeout, default 3s.
func (p ProbeConfig) ProbeTimeout() time.Duration { return durationOr(p.Timeout, 3*time.Second) }

// ProbeGrace returns the startup grace period, default 10s.
func (p ProbeConfig) ProbeGrace() time.Duration { return durationOr(p.Grace, 10*time.Second) }

// Threshold returns the consecutive-failure threshold, default 3.
func (p ProbeConfig) Threshold() int {
	if p.FailureThreshold <= 0 {
		return 3
	}
	return p.FailureThreshold
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
