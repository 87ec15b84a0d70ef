// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"inferpack-cli/internal/issue"
	"inferpack-cli/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "inferpack"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix is the prefix for environment variable overrides
	// (e.g., INFERPACK_FETCH_ASSETS=false).
	EnvPrefix = "INFERPACK"
)

//go:embed config_schema.cue
var configSchema string

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigFilePath, when set, is used exclusively (no directory search).
	ConfigFilePath string
	// ConfigDirPath overrides the platform config directory.
	ConfigDirPath string
}

// DefaultConfig returns the built-in defaults, before any file or
// environment overrides.
func DefaultConfig() *Config {
	return &Config{
		BindHost:    "0.0.0.0",
		BindPort:    8000,
		FetchAssets: true,
		Probe: ProbeConfig{
			Path:             "/healthz",
			Interval:         "30s",
			Timeout:          "3s",
			Grace:            "10s",
			FailureThreshold: 3,
		},
	}
}

// ConfigDir returns the inferpack configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DefaultCacheDir returns the build cache directory, honoring
// $XDG_CACHE_HOME on Linux and falling back to ~/.cache elsewhere.
func DefaultCacheDir() (string, error) {
	if cacheDirOverride != "" {
		return cacheDirOverride, nil
	}

	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, AppName), nil
}

// Load reads the configuration with default options.
func Load(ctx context.Context) (*Config, error) {
	cfg, _, err := LoadWithOptions(ctx, LoadOptions{ConfigFilePath: configFilePathOverride})
	return cfg, err
}

// LoadWithOptions reads the configuration, returning the resolved config
// file path alongside it ("" when only defaults and env were used).
func LoadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	// Set defaults
	defaults := DefaultConfig()
	v.SetDefault("bind_host", defaults.BindHost)
	v.SetDefault("bind_port", defaults.BindPort)
	v.SetDefault("fetch_assets", defaults.FetchAssets)
	v.SetDefault("credential_file", defaults.CredentialFile)
	v.SetDefault("cache_dir", string(defaults.CacheDir))
	v.SetDefault("resolver.binary", string(defaults.Resolver.Binary))
	v.SetDefault("resolver.no_cache", defaults.Resolver.NoCache)
	v.SetDefault("system.enabled", defaults.System.Enabled)
	v.SetDefault("system.binary", string(defaults.System.Binary))
	v.SetDefault("probe.path", defaults.Probe.Path)
	v.SetDefault("probe.interval", defaults.Probe.Interval)
	v.SetDefault("probe.timeout", defaults.Probe.Timeout)
	v.SetDefault("probe.grace", defaults.Probe.Grace)
	v.SetDefault("probe.failure_threshold", defaults.Probe.FailureThreshold)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	// Environment overrides: INFERPACK_FETCH_ASSETS, INFERPACK_PROBE_PATH, ...
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// If a custom config file path is set via --config flag, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'inferpack config show' to see default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'inferpack config --help' for configuration options").
				Wrap(err).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", issue.NewErrorContext().
					WithOperation("load configuration").
					WithResource(cuePath).
					WithSuggestion("Check that the file contains valid CUE syntax").
					WithSuggestion("Verify the configuration values match the expected schema").
					WithSuggestion("See 'inferpack config --help' for configuration options").
					Wrap(err).
					BuildError()
			}
			resolvedPath = cuePath
		}
		// If no config file found, use defaults (no error)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check ports are in the range 0-65535").
			WithSuggestion("Check path fields are not blank").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Note: This uses manual CUE parsing instead of cueutil.ParseAndDecode because:
// 1. Config decodes to map[string]any (not a struct) for Viper integration
// 2. Uses Concrete(false) because config fields are optional
// 3. Needs to merge into Viper's config map, not return a struct
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	// Unify with schema to validate against the #Config definition
	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig creates a default config file if it doesn't exist
func CreateDefaultConfig() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	if _, err := os.Stat(cfgPath); err == nil {
		return nil // File exists
	}

	cueContent := GenerateCUE(DefaultConfig())

	if err := os.WriteFile(cfgPath, []byte(cueContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// inferpack configuration file\n\n")

	sb.WriteString(fmt.Sprintf("bind_host: %q\n", cfg.BindHost))
	sb.WriteString(fmt.Sprintf("bind_port: %d\n", cfg.BindPort))
	sb.WriteString(fmt.Sprintf("fetch_assets: %v\n", cfg.FetchAssets))
	if cfg.CredentialFile != "" {
		sb.WriteString(fmt.Sprintf("credential_file: %q\n", cfg.CredentialFile))
	}
	if cfg.CacheDir != "" {
		sb.WriteString(fmt.Sprintf("cache_dir: %q\n", cfg.CacheDir))
	}

	sb.WriteString("\nresolver: {\n")
	if cfg.Resolver.Binary != "" {
		sb.WriteString(fmt.Sprintf("\tbinary: %q\n", cfg.Resolver.Binary))
	}
	sb.WriteString(fmt.Sprintf("\tno_cache: %v\n", cfg.Resolver.NoCache))
	sb.WriteString("}\n")

	sb.WriteString("\nsystem: {\n")
	sb.WriteString(fmt.Sprintf("\tenabled: %v\n", cfg.System.Enabled))
	if cfg.System.Binary != "" {
		sb.WriteString(fmt.Sprintf("\tbinary: %q\n", cfg.System.Binary))
	}
	sb.WriteString("}\n")

	sb.WriteString("\nprobe: {\n")
	sb.WriteString(fmt.Sprintf("\tpath: %q\n", cfg.Probe.Path))
	sb.WriteString(fmt.Sprintf("\tinterval: %q\n", cfg.Probe.Interval))
	sb.WriteString(fmt.Sprintf("\ttimeout: %q\n", cfg.Probe.Timeout))
	sb.WriteString(fmt.Sprintf("\tgrace: %q\n", cfg.Probe.Grace))
	sb.WriteString(fmt.Sprintf("\tfailure_threshold: %d\n", cfg.Probe.FailureThreshold))
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	sb.WriteString(fmt.Sprintf("\tverbose: %v\n", cfg.UI.Verbose))
	sb.WriteString("}\n")

	return sb.String()
}
