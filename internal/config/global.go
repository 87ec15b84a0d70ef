// SPDX-License-Identifier: MPL-2.0

package config

var (
	// configDirOverride allows tests to override the config directory.
	// This is necessary because os.UserHomeDir() doesn't reliably respect
	// the HOME environment variable on all platforms (e.g., macOS in CI).
	configDirOverride string

	// cacheDirOverride allows tests to redirect the build cache.
	cacheDirOverride string

	// configFilePathOverride is set by the --config flag.
	configFilePathOverride string
)

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
	cacheDirOverride = ""
	configFilePathOverride = ""
}

// SetConfigDirOverride sets a custom config directory path.
// This is primarily intended for testing to bypass os.UserHomeDir() which
// doesn't reliably respect the HOME env var on all platforms (e.g., macOS in CI).
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// SetCacheDirOverride sets a custom build cache directory path.
func SetCacheDirOverride(dir string) {
	cacheDirOverride = dir
}

// SetConfigFilePathOverride routes Load through an explicit config file.
// Used by the root command to honor --config.
func SetConfigFilePathOverride(path string) {
	configFilePathOverride = path
}
