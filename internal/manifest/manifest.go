// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileName is the manifest file name looked up next to the
	// stagefile when the recipe does not name one explicitly.
	DefaultFileName = "requirements.yaml"

	// MaxFileSize bounds manifest files; anything larger is rejected
	// before parsing.
	MaxFileSize = 1024 * 1024
)

var (
	// ErrManifestNotFound is returned when the manifest file does not exist.
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrInvalidManifest is the sentinel error wrapped by InvalidManifestError.
	ErrInvalidManifest = errors.New("invalid manifest")

	// Package names per PEP 503: letters, digits, and separators, with
	// alphanumeric endpoints.
	namePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)
)

type (
	// Manifest is the parsed dependency manifest.
	Manifest struct {
		// Packages are the declared runtime dependencies, in file order.
		Packages []Package `yaml:"packages"`

		// raw is the exact file content the manifest was parsed from.
		// The content hash is computed over these bytes, never over a
		// re-serialization.
		raw []byte
	}

	// Package is a single declared dependency.
	Package struct {
		// Name is the package name as the resolver tool understands it.
		Name string `yaml:"name"`

		// Constraint is an optional version constraint ("==8.0.196",
		// ">=2.0", or empty for "any version").
		Constraint string `yaml:"constraint,omitempty"`
	}

	// InvalidManifestError collects per-entry validation errors.
	InvalidManifestError struct {
		Path        string
		EntryErrors []error
	}
)

// Error implements the error interface.
func (e *InvalidManifestError) Error() string {
	msgs := make([]string, len(e.EntryErrors))
	for i, err := range e.EntryErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid manifest %s: %s", e.Path, strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *InvalidManifestError) Unwrap() error { return ErrInvalidManifest }

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("manifest %s exceeds maximum size of %d bytes", path, MaxFileSize)
	}
	return Parse(data, path)
}

// Parse validates manifest bytes. The path is used for error messages only.
func Parse(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	m.raw = data

	var entryErrs []error
	seen := make(map[string]int)
	for i, pkg := range m.Packages {
		if pkg.Name == "" {
			entryErrs = append(entryErrs, fmt.Errorf("packages[%d]: name is required", i))
			continue
		}
		if !namePattern.MatchString(pkg.Name) {
			entryErrs = append(entryErrs, fmt.Errorf("packages[%d]: invalid package name %q", i, pkg.Name))
		}
		key := normalizeName(pkg.Name)
		if first, dup := seen[key]; dup {
			entryErrs = append(entryErrs, fmt.Errorf("packages[%d]: duplicate of packages[%d] (%q)", i, first, pkg.Name))
		} else {
			seen[key] = i
		}
		if err := validateConstraint(pkg.Constraint); err != nil {
			entryErrs = append(entryErrs, fmt.Errorf("packages[%d] (%s): %w", i, pkg.Name, err))
		}
	}
	if len(entryErrs) > 0 {
		return nil, &InvalidManifestError{Path: path, EntryErrors: entryErrs}
	}

	return &m, nil
}

// ContentHash returns the hex sha256 of the manifest's raw bytes. This is
// the cache key for the resolved bundle.
func (m *Manifest) ContentHash() string {
	sum := sha256.Sum256(m.raw)
	return hex.EncodeToString(sum[:])
}

// RequirementArgs renders the packages as installer arguments
// ("name" or "name==1.2.3" / "name>=1.2"), in declaration order.
func (m *Manifest) RequirementArgs() []string {
	args := make([]string, 0, len(m.Packages))
	for _, pkg := range m.Packages {
		args = append(args, pkg.Requirement())
	}
	return args
}

// Requirement renders a single package as an installer argument.
func (p Package) Requirement() string {
	if p.Constraint == "" {
		return p.Name
	}
	return p.Name + p.Constraint
}

// validateConstraint checks the constraint shape. Exact ("==") and
// minimum (">=") constraints with semver-shaped versions get a semantic
// check; other operators are passed through to the resolver tool, which
// is the final authority.
func validateConstraint(constraint string) error {
	if constraint == "" {
		return nil
	}
	for _, op := range []string{"==", ">="} {
		if version, ok := strings.CutPrefix(constraint, op); ok {
			version = strings.TrimSpace(version)
			if version == "" {
				return fmt.Errorf("constraint %q has no version", constraint)
			}
			if looksSemver(version) && !semver.IsValid("v"+version) {
				return fmt.Errorf("constraint %q has malformed version %q", constraint, version)
			}
			return nil
		}
	}
	for _, op := range []string{"<=", "!=", "~=", ">", "<"} {
		if strings.HasPrefix(constraint, op) {
			return nil
		}
	}
	return fmt.Errorf("constraint %q has no recognized operator", constraint)
}

// looksSemver reports whether a version string is plain dotted-numeric,
// the only shape semver validation can meaningfully judge. Versions with
// local or pre-release suffixes in foreign formats are skipped.
func looksSemver(version string) bool {
	for _, r := range version {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return strings.Count(version, ".") <= 2
}

// normalizeName folds case and separator variants so "My-Pkg" and
// "my_pkg" count as duplicates, matching resolver behavior.
func normalizeName(name string) string {
	lower := strings.ToLower(name)
	lower = strings.ReplaceAll(lower, "_", "-")
	return strings.ReplaceAll(lower, ".", "-")
}
