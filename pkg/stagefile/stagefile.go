// SPDX-License-Identifier: MPL-2.0

package stagefile

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"inferpack-cli/pkg/types"
)

// DefaultFileName is the conventional stagefile name searched for when no
// explicit path is given.
const DefaultFileName = "stagefile.cue"

// DefaultOutputDir is where the assembled runtime environment lands when the
// stagefile does not say otherwise.
const DefaultOutputDir = "dist/runtime"

// namePattern constrains artifact names: leading letter, then alphanumerics,
// dashes, or underscores. Names become directory and stamp-file components.
var namePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

type (
	// Stagefile is the root of a parsed build recipe.
	Stagefile struct {
		// Name identifies the artifact; used for cache scoping and env metadata.
		Name string `json:"name"`

		// Description is optional free-form text shown by `inferpack config show`.
		Description string `json:"description,omitempty"`

		// Build declares the staged build inputs in layering order.
		Build Build `json:"build"`

		// Asset is the external asset reference resolved at first process
		// start. Nil means the service needs no runtime-acquired asset.
		Asset *Asset `json:"asset,omitempty"`

		// Service is the run contract for the packaged service process.
		Service Service `json:"service"`

		// Probe holds the liveness-probe settings documented alongside the
		// artifact. The prober and any external supervisor read these.
		Probe Probe `json:"probe"`

		// FilePath is where this stagefile was loaded from (not part of the
		// document itself).
		FilePath types.FilesystemPath `json:"-"`
	}

	// Build declares the build-layer inputs, ordered least- to
	// most-frequently changing: system packages, dependency manifest,
	// application source, credential material.
	Build struct {
		// SystemPackages are system-level shared libraries required by
		// native dependencies (layer 1).
		SystemPackages []string `json:"system_packages,omitempty"`

		// Manifest is the path to the YAML dependency manifest (layer 2).
		Manifest string `json:"manifest"`

		// Source is the application source directory (layer 3).
		Source string `json:"source"`

		// Credential optionally names credential material to place into the
		// runtime environment (layer 4). Never cached.
		Credential *Credential `json:"credential,omitempty"`

		// Hooks are shell steps run inside the assembled environment after
		// the layers are in place, executed by the embedded interpreter.
		Hooks []Hook `json:"hooks,omitempty"`

		// Output is the runtime environment directory produced by the build.
		Output string `json:"output,omitempty"`
	}

	// Credential names a credential file copied into the runtime environment.
	// The file's contents never enter the build cache.
	Credential struct {
		// Source is the credential file on the build host.
		Source string `json:"source"`

		// Target is the filename inside the runtime environment. Defaults to
		// the basename of Source.
		Target string `json:"target,omitempty"`
	}

	// Hook is a named shell step executed during assembly.
	Hook struct {
		Name string `json:"name"`
		Run  string `json:"run"`
	}

	// Asset identifies a large binary artifact (e.g., model weights) that is
	// not embedded in the build and is fetched conditionally at first start.
	Asset struct {
		// Name is a human-readable label (e.g., "yolov8n-weights").
		Name string `json:"name"`

		// Path is the expected location inside the runtime environment.
		Path string `json:"path"`

		// Source is where to acquire the asset from: https://, s3://, or
		// file:// URL.
		Source string `json:"source"`

		// SHA256 is the optional expected hex digest of the asset. When set,
		// fetched assets are verified before being moved into place.
		SHA256 string `json:"sha256,omitempty"`
	}

	// Service is the run contract for the packaged process.
	Service struct {
		// Exec is the service argv, resolved inside the runtime environment.
		// Empty means the built-in reference server.
		Exec []string `json:"exec,omitempty"`

		// Host is the bind address. Defaults to 0.0.0.0.
		Host string `json:"host,omitempty"`

		// Port is the bind port. Defaults to 8000.
		Port types.ListenPort `json:"port,omitempty"`
	}

	// Probe documents the liveness contract: a GET against Path must return
	// a 2xx within Timeout, every Interval, after an initial Grace period.
	// FailureThreshold consecutive failures mean "unhealthy".
	Probe struct {
		Path             string `json:"path,omitempty"`
		Interval         string `json:"interval,omitempty"`
		Timeout          string `json:"timeout,omitempty"`
		Grace            string `json:"grace,omitempty"`
		FailureThreshold int    `json:"failure_threshold,omitempty"`
	}

	// ValidationErrors collects all structural problems found in one pass so
	// the user can fix everything at once.
	ValidationErrors []error
)

// Error implements the error interface, joining all collected problems.
func (v ValidationErrors) Error() string {
	if len(v) == 1 {
		return v[0].Error()
	}
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = "  - " + err.Error()
	}
	return fmt.Sprintf("%d validation errors:\n%s", len(v), strings.Join(msgs, "\n"))
}

// OutputDir returns the configured output directory or the default.
func (b Build) OutputDir() string {
	if b.Output == "" {
		return DefaultOutputDir
	}
	return b.Output
}

// TargetName returns the filename the credential takes inside the runtime
// environment.
func (c Credential) TargetName() string {
	if c.Target != "" {
		return c.Target
	}
	// Basename without filepath to keep this declarative type OS-agnostic;
	// sources are written with forward slashes.
	if i := strings.LastIndexAny(c.Source, "/\\"); i >= 0 {
		return c.Source[i+1:]
	}
	return c.Source
}

// SourceScheme returns the asset source scheme ("https", "s3", "file"), or
// an empty string when the source does not parse as a URL.
func (a Asset) SourceScheme() string {
	u, err := url.Parse(a.Source)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// Validate checks cross-field constraints that the CUE schema cannot express.
// Returns nil when the stagefile is structurally sound.
func (s *Stagefile) Validate() ValidationErrors {
	var errs ValidationErrors

	if !namePattern.MatchString(s.Name) {
		errs = append(errs, fmt.Errorf("name %q: must start with a letter and contain only alphanumerics, dashes, or underscores", s.Name))
	}

	if strings.TrimSpace(s.Build.Manifest) == "" {
		errs = append(errs, fmt.Errorf("build.manifest: a dependency manifest path is required"))
	}
	if strings.TrimSpace(s.Build.Source) == "" {
		errs = append(errs, fmt.Errorf("build.source: an application source directory is required"))
	}

	if s.Build.Credential != nil && strings.TrimSpace(s.Build.Credential.Source) == "" {
		errs = append(errs, fmt.Errorf("build.credential.source: must be non-empty when credential is declared"))
	}

	seenHooks := make(map[string]bool, len(s.Build.Hooks))
	for i, hook := range s.Build.Hooks {
		if strings.TrimSpace(hook.Name) == "" {
			errs = append(errs, fmt.Errorf("build.hooks[%d].name: must be non-empty", i))
		}
		if seenHooks[hook.Name] {
			errs = append(errs, fmt.Errorf("build.hooks[%d].name: duplicate hook name %q", i, hook.Name))
		}
		seenHooks[hook.Name] = true
		if strings.TrimSpace(hook.Run) == "" {
			errs = append(errs, fmt.Errorf("build.hooks[%d].run: must be non-empty", i))
		}
	}

	if s.Asset != nil {
		errs = append(errs, s.Asset.validate()...)
	}

	if err := s.Service.Port.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("service.port: %w", err))
	}

	errs = append(errs, s.Probe.validate()...)

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (a *Asset) validate() ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, fmt.Errorf("asset.name: must be non-empty"))
	}
	if strings.TrimSpace(a.Path) == "" {
		errs = append(errs, fmt.Errorf("asset.path: must be non-empty"))
	}

	switch a.SourceScheme() {
	case "https", "http", "s3", "file":
	case "":
		errs = append(errs, fmt.Errorf("asset.source: %q is not a valid URL", a.Source))
	default:
		errs = append(errs, fmt.Errorf("asset.source: unsupported scheme %q (want https, s3, or file)", a.SourceScheme()))
	}

	if a.SHA256 != "" && !isHexDigest(a.SHA256) {
		errs = append(errs, fmt.Errorf("asset.sha256: must be a 64-character hex digest"))
	}

	return errs
}

func (p *Probe) validate() ValidationErrors {
	var errs ValidationErrors

	if p.Path != "" && !strings.HasPrefix(p.Path, "/") {
		errs = append(errs, fmt.Errorf("probe.path: must begin with '/'"))
	}
	for field, value := range map[string]string{
		"probe.interval": p.Interval,
		"probe.timeout":  p.Timeout,
		"probe.grace":    p.Grace,
	} {
		if _, err := parseDuration(field, value); err != nil {
			errs = append(errs, err)
		}
	}
	if p.FailureThreshold < 0 {
		errs = append(errs, fmt.Errorf("probe.failure_threshold: must not be negative"))
	}

	return errs
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
