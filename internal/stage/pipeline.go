// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inferpack-cli/internal/issue"
	"inferpack-cli/internal/manifest"
	"inferpack-cli/internal/pkgtool"
	"inferpack-cli/pkg/stagefile"

	"github.com/charmbracelet/log"
)

const (
	// StepSystemPackages installs OS-level packages.
	StepSystemPackages = "system-packages"
	// StepResolveDeps resolves the dependency manifest into a bundle.
	StepResolveDeps = "resolve-deps"
	// StepStageSource snapshots the application source tree.
	StepStageSource = "stage-source"
	// StepHooks runs the stagefile's build hooks.
	StepHooks = "hooks"

	bundlesDirName = "bundles"
	sourcesDirName = "sources"
)

// retryBaseBackoff is the initial delay between system installer attempts.
const retryBaseBackoff = 2 * time.Second

// ErrResolutionFailed marks dependency-resolution failures so callers can
// tell them apart from other build failures.
var ErrResolutionFailed = errors.New("dependency resolution failed")

type (
	// Options configures a Pipeline.
	Options struct {
		// CacheDir is the root of the build cache.
		CacheDir string
		// Resolver resolves the dependency manifest. Required.
		Resolver pkgtool.Engine
		// System installs system packages. Nil disables the step.
		System pkgtool.Engine
		// ResolverNoCache passes the resolver's no-cache flag.
		ResolverNoCache bool
		// Force rebuilds every step, ignoring cache entries.
		Force bool
		// Logger receives step progress. Nil uses the default logger.
		Logger *log.Logger
		// Stdout and Stderr receive installer and hook output.
		Stdout io.Writer
		Stderr io.Writer
	}

	// Pipeline executes the build steps for one stagefile.
	Pipeline struct {
		recipe *stagefile.Stagefile
		opts   Options
		logger *log.Logger
	}

	// StepStatus reports how one step concluded.
	StepStatus struct {
		// Name is the step name.
		Name string
		// CacheHit is true when a stamped cache entry was reused.
		CacheHit bool
		// CacheKey is the content-hash key ("" for uncacheable steps).
		CacheKey string
		// OutputDir is the cache entry or staging directory the step
		// produced ("" when the step has no directory output).
		OutputDir string
		// Skipped is true when the step had nothing to do.
		Skipped bool
	}

	// Result is the pipeline outcome consumed by the artifact assembler.
	Result struct {
		// Steps are the per-step statuses, in execution order.
		Steps []StepStatus
		// Manifest is the parsed dependency manifest.
		Manifest *manifest.Manifest
		// BundleDir is the resolved dependency bundle cache entry.
		BundleDir string
		// SourceDir is the staged source tree cache entry.
		SourceDir string
	}
)

// NewPipeline builds a pipeline for the given recipe.
func NewPipeline(recipe *stagefile.Stagefile, opts Options) (*Pipeline, error) {
	if recipe == nil {
		return nil, fmt.Errorf("recipe is required")
	}
	if opts.CacheDir == "" {
		return nil, fmt.Errorf("cache dir is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("resolver engine is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Pipeline{recipe: recipe, opts: opts, logger: logger}, nil
}

// Run executes the steps in order. The first failing step aborts the
// pipeline; completed cache entries from earlier steps remain valid.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	status, err := p.runSystemPackages(ctx)
	if err != nil {
		return nil, err
	}
	result.Steps = append(result.Steps, *status)

	status, m, err := p.runResolve(ctx)
	if err != nil {
		return nil, err
	}
	result.Manifest = m
	result.BundleDir = status.OutputDir
	result.Steps = append(result.Steps, *status)

	status, err = p.runStageSource(ctx)
	if err != nil {
		return nil, err
	}
	result.SourceDir = status.OutputDir
	result.Steps = append(result.Steps, *status)

	status, err = p.runHooks(ctx, result.SourceDir)
	if err != nil {
		return nil, err
	}
	result.Steps = append(result.Steps, *status)

	return result, nil
}

// runSystemPackages installs OS-level packages. The step is skipped when
// the recipe declares none or no system engine is configured. It is not
// cached: the system package database is the authority on what is
// installed.
func (p *Pipeline) runSystemPackages(ctx context.Context) (*StepStatus, error) {
	status := &StepStatus{Name: StepSystemPackages}

	if len(p.recipe.Build.SystemPackages) == 0 {
		status.Skipped = true
		return status, nil
	}
	if p.opts.System == nil {
		p.logger.Warn("system packages declared but system installer disabled; skipping",
			"packages", strings.Join(p.recipe.Build.SystemPackages, ","))
		status.Skipped = true
		return status, nil
	}

	p.logger.Info("installing system packages", "count", len(p.recipe.Build.SystemPackages))
	err := pkgtool.RetryWithBackoff(ctx, 3, retryBaseBackoff, func(int) (bool, error) {
		installErr := p.opts.System.Install(ctx, pkgtool.InstallOptions{
			Packages: p.recipe.Build.SystemPackages,
			Stdout:   p.opts.Stdout,
			Stderr:   p.opts.Stderr,
		})
		// Mirror/network hiccups are worth another attempt.
		return installErr != nil, installErr
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("install system packages").
			WithSuggestion("Check that the package names exist in the configured repositories").
			WithSuggestion("System package installation usually requires elevated privileges").
			Wrap(err).
			BuildError()
	}
	return status, nil
}

// runResolve materializes the dependency bundle for the manifest's content
// hash. Byte-identical manifests reuse the same cache entry; the resolver
// tool is not invoked on a cache hit.
func (p *Pipeline) runResolve(ctx context.Context) (*StepStatus, *manifest.Manifest, error) {
	status := &StepStatus{Name: StepResolveDeps}

	manifestPath := p.manifestPath()
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, nil, issue.NewErrorContext().
			WithOperation("load dependency manifest").
			WithResource(manifestPath).
			WithSuggestion("Check that the manifest path in the stagefile is correct").
			Wrap(fmt.Errorf("%w: %w", ErrResolutionFailed, err)).
			BuildError()
	}

	key := m.ContentHash()
	bundleDir := filepath.Join(p.opts.CacheDir, bundlesDirName, key)
	status.CacheKey = key
	status.OutputDir = bundleDir

	if !p.opts.Force && IsComplete(bundleDir, key) {
		p.logger.Info("dependency bundle cached", "key", key[:12])
		status.CacheHit = true
		return status, m, nil
	}

	p.logger.Info("resolving dependency manifest", "packages", len(m.Packages), "key", key[:12])

	// Resolve into a scratch directory first so an interrupted run never
	// leaves a stamped partial bundle behind.
	parent := filepath.Join(p.opts.CacheDir, bundlesDirName)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create bundle cache directory: %w", err)
	}
	scratch, err := os.MkdirTemp(parent, "resolve-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }() // No-op after a successful rename

	installErr := p.opts.Resolver.Install(ctx, pkgtool.InstallOptions{
		Packages:  m.RequirementArgs(),
		TargetDir: scratch,
		NoCache:   p.opts.ResolverNoCache,
		Stdout:    p.opts.Stdout,
		Stderr:    p.opts.Stderr,
	})
	if installErr != nil {
		return nil, nil, issue.NewErrorContext().
			WithOperation("resolve dependency manifest").
			WithResource(manifestPath).
			WithSuggestion("Read the resolver output above for the offending package").
			WithSuggestion("Loosen an over-pinned version constraint").
			Wrap(fmt.Errorf("%w: %w", ErrResolutionFailed, installErr)).
			BuildError()
	}

	if err := WriteStamp(scratch, Stamp{Step: StepResolveDeps, Key: key, Tool: p.opts.Resolver.Name()}); err != nil {
		return nil, nil, err
	}

	_ = os.RemoveAll(bundleDir) // Replace any unstamped partial entry
	if err := os.Rename(scratch, bundleDir); err != nil {
		return nil, nil, fmt.Errorf("failed to publish bundle cache entry: %w", err)
	}

	return status, m, nil
}

// runStageSource snapshots the source tree into the cache, keyed by its
// content hash. Build detritus is excluded so editor churn does not
// invalidate the entry.
func (p *Pipeline) runStageSource(_ context.Context) (*StepStatus, error) {
	status := &StepStatus{Name: StepStageSource}

	sourceDir := p.sourcePath()
	if info, err := os.Stat(sourceDir); err != nil || !info.IsDir() {
		return nil, issue.NewErrorContext().
			WithOperation("stage application source").
			WithResource(sourceDir).
			WithSuggestion("Check that the source path in the stagefile points at a directory").
			Wrap(fmt.Errorf("source directory not found: %s", sourceDir)).
			BuildError()
	}

	key, err := CalculateDirHash(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to hash source directory: %w", err)
	}
	stagedDir := filepath.Join(p.opts.CacheDir, sourcesDirName, key)
	status.CacheKey = key
	status.OutputDir = stagedDir

	if !p.opts.Force && IsComplete(stagedDir, key) {
		p.logger.Info("source snapshot cached", "key", key[:12])
		status.CacheHit = true
		return status, nil
	}

	p.logger.Info("staging application source", "key", key[:12])

	parent := filepath.Join(p.opts.CacheDir, sourcesDirName)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create source cache directory: %w", err)
	}
	scratch, err := os.MkdirTemp(parent, "stage-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	if err := CopyDir(sourceDir, scratch, skipSourceEntry); err != nil {
		return nil, fmt.Errorf("failed to copy source tree: %w", err)
	}

	if err := WriteStamp(scratch, Stamp{Step: StepStageSource, Key: key}); err != nil {
		return nil, err
	}

	_ = os.RemoveAll(stagedDir)
	if err := os.Rename(scratch, stagedDir); err != nil {
		return nil, fmt.Errorf("failed to publish source cache entry: %w", err)
	}

	return status, nil
}

// runHooks executes the stagefile's build hooks inside the staged source
// tree. Hooks are never cached: they run on every build.
func (p *Pipeline) runHooks(ctx context.Context, sourceDir string) (*StepStatus, error) {
	status := &StepStatus{Name: StepHooks}

	if len(p.recipe.Build.Hooks) == 0 {
		status.Skipped = true
		return status, nil
	}

	p.logger.Info("running build hooks", "count", len(p.recipe.Build.Hooks))
	env := append(os.Environ(), "INFERPACK_SOURCE_DIR="+sourceDir)
	if err := RunHooks(ctx, p.recipe.Build.Hooks, sourceDir, env, p.opts.Stdout, p.opts.Stderr); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("run build hooks").
			WithSuggestion("Read the hook output above for the failing command").
			Wrap(err).
			BuildError()
	}
	return status, nil
}

// manifestPath resolves the manifest path relative to the stagefile.
func (p *Pipeline) manifestPath() string {
	return p.resolveRecipePath(p.recipe.Build.Manifest)
}

// sourcePath resolves the source path relative to the stagefile.
func (p *Pipeline) sourcePath() string {
	return p.resolveRecipePath(p.recipe.Build.Source)
}

func (p *Pipeline) resolveRecipePath(path string) string {
	if filepath.IsAbs(path) || p.recipe.FilePath == "" {
		return path
	}
	return filepath.Join(filepath.Dir(string(p.recipe.FilePath)), path)
}

// skipSourceEntry excludes build detritus from source snapshots.
func skipSourceEntry(name string, isDir bool) bool {
	if isDir {
		switch name {
		case ".git", "__pycache__", ".pytest_cache", ".mypy_cache", ".venv", "venv", "node_modules":
			return true
		}
		return false
	}
	return strings.HasSuffix(name, ".pyc") || strings.HasSuffix(name, ".pyo")
}
