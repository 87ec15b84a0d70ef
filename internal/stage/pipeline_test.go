// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"inferpack-cli/internal/pkgtool"
	"inferpack-cli/pkg/stagefile"
	"inferpack-cli/pkg/types"
)

// fakeResolver implements pkgtool.Engine by writing a marker file into the
// target directory and counting invocations.
type fakeResolver struct {
	installs int
	failWith error
}

func (f *fakeResolver) Name() string                            { return "pip" }
func (f *fakeResolver) Available() bool                         { return true }
func (f *fakeResolver) Version(context.Context) (string, error) { return "pip 24.0 (fake)", nil }

func (f *fakeResolver) Install(_ context.Context, opts pkgtool.InstallOptions) error {
	f.installs++
	if f.failWith != nil {
		return f.failWith
	}
	if opts.TargetDir != "" {
		return os.WriteFile(filepath.Join(opts.TargetDir, "installed.txt"), []byte("ok"), 0o644)
	}
	return nil
}

// buildFixture lays out a stagefile-shaped project and returns the recipe.
func buildFixture(t *testing.T) (*stagefile.Stagefile, string) {
	t.Helper()

	projectDir := t.TempDir()
	srcDir := filepath.Join(projectDir, "app")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "main.py"), []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	manifestContent := "packages:\n  - name: fastapi\n    constraint: \">=0.100\"\n"
	if err := os.WriteFile(filepath.Join(projectDir, "requirements.yaml"), []byte(manifestContent), 0o644); err != nil {
		t.Fatal(err)
	}

	recipe := &stagefile.Stagefile{
		Name: "detector",
		Build: stagefile.Build{
			Manifest: "requirements.yaml",
			Source:   "app",
		},
		FilePath: types.FilesystemPath(filepath.Join(projectDir, "stagefile.cue")),
	}
	return recipe, projectDir
}

func stepByName(t *testing.T, result *Result, name string) StepStatus {
	t.Helper()
	for _, s := range result.Steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no step %q in result", name)
	return StepStatus{}
}

func TestPipeline_ResolveCacheHit(t *testing.T) {
	t.Parallel()

	recipe, _ := buildFixture(t)
	cacheDir := t.TempDir()
	resolver := &fakeResolver{}

	pipeline, err := NewPipeline(recipe, Options{
		CacheDir: cacheDir,
		Resolver: resolver,
	})
	if err != nil {
		t.Fatal(err)
	}

	first, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if stepByName(t, first, StepResolveDeps).CacheHit {
		t.Error("first build must not be a cache hit")
	}
	if resolver.installs != 1 {
		t.Fatalf("resolver invoked %d times, want 1", resolver.installs)
	}

	second, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !stepByName(t, second, StepResolveDeps).CacheHit {
		t.Error("unchanged manifest must reuse the bundle cache entry")
	}
	if resolver.installs != 1 {
		t.Errorf("resolver invoked %d times, want 1 (no re-resolution on cache hit)", resolver.installs)
	}
	if first.BundleDir != second.BundleDir {
		t.Error("identical manifests must map to the same bundle directory")
	}
}

func TestPipeline_SourceChangeKeepsBundleCached(t *testing.T) {
	t.Parallel()

	recipe, projectDir := buildFixture(t)
	cacheDir := t.TempDir()
	resolver := &fakeResolver{}

	pipeline, err := NewPipeline(recipe, Options{CacheDir: cacheDir, Resolver: resolver})
	if err != nil {
		t.Fatal(err)
	}

	first, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Edit only the source tree; the dependency layer's inputs are untouched.
	if err := os.WriteFile(filepath.Join(projectDir, "app", "main.py"), []byte("print('v2')\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !stepByName(t, second, StepResolveDeps).CacheHit {
		t.Error("source edit must not invalidate the dependency bundle")
	}
	if resolver.installs != 1 {
		t.Errorf("resolver invoked %d times, want 1", resolver.installs)
	}
	if stepByName(t, second, StepStageSource).CacheHit {
		t.Error("edited source must be re-staged")
	}
	if first.SourceDir == second.SourceDir {
		t.Error("edited source must map to a new cache entry")
	}
}

func TestPipeline_ManifestChangeInvalidatesBundle(t *testing.T) {
	t.Parallel()

	recipe, projectDir := buildFixture(t)
	cacheDir := t.TempDir()
	resolver := &fakeResolver{}

	pipeline, err := NewPipeline(recipe, Options{CacheDir: cacheDir, Resolver: resolver})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pipeline.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	updated := "packages:\n  - name: fastapi\n    constraint: \">=0.110\"\n"
	if err := os.WriteFile(filepath.Join(projectDir, "requirements.yaml"), []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stepByName(t, second, StepResolveDeps).CacheHit {
		t.Error("manifest edit must invalidate the bundle cache entry")
	}
	if resolver.installs != 2 {
		t.Errorf("resolver invoked %d times, want 2", resolver.installs)
	}
	// But the unchanged source layer stays cached.
	if !stepByName(t, second, StepStageSource).CacheHit {
		t.Error("unchanged source must stay cached across a manifest edit")
	}
}

func TestPipeline_ResolutionFailureLeavesNoStampedBundle(t *testing.T) {
	t.Parallel()

	recipe, _ := buildFixture(t)
	cacheDir := t.TempDir()
	resolveErr := errors.New("no matching distribution found")
	resolver := &fakeResolver{failWith: resolveErr}

	pipeline, err := NewPipeline(recipe, Options{CacheDir: cacheDir, Resolver: resolver})
	if err != nil {
		t.Fatal(err)
	}

	_, err = pipeline.Run(context.Background())
	if err == nil {
		t.Fatal("expected resolution failure")
	}
	if !errors.Is(err, resolveErr) {
		t.Errorf("error should wrap the resolver failure, got %v", err)
	}

	// The failed attempt must not publish a bundle a later run could reuse.
	resolver.failWith = nil
	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("retry Run() error = %v", err)
	}
	if stepByName(t, result, StepResolveDeps).CacheHit {
		t.Error("failed resolution must not leave a reusable cache entry")
	}
}

func TestPipeline_ForceRebuild(t *testing.T) {
	t.Parallel()

	recipe, _ := buildFixture(t)
	cacheDir := t.TempDir()
	resolver := &fakeResolver{}

	pipeline, err := NewPipeline(recipe, Options{CacheDir: cacheDir, Resolver: resolver})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pipeline.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	forced, err := NewPipeline(recipe, Options{CacheDir: cacheDir, Resolver: resolver, Force: true})
	if err != nil {
		t.Fatal(err)
	}
	result, err := forced.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stepByName(t, result, StepResolveDeps).CacheHit {
		t.Error("forced build must ignore cache entries")
	}
	if resolver.installs != 2 {
		t.Errorf("resolver invoked %d times, want 2", resolver.installs)
	}
}

func TestPipeline_HooksRunInStagedSource(t *testing.T) {
	t.Parallel()

	recipe, _ := buildFixture(t)
	recipe.Build.Hooks = []stagefile.Hook{
		{Name: "mark", Run: "echo marked > hook-output.txt"},
	}
	cacheDir := t.TempDir()

	pipeline, err := NewPipeline(recipe, Options{CacheDir: cacheDir, Resolver: &fakeResolver{}})
	if err != nil {
		t.Fatal(err)
	}
	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(result.SourceDir, "hook-output.txt")); err != nil {
		t.Errorf("hook output missing from staged source: %v", err)
	}
}

func TestPipeline_FailingHookAbortsBuild(t *testing.T) {
	t.Parallel()

	recipe, _ := buildFixture(t)
	recipe.Build.Hooks = []stagefile.Hook{
		{Name: "boom", Run: "exit 7"},
	}
	cacheDir := t.TempDir()

	pipeline, err := NewPipeline(recipe, Options{CacheDir: cacheDir, Resolver: &fakeResolver{}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pipeline.Run(context.Background()); err == nil {
		t.Fatal("expected hook failure to abort the build")
	}
}

func TestPipeline_SourceSnapshotExcludesDetritus(t *testing.T) {
	t.Parallel()

	recipe, projectDir := buildFixture(t)
	junkDir := filepath.Join(projectDir, "app", "__pycache__")
	if err := os.MkdirAll(junkDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(junkDir, "main.cpython-312.pyc"), []byte{0}, 0o644); err != nil {
		t.Fatal(err)
	}
	cacheDir := t.TempDir()

	pipeline, err := NewPipeline(recipe, Options{CacheDir: cacheDir, Resolver: &fakeResolver{}})
	if err != nil {
		t.Fatal(err)
	}
	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(result.SourceDir, "__pycache__")); !os.IsNotExist(err) {
		t.Error("__pycache__ must not be copied into the source snapshot")
	}
}

func TestNewPipeline_Validation(t *testing.T) {
	t.Parallel()

	recipe, _ := buildFixture(t)
	if _, err := NewPipeline(nil, Options{CacheDir: "x", Resolver: &fakeResolver{}}); err == nil {
		t.Error("nil recipe must be rejected")
	}
	if _, err := NewPipeline(recipe, Options{Resolver: &fakeResolver{}}); err == nil {
		t.Error("missing cache dir must be rejected")
	}
	if _, err := NewPipeline(recipe, Options{CacheDir: "x"}); err == nil {
		t.Error("missing resolver must be rejected")
	}
}
