// SPDX-License-Identifier: MPL-2.0

package assemble

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inferpack-cli/internal/issue"
	"inferpack-cli/internal/stage"
	"inferpack-cli/pkg/stagefile"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

const (
	// MetadataFileName is the run-contract metadata written into the
	// artifact root.
	MetadataFileName = "runtime.toml"

	// DepsDirName is where the dependency bundle lands inside the artifact.
	DepsDirName = "deps"

	// AppDirName is where the application source lands inside the artifact.
	AppDirName = "app"
)

var (
	// ErrBundleMissing is returned when assembly starts without a resolved
	// dependency bundle for the current manifest.
	ErrBundleMissing = errors.New("dependency bundle missing")

	// ErrBuildToolingPresent is returned by Verify when the artifact still
	// contains build tooling.
	ErrBuildToolingPresent = errors.New("build tooling present in artifact")
)

type (
	// Metadata is the run contract recorded in the artifact root. The run
	// and serve commands read it instead of re-parsing the stagefile.
	Metadata struct {
		// Name is the artifact name from the stagefile.
		Name string `toml:"name"`

		// BuiltAt is the assembly timestamp.
		BuiltAt time.Time `toml:"built_at"`

		// BundleKey is the manifest content hash the deps layer came from.
		BundleKey string `toml:"bundle_key"`

		// SourceKey is the source snapshot content hash.
		SourceKey string `toml:"source_key"`

		Service ServiceMetadata `toml:"service"`
		Asset   *AssetMetadata  `toml:"asset,omitempty"`
		Probe   ProbeMetadata   `toml:"probe"`
	}

	// ServiceMetadata is the process run contract.
	ServiceMetadata struct {
		Exec []string `toml:"exec,omitempty"`
		Host string   `toml:"host"`
		Port int      `toml:"port"`
	}

	// AssetMetadata describes the runtime-acquired asset, if any.
	AssetMetadata struct {
		Name   string `toml:"name"`
		Path   string `toml:"path"`
		Source string `toml:"source"`
		SHA256 string `toml:"sha256,omitempty"`
	}

	// ProbeMetadata is the liveness contract published with the artifact.
	ProbeMetadata struct {
		Path             string `toml:"path"`
		Interval         string `toml:"interval"`
		Timeout          string `toml:"timeout"`
		Grace            string `toml:"grace"`
		FailureThreshold int    `toml:"failure_threshold"`
	}

	// Options configures an assembly run.
	Options struct {
		// OutputDir is where the artifact is written. Required.
		OutputDir string
		// CredentialSource optionally overrides the stagefile's credential
		// source path (e.g., from process config).
		CredentialSource string
		// Logger receives progress. Nil uses the default logger.
		Logger *log.Logger
	}

	// Assembler builds runtime artifacts.
	Assembler struct {
		recipe *stagefile.Stagefile
		opts   Options
		logger *log.Logger
	}
)

// New creates an assembler for the given recipe.
func New(recipe *stagefile.Stagefile, opts Options) (*Assembler, error) {
	if recipe == nil {
		return nil, fmt.Errorf("recipe is required")
	}
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output dir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Assembler{recipe: recipe, opts: opts, logger: logger}, nil
}

// Assemble composes the artifact from the pipeline result. The output
// directory is replaced wholesale; a failed assembly never leaves a
// half-written artifact at the output path.
func (a *Assembler) Assemble(result *stage.Result) (string, error) {
	if result == nil || result.BundleDir == "" {
		return "", a.bundleMissingError("")
	}
	if !stage.IsComplete(result.BundleDir, stepKey(result, stage.StepResolveDeps)) {
		return "", a.bundleMissingError(result.BundleDir)
	}

	a.logger.Info("assembling runtime environment", "output", a.opts.OutputDir)

	// Stage into a scratch sibling, then swap into place.
	parent := filepath.Dir(a.opts.OutputDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output parent directory: %w", err)
	}
	scratch, err := os.MkdirTemp(parent, ".assemble-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	if err := stage.CopyDir(result.BundleDir, filepath.Join(scratch, DepsDirName), skipArtifactEntry); err != nil {
		return "", fmt.Errorf("failed to copy dependency bundle: %w", err)
	}
	if err := stage.CopyDir(result.SourceDir, filepath.Join(scratch, AppDirName), skipArtifactEntry); err != nil {
		return "", fmt.Errorf("failed to copy application source: %w", err)
	}

	if err := a.placeCredential(scratch); err != nil {
		return "", err
	}

	if err := a.writeMetadata(scratch, result); err != nil {
		return "", err
	}

	if err := Verify(scratch); err != nil {
		return "", err
	}

	if err := os.RemoveAll(a.opts.OutputDir); err != nil {
		return "", fmt.Errorf("failed to clear previous artifact: %w", err)
	}
	if err := os.Rename(scratch, a.opts.OutputDir); err != nil {
		return "", fmt.Errorf("failed to publish artifact: %w", err)
	}

	a.logger.Info("runtime environment assembled", "path", a.opts.OutputDir)
	return a.opts.OutputDir, nil
}

// placeCredential copies credential material into the artifact root with
// owner-only permissions. The credential never transits the build cache.
func (a *Assembler) placeCredential(artifactDir string) error {
	cred := a.recipe.Build.Credential
	source := a.opts.CredentialSource
	if source == "" && cred != nil {
		source = cred.Source
	}
	if source == "" {
		return nil
	}

	targetName := filepath.Base(source)
	if cred != nil {
		targetName = cred.TargetName()
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("place credential material").
			WithResource(source).
			WithSuggestion("Check that the credential file exists and is readable").
			WithSuggestion("Credential paths can also be set via INFERPACK_CREDENTIAL_FILE").
			Wrap(err).
			BuildError()
	}
	target := filepath.Join(artifactDir, targetName)
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential into artifact: %w", err)
	}
	a.logger.Info("credential placed", "target", targetName)
	return nil
}

// writeMetadata records the run contract in the artifact root.
func (a *Assembler) writeMetadata(artifactDir string, result *stage.Result) error {
	meta := Metadata{
		Name:      a.recipe.Name,
		BuiltAt:   time.Now().UTC(),
		BundleKey: stepKey(result, stage.StepResolveDeps),
		SourceKey: stepKey(result, stage.StepStageSource),
		Service: ServiceMetadata{
			Exec: a.recipe.Service.Exec,
			Host: a.recipe.Service.Host,
			Port: int(a.recipe.Service.Port.OrDefault()),
		},
		Probe: ProbeMetadata{
			Path:             a.recipe.Probe.Path,
			Interval:         a.recipe.Probe.Interval,
			Timeout:          a.recipe.Probe.Timeout,
			Grace:            a.recipe.Probe.Grace,
			FailureThreshold: a.recipe.Probe.FailureThreshold,
		},
	}
	if a.recipe.Asset != nil {
		meta.Asset = &AssetMetadata{
			Name:   a.recipe.Asset.Name,
			Path:   a.recipe.Asset.Path,
			Source: a.recipe.Asset.Source,
			SHA256: a.recipe.Asset.SHA256,
		}
	}

	data, err := toml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode artifact metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(artifactDir, MetadataFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads the run contract from an assembled artifact.
func ReadMetadata(artifactDir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(artifactDir, MetadataFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact metadata: %w", err)
	}
	var meta Metadata
	if err := toml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode artifact metadata: %w", err)
	}
	return &meta, nil
}

func (a *Assembler) bundleMissingError(bundleDir string) error {
	return issue.NewErrorContext().
		WithOperation("assemble runtime environment").
		WithResource(bundleDir).
		WithSuggestion("Run a full build so dependency resolution happens first").
		Wrap(ErrBundleMissing).
		BuildError()
}

func stepKey(result *stage.Result, name string) string {
	for _, s := range result.Steps {
		if s.Name == name {
			return s.CacheKey
		}
	}
	return ""
}

// buildToolingNames are directory or binary names whose presence in an
// artifact means build tooling leaked across the build/runtime boundary.
var buildToolingNames = map[string]bool{
	"pip":             true,
	"pip3":            true,
	"setuptools":      true,
	"wheel":           true,
	"apt":             true,
	"apt-get":         true,
	"__pycache__":     true,
	".cache":          true,
	".git":            true,
	stage.StampFileName: true,
}

// skipArtifactEntry drops build tooling and caches while copying pipeline
// outputs into the artifact.
func skipArtifactEntry(name string, isDir bool) bool {
	if buildToolingNames[name] {
		return true
	}
	if isDir {
		// pip --target leaves dist-info for the installer itself too;
		// those are wanted for the real packages, so only the tool dirs
		// above are dropped.
		return false
	}
	return strings.HasSuffix(name, ".pyc") || strings.HasSuffix(name, ".pyo")
}

// Verify walks an assembled artifact and fails if build tooling survived
// assembly. This is the enforcement of the build/runtime boundary.
func Verify(artifactDir string) error {
	var offenders []string
	err := filepath.Walk(artifactDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := info.Name()
		if path != artifactDir && buildToolingNames[name] {
			rel, _ := filepath.Rel(artifactDir, path)
			offenders = append(offenders, rel)
			if info.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to verify artifact: %w", err)
	}
	if len(offenders) > 0 {
		return fmt.Errorf("%w: %s", ErrBuildToolingPresent, strings.Join(offenders, ", "))
	}
	return nil
}
