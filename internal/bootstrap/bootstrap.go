// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"inferpack-cli/internal/issue"

	"github.com/charmbracelet/log"
)

// ErrAcquisitionFailed is the sentinel error wrapped by acquisition failures.
var ErrAcquisitionFailed = errors.New("asset acquisition failed")

type (
	// AssetSpec describes the external asset the service may need.
	AssetSpec struct {
		// Name is a human-readable label.
		Name string
		// Path is the asset location relative to the artifact root (or
		// absolute).
		Path string
		// Source is the acquisition URL (https://, s3://, file://).
		Source string
		// SHA256 optionally pins the expected digest.
		SHA256 string
	}

	// Options configures a Bootstrapper.
	Options struct {
		// ArtifactDir anchors relative asset paths.
		ArtifactDir string
		// FetchAssets gates acquisition. When false the bootstrapper never
		// touches the network.
		FetchAssets bool
		// Fetchers handle acquisition per scheme. Nil gets the default set
		// (https, http, s3, file).
		Fetchers []Fetcher
		// OnTransition, when set, observes every state change.
		OnTransition func(from, to State)
		// Logger receives progress. Nil uses the default logger.
		Logger *log.Logger
	}

	// Bootstrapper drives the startup state machine for one asset spec.
	// It is single-use: Run advances to StateAssetReady or StateFailed
	// exactly once.
	Bootstrapper struct {
		asset    *AssetSpec
		opts     Options
		fetchers map[string]Fetcher
		logger   *log.Logger
		state    State
	}
)

// New creates a bootstrapper. A nil asset means the service needs no
// runtime-acquired asset and Run reports ready immediately.
func New(asset *AssetSpec, opts Options) *Bootstrapper {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	fetchers := opts.Fetchers
	if fetchers == nil {
		httpFetcher := NewHTTPFetcher(nil)
		fetchers = []Fetcher{httpFetcher, NewS3Fetcher(), &FileFetcher{}}
	}
	byScheme := make(map[string]Fetcher, len(fetchers)+1)
	for _, f := range fetchers {
		byScheme[f.Scheme()] = f
		if f.Scheme() == "https" {
			byScheme["http"] = f
		}
	}
	return &Bootstrapper{
		asset:    asset,
		opts:     opts,
		fetchers: byScheme,
		logger:   logger,
		state:    StateNotStarted,
	}
}

// State returns the current state.
func (b *Bootstrapper) State() State { return b.state }

// transition moves to the next state, notifying the observer.
func (b *Bootstrapper) transition(to State) {
	from := b.state
	b.state = to
	b.logger.Debug("bootstrap transition", "from", from.String(), "to", to.String())
	if b.opts.OnTransition != nil {
		b.opts.OnTransition(from, to)
	}
}

// Run advances the machine until the asset requirement is satisfied or
// acquisition fails. The decision table:
//
//	asset on disk            -> ready (acquisition flag irrelevant)
//	asset absent, flag off   -> ready (the asset ships some other way)
//	asset absent, flag on    -> acquire, verify, place; failure is terminal
//	no asset declared        -> ready
func (b *Bootstrapper) Run(ctx context.Context) error {
	b.transition(StateCheckingAsset)

	if b.asset == nil {
		b.transition(StateAssetReady)
		return nil
	}

	assetPath := b.assetPath()
	if info, err := os.Stat(assetPath); err == nil && !info.IsDir() {
		b.logger.Info("asset present", "asset", b.asset.Name, "path", assetPath)
		b.transition(StateAssetReady)
		return nil
	}

	if !b.opts.FetchAssets {
		b.logger.Info("asset absent and acquisition disabled; continuing", "asset", b.asset.Name)
		b.transition(StateAssetReady)
		return nil
	}

	b.transition(StateAcquiringAsset)
	if err := b.acquire(ctx, assetPath); err != nil {
		b.transition(StateFailed)
		return issue.NewErrorContext().
			WithOperation("acquire asset").
			WithResource(b.asset.Name).
			WithSuggestion("Check that the asset source URL is reachable from this host").
			WithSuggestion("Pre-place the asset at its expected path to skip acquisition").
			WithSuggestion("Set INFERPACK_FETCH_ASSETS=false if the asset ships some other way").
			Wrap(fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)).
			BuildError()
	}

	b.transition(StateAssetReady)
	return nil
}

// MarkServing records the handoff to the service process. Only valid from
// StateAssetReady.
func (b *Bootstrapper) MarkServing() error {
	if b.state != StateAssetReady {
		return fmt.Errorf("cannot serve from state %s", b.state)
	}
	b.transition(StateServing)
	return nil
}

// acquire downloads the asset to a temp file next to its final path,
// verifies the digest when one is pinned, and renames it into place so a
// torn download is never observable at the asset path.
func (b *Bootstrapper) acquire(ctx context.Context, assetPath string) error {
	scheme := schemeOf(b.asset.Source)
	fetcher, ok := b.fetchers[scheme]
	if !ok {
		return fmt.Errorf("no fetcher for scheme %q", scheme)
	}

	dir := filepath.Dir(assetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating asset directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".fetch-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close() // Fetchers open the path themselves
	defer func() { _ = os.Remove(tmpPath) }()

	b.logger.Info("acquiring asset", "asset", b.asset.Name, "source", b.asset.Source)
	if err := fetcher.Fetch(ctx, b.asset.Source, tmpPath); err != nil {
		return err
	}

	if b.asset.SHA256 != "" {
		if err := VerifyFile(tmpPath, b.asset.SHA256); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpPath, assetPath); err != nil {
		return fmt.Errorf("placing asset: %w", err)
	}
	b.logger.Info("asset acquired", "asset", b.asset.Name, "path", assetPath)
	return nil
}

// assetPath resolves the asset location against the artifact root.
func (b *Bootstrapper) assetPath() string {
	if filepath.IsAbs(b.asset.Path) || b.opts.ArtifactDir == "" {
		return b.asset.Path
	}
	return filepath.Join(b.opts.ArtifactDir, b.asset.Path)
}

func schemeOf(source string) string {
	for i := 0; i < len(source); i++ {
		if source[i] == ':' {
			return source[:i]
		}
	}
	return ""
}
