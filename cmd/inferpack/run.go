// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"inferpack-cli/internal/assemble"
	"inferpack-cli/internal/bootstrap"
	"inferpack-cli/internal/config"
	"inferpack-cli/internal/credential"
	"inferpack-cli/internal/issue"
	"inferpack-cli/internal/server"
	"inferpack-cli/pkg/stagefile"
	"inferpack-cli/pkg/types"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	runArtifactDir string
	runHost        string
	runPort        int

	// runCmd bootstraps an assembled runtime environment and starts its
	// service process.
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Bootstrap and start the packaged service",
		Long: `Bootstrap an assembled runtime environment and start its service.

Startup first checks the environment's external asset (e.g., model
weights): an asset already on disk is used as-is, an absent asset is
fetched exactly once when acquisition is enabled, and a failed
acquisition exits non-zero so a supervisor can apply its restart
policy. The service is either the argv declared in the stagefile or
the built-in reference server.`,
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().StringVar(&runArtifactDir, "artifact", stagefile.DefaultOutputDir, "assembled runtime environment directory")
	runCmd.Flags().StringVar(&runHost, "host", "", "bind address override for the built-in server")
	runCmd.Flags().IntVar(&runPort, "port", 0, "bind port override for the built-in server")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	meta, err := assemble.ReadMetadata(runArtifactDir)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("read runtime environment metadata").
			WithResource(runArtifactDir).
			WithSuggestion("Run 'inferpack build' to assemble the runtime environment first").
			WithSuggestion("Pass --artifact if the environment lives somewhere else").
			Wrap(err).
			BuildError()
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	artifactDir, err := filepath.Abs(runArtifactDir)
	if err != nil {
		return fmt.Errorf("failed to resolve artifact directory: %w", err)
	}

	var spec *bootstrap.AssetSpec
	if meta.Asset != nil {
		spec = &bootstrap.AssetSpec{
			Name:   meta.Asset.Name,
			Path:   meta.Asset.Path,
			Source: meta.Asset.Source,
			SHA256: meta.Asset.SHA256,
		}
	}

	b := bootstrap.New(spec, bootstrap.Options{
		ArtifactDir: artifactDir,
		FetchAssets: cfg.FetchAssets,
		Logger:      logger,
		OnTransition: func(from, to bootstrap.State) {
			logger.Debug("bootstrap transition", "from", from.String(), "to", to.String())
		},
	})
	if err := b.Run(ctx); err != nil {
		renderIssue(issue.AssetAcquisitionFailedId)
		return &ExitError{Code: types.ExitAcquisitionFailed, Err: err}
	}

	credEnv, err := credential.PrepareEnv(cfg.CredentialFile, logger)
	if err != nil {
		return err
	}

	if err := b.MarkServing(); err != nil {
		return err
	}

	if len(meta.Service.Exec) > 0 {
		return execService(ctx, artifactDir, meta, credEnv)
	}
	return serveBuiltin(ctx, artifactDir, meta, logger)
}

// execService runs the stagefile-declared service argv inside the runtime
// environment and propagates its exit status.
func execService(ctx context.Context, artifactDir string, meta *assemble.Metadata, extraEnv []string) error {
	argv := meta.Service.Exec
	bin := argv[0]
	if !filepath.IsAbs(bin) {
		if candidate := filepath.Join(artifactDir, bin); fileExistsCheck(candidate) {
			bin = candidate
		}
	}

	proc := exec.CommandContext(ctx, bin, argv[1:]...)
	proc.Dir = filepath.Join(artifactDir, assemble.AppDirName)
	proc.Stdin = os.Stdin
	proc.Stdout = os.Stdout
	proc.Stderr = os.Stderr
	proc.Env = append(os.Environ(),
		"INFERPACK_ARTIFACT_DIR="+artifactDir,
		// The dependency bundle is a flat pip --target layout.
		"PYTHONPATH="+filepath.Join(artifactDir, assemble.DepsDirName),
	)
	proc.Env = append(proc.Env, extraEnv...)

	if err := proc.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			return &ExitError{Code: types.ExitCode(exitErr.ExitCode()), Err: err}
		}
		return fmt.Errorf("service process failed: %w", err)
	}
	return nil
}

// serveBuiltin starts the built-in reference server against the
// environment's asset.
func serveBuiltin(ctx context.Context, artifactDir string, meta *assemble.Metadata, logger *log.Logger) error {
	weights := ""
	if meta.Asset != nil {
		weights = meta.Asset.Path
		if !filepath.IsAbs(weights) {
			weights = filepath.Join(artifactDir, weights)
		}
	}

	host := meta.Service.Host
	if runHost != "" {
		host = runHost
	}
	port := meta.Service.Port
	if runPort != 0 {
		port = runPort
	}

	srv, err := server.New(server.Options{
		Host:       host,
		Port:       port,
		HealthPath: meta.Probe.Path,
		Detector:   server.NewStubDetector(weights),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
