// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"inferpack-cli/internal/assemble"
	"inferpack-cli/internal/config"
	"inferpack-cli/internal/issue"
	"inferpack-cli/internal/pkgtool"
	"inferpack-cli/internal/stage"
	"inferpack-cli/pkg/stagefile"
	"inferpack-cli/pkg/types"

	"github.com/spf13/cobra"
)

var (
	buildFile    string
	buildOutput  string
	buildForce   bool
	buildNoCache bool

	// buildCmd runs the staged build and assembles the runtime environment.
	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Build the runtime environment from a stagefile",
		Long: `Build the runtime environment declared by a stagefile.

The build runs in layers ordered by volatility: system packages,
dependency resolution, source staging, then build hooks. Each cacheable
layer is keyed by a content hash of its inputs; unchanged inputs reuse
the cached entry without re-running tools. The assembled environment
contains no build tooling and no package-manager caches.`,
		RunE: runBuild,
	}
)

func init() {
	buildCmd.Flags().StringVarP(&buildFile, "file", "f", stagefile.DefaultFileName, "stagefile to build")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output directory (default from the stagefile)")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "rebuild every layer, ignoring cache entries")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "disable the resolver tool's own package cache")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	if !fileExistsCheck(buildFile) {
		renderIssue(issue.StagefileNotFoundId)
		return fmt.Errorf("stagefile not found: %s", buildFile)
	}
	recipe, err := stagefile.Parse(types.FilesystemPath(buildFile))
	if err != nil {
		return fmt.Errorf("failed to parse stagefile: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	cacheDir := string(cfg.CacheDir)
	if cacheDir == "" {
		cacheDir, err = config.DefaultCacheDir()
		if err != nil {
			return err
		}
	}

	resolver, err := pkgtool.NewEngine(pkgtool.EngineTypePip, string(cfg.Resolver.Binary))
	if err != nil {
		renderIssue(issue.ResolverToolNotFoundId)
		return &ExitError{Code: types.ExitResolutionFailed, Err: err}
	}

	var system pkgtool.Engine
	if cfg.System.Enabled {
		system, err = pkgtool.NewEngine(pkgtool.EngineTypeApt, string(cfg.System.Binary))
		if err != nil {
			logger.Warn("system installer not available; system packages will be skipped", "err", err)
			system = nil
		}
	}

	pipeline, err := stage.NewPipeline(recipe, stage.Options{
		CacheDir:        cacheDir,
		Resolver:        resolver,
		System:          system,
		ResolverNoCache: buildNoCache || cfg.Resolver.NoCache,
		Force:           buildForce,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	result, err := pipeline.Run(ctx)
	if err != nil {
		if errors.Is(err, stage.ErrResolutionFailed) {
			renderIssue(issue.ManifestResolutionFailedId)
			return &ExitError{Code: types.ExitResolutionFailed, Err: err}
		}
		return err
	}

	outputDir := buildOutput
	if outputDir == "" {
		outputDir = recipe.Build.OutputDir()
	}

	assembler, err := assemble.New(recipe, assemble.Options{
		OutputDir:        outputDir,
		CredentialSource: cfg.CredentialFile,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	artifactPath, err := assembler.Assemble(result)
	if err != nil {
		if errors.Is(err, assemble.ErrBundleMissing) {
			renderIssue(issue.BundleMissingId)
		}
		return &ExitError{Code: types.ExitAssemblyFailed, Err: err}
	}

	printBuildSummary(result, artifactPath)
	return nil
}

// printBuildSummary lists each build step with its cache outcome.
func printBuildSummary(result *stage.Result, artifactPath string) {
	fmt.Println()
	for _, step := range result.Steps {
		switch {
		case step.Skipped:
			fmt.Printf("  %s %s\n", SubtitleStyle.Render("-"), SubtitleStyle.Render(step.Name+" (skipped)"))
		case step.CacheHit:
			fmt.Printf("  %s %s %s\n", SuccessStyle.Render("✓"), step.Name,
				VerboseStyle.Render("(cached "+shortKey(step.CacheKey)+")"))
		default:
			line := fmt.Sprintf("  %s %s", SuccessStyle.Render("✓"), step.Name)
			if step.CacheKey != "" {
				line += " " + VerboseStyle.Render(shortKey(step.CacheKey))
			}
			fmt.Println(line)
		}
	}
	fmt.Println()
	fmt.Printf("%s Runtime environment at %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(artifactPath))
}

// shortKey abbreviates a content-hash key for display.
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// fileExistsCheck checks if a file exists and is not a directory.
func fileExistsCheck(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
