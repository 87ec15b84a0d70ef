// SPDX-License-Identifier: MPL-2.0

package pkgtool

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// PipEngine implements the Engine interface using a pip-compatible CLI.
// It embeds BaseCLIEngine for common CLI operations.
type PipEngine struct {
	*BaseCLIEngine
}

// NewPipEngine creates a pip engine. An empty binaryPath auto-detects,
// preferring pip3 over pip.
func NewPipEngine(binaryPath string, opts ...BaseCLIEngineOption) *PipEngine {
	if binaryPath == "" {
		for _, candidate := range []string{"pip3", "pip"} {
			if path, err := exec.LookPath(candidate); err == nil {
				binaryPath = path
				break
			}
		}
	}
	return &PipEngine{
		BaseCLIEngine: NewBaseCLIEngine("pip", binaryPath, opts...),
	}
}

// Name returns the engine name.
func (e *PipEngine) Name() string {
	return string(EngineTypePip)
}

// Available checks if the installer responds.
func (e *PipEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	return e.RunCommandStatus(context.Background(), "--version") == nil
}

// Version returns the installer version string.
func (e *PipEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "--version")
	if err != nil {
		return "", fmt.Errorf("failed to get pip version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Install resolves and installs the given requirements. When TargetDir is
// set, packages land in that directory instead of the interpreter's site,
// which is how resolved bundles stay relocatable.
func (e *PipEngine) Install(ctx context.Context, opts InstallOptions) error {
	args := e.InstallArgs(opts)

	cmd := e.CreateCommand(ctx, args...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pip install failed for [%s]: %w", strings.Join(opts.Packages, ", "), err)
	}
	return nil
}

// InstallArgs builds the pip install argument list.
func (e *PipEngine) InstallArgs(opts InstallOptions) []string {
	args := []string{"install"}
	if opts.TargetDir != "" {
		args = append(args, "--target", opts.TargetDir)
	}
	if opts.NoCache {
		args = append(args, "--no-cache-dir")
	}
	args = append(args, opts.Packages...)
	return args
}
