// SPDX-License-Identifier: MPL-2.0

package pkgtool

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// AptEngine implements the Engine interface using an apt-compatible CLI.
// It embeds BaseCLIEngine for common CLI operations.
type AptEngine struct {
	*BaseCLIEngine
}

// NewAptEngine creates an apt engine. An empty binaryPath auto-detects,
// preferring apt-get (stable CLI surface) over apt.
func NewAptEngine(binaryPath string, opts ...BaseCLIEngineOption) *AptEngine {
	if binaryPath == "" {
		for _, candidate := range []string{"apt-get", "apt"} {
			if path, err := exec.LookPath(candidate); err == nil {
				binaryPath = path
				break
			}
		}
	}
	return &AptEngine{
		BaseCLIEngine: NewBaseCLIEngine("apt", binaryPath, opts...),
	}
}

// Name returns the engine name.
func (e *AptEngine) Name() string {
	return string(EngineTypeApt)
}

// Available checks if the installer responds.
func (e *AptEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	return e.RunCommandStatus(context.Background(), "--version") == nil
}

// Version returns the installer version string (first line).
func (e *AptEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "--version")
	if err != nil {
		return "", fmt.Errorf("failed to get apt version: %w", err)
	}
	line, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(line), nil
}

// Install installs system packages non-interactively. TargetDir is ignored:
// system packages always land in the system prefix.
func (e *AptEngine) Install(ctx context.Context, opts InstallOptions) error {
	args := e.InstallArgs(opts)

	cmd := e.CreateCommand(ctx, args...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	cmd.Env = append(cmd.Environ(), "DEBIAN_FRONTEND=noninteractive")

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("apt install failed for [%s]: %w", strings.Join(opts.Packages, ", "), err)
	}
	return nil
}

// InstallArgs builds the apt install argument list.
func (e *AptEngine) InstallArgs(opts InstallOptions) []string {
	args := []string{"install", "-y", "--no-install-recommends"}
	args = append(args, opts.Packages...)
	return args
}
