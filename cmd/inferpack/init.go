// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"inferpack-cli/internal/manifest"
	"inferpack-cli/pkg/stagefile"

	"github.com/spf13/cobra"
)

var (
	initForce bool

	// initCmd scaffolds a stagefile and dependency manifest.
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a starter stagefile in the current directory",
		Long: `Create a starter stagefile and dependency manifest in the current
directory.

The generated stagefile declares the build layers, an example runtime
asset, the service run contract, and the liveness-probe settings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing files")
}

func runInit(_ *cobra.Command, args []string) error {
	filename := stagefile.DefaultFileName
	if len(args) > 0 {
		filename = args[0]
	}

	// Check if file exists
	if _, err := os.Stat(filename); err == nil && !initForce {
		return fmt.Errorf("file '%s' already exists. Use --force to overwrite", filename)
	}

	if err := os.WriteFile(filename, []byte(starterStagefile), 0o644); err != nil {
		return fmt.Errorf("failed to write stagefile: %w", err)
	}

	// The manifest is only scaffolded when absent so an existing one is
	// never clobbered by accident.
	manifestName := manifest.DefaultFileName
	if _, err := os.Stat(manifestName); os.IsNotExist(err) || initForce {
		if err := os.WriteFile(manifestName, []byte(starterManifest), 0o644); err != nil {
			return fmt.Errorf("failed to write dependency manifest: %w", err)
		}
	}

	absPath, _ := filepath.Abs(filename)
	fmt.Printf("%s Created %s\n", SuccessStyle.Render("✓"), absPath)
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Next steps:"))
	fmt.Println("  1. Edit the stagefile's source path and asset source")
	fmt.Println("  2. Pin your dependencies in " + manifestName)
	fmt.Println("  3. Run 'inferpack build' to assemble the runtime environment")
	fmt.Println("  4. Run 'inferpack run' to bootstrap and start the service")

	return nil
}

const starterStagefile = `name:        "detector-service"
description: "Vehicle detection inference service"

build: {
	manifest: "requirements.yaml"
	source:   "app"

	hooks: [{
		name: "smoke-check"
		run:  "echo \"source staged at $INFERPACK_SOURCE_DIR\""
	}]
}

asset: {
	name:   "yolov8n-weights"
	path:   "models/yolov8n.pt"
	source: "https://example.com/models/yolov8n.pt"
}

service: {
	host: "0.0.0.0"
	port: 8000
}

probe: {
	path:     "/healthz"
	interval: "30s"
	timeout:  "3s"
	grace:    "10s"

	failure_threshold: 3
}
`

const starterManifest = `packages:
  - name: fastapi
    constraint: ">=0.110.0"
  - name: uvicorn
    constraint: ">=0.29.0"
  - name: ultralytics
    constraint: "==8.1.0"
`
