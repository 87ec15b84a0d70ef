// SPDX-License-Identifier: MPL-2.0

package pkgtool

import (
	"context"
	"fmt"
	"io"
)

// Engine defines the interface for package installer operations.
type Engine interface {
	// Name returns the engine name (pip or apt)
	Name() string
	// Available checks if the engine is available on the system
	Available() bool
	// Version returns the engine version
	Version(ctx context.Context) (string, error)

	// Install installs packages per opts
	Install(ctx context.Context, opts InstallOptions) error
}

// InstallOptions contains options for an install run.
type InstallOptions struct {
	// Packages are the requirement arguments ("name" or "name==1.2.3")
	Packages []string
	// TargetDir, when set, installs into an isolated directory instead of
	// the system site (pip --target)
	TargetDir string
	// NoCache disables the installer's own download cache
	NoCache bool
	// Stdout is where to write installer output
	Stdout io.Writer
	// Stderr is where to write installer errors
	Stderr io.Writer
}

// EngineType identifies the installer engine type.
type EngineType string

const (
	EngineTypePip EngineType = "pip"
	EngineTypeApt EngineType = "apt"
)

// ErrEngineNotAvailable is returned when an installer tool is not available.
type ErrEngineNotAvailable struct {
	Engine string
	Reason string
}

func (e *ErrEngineNotAvailable) Error() string {
	return fmt.Sprintf("installer tool '%s' is not available: %s", e.Engine, e.Reason)
}

// NewEngine creates an installer engine of the requested type, honoring an
// explicit binary path. An empty binaryPath means auto-detect.
func NewEngine(engineType EngineType, binaryPath string) (Engine, error) {
	switch engineType {
	case EngineTypePip:
		engine := NewPipEngine(binaryPath)
		if engine.Available() {
			return engine, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "pip",
			Reason: "no pip-compatible installer (pip3 or pip) found on PATH",
		}

	case EngineTypeApt:
		engine := NewAptEngine(binaryPath)
		if engine.Available() {
			return engine, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "apt",
			Reason: "no apt-compatible installer (apt-get or apt) found on PATH",
		}

	default:
		return nil, fmt.Errorf("unknown installer engine type: %s", engineType)
	}
}
