// SPDX-License-Identifier: MPL-2.0

package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// EnvVar is the environment variable handed to the service process so it
// can locate its credential file.
const EnvVar = "INFERPACK_CREDENTIAL_FILE"

var (
	// ErrNotFound is returned when a configured credential file is absent.
	ErrNotFound = errors.New("credential file not found")
	// ErrNotRegular is returned when the credential path is not a regular file.
	ErrNotRegular = errors.New("credential path is not a regular file")
)

// Material describes a credential file by metadata only.
type Material struct {
	// Path is the absolute credential file location.
	Path string
	// Mode is the file mode at inspection time.
	Mode os.FileMode
	// Size is the file size in bytes.
	Size int64
}

// WorldReadable reports whether any permission bits are set for "other".
func (m *Material) WorldReadable() bool {
	return m.Mode.Perm()&0o004 != 0
}

// Inspect stats a configured credential file. It fails when the file is
// missing: a service that declares a credential must not start without it.
func Inspect(path string) (*Material, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving credential path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return nil, fmt.Errorf("inspecting credential file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, abs)
	}
	return &Material{Path: abs, Mode: info.Mode(), Size: info.Size()}, nil
}

// PrepareEnv validates the credential (when configured) and returns the
// environment entries the service process needs. An empty path means no
// credential is configured and yields no entries.
//
// Loose permissions get a warning, not an error: the file may live on a
// mount whose modes the operator cannot change.
func PrepareEnv(path string, logger *log.Logger) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if logger == nil {
		logger = log.Default()
	}

	material, err := Inspect(path)
	if err != nil {
		return nil, err
	}
	if material.WorldReadable() {
		logger.Warn("credential file is world-readable", "path", material.Path, "mode", material.Mode.Perm().String())
	}
	return []string{EnvVar + "=" + material.Path}, nil
}
