// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// StampFileName is the marker file written into a cache entry once the
// step that produced it completed. Entries without a stamp are treated as
// partial output from an interrupted build and are rebuilt.
const StampFileName = ".stamp.toml"

// Stamp records how a cache entry came to be.
type Stamp struct {
	// Step is the pipeline step that produced the entry.
	Step string `toml:"step"`

	// Key is the full content-hash cache key.
	Key string `toml:"key"`

	// CreatedAt is when the entry was completed.
	CreatedAt time.Time `toml:"created_at"`

	// Tool optionally records the installer tool and version used.
	Tool string `toml:"tool,omitempty"`
}

// WriteStamp marks dir as a complete cache entry.
func WriteStamp(dir string, stamp Stamp) error {
	if stamp.CreatedAt.IsZero() {
		stamp.CreatedAt = time.Now().UTC()
	}
	data, err := toml.Marshal(stamp)
	if err != nil {
		return fmt.Errorf("failed to encode stamp: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, StampFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write stamp: %w", err)
	}
	return nil
}

// ReadStamp loads the stamp of a cache entry. A missing stamp returns
// (nil, nil): the entry exists but was never completed.
func ReadStamp(dir string) (*Stamp, error) {
	data, err := os.ReadFile(filepath.Join(dir, StampFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read stamp: %w", err)
	}
	var stamp Stamp
	if err := toml.Unmarshal(data, &stamp); err != nil {
		return nil, fmt.Errorf("failed to decode stamp: %w", err)
	}
	return &stamp, nil
}

// IsComplete reports whether dir is a stamped cache entry for key.
func IsComplete(dir, key string) bool {
	stamp, err := ReadStamp(dir)
	if err != nil || stamp == nil {
		return false
	}
	return stamp.Key == key
}
