// SPDX-License-Identifier: MPL-2.0

package stagefile

import (
	_ "embed"
	"fmt"
	"os"

	"inferpack-cli/pkg/cueutil"
	"inferpack-cli/pkg/types"
)

//go:embed stagefile_schema.cue
var stagefileSchema string

// Parse reads and parses a stagefile from the given path.
func Parse(path types.FilesystemPath) (*Stagefile, error) {
	pathStr := string(path)
	data, err := os.ReadFile(pathStr)
	if err != nil {
		return nil, fmt.Errorf("failed to read stagefile at %s: %w", path, err)
	}

	return ParseBytes(data, pathStr)
}

// ParseBytes parses stagefile content from bytes.
// Uses cueutil.ParseAndDecodeString for the 3-step CUE parsing flow:
// compile schema → compile user data → validate and decode.
func ParseBytes(data []byte, path string) (*Stagefile, error) {
	result, err := cueutil.ParseAndDecodeString[Stagefile](
		stagefileSchema,
		data,
		"#Stagefile",
		cueutil.WithFilename(path),
	)
	if err != nil {
		return nil, err
	}

	sf := result.Value
	sf.FilePath = types.FilesystemPath(path)

	// Structural checks the schema cannot express (duplicates, URL schemes).
	if errs := sf.Validate(); len(errs) > 0 {
		return nil, errs
	}

	return sf, nil
}
