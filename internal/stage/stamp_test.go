// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStamp_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := WriteStamp(dir, Stamp{Step: StepResolveDeps, Key: "abc123", Tool: "pip"}); err != nil {
		t.Fatalf("WriteStamp() error = %v", err)
	}

	stamp, err := ReadStamp(dir)
	if err != nil {
		t.Fatalf("ReadStamp() error = %v", err)
	}
	if stamp == nil {
		t.Fatal("ReadStamp() = nil for stamped dir")
	}
	if stamp.Step != StepResolveDeps || stamp.Key != "abc123" || stamp.Tool != "pip" {
		t.Errorf("stamp = %+v", stamp)
	}
	if stamp.CreatedAt.IsZero() {
		t.Error("CreatedAt should be filled in")
	}
}

func TestReadStamp_MissingIsNotAnError(t *testing.T) {
	t.Parallel()

	stamp, err := ReadStamp(t.TempDir())
	if err != nil {
		t.Fatalf("ReadStamp() error = %v", err)
	}
	if stamp != nil {
		t.Error("unstamped dir should read as nil stamp")
	}
}

func TestIsComplete(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if IsComplete(dir, "key") {
		t.Error("unstamped dir must not be complete")
	}
	if err := WriteStamp(dir, Stamp{Step: StepStageSource, Key: "key"}); err != nil {
		t.Fatal(err)
	}
	if !IsComplete(dir, "key") {
		t.Error("stamped dir with matching key must be complete")
	}
	if IsComplete(dir, "other-key") {
		t.Error("stamped dir with different key must not be complete")
	}
}

func TestCalculateDirHash_ContentSensitive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("print('v1')\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	before, err := CalculateDirHash(dir)
	if err != nil {
		t.Fatal(err)
	}

	// Rewriting identical content keeps the hash stable even though the
	// modification time changed.
	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("print('v1')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	same, err := CalculateDirHash(dir)
	if err != nil {
		t.Fatal(err)
	}
	if same != before {
		t.Error("identical content must hash identically")
	}

	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("print('v2')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	after, err := CalculateDirHash(dir)
	if err != nil {
		t.Fatal(err)
	}
	if after == before {
		t.Error("changed content must change the hash")
	}
}
