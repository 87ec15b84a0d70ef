// SPDX-License-Identifier: MPL-2.0

package credential

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCred(t *testing.T, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service_account.json")
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), mode); err != nil {
		t.Fatal(err)
	}
	// Umask may have stripped bits; force the exact mode.
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInspect(t *testing.T) {
	t.Parallel()

	path := writeCred(t, 0o600)
	material, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if material.WorldReadable() {
		t.Error("0600 file must not report world-readable")
	}
	if material.Size == 0 {
		t.Error("size should be recorded")
	}
}

func TestInspect_Missing(t *testing.T) {
	t.Parallel()

	_, err := Inspect(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestInspect_Directory(t *testing.T) {
	t.Parallel()

	_, err := Inspect(t.TempDir())
	if !errors.Is(err, ErrNotRegular) {
		t.Errorf("error = %v, want ErrNotRegular", err)
	}
}

func TestWorldReadable(t *testing.T) {
	t.Parallel()

	material, err := Inspect(writeCred(t, 0o644))
	if err != nil {
		t.Fatal(err)
	}
	if !material.WorldReadable() {
		t.Error("0644 file must report world-readable")
	}
}

func TestPrepareEnv(t *testing.T) {
	t.Parallel()

	path := writeCred(t, 0o600)
	env, err := PrepareEnv(path, nil)
	if err != nil {
		t.Fatalf("PrepareEnv() error = %v", err)
	}
	if len(env) != 1 || !strings.HasPrefix(env[0], EnvVar+"=") {
		t.Errorf("env = %v", env)
	}
	// The entry carries the path, never the contents.
	if strings.Contains(env[0], "service_account\"") {
		t.Error("env entry must not embed credential contents")
	}
}

func TestPrepareEnv_Unconfigured(t *testing.T) {
	t.Parallel()

	env, err := PrepareEnv("", nil)
	if err != nil {
		t.Fatalf("PrepareEnv() error = %v", err)
	}
	if env != nil {
		t.Errorf("env = %v, want nil for unconfigured credential", env)
	}
}

func TestPrepareEnv_MissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := PrepareEnv(filepath.Join(t.TempDir(), "absent.json"), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
