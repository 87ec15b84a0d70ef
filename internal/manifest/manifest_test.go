// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const validManifest = `packages:
  - name: ultralytics
    constraint: "==8.0.196"
  - name: fastapi
    constraint: ">=0.100"
  - name: uvicorn
`

func TestParse_Valid(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(validManifest), "requirements.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(m.Packages) != 3 {
		t.Fatalf("len(Packages) = %d, want 3", len(m.Packages))
	}
	if m.Packages[0].Name != "ultralytics" || m.Packages[0].Constraint != "==8.0.196" {
		t.Errorf("Packages[0] = %+v", m.Packages[0])
	}
	if m.Packages[2].Constraint != "" {
		t.Errorf("Packages[2].Constraint = %q, want empty", m.Packages[2].Constraint)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing name",
			yaml: "packages:\n  - constraint: \">=1.0\"\n",
		},
		{
			name: "bad package name",
			yaml: "packages:\n  - name: \"-leading-dash\"\n",
		},
		{
			name: "duplicate normalized names",
			yaml: "packages:\n  - name: My_Pkg\n  - name: my-pkg\n",
		},
		{
			name: "constraint without operator",
			yaml: "packages:\n  - name: fastapi\n    constraint: \"1.2.3\"\n",
		},
		{
			name: "constraint without version",
			yaml: "packages:\n  - name: fastapi\n    constraint: \"==\"\n",
		},
		{
			name: "malformed semver version",
			yaml: "packages:\n  - name: fastapi\n    constraint: \"==1..3\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.yaml), "requirements.yaml")
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidManifest) {
				t.Errorf("error should wrap ErrInvalidManifest, got %v", err)
			}
		})
	}
}

func TestParse_NonSemverConstraintPassesThrough(t *testing.T) {
	t.Parallel()

	// Versions with foreign suffixes are left for the resolver to judge.
	yaml := "packages:\n  - name: torch\n    constraint: \"==2.1.0+cpu\"\n"
	if _, err := Parse([]byte(yaml), "requirements.yaml"); err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
}

func TestContentHash_StableAcrossByteIdenticalFiles(t *testing.T) {
	t.Parallel()

	a, err := Parse([]byte(validManifest), "a.yaml")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse([]byte(validManifest), "b.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if a.ContentHash() != b.ContentHash() {
		t.Error("byte-identical manifests must share a content hash")
	}
	if len(a.ContentHash()) != 64 {
		t.Errorf("hash length = %d, want 64", len(a.ContentHash()))
	}
}

func TestContentHash_ChangesWithContent(t *testing.T) {
	t.Parallel()

	a, err := Parse([]byte(validManifest), "a.yaml")
	if err != nil {
		t.Fatal(err)
	}
	// Same semantics, different bytes (comment added): hash must change.
	b, err := Parse([]byte("# deps\n"+validManifest), "b.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if a.ContentHash() == b.ContentHash() {
		t.Error("different bytes must produce different hashes")
	}
}

func TestRequirementArgs(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(validManifest), "requirements.yaml")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ultralytics==8.0.196", "fastapi>=0.100", "uvicorn"}
	got := m.RequirementArgs()
	if len(got) != len(want) {
		t.Fatalf("RequirementArgs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RequirementArgs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoad_NotFound(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, ErrManifestNotFound) {
		t.Errorf("error = %v, want ErrManifestNotFound", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "requirements.yaml")
	if err := os.WriteFile(path, []byte(validManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(m.Packages) != 3 {
		t.Errorf("len(Packages) = %d, want 3", len(m.Packages))
	}
}
