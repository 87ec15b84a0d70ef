// SPDX-License-Identifier: MPL-2.0

package stagefile

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const validStagefile = `
name:        "traffic-inference"
description: "YOLO traffic camera inference service"

build: {
	system_packages: ["libgl1", "libglib2.0-0"]
	manifest: "requirements.yaml"
	source:   "./app"
	credential: {
		source: "./secrets/service_account.json"
	}
	hooks: [
		{name: "compile-bytecode", run: "true"},
	]
}

asset: {
	name:   "yolov8n-weights"
	path:   "models/yolov8n.pt"
	source: "https://example.com/releases/yolov8n.pt"
}

service: {
	port: 8000
}

probe: {
	path:     "/healthz"
	interval: "30s"
	timeout:  "3s"
}
`

func TestParseBytes_Valid(t *testing.T) {
	t.Parallel()

	sf, err := ParseBytes([]byte(validStagefile), "stagefile.cue")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}

	if sf.Name != "traffic-inference" {
		t.Errorf("Name = %q, want traffic-inference", sf.Name)
	}
	if len(sf.Build.SystemPackages) != 2 {
		t.Errorf("SystemPackages len = %d, want 2", len(sf.Build.SystemPackages))
	}
	if sf.Asset == nil || sf.Asset.SourceScheme() != "https" {
		t.Errorf("Asset scheme = %v, want https", sf.Asset)
	}
	if string(sf.FilePath) != "stagefile.cue" {
		t.Errorf("FilePath = %q", sf.FilePath)
	}
}

func TestParseBytes_SchemaDefaults(t *testing.T) {
	t.Parallel()

	minimal := `
name: "svc"
build: {manifest: "requirements.yaml", source: "./app"}
service: {}
probe: {}
`
	sf, err := ParseBytes([]byte(minimal), "stagefile.cue")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}

	if sf.Service.Host != "0.0.0.0" {
		t.Errorf("default host = %q, want 0.0.0.0", sf.Service.Host)
	}
	if sf.Service.Port != 8000 {
		t.Errorf("default port = %d, want 8000", sf.Service.Port)
	}
	if sf.Probe.Path != "/healthz" {
		t.Errorf("default probe path = %q, want /healthz", sf.Probe.Path)
	}
	if sf.Probe.Threshold() != 3 {
		t.Errorf("default threshold = %d, want 3", sf.Probe.Threshold())
	}
	if sf.Build.OutputDir() != DefaultOutputDir {
		t.Errorf("OutputDir() = %q, want %q", sf.Build.OutputDir(), DefaultOutputDir)
	}
}

func TestParseBytes_RejectsBadName(t *testing.T) {
	t.Parallel()

	bad := `
name: "9starts-with-digit"
build: {manifest: "m.yaml", source: "./app"}
service: {}
probe: {}
`
	if _, err := ParseBytes([]byte(bad), "stagefile.cue"); err == nil {
		t.Fatal("expected error for name starting with a digit")
	}
}

func TestParseBytes_MissingManifest(t *testing.T) {
	t.Parallel()

	bad := `
name: "svc"
build: {source: "./app"}
service: {}
probe: {}
`
	if _, err := ParseBytes([]byte(bad), "stagefile.cue"); err == nil {
		t.Fatal("expected error for missing build.manifest")
	}
}

func TestValidate_AssetScheme(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		source  string
		wantErr bool
	}{
		{"https", "https://example.com/w.pt", false},
		{"s3", "s3://models/w.pt", false},
		{"file", "file:///srv/models/w.pt", false},
		{"ftp rejected", "ftp://example.com/w.pt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sf := &Stagefile{
				Name:  "svc",
				Build: Build{Manifest: "m.yaml", Source: "./app"},
				Asset: &Asset{Name: "w", Path: "models/w.pt", Source: tt.source},
			}
			errs := sf.Validate()
			if (errs != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestValidate_DuplicateHooks(t *testing.T) {
	t.Parallel()

	sf := &Stagefile{
		Name: "svc",
		Build: Build{
			Manifest: "m.yaml",
			Source:   "./app",
			Hooks: []Hook{
				{Name: "prep", Run: "true"},
				{Name: "prep", Run: "false"},
			},
		},
	}
	errs := sf.Validate()
	if errs == nil {
		t.Fatal("expected duplicate hook name to fail validation")
	}
	if !strings.Contains(errs.Error(), "duplicate hook name") {
		t.Errorf("unexpected error: %v", errs)
	}
}

func TestValidate_BadSHA256(t *testing.T) {
	t.Parallel()

	sf := &Stagefile{
		Name:  "svc",
		Build: Build{Manifest: "m.yaml", Source: "./app"},
		Asset: &Asset{Name: "w", Path: "w.pt", Source: "https://example.com/w.pt", SHA256: "nothex"},
	}
	if errs := sf.Validate(); errs == nil {
		t.Fatal("expected short sha256 to fail validation")
	}
}

func TestProbe_Durations(t *testing.T) {
	t.Parallel()

	p := Probe{Interval: "1m", Timeout: "500ms", Grace: "15s", FailureThreshold: 5}
	if p.IntervalDuration() != time.Minute {
		t.Errorf("IntervalDuration() = %v", p.IntervalDuration())
	}
	if p.TimeoutDuration() != 500*time.Millisecond {
		t.Errorf("TimeoutDuration() = %v", p.TimeoutDuration())
	}
	if p.GraceDuration() != 15*time.Second {
		t.Errorf("GraceDuration() = %v", p.GraceDuration())
	}
	if p.Threshold() != 5 {
		t.Errorf("Threshold() = %d", p.Threshold())
	}

	var zero Probe
	if zero.IntervalDuration() != DefaultProbeInterval {
		t.Errorf("zero IntervalDuration() = %v", zero.IntervalDuration())
	}
}

func TestCredential_TargetName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cred Credential
		want string
	}{
		{"explicit target", Credential{Source: "./a/b.json", Target: "sa.json"}, "sa.json"},
		{"basename fallback", Credential{Source: "./secrets/service_account.json"}, "service_account.json"},
		{"bare filename", Credential{Source: "creds.json"}, "creds.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.cred.TargetName(); got != tt.want {
				t.Errorf("TargetName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Parse("testdata/does-not-exist.cue")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		t.Error("missing file should be a read error, not validation errors")
	}
}
