// SPDX-License-Identifier: MPL-2.0

package pkgtool

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestPipEngine_InstallArgs(t *testing.T) {
	t.Parallel()

	engine := NewPipEngine("/usr/bin/pip3")

	tests := []struct {
		name string
		opts InstallOptions
		want []string
	}{
		{
			name: "plain packages",
			opts: InstallOptions{Packages: []string{"fastapi", "uvicorn"}},
			want: []string{"install", "fastapi", "uvicorn"},
		},
		{
			name: "target dir and no cache",
			opts: InstallOptions{
				Packages:  []string{"ultralytics==8.0.196"},
				TargetDir: "/cache/bundles/abc123",
				NoCache:   true,
			},
			want: []string{"install", "--target", "/cache/bundles/abc123", "--no-cache-dir", "ultralytics==8.0.196"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := engine.InstallArgs(tt.opts)
			if len(got) != len(tt.want) {
				t.Fatalf("InstallArgs() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("InstallArgs()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPipEngine_Install_InvokesInstaller(t *testing.T) {
	t.Parallel()

	recorder := NewMockCommandRecorder()
	engine := NewPipEngine("/usr/bin/pip3", WithExecCommand(recorder.CommandFunc(t)))

	var out bytes.Buffer
	err := engine.Install(context.Background(), InstallOptions{
		Packages:  []string{"fastapi>=0.100"},
		TargetDir: "/tmp/bundle",
		Stdout:    &out,
	})
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	inv := recorder.LastInvocation()
	if inv == nil {
		t.Fatal("no installer invocation recorded")
	}
	if inv.Name != "/usr/bin/pip3" {
		t.Errorf("invoked binary = %q", inv.Name)
	}
	if !recorder.HasArgPair("--target", "/tmp/bundle") {
		t.Errorf("missing --target pair in args: %v", inv.Args)
	}
	assertArgsContain(t, inv.Args, "fastapi>=0.100")
}

func TestPipEngine_Install_PropagatesFailure(t *testing.T) {
	t.Parallel()

	recorder := NewMockCommandRecorder()
	recorder.ExitCode = 1
	engine := NewPipEngine("/usr/bin/pip3", WithExecCommand(recorder.CommandFunc(t)))

	err := engine.Install(context.Background(), InstallOptions{
		Packages: []string{"nonexistent-pkg==99.0"},
	})
	if err == nil {
		t.Fatal("expected error for failing installer")
	}
	if !strings.Contains(err.Error(), "nonexistent-pkg==99.0") {
		t.Errorf("error should name the offending requirement: %v", err)
	}
}

func TestPipEngine_Available_NoBinary(t *testing.T) {
	t.Parallel()

	engine := &PipEngine{BaseCLIEngine: NewBaseCLIEngine("pip", "")}
	if engine.Available() {
		t.Error("engine without a binary path must not be available")
	}
}

func TestPipEngine_Version(t *testing.T) {
	t.Parallel()

	recorder := NewMockCommandRecorder()
	recorder.Stdout = "pip 24.0 from /usr/lib/python3/dist-packages/pip (python 3.12)\n"
	engine := NewPipEngine("/usr/bin/pip3", WithExecCommand(recorder.CommandFunc(t)))

	version, err := engine.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if !strings.HasPrefix(version, "pip 24.0") {
		t.Errorf("Version() = %q", version)
	}
}
