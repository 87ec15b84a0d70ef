// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"inferpack-cli/pkg/stagefile"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// HookResult is the outcome of one hook script.
type HookResult struct {
	Name     string
	ExitCode int
	Error    error
}

// RunHook executes a single stagefile hook with the embedded shell
// interpreter. The script runs in workDir with env ("KEY=VALUE" pairs)
// appended to the inherited environment.
func RunHook(ctx context.Context, hook stagefile.Hook, workDir string, env []string, stdout, stderr io.Writer) *HookResult {
	parser := syntax.NewParser()
	prog, err := parser.Parse(strings.NewReader(hook.Run), hook.Name)
	if err != nil {
		return &HookResult{Name: hook.Name, ExitCode: 1, Error: fmt.Errorf("failed to parse hook %q: %w", hook.Name, err)}
	}

	opts := []interp.RunnerOption{
		interp.Dir(workDir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, stdout, stderr),
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return &HookResult{Name: hook.Name, ExitCode: 1, Error: fmt.Errorf("failed to create interpreter: %w", err)}
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &HookResult{Name: hook.Name, ExitCode: int(exitStatus)}
		}
		return &HookResult{Name: hook.Name, ExitCode: 1, Error: fmt.Errorf("hook %q failed: %w", hook.Name, err)}
	}

	return &HookResult{Name: hook.Name, ExitCode: 0}
}

// RunHooks executes hooks in declaration order, stopping at the first
// failure.
func RunHooks(ctx context.Context, hooks []stagefile.Hook, workDir string, env []string, stdout, stderr io.Writer) error {
	for _, hook := range hooks {
		result := RunHook(ctx, hook, workDir, env, stdout, stderr)
		if result.Error != nil {
			return result.Error
		}
		if result.ExitCode != 0 {
			return fmt.Errorf("hook %q exited with status %d", hook.Name, result.ExitCode)
		}
	}
	return nil
}
