// Package toolexec runs the external helper programs dllbundle depends on
// (ldd, cygpath, upx, cargo) and turns their failures into
// model.ToolInvocationError values.
//
// Every helper is run synchronously with a context so that Ctrl-C stops it.
// Output is captured in memory; none of these tools produce much of it.
package toolexec

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/shinji-kodama/dllbundle/internal/model"
)

// Result holds the captured output of a successful invocation.
type Result struct {
	// Stdout is the raw standard output.
	Stdout string

	// Stderr is the trimmed standard error output. Some tools write
	// warnings here even when they succeed.
	Stderr string
}

// Run executes name with args and returns its output.
//
// A tool that cannot be launched, or that exits nonzero, yields a
// *model.ToolInvocationError carrying the trimmed stderr so the user can
// see what the helper complained about.
func Run(ctx context.Context, name string, args ...string) (*Result, error) {
	// #nosec G204 -- the tool name comes from configuration, not from remote input
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil

	// Capture stdout and stderr separately so we can include stderr
	// in error messages while returning stdout on success.
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &model.ToolInvocationError{
			Tool:   name,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}

	return &Result{
		Stdout: stdout.String(),
		Stderr: strings.TrimSpace(stderr.String()),
	}, nil
}

// StreamOptions configures RunStreaming.
type StreamOptions struct {
	// Env holds extra KEY=VALUE pairs appended to the current environment.
	Env []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Stdout and Stderr receive the tool's output as it is produced.
	// Nil means the process's own stdout/stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// RunStreaming executes a long-running tool (cargo) with its output passed
// through to the terminal instead of being captured.
func RunStreaming(ctx context.Context, opts StreamOptions, name string, args ...string) error {
	// #nosec G204 -- the tool name and args are built internally
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	cmd.Stdout = opts.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		return &model.ToolInvocationError{Tool: name, Args: args, Err: err}
	}
	return nil
}

// TrimLineEnding removes one trailing "\r\n" or "\n" from tool output.
// Helpers such as cygpath print a single line terminated by the platform's
// line ending; trimming only the terminator keeps meaningful trailing
// spaces intact.
func TrimLineEnding(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	return strings.TrimSuffix(s, "\n")
}
