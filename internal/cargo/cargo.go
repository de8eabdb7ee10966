// Package cargo runs the Rust build that produces the executable to bundle.
//
// MSYS2's pkg-config treats a --target build as a cross build and rewrites
// every path it reports unless PKG_CONFIG_SYSROOT_DIR is "/", so the build
// environment always sets it.
package cargo

import (
	"context"
	"fmt"
	"io"

	"github.com/shinji-kodama/dllbundle/internal/model"
	"github.com/shinji-kodama/dllbundle/internal/msys2"
	"github.com/shinji-kodama/dllbundle/internal/toolexec"
)

// DefaultTool is the cargo executable looked up on PATH.
const DefaultTool = "cargo"

// DefaultSubcommand is the cargo subcommand used when none is configured.
const DefaultSubcommand = "build"

// SysrootEnv is set for every build so MSYS2's pkg-config reports usable
// paths.
const SysrootEnv = "PKG_CONFIG_SYSROOT_DIR=/"

// Options selects what to build.
type Options struct {
	// Subcommand is the cargo subcommand: "build", "clippy" or "run".
	Subcommand string

	// Target is the Rust target triple. It must map to an MSYS2
	// environment.
	Target string

	// Profile is the cargo profile.
	Profile string

	// Bin limits the build to one binary. Empty builds every target.
	Bin string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// ProgramArgs are passed to the program after "--". Only "run" uses
	// them.
	ProgramArgs []string
}

// Runner invokes cargo with output passed through to the terminal.
type Runner struct {
	// Tool is the cargo executable. Empty means DefaultTool.
	Tool string

	// Stdout and Stderr receive cargo's output. Nil means the process's own.
	Stdout io.Writer
	Stderr io.Writer
}

// Args returns the cargo command-line arguments for opts.
func Args(opts Options) []string {
	sub := opts.Subcommand
	if sub == "" {
		sub = DefaultSubcommand
	}

	args := []string{sub, "--target", opts.Target, "--profile", opts.Profile}
	if opts.Bin != "" {
		args = append(args, "--bin", opts.Bin)
	}
	if sub == "run" && len(opts.ProgramArgs) > 0 {
		args = append(args, "--")
		args = append(args, opts.ProgramArgs...)
	}
	return args
}

// Build runs cargo for opts and returns the MSYS2 environment the target
// maps to.
//
// A target with no MSYS2 environment is refused before cargo is started. A
// cargo failure is a *model.ToolInvocationError.
func (r *Runner) Build(ctx context.Context, opts Options) (msys2.Environment, error) {
	env, err := msys2.EnvironmentForTarget(opts.Target)
	if err != nil {
		return "", model.WrapCLIError(model.ExitConfigError, "refusing to build", err)
	}

	switch opts.Subcommand {
	case "", "build", "clippy", "run":
	default:
		return "", model.NewCLIError(model.ExitConfigError,
			fmt.Sprintf("unsupported cargo subcommand %q (want build, clippy or run)", opts.Subcommand))
	}

	tool := r.Tool
	if tool == "" {
		tool = DefaultTool
	}

	streamOpts := toolexec.StreamOptions{
		Env:    []string{SysrootEnv},
		Dir:    opts.Dir,
		Stdout: r.Stdout,
		Stderr: r.Stderr,
	}
	if err := toolexec.RunStreaming(ctx, streamOpts, tool, Args(opts)...); err != nil {
		return "", err
	}
	return env, nil
}

// Run builds and starts the program with `cargo run`, in the same
// environment as Build. The program's exit status is cargo's.
func (r *Runner) Run(ctx context.Context, opts Options) (msys2.Environment, error) {
	opts.Subcommand = "run"
	return r.Build(ctx, opts)
}
