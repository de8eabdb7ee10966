package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/dllbundle/internal/cargo"
)

// NewRunCommand creates the "run" cobra command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [-- program arguments]",
		Short: "Build and run the executable with cargo for an MSYS2 target",
		Long: `Run "cargo run" for the configured target, profile and binary with the
same environment as the build command. Arguments after "--" are passed to
the program.

The program runs from cargo's output directory inside the MSYS2 shell, so
its libraries are found on PATH and nothing is copied.

Examples:
  dllbundle run --bin-name gtk-app
  dllbundle run --bin-name gtk-app --profile release -- --open file.txt`,

		Args: cobra.ArbitraryArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd, args)
		},
	}

	return cmd
}

// runRun is the main logic function for the run command.
func runRun(ctx context.Context, cmd *cobra.Command, args []string) error {
	// Step 1: Load the configuration. Unlike build, a bin name is required
	// since cargo cannot pick among several binaries to run.
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	env, err := cfg.Environment()
	if err != nil {
		return err
	}
	checkShell(env, newWarnReporter(cmd.ErrOrStderr()))

	// Step 2: Hand the terminal to cargo and the program.
	runner := &cargo.Runner{Tool: cfg.Cargo, Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
	if _, err := runner.Run(ctx, cargo.Options{
		Target:      cfg.Target,
		Profile:     cfg.Profile,
		Bin:         cfg.BinName,
		ProgramArgs: args,
	}); err != nil {
		return err
	}
	VerboseLog("%s exited normally", cfg.ExecutableName())
	return nil
}
