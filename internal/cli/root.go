// Package cli implements the cobra-based CLI commands for dllbundle.
//
// Each subcommand (resolve, package, build, run, env) is defined in its own file
// within this package. This file defines the root command that serves as
// the parent for all subcommands and handles global flags.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/dllbundle/internal/config"
	"github.com/shinji-kodama/dllbundle/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// When true, all output uses structured JSON format for machine consumption.
	jsonOutput bool

	// verbose enables detailed logging output for debugging.
	// When true, additional information about operations is printed to stderr.
	verbose bool

	// configPath is an explicit config file. Empty means the default
	// file names in the working directory.
	configPath string
)

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// The root command itself does not perform any action. It only provides
// help text and global flags; the work is done by the subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dllbundle",
		Short: "Bundle the MSYS2 runtime libraries of a Windows executable",
		Long: `dllbundle copies the shared libraries a Windows executable built inside
MSYS2 needs next to it, so it runs on machines without MSYS2.

It lists the executable's dependencies with ldd, drops the libraries
Windows provides itself, converts the remaining paths with cygpath and
copies them into the executable's directory. The GTK D-Bus helper
(gdbus.exe) is added as well, since ldd cannot see it.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default: dllbundle.yaml, .yml, .jsonc or .json in the working directory)")
	// These override the config file and environment when given; the
	// loader binds them to the config keys of the same name.
	rootCmd.PersistentFlags().String("target", "", "Rust target triple (default x86_64-pc-windows-gnu)")
	rootCmd.PersistentFlags().String("profile", "", "Cargo build profile (default dev)")
	rootCmd.PersistentFlags().String("bin-name", "", "Executable base name, without .exe")

	rootCmd.AddCommand(NewResolveCommand())
	rootCmd.AddCommand(NewPackageCommand())
	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewEnvCommand())
	rootCmd.AddCommand(NewRunCommand())

	return rootCmd
}

// Execute runs the root command and exits with the code matching the
// returned error. This is the main entry point called from main.go.
//
// An interrupt cancels the command's context, which stops any running
// helper process.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(cliErr.Message, cliErr.Err)
		} else {
			printError(err.Error(), nil)
		}
		os.Exit(int(ExitCodeFor(err)))
	}
}

// ExitCodeFor maps an error to the process exit code. Errors that carry
// their own code (CLIError, ToolInvocationError, ResolutionError) keep it,
// even when wrapped; anything else is a general error.
func ExitCodeFor(err error) model.ExitCode {
	if err == nil {
		return model.ExitSuccess
	}
	var coder model.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return model.ExitGeneralError
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout is reserved for
		// successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// loadConfig builds the run configuration: defaults, config file,
// DLLBUNDLE_* environment, then the command's flags that were actually
// given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, path, err := config.NewLoader().Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if path != "" {
		VerboseLog("Loaded config from %s", path)
	}

	VerboseLog("Target %s, profile %s, bin %q", cfg.Target, cfg.Profile, cfg.BinName)
	return cfg, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
