package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/dllbundle/internal/cargo"
	"github.com/shinji-kodama/dllbundle/internal/model"
)

// buildFlags holds the flag values for the build command.
type buildFlags struct {
	// subcommand is the cargo subcommand to run ("build" or "clippy").
	subcommand string
}

// NewBuildCommand creates the "build" cobra command.
func NewBuildCommand() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the executable with cargo for an MSYS2 target",
		Long: `Run cargo for the configured target and profile with the environment
MSYS2's pkg-config needs (PKG_CONFIG_SYSROOT_DIR=/).

Targets that MSYS2 has no libraries for (MSVC, UWP i686, ...) are refused.

Examples:
  dllbundle build --target x86_64-pc-windows-gnullvm --profile release
  dllbundle build --build-subcommand clippy`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.subcommand, "build-subcommand", cargo.DefaultSubcommand,
		"Cargo subcommand to run: build or clippy")

	return cmd
}

// buildResultJSON is the JSON document printed by build --json.
type buildResultJSON struct {
	Target      string `json:"target"`
	Profile     string `json:"profile"`
	Environment string `json:"environment"`
}

// runBuild is the main logic function for the build command.
func runBuild(ctx context.Context, cmd *cobra.Command, flags *buildFlags) error {
	// Step 1: Load the configuration. The bin name is optional here;
	// without it cargo builds every binary.
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Target == "" || cfg.Profile == "" {
		return model.NewCLIError(model.ExitConfigError, "target and profile must not be empty")
	}

	// Step 2: Run cargo.
	runner := &cargo.Runner{Tool: cfg.Cargo, Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
	if IsJSONOutput() {
		runner.Stdout = cmd.ErrOrStderr()
	}
	env, err := runner.Build(ctx, cargo.Options{
		Subcommand: flags.subcommand,
		Target:     cfg.Target,
		Profile:    cfg.Profile,
		Bin:        cfg.BinName,
	})
	if err != nil {
		return err
	}
	VerboseLog("cargo %s finished for MSYS2 %s", flags.subcommand, env)

	if IsJSONOutput() {
		return printJSON(cmd, buildResultJSON{Target: cfg.Target, Profile: cfg.Profile, Environment: env.String()})
	}
	return nil
}
