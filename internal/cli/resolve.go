package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/dllbundle/internal/model"
)

// NewResolveCommand creates the "resolve" cobra command.
func NewResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which libraries would be copied",
		Long: `Resolve the executable's dependencies and print the copy plan without
copying anything.

Each planned copy is printed as "name <- source". With --verbose, the
libraries that were filtered out are listed on stderr with the reason.

Examples:
  dllbundle resolve --bin-name gtk-app
  dllbundle resolve --bin-name gtk-app --profile release --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), cmd)
		},
	}

	return cmd
}

// resolveResultJSON is the JSON document printed by resolve --json.
type resolveResultJSON struct {
	Executable string          `json:"executable"`
	Plan       *model.CopyPlan `json:"plan"`
}

// runResolve is the main logic function for the resolve command.
func runResolve(ctx context.Context, cmd *cobra.Command) error {
	// Step 1: Load and validate the configuration.
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Step 2: Make sure the executable exists.
	exe, outputDir, err := locateExecutable(cfg)
	if err != nil {
		return err
	}
	VerboseLog("Resolving dependencies of %s", exe)

	// Step 3: Build the copy plan.
	reporter := newWarnReporter(cmd.ErrOrStderr())
	plan, err := newResolver(cfg, reporter).Resolve(ctx, exe, outputDir)
	if err != nil {
		return err
	}
	logSkipped(plan)

	// Step 4: Output the plan.
	if IsJSONOutput() {
		return printJSON(cmd, resolveResultJSON{Executable: exe, Plan: plan})
	}

	out := cmd.OutOrStdout()
	for _, e := range plan.Entries {
		fmt.Fprintln(out, e.String())
	}
	VerboseLog("%d libraries to copy, %d skipped", plan.Len(), len(plan.Skipped))
	return nil
}
