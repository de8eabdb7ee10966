package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewEnvCommand creates the "env" cobra command.
func NewEnvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show the MSYS2 environment and paths for the configured target",
		Long: `Print the MSYS2 environment that serves the configured target triple,
its installation prefix and architecture, and the directory dllbundle
reads the executable from. Inside an MSYS2 shell the shell's environment
(MSYSTEM) is shown too, with a warning when it does not match.

Examples:
  dllbundle env
  dllbundle env --target aarch64-pc-windows-gnullvm --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnv(cmd)
		},
	}

	return cmd
}

// envResultJSON is the JSON document printed by env --json.
type envResultJSON struct {
	Target      string `json:"target"`
	Profile     string `json:"profile"`
	Environment string `json:"environment"`
	Prefix      string `json:"prefix"`
	Arch        string `json:"arch"`
	OutputDir   string `json:"outputDir"`
	Executable  string `json:"executable,omitempty"`
	Shell       string `json:"shell,omitempty"`
}

// runEnv is the main logic function for the env command.
func runEnv(cmd *cobra.Command) error {
	// Step 1: Load the configuration.
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Step 2: Map the target to its MSYS2 environment.
	env, err := cfg.Environment()
	if err != nil {
		return err
	}

	// Step 3: Derive the paths. The executable is only shown when a bin
	// name is configured.
	outputDir, err := cfg.OutputDir()
	if err != nil {
		return err
	}
	result := envResultJSON{
		Target:      cfg.Target,
		Profile:     cfg.Profile,
		Environment: env.String(),
		Prefix:      env.Prefix(),
		Arch:        string(env.Arch()),
		OutputDir:   outputDir,
		Shell:       string(checkShell(env, newWarnReporter(cmd.ErrOrStderr()))),
	}
	if cfg.BinName != "" {
		exe, err := cfg.ExecutablePath()
		if err != nil {
			return err
		}
		result.Executable = exe
	}

	// Step 4: Output.
	if IsJSONOutput() {
		return printJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-12s %s\n", "TARGET", result.Target)
	fmt.Fprintf(out, "%-12s %s\n", "PROFILE", result.Profile)
	fmt.Fprintf(out, "%-12s %s\n", "ENVIRONMENT", result.Environment)
	fmt.Fprintf(out, "%-12s %s\n", "PREFIX", result.Prefix)
	fmt.Fprintf(out, "%-12s %s\n", "ARCH", result.Arch)
	fmt.Fprintf(out, "%-12s %s\n", "OUTPUT DIR", result.OutputDir)
	if result.Executable != "" {
		fmt.Fprintf(out, "%-12s %s\n", "EXECUTABLE", result.Executable)
	}
	if result.Shell != "" {
		fmt.Fprintf(out, "%-12s %s\n", "SHELL", result.Shell)
	}
	return nil
}
