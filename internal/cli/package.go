package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/dllbundle/internal/bundle"
	"github.com/shinji-kodama/dllbundle/internal/cargo"
	"github.com/shinji-kodama/dllbundle/internal/model"
)

// packageFlags holds the flag values for the package command. The --upx,
// --manifest and --extra-library flags are read through the config loader,
// which binds them to the keys of the same name.
type packageFlags struct {
	// build runs cargo before resolving.
	build bool
}

// NewPackageCommand creates the "package" cobra command.
func NewPackageCommand() *cobra.Command {
	flags := &packageFlags{}

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Copy the executable's runtime libraries next to it",
		Long: `Resolve the executable's dependencies and copy every library that Windows
does not provide into the executable's directory.

Each copy is printed as "<src> => <dest>". Libraries already present in
the directory are left alone, so running package again is cheap.

Libraries the program loads at run time (GStreamer plugins, for example)
are invisible to ldd; name them with --extra-library and they are found
on PATH and bundled like gdbus.exe.

Examples:
  dllbundle package --bin-name gtk-app
  dllbundle package --bin-name gtk-app --profile release --build --upx
  dllbundle package --bin-name gtk-app --extra-library libgstvpx.dll
  dllbundle package --bin-name gtk-app --manifest --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPackage(cmd.Context(), cmd, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.build, "build", false, "Run cargo build before packaging")
	cmd.Flags().Bool("upx", false, "Compress the executable and copied files with upx --lzma")
	cmd.Flags().Bool("manifest", false,
		"Record copied files in "+bundle.ManifestFile+" in the output directory")
	cmd.Flags().StringSlice("extra-library", nil,
		"Library file name to find on PATH and bundle (repeatable)")

	return cmd
}

// packageResultJSON is the JSON document printed by package --json.
type packageResultJSON struct {
	Executable string             `json:"executable"`
	OutputDir  string             `json:"outputDir"`
	Copied     []bundle.Copied    `json:"copied"`
	Skipped    []model.SkipRecord `json:"skipped,omitempty"`
	Manifest   string             `json:"manifest,omitempty"`

	// ExecutableCompressed is true when upx ran on the executable.
	ExecutableCompressed bool `json:"executableCompressed,omitempty"`
}

// runPackage is the main logic function for the package command.
func runPackage(ctx context.Context, cmd *cobra.Command, flags *packageFlags) error {
	// Step 1: Load the configuration and refuse targets MSYS2 cannot
	// provide libraries for.
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
	reporter := newWarnReporter(cmd.ErrOrStderr())
	checkShell(env, reporter)

	// Step 2: Optionally build the executable first. In JSON mode cargo's
	// output goes to stderr so stdout stays a single JSON document.
	if flags.build {
		runner := &cargo.Runner{Tool: cfg.Cargo, Stderr: cmd.ErrOrStderr()}
		runner.Stdout = cmd.OutOrStdout()
		if IsJSONOutput() {
			runner.Stdout = cmd.ErrOrStderr()
		}
		if _, err := runner.Build(ctx, cargo.Options{Target: cfg.Target, Profile: cfg.Profile, Bin: cfg.BinName}); err != nil {
			return err
		}
		VerboseLog("Built %s for MSYS2 %s", cfg.BinName, env)
	}

	// Step 3: Make sure the executable exists.
	exe, outputDir, err := locateExecutable(cfg)
	if err != nil {
		return err
	}

	// Step 4: Build the copy plan.
	plan, err := newResolver(cfg, reporter).Resolve(ctx, exe, outputDir)
	if err != nil {
		return err
	}
	logSkipped(plan)

	// Step 5: Load the manifest of earlier runs, if enabled.
	var manifest *bundle.Manifest
	if cfg.Manifest {
		manifest, err = bundle.LoadManifest(plan.OutputDir)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "cannot update manifest", err)
		}
		for _, e := range plan.Entries {
			if manifest.Has(e.Name) {
				VerboseLog("%s was bundled before but is missing, copying it again", e.Name)
			}
		}
	}

	// Step 6: Copy. Text mode prints "<src> => <dest>" per file.
	applier := &bundle.Applier{Out: cmd.OutOrStdout()}
	if IsJSONOutput() {
		applier.Out = io.Discard
	}
	var upx *bundle.UPX
	if cfg.UPX {
		upx = &bundle.UPX{Tool: cfg.UPXTool, Warn: reporter.Warnf}
		applier.Compressor = upx
	}
	copied, err := applier.Apply(ctx, plan)
	if err != nil {
		return err
	}
	VerboseLog("Copied %d files into %s", len(copied), plan.OutputDir)

	if upx != nil {
		if err := upx.Compress(ctx, exe); err != nil {
			return err
		}
		VerboseLog("Compressed %s", exe)
	}

	// Step 7: Record the run in the manifest.
	var manifestPath string
	if manifest != nil {
		manifest.Record(exe, copied, time.Now())
		if err := bundle.WriteManifest(plan.OutputDir, manifest); err != nil {
			return model.WrapCLIError(model.ExitCopyFailed, "cannot update manifest", err)
		}
		manifestPath = bundle.ManifestPath(plan.OutputDir)
		VerboseLog("Manifest written to %s", manifestPath)
	}

	// Step 8: Output the result.
	if IsJSONOutput() {
		return printJSON(cmd, packageResultJSON{
			Executable:           exe,
			OutputDir:            plan.OutputDir,
			Copied:               copied,
			Skipped:              plan.Skipped,
			Manifest:             manifestPath,
			ExecutableCompressed: upx != nil,
		})
	}
	return nil
}
