package cli

import (
	"os"
	"strings"

	"github.com/shinji-kodama/dllbundle/internal/config"
	"github.com/shinji-kodama/dllbundle/internal/exclusion"
	"github.com/shinji-kodama/dllbundle/internal/ldd"
	"github.com/shinji-kodama/dllbundle/internal/model"
	"github.com/shinji-kodama/dllbundle/internal/msys2"
	"github.com/shinji-kodama/dllbundle/internal/pathconv"
	"github.com/shinji-kodama/dllbundle/internal/resolver"
)

// newResolver wires the production listing tool, path translator and
// executable search into a Resolver configured from cfg.
func newResolver(cfg *config.Config, reporter *warnReporter) *resolver.Resolver {
	lister := ldd.NewLister(cfg.Ldd)
	lister.Warn = reporter.Warnf

	var normalizer resolver.PathNormalizer = pathconv.Native{}
	if cfg.Cygpath != "" {
		normalizer = pathconv.NewCygpath(cfg.Cygpath)
	} else {
		VerboseLog("No path translator configured, using listed paths as-is")
	}

	set := exclusion.WithExtras(cfg.Exclude, cfg.ExcludePatterns)
	VerboseLog("Exclusion set: %d names, %d patterns", set.Len(), len(set.Patterns()))
	VerboseLog("Excluded names: %s", strings.Join(set.Names(), ", "))
	VerboseLog("Excluded patterns: %s", strings.Join(set.Patterns(), ", "))

	return resolver.New(lister, normalizer, pathconv.NewWhich(), set,
		resolver.WithSystemDirs(cfg.SystemPrefixes),
		resolver.WithHelper(cfg.Helper),
		resolver.WithExtraLibraries(cfg.ExtraLibraries),
		resolver.WithReporter(reporter),
	)
}

// locateExecutable returns the executable path for cfg and checks that it
// has been built.
func locateExecutable(cfg *config.Config) (exe, outputDir string, err error) {
	outputDir, err = cfg.OutputDir()
	if err != nil {
		return "", "", model.WrapCLIError(model.ExitConfigError, "cannot determine output directory", err)
	}
	exe, err = cfg.ExecutablePath()
	if err != nil {
		return "", "", model.WrapCLIError(model.ExitConfigError, "cannot determine executable path", err)
	}

	info, err := os.Stat(exe)
	if err != nil {
		return "", "", &model.ResolutionError{
			Name:   cfg.ExecutableName(),
			Path:   exe,
			Reason: "executable not found, build it first or pass --build",
			Err:    err,
		}
	}
	if info.IsDir() {
		return "", "", &model.ResolutionError{Name: cfg.ExecutableName(), Path: exe, Reason: "executable path is a directory"}
	}
	return exe, outputDir, nil
}

// logSkipped reports every filtered listing line in verbose mode.
func logSkipped(plan *model.CopyPlan) {
	for _, s := range plan.Skipped {
		if s.Path != "" {
			VerboseLog("Skipped %s (%s): %s", s.Name, s.Reason, s.Path)
		} else {
			VerboseLog("Skipped %s (%s)", s.Name, s.Reason)
		}
	}
}

// MSystemVar is the variable an MSYS2 shell sets to its environment name.
const MSystemVar = "MSYSTEM"

// checkShell warns when the current MSYS2 shell is not the environment the
// target needs. ldd and cygpath then resolve libraries from the wrong
// prefix. Outside an MSYS2 shell it returns "".
func checkShell(want msys2.Environment, reporter *warnReporter) msys2.Environment {
	value, ok := os.LookupEnv(MSystemVar)
	if !ok || value == "" {
		VerboseLog("%s is not set, not running in an MSYS2 shell", MSystemVar)
		return ""
	}

	shell, err := msys2.ParseEnvironment(value)
	if err != nil {
		reporter.Warnf("%s: %v", MSystemVar, err)
		return ""
	}
	if shell != want {
		reporter.Warnf("running in the %s shell, but the target needs %s; libraries may come from %s instead of %s",
			shell, want, shell.Prefix(), want.Prefix())
	}
	return shell
}
