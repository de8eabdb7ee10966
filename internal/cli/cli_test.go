package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/dllbundle/internal/bundle"
	"github.com/shinji-kodama/dllbundle/internal/model"
)

// project is a fake cargo workspace with a built executable, a fake MSYS2
// library directory and a fake ldd that lists libraries from it.
type project struct {
	dir        string
	outputDir  string
	libDir     string
	configPath string
}

// lib returns the path of a library in the fake MSYS2 directory.
func (p *project) lib(name string) string {
	return filepath.Join(p.libDir, name)
}

// writeScript writes an executable POSIX shell script.
func writeScript(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
}

// newProject lays out the fake workspace and writes a config file for it.
// extraConfig is appended to the generated YAML.
func newProject(t *testing.T, extraConfig string) *project {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool scripts need a POSIX sh")
	}

	dir := t.TempDir()
	testChdir(t, dir)

	p := &project{
		dir:        dir,
		outputDir:  filepath.Join(dir, "target", "x86_64-pc-windows-gnu", "debug"),
		libDir:     filepath.Join(dir, "msys64", "ucrt64", "bin"),
		configPath: filepath.Join(dir, "dllbundle.yaml"),
	}
	require.NoError(t, os.MkdirAll(p.outputDir, 0o755))
	require.NoError(t, os.MkdirAll(p.libDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.outputDir, "app.exe"), []byte("MZ-app"), 0o755))
	for _, name := range []string{"libfoo.dll", "libbar.dll", "gdbus.exe", "libgstvpx.dll"} {
		require.NoError(t, os.WriteFile(p.lib(name), []byte("MZ-"+name), 0o644))
	}

	listing := strings.Join([]string{
		"\tntdll.dll => /c/WINDOWS/SYSTEM32/ntdll.dll (0x7ffb3f2d0000)",
		"\tlibfoo.dll => " + p.lib("libfoo.dll") + " (0x7ffb1c7a0000)",
		"\tlibmissing.dll => not found",
		"\tweird.dll => /c/Windows/System32/weird.dll (0x7ffb00000000)",
		"\tlibbar.dll => " + p.lib("libbar.dll") + " (0x7ffb1c800000)",
		"\tLIBFOO.DLL => " + p.lib("libfoo.dll") + " (0x7ffb1c7a0000)",
	}, "\n")
	ldd := filepath.Join(dir, "tools", "ldd")
	writeScript(t, ldd, "cat <<'LISTING'\n"+listing+"\nLISTING")

	// gdbus.exe is found through PATH.
	t.Setenv("PATH", p.libDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv("MSYSTEM", "")

	cfg := fmt.Sprintf("bin_name: app\ntarget_dir: %s\nldd: %s\ncygpath: \"\"\n%s",
		filepath.Join(dir, "target"), ldd, extraConfig)
	require.NoError(t, os.WriteFile(p.configPath, []byte(cfg), 0o644))
	return p
}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// TestPackageCopiesLibraries runs the whole pipeline: listing, filtering,
// helper lookup and copying.
func TestPackageCopiesLibraries(t *testing.T) {
	p := newProject(t, "")

	stdout, stderr, err := runCLI(t, "package")
	require.NoError(t, err)

	want := p.lib("libfoo.dll") + " => " + filepath.Join(p.outputDir, "libfoo.dll") + "\n" +
		p.lib("libbar.dll") + " => " + filepath.Join(p.outputDir, "libbar.dll") + "\n" +
		p.lib("gdbus.exe") + " => " + filepath.Join(p.outputDir, "gdbus.exe") + "\n"
	assert.Equal(t, want, stdout)

	assert.Contains(t, stderr, "warning: libmissing.dll")
	assert.Contains(t, stderr, "weird.dll")
	assert.NotContains(t, stderr, "ntdll.dll")

	got, err := os.ReadFile(filepath.Join(p.outputDir, "libbar.dll"))
	require.NoError(t, err)
	assert.Equal(t, "MZ-libbar.dll", string(got))
	assert.NoFileExists(t, bundle.ManifestPath(p.outputDir))
}

// TestPackageIsIdempotent verifies that a second run copies nothing.
func TestPackageIsIdempotent(t *testing.T) {
	newProject(t, "")

	_, _, err := runCLI(t, "package")
	require.NoError(t, err)

	stdout, _, err := runCLI(t, "package")
	require.NoError(t, err)
	assert.Empty(t, stdout)
}

// TestPackageManifestJSON verifies the JSON result document and the
// manifest written with --manifest.
func TestPackageManifestJSON(t *testing.T) {
	p := newProject(t, "")

	stdout, _, err := runCLI(t, "package", "--manifest", "--json")
	require.NoError(t, err)

	var result packageResultJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, filepath.Join(p.outputDir, "app.exe"), result.Executable)
	require.Len(t, result.Copied, 3)
	assert.Equal(t, "gdbus.exe", result.Copied[2].Name)
	assert.Equal(t, bundle.ManifestPath(p.outputDir), result.Manifest)
	assert.NotEmpty(t, result.Skipped)

	manifest, err := bundle.LoadManifest(p.outputDir)
	require.NoError(t, err)
	assert.True(t, manifest.Has("libfoo.dll"))
	assert.True(t, manifest.Has("gdbus.exe"))
	assert.Equal(t, filepath.Join(p.outputDir, "app.exe"), manifest.Executable)
}

// writeFakeUPX writes a upx stand-in that logs its arguments to the
// returned file.
func writeFakeUPX(t *testing.T) (tool, calls string) {
	t.Helper()
	dir := t.TempDir()
	tool = filepath.Join(dir, "upx")
	calls = filepath.Join(dir, "calls.log")
	writeScript(t, tool, `echo "$@" >> `+calls)
	return tool, calls
}

// TestPackageWithUPX verifies that every copy and the executable itself are
// compressed when upx is enabled in the config file.
func TestPackageWithUPX(t *testing.T) {
	upx, calls := writeFakeUPX(t)
	p := newProject(t, "upx: true\nupx_tool: "+upx+"\n")

	stdout, _, err := runCLI(t, "package", "--json")
	require.NoError(t, err)

	log, err := os.ReadFile(calls)
	require.NoError(t, err)
	assert.Contains(t, string(log), "--lzma "+filepath.Join(p.outputDir, "libfoo.dll"))
	assert.Contains(t, string(log), "--lzma "+filepath.Join(p.outputDir, "app.exe"))
	assert.Equal(t, 4, strings.Count(string(log), "--lzma"))

	var result packageResultJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.True(t, result.ExecutableCompressed)
}

// TestPackageUPXFlagOverridesConfig verifies that --upx=false wins over
// upx: true in the config file.
func TestPackageUPXFlagOverridesConfig(t *testing.T) {
	upx, calls := writeFakeUPX(t)
	newProject(t, "upx: true\nupx_tool: "+upx+"\n")

	_, _, err := runCLI(t, "package", "--upx=false")
	require.NoError(t, err)
	assert.NoFileExists(t, calls)
}

// TestPackageExtraLibrary verifies that --extra-library bundles a library
// ldd does not list, found through PATH.
func TestPackageExtraLibrary(t *testing.T) {
	p := newProject(t, "")

	stdout, _, err := runCLI(t, "package", "--extra-library", "libgstvpx.dll")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(stdout,
		p.lib("libgstvpx.dll")+" => "+filepath.Join(p.outputDir, "libgstvpx.dll")+"\n"))
	assert.FileExists(t, filepath.Join(p.outputDir, "libgstvpx.dll"))
}

// TestPackageExtraLibraryFromConfig verifies the extra_libraries key, and
// that a missing extra library is a resolution error.
func TestPackageExtraLibraryFromConfig(t *testing.T) {
	newProject(t, "extra_libraries: [libgstnvcodec.dll]\n")

	_, _, err := runCLI(t, "package")
	require.Error(t, err)
	assert.Equal(t, model.ExitResolution, ExitCodeFor(err))
	assert.Contains(t, err.Error(), "libgstnvcodec.dll")
}

// TestPackageRefusesUnsupportedTarget verifies that package checks the
// target even when it does not build.
func TestPackageRefusesUnsupportedTarget(t *testing.T) {
	p := newProject(t, "")
	msvcDir := filepath.Join(p.dir, "target", "x86_64-pc-windows-msvc", "debug")
	require.NoError(t, os.MkdirAll(msvcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(msvcDir, "app.exe"), []byte("MZ-app"), 0o755))

	stdout, _, err := runCLI(t, "package", "--target", "x86_64-pc-windows-msvc")
	require.Error(t, err)
	assert.Equal(t, model.ExitConfigError, ExitCodeFor(err))
	assert.Empty(t, stdout)
	assert.NoFileExists(t, filepath.Join(msvcDir, "libfoo.dll"))
}

// TestPackageWarnsOnShellMismatch verifies the warning for an MSYS2 shell
// that serves a different environment than the target.
func TestPackageWarnsOnShellMismatch(t *testing.T) {
	newProject(t, "")
	t.Setenv("MSYSTEM", "UCRT64")

	_, stderr, err := runCLI(t, "package")
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning: running in the ucrt64 shell, but the target needs mingw64")
}

// TestResolveDoesNotCopy verifies that resolve prints the plan and leaves
// the output directory untouched.
func TestResolveDoesNotCopy(t *testing.T) {
	p := newProject(t, "")

	stdout, _, err := runCLI(t, "resolve")
	require.NoError(t, err)

	assert.Equal(t,
		"libfoo.dll <- "+p.lib("libfoo.dll")+"\n"+
			"libbar.dll <- "+p.lib("libbar.dll")+"\n"+
			"gdbus.exe <- "+p.lib("gdbus.exe")+"\n",
		stdout)
	assert.NoFileExists(t, filepath.Join(p.outputDir, "libfoo.dll"))
}

func TestResolveJSON(t *testing.T) {
	p := newProject(t, "helper: \"\"\n")

	stdout, _, err := runCLI(t, "resolve", "--json")
	require.NoError(t, err)

	var result resolveResultJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	require.NotNil(t, result.Plan)
	assert.Equal(t, p.outputDir, result.Plan.OutputDir)
	assert.Equal(t, []model.CopyEntry{
		{Name: "libfoo.dll", Source: p.lib("libfoo.dll")},
		{Name: "libbar.dll", Source: p.lib("libbar.dll")},
	}, result.Plan.Entries)

	reasons := make(map[string]model.SkipReason)
	for _, s := range result.Plan.Skipped {
		reasons[s.Name] = s.Reason
	}
	assert.Equal(t, model.SkipExcluded, reasons["ntdll.dll"])
	assert.Equal(t, model.SkipUnresolved, reasons["libmissing.dll"])
	assert.Equal(t, model.SkipSystemDirectory, reasons["weird.dll"])
	assert.Equal(t, model.SkipDuplicate, reasons["LIBFOO.DLL"])
}

// TestExcludeFromConfig verifies that extra exclusions from the config file
// reach the resolver.
func TestExcludeFromConfig(t *testing.T) {
	p := newProject(t, "exclude: [LIBBAR.dll]\nexclude_patterns: [\"libf*\"]\nhelper: \"\"\n")

	stdout, _, err := runCLI(t, "resolve")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.NoFileExists(t, filepath.Join(p.outputDir, "libbar.dll"))
}

// TestBinNameFlagOverridesConfig verifies flag precedence over the file.
func TestBinNameFlagOverridesConfig(t *testing.T) {
	newProject(t, "")

	_, _, err := runCLI(t, "resolve", "--bin-name", "other")
	require.Error(t, err)

	var resErr *model.ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, "other.exe", resErr.Name)
	assert.Equal(t, model.ExitResolution, ExitCodeFor(err))
}

func TestResolveRequiresBinName(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)

	_, _, err := runCLI(t, "resolve")
	require.Error(t, err)
	assert.Equal(t, model.ExitConfigError, ExitCodeFor(err))
	assert.Contains(t, err.Error(), "bin_name")
}

// TestPackageListingFailure verifies that a failing ldd aborts with the
// tool-invocation exit code and copies nothing.
func TestPackageListingFailure(t *testing.T) {
	p := newProject(t, "")
	broken := filepath.Join(p.dir, "tools", "broken-ldd")
	writeScript(t, broken, `echo "ldd: cannot execute binary file" >&2; exit 1`)

	cfg, err := os.ReadFile(p.configPath)
	require.NoError(t, err)
	cfg = bytes.Replace(cfg, []byte("ldd: "), []byte("ldd: "+broken+"\n#"), 1)
	require.NoError(t, os.WriteFile(p.configPath, cfg, 0o644))

	stdout, _, err := runCLI(t, "package")
	require.Error(t, err)
	assert.Equal(t, model.ExitToolInvocation, ExitCodeFor(err))
	assert.Contains(t, err.Error(), "cannot execute binary file")
	assert.Empty(t, stdout)
	assert.NoFileExists(t, filepath.Join(p.outputDir, "libfoo.dll"))
}

// TestPackageHelperMissing verifies that an unfindable helper is a
// resolution error.
func TestPackageHelperMissing(t *testing.T) {
	newProject(t, "helper: gdbus-missing.exe\n")

	_, _, err := runCLI(t, "package")
	require.Error(t, err)
	assert.Equal(t, model.ExitResolution, ExitCodeFor(err))
	assert.Contains(t, err.Error(), "gdbus-missing.exe")
}

func TestBuildCommand(t *testing.T) {
	p := newProject(t, "")
	fakeCargo := filepath.Join(p.dir, "tools", "cargo")
	writeScript(t, fakeCargo, `echo "args=$*"; echo "sysroot=$PKG_CONFIG_SYSROOT_DIR"`)

	cfg, err := os.ReadFile(p.configPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.configPath, append(cfg, []byte("cargo: "+fakeCargo+"\n")...), 0o644))

	stdout, _, err := runCLI(t, "build", "--profile", "release", "--build-subcommand", "clippy")
	require.NoError(t, err)
	assert.Contains(t, stdout, "args=clippy --target x86_64-pc-windows-gnu --profile release --bin app")
	assert.Contains(t, stdout, "sysroot=/")
}

// TestRunCommand verifies that run starts cargo run for the configured
// binary and passes the program arguments through.
func TestRunCommand(t *testing.T) {
	p := newProject(t, "")
	fakeCargo := filepath.Join(p.dir, "tools", "cargo")
	writeScript(t, fakeCargo, `echo "args=$*"; echo "sysroot=$PKG_CONFIG_SYSROOT_DIR"`)

	cfg, err := os.ReadFile(p.configPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.configPath, append(cfg, []byte("cargo: "+fakeCargo+"\n")...), 0o644))

	stdout, _, err := runCLI(t, "run", "--", "--open", "file.txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "args=run --target x86_64-pc-windows-gnu --profile dev --bin app -- --open file.txt")
	assert.Contains(t, stdout, "sysroot=/")
}

func TestRunRequiresBinName(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)

	_, _, err := runCLI(t, "run")
	require.Error(t, err)
	assert.Equal(t, model.ExitConfigError, ExitCodeFor(err))
}

func TestBuildRefusesMSVC(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)

	_, _, err := runCLI(t, "build", "--target", "x86_64-pc-windows-msvc")
	require.Error(t, err)
	assert.Equal(t, model.ExitConfigError, ExitCodeFor(err))
}

func TestEnvCommandJSON(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)

	stdout, _, err := runCLI(t, "env", "--target", "aarch64-pc-windows-gnullvm", "--profile", "release", "--json")
	require.NoError(t, err)

	var result envResultJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "clangarm64", result.Environment)
	assert.Equal(t, "/clangarm64", result.Prefix)
	assert.Equal(t, "release", filepath.Base(result.OutputDir))
	assert.Equal(t, "aarch64-pc-windows-gnullvm", filepath.Base(filepath.Dir(result.OutputDir)))
	assert.Empty(t, result.Executable)
}

func TestEnvCommandText(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)

	stdout, _, err := runCLI(t, "env", "--bin-name", "app")
	require.NoError(t, err)
	assert.Contains(t, stdout, "mingw64")
	assert.Contains(t, stdout, "/mingw64")
	assert.Contains(t, stdout, filepath.Join("x86_64-pc-windows-gnu", "debug", "app.exe"))
}

// TestEnvShowsShell verifies that env reports the MSYSTEM of the current
// shell and does not warn when it matches the target.
func TestEnvShowsShell(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	t.Setenv("MSYSTEM", "MINGW64")

	stdout, stderr, err := runCLI(t, "env", "--json")
	require.NoError(t, err)

	var result envResultJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "mingw64", result.Shell)
	assert.Empty(t, stderr)
}

// TestEnvUnknownShell verifies that an MSYSTEM value that names no MSYS2
// environment is reported, not fatal.
func TestEnvUnknownShell(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	t.Setenv("MSYSTEM", "CYGWIN")

	stdout, stderr, err := runCLI(t, "env")
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning: MSYSTEM")
	assert.NotContains(t, stdout, "SHELL")
}

func TestEnvUnsupportedTarget(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)

	_, _, err := runCLI(t, "env", "--target", "i686-uwp-windows-gnu")
	require.Error(t, err)
	assert.Equal(t, model.ExitConfigError, ExitCodeFor(err))
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ExitCode
	}{
		{name: "nil", err: nil, want: model.ExitSuccess},
		{name: "plain error", err: errors.New("boom"), want: model.ExitGeneralError},
		{name: "cli error", err: model.NewCLIError(model.ExitCopyFailed, "copy"), want: model.ExitCopyFailed},
		{
			name: "wrapped tool error",
			err:  fmt.Errorf("listing: %w", &model.ToolInvocationError{Tool: "ldd"}),
			want: model.ExitToolInvocation,
		},
		{name: "resolution error", err: &model.ResolutionError{Name: "x.dll"}, want: model.ExitResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

// TestWarnReporterPlain verifies that warnings written to a non-terminal
// carry no escape sequences.
func TestWarnReporterPlain(t *testing.T) {
	var buf bytes.Buffer
	newWarnReporter(&buf).Warnf("%s could not be located", "libx.dll")
	assert.Equal(t, "warning: libx.dll could not be located\n", buf.String())
}
