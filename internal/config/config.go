// Package config holds dllbundle's run configuration and the rules that
// derive the output directory and executable path from it.
//
// Values are layered with viper: built-in defaults, then a config file, then
// DLLBUNDLE_* environment variables, then command-line flags. Every layer is
// decoded through the mapstructure tags on Config, so a key means the same
// thing in each place.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/dllbundle/internal/model"
	"github.com/shinji-kodama/dllbundle/internal/msys2"
)

// Config is the resolved configuration of one run.
type Config struct {
	// Target is the Rust target triple the executable was built for.
	Target string `mapstructure:"target" json:"target" yaml:"target"`

	// Profile is the cargo build profile (dev, release, or a custom one).
	Profile string `mapstructure:"profile" json:"profile" yaml:"profile"`

	// BinName is the executable base name, without the .exe suffix.
	BinName string `mapstructure:"bin_name" json:"bin_name" yaml:"bin_name"`

	// TargetDir is cargo's target directory. Relative paths are taken from
	// the working directory.
	TargetDir string `mapstructure:"target_dir" json:"target_dir" yaml:"target_dir"`

	// Helper is the auxiliary executable always bundled. Empty disables it.
	Helper string `mapstructure:"helper" json:"helper" yaml:"helper"`

	// ExtraLibraries are bundled like Helper: found on PATH by file name,
	// for libraries the executable loads at runtime rather than links.
	ExtraLibraries []string `mapstructure:"extra_libraries" json:"extra_libraries,omitempty" yaml:"extra_libraries,omitempty"`

	// Exclude adds library names to the built-in exclusion set.
	Exclude []string `mapstructure:"exclude" json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// ExcludePatterns adds glob patterns to the built-in exclusion set.
	ExcludePatterns []string `mapstructure:"exclude_patterns" json:"exclude_patterns,omitempty" yaml:"exclude_patterns,omitempty"`

	// SystemPrefixes are the listing-tool path prefixes treated as the
	// OS library directory.
	SystemPrefixes []string `mapstructure:"system_prefixes" json:"system_prefixes" yaml:"system_prefixes"`

	// Ldd is the dependency-listing tool.
	Ldd string `mapstructure:"ldd" json:"ldd" yaml:"ldd"`

	// Cygpath is the path translator. Empty means paths are only made
	// absolute, which suits a listing tool that already prints native paths.
	Cygpath string `mapstructure:"cygpath" json:"cygpath" yaml:"cygpath"`

	// Cargo is the build tool used by `build`, `run` and `package --build`.
	Cargo string `mapstructure:"cargo" json:"cargo" yaml:"cargo"`

	// UPXTool is the compressor used when UPX is set.
	UPXTool string `mapstructure:"upx_tool" json:"upx_tool" yaml:"upx_tool"`

	// Manifest enables the copy manifest in the output directory.
	Manifest bool `mapstructure:"manifest" json:"manifest" yaml:"manifest"`

	// UPX compresses the executable and every copied file with upx.
	UPX bool `mapstructure:"upx" json:"upx" yaml:"upx"`
}

// Default returns the built-in configuration. BinName has no default and
// must be supplied.
func Default() *Config {
	return &Config{
		Target:         "x86_64-pc-windows-gnu",
		Profile:        "dev",
		TargetDir:      "target",
		Helper:         "gdbus.exe",
		SystemPrefixes: []string{"/c/windows"},
		Ldd:            "ldd",
		Cygpath:        "cygpath",
		Cargo:          "cargo",
		UPXTool:        "upx",
	}
}

// ProfileDir returns the directory cargo writes a profile's artifacts to.
// The built-in dev and test profiles share "debug", release and bench share
// "release", and custom profiles use their own name.
func (c *Config) ProfileDir() string {
	switch c.Profile {
	case "dev", "test":
		return "debug"
	case "release", "bench":
		return "release"
	default:
		return c.Profile
	}
}

// OutputDir returns the absolute directory holding the executable:
// <target_dir>/<target>/<profile dir>.
func (c *Config) OutputDir() (string, error) {
	dir, err := filepath.Abs(filepath.Join(c.TargetDir, c.Target, c.ProfileDir()))
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory: %w", err)
	}
	return dir, nil
}

// ExecutableName returns the executable's file name.
func (c *Config) ExecutableName() string {
	return c.BinName + ".exe"
}

// ExecutablePath returns the absolute path of the executable to bundle.
func (c *Config) ExecutablePath() (string, error) {
	dir, err := c.OutputDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.ExecutableName()), nil
}

// Environment returns the MSYS2 environment that builds for Target.
func (c *Config) Environment() (msys2.Environment, error) {
	env, err := msys2.EnvironmentForTarget(c.Target)
	if err != nil {
		return "", model.WrapCLIError(model.ExitConfigError, "unusable target", err)
	}
	return env, nil
}

// Validate checks that the values needed to locate the executable are set
// and cannot escape the target directory.
func (c *Config) Validate() error {
	var errs []string

	checkName := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, key+" must not be empty")
			return
		}
		if strings.ContainsAny(value, `/\`) || value == "." || value == ".." {
			errs = append(errs, fmt.Sprintf("%s %q must be a plain name", key, value))
		}
	}

	checkName("bin_name", c.BinName)
	checkName("target", c.Target)
	checkName("profile", c.Profile)

	if strings.HasSuffix(strings.ToLower(c.BinName), ".exe") {
		errs = append(errs, fmt.Sprintf("bin_name %q must not include the .exe suffix", c.BinName))
	}
	if c.Helper != "" && strings.ContainsAny(c.Helper, `/\`) {
		errs = append(errs, fmt.Sprintf("helper %q must be a file name, not a path", c.Helper))
	}
	for _, lib := range c.ExtraLibraries {
		if strings.TrimSpace(lib) == "" || strings.ContainsAny(lib, `/\`) {
			errs = append(errs, fmt.Sprintf("extra library %q must be a file name, not a path", lib))
		}
	}
	if strings.TrimSpace(c.Ldd) == "" {
		errs = append(errs, "ldd must not be empty")
	}

	if len(errs) > 0 {
		return model.NewCLIError(model.ExitConfigError,
			fmt.Sprintf("invalid configuration: %s", strings.Join(errs, "; ")))
	}
	return nil
}
