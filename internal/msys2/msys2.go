// Package msys2 describes the MSYS2 environments a Windows GNU target can
// be built and bundled in, and maps Rust target triples onto them.
package msys2

import (
	"fmt"
	"strings"
)

// Environment is one of the MSYS2 subsystems. Each has its own prefix
// (e.g. /ucrt64) holding bin/ and lib/ with the environment's DLLs.
type Environment string

const (
	// EnvMsys is the POSIX emulation environment. Binaries built here need
	// msys-2.0.dll and are not recommended for redistribution.
	EnvMsys Environment = "msys"

	// EnvMingw64 targets x86_64 with the legacy MSVCRT runtime.
	EnvMingw64 Environment = "mingw64"

	// EnvUcrt64 targets x86_64 with the Universal CRT.
	EnvUcrt64 Environment = "ucrt64"

	// EnvClang64 targets x86_64 with LLVM and the Universal CRT.
	EnvClang64 Environment = "clang64"

	// EnvMingw32 targets i686 with MSVCRT.
	EnvMingw32 Environment = "mingw32"

	// EnvClang32 targets i686 with LLVM.
	EnvClang32 Environment = "clang32"

	// EnvClangArm64 targets aarch64 with LLVM.
	EnvClangArm64 Environment = "clangarm64"
)

// Arch is the CPU architecture of an environment.
type Arch string

const (
	ArchX86_64  Arch = "x86_64"
	ArchI686    Arch = "i686"
	ArchAArch64 Arch = "aarch64"
)

// allEnvironments lists every valid Environment, in MSYS2's own order.
var allEnvironments = []Environment{
	EnvMsys, EnvMingw64, EnvUcrt64, EnvClang64, EnvMingw32, EnvClang32, EnvClangArm64,
}

// String returns the string representation of Environment.
func (e Environment) String() string {
	return string(e)
}

// IsValid checks whether the Environment value is one of the predefined
// environments.
func (e Environment) IsValid() bool {
	for _, known := range allEnvironments {
		if e == known {
			return true
		}
	}
	return false
}

// Prefix returns the environment's absolute prefix inside the MSYS2
// installation, in MSYS2 path syntax.
func (e Environment) Prefix() string {
	if e == EnvMsys {
		return "/usr"
	}
	return "/" + string(e)
}

// Arch returns the environment's CPU architecture.
func (e Environment) Arch() Arch {
	switch e {
	case EnvMingw32, EnvClang32:
		return ArchI686
	case EnvClangArm64:
		return ArchAArch64
	default:
		return ArchX86_64
	}
}

// ParseEnvironment converts a string such as the MSYSTEM variable
// ("UCRT64") to an Environment. Matching is case-insensitive.
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(strings.ToLower(strings.TrimSpace(s)))
	if !env.IsValid() {
		names := make([]string, len(allEnvironments))
		for i, e := range allEnvironments {
			names[i] = e.String()
		}
		return "", fmt.Errorf("%q is not a valid MSYS2 environment (valid: %s)", s, strings.Join(names, ", "))
	}
	return env, nil
}

// targetEnvironments maps Rust Windows GNU target triples to the MSYS2
// environment providing matching libraries. Triples mapped to "" are known
// but unsupported:
//   - -msvc targets need MSVC import libraries MSYS2 does not ship
//   - i586 and thumbv7a have no MSYS2 environment
//   - i686 UWP is UCRT, and MSYS2 only ships x86_64 UCRT
//
// gnullvm targets use the UCRT; gnu targets use MSVCRT.
var targetEnvironments = map[string]Environment{
	"aarch64-pc-windows-gnullvm": EnvClangArm64,
	"aarch64-pc-windows-msvc":    "",
	"aarch64-uwp-windows-msvc":   "",
	"i586-pc-windows-msvc":       "",
	"i686-pc-windows-gnu":        EnvMingw32,
	"i686-pc-windows-msvc":       "",
	"i686-uwp-windows-gnu":       "",
	"i686-uwp-windows-msvc":      "",
	"thumbv7a-pc-windows-msvc":   "",
	"thumbv7a-uwp-windows-msvc":  "",
	"x86_64-pc-windows-gnu":      EnvMingw64,
	"x86_64-pc-windows-gnullvm":  EnvClang64,
	"x86_64-pc-windows-msvc":     "",
	"x86_64-uwp-windows-gnu":     EnvUcrt64,
	"x86_64-uwp-windows-msvc":    "",
}

// EnvironmentForTarget returns the MSYS2 environment for a target triple.
// It fails for triples that MSYS2 cannot provide libraries for.
func EnvironmentForTarget(triple string) (Environment, error) {
	env, known := targetEnvironments[triple]
	if !known {
		return "", fmt.Errorf("unknown target triple %q", triple)
	}
	if env == "" {
		return "", fmt.Errorf("target triple %q is not supported by MSYS2", triple)
	}
	return env, nil
}
