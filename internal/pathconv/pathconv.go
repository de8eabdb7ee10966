// Package pathconv converts between the path syntax reported by MSYS2 tools
// ("/ucrt64/bin/libfoo.dll") and absolute OS-native paths
// ("C:\msys64\ucrt64\bin\libfoo.dll"), and locates executables on the
// search path.
package pathconv

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shinji-kodama/dllbundle/internal/model"
	"github.com/shinji-kodama/dllbundle/internal/toolexec"
)

// DefaultCygpath is the path-translation helper shipped with MSYS2.
const DefaultCygpath = "cygpath"

// Cygpath normalizes paths by running `cygpath -wa <path>`.
type Cygpath struct {
	// Tool is the translator executable. Empty means DefaultCygpath.
	Tool string
}

// NewCygpath creates a Cygpath normalizer for the given tool name.
func NewCygpath(tool string) *Cygpath {
	return &Cygpath{Tool: tool}
}

// Normalize converts path to an absolute Windows path.
//
// A translator that cannot run or exits nonzero yields a
// *model.ToolInvocationError. Output that is empty or not absolute yields a
// *model.ResolutionError.
func (c *Cygpath) Normalize(ctx context.Context, path string) (string, error) {
	tool := c.Tool
	if tool == "" {
		tool = DefaultCygpath
	}

	// -w: Windows form, -a: absolute.
	res, err := toolexec.Run(ctx, tool, "-wa", path)
	if err != nil {
		return "", err
	}

	native := toolexec.TrimLineEnding(res.Stdout)
	if native == "" {
		return "", &model.ResolutionError{Path: path, Reason: tool + " produced no output"}
	}
	if !IsAbs(native) {
		return "", &model.ResolutionError{Path: path, Reason: "translated path " + native + " is not absolute"}
	}
	return native, nil
}

// Native normalizes paths with filepath.Abs. It is used when no translator
// is configured, i.e. when the listing tool already reports native paths.
type Native struct{}

// Normalize returns the cleaned absolute form of path.
func (Native) Normalize(_ context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &model.ResolutionError{Path: path, Reason: "cannot make path absolute", Err: err}
	}
	return abs, nil
}

// windowsAbs matches drive-absolute ("C:\x", "c:/x") and UNC ("\\host\share")
// paths.
var windowsAbs = regexp.MustCompile(`^([A-Za-z]:[\\/]|\\\\)`)

// IsAbs reports whether path is absolute either for the running OS or in
// Windows syntax. Translated paths are Windows paths even when tests run
// on Linux.
func IsAbs(path string) bool {
	return filepath.IsAbs(path) || windowsAbs.MatchString(path)
}

// Fold returns a comparison key for a path: lower case, forward slashes,
// no trailing slash. Windows paths compare case-insensitively and accept
// both separators.
func Fold(path string) string {
	p := strings.ToLower(strings.ReplaceAll(path, `\`, "/"))
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// HasPathPrefix reports whether path equals prefix or lies beneath it,
// comparing case-insensitively and component-wise, so "/c/windowsapps"
// is not under "/c/windows".
func HasPathPrefix(path, prefix string) bool {
	p, pre := Fold(path), Fold(prefix)
	if pre == "" {
		return false
	}
	if p == pre {
		return true
	}
	if strings.HasSuffix(pre, "/") {
		return strings.HasPrefix(p, pre)
	}
	return strings.HasPrefix(p, pre+"/")
}
