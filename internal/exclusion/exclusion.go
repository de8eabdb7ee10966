// Package exclusion holds the fixed policy describing which libraries are
// supplied by the target operating system and must never be bundled.
//
// Two independent rules exist:
//   - Set: library names (exact, case-insensitive) and glob patterns such as
//     the API-set forwarders "api-ms-win-*". A match skips the line silently.
//   - SystemDirs: path prefixes of the OS's protected library directory.
//     A match means the listing tool resolved the name to a system copy; the
//     line is skipped with a warning.
//
// Both are built once at startup and never mutated afterwards.
package exclusion

import (
	"sort"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/shinji-kodama/dllbundle/internal/model"
	"github.com/shinji-kodama/dllbundle/internal/pathconv"
)

// defaultNames are the Windows system DLLs present on every supported
// Windows installation.
var defaultNames = []string{
	"advapi32.dll",
	"bcrypt.dll",
	"cfgmgr32.dll",
	"combase.dll",
	"comctl32.dll",
	"comdlg32.dll",
	"crypt32.dll",
	"cryptbase.dll",
	"dnsapi.dll",
	"dpapi.dll",
	"dwmapi.dll",
	"gdi32.dll",
	"gdi32full.dll",
	"gdiplus.dll",
	"hid.dll",
	"imm32.dll",
	"iphlpapi.dll",
	"kernel32.dll",
	"kernelbase.dll",
	"msimg32.dll",
	"msvcp_win.dll",
	"msvcrt.dll",
	"ntdll.dll",
	"ole32.dll",
	"rpcrt4.dll",
	"sechost.dll",
	"setupapi.dll",
	"shcore.dll",
	"shell32.dll",
	"shlwapi.dll",
	"ucrtbase.dll",
	"user32.dll",
	"userenv.dll",
	"usp10.dll",
	"win32u.dll",
	"winmm.dll",
	"winspool.drv",
	"ws2_32.dll",
}

// defaultPatterns match API-set forwarder DLLs, which the loader resolves
// virtually and which never exist as files to copy.
var defaultPatterns = []string{
	"api-ms-win-*",
	"ext-ms-*",
}

// DefaultSystemDirs is the MSYS2 view of the Windows directory.
var DefaultSystemDirs = []string{"/c/windows"}

// Set is an immutable, case-insensitive set of library names and glob
// patterns.
type Set struct {
	names    map[string]struct{}
	patterns []string
	matcher  gitignore.Matcher
}

// NewSet builds a Set from names and glob patterns. Patterns use gitignore
// glob syntax matched against the bare file name.
func NewSet(names, patterns []string) *Set {
	s := &Set{names: make(map[string]struct{}, len(names))}

	for _, n := range names {
		key := model.NameKey(n)
		if key == "" {
			continue
		}
		s.names[key] = struct{}{}
	}

	parsed := make([]gitignore.Pattern, 0, len(patterns))
	for _, p := range patterns {
		key := model.NameKey(p)
		if key == "" {
			continue
		}
		s.patterns = append(s.patterns, key)
		parsed = append(parsed, gitignore.ParsePattern(key, nil))
	}
	if len(parsed) > 0 {
		s.matcher = gitignore.NewMatcher(parsed)
	}

	return s
}

// Default returns the built-in set of OS-provided libraries.
func Default() *Set {
	return NewSet(defaultNames, defaultPatterns)
}

// WithExtras returns the built-in set extended with extra names and
// patterns from configuration.
func WithExtras(names, patterns []string) *Set {
	allNames := append(append([]string{}, defaultNames...), names...)
	allPatterns := append(append([]string{}, defaultPatterns...), patterns...)
	return NewSet(allNames, allPatterns)
}

// Contains reports whether the library name is OS-provided.
func (s *Set) Contains(name string) bool {
	key := model.NameKey(name)
	if key == "" {
		return false
	}
	if _, ok := s.names[key]; ok {
		return true
	}
	return s.matcher != nil && s.matcher.Match([]string{key}, false)
}

// Names returns the exact names in sorted order.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Patterns returns the glob patterns in the order they were given.
func (s *Set) Patterns() []string {
	return append([]string(nil), s.patterns...)
}

// Len returns the number of exact names.
func (s *Set) Len() int {
	return len(s.names)
}

// SystemDirs lists the OS's protected library directories, in the listing
// tool's path syntax.
type SystemDirs []string

// Contains reports whether path lies in one of the directories. The test is
// case-insensitive and component-aware.
func (d SystemDirs) Contains(path string) bool {
	for _, dir := range d {
		if pathconv.HasPathPrefix(path, dir) {
			return true
		}
	}
	return false
}
