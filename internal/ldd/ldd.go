package ldd

import (
	"context"
	"strings"

	"github.com/shinji-kodama/dllbundle/internal/model"
	"github.com/shinji-kodama/dllbundle/internal/toolexec"
)

// DefaultTool is the listing tool looked up on PATH when none is configured.
const DefaultTool = "ldd"

// arrow separates the library name from its resolved location.
const arrow = "=>"

// notFound is what ldd prints in place of a path for unresolvable libraries.
const notFound = "not found"

// unknownImage is what MSYS2's ldd prints for mapped images it cannot name.
const unknownImage = "???"

// Lister produces the raw dependency listing for an executable by running
// the listing tool on it.
type Lister struct {
	// Tool is the listing executable. Empty means DefaultTool.
	Tool string

	// Warn, when set, receives stderr output from a successful run.
	// MSYS2's ldd occasionally prints loader diagnostics while still
	// producing a usable listing.
	Warn func(format string, args ...any)
}

// NewLister creates a Lister for the given tool name.
func NewLister(tool string) *Lister {
	return &Lister{Tool: tool}
}

// List runs `<tool> <executable>` and returns its standard output.
//
// A tool that cannot be launched or exits nonzero yields a
// *model.ToolInvocationError; the whole run must then be aborted.
func (l *Lister) List(ctx context.Context, executable string) (string, error) {
	tool := l.Tool
	if tool == "" {
		tool = DefaultTool
	}

	res, err := toolexec.Run(ctx, tool, executable)
	if err != nil {
		return "", err
	}

	if res.Stderr != "" && l.Warn != nil {
		l.Warn("%s reported: %s", tool, res.Stderr)
	}
	return res.Stdout, nil
}

// ParseLine parses a single listing line.
//
// Supported forms:
//
//	name => path (0xADDRESS)   resolved
//	name => path               resolved, no address annotation
//	name => not found          unresolved
//	name (0xADDRESS)           bare entry, unresolved
//
// The second return value is false for blank lines, which carry no record.
func ParseLine(line string) (model.DependencyLine, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return model.DependencyLine{}, false
	}

	// Split on the FIRST arrow only; a path could in theory contain "=>".
	lhs, rhs, found := strings.Cut(line, arrow)
	if !found {
		// Bare entry: the tool could not (or did not need to) resolve it.
		return model.DependencyLine{Name: stripAddress(line), Bare: true}, true
	}

	dep := model.DependencyLine{Name: strings.TrimSpace(lhs)}

	rhs = strings.TrimSpace(rhs)
	if rhs == "" || strings.EqualFold(rhs, notFound) {
		return dep, true
	}

	path := stripAddress(rhs)
	if path == unknownImage {
		// Nothing to copy and nothing to warn about.
		dep.Bare = true
		return dep, true
	}
	if path == "" {
		return dep, true
	}

	dep.ResolvedPath = path
	dep.Resolved = true
	return dep, true
}

// ParseListing parses a full listing, skipping blank lines. Order is kept.
func ParseListing(raw string) []model.DependencyLine {
	var deps []model.DependencyLine

	// Normalise CRLF so the per-line trim does not have to care.
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		dep, ok := ParseLine(line)
		if !ok {
			continue
		}
		deps = append(deps, dep)
	}
	return deps
}

// stripAddress removes a trailing load-address annotation by splitting once
// from the right on whitespace, as in "path (0x7ffb1c7a0000)".
//
// Only a last field wrapped in parentheses counts as an annotation, so a
// path without one is returned whole even if it contains spaces.
func stripAddress(s string) string {
	s = strings.TrimSpace(s)

	idx := strings.LastIndexAny(s, " \t")
	if idx < 0 {
		return s
	}

	last := s[idx+1:]
	if strings.HasPrefix(last, "(") && strings.HasSuffix(last, ")") {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
