package model

import (
	"fmt"
	"strings"
)

// DependencyLine is a single shared library as reported by the
// dependency-listing tool (ldd).
//
// Example listing lines and how they map:
//
//	libglib-2.0-0.dll => /ucrt64/bin/libglib-2.0-0.dll (0x7ffb1c7a0000)
//	    → {Name: "libglib-2.0-0.dll", ResolvedPath: "/ucrt64/bin/libglib-2.0-0.dll", Resolved: true}
//	libfoo.dll => not found
//	    → {Name: "libfoo.dll", Resolved: false}
//	ntdll.dll (0x7ffb3f2d0000)
//	    → {Name: "ntdll.dll", Resolved: false, Bare: true}
type DependencyLine struct {
	// Name is the library file name. Identity is case-insensitive, so
	// comparisons must go through SameName or Key.
	Name string `json:"name"`

	// ResolvedPath is the path reported by the tool, with the trailing
	// load-address annotation removed. It is in the tool's own path syntax
	// (e.g. "/c/Windows/System32/..." under MSYS2) and may be empty.
	ResolvedPath string `json:"resolvedPath,omitempty"`

	// Resolved is false when the tool could not locate the library
	// (a bare line with no arrow, or "=> not found").
	Resolved bool `json:"resolved"`

	// Bare is true for lines without an arrow, and for images the tool
	// could not name ("??? => ???"). These carry no location at all and are
	// skipped without a warning.
	Bare bool `json:"bare,omitempty"`
}

// Key returns the case-folded identity of the library name.
func (d DependencyLine) Key() string {
	return NameKey(d.Name)
}

// NameKey folds a library file name into the form used for set membership
// and duplicate detection. Windows file names are case-insensitive.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SameName reports whether two library names refer to the same file.
func SameName(a, b string) bool {
	return NameKey(a) == NameKey(b)
}

// CopyEntry is a single decision of the resolver: copy Source into the
// output directory under Name.
type CopyEntry struct {
	// Name is the destination file name inside the output directory.
	Name string `json:"name"`

	// Source is the absolute, OS-native path of the file to copy.
	Source string `json:"source"`
}

// String returns the entry in "name <- source" form for plan listings.
func (e CopyEntry) String() string {
	return fmt.Sprintf("%s <- %s", e.Name, e.Source)
}

// SkipReason explains why a listing line did not make it into a CopyPlan.
type SkipReason string

const (
	// SkipExcluded means the name is in the exclusion set.
	SkipExcluded SkipReason = "excluded"

	// SkipSystemDirectory means the path lies under the OS's protected
	// library directory. A warning is emitted for these.
	SkipSystemDirectory SkipReason = "system-directory"

	// SkipUnresolved means the tool reported no usable path.
	SkipUnresolved SkipReason = "unresolved"

	// SkipAlreadyPresent means a file with the same name already exists in
	// the output directory.
	SkipAlreadyPresent SkipReason = "already-present"

	// SkipInOutputDir means the normalized path already lives inside the
	// output directory.
	SkipInOutputDir SkipReason = "in-output-dir"

	// SkipDuplicate means an earlier line already planned the same name.
	SkipDuplicate SkipReason = "duplicate"
)

// String returns the string representation of SkipReason.
func (r SkipReason) String() string {
	return string(r)
}

// SkipRecord is the diagnostic trail for a filtered listing line.
type SkipRecord struct {
	Name   string     `json:"name"`
	Path   string     `json:"path,omitempty"`
	Reason SkipReason `json:"reason"`
}

// CopyPlan is the ordered result of dependency resolution for one
// executable. Entries keep discovery order; nothing is sorted.
//
// Invariants maintained by the resolver:
//   - no two entries share a Name (case-insensitive)
//   - no entry's Source lies inside OutputDir
type CopyPlan struct {
	// OutputDir is the absolute directory the executable lives in and the
	// destination of every entry.
	OutputDir string `json:"outputDir"`

	// Entries are the files to copy, in discovery order.
	Entries []CopyEntry `json:"entries"`

	// Skipped records every listing line that was filtered out, also in
	// discovery order.
	Skipped []SkipRecord `json:"skipped,omitempty"`
}

// NewCopyPlan creates an empty plan for the given output directory.
// Entries is initialised to an empty slice so JSON output shows [] rather
// than null.
func NewCopyPlan(outputDir string) *CopyPlan {
	return &CopyPlan{
		OutputDir: outputDir,
		Entries:   []CopyEntry{},
	}
}

// Has reports whether an entry with the given name is already planned.
func (p *CopyPlan) Has(name string) bool {
	for _, e := range p.Entries {
		if SameName(e.Name, name) {
			return true
		}
	}
	return false
}

// Add appends an entry. It returns false, leaving the plan untouched, when
// the name is already planned.
func (p *CopyPlan) Add(name, source string) bool {
	if p.Has(name) {
		return false
	}
	p.Entries = append(p.Entries, CopyEntry{Name: name, Source: source})
	return true
}

// Skip records a filtered line.
func (p *CopyPlan) Skip(name, path string, reason SkipReason) {
	p.Skipped = append(p.Skipped, SkipRecord{Name: name, Path: path, Reason: reason})
}

// Len returns the number of planned copies.
func (p *CopyPlan) Len() int {
	return len(p.Entries)
}
