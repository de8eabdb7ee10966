// Package resolver turns the dependency listing of one executable into a
// CopyPlan: the ordered list of libraries that must be copied next to it.
//
// The resolver is a single linear filtering pass. For each listing line it
// applies, in order:
//  1. bare entries (no arrow) are skipped
//  2. names in the exclusion set are skipped, whatever their path
//  3. unresolved entries ("not found") are skipped with a warning
//  4. paths under a system directory are skipped with a warning
//  5. names already present in the output directory are skipped
//  6. names already planned are skipped
//  7. the path is normalized to an absolute native path
//  8. normalized paths inside the output directory are skipped
//  9. anything left is appended to the plan
//
// Finally, the auxiliary helper executable (gdbus.exe by default) and any
// configured extra libraries are appended when they are missing from the
// output directory. The listing tool cannot see them because the GUI
// runtime starts or loads them at run time rather than linking them.
//
// External tools sit behind LineProvider, PathNormalizer and
// ExecutableFinder so the filtering can be tested with text fixtures.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shinji-kodama/dllbundle/internal/exclusion"
	"github.com/shinji-kodama/dllbundle/internal/ldd"
	"github.com/shinji-kodama/dllbundle/internal/model"
	"github.com/shinji-kodama/dllbundle/internal/pathconv"
)

// DefaultHelper is the D-Bus helper GTK needs at runtime on Windows.
const DefaultHelper = "gdbus.exe"

// LineProvider produces the raw dependency listing for an executable.
type LineProvider interface {
	List(ctx context.Context, executable string) (string, error)
}

// PathNormalizer converts a path reported by the listing tool into an
// absolute OS-native path.
type PathNormalizer interface {
	Normalize(ctx context.Context, path string) (string, error)
}

// ExecutableFinder locates an executable on the system search path.
type ExecutableFinder interface {
	Find(name string) (string, error)
}

// Reporter receives warnings about suspicious listing lines.
type Reporter interface {
	Warnf(format string, args ...any)
}

// nopReporter discards warnings.
type nopReporter struct{}

func (nopReporter) Warnf(string, ...any) {}

// Resolver builds CopyPlans. It holds no per-run state, so one Resolver can
// plan any number of executables.
type Resolver struct {
	lines      LineProvider
	paths      PathNormalizer
	finder     ExecutableFinder
	excluded   *exclusion.Set
	systemDirs exclusion.SystemDirs
	helper     string
	extras     []string
	reporter   Reporter
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSystemDirs replaces the default system-directory prefixes.
func WithSystemDirs(dirs []string) Option {
	return func(r *Resolver) {
		r.systemDirs = exclusion.SystemDirs(dirs)
	}
}

// WithHelper sets the auxiliary helper file name. An empty name disables
// the helper rule.
func WithHelper(name string) Option {
	return func(r *Resolver) {
		r.helper = name
	}
}

// WithExtraLibraries adds file names that are searched for and bundled the
// same way as the helper, after it and in the given order.
func WithExtraLibraries(names []string) Option {
	return func(r *Resolver) {
		r.extras = append(r.extras, names...)
	}
}

// WithReporter sets the destination for warnings.
func WithReporter(rep Reporter) Option {
	return func(r *Resolver) {
		if rep != nil {
			r.reporter = rep
		}
	}
}

// New creates a Resolver. A nil exclusion set means exclusion.Default().
func New(lines LineProvider, paths PathNormalizer, finder ExecutableFinder, excluded *exclusion.Set, opts ...Option) *Resolver {
	if excluded == nil {
		excluded = exclusion.Default()
	}

	r := &Resolver{
		lines:      lines,
		paths:      paths,
		finder:     finder,
		excluded:   excluded,
		systemDirs: exclusion.SystemDirs(exclusion.DefaultSystemDirs),
		helper:     DefaultHelper,
		reporter:   nopReporter{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve lists the dependencies of executable and plans the copies into
// outputDir.
//
// A listing tool failure aborts with the tool's *model.ToolInvocationError;
// no partial plan is returned.
func (r *Resolver) Resolve(ctx context.Context, executable, outputDir string) (*model.CopyPlan, error) {
	raw, err := r.lines.List(ctx, executable)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies of %s: %w", executable, err)
	}
	return r.Plan(ctx, raw, outputDir)
}

// Plan runs the filtering pass over an already captured listing.
func (r *Resolver) Plan(ctx context.Context, rawListing, outputDir string) (*model.CopyPlan, error) {
	if !pathconv.IsAbs(outputDir) {
		abs, err := filepath.Abs(outputDir)
		if err != nil {
			return nil, &model.ResolutionError{Path: outputDir, Reason: "cannot make output directory absolute", Err: err}
		}
		outputDir = abs
	}

	present, err := dirContents(outputDir)
	if err != nil {
		return nil, err
	}

	plan := model.NewCopyPlan(outputDir)

	for _, dep := range ldd.ParseListing(rawListing) {
		if err := r.consider(ctx, plan, present, dep); err != nil {
			return nil, err
		}
	}

	if r.helper != "" {
		if err := r.addSearched(ctx, plan, present, r.helper); err != nil {
			return nil, err
		}
	}
	for _, name := range r.extras {
		if err := r.addSearched(ctx, plan, present, name); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

// consider applies the filtering rules to one listing line.
func (r *Resolver) consider(ctx context.Context, plan *model.CopyPlan, present map[string]bool, dep model.DependencyLine) error {
	name := dep.Name

	if dep.Bare {
		plan.Skip(name, "", model.SkipUnresolved)
		return nil
	}

	// The exclusion set wins over everything else, including an unresolved
	// path and a same-named file in the build environment.
	if r.excluded.Contains(name) {
		plan.Skip(name, dep.ResolvedPath, model.SkipExcluded)
		return nil
	}

	if !dep.Resolved || name == "" {
		r.reporter.Warnf("%s could not be located by the listing tool, skipping", name)
		plan.Skip(name, "", model.SkipUnresolved)
		return nil
	}

	path := dep.ResolvedPath

	if r.systemDirs.Contains(path) {
		r.reporter.Warnf("likely invalid copy, looks like a system library: %s : %s, skipping", name, path)
		plan.Skip(name, path, model.SkipSystemDirectory)
		return nil
	}

	if present[dep.Key()] {
		plan.Skip(name, path, model.SkipAlreadyPresent)
		return nil
	}

	if plan.Has(name) {
		plan.Skip(name, path, model.SkipDuplicate)
		return nil
	}

	native, err := r.normalize(ctx, name, path)
	if err != nil {
		return err
	}

	if pathconv.HasPathPrefix(native, plan.OutputDir) {
		plan.Skip(name, native, model.SkipInOutputDir)
		return nil
	}

	if err := requireFile(name, native); err != nil {
		return err
	}

	plan.Add(name, native)
	return nil
}

// addSearched appends a file that is found by name on the executable search
// path when the output directory lacks it. A name the listing already
// planned is left alone.
func (r *Resolver) addSearched(ctx context.Context, plan *model.CopyPlan, present map[string]bool, name string) error {
	if plan.Has(name) {
		return nil
	}

	if present[model.NameKey(name)] {
		plan.Skip(name, "", model.SkipAlreadyPresent)
		return nil
	}

	found, err := r.finder.Find(name)
	if err != nil {
		var resErr *model.ResolutionError
		if errors.As(err, &resErr) {
			return err
		}
		return &model.ResolutionError{Name: name, Reason: "executable search failed", Err: err}
	}

	native, err := r.normalize(ctx, name, found)
	if err != nil {
		return err
	}

	if pathconv.HasPathPrefix(native, plan.OutputDir) {
		plan.Skip(name, native, model.SkipInOutputDir)
		return nil
	}

	if err := requireFile(name, native); err != nil {
		return err
	}

	plan.Add(name, native)
	return nil
}

// normalize runs the PathNormalizer and checks its result is absolute.
// Typed errors from the normalizer pass through unchanged; anything else
// becomes a ResolutionError.
func (r *Resolver) normalize(ctx context.Context, name, path string) (string, error) {
	native, err := r.paths.Normalize(ctx, path)
	if err != nil {
		var toolErr *model.ToolInvocationError
		var resErr *model.ResolutionError
		if errors.As(err, &toolErr) || errors.As(err, &resErr) {
			return "", err
		}
		return "", &model.ResolutionError{Name: name, Path: path, Reason: "cannot normalize path", Err: err}
	}

	if !pathconv.IsAbs(native) {
		return "", &model.ResolutionError{
			Name:   name,
			Path:   path,
			Reason: fmt.Sprintf("normalized path %q is not absolute", native),
		}
	}
	return native, nil
}

// dirContents returns the case-folded names of the entries directly inside
// dir. Windows file names are case-insensitive, so "LIBFOO.DLL" in the
// listing is satisfied by "libfoo.dll" on disk. A missing directory is
// empty.
func dirContents(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, &model.ResolutionError{Path: dir, Reason: "cannot read output directory", Err: err}
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		present[model.NameKey(e.Name())] = true
	}
	return present, nil
}

// requireFile enforces that a planned source exists and is a regular file.
func requireFile(name, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &model.ResolutionError{Name: name, Path: path, Reason: "source does not exist", Err: err}
	}
	if info.IsDir() {
		return &model.ResolutionError{Name: name, Path: path, Reason: "source is a directory"}
	}
	return nil
}
