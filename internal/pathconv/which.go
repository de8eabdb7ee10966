package pathconv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shinji-kodama/dllbundle/internal/model"
)

// Which locates executables on a search path, honouring PATHEXT the way the
// Windows shell does.
//
// The search is done by hand rather than with exec.LookPath because the
// helper is frequently looked up by its full file name ("gdbus.exe") from an
// MSYS2 shell, where LookPath's PATHEXT handling and executable-bit checks
// differ between the MSYS2 runtime and native Windows.
type Which struct {
	// Path is the list of directories to search. Nil means $PATH.
	Path []string

	// Ext is the list of extensions tried after the bare name. Nil means
	// $PATHEXT.
	Ext []string
}

// NewWhich creates a Which that reads PATH and PATHEXT from the
// environment at lookup time.
func NewWhich() *Which {
	return &Which{}
}

// Find returns the first match for name. For each directory in order it
// tries the bare name, then name + each extension.
//
// A name that is found nowhere yields a *model.ResolutionError.
func (w *Which) Find(name string) (string, error) {
	dirs := w.Path
	if dirs == nil {
		dirs = filepath.SplitList(os.Getenv("PATH"))
	}
	exts := w.Ext
	if exts == nil {
		exts = filepath.SplitList(os.Getenv("PATHEXT"))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}

		candidate := filepath.Join(dir, name)
		if ok, err := isFile(candidate); err != nil {
			return "", &model.ResolutionError{Name: name, Path: candidate, Reason: "cannot stat candidate", Err: err}
		} else if ok {
			return candidate, nil
		}

		for _, ext := range exts {
			ext = strings.TrimSpace(ext)
			if ext == "" {
				continue
			}
			withExt := candidate + ext
			if ok, err := isFile(withExt); err != nil {
				return "", &model.ResolutionError{Name: name, Path: withExt, Reason: "cannot stat candidate", Err: err}
			} else if ok {
				return withExt, nil
			}
		}
	}

	return "", &model.ResolutionError{
		Name:   name,
		Reason: fmt.Sprintf("not found on search path (%d directories)", len(dirs)),
	}
}

// isFile reports whether path exists and is not a directory. A missing file
// is not an error.
func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		// ENOTDIR happens when a PATH entry is a regular file. Unreadable
		// PATH entries are skipped the same way a shell skips them.
		if os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR) || errors.Is(err, os.ErrPermission) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}
