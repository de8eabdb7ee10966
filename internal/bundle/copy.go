package bundle

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shinji-kodama/dllbundle/internal/model"
)

// Copied describes one file Apply placed in the output directory.
type Copied struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Compressed  bool   `json:"compressed,omitempty"`
}

// Applier copies the entries of a CopyPlan into its output directory.
type Applier struct {
	// Out receives one "<src> => <dest>" line per copy. Nil discards them.
	Out io.Writer

	// Compressor, when set, is run on every destination after it is
	// written.
	Compressor *UPX
}

// Apply copies every plan entry in order, overwriting existing files.
//
// The first failure stops the run. Files copied before it stay in place;
// re-running skips them through the already-present rule.
func (a *Applier) Apply(ctx context.Context, plan *model.CopyPlan) ([]Copied, error) {
	out := a.Out
	if out == nil {
		out = io.Discard
	}

	copied := make([]Copied, 0, plan.Len())
	for _, entry := range plan.Entries {
		if err := ctx.Err(); err != nil {
			return copied, err
		}

		dest := filepath.Join(plan.OutputDir, entry.Name)
		fmt.Fprintf(out, "%s => %s\n", entry.Source, dest)

		if err := CopyFile(entry.Source, dest); err != nil {
			return copied, model.WrapCLIError(model.ExitCopyFailed,
				fmt.Sprintf("failed to copy %s", entry.Name), err)
		}

		c := Copied{Name: entry.Name, Source: entry.Source, Destination: dest}
		if a.Compressor != nil {
			if err := a.Compressor.Compress(ctx, dest); err != nil {
				return copied, err
			}
			c.Compressed = true
		}
		copied = append(copied, c)
	}
	return copied, nil
}

// CopyFile copies src to dest, replacing dest if it exists. The source's
// permission bits are kept.
func CopyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("source %s is a directory", src)
	}

	return writeAtomic(dest, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// writeAtomic writes dest through a temporary file in the same directory
// that is renamed into place once complete, so an interrupted write never
// leaves a truncated file behind.
func writeAtomic(dest string, perm os.FileMode, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".dllbundle-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpPath := tmp.Name()
	needsCleanup := true
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
		}
		if needsCleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := write(tmp); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	// Windows refuses to rename an open file.
	if err := tmp.Close(); err != nil {
		tmp = nil
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	tmp = nil

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}
	needsCleanup = false

	if err := os.Chmod(dest, perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	return nil
}
