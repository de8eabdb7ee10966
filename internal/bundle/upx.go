package bundle

import (
	"context"
	"errors"
	"strings"

	"github.com/shinji-kodama/dllbundle/internal/model"
	"github.com/shinji-kodama/dllbundle/internal/toolexec"
)

// DefaultUPX is the compressor executable looked up on PATH.
const DefaultUPX = "upx"

// alreadyPacked is how upx reports a file it compressed before.
const alreadyPacked = "AlreadyPackedException"

// UPX compresses binaries in place with `upx --lzma`.
type UPX struct {
	// Tool is the upx executable. Empty means DefaultUPX.
	Tool string

	// Warn, when set, receives anything upx prints on stderr while
	// succeeding.
	Warn func(format string, args ...any)
}

// Compress runs upx on path. A failure is a *model.ToolInvocationError,
// except for a file upx already packed: the executable is compressed in
// place, so a second package run finds it that way.
func (u *UPX) Compress(ctx context.Context, path string) error {
	tool := u.Tool
	if tool == "" {
		tool = DefaultUPX
	}

	res, err := toolexec.Run(ctx, tool, "--lzma", path)
	if err != nil {
		var toolErr *model.ToolInvocationError
		if errors.As(err, &toolErr) && strings.Contains(toolErr.Stderr, alreadyPacked) {
			u.warn("%s is already compressed, leaving it as is", path)
			return nil
		}
		return err
	}
	if res.Stderr != "" {
		u.warn("%s reported: %s", tool, res.Stderr)
	}
	return nil
}

func (u *UPX) warn(format string, args ...any) {
	if u.Warn != nil {
		u.Warn(format, args...)
	}
}
