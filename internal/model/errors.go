package model

import (
	"fmt"
	"strings"
)

// ExitCode defines the CLI exit codes. Scripts and CI jobs use them to tell
// a broken toolchain apart from a bad configuration.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates the configuration file, environment or
	// flags were invalid.
	ExitConfigError ExitCode = 2

	// ExitToolInvocation indicates an external helper (ldd, cygpath, upx,
	// cargo) could not be launched or exited nonzero.
	ExitToolInvocation ExitCode = 3

	// ExitResolution indicates a dependency path could not be normalized
	// or located.
	ExitResolution ExitCode = 4

	// ExitCopyFailed indicates a file could not be copied into the output
	// directory.
	ExitCopyFailed ExitCode = 5
)

// ExitCoder is implemented by errors that know which process exit code they
// should produce.
type ExitCoder interface {
	ExitCode() ExitCode
}

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// ExitCode implements ExitCoder.
func (e *CLIError) ExitCode() ExitCode {
	return e.Code
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ToolInvocationError is returned when an external helper process could
// not be started or exited with a nonzero status. It aborts the whole run.
type ToolInvocationError struct {
	// Tool is the executable that was run (e.g. "ldd", "cygpath").
	Tool string

	// Args are the arguments it was run with.
	Args []string

	// Stderr is the trimmed standard error output, if any was captured.
	Stderr string

	// Err is the underlying exec error (*exec.ExitError, exec.ErrNotFound, ...).
	Err error
}

// Error formats the command line, the cause and any stderr output.
func (e *ToolInvocationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Tool)
	if len(e.Args) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(e.Args, " "))
	}
	b.WriteString(" failed")
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", e.Stderr)
	}
	return b.String()
}

// Unwrap returns the underlying exec error.
func (e *ToolInvocationError) Unwrap() error {
	return e.Err
}

// ExitCode implements ExitCoder.
func (e *ToolInvocationError) ExitCode() ExitCode {
	return ExitToolInvocation
}

// ResolutionError is returned when a dependency path cannot be normalized
// to an absolute form, does not exist, or cannot be located at all.
type ResolutionError struct {
	// Name is the library or helper being resolved, if known.
	Name string

	// Path is the path that failed to resolve. Empty when the lookup
	// itself produced nothing.
	Path string

	// Reason is a short human-readable explanation.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error formats the failing name/path and the reason.
func (e *ResolutionError) Error() string {
	subject := e.Path
	if subject == "" {
		subject = e.Name
	}
	msg := fmt.Sprintf("cannot resolve %q: %s", subject, e.Reason)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ExitCode implements ExitCoder.
func (e *ResolutionError) ExitCode() ExitCode {
	return ExitResolution
}
