// Package model defines the domain types and value objects for the
// dllbundle CLI.
//
// This package contains pure data structures with no external dependencies.
// DependencyLine records are parsed from the listing tool's output, consumed
// by the resolver to build a CopyPlan, and then discarded. Nothing here is
// persisted except through the optional bundle manifest.
//
// The package also defines exit codes (ExitCode), the generic CLIError that
// carries one, and the two domain error kinds the resolver can fail with:
// ToolInvocationError and ResolutionError.
package model
