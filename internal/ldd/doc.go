// Package ldd runs the shared-library dependency listing tool and parses
// its textual output.
//
// All listing is performed by shelling out to the `ldd` binary shipped with
// MSYS2, rather than reading PE import tables directly. This approach:
//   - Reports the same resolution the MSYS2 loader would perform, including
//     the environment's bin directory on PATH
//   - Keeps the parser small: one record per line, `name => path (address)`
//
// The Lister type satisfies resolver.LineProvider; ParseLine and
// ParseListing are pure functions used by the resolver and the tests.
package ldd
