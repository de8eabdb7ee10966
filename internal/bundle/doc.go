// Package bundle applies a CopyPlan to the filesystem.
//
// It is the only part of dllbundle that writes into the output directory:
// copying the planned libraries next to the executable, optionally
// compressing them with upx, and optionally recording what was copied in a
// manifest file.
package bundle
