// Package reshape holds module-level metadata shared by the CLI and library.
package reshape

// Version is the current reshape release. Overridden at build time via
// -ldflags "-X github.com/mesh-intelligence/reshape/pkg/reshape.Version=...".
var Version = "0.1.0"
