// Package version exposes build metadata of the panel binaries.
//
// Version, Commit and BuildTime are injected with -ldflags -X at build time.
package version
