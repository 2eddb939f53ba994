// Package buildinfo contains build information.
package buildinfo

// Version identifies the version of the binary. It is overridden at release
// time with -ldflags.
var Version = "unknown"
