// Package version holds the build-time version string, overridable via
// -ldflags "-X novarelay.dev/version.V=...".
package version

// V is the current build version, set at release time; defaults to "dev"
// for local builds.
var V = "dev"
