// Package version holds the build version stamp.
package version

// Version is the release identifier, overridable at build time with
// -ldflags "-X ridetrace/pkg/version.Version=v1.2.3".
var Version = "0.3.0-dev"
