// Package version holds the build version, overridden with
// -ldflags "-X github.com/bnema/pogo-accounts/internal/version.Version=...".
package version

var Version = "dev"
