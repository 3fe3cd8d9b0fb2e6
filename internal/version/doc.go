// Package version exposes build metadata for stabping-release.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags and
// fall back to placeholders for local builds. The values end up in the
// `version` subcommand and in the User-Agent sent to the GitHub API.
package version
