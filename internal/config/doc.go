// Package config loads the optional YAML settings file of stabping-release.
//
// Settings cover what a CI job cannot tell us: which GitHub repository
// receives the release, how the archive is named and which auxiliary files
// travel with the binary. Documents are checked against an embedded JSON
// schema before decoding; missing keys fall back to the stock stabping layout.
package config
