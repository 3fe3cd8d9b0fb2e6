// Package integration holds end-to-end tests of the release workflow. They
// drive the workflow through the process environment and working directory
// against an in-process fake of the GitHub Releases API.
package integration
