// Package release runs the release workflow of a CI job: it resolves the CI
// environment, consolidates the build artifacts into a zip and publishes the
// zip to the GitHub Release of the tag. Non-release jobs end successfully
// without doing anything.
package release
