// Package release holds the domain types shared by every stage of the release
// workflow: the resolved CI environment record and the single error kind that
// all stages report failures with.
package release
