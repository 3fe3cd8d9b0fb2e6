// Package ciplatform turns the variables of the CI service that started the
// process into a release.Environment.
//
// Travis CI, AppVeyor and GitHub Actions are recognised by their marker
// variables. Each service spells the same facts differently, so every one of
// them gets its own struct decoded with go-simpler.org/env and then mapped
// onto the shared record.
package ciplatform
