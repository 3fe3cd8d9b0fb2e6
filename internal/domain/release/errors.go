package release

import (
	"errors"
	"fmt"
)

// ErrBuild is the single error kind of the release workflow.
// Every failure reported by a stage matches it with errors.Is.
var ErrBuild = errors.New("release build error")

// Failure causes. Each one wraps ErrBuild.
var (
	ErrTargetNotSpecified    = fmt.Errorf("%w: TARGET not specified", ErrBuild)
	ErrUnsupportedOS         = fmt.Errorf("%w: unsupported OS name", ErrBuild)
	ErrBinaryNotFound        = fmt.Errorf("%w: failed to find binary", ErrBuild)
	ErrAuxiliaryFileNotFound = fmt.Errorf("%w: failed to find auxiliary file", ErrBuild)
	ErrAPIRequest            = fmt.Errorf("%w: GitHub API request failed", ErrBuild)
	ErrUnexpectedStatus      = fmt.Errorf("%w: unexpected HTTP response from GitHub API", ErrBuild)
	ErrMissingUploadURL      = fmt.Errorf("%w: unexpected JSON response from GitHub API: no upload_url in returned object", ErrBuild)
	ErrUploadTransport       = fmt.Errorf("%w: failed to upload release asset", ErrBuild)
	ErrUploadRejected        = fmt.Errorf("%w: release asset upload was not accepted", ErrBuild)
)
