package release

import "strings"

// Platform identifies the CI service that started the process.
type Platform string

// Supported CI platforms.
const (
	PlatformNone     Platform = ""
	PlatformTravis   Platform = "travis"
	PlatformAppVeyor Platform = "appveyor"
	PlatformGitHub   Platform = "github"
)

// OSKind is the operating system family the binary was built for.
type OSKind string

// Known OS kinds.
const (
	OSLinux   OSKind = "linux"
	OSMac     OSKind = "osx"
	OSWindows OSKind = "windows"
)

// ParseOSKind maps CI spellings of an OS name to an OSKind.
func ParseOSKind(s string) (OSKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linux":
		return OSLinux, true
	case "osx", "macos", "darwin", "mac":
		return OSMac, true
	case "windows", "win":
		return OSWindows, true
	default:
		return "", false
	}
}

// ExecutableSuffix returns the file extension binaries carry on this OS.
func (k OSKind) ExecutableSuffix() string {
	if k == OSWindows {
		return ".exe"
	}

	return ""
}

// Environment is the normalized view of the CI variables.
// It is built once at startup and treated as read-only afterwards.
type Environment struct {
	// Platform is the detected CI service.
	Platform Platform
	// IsHost reports a native build, as opposed to a cross build.
	IsHost bool
	// Target is the target triplet the binary was compiled for.
	Target string
	// OS is the operating system family of the target.
	OS OSKind
	// RootDir is the project directory of the build.
	RootDir string
	// IsRelease is true only when a non-blank tag was provided.
	IsRelease bool
	// Tag is the release tag, used as the release version.
	Tag string
	// CanRelease carries the CAN_RELEASE permission flag; nil means unset.
	CanRelease *bool
	// Token is the GitHub API credential.
	Token string
}

// ReleaseAllowed reports whether this job may publish. An unset flag allows it.
func (e *Environment) ReleaseAllowed() bool {
	return e.CanRelease == nil || *e.CanRelease
}
