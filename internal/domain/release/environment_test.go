package release

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseOSKind covers the spellings used by the supported CI services.
func TestParseOSKind(t *testing.T) {
	t.Parallel()

	cases := map[string]OSKind{
		"linux":   OSLinux,
		"osx":     OSMac,
		"macOS":   OSMac,
		"Windows": OSWindows,
	}
	for in, want := range cases {
		got, ok := ParseOSKind(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}

	_, ok := ParseOSKind("plan9")
	require.False(t, ok)
}

// TestExecutableSuffix checks that only windows binaries get an extension.
func TestExecutableSuffix(t *testing.T) {
	t.Parallel()

	require.Equal(t, ".exe", OSWindows.ExecutableSuffix())
	require.Empty(t, OSLinux.ExecutableSuffix())
	require.Empty(t, OSMac.ExecutableSuffix())
}

// TestReleaseAllowed treats an unset permission flag as allowed.
func TestReleaseAllowed(t *testing.T) {
	t.Parallel()

	yes, no := true, false

	require.True(t, (&Environment{}).ReleaseAllowed())
	require.True(t, (&Environment{CanRelease: &yes}).ReleaseAllowed())
	require.False(t, (&Environment{CanRelease: &no}).ReleaseAllowed())
}

// TestErrorsShareKind ensures every failure cause matches ErrBuild.
func TestErrorsShareKind(t *testing.T) {
	t.Parallel()

	for _, err := range []error{
		ErrTargetNotSpecified,
		ErrUnsupportedOS,
		ErrBinaryNotFound,
		ErrAuxiliaryFileNotFound,
		ErrAPIRequest,
		ErrUnexpectedStatus,
		ErrMissingUploadURL,
		ErrUploadTransport,
		ErrUploadRejected,
	} {
		require.True(t, errors.Is(err, ErrBuild), err.Error())
	}
}
