package ciplatform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/stabping-release/internal/domain/release"
)

func boolPtr(v bool) *bool {
	return &v
}

// TestResolve_CompleteEnvironments resolves a full variable set for every platform.
func TestResolve_CompleteEnvironments(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  Map
		want *release.Environment
	}{
		{
			name: "travis",
			src: Map{
				"TRAVIS":           "true",
				"IS_HOST":          "true",
				"TARGET":           "x86_64-unknown-linux-gnu",
				"TRAVIS_OS_NAME":   "linux",
				"TRAVIS_BUILD_DIR": "/home/travis/build/icasdri/stabping",
				"TRAVIS_TAG":       "v1.2.3",
				"CAN_RELEASE":      "true",
				"SEC_GH_API_KEY":   "secret",
			},
			want: &release.Environment{
				Platform:   release.PlatformTravis,
				IsHost:     true,
				Target:     "x86_64-unknown-linux-gnu",
				OS:         release.OSLinux,
				RootDir:    "/home/travis/build/icasdri/stabping",
				IsRelease:  true,
				Tag:        "v1.2.3",
				CanRelease: boolPtr(true),
				Token:      "secret",
			},
		},
		{
			name: "travis-osx",
			src: Map{
				"TRAVIS":           "true",
				"TARGET":           "x86_64-apple-darwin",
				"TRAVIS_OS_NAME":   "osx",
				"TRAVIS_BUILD_DIR": "/Users/travis/build",
				"TRAVIS_TAG":       "v0.9.0",
				"SEC_GH_API_KEY":   "secret",
			},
			want: &release.Environment{
				Platform:  release.PlatformTravis,
				Target:    "x86_64-apple-darwin",
				OS:        release.OSMac,
				RootDir:   "/Users/travis/build",
				IsRelease: true,
				Tag:       "v0.9.0",
				Token:     "secret",
			},
		},
		{
			name: "appveyor",
			src: Map{
				"APPVEYOR":               "True",
				"TARGET":                 "x86_64-pc-windows-msvc",
				"APPVEYOR_BUILD_FOLDER":  `C:\projects\stabping`,
				"APPVEYOR_REPO_TAG_NAME": "v1.2.3",
				"CAN_RELEASE":            "false",
				"SEC_GH_API_KEY":         "secret",
			},
			want: &release.Environment{
				Platform:   release.PlatformAppVeyor,
				IsHost:     true,
				Target:     "x86_64-pc-windows-msvc",
				OS:         release.OSWindows,
				RootDir:    `C:\projects\stabping`,
				IsRelease:  true,
				Tag:        "v1.2.3",
				CanRelease: boolPtr(false),
				Token:      "secret",
			},
		},
		{
			name: "github",
			src: Map{
				"GITHUB_ACTIONS":   "true",
				"TARGET":           "aarch64-apple-darwin",
				"RUNNER_OS":        "macOS",
				"GITHUB_WORKSPACE": "/Users/runner/work/stabping",
				"GITHUB_REF_TYPE":  "tag",
				"GITHUB_REF_NAME":  "v2.0.0",
				"GITHUB_TOKEN":     "action-token",
			},
			want: &release.Environment{
				Platform:  release.PlatformGitHub,
				Target:    "aarch64-apple-darwin",
				OS:        release.OSMac,
				RootDir:   "/Users/runner/work/stabping",
				IsRelease: true,
				Tag:       "v2.0.0",
				Token:     "action-token",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(tc.src)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

// TestResolve_ReleaseFlag sets IsRelease only for a present, non-blank tag.
func TestResolve_ReleaseFlag(t *testing.T) {
	t.Parallel()

	base := func() Map {
		return Map{
			"TRAVIS":           "true",
			"TARGET":           "x86_64-unknown-linux-gnu",
			"TRAVIS_BUILD_DIR": "/build",
		}
	}

	for name, tc := range map[string]struct {
		tag     *string
		release bool
	}{
		"absent": {tag: nil, release: false},
		"empty":  {tag: new(string), release: false},
		"blank":  {tag: strPtr("  \t"), release: false},
		"tagged": {tag: strPtr("v1.0.0"), release: true},
	} {
		src := base()
		if tc.tag != nil {
			src["TRAVIS_TAG"] = *tc.tag
		}

		got, err := Resolve(src)
		require.NoError(t, err, name)
		require.Equal(t, tc.release, got.IsRelease, name)
	}

	// GitHub only treats tag refs as releases.
	got, err := Resolve(Map{
		"GITHUB_ACTIONS":   "true",
		"TARGET":           "x86_64-unknown-linux-gnu",
		"GITHUB_WORKSPACE": "/build",
		"GITHUB_REF_TYPE":  "branch",
		"GITHUB_REF_NAME":  "main",
	})
	require.NoError(t, err)
	require.False(t, got.IsRelease)
	require.Empty(t, got.Tag)
}

func strPtr(s string) *string {
	return &s
}

// TestResolve_MissingTarget fails on every platform when TARGET is absent or blank.
func TestResolve_MissingTarget(t *testing.T) {
	t.Parallel()

	for _, src := range []Map{
		{"TRAVIS": "true", "TRAVIS_TAG": "v1.0.0"},
		{"TRAVIS": "true", "TARGET": " ", "TRAVIS_TAG": "v1.0.0"},
		{"APPVEYOR": "True", "APPVEYOR_REPO_TAG_NAME": "v1.0.0"},
		{"GITHUB_ACTIONS": "true", "GITHUB_REF_TYPE": "tag", "GITHUB_REF_NAME": "v1.0.0"},
	} {
		got, err := Resolve(src)
		require.ErrorIs(t, err, release.ErrTargetNotSpecified)
		require.ErrorIs(t, err, release.ErrBuild)
		require.Nil(t, got)
	}
}

// TestResolve_UnsupportedOS rejects OS names outside the known families.
func TestResolve_UnsupportedOS(t *testing.T) {
	t.Parallel()

	_, err := Resolve(Map{
		"TRAVIS":         "true",
		"TARGET":         "x86_64-unknown-freebsd",
		"TRAVIS_OS_NAME": "freebsd",
	})
	require.ErrorIs(t, err, release.ErrUnsupportedOS)
}

// TestResolve_NoPlatform describes a non-release build without failing.
func TestResolve_NoPlatform(t *testing.T) {
	t.Parallel()

	got, err := Resolve(Map{"TARGET": "x86_64-unknown-linux-gnu", "TRAVIS_TAG": "v1.0.0"})
	require.NoError(t, err)
	require.Equal(t, release.PlatformNone, got.Platform)
	require.False(t, got.IsRelease)
}

// TestResolve_DefaultsTravisOSAndRoot falls back to linux and the working directory.
func TestResolve_DefaultsTravisOSAndRoot(t *testing.T) {
	t.Parallel()

	got, err := Resolve(Map{"TRAVIS": "true", "TARGET": "x86_64-unknown-linux-gnu"})
	require.NoError(t, err)
	require.Equal(t, release.OSLinux, got.OS)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, wd, got.RootDir)
}

// TestDetect_Precedence prefers Travis, then AppVeyor, then GitHub Actions.
func TestDetect_Precedence(t *testing.T) {
	t.Parallel()

	require.Equal(t, release.PlatformTravis, Detect(Map{"TRAVIS": "", "APPVEYOR": "True"}))
	require.Equal(t, release.PlatformAppVeyor, Detect(Map{"APPVEYOR": "True", "GITHUB_ACTIONS": "true"}))
	require.Equal(t, release.PlatformGitHub, Detect(Map{"GITHUB_ACTIONS": "true"}))
	require.Equal(t, release.PlatformNone, Detect(Map{}))
}

// TestWithEnvFile layers a dotenv file beneath the primary source.
func TestWithEnvFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ci.env")
	contents := "TRAVIS=true\nTARGET=x86_64-unknown-linux-gnu\nTRAVIS_TAG=v1.0.0\nTRAVIS_BUILD_DIR=/from/file\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	src, err := WithEnvFile(Map{"TRAVIS_TAG": "v2.0.0"}, path)
	require.NoError(t, err)

	got, err := Resolve(src)
	require.NoError(t, err)
	require.Equal(t, "v2.0.0", got.Tag)
	require.Equal(t, "/from/file", got.RootDir)

	_, err = WithEnvFile(Map{}, filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

// TestParseFlag accepts boolean spellings and treats other text as set.
func TestParseFlag(t *testing.T) {
	t.Parallel()

	require.False(t, parseFlag(""))
	require.False(t, parseFlag("false"))
	require.False(t, parseFlag("0"))
	require.True(t, parseFlag("TRUE"))
	require.True(t, parseFlag("yes"))
	require.Nil(t, parseOptionalFlag(" "))
	require.Equal(t, boolPtr(false), parseOptionalFlag("False"))
}
