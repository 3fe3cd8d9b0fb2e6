package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/stabping-release/internal/config"
	"github.com/oshokin/stabping-release/internal/githubtest"
)

const token = "cli-token"

// ciVariables lists every variable the resolver reads.
var ciVariables = []string{
	"TRAVIS", "APPVEYOR", "GITHUB_ACTIONS",
	"IS_HOST", "TARGET", "CAN_RELEASE", "SEC_GH_API_KEY", "GITHUB_TOKEN",
	"TRAVIS_OS_NAME", "TRAVIS_BUILD_DIR", "TRAVIS_TAG",
	"APPVEYOR_BUILD_FOLDER", "APPVEYOR_REPO_TAG_NAME",
	"RUNNER_OS", "GITHUB_WORKSPACE", "GITHUB_REF_TYPE", "GITHUB_REF_NAME",
}

// prepare moves into an empty build root, clears CI variables and resets
// flag values left over from earlier runs.
func prepare(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	t.Chdir(root)

	for _, name := range ciVariables {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}

	configPath = config.DefaultConfigFilename
	envFile = ""
	skipPublish = false
	logLevel = "info"

	return root
}

// prepareRelease lays out a tagged Travis job whose settings point at a fake API.
func prepareRelease(t *testing.T) *githubtest.Server {
	t.Helper()

	root := prepare(t)

	server := githubtest.NewServer(t, config.DefaultOwner, config.DefaultRepository)
	server.Token = token

	cfg := config.Default()
	cfg.APIURL = server.APIURL()
	require.NoError(t, config.Save(config.DefaultConfigFilename, cfg))

	for _, name := range cfg.Files {
		require.NoError(t, os.WriteFile(name, []byte(name), 0o600))
	}

	binary := filepath.Join(root, "target", "x86_64-unknown-linux-gnu", "release", "stabping")
	require.NoError(t, os.MkdirAll(filepath.Dir(binary), 0o755))
	require.NoError(t, os.WriteFile(binary, []byte("binary"), 0o755))

	t.Setenv("TRAVIS", "true")
	t.Setenv("TARGET", "x86_64-unknown-linux-gnu")
	t.Setenv("TRAVIS_BUILD_DIR", root)
	t.Setenv("TRAVIS_TAG", "v1.2.3")
	t.Setenv("SEC_GH_API_KEY", token)

	return server
}

// TestRun_ExitZero covers runs that must succeed.
func TestRun_ExitZero(t *testing.T) {
	t.Run("no CI platform", func(t *testing.T) {
		prepare(t)
		require.Equal(t, 0, run([]string{}))
	})

	t.Run("untagged job", func(t *testing.T) {
		prepare(t)
		t.Setenv("TRAVIS", "true")
		t.Setenv("TARGET", "x86_64-unknown-linux-gnu")
		require.Equal(t, 0, run([]string{"--config", "missing.yaml"}))
	})

	t.Run("version", func(t *testing.T) {
		prepare(t)
		require.Equal(t, 0, run([]string{"version"}))
	})

	t.Run("published", func(t *testing.T) {
		server := prepareRelease(t)
		require.Equal(t, 0, run([]string{"-l", "debug"}))
		require.Len(t, server.Uploads(), 1)
	})

	t.Run("skip publish", func(t *testing.T) {
		server := prepareRelease(t)
		require.Equal(t, 0, run([]string{"--skip-publish"}))
		require.Empty(t, server.Calls())
		require.FileExists(t, "stabping-v1.2.3-x86_64-unknown-linux-gnu.zip")
	})
}

// TestRun_ExitNonZero covers every failure path reaching the process exit code.
func TestRun_ExitNonZero(t *testing.T) {
	t.Run("unknown log level", func(t *testing.T) {
		prepare(t)
		require.Equal(t, 1, run([]string{"--log-level", "loud"}))
	})

	t.Run("unexpected argument", func(t *testing.T) {
		prepare(t)
		require.Equal(t, 1, run([]string{"extra"}))
	})

	t.Run("missing target", func(t *testing.T) {
		prepare(t)
		t.Setenv("TRAVIS", "true")
		t.Setenv("TRAVIS_TAG", "v1.2.3")
		require.Equal(t, 1, run([]string{}))
	})

	t.Run("missing env file", func(t *testing.T) {
		prepare(t)
		require.Equal(t, 1, run([]string{"--env-file", "absent.env"}))
	})

	t.Run("upload rejected", func(t *testing.T) {
		server := prepareRelease(t)
		server.UploadStatus = 422
		require.Equal(t, 1, run([]string{}))
	})

	t.Run("binary missing", func(t *testing.T) {
		prepareRelease(t)
		require.NoError(t, os.Remove(filepath.Join("target", "x86_64-unknown-linux-gnu", "release", "stabping")))
		require.Equal(t, 1, run([]string{}))
	})
}
