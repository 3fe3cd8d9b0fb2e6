package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

// TestValidate checks defaults and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty settings get the stock layout.
	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultProject, cfg.Project)
	require.Equal(t, DefaultOwner, cfg.Owner)
	require.Equal(t, DefaultRepository, cfg.Repository)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultFiles(), cfg.Files)
	require.Equal(t, DefaultDraftName, cfg.Draft.Name)

	// Trailing slash is added to the api url.
	cfg = &Config{APIURL: "https://github.example.com/api/v3"}
	require.NoError(t, Validate(cfg))
	require.Equal(t, "https://github.example.com/api/v3/", cfg.APIURL)

	// Bad api url.
	require.Error(t, Validate(&Config{APIURL: "not a url"}))

	// Blank file entry.
	require.ErrorIs(t, Validate(&Config{Files: []string{"README.md", " "}}), errEmptyFileEntry)

	// Two files with the same base name would collide inside the zip.
	require.ErrorIs(t, Validate(&Config{Files: []string{"a/README.md", "b/README.md"}}), errDuplicateEntry)

	// A file named like the binary collides too.
	require.ErrorIs(t, Validate(&Config{Files: []string{"dist/stabping"}}), errDuplicateEntry)

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := &Config{
		Project:    "pinger",
		Owner:      "octocat",
		Repository: "pinger",
		Timeout:    30 * time.Second,
		Files:      []string{"README.md"},
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoad_PartialDocument keeps defaults for keys the document omits.
func TestLoad_PartialDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	doc := "owner: octocat\ntimeout: 45s\ndraft:\n  name: Nightly\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "octocat", cfg.Owner)
	require.Equal(t, DefaultRepository, cfg.Repository)
	require.Equal(t, 45*time.Second, cfg.Timeout)
	require.Equal(t, "Nightly", cfg.Draft.Name)
	require.Equal(t, DefaultDraftBody, cfg.Draft.Body)
}

// TestLoad_RejectsSchemaViolations covers unknown keys and wrong types.
func TestLoad_RejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for name, doc := range map[string]string{
		"unknown-key":   "ownr: octocat\n",
		"files-type":    "files: README.md\n",
		"bad-timeout":   "timeout: soon\n",
		"bad-api-url":   "api_url: ftp://example.com\n",
		"bad-project":   "project: \"with space\"\n",
		"draft-unknown": "draft:\n  title: x\n",
	} {
		path := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		_, err := Load(path)
		require.Error(t, err, name)
	}
}

// TestLoad_NumericTimeout reports a bare number as a schema violation, not a decode failure.
func TestLoad_NumericTimeout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 30\n"), 0o600))

	_, err := Load(path)

	var validationErr *jsonschema.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.NotContains(t, err.Error(), "unmarshal")
}

// TestLoad_MissingFile distinguishes the default path from an explicit one.
func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

// TestLoad_EmptyFile treats an empty document as all defaults.
func TestLoad_EmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

// TestValidate_Templates rejects settings whose templates do not parse.
func TestValidate_Templates(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(&Config{ArchiveName: "{{ .Tag "}))
	require.Error(t, Validate(&Config{Draft: Draft{Body: "{{ end }}"}}))
}
