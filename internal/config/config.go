package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/stabping-release/internal/render"
)

// Config holds project-level release settings.
// Zero values are replaced by the defaults in Validate.
type Config struct {
	// Project is the binary name and the archive prefix.
	Project string `yaml:"project"`
	// Owner is the GitHub account owning the repository.
	Owner string `yaml:"owner"`
	// Repository is the GitHub repository receiving the release.
	Repository string `yaml:"repository"`
	// APIURL is the base URL of the GitHub REST API.
	APIURL string `yaml:"api_url"`
	// Timeout bounds every HTTP request made to the API.
	Timeout time.Duration `yaml:"timeout"`
	// ArchiveName is a text/template rendering the zip filename.
	ArchiveName string `yaml:"archive_name"`
	// Files lists the auxiliary files bundled next to the binary,
	// relative to the build root directory.
	Files []string `yaml:"files"`
	// Draft describes the placeholder release created for a new tag.
	Draft Draft `yaml:"draft"`
}

// Draft holds the texts of a draft release. Both are templates.
type Draft struct {
	// Name is the release title.
	Name string `yaml:"name"`
	// Body is the release description.
	Body string `yaml:"body"`
}

const (
	// DefaultConfigFilename is the settings file looked up when no path is given.
	DefaultConfigFilename = "stabping-release.yaml"

	// DefaultProject is the binary name of the released project.
	DefaultProject = "stabping"
	// DefaultOwner owns the GitHub repository.
	DefaultOwner = "icasdri"
	// DefaultRepository is the GitHub repository name.
	DefaultRepository = "stabping"
	// DefaultAPIURL is the public GitHub REST API.
	DefaultAPIURL = "https://api.github.com/"
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 2 * time.Minute
	// DefaultArchiveName reproduces "<project>-<tag>-<target>.zip".
	DefaultArchiveName = "{{ .Project }}-{{ .Tag }}-{{ .Target }}.zip"
	// DefaultDraftName is the title of a freshly created release.
	DefaultDraftName = "Pending Release"
	// DefaultDraftBody is the description of a freshly created release.
	DefaultDraftBody = "Please wait while release builds finish and artifacts are uploaded. " +
		"This release will be available soon."

	// DefaultFilePermissions is the permission used when saving settings.
	DefaultFilePermissions = 0o600
)

// DefaultFiles returns the auxiliary files bundled with every archive.
func DefaultFiles() []string {
	return []string{"stabping_config.json", "README.md", "COPYING", "LICENSE"}
}

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errEmptyFileEntry is returned when an auxiliary file entry is blank.
	errEmptyFileEntry = errors.New("auxiliary file entry is empty")
	// errDuplicateEntry is returned when two bundled files share a base name.
	errDuplicateEntry = errors.New("duplicate archive entry")
)

// Default returns settings reproducing the stock stabping release layout.
func Default() *Config {
	cfg := new(Config)

	// Validate only fills defaults here and cannot fail.
	_ = Validate(cfg)

	return cfg
}

// Load reads settings from path. A missing default settings file yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config

	if len(bytes.TrimSpace(contents)) > 0 {
		if err = validateDocument(contents); err != nil {
			return nil, err
		}

		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings for formatting problems.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	setDefaults(cfg)

	if _, err := url.ParseRequestURI(cfg.APIURL); err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}

	if !strings.HasSuffix(cfg.APIURL, "/") {
		cfg.APIURL += "/"
	}

	templates := map[string]string{
		"archive_name": cfg.ArchiveName,
		"draft.name":   cfg.Draft.Name,
		"draft.body":   cfg.Draft.Body,
	}
	for name, text := range templates {
		if _, err := render.Parse(name, text); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(cfg.Files)+1)
	seen[cfg.Project] = struct{}{}

	for _, name := range cfg.Files {
		if strings.TrimSpace(name) == "" {
			return errEmptyFileEntry
		}

		base := filepath.Base(name)
		if _, found := seen[base]; found {
			return fmt.Errorf("%s: %w", base, errDuplicateEntry)
		}

		seen[base] = struct{}{}
	}

	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Project == "" {
		cfg.Project = DefaultProject
	}

	if cfg.Owner == "" {
		cfg.Owner = DefaultOwner
	}

	if cfg.Repository == "" {
		cfg.Repository = DefaultRepository
	}

	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.ArchiveName == "" {
		cfg.ArchiveName = DefaultArchiveName
	}

	if cfg.Files == nil {
		cfg.Files = DefaultFiles()
	}

	if cfg.Draft.Name == "" {
		cfg.Draft.Name = DefaultDraftName
	}

	if cfg.Draft.Body == "" {
		cfg.Draft.Body = DefaultDraftBody
	}
}
