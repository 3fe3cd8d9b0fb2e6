package ciplatform

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go-simpler.org/env"

	"github.com/oshokin/stabping-release/internal/domain/release"
)

// Marker variables set by each CI service.
const (
	travisMarker   = "TRAVIS"
	appVeyorMarker = "APPVEYOR"
	githubMarker   = "GITHUB_ACTIONS"
)

type travisVars struct {
	IsHost     string `env:"IS_HOST"`
	Target     string `env:"TARGET"`
	OSName     string `env:"TRAVIS_OS_NAME" default:"linux"`
	BuildDir   string `env:"TRAVIS_BUILD_DIR"`
	Tag        string `env:"TRAVIS_TAG"`
	CanRelease string `env:"CAN_RELEASE"`
	Token      string `env:"SEC_GH_API_KEY"`
}

type appVeyorVars struct {
	Target      string `env:"TARGET"`
	BuildFolder string `env:"APPVEYOR_BUILD_FOLDER"`
	Tag         string `env:"APPVEYOR_REPO_TAG_NAME"`
	CanRelease  string `env:"CAN_RELEASE"`
	Token       string `env:"SEC_GH_API_KEY"`
}

type githubVars struct {
	IsHost      string `env:"IS_HOST"`
	Target      string `env:"TARGET"`
	RunnerOS    string `env:"RUNNER_OS" default:"Linux"`
	Workspace   string `env:"GITHUB_WORKSPACE"`
	RefType     string `env:"GITHUB_REF_TYPE"`
	RefName     string `env:"GITHUB_REF_NAME"`
	CanRelease  string `env:"CAN_RELEASE"`
	Token       string `env:"SEC_GH_API_KEY"`
	ActionToken string `env:"GITHUB_TOKEN"`
}

// Detect reports which CI service started the process.
func Detect(src Source) release.Platform {
	switch {
	case isSet(src, travisMarker):
		return release.PlatformTravis
	case isSet(src, appVeyorMarker):
		return release.PlatformAppVeyor
	case isSet(src, githubMarker):
		return release.PlatformGitHub
	default:
		return release.PlatformNone
	}
}

// Resolve builds the environment record from src. It reads variables only.
// Without a recognised CI service the record describes a non-release build.
func Resolve(src Source) (*release.Environment, error) {
	var (
		environment *release.Environment
		err         error
	)

	switch Detect(src) {
	case release.PlatformTravis:
		environment, err = resolveTravis(src)
	case release.PlatformAppVeyor:
		environment, err = resolveAppVeyor(src)
	case release.PlatformGitHub:
		environment, err = resolveGitHub(src)
	default:
		return &release.Environment{Platform: release.PlatformNone}, nil
	}

	if err != nil {
		return nil, err
	}

	if environment.RootDir == "" {
		if environment.RootDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("detect root directory: %w", err)
		}
	}

	return environment, nil
}

func resolveTravis(src Source) (*release.Environment, error) {
	var vars travisVars
	if err := load(src, &vars); err != nil {
		return nil, err
	}

	if err := requireTarget(vars.Target); err != nil {
		return nil, err
	}

	osKind, err := parseOS(orDefault(vars.OSName, "linux"))
	if err != nil {
		return nil, err
	}

	environment := &release.Environment{
		Platform:   release.PlatformTravis,
		IsHost:     parseFlag(vars.IsHost),
		Target:     strings.TrimSpace(vars.Target),
		OS:         osKind,
		RootDir:    vars.BuildDir,
		CanRelease: parseOptionalFlag(vars.CanRelease),
		Token:      vars.Token,
	}
	setTag(environment, vars.Tag)

	return environment, nil
}

func resolveAppVeyor(src Source) (*release.Environment, error) {
	var vars appVeyorVars
	if err := load(src, &vars); err != nil {
		return nil, err
	}

	if err := requireTarget(vars.Target); err != nil {
		return nil, err
	}

	environment := &release.Environment{
		Platform:   release.PlatformAppVeyor,
		IsHost:     true,
		Target:     strings.TrimSpace(vars.Target),
		OS:         release.OSWindows,
		RootDir:    vars.BuildFolder,
		CanRelease: parseOptionalFlag(vars.CanRelease),
		Token:      vars.Token,
	}
	setTag(environment, vars.Tag)

	return environment, nil
}

func resolveGitHub(src Source) (*release.Environment, error) {
	var vars githubVars
	if err := load(src, &vars); err != nil {
		return nil, err
	}

	if err := requireTarget(vars.Target); err != nil {
		return nil, err
	}

	osKind, err := parseOS(orDefault(vars.RunnerOS, "Linux"))
	if err != nil {
		return nil, err
	}

	token := vars.Token
	if token == "" {
		token = vars.ActionToken
	}

	environment := &release.Environment{
		Platform:   release.PlatformGitHub,
		IsHost:     parseFlag(vars.IsHost),
		Target:     strings.TrimSpace(vars.Target),
		OS:         osKind,
		RootDir:    vars.Workspace,
		CanRelease: parseOptionalFlag(vars.CanRelease),
		Token:      token,
	}

	if vars.RefType == "tag" {
		setTag(environment, vars.RefName)
	}

	return environment, nil
}

func load(src Source, dst any) error {
	if err := env.Load(dst, &env.Options{Source: src}); err != nil {
		return fmt.Errorf("read ci variables: %w", err)
	}

	return nil
}

func requireTarget(target string) error {
	if strings.TrimSpace(target) == "" {
		return release.ErrTargetNotSpecified
	}

	return nil
}

func parseOS(name string) (release.OSKind, error) {
	osKind, ok := release.ParseOSKind(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", release.ErrUnsupportedOS, name)
	}

	return osKind, nil
}

// setTag records the tag; only a non-blank tag makes a release build.
func setTag(environment *release.Environment, tag string) {
	environment.Tag = strings.TrimSpace(tag)
	environment.IsRelease = environment.Tag != ""
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func isSet(src Source, key string) bool {
	_, ok := src.LookupEnv(key)

	return ok
}

// parseFlag accepts strconv.ParseBool spellings; any other non-blank value counts as set.
func parseFlag(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	if parsed, err := strconv.ParseBool(value); err == nil {
		return parsed
	}

	return true
}

func parseOptionalFlag(value string) *bool {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	parsed := parseFlag(value)

	return &parsed
}
