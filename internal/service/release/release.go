package release

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/oshokin/stabping-release/internal/ciplatform"
	"github.com/oshokin/stabping-release/internal/config"
	domain "github.com/oshokin/stabping-release/internal/domain/release"
	"github.com/oshokin/stabping-release/internal/logger"
	"github.com/oshokin/stabping-release/internal/service/packager"
	"github.com/oshokin/stabping-release/internal/service/publisher"
)

// Options contains inputs for the release entry point.
type Options struct {
	// ConfigPath is an optional path to the settings file (defaults to stabping-release.yaml).
	ConfigPath string
	// EnvFile is an optional dotenv file layered beneath the process environment.
	EnvFile string
	// SkipPublish stops after the archive is written.
	SkipPublish bool
	// Source overrides the process environment. Nil means the process environment.
	Source ciplatform.Source
}

// Outcome reports what a run did.
type Outcome struct {
	// Environment is the resolved CI environment.
	Environment *domain.Environment
	// Archive is the consolidated zip, nil when the job was skipped.
	Archive *packager.Archive
	// Published is the publisher result, nil unless the archive was uploaded.
	Published *publisher.Result
}

// Skipped reports whether the job ended without building an archive.
func (o *Outcome) Skipped() bool {
	return o.Archive == nil
}

// runner drives the stages of one job. It is unexported; callers use Run.
type runner struct {
	configPath  string
	environment *domain.Environment
	skipPublish bool
}

// Run executes the release workflow.
func Run(ctx context.Context, opts *Options) error {
	_, err := Execute(ctx, opts)

	return err
}

// Execute executes the release workflow and reports what it did.
// Settings are only read for jobs that actually release.
func Execute(ctx context.Context, opts *Options) (*Outcome, error) {
	ctx = logger.WithName(ctx, "stabping-release")

	if opts == nil {
		opts = new(Options)
	}

	environment, err := resolveEnvironment(opts)
	if err != nil {
		return nil, err
	}

	r := &runner{
		configPath:  opts.ConfigPath,
		environment: environment,
		skipPublish: opts.SkipPublish,
	}

	return r.Run(ctx)
}

// resolveEnvironment reads the CI variables, layering the env file if any.
func resolveEnvironment(opts *Options) (*domain.Environment, error) {
	src := opts.Source
	if src == nil {
		src = ciplatform.OSSource()
	}

	if opts.EnvFile != "" {
		var err error
		if src, err = ciplatform.WithEnvFile(src, opts.EnvFile); err != nil {
			return nil, err
		}
	}

	return ciplatform.Resolve(src)
}

// Run consolidates and publishes when the environment describes a release job.
func (r *runner) Run(ctx context.Context) (*Outcome, error) {
	outcome := &Outcome{Environment: r.environment}

	ctx = logger.WithKV(ctx, "platform", r.environment.Platform)

	if !r.environment.IsRelease {
		logger.Info(ctx, "Not a release build, skipping release.")
		return outcome, nil
	}

	ctx = logger.WithFields(ctx, "tag", r.environment.Tag, "target", r.environment.Target)

	if !r.environment.ReleaseAllowed() {
		logger.Info(ctx, "CAN_RELEASE is false for this job, deliberately skipping release.")
		return outcome, nil
	}

	cfg, err := config.Load(r.configPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	archive, err := packager.Consolidate(ctx, cfg, r.environment)
	if err != nil {
		return nil, fmt.Errorf("consolidate artifacts: %w", err)
	}

	outcome.Archive = archive

	logger.InfoKV(ctx, "Archive ready",
		"path", archive.Path,
		"size", archive.Size,
		"sha512", hex.EncodeToString(archive.Checksum),
	)

	if r.skipPublish {
		logger.Info(ctx, "Publishing skipped on request")
		return outcome, nil
	}

	published, err := publisher.Publish(ctx, cfg, r.environment, archive)
	if err != nil {
		return nil, fmt.Errorf("publish release: %w", err)
	}

	outcome.Published = published

	logger.InfoKV(ctx, "Release completed successfully",
		"release", published.Release.GetHTMLURL(),
		"asset", published.Asset.GetName(),
	)

	return outcome, nil
}
