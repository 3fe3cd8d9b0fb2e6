package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v32/github"
	"golang.org/x/oauth2"

	"github.com/oshokin/stabping-release/internal/config"
	"github.com/oshokin/stabping-release/internal/domain/release"
	"github.com/oshokin/stabping-release/internal/logger"
	"github.com/oshokin/stabping-release/internal/render"
	"github.com/oshokin/stabping-release/internal/service/packager"
	"github.com/oshokin/stabping-release/internal/version"
)

const (
	// zipMediaType is the content type of uploaded archives.
	zipMediaType = "application/zip"

	// listPageSize is the page size used when scanning all releases.
	listPageSize = 100
)

var (
	errNotConfigured  = errors.New("publisher needs both settings and environment")
	errNoArchive      = errors.New("archive is not set")
	errInvalidAPIURL  = errors.New("invalid api url")
	errInvalidUpload  = fmt.Errorf("%w: invalid upload_url", release.ErrBuild)
	errTagNotProvided = fmt.Errorf("%w: release tag is empty", release.ErrBuild)
)

// Result describes what Publish did.
type Result struct {
	// Release is the release the asset was attached to.
	Release *github.RepositoryRelease
	// Created reports that a draft release was created for the tag.
	Created bool
	// Asset is the uploaded release asset.
	Asset *github.ReleaseAsset
}

// Publisher talks to the GitHub Releases API of one repository.
type Publisher struct {
	// client is the authenticated GitHub API client.
	client *github.Client
	// owner and repo name the target repository.
	owner string
	repo  string
	// tag is the release tag the asset belongs to.
	tag string
	// draft holds the title and body templates for new releases.
	draft config.Draft
	// vars feeds the draft templates.
	vars render.Vars
}

// New builds a Publisher for the repository in cfg and the tag in environment.
func New(ctx context.Context, cfg *config.Config, environment *release.Environment) (*Publisher, error) {
	if cfg == nil || environment == nil {
		return nil, errNotConfigured
	}

	if strings.TrimSpace(environment.Tag) == "" {
		return nil, errTagNotProvided
	}

	baseURL, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidAPIURL, err)
	}

	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}

	if environment.Token == "" {
		logger.WarnKV(ctx, "No GitHub API credential provided, requests are unauthenticated",
			"repository", cfg.Owner+"/"+cfg.Repository)
	}

	client := github.NewClient(newHTTPClient(ctx, environment.Token, cfg))
	client.BaseURL = baseURL
	client.UserAgent = version.UserAgent()

	return &Publisher{
		client: client,
		owner:  cfg.Owner,
		repo:   cfg.Repository,
		tag:    environment.Tag,
		draft:  cfg.Draft,
		vars:   packager.Vars(cfg, environment),
	}, nil
}

// newHTTPClient returns a client sending token as a bearer credential.
func newHTTPClient(ctx context.Context, token string, cfg *config.Config) *http.Client {
	httpClient := new(http.Client)
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	httpClient.Timeout = cfg.Timeout

	return httpClient
}

// Publish finds or creates the release for the tag and uploads archive to it.
func Publish(
	ctx context.Context,
	cfg *config.Config,
	environment *release.Environment,
	archive *packager.Archive,
) (*Result, error) {
	ctx = logger.WithName(ctx, "publisher")

	p, err := New(ctx, cfg, environment)
	if err != nil {
		return nil, err
	}

	return p.Publish(ctx, archive)
}

// Publish runs the lookup, create and upload sequence for archive.
func (p *Publisher) Publish(ctx context.Context, archive *packager.Archive) (*Result, error) {
	if archive == nil {
		return nil, errNoArchive
	}

	ctx = logger.WithFields(ctx, "repository", p.owner+"/"+p.repo, "tag", p.tag)

	rel, created, err := p.ResolveRelease(ctx)
	if err != nil {
		return nil, err
	}

	asset, err := p.Upload(ctx, rel, archive)
	if err != nil {
		return nil, err
	}

	return &Result{
		Release: rel,
		Created: created,
		Asset:   asset,
	}, nil
}

// ResolveRelease returns the release for the tag, creating a draft when none exists.
// The boolean reports whether the release was created.
func (p *Publisher) ResolveRelease(ctx context.Context) (*github.RepositoryRelease, bool, error) {
	rel, err := p.lookupLatest(ctx)
	if err != nil {
		return nil, false, err
	}

	if rel != nil {
		return rel, false, nil
	}

	if rel, err = p.lookupAll(ctx); err != nil {
		return nil, false, err
	}

	if rel != nil {
		return rel, false, nil
	}

	if rel, err = p.createDraft(ctx); err != nil {
		return nil, false, err
	}

	return rel, true, nil
}

// lookupLatest checks the latest release. A 404 means nothing was published yet.
func (p *Publisher) lookupLatest(ctx context.Context) (*github.RepositoryRelease, error) {
	logger.Info(ctx, "Checking for existing GitHub Release in latest")

	latest, resp, err := p.client.Repositories.GetLatestRelease(ctx, p.owner, p.repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			logger.Debug(ctx, "No latest release found")
			return nil, nil
		}

		return nil, apiError(resp, err)
	}

	if latest.GetTagName() != p.tag {
		logger.DebugKV(ctx, "Latest release belongs to another tag", "latest", latest.GetTagName())
		return nil, nil
	}

	logger.InfoKV(ctx, "Found existing GitHub Release", "id", latest.GetID())

	return latest, nil
}

// lookupAll scans every page of releases, drafts included, for the tag.
func (p *Publisher) lookupAll(ctx context.Context) (*github.RepositoryRelease, error) {
	logger.Info(ctx, "Checking for existing GitHub Release across all releases")

	options := &github.ListOptions{PerPage: listPageSize}

	for {
		releases, resp, err := p.client.Repositories.ListReleases(ctx, p.owner, p.repo, options)
		if err != nil {
			return nil, apiError(resp, err)
		}

		for _, rel := range releases {
			if rel.GetTagName() == p.tag {
				logger.InfoKV(ctx, "Found existing GitHub Release", "id", rel.GetID(), "draft", rel.GetDraft())
				return rel, nil
			}
		}

		if resp.NextPage == 0 {
			return nil, nil
		}

		options.Page = resp.NextPage
	}
}

// createDraft creates a draft release for the tag.
func (p *Publisher) createDraft(ctx context.Context) (*github.RepositoryRelease, error) {
	logger.Info(ctx, "Existing GitHub Release not found, creating a new one")

	name, err := render.String("draft.name", p.draft.Name, p.vars)
	if err != nil {
		return nil, err
	}

	body, err := render.String("draft.body", p.draft.Body, p.vars)
	if err != nil {
		return nil, err
	}

	request := &github.RepositoryRelease{
		TagName: github.String(p.tag),
		Name:    github.String(name),
		Body:    github.String(body),
		Draft:   github.Bool(true),
	}

	created, resp, err := p.client.Repositories.CreateRelease(ctx, p.owner, p.repo, request)
	if err != nil {
		return nil, apiError(resp, err)
	}

	logger.InfoKV(ctx, "Created draft GitHub Release", "id", created.GetID())

	return created, nil
}

// Upload posts the archive bytes to the upload_url of rel.
func (p *Publisher) Upload(
	ctx context.Context,
	rel *github.RepositoryRelease,
	archive *packager.Archive,
) (*github.ReleaseAsset, error) {
	logger.Info(ctx, "Building asset upload url")

	endpoint, err := UploadEndpoint(rel, archive.Name)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Reading data for file to upload")

	file, err := os.Open(filepath.Clean(archive.Path))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	req, err := p.client.NewUploadRequest(endpoint, file, info.Size(), zipMediaType)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}

	logger.InfoKV(ctx, "Uploading release asset", "asset", archive.Name, "size", info.Size())

	asset := new(github.ReleaseAsset)

	resp, err := p.client.Do(ctx, req, asset)
	if err != nil && resp != nil && resp.StatusCode == http.StatusCreated {
		// The asset is stored; only its description could not be decoded.
		logger.WarnKV(ctx, "Upload accepted but the asset description is unreadable", "error", err)

		err = nil

		if asset.Name == nil {
			asset.Name = github.String(archive.Name)
		}
	}

	if err != nil {
		// The server answered, so this is not a transport failure.
		if resp != nil && resp.Response != nil {
			return nil, fmt.Errorf("%w: GitHub API responded: %s: %w", release.ErrUploadRejected, statusLine(resp), err)
		}

		return nil, fmt.Errorf("%w: %s: %w", release.ErrUploadTransport, DescribeTransportError(err), err)
	}

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: GitHub API responded: %s", release.ErrUploadRejected, statusLine(resp))
	}

	logger.InfoKV(ctx, "Release asset upload successful", "asset", asset.GetName(), "id", asset.GetID())

	return asset, nil
}

// UploadEndpoint strips the URI template off the upload_url of rel and adds the asset name.
func UploadEndpoint(rel *github.RepositoryRelease, assetName string) (string, error) {
	raw := rel.GetUploadURL()
	if raw == "" {
		return "", release.ErrMissingUploadURL
	}

	// upload_url ends with an RFC 6570 template such as "{?name,label}".
	if i := strings.LastIndex(raw, "{"); i >= 0 {
		raw = raw[:i]
	}

	endpoint, err := url.Parse(raw)
	if err != nil || !endpoint.IsAbs() {
		return "", fmt.Errorf("%w: %q", errInvalidUpload, raw)
	}

	query := endpoint.Query()
	query.Set("name", assetName)
	endpoint.RawQuery = query.Encode()

	return endpoint.String(), nil
}

// apiError maps a failed lookup or create call to the workflow error kind.
func apiError(resp *github.Response, err error) error {
	if hasStatus(resp) {
		return fmt.Errorf("%w: %s: %w", release.ErrUnexpectedStatus, statusLine(resp), err)
	}

	return fmt.Errorf("%w: %s: %w", release.ErrAPIRequest, DescribeTransportError(err), err)
}

// hasStatus reports whether the server answered with a non-2xx status.
func hasStatus(resp *github.Response) bool {
	return resp != nil && resp.Response != nil &&
		(resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices)
}

func statusLine(resp *github.Response) string {
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
