package packager

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/stabping-release/internal/config"
	"github.com/oshokin/stabping-release/internal/domain/release"
	"github.com/oshokin/stabping-release/internal/logger"
	"github.com/oshokin/stabping-release/internal/render"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// ArchiveFileMode is the permission of the produced zip.
	ArchiveFileMode os.FileMode = 0o644

	// DefaultChecksumFunction is used to verify the written archive.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512
)

// nameReplacer flattens path separators in rendered archive names.
var nameReplacer = strings.NewReplacer("/", "-", "\\", "-")

var (
	errHashUnavailable = errors.New("hash function unavailable")
	errNotConfigured   = errors.New("packager needs both settings and environment")
)

// Archive describes the zip produced for a release job.
type Archive struct {
	// Name is the archive filename, also used as the release asset name.
	Name string
	// Path is the location of the archive inside the build root.
	Path string
	// Size is the archive length in bytes.
	Size int64
	// Checksum is the SHA-512 digest of the archive contents.
	Checksum []byte
	// Entries lists the archive entry names in order.
	Entries []string
}

// packager assembles one archive. Callers use Consolidate.
type packager struct {
	cfg         *config.Config
	environment *release.Environment
}

// Consolidate bundles the binary and auxiliary files into a zip in the build
// root. Nothing is written when any input file is missing.
func Consolidate(ctx context.Context, cfg *config.Config, environment *release.Environment) (*Archive, error) {
	if cfg == nil || environment == nil {
		return nil, errNotConfigured
	}

	ctx = logger.WithName(ctx, "packager")

	p := &packager{
		cfg:         cfg,
		environment: environment,
	}

	return p.Run(ctx)
}

// Run checks inputs, builds the archive in memory and writes it to disk.
func (p *packager) Run(ctx context.Context) (*Archive, error) {
	logger.Info(ctx, "Consolidating release artifacts")

	name, err := ArchiveName(p.cfg, p.environment)
	if err != nil {
		return nil, err
	}

	files, err := p.collectFiles(ctx)
	if err != nil {
		return nil, err
	}

	unlock, err := acquireMarker(ctx, p.environment.RootDir)
	if err != nil {
		return nil, err
	}

	defer unlock()

	archive := &Archive{
		Name: name,
		Path: filepath.Join(p.environment.RootDir, name),
	}

	logger.InfoKV(ctx, "Zipping binary", "archive", archive.Path)

	data, err := buildZip(files)
	if err != nil {
		return nil, fmt.Errorf("build archive: %w", err)
	}

	if archive.Checksum, err = checksum(data); err != nil {
		return nil, err
	}

	if err = writeAtomically(archive.Path, data, archive.Checksum); err != nil {
		return nil, fmt.Errorf("write archive %s: %w", archive.Path, err)
	}

	archive.Size = int64(len(data))
	for _, file := range files {
		archive.Entries = append(archive.Entries, filepath.Base(file))
	}

	logger.InfoKV(ctx, "Archive written",
		"archive", archive.Name,
		"size", archive.Size,
		"sha512", hex.EncodeToString(archive.Checksum))

	return archive, nil
}

// collectFiles returns the bundle list after checking every file exists.
func (p *packager) collectFiles(ctx context.Context) ([]string, error) {
	files := BundleFiles(p.cfg, p.environment)

	binary := files[0]
	if err := requireRegularFile(binary); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", release.ErrBinaryNotFound, binary, err)
	}

	logger.DebugKV(ctx, "Found binary", "path", binary)

	for _, file := range files[1:] {
		if err := requireRegularFile(file); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", release.ErrAuxiliaryFileNotFound, file, err)
		}
	}

	return files, nil
}

// BinaryPath returns where the build leaves the binary for the target.
func BinaryPath(cfg *config.Config, environment *release.Environment) string {
	return filepath.Join(
		environment.RootDir,
		"target",
		environment.Target,
		"release",
		cfg.Project+environment.OS.ExecutableSuffix(),
	)
}

// BundleFiles returns the binary followed by the auxiliary files, all rooted
// at the build directory.
func BundleFiles(cfg *config.Config, environment *release.Environment) []string {
	files := make([]string, 0, len(cfg.Files)+1)
	files = append(files, BinaryPath(cfg, environment))

	for _, name := range cfg.Files {
		if filepath.IsAbs(name) {
			files = append(files, filepath.Clean(name))
			continue
		}

		files = append(files, filepath.Join(environment.RootDir, name))
	}

	return files
}

// ArchiveName renders the configured archive naming template.
func ArchiveName(cfg *config.Config, environment *release.Environment) (string, error) {
	name, err := render.String("archive_name", cfg.ArchiveName, Vars(cfg, environment))
	if err != nil {
		return "", err
	}

	// Tags such as "release/1.0" must not turn the name into a path.
	return nameReplacer.Replace(name), nil
}

// Vars exposes the naming template variables for the given job.
func Vars(cfg *config.Config, environment *release.Environment) render.Vars {
	return render.Vars{
		Project:    cfg.Project,
		Owner:      cfg.Owner,
		Repository: cfg.Repository,
		Tag:        environment.Tag,
		Target:     environment.Target,
		OS:         string(environment.OS),
	}
}

func requireRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file: %w", path, os.ErrInvalid)
	}

	return nil
}

// buildZip stores every file under its base name.
func buildZip(files []string) ([]byte, error) {
	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)

	for _, file := range files {
		if err := addFile(writer, file); err != nil {
			_ = writer.Close()

			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func addFile(writer *zip.Writer, path string) error {
	source, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	info, err := source.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	entry, err := writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s: %w", header.Name, err)
	}

	if _, err = io.Copy(entry, source); err != nil {
		return fmt.Errorf("copy %s: %w", header.Name, err)
	}

	return nil
}

func checksum(data []byte) ([]byte, error) {
	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err := hasher.Write(data); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// writeAtomically replaces path with data after go-update verified the checksum.
func writeAtomically(path string, data, sum []byte) error {
	createdPlaceholder := false

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		placeholder, createErr := os.Create(filepath.Clean(path))
		if createErr != nil {
			return createErr
		}

		_ = placeholder.Close()
		createdPlaceholder = true
	} else if err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: ArchiveFileMode,
		Checksum:   sum,
		Hash:       DefaultChecksumFunction,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if createdPlaceholder {
			_ = os.Remove(path)
		}

		return err
	}

	// go-update hides the replaced file instead of deleting it on Windows.
	oldFileName := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".old")
	if _, err := os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}
