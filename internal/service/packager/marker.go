package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/stabping-release/internal/logger"
)

const (
	// MarkerFilename marks that a consolidation is running in the build root.
	MarkerFilename = ".stabping-release.marker"

	// markerLifetime is the period after which a marker is considered stale
	// even when its process is still around.
	markerLifetime = 10 * time.Minute

	markerFileMode os.FileMode = 0o600
)

var errPackagerRunning = errors.New("another consolidation is running in this directory")

// acquireMarker creates the marker in dir, recovering stale ones left by
// crashed runs. The returned func removes the marker.
func acquireMarker(ctx context.Context, dir string) (func(), error) {
	path := filepath.Join(dir, MarkerFilename)

	logger.DebugKV(ctx, "Checking for the presence of a consolidation marker", "path", path)

	if err := recoverStaleMarker(ctx, path); err != nil {
		return nil, err
	}

	marker, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, errPackagerRunning
		}

		return nil, fmt.Errorf("create marker: %w", err)
	}

	_, err = marker.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := marker.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)

		return nil, fmt.Errorf("write marker: %w", err)
	}

	return func() {
		_ = os.Remove(path)
	}, nil
}

// recoverStaleMarker removes a marker whose owner is gone or which outlived markerLifetime.
func recoverStaleMarker(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("stat marker: %w", err)
	}

	if time.Since(info.ModTime()) <= markerLifetime && markerOwnerAlive(path) {
		return errPackagerRunning
	}

	logger.Info(ctx, "The consolidation marker is stale, removing it")

	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale marker: %w", err)
	}

	return nil
}

// markerOwnerAlive reports whether the PID recorded in the marker is running.
// Unreadable or half-written markers count as alive until markerLifetime passes.
func markerOwnerAlive(path string) bool {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return true
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return true
	}

	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return true
	}

	return process != nil
}
