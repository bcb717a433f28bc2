package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/matzehuels/mapexport/pkg/errors"
	"github.com/matzehuels/mapexport/pkg/render/sink"
)

// Downloader delivers a finished artifact.
type Downloader interface {
	Download(ctx context.Context, art sink.Artifact) error
}

// DownloaderFunc adapts a function to [Downloader].
type DownloaderFunc func(ctx context.Context, art sink.Artifact) error

// Download calls f.
func (f DownloaderFunc) Download(ctx context.Context, art sink.Artifact) error { return f(ctx, art) }

// DirDownloader writes artifacts into a directory under their own name.
// An existing file is replaced.
type DirDownloader struct {
	Dir string
}

// Download implements [Downloader].
func (d DirDownloader) Download(ctx context.Context, art sink.Artifact) error {
	if err := apperrors.ValidateFilename(art.Name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+art.Name+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(art.Data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", art.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", art.Name, err)
	}
	if err := os.Rename(tmp.Name(), d.Path(art)); err != nil {
		return fmt.Errorf("write %s: %w", art.Name, err)
	}
	return nil
}

// Path returns where art is written.
func (d DirDownloader) Path(art sink.Artifact) string {
	return filepath.Join(d.Dir, art.Name)
}

// MemoryDownloader keeps delivered artifacts in memory.
type MemoryDownloader struct {
	mu        sync.Mutex
	artifacts []sink.Artifact
}

// Download implements [Downloader].
func (m *MemoryDownloader) Download(_ context.Context, art sink.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts = append(m.artifacts, art)
	return nil
}

// Artifacts returns the delivered artifacts in order.
func (m *MemoryDownloader) Artifacts() []sink.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sink.Artifact(nil), m.artifacts...)
}

// Last returns the most recent artifact.
func (m *MemoryDownloader) Last() (sink.Artifact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.artifacts) == 0 {
		return sink.Artifact{}, false
	}
	return m.artifacts[len(m.artifacts)-1], true
}
