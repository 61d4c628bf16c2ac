package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/printforge/printforge-go-components/internal/slicingservice/logger"
)

// LocalStore is the output directory artifacts are sliced into and served
// from.
type LocalStore struct {
	dir string
}

// NewLocalStore ensures the output directory exists.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the managed directory.
func (s *LocalStore) Dir() string { return s.dir }

// Path resolves an artifact name inside the directory. Names carrying path
// separators or traversal segments are rejected.
func (s *LocalStore) Path(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return filepath.Join(s.dir, name), true
}

// SaveArtifact writes src under name inside the directory.
func (s *LocalStore) SaveArtifact(_ context.Context, name string, src io.Reader, _ int64) error {
	path, ok := s.Path(name)
	if !ok {
		return fmt.Errorf("invalid artifact name: %q", name)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// PurgeOlderThan removes print artifacts older than maxAge. Only slicer
// output files are touched; anything else in the directory is left alone.
func (s *LocalStore) PurgeOlderThan(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logger.LogError("read output directory", err)
		return 0
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isArtifactName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			logger.LogError("purge artifact "+entry.Name(), err)
			continue
		}
		removed++
	}
	return removed
}

func isArtifactName(name string) bool {
	return strings.HasSuffix(name, ".gcode") || strings.HasSuffix(name, ".sl1")
}

// StartRetentionSweep purges aged artifacts on an hourly ticker until ctx
// is canceled.
func (s *LocalStore) StartRetentionSweep(ctx context.Context, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.PurgeOlderThan(maxAge); removed > 0 {
					logger.LogInfo(fmt.Sprintf("retention sweep removed %d artifacts", removed))
				}
			}
		}
	}()
}
