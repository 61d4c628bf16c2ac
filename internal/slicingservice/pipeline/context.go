// Package pipeline implements the per-request slicing state machine: safe
// ingestion of untrusted uploads, format conversion through external
// converters, orientation, build-volume validation, slicing and parsing of
// the slicer output into normalized statistics.
package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/printforge/printforge-go-components/internal/slicingservice/logger"
	"github.com/printforge/printforge-go-components/internal/slicingservice/model"
)

// UploadContext is the per-request record of the pipeline. It is created on
// request entry, mutated only by its owning request and cleaned up on every
// exit path.
type UploadContext struct {
	OriginalName string
	Extension    string
	Technology   model.Technology
	Material     string
	LayerHeight  float64
	Infill       int
	DepthMM      float64

	// WorkingPath is the current mesh file as the state machine advances.
	WorkingPath string
	// ObjectHeightMM is filled by the measuring step.
	ObjectHeightMM float64

	cleanup []string
}

// AddCleanup records a path created during processing. Paths are removed in
// reverse order of registration when the request terminates.
func (uc *UploadContext) AddCleanup(path string) {
	uc.cleanup = append(uc.cleanup, path)
}

// CleanupPaths returns a copy of the recorded paths.
func (uc *UploadContext) CleanupPaths() []string {
	return append([]string(nil), uc.cleanup...)
}

// Cleanup removes every recorded path. Directories are removed recursively.
// Per-path failures are logged and swallowed so a stubborn file cannot turn
// a finished request into an error.
func (uc *UploadContext) Cleanup() {
	for i := len(uc.cleanup) - 1; i >= 0; i-- {
		path := uc.cleanup[i]
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			err = os.RemoveAll(path)
		} else {
			err = os.Remove(path)
		}
		if err != nil {
			logger.LogError("cleanup "+path, err)
		}
	}
	uc.cleanup = nil
}

// lowerExt returns the lowercased extension of name, dot included.
func lowerExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
