// Package storage manages finished print artifacts: the local output
// directory they are served from, an optional S3 mirror and the scheduled
// purge that ages them out.
package storage

import (
	"context"
	"io"
)

// ArtifactStore saves a finished print artifact under its public name.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, name string, src io.Reader, size int64) error
}
