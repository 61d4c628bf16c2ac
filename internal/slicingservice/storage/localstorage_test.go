package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPathRejectsTraversalNames(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, ok := store.Path("output-123.gcode")
	require.True(t, ok)

	for _, name := range []string{"", "../escape", "a/b.gcode", ".hidden", "/etc/passwd"} {
		_, ok := store.Path(name)
		require.False(t, ok, "name %q must be rejected", name)
	}
}

func TestSaveArtifactWritesIntoDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	err = store.SaveArtifact(context.Background(), "output-1.gcode", strings.NewReader("G1"), 2)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "output-1.gcode"))
	require.NoError(t, err)
	require.Equal(t, "G1", string(content))
}

func TestPurgeOlderThanRemovesOnlyAgedArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	aged := filepath.Join(dir, "output-old.gcode")
	fresh := filepath.Join(dir, "output-new.sl1")
	unrelated := filepath.Join(dir, "notes.txt")
	for _, path := range []string{aged, fresh, unrelated} {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(aged, old, old))
	require.NoError(t, os.Chtimes(unrelated, old, old))

	removed := store.PurgeOlderThan(24 * time.Hour)
	require.Equal(t, 1, removed)

	_, err = os.Stat(aged)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
	_, err = os.Stat(unrelated)
	require.NoError(t, err, "non-artifact files are never purged")
}
