package pipeline

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/printforge/printforge-go-components/internal/common"
)

const dirPermissions = 0o755

// archiveLimits bound what the service is willing to decompress.
type archiveLimits struct {
	maxEntries           int
	maxUncompressedBytes int64
}

// inspectArchive validates the archive against the limits without
// extracting anything. It returns the reader so extraction can reuse it.
func inspectArchive(archivePath string, limits archiveLimits) (*zip.ReadCloser, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, common.NewErrBadRequest("INVALID_ARCHIVE", "The uploaded archive is not a readable zip file")
	}

	if limits.maxEntries > 0 && len(reader.File) > limits.maxEntries {
		_ = reader.Close()
		return nil, common.NewErrBadRequest("INVALID_ARCHIVE",
			fmt.Sprintf("The archive contains %d entries, more than the allowed %d", len(reader.File), limits.maxEntries))
	}

	var total uint64
	for _, entry := range reader.File {
		// Bit 0 of the general purpose flags marks an encrypted entry.
		if entry.Flags&0x1 != 0 {
			_ = reader.Close()
			return nil, common.NewErrBadRequest("INVALID_ARCHIVE", "Encrypted archives are not supported")
		}
		total += entry.UncompressedSize64
		if limits.maxUncompressedBytes > 0 && total > uint64(limits.maxUncompressedBytes) {
			_ = reader.Close()
			return nil, common.NewErrBadRequest("INVALID_ARCHIVE", "The archive expands beyond the allowed size")
		}
	}
	return reader, nil
}

// extractArchive safely extracts the archive into destDir and returns the
// path of the first entry, in archive order, whose extension the pipeline
// supports. Entries resolving outside destDir are rejected before any
// output file is opened.
func extractArchive(archivePath, destDir string, limits archiveLimits) (string, error) {
	reader, err := inspectArchive(archivePath, limits)
	if err != nil {
		return "", err
	}
	defer func() { _ = reader.Close() }()

	if err := os.MkdirAll(destDir, dirPermissions); err != nil {
		return "", fmt.Errorf("create extraction directory: %w", err)
	}

	selected := ""
	for _, entry := range reader.File {
		targetPath, err := resolveEntryPath(entry.Name, destDir)
		if err != nil {
			return "", err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, dirPermissions); err != nil {
				return "", fmt.Errorf("create directory %s: %w", targetPath, err)
			}
			continue
		}
		if err := extractEntry(entry, targetPath); err != nil {
			return "", err
		}
		if selected == "" && supportedMeshSource(lowerExt(entry.Name)) {
			selected = targetPath
		}
	}

	if selected == "" {
		return "", common.NewErrBadRequest("INVALID_ARCHIVE", "The archive contains no supported model file")
	}
	return selected, nil
}

// resolveEntryPath canonicalizes an entry name and verifies it stays
// strictly within the extraction root.
func resolveEntryPath(name, destDir string) (string, error) {
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", common.NewErrBadRequest("INVALID_ARCHIVE", "The archive contains an entry escaping the extraction directory")
	}
	targetPath := filepath.Join(destDir, clean)
	if !strings.HasPrefix(targetPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", common.NewErrBadRequest("INVALID_ARCHIVE", "The archive contains an entry escaping the extraction directory")
	}
	return targetPath, nil
}

func extractEntry(entry *zip.File, targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), dirPermissions); err != nil {
		return fmt.Errorf("create parent directory for %s: %w", targetPath, err)
	}
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", entry.Name, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("create file %s: %w", targetPath, err)
	}
	// The declared size was validated during inspection; cap the copy so a
	// lying header cannot blow past it.
	limit := int64(entry.UncompressedSize64) + 1
	if _, err := io.Copy(out, io.LimitReader(src, limit)); err != nil {
		_ = out.Close()
		return fmt.Errorf("write file %s: %w", targetPath, err)
	}
	return out.Close()
}
