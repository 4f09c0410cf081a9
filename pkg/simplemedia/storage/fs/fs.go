package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Backend is a filesystem implementation of the simplemedia.ArtifactStore interface
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for published artifacts
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: baseDir}, nil
}

var _ simplemedia.ArtifactStore = (*Backend)(nil)

// pathFor maps a key below baseDir, refusing keys that would escape it
func (b *Backend) pathFor(objectKey string) (string, error) {
	if objectKey == "" || strings.Contains(objectKey, `\`) {
		return "", fmt.Errorf("invalid object key %q", objectKey)
	}
	path := filepath.Join(b.baseDir, filepath.FromSlash(objectKey))
	rel, err := filepath.Rel(b.baseDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", objectKey)
	}
	return path, nil
}

// Upload writes content to a temporary file and renames it into place,
// so readers never see a partial artifact.
func (b *Backend) Upload(ctx context.Context, reader io.Reader, params simplemedia.UploadParams) error {
	filePath, err := b.pathFor(params.ObjectKey)
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// Download opens a published artifact
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	filePath, err := b.pathFor(objectKey)
	if err != nil {
		return nil, simplemedia.ErrArtifactNotFound
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, simplemedia.ErrArtifactNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	if info, err := file.Stat(); err != nil || info.IsDir() {
		file.Close()
		return nil, simplemedia.ErrArtifactNotFound
	}
	return file, nil
}

// Delete removes one artifact. Missing keys are not an error.
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	filePath, err := b.pathFor(objectKey)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// DeletePrefix removes every artifact whose key starts with prefix. A
// prefix ending in "/" names a directory.
func (b *Backend) DeletePrefix(ctx context.Context, prefix string) error {
	if strings.HasSuffix(prefix, "/") {
		dirPath, err := b.pathFor(strings.TrimSuffix(prefix, "/"))
		if err != nil {
			return err
		}
		if err := os.RemoveAll(dirPath); err != nil {
			return fmt.Errorf("failed to delete directory: %w", err)
		}
		b.cleanupEmptyDirectories(filepath.Dir(dirPath))
		return nil
	}

	dir, base := filepath.Split(filepath.FromSlash(prefix))
	dirPath := b.baseDir
	if dir != "" {
		p, err := b.pathFor(filepath.ToSlash(filepath.Clean(dir)))
		if err != nil {
			return err
		}
		dirPath = p
	}

	entries, err := os.ReadDir(dirPath)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), base) {
			if err := os.RemoveAll(filepath.Join(dirPath, entry.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}
	b.cleanupEmptyDirectories(dirPath)
	return errors.Join(errs...)
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || !strings.HasPrefix(dir, b.baseDir) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
