package layout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia/profile"
)

// ErrInvalidContentID indicates an id that cannot be used as a path element.
var ErrInvalidContentID = errors.New("invalid content id")

// ErrArtifactNotFound indicates a key with no file behind it.
var ErrArtifactNotFound = errors.New("artifact not found")

// Config options for the layout manager
type Config struct {
	Root          string // Storage root; every artifact lives below it
	ProcessedDir  string // Optional, defaults to <Root>/processed
	ThumbnailsDir string // Optional, defaults to <Root>/thumbnails
	UploadsDir    string // Optional, defaults to <Root>/uploads
}

// Manager computes and provisions artifact locations keyed by content id.
// Concurrent jobs never share a path since every location embeds the id.
type Manager struct {
	root          string
	processedDir  string
	thumbnailsDir string
	uploadsDir    string
}

// New creates a layout manager and its root directories.
func New(config Config) (*Manager, error) {
	if config.Root == "" {
		return nil, errors.New("root directory is required")
	}

	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	m := &Manager{
		root:          root,
		processedDir:  resolve(root, config.ProcessedDir, "processed"),
		thumbnailsDir: resolve(root, config.ThumbnailsDir, "thumbnails"),
		uploadsDir:    resolve(root, config.UploadsDir, "uploads"),
	}

	for _, dir := range []string{m.processedDir, m.thumbnailsDir, m.uploadsDir} {
		if _, err := m.Key(dir); err != nil {
			return nil, fmt.Errorf("artifact directories must live below the root: %w", err)
		}
	}

	for _, dir := range []string{m.root, m.processedDir, m.thumbnailsDir, m.uploadsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return m, nil
}

func resolve(root, dir, fallback string) string {
	if dir == "" {
		return filepath.Join(root, fallback)
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}

// Root returns the absolute storage root.
func (m *Manager) Root() string {
	return m.root
}

// StreamingDirFor ensures and returns the segmented rendition directory.
// Calling it again for the same id is a no-op.
func (m *Manager) StreamingDirFor(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	dir := filepath.Join(m.processedDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create streaming directory: %w", err)
	}
	return dir, nil
}

// PlaylistPathFor returns the entry point of the segmented rendition.
func (m *Manager) PlaylistPathFor(id string) (string, error) {
	dir, err := m.StreamingDirFor(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, profile.PlaylistName), nil
}

// ConvertedPathFor returns the single-file rendition path.
func (m *Manager) ConvertedPathFor(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return filepath.Join(m.processedDir, id+".mp4"), nil
}

// ThumbnailPathFor returns the preview image path.
func (m *Manager) ThumbnailPathFor(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return filepath.Join(m.thumbnailsDir, id+".jpg"), nil
}

// UploadPathFor returns where the original upload for id is stored.
func (m *Manager) UploadPathFor(id, ext string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return filepath.Join(m.uploadsDir, id+strings.ToLower(ext)), nil
}

// Purge removes every derived artifact of id. Missing paths are ignored,
// so purging twice leaves the same state as purging once.
func (m *Manager) Purge(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	var errs []error
	if err := os.RemoveAll(filepath.Join(m.processedDir, id)); err != nil {
		errs = append(errs, err)
	}
	for _, path := range []string{
		filepath.Join(m.processedDir, id+".mp4"),
		filepath.Join(m.thumbnailsDir, id+".jpg"),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to purge artifacts for %s: %w", id, errors.Join(errs...))
	}
	return nil
}

// Key returns the slash separated location of path relative to the root.
// Keys name artifacts both on disk and in an artifact store.
func (m *Manager) Key(path string) (string, error) {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return "", err
	}
	if rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", fmt.Errorf("path %s is outside the storage root", path)
	}
	return filepath.ToSlash(rel), nil
}

// StreamingPrefix returns the key prefix shared by a segmented rendition.
func (m *Manager) StreamingPrefix(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return m.Key(filepath.Join(m.processedDir, id))
}

// Open opens the artifact stored under key.
func (m *Manager) Open(key string) (io.ReadCloser, error) {
	path, err := m.pathForKey(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrArtifactNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		file.Close()
		return nil, ErrArtifactNotFound
	}
	return file, nil
}

func (m *Manager) pathForKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") {
		return "", ErrArtifactNotFound
	}
	path := filepath.Join(m.root, filepath.FromSlash(key))
	if _, err := m.Key(path); err != nil {
		return "", ErrArtifactNotFound
	}
	return path, nil
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidContentID, id)
	}
	return nil
}
