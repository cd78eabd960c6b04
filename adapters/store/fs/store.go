package storefs

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"consultation-report-service/report"
)

// Store provides filesystem-backed artifact storage rooted at a single
// directory. Keys are slash-separated paths relative to the root; a key
// that resolves outside the root is rejected.
type Store struct {
	Root string
	Now  func() time.Time
}

// NewStore creates a filesystem-backed artifact store.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Put stores an artifact on disk. The write goes through a temp file and a
// rename so readers never observe partial content.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta report.ArtifactMeta) (report.ArtifactRef, error) {
	_ = ctx
	if s == nil {
		return report.ArtifactRef{}, report.NewError(report.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return report.ArtifactRef{}, report.NewError(report.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return report.ArtifactRef{}, report.NewError(report.KindValidation, "artifact key is required", nil)
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return report.ArtifactRef{}, err
	}

	dir := filepath.Dir(pathOnDisk)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report.ArtifactRef{}, err
	}

	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return report.ArtifactRef{}, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return report.ArtifactRef{}, err
	}
	if err := tmp.Sync(); err != nil {
		return report.ArtifactRef{}, err
	}
	if err := tmp.Close(); err != nil {
		return report.ArtifactRef{}, err
	}

	if err := os.Rename(tmp.Name(), pathOnDisk); err != nil {
		return report.ArtifactRef{}, err
	}

	meta.Size = size
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}

	return report.ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact from disk. Metadata is derived from the file
// itself; there is no separate index.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, report.ArtifactMeta, error) {
	_ = ctx
	if s == nil {
		return nil, report.ArtifactMeta{}, report.NewError(report.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return nil, report.ArtifactMeta{}, report.NewError(report.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return nil, report.ArtifactMeta{}, report.NewError(report.KindValidation, "artifact key is required", nil)
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return nil, report.ArtifactMeta{}, err
	}

	file, err := os.Open(pathOnDisk)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, report.ArtifactMeta{}, report.NewError(report.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, report.ArtifactMeta{}, err
	}

	meta := report.ArtifactMeta{
		Filename:    filepath.Base(pathOnDisk),
		ContentType: mime.TypeByExtension(filepath.Ext(pathOnDisk)),
	}
	if info, err := file.Stat(); err == nil {
		if info.IsDir() {
			_ = file.Close()
			return nil, report.ArtifactMeta{}, report.NewError(report.KindNotFound, fmt.Sprintf("artifact %q not found", key), nil)
		}
		meta.Size = info.Size()
		meta.CreatedAt = info.ModTime()
	}

	return file, meta, nil
}

// Delete removes an artifact from disk.
func (s *Store) Delete(ctx context.Context, key string) error {
	_ = ctx
	if s == nil {
		return report.NewError(report.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return report.NewError(report.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return report.NewError(report.KindValidation, "artifact key is required", nil)
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	_ = os.Remove(pathOnDisk)
	return nil
}

func (s *Store) resolvePath(key string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." {
		return "", report.NewError(report.KindValidation, "invalid artifact key", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) && target != root {
		return "", report.NewError(report.KindValidation, "artifact key escapes root", nil)
	}
	return target, nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
