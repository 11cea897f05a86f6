package alertcache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// ArchiveBackend abstracts the object store that holds cache snapshots.
// Implementations exist for the local filesystem (development), S3 and GCS.
type ArchiveBackend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

const (
	archiveFilePermissions = 0644
	archiveDirPermissions  = 0755
)

// FilesystemArchiveBackend implements ArchiveBackend on a local directory
type FilesystemArchiveBackend struct {
	basePath string
}

// NewFilesystemArchiveBackend creates a filesystem-backed snapshot archive
func NewFilesystemArchiveBackend(basePath string) *FilesystemArchiveBackend {
	return &FilesystemArchiveBackend{basePath: basePath}
}

func (b *FilesystemArchiveBackend) getPath(key string) string {
	return filepath.Join(b.basePath, key)
}

func (b *FilesystemArchiveBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.getPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (b *FilesystemArchiveBackend) Put(ctx context.Context, key string, data []byte) error {
	path := b.getPath(key)
	if err := os.MkdirAll(filepath.Dir(path), archiveDirPermissions); err != nil {
		return err
	}
	return os.WriteFile(path, data, archiveFilePermissions)
}

func (b *FilesystemArchiveBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	err := filepath.Walk(b.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(b.basePath, path)
		if err != nil {
			return err
		}
		// Forward slashes for consistency with the object-store backends
		relPath = filepath.ToSlash(relPath)
		if strings.HasPrefix(relPath, prefix) {
			keys = append(keys, relPath)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}

	return keys, err
}

func (b *FilesystemArchiveBackend) Close() error {
	return nil
}
