package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitswalk/molior/src/common/paths"
)

// LocalConfig holds the local filesystem storage configuration for the
// default deployment mode: source trees, buildout directories and
// APT-published pool files all live under one base directory
// (/var/lib/molior by convention) rather than an S3-compatible bucket.
type LocalConfig struct {
	BasePath string
}

// LocalBackend implements storage on the local filesystem.
type LocalBackend struct {
	basePath string
}

// NewLocal creates a new local filesystem storage backend rooted at
// cfg.BasePath, creating the directory if it does not already exist.
func NewLocal(cfg LocalConfig) (*LocalBackend, error) {
	basePath := paths.Expand(cfg.BasePath)

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}

	return &LocalBackend{basePath: basePath}, nil
}

// fullPath resolves key against the backend's base directory, rejecting any
// key that would otherwise escape it via a leading slash or ".." segment. An
// absolute key that already lies under the base directory is used as is.
func (b *LocalBackend) fullPath(key string) string {
	if filepath.IsAbs(key) {
		absBase, _ := filepath.Abs(b.basePath)
		cleaned := filepath.Clean(key)
		if cleaned == absBase || strings.HasPrefix(cleaned, absBase+string(filepath.Separator)) {
			return cleaned
		}
	}

	cleanKey := filepath.Clean("/" + key)
	cleanKey = strings.TrimPrefix(cleanKey, "/")

	candidate := filepath.Join(b.basePath, cleanKey)

	absBase, _ := filepath.Abs(b.basePath)
	absCandidate, _ := filepath.Abs(candidate)
	if absCandidate != absBase && !strings.HasPrefix(absCandidate, absBase+string(filepath.Separator)) {
		return filepath.Join(b.basePath, filepath.Base(cleanKey))
	}

	return candidate
}

// ResolvePath returns the absolute filesystem path for a storage key.
func (b *LocalBackend) ResolvePath(key string) string {
	return b.fullPath(key)
}

// Upload uploads data to the local filesystem.
func (b *LocalBackend) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	fullPath := b.fullPath(key)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}

	if size > 0 && written != size {
		os.Remove(fullPath)
		return fmt.Errorf("size mismatch: expected %d bytes, wrote %d bytes", size, written)
	}

	return nil
}

// Download downloads a file from the local filesystem.
func (b *LocalBackend) Download(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	fullPath := b.fullPath(key)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("object not found: %s", key)
		}
		return nil, nil, fmt.Errorf("failed to open file %s: %w", fullPath, err)
	}

	info, err := b.GetInfo(ctx, key)
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	return file, info, nil
}

// Delete removes a file or directory tree from the local filesystem, ignoring
// read-only errors the way rebuild's buildout erase and repo-delete tree
// removal require.
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	fullPath := b.fullPath(key)

	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("failed to delete %s: %w", fullPath, err)
	}

	b.cleanEmptyDirs(filepath.Dir(fullPath))

	return nil
}

func (b *LocalBackend) cleanEmptyDirs(dir string) {
	for dir != b.basePath && strings.HasPrefix(dir, b.basePath) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}

// Exists checks if a file exists.
func (b *LocalBackend) Exists(ctx context.Context, key string) (bool, error) {
	fullPath := b.fullPath(key)
	_, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file %s: %w", fullPath, err)
	}
	return true, nil
}

// GetInfo retrieves metadata for a file.
func (b *LocalBackend) GetInfo(ctx context.Context, key string) (*ObjectInfo, error) {
	fullPath := b.fullPath(key)

	stat, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found: %s", key)
		}
		return nil, fmt.Errorf("failed to stat file %s: %w", fullPath, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  contentType,
		ETag:         b.generateETag(stat),
		LastModified: stat.ModTime(),
	}, nil
}

func (b *LocalBackend) generateETag(stat os.FileInfo) string {
	data := fmt.Sprintf("%s-%d-%d", stat.Name(), stat.Size(), stat.ModTime().UnixNano())
	hash := md5.Sum([]byte(data))
	return fmt.Sprintf("\"%s\"", hex.EncodeToString(hash[:]))
}

// List lists files with the given prefix, relative to the backend's base
// directory.
func (b *LocalBackend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	trimmedPrefix := strings.TrimPrefix(prefix, "/")

	walkErr := fs.WalkDir(os.DirFS(b.basePath), ".", func(relPath string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if trimmedPrefix != "" && !strings.HasPrefix(relPath, trimmedPrefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		contentType := mime.TypeByExtension(filepath.Ext(relPath))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		objects = append(objects, ObjectInfo{
			Key:          relPath,
			Size:         info.Size(),
			ContentType:  contentType,
			ETag:         b.generateETag(info),
			LastModified: info.ModTime(),
		})
		return nil
	})

	if walkErr != nil && !os.IsNotExist(walkErr) {
		return nil, fmt.Errorf("failed to list files under %s: %w", b.basePath, walkErr)
	}

	return objects, nil
}

// Ping checks if the storage directory is accessible.
func (b *LocalBackend) Ping(ctx context.Context) error {
	_, err := os.Stat(b.basePath)
	if err != nil {
		return fmt.Errorf("storage directory not accessible: %w", err)
	}
	return nil
}

// Type returns the storage backend type.
func (b *LocalBackend) Type() string { return "local" }

// Location returns the base path.
func (b *LocalBackend) Location() string { return b.basePath }
