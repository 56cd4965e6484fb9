// Package filesystem provides a local directory blob store for dams.
// Objects are written atomically using temp files and served back through
// a configurable public URL prefix.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sagarc03/dams"
)

const tmpPrefix = ".t"

// Store provides file system blob operations.
type Store struct {
	root      *os.Root
	publicURL string
}

// NewStore creates a new Store with the given root directory. Locations
// returned by Put are publicURL joined with the escaped key.
// The root provides sandboxed file operations preventing path traversal.
func NewStore(root *os.Root, publicURL string) *Store {
	return &Store{root: root, publicURL: strings.TrimRight(publicURL, "/")}
}

// Location returns the public reference for key.
func (s *Store) Location(key string) string {
	return s.publicURL + "/" + url.PathEscape(key)
}

// Open opens an object for reading. Returns dams.ErrNotFound if the object does not exist.
func (s *Store) Open(ctx context.Context, key string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !dams.IsValidStorageKey(key) || strings.HasPrefix(key, tmpPrefix) {
		return nil, dams.ErrNotFound
	}

	f, err := s.root.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, dams.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Put atomically writes content under key using a temp file and rename.
// The operation respects context cancellation; a short write is an error and
// leaves nothing behind.
func (s *Store) Put(ctx context.Context, key string, content io.Reader, size int64, _ string) (string, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	if !dams.IsValidStorageKey(key) || strings.HasPrefix(key, tmpPrefix) {
		return "", fmt.Errorf("put %q: %w: invalid storage key", key, dams.ErrInvalidInput)
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return "", fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	written, err := io.Copy(t, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return "", fmt.Errorf("could not copy file contents: %w", err)
	}

	if size >= 0 && written != size {
		return "", fmt.Errorf("short write: expected %d bytes, got %d", size, written)
	}

	if err := t.Sync(); err != nil {
		return "", fmt.Errorf("could not sync written file: %w", err)
	}

	if renameErr := s.root.Rename(tmpFile, key); renameErr != nil {
		return "", fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true

	return s.Location(key), nil
}

// Delete removes an object. Returns dams.ErrNotFound if the object does not exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !dams.IsValidStorageKey(key) {
		return dams.ErrNotFound
	}

	err := s.root.Remove(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return dams.ErrNotFound
		}
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

// Exists reports whether an object is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if !dams.IsValidStorageKey(key) {
		return false, nil
	}

	info, err := s.root.Stat(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat file: %w", err)
	}

	return info.Mode().IsRegular(), nil
}

// List returns every object in the root directory. Temp files from writes in
// progress and subdirectories are skipped.
func (s *Store) List(ctx context.Context) ([]dams.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := fs.ReadDir(s.root.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	blobs := []dams.BlobInfo{}
	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), tmpPrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}

		blobs = append(blobs, dams.BlobInfo{
			Key:        entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	return blobs, nil
}

func tmpFileName() string {
	return fmt.Sprintf("%s%s", tmpPrefix, uuid.New().String())
}
