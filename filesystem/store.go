// Package filesystem provides a local disk storage backend for stashbox.
// Writes are atomic (temp file, fsync, rename) and produce SHA256 etags.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sagarc03/stashbox"
)

const tmpPrefix = ".t"

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Open opens a file for reading. Returns stashbox.ErrNotFound if the file
// does not exist.
func (s *Store) Open(ctx context.Context, path string) (stashbox.Blob, error) {
	if err := ctx.Err(); err != nil {
		return stashbox.Blob{}, err
	}

	f, err := s.root.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stashbox.Blob{}, stashbox.ErrNotFound
		}
		return stashbox.Blob{}, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return stashbox.Blob{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return stashbox.Blob{}, stashbox.ErrNotFound
	}

	return stashbox.Blob{Content: f, Size: info.Size(), ModTime: info.ModTime()}, nil
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

// Write atomically writes content to the given path using a temp file and
// rename. The operation respects context cancellation; a cancelled write
// leaves nothing behind.
func (s *Store) Write(ctx context.Context, path string, content io.Reader) (stashbox.SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stashbox.SaveResult{}, ctxErr
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return stashbox.SaveResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	written, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return stashbox.SaveResult{}, fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return stashbox.SaveResult{}, fmt.Errorf("could not sync written file: %w", err)
	}

	destDir := filepath.Dir(path)
	if destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return stashbox.SaveResult{}, fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if renameErr := s.root.Rename(tmpFile, path); renameErr != nil {
		return stashbox.SaveResult{}, fmt.Errorf("failed to rename file: %w", renameErr)
	}
	success = true

	return stashbox.SaveResult{BytesWritten: written, Etag: hex.EncodeToString(h.Sum(nil))}, nil
}

// Delete removes a file. Returns stashbox.ErrNotFound if the file does not exist.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.root.Remove(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stashbox.ErrNotFound
		}
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

// List recursively walks the root directory and returns every stored file.
// In-progress temp files are skipped.
func (s *Store) List(ctx context.Context) ([]stashbox.StorageEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []stashbox.StorageEntry

	err := fs.WalkDir(s.root.FS(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		entries = append(entries, stashbox.StorageEntry{
			Path:    filepath.ToSlash(path),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return entries, nil
}

func tmpFileName() string {
	return tmpPrefix + uuid.New().String()
}

// Ping checks the root directory is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.root.Stat("."); err != nil {
		return fmt.Errorf("ping filesystem: %w", err)
	}
	return nil
}
