package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FSStore stores blobs on the local filesystem under a root directory.
// Object keys map to file paths; writes go to a temp file and rename so a
// crashed upload never leaves a partial object.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: creating storage root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) fullPath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

func (s *FSStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := s.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("blob: creating object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("blob: creating temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("blob: writing object: %w", err)
	}
	if size > 0 && written != size {
		return fmt.Errorf("blob: size mismatch: declared %d, wrote %d", size, written)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("blob: finalizing object: %w", err)
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FSStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.fullPath(path)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
