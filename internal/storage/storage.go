package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// AssetStore persists image bytes and hands back an opaque location
type AssetStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, location string) error
}

// FileStore keeps assets on the local filesystem under a root directory
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Put writes data under key, using the sniffed file extension
func (s *FileStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := key + mimetype.Detect(data).Extension()
	// two-level fan-out keeps directories small
	dir := s.root
	if len(key) >= 2 {
		dir = filepath.Join(s.root, key[:2])
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create asset directory: %w", err)
	}

	location := filepath.Join(dir, name)
	// unique temp name per writer; concurrent puts of one key race only on the rename
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp asset: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write asset: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store asset: %w", err)
	}
	if err := os.Rename(tmp.Name(), location); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store asset: %w", err)
	}

	return location, nil
}

// Delete removes a stored asset; a missing file is not an error
func (s *FileStore) Delete(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(location); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}
