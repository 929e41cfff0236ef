package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophtour/internal/common"
	"github.com/dmitrijs2005/gophtour/internal/filex"
)

// FilesystemStore keeps files under a local content root.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates the root directory when missing.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if root == "" {
		root = "content"
	}
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("create content root: %w", err)
	}
	return &FilesystemStore{root: abs}, nil
}

func (s *FilesystemStore) Root() string { return s.root }

func (s *FilesystemStore) Write(ctx context.Context, rel string, body io.Reader) (int64, error) {
	path, err := filex.Resolve(s.root, rel)
	if err != nil {
		return 0, err
	}
	if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return 0, fmt.Errorf("ensure file dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(f, body)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return 0, fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("close file: %w", err)
	}
	return n, nil
}

func (s *FilesystemStore) Move(ctx context.Context, src, dst string) error {
	from, err := filex.Resolve(s.root, src)
	if err != nil {
		return err
	}
	to, err := filex.Resolve(s.root, dst)
	if err != nil {
		return err
	}
	if _, err := filex.EnsureDir(filepath.Dir(to)); err != nil {
		return fmt.Errorf("ensure file dir: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", common.ErrorNotFound, src)
		}
		return fmt.Errorf("move file: %w", err)
	}
	return nil
}

func (s *FilesystemStore) Exists(ctx context.Context, rel string) (bool, error) {
	path, err := filex.Resolve(s.root, rel)
	if err != nil {
		return false, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat file: %w", err)
	}
	return fi.Mode().IsRegular(), nil
}

func (s *FilesystemStore) Remove(ctx context.Context, rel string) error {
	path, err := filex.Resolve(s.root, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
