package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local stores archives under a directory on the local filesystem.
type Local struct {
	root string
}

// NewLocal creates the root directory if it does not exist.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, errors.New("archive root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve archive root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create archive root: %w", err)
	}
	return &Local{root: abs}, nil
}

// resolve maps a remote path into the root, rejecting anything that would
// escape it.
func (l *Local) resolve(remotePath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(remotePath))
	if clean == "." || clean == "" || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid archive path %q", remotePath)
	}
	full := filepath.Join(l.root, clean)
	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive path %q", remotePath)
	}
	return full, nil
}

func (l *Local) Upload(_ context.Context, localPath, remotePath string) error {
	dst, err := l.resolve(remotePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	if err := copyFile(localPath, dst); err != nil {
		return fmt.Errorf("store %s: %w", remotePath, err)
	}
	return nil
}

func (l *Local) Download(_ context.Context, remotePath, localPath string) error {
	src, err := l.resolve(remotePath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("archive file %s: %w", remotePath, err)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o700); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	if err := copyFile(src, localPath); err != nil {
		return fmt.Errorf("fetch %s: %w", remotePath, err)
	}
	return nil
}

func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		remote := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(remote, prefix) {
			out = append(out, remote)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (l *Local) Delete(_ context.Context, remotePath string) error {
	full, err := l.resolve(remotePath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("delete %s: %w", remotePath, err)
	}
	l.cleanupEmptyDirs(filepath.Dir(full))
	return nil
}

// cleanupEmptyDirs removes now-empty parents up to the root so deleted
// sessions do not leave directory husks behind.
func (l *Local) cleanupEmptyDirs(dir string) {
	for dir != l.root && strings.HasPrefix(dir, l.root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
