// Package filestore keeps uploaded files under <data>/Documents in a
// directory tree mirroring the folder tree.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// RootName is the name of the documents root directory.
const RootName = "Documents"

var (
	// ErrRootDirectory is returned when an operation would remove or replace
	// the documents root.
	ErrRootDirectory = errors.New("refusing to modify the documents root")

	// ErrOutsideRoot is returned for paths that escape the documents root.
	ErrOutsideRoot = errors.New("path is outside the documents root")
)

// Store maps folder paths onto directories below Root.
type Store struct {
	root string
}

// New creates the root directory if needed.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve documents root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create documents root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute documents root.
func (s *Store) Root() string { return s.root }

// Dir returns the directory of a folder path, given as names from the root.
func (s *Store) Dir(folderPath []string) (string, error) {
	parts := append([]string{s.root}, folderPath...)
	for _, p := range folderPath {
		if !validElement(p) {
			return "", fmt.Errorf("%w: %q", ErrOutsideRoot, p)
		}
	}
	return filepath.Join(parts...), nil
}

// Path returns the file path of name inside a folder path.
func (s *Store) Path(folderPath []string, name string) (string, error) {
	if !validElement(name) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, name)
	}
	dir, err := s.Dir(folderPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Rel splits an absolute path below the root into folder names and file
// name.
func (s *Store) Rel(path string) (folderPath []string, name string, err error) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

// Save writes r to name inside a folder path and returns the path and the
// number of bytes written. The file appears atomically.
func (s *Store) Save(folderPath []string, name string, r io.Reader) (string, int64, error) {
	path, err := s.Path(folderPath, name)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, fmt.Errorf("create folder directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("store upload: %w", err)
	}
	return path, n, nil
}

// Move renames a file, creating the destination directory.
func (s *Store) Move(from, to string) error {
	if err := s.within(from); err != nil {
		return err
	}
	if err := s.within(to); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("move file: %w", err)
	}
	s.pruneEmpty(filepath.Dir(from))
	return nil
}

// MoveDir renames a folder directory after a folder rename or move. A
// missing source directory is not an error: empty folders may have none.
func (s *Store) MoveDir(from, to []string) error {
	if len(from) == 0 || len(to) == 0 {
		return ErrRootDirectory
	}
	src, err := s.Dir(from)
	if err != nil {
		return err
	}
	dst, err := s.Dir(to)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination parent: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move directory: %w", err)
	}
	s.pruneEmpty(filepath.Dir(src))
	return nil
}

// RemoveFile deletes a file and then any parent directories left empty,
// stopping at the root.
func (s *Store) RemoveFile(path string) error {
	if err := s.within(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	s.pruneEmpty(filepath.Dir(path))
	return nil
}

// RemoveDir deletes a folder directory tree. The root itself is refused.
func (s *Store) RemoveDir(folderPath []string) error {
	dir, err := s.Dir(folderPath)
	if err != nil {
		return err
	}
	if err := s.within(dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove directory: %w", err)
	}
	s.pruneEmpty(filepath.Dir(dir))
	return nil
}

// within checks that path lies strictly below the root.
func (s *Store) within(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	if abs == s.root {
		return ErrRootDirectory
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return nil
}

// pruneEmpty removes empty directories from dir upwards, never the root.
func (s *Store) pruneEmpty(dir string) {
	for {
		if s.within(dir) != nil {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func validElement(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
