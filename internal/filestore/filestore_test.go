package filestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), RootName))
	require.NoError(t, err)
	return s
}

func TestPathFollowsFolderTree(t *testing.T) {
	s := newStore(t)
	p, err := s.Path([]string{"A", "B"}, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "A", "B", "report.pdf"), p)

	_, err = s.Path([]string{".."}, "x.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot)
	_, err = s.Path(nil, "../x.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	folders, name, err := s.Rel(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, folders)
	assert.Equal(t, "report.pdf", name)
}

func TestSaveMoveRemove(t *testing.T) {
	s := newStore(t)
	p, n, err := s.Save([]string{"A"}, "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	to, err := s.Path([]string{"B", "C"}, "a.txt")
	require.NoError(t, err)
	require.NoError(t, s.Move(p, to))
	assert.NoDirExists(t, filepath.Join(s.Root(), "A"), "emptied source folder is pruned")
	assert.FileExists(t, to)

	require.NoError(t, s.RemoveFile(to))
	assert.NoDirExists(t, filepath.Join(s.Root(), "B"))
	assert.DirExists(t, s.Root())
}

func TestMoveDir(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Save([]string{"A", "B"}, "x.txt", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, s.MoveDir([]string{"A", "B"}, []string{"A", "Renamed"}))
	assert.FileExists(t, filepath.Join(s.Root(), "A", "Renamed", "x.txt"))

	require.NoError(t, s.MoveDir([]string{"Missing"}, []string{"Other"}))
	assert.ErrorIs(t, s.MoveDir(nil, []string{"X"}), ErrRootDirectory)
}

func TestRemoveDirRefusesRoot(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Save([]string{"A", "B"}, "x.txt", strings.NewReader("x"))
	require.NoError(t, err)

	assert.ErrorIs(t, s.RemoveDir(nil), ErrRootDirectory)
	assert.ErrorIs(t, s.RemoveFile(s.Root()), ErrRootDirectory)
	assert.ErrorIs(t, s.RemoveFile(filepath.Join(s.Root(), "..", "elsewhere.txt")), ErrOutsideRoot)

	require.NoError(t, s.RemoveDir([]string{"A", "B"}))
	assert.NoDirExists(t, filepath.Join(s.Root(), "A"))
	assert.DirExists(t, s.Root())
}
