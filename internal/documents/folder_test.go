package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderTreeAndPath(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	a, err := s.CreateFolder(ctx, "A", "")
	require.NoError(t, err)
	b, err := s.CreateFolder(ctx, "B", a.ID)
	require.NoError(t, err)

	path, err := s.FolderPath(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, path)

	root, err := s.FolderPath(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, root)

	_, err = s.CreateFolder(ctx, "B", a.ID)
	assert.ErrorIs(t, err, ErrDuplicateName)
	_, err = s.CreateFolder(ctx, "B", "")
	assert.NoError(t, err, "same name under a different parent is fine")
	_, err = s.CreateFolder(ctx, "A", "")
	assert.ErrorIs(t, err, ErrDuplicateName, "root siblings are unique too")

	_, err = s.CreateFolder(ctx, "x", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenameAndMoveFolder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateFolder(ctx, "A", "")
	b, _ := s.CreateFolder(ctx, "B", a.ID)
	c, _ := s.CreateFolder(ctx, "C", "")

	require.NoError(t, s.RenameFolder(ctx, a.ID, "Alpha"))
	path, err := s.FolderPath(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "B"}, path)

	require.NoError(t, s.MoveFolder(ctx, b.ID, c.ID))
	path, err = s.FolderPath(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B"}, path)

	assert.ErrorIs(t, s.MoveFolder(ctx, c.ID, b.ID), ErrFolderCycle)
	assert.ErrorIs(t, s.MoveFolder(ctx, c.ID, c.ID), ErrFolderCycle)
	assert.ErrorIs(t, s.RenameFolder(ctx, "missing", "x"), ErrNotFound)
	assert.ErrorIs(t, s.RenameFolder(ctx, a.ID, "a/b"), ErrInvalidName)
}

func TestDeleteFolderCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateFolder(ctx, "A", "")
	b, _ := s.CreateFolder(ctx, "B", a.ID)
	d1 := createDoc(t, s, "one.txt", a.ID)
	d2 := createDoc(t, s, "two.txt", b.ID)
	keep := createDoc(t, s, "keep.txt", "")

	under, err := s.DocumentsUnder(ctx, a.ID)
	require.NoError(t, err)
	var ids []string
	for _, d := range under {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{d1.ID, d2.ID}, ids)

	require.NoError(t, s.DeleteFolder(ctx, a.ID))
	_, err = s.GetFolder(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetDocument(ctx, d2.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetDocument(ctx, keep.ID)
	assert.NoError(t, err)
}

func TestEnsureFolderPath(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.EnsureFolderPath(ctx, []string{"Docs", "2024"})
	require.NoError(t, err)
	again, err := s.EnsureFolderPath(ctx, []string{"Docs", "2024"})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	path, err := s.FolderPath(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Docs", "2024"}, path)

	root, err := s.EnsureFolderPath(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "", root)
}
