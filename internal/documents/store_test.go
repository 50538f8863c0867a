package documents

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "raglens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func createDoc(t *testing.T, s *Store, name, folderID string) Document {
	t.Helper()
	d := Document{Name: name, FileType: filepath.Ext(name), FolderID: folderID}
	require.NoError(t, s.CreateDocument(context.Background(), &d))
	return d
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "raglens.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	d := createDoc(t, s, "a.txt", "")
	require.NoError(t, s.Close())

	s, err = NewStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetDocument(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.Name)
	assert.Equal(t, StatusProcessing, got.Status)
}

func TestStatusTransitions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	d := createDoc(t, s, "a.txt", "")

	got, err := s.MarkProcessing(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)

	got, err = s.MarkError(ctx, d.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "unknown error", got.ErrorMessage)

	// A retry may start again from error.
	got, err = s.MarkProcessing(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
	assert.Empty(t, got.ErrorMessage)

	got, err = s.MarkReady(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, got.Status)

	_, err = s.MarkError(ctx, d.ID, "late failure")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Reprocess(ctx, d.ID)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusReady, te.From)

	_, err = s.MarkReady(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReprocess_OnlyFromError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	d := createDoc(t, s, "a.txt", "")

	_, err := s.Reprocess(ctx, d.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.MarkProcessing(ctx, d.ID)
	require.NoError(t, err)
	_, err = s.MarkError(ctx, d.ID, "No text could be extracted from the document")
	require.NoError(t, err)

	got, err := s.Reprocess(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.Empty(t, got.ErrorMessage)
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	d := createDoc(t, s, "a.txt", "")

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = s.MarkReady(ctx, d.ID)
			} else {
				_, err = s.MarkError(ctx, d.ID, "boom")
			}
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestSweepStale(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	stuck := createDoc(t, s, "stuck.pdf", "")
	done := createDoc(t, s, "done.pdf", "")
	_, err := s.MarkReady(ctx, done.ID)
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(20 * time.Minute) }
	fresh := createDoc(t, s, "fresh.pdf", "")

	s.now = func() time.Time { return base.Add(31 * time.Minute) }
	ids, err := s.SweepStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{stuck.ID}, ids)

	got, err := s.GetDocument(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, StaleMessage, got.ErrorMessage)

	got, err = s.GetDocument(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
}

func TestStatuses_ReportsNotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	d := createDoc(t, s, "a.txt", "")

	reports, err := s.Statuses(ctx, []string{"nope", d.ID})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, StatusReport{ID: "nope", Status: StatusNotFound}, reports[0])
	assert.Equal(t, d.ID, reports[1].ID)
	assert.Equal(t, "a.txt", reports[1].Name)
	assert.Equal(t, StatusProcessing, reports[1].Status)
	assert.NotNil(t, reports[1].UpdatedAt)
}

func TestDocumentNamesUniquePerFolder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	f, err := s.CreateFolder(ctx, "A", "")
	require.NoError(t, err)

	createDoc(t, s, "a.txt", "")
	createDoc(t, s, "a.txt", f.ID)
	err = s.CreateDocument(ctx, &Document{Name: "a.txt"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	err = s.CreateDocument(ctx, &Document{Name: "../x"})
	assert.ErrorIs(t, err, ErrInvalidName)

	found, err := s.FindDocument(ctx, f.ID, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, f.ID, found.FolderID)
}
