package documents

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"
)

const documentColumns = `id, name, file_type, mime_type, size, status, error_message, folder_id, attempts, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	var status string
	var errMsg, folderID sql.NullString
	var created, updated int64
	err := row.Scan(&d.ID, &d.Name, &d.FileType, &d.MimeType, &d.Size, &status,
		&errMsg, &folderID, &d.Attempts, &created, &updated)
	if err != nil {
		return Document{}, err
	}
	d.Status = Status(status)
	d.ErrorMessage = errMsg.String
	d.FolderID = folderID.String
	d.CreatedAt = fromMillis(created)
	d.UpdatedAt = fromMillis(updated)
	return d, nil
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// CreateDocument inserts doc. Empty ID and Status default to a new UUID and
// processing.
func (s *Store) CreateDocument(ctx context.Context, doc *Document) error {
	if !ValidName(doc.Name) {
		return fmt.Errorf("document %q: %w", doc.Name, ErrInvalidName)
	}
	if doc.ID == "" {
		doc.ID = newID()
	}
	if doc.Status == "" {
		doc.Status = StatusProcessing
	}
	if doc.Status == StatusError && doc.ErrorMessage == "" {
		return fmt.Errorf("document %s: error status needs a message: %w", doc.ID, ErrInvalidTransition)
	}
	now := s.stamp()
	doc.CreatedAt, doc.UpdatedAt = fromMillis(now), fromMillis(now)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.FileType, doc.MimeType, doc.Size, string(doc.Status),
		nullString(doc.ErrorMessage), nullString(doc.FolderID), doc.Attempts, now, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("document %q: %w", doc.Name, ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if isNoRows(err) {
		return Document{}, notFound("document", id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("getting document: %w", err)
	}
	return d, nil
}

// FindDocument returns the document with name in folderID ("" for root).
func (s *Store) FindDocument(ctx context.Context, folderID, name string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE COALESCE(folder_id, '') = ? AND name = ?`, folderID, name)
	d, err := scanDocument(row)
	if isNoRows(err) {
		return Document{}, notFound("document", name)
	}
	if err != nil {
		return Document{}, fmt.Errorf("finding document: %w", err)
	}
	return d, nil
}

// ListDocuments returns the documents directly inside folderID ("" for root).
func (s *Store) ListDocuments(ctx context.Context, folderID string) ([]Document, error) {
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE COALESCE(folder_id, '') = ?
		ORDER BY name`, folderID)
}

// ListByStatus returns documents in a status, oldest update first.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]Document, error) {
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE status = ?
		ORDER BY updated_at`, string(status))
}

// DocumentsUnder returns every document in folderID and its descendants.
func (s *Store) DocumentsUnder(ctx context.Context, folderID string) ([]Document, error) {
	return s.queryDocuments(ctx, `
		WITH RECURSIVE tree(id) AS (
			SELECT id FROM folders WHERE id = ?
			UNION ALL
			SELECT f.id FROM folders f JOIN tree t ON f.parent_id = t.id
		)
		SELECT `+documentColumns+` FROM documents
		WHERE folder_id IN (SELECT id FROM tree)
		ORDER BY name`, folderID)
}

// RenameDocument changes a document's name.
func (s *Store) RenameDocument(ctx context.Context, id, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("document %q: %w", name, ErrInvalidName)
	}
	return s.updateDocument(ctx, id, `UPDATE documents SET name = ?, updated_at = ? WHERE id = ?`, name, s.stamp(), id)
}

// MoveDocument moves a document into folderID ("" for root).
func (s *Store) MoveDocument(ctx context.Context, id, folderID string) error {
	return s.updateDocument(ctx, id, `UPDATE documents SET folder_id = ?, updated_at = ? WHERE id = ?`,
		nullString(folderID), s.stamp(), id)
}

// DeleteDocument removes a document row.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.updateDocument(ctx, id, `DELETE FROM documents WHERE id = ?`, id)
}

func (s *Store) updateDocument(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("document %s: %w", id, ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("document", id)
	}
	return nil
}

type attemptChange int

const (
	keepAttempts attemptChange = iota
	countAttempt
	resetAttempts
)

// MarkProcessing starts a processing attempt. It is allowed from processing
// (first attempt) and from error (a retry after a failed attempt) and counts
// the attempt.
func (s *Store) MarkProcessing(ctx context.Context, id string) (Document, error) {
	return s.transition(ctx, id, StatusProcessing, "", countAttempt, StatusProcessing, StatusError)
}

// MarkReady ends a successful attempt.
func (s *Store) MarkReady(ctx context.Context, id string) (Document, error) {
	return s.transition(ctx, id, StatusReady, "", keepAttempts, StatusProcessing)
}

// MarkError ends a failed attempt with a message.
func (s *Store) MarkError(ctx context.Context, id, message string) (Document, error) {
	if strings.TrimSpace(message) == "" {
		message = "unknown error"
	}
	return s.transition(ctx, id, StatusError, message, keepAttempts, StatusProcessing)
}

// Reprocess resets an error document to processing for a fresh run.
func (s *Store) Reprocess(ctx context.Context, id string) (Document, error) {
	return s.transition(ctx, id, StatusProcessing, "", resetAttempts, StatusError)
}

// transition applies a status change inside one write transaction, after
// checking the current status is one of from.
func (s *Store) transition(ctx context.Context, id string, to Status, message string, change attemptChange, from ...Status) (Document, error) {
	var doc Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
		cur, err := scanDocument(row)
		if isNoRows(err) {
			return notFound("document", id)
		}
		if err != nil {
			return fmt.Errorf("reading document: %w", err)
		}
		if !slices.Contains(from, cur.Status) {
			return &TransitionError{ID: id, From: cur.Status, To: to}
		}

		switch change {
		case countAttempt:
			cur.Attempts++
		case resetAttempts:
			cur.Attempts = 0
		}

		now := s.stamp()
		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET status = ?, error_message = ?, attempts = ?, updated_at = ?
			WHERE id = ?`, string(to), nullString(message), cur.Attempts, now, id)
		if err != nil {
			return fmt.Errorf("updating status: %w", err)
		}

		cur.Status, cur.ErrorMessage, cur.UpdatedAt = to, message, fromMillis(now)
		doc = cur
		return nil
	})
	return doc, err
}

// SweepStale moves documents that have been processing for longer than
// olderThan to error with StaleMessage, returning their ids.
func (s *Store) SweepStale(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := s.now().Add(-olderThan).UnixMilli()
	var ids []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			UPDATE documents SET status = ?, error_message = ?, updated_at = ?
			WHERE status = ? AND updated_at < ?
			RETURNING id`,
			string(StatusError), StaleMessage, s.stamp(), string(StatusProcessing), cutoff)
		if err != nil {
			return fmt.Errorf("sweeping stale documents: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scanning swept id: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// Statuses reports the status of each id in order. Unknown ids get
// StatusNotFound instead of being omitted.
func (s *Store) Statuses(ctx context.Context, ids []string) ([]StatusReport, error) {
	reports := make([]StatusReport, 0, len(ids))
	for _, id := range ids {
		d, err := s.GetDocument(ctx, id)
		if err != nil {
			if isNotFound(err) {
				reports = append(reports, StatusReport{ID: id, Status: StatusNotFound})
				continue
			}
			return nil, err
		}
		updated := d.UpdatedAt
		reports = append(reports, StatusReport{
			ID:        d.ID,
			Name:      d.Name,
			Status:    d.Status,
			Error:     d.ErrorMessage,
			UpdatedAt: &updated,
		})
	}
	return reports, nil
}
