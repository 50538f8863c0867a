package documents

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const folderColumns = `id, name, parent_id, created_at, updated_at`

func scanFolder(row rowScanner) (Folder, error) {
	var f Folder
	var parent sql.NullString
	var created, updated int64
	if err := row.Scan(&f.ID, &f.Name, &parent, &created, &updated); err != nil {
		return Folder{}, err
	}
	f.ParentID = parent.String
	f.CreatedAt = fromMillis(created)
	f.UpdatedAt = fromMillis(updated)
	return f, nil
}

// CreateFolder creates a folder under parentID ("" for root). Names are
// unique among siblings.
func (s *Store) CreateFolder(ctx context.Context, name, parentID string) (Folder, error) {
	name = strings.TrimSpace(name)
	if !ValidName(name) {
		return Folder{}, fmt.Errorf("folder %q: %w", name, ErrInvalidName)
	}
	if parentID != "" {
		if _, err := s.GetFolder(ctx, parentID); err != nil {
			return Folder{}, err
		}
	}

	now := s.stamp()
	f := Folder{ID: newID(), Name: name, ParentID: parentID, CreatedAt: fromMillis(now), UpdatedAt: fromMillis(now)}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (`+folderColumns+`) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Name, nullString(parentID), now, now)
	if isUniqueViolation(err) {
		return Folder{}, fmt.Errorf("folder %q: %w", name, ErrDuplicateName)
	}
	if err != nil {
		return Folder{}, fmt.Errorf("inserting folder: %w", err)
	}
	return f, nil
}

// GetFolder returns a folder by id.
func (s *Store) GetFolder(ctx context.Context, id string) (Folder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = ?`, id)
	f, err := scanFolder(row)
	if isNoRows(err) {
		return Folder{}, notFound("folder", id)
	}
	if err != nil {
		return Folder{}, fmt.Errorf("getting folder: %w", err)
	}
	return f, nil
}

// ListFolders returns the folders directly under parentID ("" for root).
func (s *Store) ListFolders(ctx context.Context, parentID string) ([]Folder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+folderColumns+` FROM folders
		WHERE COALESCE(parent_id, '') = ?
		ORDER BY name`, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// RenameFolder changes a folder's name.
func (s *Store) RenameFolder(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if !ValidName(name) {
		return fmt.Errorf("folder %q: %w", name, ErrInvalidName)
	}
	return s.updateFolder(ctx, id, `UPDATE folders SET name = ?, updated_at = ? WHERE id = ?`, name, s.stamp(), id)
}

// MoveFolder re-parents a folder. Moving a folder under itself or one of its
// descendants is refused.
func (s *Store) MoveFolder(ctx context.Context, id, parentID string) error {
	if parentID != "" {
		ancestors, err := s.ancestors(ctx, parentID)
		if err != nil {
			return err
		}
		for _, a := range ancestors {
			if a.ID == id {
				return fmt.Errorf("folder %s: %w", id, ErrFolderCycle)
			}
		}
	}
	return s.updateFolder(ctx, id, `UPDATE folders SET parent_id = ?, updated_at = ? WHERE id = ?`,
		nullString(parentID), s.stamp(), id)
}

// DeleteFolder removes a folder; subfolders and their documents go with it.
func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	return s.updateFolder(ctx, id, `DELETE FROM folders WHERE id = ?`, id)
}

func (s *Store) updateFolder(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("folder %s: %w", id, ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("updating folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("folder", id)
	}
	return nil
}

// ancestors returns id's folder followed by its parents up to the root.
func (s *Store) ancestors(ctx context.Context, id string) ([]Folder, error) {
	var chain []Folder
	seen := make(map[string]bool)
	for cur := id; cur != ""; {
		if seen[cur] {
			return nil, fmt.Errorf("folder %s: %w", id, ErrFolderCycle)
		}
		seen[cur] = true
		f, err := s.GetFolder(ctx, cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, f)
		cur = f.ParentID
	}
	return chain, nil
}

// FolderPath returns the folder names from the root down to id. The root
// ("") has an empty path.
func (s *Store) FolderPath(ctx context.Context, id string) ([]string, error) {
	chain, err := s.ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(chain))
	for i, f := range chain {
		names[len(chain)-1-i] = f.Name
	}
	return names, nil
}

// EnsureFolderPath returns the id of the folder at names below the root,
// creating missing folders. An empty path is the root ("").
func (s *Store) EnsureFolderPath(ctx context.Context, names []string) (string, error) {
	return s.EnsureFolderPathUnder(ctx, "", names)
}

// EnsureFolderPathUnder is EnsureFolderPath starting at parent.
func (s *Store) EnsureFolderPathUnder(ctx context.Context, parent string, names []string) (string, error) {
	for _, name := range names {
		folders, err := s.ListFolders(ctx, parent)
		if err != nil {
			return "", err
		}
		next := ""
		for _, f := range folders {
			if f.Name == name {
				next = f.ID
				break
			}
		}
		if next == "" {
			f, err := s.CreateFolder(ctx, name, parent)
			if err != nil {
				return "", err
			}
			next = f.ID
		}
		parent = next
	}
	return parent, nil
}
