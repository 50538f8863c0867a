// Package library implements the user-facing document operations: uploads,
// folder management and deletion. It keeps the relational store, the files
// on disk, the derived indexes and the task queue consistent.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/extract"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/filestore"
)

// Submitter queues a document for processing.
type Submitter interface {
	Submit(id string) error
}

// Cleaner removes a document's derived data: chunks and graph.
type Cleaner interface {
	Remove(ctx context.Context, documentID string) error
}

// Library ties the document store, the file store and the task queue.
type Library struct {
	docs    *documents.Store
	files   *filestore.Store
	tasks   Submitter
	cleaner Cleaner
	logger  *slog.Logger
}

// Option configures a Library.
type Option func(*Library)

// WithCleaner sets the derived-data cleaner used on deletion.
func WithCleaner(c Cleaner) Option {
	return func(l *Library) { l.cleaner = c }
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Library) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// New creates a Library.
func New(docs *documents.Store, files *filestore.Store, tasks Submitter, opts ...Option) *Library {
	l := &Library{docs: docs, files: files, tasks: tasks, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Upload stores r as name inside a folder ("" for the root), records the
// document and queues it. Images are stored as ready without processing.
func (l *Library) Upload(ctx context.Context, folderID, name string, r io.Reader) (documents.Document, error) {
	name = strings.TrimSpace(filepath.Base(name))
	if !documents.ValidName(name) {
		return documents.Document{}, fmt.Errorf("upload %q: %w", name, documents.ErrInvalidName)
	}
	if !accepted(name) {
		return documents.Document{}, fmt.Errorf("upload %q: %w", name, ErrUnsupportedType)
	}
	folders, err := l.folderPath(ctx, folderID)
	if err != nil {
		return documents.Document{}, err
	}
	if _, err := l.docs.FindDocument(ctx, folderID, name); err == nil {
		return documents.Document{}, fmt.Errorf("upload %q: %w", name, documents.ErrDuplicateName)
	}

	path, size, err := l.files.Save(folders, name, r)
	if err != nil {
		return documents.Document{}, fmt.Errorf("save upload: %w", err)
	}
	doc, err := l.record(ctx, folderID, path, size)
	if errors.Is(err, documents.ErrDuplicateName) {
		// The watcher registered the file first.
		if existing, ferr := l.docs.FindDocument(ctx, folderID, name); ferr == nil {
			return existing, nil
		}
	}
	if err != nil {
		if rerr := l.files.RemoveFile(path); rerr != nil {
			l.logger.Warn("failed to remove orphaned upload", "path", path, "error", rerr)
		}
		return documents.Document{}, err
	}
	return doc, nil
}

// Register records a file that already sits in the documents tree, creating
// its folders. It returns false when the file was already known.
func (l *Library) Register(ctx context.Context, path string) (documents.Document, bool, error) {
	folders, name, err := l.files.Rel(path)
	if err != nil {
		return documents.Document{}, false, err
	}
	if !accepted(name) || strings.HasPrefix(name, ".") {
		return documents.Document{}, false, fmt.Errorf("register %q: %w", name, ErrUnsupportedType)
	}
	info, err := os.Stat(path)
	if err != nil {
		return documents.Document{}, false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return documents.Document{}, false, fmt.Errorf("register %s: is a directory", path)
	}

	folderID, err := l.docs.EnsureFolderPath(ctx, folders)
	if err != nil {
		return documents.Document{}, false, fmt.Errorf("ensure folders: %w", err)
	}
	if doc, err := l.docs.FindDocument(ctx, folderID, name); err == nil {
		return doc, false, nil
	} else if !errors.Is(err, documents.ErrNotFound) {
		return documents.Document{}, false, err
	}

	doc, err := l.record(ctx, folderID, path, info.Size())
	if err != nil {
		return documents.Document{}, false, err
	}
	return doc, true, nil
}

// record inserts the document row for a stored file and queues it.
func (l *Library) record(ctx context.Context, folderID, path string, size int64) (documents.Document, error) {
	name := filepath.Base(path)
	doc := documents.Document{
		Name:     name,
		FileType: fileType(name),
		MimeType: detectMIME(path),
		Size:     size,
		FolderID: folderID,
		Status:   documents.StatusProcessing,
	}
	image := extract.IsImage(name)
	if image {
		doc.Status = documents.StatusReady
	}
	if err := l.docs.CreateDocument(ctx, &doc); err != nil {
		return documents.Document{}, fmt.Errorf("create document: %w", err)
	}
	log := l.logger.With("document_id", doc.ID, "name", name, "folder_id", folderID)
	if image {
		log.Info("image stored, processing skipped")
		return doc, nil
	}

	if err := l.tasks.Submit(doc.ID); err != nil {
		log.Error("failed to queue document", "error", err)
		if updated, merr := l.docs.MarkError(ctx, doc.ID, "Could not queue document for processing: "+err.Error()); merr == nil {
			doc = updated
		}
		return doc, nil
	}
	log.Info("document queued", "size", size, "mime_type", doc.MimeType)
	return doc, nil
}

// DeleteDocument removes the file, the derived data and the row. The file
// goes first: if it cannot be removed, the document is left intact.
func (l *Library) DeleteDocument(ctx context.Context, id string) error {
	doc, err := l.docs.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	path, err := l.documentPath(ctx, doc)
	if err != nil {
		return err
	}
	if err := l.files.RemoveFile(path); err != nil {
		return fmt.Errorf("remove file: %w", err)
	}
	l.clean(ctx, id)
	if err := l.docs.DeleteDocument(ctx, id); err != nil {
		return err
	}
	l.logger.Info("document deleted", "document_id", id, "name", doc.Name)
	return nil
}

// RenameDocument renames the row and the file.
func (l *Library) RenameDocument(ctx context.Context, id, name string) error {
	doc, err := l.docs.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !documents.ValidName(name) {
		return fmt.Errorf("rename %q: %w", name, documents.ErrInvalidName)
	}
	if fileType(name) != doc.FileType {
		return fmt.Errorf("rename %q: %w: extension must stay .%s", name, ErrUnsupportedType, doc.FileType)
	}
	folders, err := l.folderPath(ctx, doc.FolderID)
	if err != nil {
		return err
	}
	return l.relocate(ctx, doc, folders, name, func() error {
		return l.docs.RenameDocument(ctx, id, name)
	})
}

// MoveDocument moves the row and the file to another folder.
func (l *Library) MoveDocument(ctx context.Context, id, folderID string) error {
	doc, err := l.docs.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	folders, err := l.folderPath(ctx, folderID)
	if err != nil {
		return err
	}
	return l.relocate(ctx, doc, folders, doc.Name, func() error {
		return l.docs.MoveDocument(ctx, id, folderID)
	})
}

// relocate updates the row first so name conflicts surface before the file
// moves.
func (l *Library) relocate(ctx context.Context, doc documents.Document, folders []string, name string, update func() error) error {
	from, err := l.documentPath(ctx, doc)
	if err != nil {
		return err
	}
	to, err := l.files.Path(folders, name)
	if err != nil {
		return err
	}
	if err := update(); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if err := l.files.Move(from, to); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("move file: %w", err)
	}
	return nil
}

// CreateFolder creates a folder under parentID ("" for the root).
func (l *Library) CreateFolder(ctx context.Context, name, parentID string) (documents.Folder, error) {
	return l.docs.CreateFolder(ctx, name, parentID)
}

// EnsureFolders returns the folder at names below parentID, creating
// missing folders.
func (l *Library) EnsureFolders(ctx context.Context, parentID string, names []string) (string, error) {
	return l.docs.EnsureFolderPathUnder(ctx, parentID, names)
}

// RenameFolder renames the folder and its directory.
func (l *Library) RenameFolder(ctx context.Context, id, name string) error {
	from, err := l.docs.FolderPath(ctx, id)
	if err != nil {
		return err
	}
	if err := l.docs.RenameFolder(ctx, id, name); err != nil {
		return err
	}
	to, err := l.docs.FolderPath(ctx, id)
	if err != nil {
		return err
	}
	if err := l.files.MoveDir(from, to); err != nil {
		if rerr := l.docs.RenameFolder(ctx, id, from[len(from)-1]); rerr != nil {
			l.logger.Error("failed to roll back folder rename", "folder_id", id, "error", rerr)
		}
		return fmt.Errorf("rename directory: %w", err)
	}
	return nil
}

// MoveFolder moves the folder under parentID and moves its directory.
func (l *Library) MoveFolder(ctx context.Context, id, parentID string) error {
	folder, err := l.docs.GetFolder(ctx, id)
	if err != nil {
		return err
	}
	from, err := l.docs.FolderPath(ctx, id)
	if err != nil {
		return err
	}
	if err := l.docs.MoveFolder(ctx, id, parentID); err != nil {
		return err
	}
	to, err := l.docs.FolderPath(ctx, id)
	if err != nil {
		return err
	}
	if err := l.files.MoveDir(from, to); err != nil {
		if rerr := l.docs.MoveFolder(ctx, id, folder.ParentID); rerr != nil {
			l.logger.Error("failed to roll back folder move", "folder_id", id, "error", rerr)
		}
		return fmt.Errorf("move directory: %w", err)
	}
	return nil
}

// DeleteFolder removes a folder, its subfolders and every document below
// it, including files and derived data.
func (l *Library) DeleteFolder(ctx context.Context, id string) error {
	path, err := l.docs.FolderPath(ctx, id)
	if err != nil {
		return err
	}
	docs, err := l.docs.DocumentsUnder(ctx, id)
	if err != nil {
		return err
	}
	for _, d := range docs {
		l.clean(ctx, d.ID)
	}
	if err := l.files.RemoveDir(path); err != nil {
		return fmt.Errorf("remove directory: %w", err)
	}
	if err := l.docs.DeleteFolder(ctx, id); err != nil {
		return err
	}
	l.logger.Info("folder deleted", "folder_id", id, "path", strings.Join(path, "/"), "documents", len(docs))
	return nil
}

// DocumentPath returns the file path of a document.
func (l *Library) DocumentPath(ctx context.Context, id string) (string, error) {
	doc, err := l.docs.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return l.documentPath(ctx, doc)
}

func (l *Library) documentPath(ctx context.Context, doc documents.Document) (string, error) {
	folders, err := l.folderPath(ctx, doc.FolderID)
	if err != nil {
		return "", err
	}
	return l.files.Path(folders, doc.Name)
}

func (l *Library) folderPath(ctx context.Context, folderID string) ([]string, error) {
	if folderID == "" {
		return nil, nil
	}
	return l.docs.FolderPath(ctx, folderID)
}

// clean removes derived data. Failures are logged: the source of truth is
// already gone or about to be.
func (l *Library) clean(ctx context.Context, id string) {
	if l.cleaner == nil {
		return
	}
	if err := l.cleaner.Remove(ctx, id); err != nil {
		l.logger.Warn("failed to remove derived data", "document_id", id, "error", err)
	}
}

func accepted(name string) bool {
	return extract.Supported(name) || extract.IsImage(name)
}

func fileType(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// detectMIME uses the extension and falls back to sniffing the content.
func detectMIME(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	return http.DetectContentType(head[:n])
}
