package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
)

// Library receives imported files. library.Library implements it.
type Library interface {
	EnsureFolders(ctx context.Context, parentID string, names []string) (string, error)
	Upload(ctx context.Context, folderID, name string, r io.Reader) (documents.Document, error)
}

// ImportResult contains statistics about an import.
type ImportResult struct {
	Source      string
	CommitSHA   string
	TotalFiles  int
	Imported    []string
	Skipped     []string
	FailedFiles []FailedFile
	Duration    time.Duration
}

// FailedFile is a file that could not be imported.
type FailedFile struct {
	Path   string
	Reason string
}

// Importer copies a repository directory into a folder, preserving its
// subdirectories as subfolders. Every imported file is queued for
// processing by the library.
type Importer struct {
	fetcher *Fetcher
	library Library
	logger  *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(fetcher *Fetcher, library Library, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{fetcher: fetcher, library: library, logger: logger}
}

// Import copies every supported file below the source path into folderID
// ("" for the root). Files that already exist are skipped; other per-file
// failures are recorded and the import continues.
func (im *Importer) Import(ctx context.Context, folderID string) (*ImportResult, error) {
	start := time.Now()
	result := &ImportResult{Source: im.fetcher.source.String()}

	sha, err := im.fetcher.LatestCommitSHA(ctx)
	if err != nil {
		return nil, fmt.Errorf("get commit SHA: %w", err)
	}
	result.CommitSHA = sha
	im.logger.Info("Starting import", "source", result.Source, "commit", sha)

	files, err := im.fetcher.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	result.TotalFiles = len(files)
	im.logger.Info("Found files", "count", len(files))

	for _, f := range files {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		skipped, err := im.importFile(ctx, folderID, f)
		switch {
		case err != nil:
			im.logger.Warn("Failed to import file", "path", f.Path, "error", err)
			result.FailedFiles = append(result.FailedFiles, FailedFile{Path: f.Path, Reason: err.Error()})
		case skipped:
			result.Skipped = append(result.Skipped, f.Path)
		default:
			result.Imported = append(result.Imported, f.Path)
		}
	}

	result.Duration = time.Since(start)
	im.logger.Info("Import complete",
		"imported", len(result.Imported),
		"skipped", len(result.Skipped),
		"failed", len(result.FailedFiles),
		"duration", result.Duration,
	)
	return result, nil
}

func (im *Importer) importFile(ctx context.Context, folderID string, f RemoteFile) (bool, error) {
	dir, name := path.Split(f.Path)
	target := folderID
	if dir = strings.Trim(dir, "/"); dir != "" {
		id, err := im.library.EnsureFolders(ctx, folderID, strings.Split(dir, "/"))
		if err != nil {
			return false, fmt.Errorf("create folders: %w", err)
		}
		target = id
	}

	content, err := im.fetcher.Fetch(ctx, f.Path)
	if err != nil {
		return false, err
	}
	doc, err := im.library.Upload(ctx, target, name, bytes.NewReader(content))
	if errors.Is(err, documents.ErrDuplicateName) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	im.logger.Debug("Imported file", "path", f.Path, "document_id", doc.ID, "size", len(content))
	return false, nil
}
