package github

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/extract"
)

// Source names a directory in a repository.
type Source struct {
	Owner string
	Repo  string
	// Ref is a branch, tag or commit. Empty means the default branch.
	Ref string
	// Path is the directory to import. Empty means the repository root.
	Path string
}

// String returns owner/repo/path@ref.
func (s Source) String() string {
	out := s.Owner + "/" + s.Repo
	if s.Path != "" {
		out += "/" + strings.Trim(s.Path, "/")
	}
	if s.Ref != "" {
		out += "@" + s.Ref
	}
	return out
}

// ParseSource parses owner/repo[/path][@ref].
func ParseSource(s string) (Source, error) {
	var src Source
	if at := strings.LastIndex(s, "@"); at >= 0 {
		src.Ref = s[at+1:]
		s = s[:at]
	}
	parts := strings.SplitN(strings.Trim(s, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Source{}, fmt.Errorf("invalid source %q: want owner/repo[/path][@ref]", s)
	}
	src.Owner, src.Repo = parts[0], parts[1]
	if len(parts) == 3 {
		src.Path = parts[2]
	}
	return src, nil
}

// RemoteFile is a supported file found in the source directory.
type RemoteFile struct {
	// Path is relative to Source.Path.
	Path string
	SHA  string
	Size int
}

// Fetcher lists and downloads supported files from a repository directory.
type Fetcher struct {
	client *Client
	source Source
}

// NewFetcher creates a fetcher for one source.
func NewFetcher(client *Client, source Source) *Fetcher {
	return &Fetcher{client: client, source: source}
}

// ListFiles recursively lists every file the extractor supports.
func (f *Fetcher) ListFiles(ctx context.Context) ([]RemoteFile, error) {
	return f.listRecursive(ctx, strings.Trim(f.source.Path, "/"), "")
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]RemoteFile, error) {
	_, dirContents, _, err := f.client.Repositories.GetContents(
		ctx, f.source.Owner, f.source.Repo, fullPath, f.options())
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	var files []RemoteFile
	for _, item := range dirContents {
		name := item.GetName()
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		itemRelPath := path.Join(relativePath, name)

		switch item.GetType() {
		case "file":
			if extract.Supported(name) {
				files = append(files, RemoteFile{Path: itemRelPath, SHA: item.GetSHA(), Size: item.GetSize()})
			}
		case "dir":
			sub, err := f.listRecursive(ctx, path.Join(fullPath, name), itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}
	return files, nil
}

// Fetch returns the content of a listed file. Files too large for the
// contents API are downloaded through their raw URL.
func (f *Fetcher) Fetch(ctx context.Context, relativePath string) ([]byte, error) {
	fullPath := path.Join(strings.Trim(f.source.Path, "/"), relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(
		ctx, f.source.Owner, f.source.Repo, fullPath, f.options())
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	if fileContent.Content != nil && fileContent.GetEncoding() != "none" {
		content, err := fileContent.GetContent()
		if err != nil {
			return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
		}
		return []byte(content), nil
	}

	rc, _, err := f.client.Repositories.DownloadContents(
		ctx, f.source.Owner, f.source.Repo, fullPath, f.options())
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", fullPath, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fullPath, err)
	}
	return data, nil
}

// LatestCommitSHA returns the most recent commit touching the source path.
func (f *Fetcher) LatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx, f.source.Owner, f.source.Repo,
		&github.CommitsListOptions{
			SHA:         f.source.Ref,
			Path:        f.source.Path,
			ListOptions: github.ListOptions{PerPage: 1},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.source.Path)
	}
	if commits[0].SHA == nil {
		return "", fmt.Errorf("commit SHA is nil")
	}
	return *commits[0].SHA, nil
}

func (f *Fetcher) options() *github.RepositoryContentGetOptions {
	if f.source.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.source.Ref}
}
