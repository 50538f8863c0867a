package indexer

import (
	"errors"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/embedding"
)

var (
	// ErrNoText is a hard failure: extraction produced no usable text.
	ErrNoText = errors.New("no text extracted from document")

	// ErrNoChunks is a hard failure: the splitter produced no chunks.
	ErrNoChunks = errors.New("failed to split text into chunks")

	// ErrConfig wraps configuration errors found while processing.
	ErrConfig = errors.New("configuration error")
)

// IsPermanent reports whether retrying err cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNoText) ||
		errors.Is(err, ErrNoChunks) ||
		errors.Is(err, ErrConfig) ||
		errors.Is(err, embedding.ErrMissingAPIKey)
}

// Message returns the text stored as a document's error message.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrNoText):
		return "No text extracted from document"
	case errors.Is(err, ErrNoChunks):
		return "Failed to split text into chunks"
	default:
		return err.Error()
	}
}
