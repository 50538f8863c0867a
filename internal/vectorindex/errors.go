package vectorindex

import "errors"

var (
	// ErrNoDocumentID is returned when metadata lacks a document_id.
	ErrNoDocumentID = errors.New("metadata has no document_id")

	// ErrEmptyQuery is returned when a search has neither text, vector nor filter.
	ErrEmptyQuery = errors.New("search needs a query, a vector or a filter")
)
