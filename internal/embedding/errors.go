package embedding

import "errors"

var (
	// ErrMissingAPIKey is a configuration error: no credential for the
	// embedding service. It is never retried.
	ErrMissingAPIKey = errors.New("embedding: OPENAI_API_KEY not set")

	// ErrLengthMismatch means the number of vectors produced differs from
	// the number of inputs.
	ErrLengthMismatch = errors.New("embedding: vector count does not match input count")

	// ErrAllFailed means every chunk failed and only zero vectors would be
	// returned.
	ErrAllFailed = errors.New("embedding: all chunks failed")
)
