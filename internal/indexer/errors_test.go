package indexer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no text", ErrNoText, "No text extracted from document"},
		{"wrapped no chunks", fmt.Errorf("attempt 2: %w", ErrNoChunks), "Failed to split text into chunks"},
		{"config", fmt.Errorf("%w: missing key", ErrConfig), "configuration error: missing key"},
		{"other", errors.New("vector store timeout"), "vector store timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}
