// Package splitter partitions extracted text into bounded, overlapping
// chunks, cutting at the most structural separator that still fits.
package splitter

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/language"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultOverlap is the carry-over between consecutive chunks.
	DefaultOverlap = 200
	// MinTextLength is the shortest text worth splitting. Anything shorter
	// usually means extraction failed upstream.
	MinTextLength = 10
	// longTextRunes is the length above which default chunks are doubled
	// to keep chunk counts manageable.
	longTextRunes = 500_000
)

// Chunk is one span of the source text. Start and End are byte offsets, so
// text[Start:End] == Text.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// Splitter splits text using a language-dependent separator list.
type Splitter struct {
	size       int
	overlap    int
	overridden bool
	table      *language.Table
	logger     *slog.Logger
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.size = size
			s.overridden = true
		}
	}
}

// WithOverlap sets the overlap in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
			s.overridden = true
		}
	}
}

// WithProfiles sets the language profile table that supplies separators.
func WithProfiles(t *language.Table) Option {
	return func(s *Splitter) { s.table = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Splitter) { s.logger = l }
}

// New creates a splitter with defaults of 1000/200 characters.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		size:    DefaultChunkSize,
		overlap: DefaultOverlap,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.table == nil {
		s.table = language.DefaultTable()
	}
	if s.overlap >= s.size {
		s.overlap = s.size / 5
	}
	return s
}

// Split partitions text written in lang. It never fails: if the separator
// algorithm breaks down, fixed windows are used, and if those yield nothing
// the whole text becomes one chunk.
func (s *Splitter) Split(text, lang string) []Chunk {
	total := utf8.RuneCountInString(text)
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextLength {
		return nil
	}

	size, overlap := s.params(total)
	if total <= size {
		return []Chunk{{Index: 0, Text: text, Start: 0, End: len(text)}}
	}

	spans, err := s.recursive(text, s.table.Separators(lang), size, overlap)
	if err != nil || len(spans) == 0 {
		s.logger.Warn("separator splitting failed, using fixed windows", "error", err)
		spans = windows(text, size, overlap)
	}
	if len(spans) == 0 {
		return []Chunk{{Index: 0, Text: text, Start: 0, End: len(text)}}
	}

	chunks := make([]Chunk, len(spans))
	for i, sp := range spans {
		chunks[i] = Chunk{Index: i, Text: text[sp.start:sp.end], Start: sp.start, End: sp.end}
	}
	return chunks
}

// Texts is Split without offsets.
func (s *Splitter) Texts(text, lang string) []string {
	chunks := s.Split(text, lang)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// params adapts the defaults to the input length. Explicit options are
// used as given.
func (s *Splitter) params(total int) (int, int) {
	if s.overridden {
		return s.size, s.overlap
	}
	switch {
	case total < s.size:
		// Shrink proportionally; the whole text becomes one chunk.
		return total, s.overlap * total / s.size
	case total > longTextRunes:
		return s.size * 2, s.overlap * 2
	}
	return s.size, s.overlap
}

func (s *Splitter) recursive(text string, seps []string, size, overlap int) (spans []span, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("splitter panic: %v", r)
		}
	}()
	m := merger{size: size, overlap: overlap}
	return m.split(text, 0, seps), nil
}
