// Package diagnostics keeps a per-document stream of pipeline stages and LLM
// traffic in msgpack files, separate from the status fields users see.
package diagnostics

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/graph"
)

// Record kinds.
const (
	KindStage    = "stage"
	KindRequest  = "request"
	KindResponse = "response"
	KindEntities = "entities"
)

const fileExt = ".msgpack"

// Record is one entry of a document's diagnostic stream.
type Record struct {
	ID         string            `json:"id" msgpack:"id"`
	Time       time.Time         `json:"time" msgpack:"time"`
	DocumentID string            `json:"document_id" msgpack:"document_id"`
	Kind       string            `json:"kind" msgpack:"kind"`
	Stage      string            `json:"stage,omitempty" msgpack:"stage,omitempty"`
	Status     string            `json:"status,omitempty" msgpack:"status,omitempty"`
	ChunkIndex int               `json:"chunk_index" msgpack:"chunk_index"`
	Text       string            `json:"text,omitempty" msgpack:"text,omitempty"`
	Error      string            `json:"error,omitempty" msgpack:"error,omitempty"`
	Details    map[string]any    `json:"details,omitempty" msgpack:"details,omitempty"`
	Extraction *graph.Extraction `json:"extraction,omitempty" msgpack:"extraction,omitempty"`
}

// Recorder appends Records to <dir>/<document_id>.msgpack. It implements
// graph.Observer.
type Recorder struct {
	dir     string
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

var _ graph.Observer = (*Recorder)(nil)

// NewRecorder creates dir if needed and returns a Recorder writing into it.
func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create diagnostics dir: %w", err)
	}
	return &Recorder{dir: dir, entropy: ulid.Monotonic(rand.Reader, 0), now: time.Now}, nil
}

// Stage records a pipeline stage transition.
func (r *Recorder) Stage(_ context.Context, documentID, stage, status string, details map[string]any) {
	r.write(Record{DocumentID: documentID, Kind: KindStage, Stage: stage, Status: status, Details: details})
}

// OnRequest implements graph.Observer.
func (r *Recorder) OnRequest(_ context.Context, documentID string, chunkIndex int, prompt string) {
	r.write(Record{DocumentID: documentID, Kind: KindRequest, ChunkIndex: chunkIndex, Text: prompt})
}

// OnResponse implements graph.Observer.
func (r *Recorder) OnResponse(_ context.Context, documentID string, chunkIndex int, response string, err error) {
	rec := Record{DocumentID: documentID, Kind: KindResponse, ChunkIndex: chunkIndex, Text: response}
	if err != nil {
		rec.Error = err.Error()
	}
	r.write(rec)
}

// OnEntities implements graph.Observer.
func (r *Recorder) OnEntities(_ context.Context, documentID string, chunkIndex int, ext graph.Extraction) {
	r.write(Record{DocumentID: documentID, Kind: KindEntities, ChunkIndex: chunkIndex, Extraction: &ext})
}

// Clear removes a document's stream.
func (r *Recorder) Clear(documentID string) error {
	err := os.Remove(r.path(documentID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Dir returns the directory holding the streams.
func (r *Recorder) Dir() string { return r.dir }

// write never fails the caller: diagnostics are best-effort.
func (r *Recorder) write(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	rec.ID = ulid.MustNew(ulid.Timestamp(now), r.entropy).String()
	rec.Time = now.UTC()

	f, err := os.OpenFile(r.path(rec.DocumentID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_ = msgpack.NewEncoder(f).Encode(&rec)
}

func (r *Recorder) path(documentID string) string {
	return filepath.Join(r.dir, safeName(documentID)+fileExt)
}

// Read returns every record stored for a document, oldest first.
func Read(dir, documentID string) ([]Record, error) {
	f, err := os.Open(filepath.Join(dir, safeName(documentID)+fileExt))
	if err != nil {
		return nil, fmt.Errorf("open diagnostics: %w", err)
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	var records []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return records, fmt.Errorf("decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// List returns the document ids that have a stream in dir.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator || r == ':' {
			return '_'
		}
		return r
	}, id)
}
