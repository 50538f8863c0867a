// Package extract converts stored files into raw text. Each format has an
// ordered cascade of strategies; extraction never fails, it returns the best
// text it could find or an empty string.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/language"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/markdown"
)

const (
	// DefaultMinLength is the number of characters below which a strategy's
	// output counts as insufficient.
	DefaultMinLength = 100
	// DefaultMaxOCRPages caps how many pages are rasterized for OCR.
	DefaultMaxOCRPages = 50
	// DefaultDPI is the rasterization resolution for OCR.
	DefaultDPI = 300
	// DefaultToolTimeout bounds one external tool invocation.
	DefaultToolTimeout = 2 * time.Minute
)

// legacyPlaceholder is returned for .doc files when every strategy fails so
// that later stages still receive text.
const legacyPlaceholder = "Legacy Microsoft Word document %q. Its text could not be extracted automatically. " +
	"The original file is stored unchanged; convert it to DOCX or PDF and upload it again to make its contents searchable."

// Extractor dispatches files to per-format cascades.
type Extractor struct {
	runner    CommandRunner
	detector  *language.Detector
	markdown  *markdown.Converter
	minLength int
	maxPages  int
	dpi       int
	logger    *slog.Logger
	cascades  map[string]Cascade
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRunner replaces the external tool runner.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithMinLength sets the sufficiency threshold.
func WithMinLength(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minLength = n
		}
	}
}

// WithOCR sets the OCR page cap and rasterization DPI.
func WithOCR(maxPages, dpi int) Option {
	return func(e *Extractor) {
		if maxPages > 0 {
			e.maxPages = maxPages
		}
		if dpi > 0 {
			e.dpi = dpi
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an extractor. A nil detector uses the built-in language
// profiles.
func New(detector *language.Detector, opts ...Option) *Extractor {
	if detector == nil {
		detector = language.NewDetector(nil)
	}
	e := &Extractor{
		runner:    ExecRunner{Timeout: DefaultToolTimeout},
		detector:  detector,
		markdown:  markdown.NewConverter(),
		minLength: DefaultMinLength,
		maxPages:  DefaultMaxOCRPages,
		dpi:       DefaultDPI,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.cascades = map[string]Cascade{
		".txt": {Format: "txt", Strategies: []Strategy{textStrategy("plain-text", readPlainText)}},
		".md": {Format: "markdown", Strategies: []Strategy{
			NewStrategy("goldmark", e.readMarkdown),
			textStrategy("plain-text", readPlainText),
		}},
		".pdf": {Format: "pdf", Strategies: []Strategy{
			textStrategy("pdftotext-layout", e.pdfToText),
			textStrategy("go-pdf", readPDF),
			textStrategy("ocr", e.ocrPDF),
		}},
		".docx": {Format: "docx", Strategies: []Strategy{
			textStrategy("docx-paragraphs", readDocxParagraphs),
			textStrategy("docx-structure", readDocxStructure),
		}},
		".doc": {Format: "doc", Strategies: []Strategy{
			textStrategy("antiword", e.antiword),
			textStrategy("catdoc", e.catdoc),
			textStrategy("libreoffice", e.libreOffice),
			textStrategy("html-doc", readHTMLDoc),
			textStrategy("binary-strings", e.scrapeStrings),
		}},
	}
	for ext, c := range e.cascades {
		c.MinLength = e.minLength
		e.cascades[ext] = c
	}
	// Plain text is read once; any non-empty content is usable.
	txt := e.cascades[".txt"]
	txt.MinLength = 1
	e.cascades[".txt"] = txt
	return e
}

// Supported reports whether the extension has a cascade.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".pdf", ".docx", ".doc":
		return true
	}
	return false
}

// IsImage reports whether path is an image upload. Images are stored but
// never processed.
func IsImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// Cascade returns the cascade used for an extension such as ".pdf".
func (e *Extractor) Cascade(ext string) (Cascade, bool) {
	c, ok := e.cascades[strings.ToLower(ext)]
	return c, ok
}

// Extract returns the text of the file at path. It never fails: unsupported,
// missing, empty or corrupt files yield an empty Result.
func (e *Extractor) Extract(ctx context.Context, path string) Result {
	ext := strings.ToLower(filepath.Ext(path))
	logger := e.logger.With("file", filepath.Base(path), "format", ext)

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("file not readable", "error", err)
		return Result{}
	}
	if info.IsDir() || info.Size() == 0 {
		logger.Warn("file empty or not a regular file")
		return Result{}
	}

	cascade, ok := e.cascades[ext]
	if !ok {
		logger.Warn("unsupported file type")
		return Result{}
	}

	res := cascade.Run(ctx, path, logger)
	if ext == ".doc" && strings.TrimSpace(res.Text) == "" {
		logger.Warn("all legacy strategies failed, using placeholder")
		res = Result{Text: fmt.Sprintf(legacyPlaceholder, filepath.Base(path)), Strategy: "placeholder"}
	}
	if strings.TrimSpace(res.Text) != "" {
		res.Language = e.detector.Detect(res.Text)
	}
	logger.Info("extraction finished",
		"strategy", res.Strategy, "sufficient", res.Sufficient,
		"language", res.Language, "chars", textLength(res.Text))
	return res
}

func (e *Extractor) readMarkdown(_ context.Context, path string) (Output, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Output{}, err
	}
	doc, err := e.markdown.Convert(data)
	if err != nil {
		return Output{}, err
	}
	return Output{Text: doc.Text, Headings: doc.Headings}, nil
}
