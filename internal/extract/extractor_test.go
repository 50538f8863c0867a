package extract

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    []string
	handlers map[string]func(args []string) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	f.mu.Unlock()
	h, ok := f.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrToolNotFound)
	}
	return h(args)
}

func (f *fakeRunner) called(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

var longEnglish = strings.Repeat("The annual report describes revenue, hiring and new offices in three cities. ", 4)

func TestExtract_PlainText(t *testing.T) {
	e := New(nil, WithRunner(&fakeRunner{}))

	res := e.Extract(context.Background(), writeFile(t, "notes.txt", []byte(longEnglish)))
	assert.Equal(t, longEnglish, res.Text)
	assert.Equal(t, "plain-text", res.Strategy)
	assert.True(t, res.Sufficient)
	assert.NotEmpty(t, res.Language)

	// Short text is still returned; plain text has no later strategy.
	res = e.Extract(context.Background(), writeFile(t, "short.txt", []byte("hello there")))
	assert.Equal(t, "hello there", res.Text)
}

func TestExtract_PlainTextLegacyEncoding(t *testing.T) {
	e := New(nil, WithRunner(&fakeRunner{}))
	// "café" in Windows-1252.
	res := e.Extract(context.Background(), writeFile(t, "legacy.txt", []byte{'c', 'a', 'f', 0xE9}))
	assert.Equal(t, "café", res.Text)
}

func TestExtract_EmptyMissingAndUnsupported(t *testing.T) {
	e := New(nil, WithRunner(&fakeRunner{}))
	ctx := context.Background()

	for _, name := range []string{"empty.txt", "empty.pdf", "empty.docx", "empty.doc"} {
		res := e.Extract(ctx, writeFile(t, name, nil))
		assert.Empty(t, res.Text, name)
	}
	assert.Empty(t, e.Extract(ctx, filepath.Join(t.TempDir(), "missing.pdf")).Text)
	assert.Empty(t, e.Extract(ctx, writeFile(t, "image.xyz", []byte("data"))).Text)
}

func TestExtract_PDFLayoutParser(t *testing.T) {
	runner := &fakeRunner{handlers: map[string]func([]string) ([]byte, error){
		"pdftotext": func([]string) ([]byte, error) { return []byte(longEnglish), nil },
	}}
	e := New(nil, WithRunner(runner))

	res := e.Extract(context.Background(), writeFile(t, "report.pdf", []byte("%PDF-1.4 fake")))
	assert.Equal(t, "pdftotext-layout", res.Strategy)
	assert.True(t, res.Sufficient)
	assert.Empty(t, runner.called("tesseract"))
}

func TestExtract_PDFFallsBackToOCR(t *testing.T) {
	runner := &fakeRunner{handlers: map[string]func([]string) ([]byte, error){
		"pdftotext": func([]string) ([]byte, error) { return []byte("  \n"), nil },
		"pdfinfo":   func([]string) ([]byte, error) { return []byte("Title: scan\nPages:          2\n"), nil },
		"pdftoppm": func(args []string) ([]byte, error) {
			prefix := args[len(args)-1]
			for _, p := range []string{"-1.png", "-2.png"} {
				if err := os.WriteFile(prefix+p, []byte("png"), 0o644); err != nil {
					return nil, err
				}
			}
			return nil, nil
		},
		"tesseract": func(args []string) ([]byte, error) {
			pack := args[len(args)-1]
			if strings.Contains(pack, "+") {
				return []byte("Vėjas ąžuolų šakose ūžė, žąsys įskrido į kiemą."), nil
			}
			page := strings.TrimSuffix(filepath.Base(args[0]), ".png")
			return []byte("Skenuoto dokumento puslapis " + page + " su pakankamai ilgu tekstu ir lietuviškomis raidėmis ąčęėįšųūž."), nil
		},
	}}
	e := New(nil, WithRunner(runner))

	res := e.Extract(context.Background(), writeFile(t, "scan.pdf", []byte("%PDF-1.4 fake")))
	require.Equal(t, "ocr", res.Strategy)
	assert.Contains(t, res.Text, "page-1")
	assert.Contains(t, res.Text, "page-2")
	assert.Equal(t, "lt", res.Language)

	pages := runner.called("tesseract")
	require.Len(t, pages, 3)
	assert.Contains(t, pages[0], "eng+lit+lav")
	assert.True(t, strings.HasSuffix(pages[1], "-l lit"))
	assert.Contains(t, runner.called("pdftoppm")[0], "-r 300")
	assert.Contains(t, runner.called("pdftoppm")[0], "-l 2")
}

func TestExtract_PDFOCRPageCap(t *testing.T) {
	runner := &fakeRunner{handlers: map[string]func([]string) ([]byte, error){
		"pdfinfo": func([]string) ([]byte, error) { return []byte("Pages: 400\n"), nil },
	}}
	e := New(nil, WithRunner(runner), WithOCR(10, 200))
	assert.Equal(t, 10, e.pageCount(context.Background(), "x.pdf"))
}

func buildDocx(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contract.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func para(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func TestExtract_DocxParagraphs(t *testing.T) {
	e := New(nil, WithRunner(&fakeRunner{}))
	path := buildDocx(t, para(longEnglish)+para("Second paragraph."))

	res := e.Extract(context.Background(), path)
	assert.Equal(t, "docx-paragraphs", res.Strategy)
	assert.Contains(t, res.Text, "Second paragraph.")
}

func TestExtract_DocxStructureIncludesTables(t *testing.T) {
	cell := func(s string) string { return `<w:tc>` + para(s) + `</w:tc>` }
	table := `<w:tbl>` +
		`<w:tr>` + cell("Supplier name and registered office address") + cell("Baltic Components UAB, Vilnius") + `</w:tr>` +
		`<w:tr>` + cell("Delivery schedule for the first quarter") + cell("Weekly shipments starting in January") + `</w:tr>` +
		`</w:tbl>`
	e := New(nil, WithRunner(&fakeRunner{}))
	path := buildDocx(t, para("Annex 1")+table)

	res := e.Extract(context.Background(), path)
	require.Equal(t, "docx-structure", res.Strategy)
	assert.True(t, strings.HasPrefix(res.Text, "Annex 1\n\n"))
	assert.Contains(t, res.Text, "Supplier name and registered office address | Baltic Components UAB, Vilnius")
	assert.Contains(t, res.Text, "Delivery schedule for the first quarter | Weekly shipments starting in January")
}

func utf16le(s string) []byte {
	var out []byte
	for _, u := range utf16.Encode([]rune(s)) {
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

func TestExtract_DocBinaryStrings(t *testing.T) {
	runner := &fakeRunner{handlers: map[string]func([]string) ([]byte, error){
		"antiword": func([]string) ([]byte, error) { return nil, errors.New("not a word document") },
		"catdoc":   func([]string) ([]byte, error) { return []byte("x"), nil },
	}}
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0x01, 0x02}, utf16le(longEnglish)...)
	data = append(data, 0x00, 0x01, 0x02, 0x03)

	e := New(nil, WithRunner(runner))
	res := e.Extract(context.Background(), writeFile(t, "old.doc", data))
	require.Equal(t, "binary-strings", res.Strategy)
	assert.Contains(t, res.Text, "The annual report describes revenue")
	assert.Len(t, runner.called("antiword"), 1)
	assert.Len(t, runner.called("catdoc"), 1)
}

func TestExtract_DocHTMLDisguised(t *testing.T) {
	page := `<html><head><title>ignored</title><style>p{}</style></head><body><p>` + longEnglish + `</p><p>Closing line.</p></body></html>`
	e := New(nil, WithRunner(&fakeRunner{}))

	res := e.Extract(context.Background(), writeFile(t, "web.doc", []byte(page)))
	require.Equal(t, "html-doc", res.Strategy)
	assert.Contains(t, res.Text, "Closing line.")
	assert.NotContains(t, res.Text, "ignored")
}

func TestExtract_DocPlaceholder(t *testing.T) {
	e := New(nil, WithRunner(&fakeRunner{}))

	res := e.Extract(context.Background(), writeFile(t, "broken.doc", []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}))
	assert.Equal(t, "placeholder", res.Strategy)
	assert.Contains(t, res.Text, "broken.doc")
	assert.GreaterOrEqual(t, len(res.Text), 100)
}

func TestCascade_Order(t *testing.T) {
	var order []string
	mk := func(name, text string, err error) Strategy {
		return textStrategy(name, func(context.Context, string) (string, error) {
			order = append(order, name)
			return text, err
		})
	}
	panicky := textStrategy("panics", func(context.Context, string) (string, error) {
		order = append(order, "panics")
		panic("corrupt xref")
	})

	c := Cascade{Format: "test", MinLength: 10, Strategies: []Strategy{
		mk("short", "tiny", nil),
		mk("fails", "", errors.New("boom")),
		panicky,
		mk("good", "long enough text", nil),
		mk("never", "unused text here", nil),
	}}
	res := c.Run(context.Background(), "f", nil)
	assert.Equal(t, "good", res.Strategy)
	assert.True(t, res.Sufficient)
	assert.Equal(t, []string{"short", "fails", "panics", "good"}, order)
}

func TestCascade_KeepsFirstShortOutput(t *testing.T) {
	c := Cascade{Format: "test", MinLength: 100, Strategies: []Strategy{
		textStrategy("first", func(context.Context, string) (string, error) { return "first short", nil }),
		textStrategy("second", func(context.Context, string) (string, error) { return "second short", nil }),
	}}
	res := c.Run(context.Background(), "f", nil)
	assert.Equal(t, "first", res.Strategy)
	assert.Equal(t, "first short", res.Text)
	assert.False(t, res.Sufficient)

	empty := Cascade{Format: "test", MinLength: 100}
	assert.Equal(t, Result{}, empty.Run(context.Background(), "f", nil))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.PDF"))
	assert.True(t, Supported("b.docx"))
	assert.True(t, Supported("c.md"))
	assert.False(t, Supported("d.png"))
}
