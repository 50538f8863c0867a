package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/quotedprintable"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	// maxScrapeBytes bounds how much of a legacy file the string scraper reads.
	maxScrapeBytes = 32 << 20
	// minRunLength is the shortest printable run kept by the scraper.
	minRunLength = 4
)

var errNotHTML = errors.New("not an HTML document")

func (e *Extractor) antiword(ctx context.Context, path string) (string, error) {
	out, err := e.runner.Run(ctx, "antiword", "-m", "UTF-8.txt", path)
	return string(out), err
}

func (e *Extractor) catdoc(ctx context.Context, path string) (string, error) {
	out, err := e.runner.Run(ctx, "catdoc", "-d", "utf-8", path)
	return string(out), err
}

// libreOffice converts the file with a headless office suite and reads the
// converted text back.
func (e *Extractor) libreOffice(ctx context.Context, path string) (string, error) {
	dir, err := os.MkdirTemp("", "raglens-soffice-*")
	if err != nil {
		return "", fmt.Errorf("create convert dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if _, err := e.runner.Run(ctx, "soffice", "--headless", "--convert-to", "txt:Text", "--outdir", dir, path); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	data, err := os.ReadFile(filepath.Join(dir, base+".txt"))
	if err != nil {
		return "", fmt.Errorf("read converted text: %w", err)
	}
	return decodeText(data)
}

// readHTMLDoc handles .doc files that are really HTML or MHTML, which is
// what "save as web page" in office suites produces.
func readHTMLDoc(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	head := strings.ToLower(string(data[:min(len(data), 4096)]))
	start := strings.Index(strings.ToLower(string(data)), "<html")
	if start < 0 || !(strings.Contains(head, "<html") || strings.Contains(head, "mime-version")) {
		return "", errNotHTML
	}

	var body io.Reader = bytes.NewReader(data[start:])
	if strings.Contains(head, "quoted-printable") {
		body = quotedprintable.NewReader(body)
	}
	doc, err := html.Parse(body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head", "xml":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteString("\n")
			}
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String()), nil
}

// scrapeStrings is the last resort for binary Word files: collect printable
// runs stored as UTF-16LE or single-byte text and keep the word-like ones.
// Single-byte runs are decoded with the legacy code page of the detected
// language, so Baltic text decodes correctly even when the statistical
// detector would have called it something else.
func (e *Extractor) scrapeStrings(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxScrapeBytes))
	if err != nil {
		return "", err
	}

	runs := utf16Runs(data)

	raw := byteRuns(data)
	decoded := decodeRuns(raw, charmap.Windows1252)
	tag := e.detector.Detect(strings.Join(append(append([]string(nil), runs...), decoded...), " "))
	if p, ok := e.detector.Table().Profile(tag); ok && p.LegacyCharset != "" {
		if enc, err := htmlindex.Get(p.LegacyCharset); err == nil {
			decoded = decodeRuns(raw, enc)
		}
	}
	runs = append(runs, decoded...)

	var kept []string
	seen := make(map[string]bool)
	for _, r := range runs {
		r = strings.Join(strings.Fields(r), " ")
		if !wordLike(r) || seen[r] {
			continue
		}
		seen[r] = true
		kept = append(kept, r)
	}
	return strings.Join(kept, "\n"), nil
}

// utf16Runs finds little-endian UTF-16 runs at both byte alignments.
func utf16Runs(data []byte) []string {
	var runs []string
	for offset := 0; offset < 2; offset++ {
		var cur []rune
		flush := func() {
			if len(cur) >= minRunLength {
				runs = append(runs, string(cur))
			}
			cur = cur[:0]
		}
		for i := offset; i+1 < len(data); i += 2 {
			r := rune(data[i]) | rune(data[i+1])<<8
			// Only Latin scripts; wider ranges mostly match binary noise.
			if r < 0x0250 && (unicode.IsPrint(r) || r == '\t') {
				cur = append(cur, r)
				continue
			}
			flush()
		}
		flush()
	}
	return runs
}

// byteRuns finds runs of printable single-byte characters.
func byteRuns(data []byte) [][]byte {
	var runs [][]byte
	start := -1
	for i, c := range data {
		printable := c == '\t' || (c >= 0x20 && c != 0x7f)
		if printable {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= minRunLength {
			runs = append(runs, data[start:i])
		}
		start = -1
	}
	if start >= 0 && len(data)-start >= minRunLength {
		runs = append(runs, data[start:])
	}
	return runs
}

func decodeRuns(runs [][]byte, enc encoding.Encoding) []string {
	out := make([]string, 0, len(runs))
	dec := enc.NewDecoder()
	for _, r := range runs {
		if utf8.Valid(r) && isASCII(r) {
			out = append(out, string(r))
			continue
		}
		b, err := dec.Bytes(r)
		if err != nil {
			continue
		}
		out = append(out, string(b))
	}
	return out
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// wordLike keeps runs that are mostly letters and contain at least one
// word of three or more letters.
func wordLike(s string) bool {
	if utf8.RuneCountInString(s) < minRunLength {
		return false
	}
	letters, total := 0, 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || r == ' ' {
			letters++
		}
	}
	if float64(letters)/float64(total) < 0.7 {
		return false
	}
	for _, w := range strings.Fields(s) {
		n := 0
		for _, r := range w {
			if unicode.IsLetter(r) {
				n++
			}
		}
		if n >= 3 && hasVowel(w) {
			return true
		}
	}
	return false
}

func hasVowel(w string) bool {
	return strings.ContainsAny(strings.ToLower(w), "aeiouyąęėįųūāēīō")
}
