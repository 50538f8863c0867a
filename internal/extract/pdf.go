package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

var pagesLine = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)

// pdfToText runs poppler's layout-aware parser.
func (e *Extractor) pdfToText(ctx context.Context, path string) (string, error) {
	out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// readPDF is the pure-Go secondary parser.
func readPDF(_ context.Context, path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// ocrPDF rasterizes the document and runs OCR. The first page is read with
// every configured language pack to detect the language; all pages are then
// read with the detected language's pack.
func (e *Extractor) ocrPDF(ctx context.Context, path string) (string, error) {
	pages := e.pageCount(ctx, path)

	dir, err := os.MkdirTemp("", "raglens-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create ocr dir: %w", err)
	}
	defer os.RemoveAll(dir)

	images, err := e.rasterize(ctx, path, dir, pages)
	if err != nil {
		return "", err
	}

	table := e.detector.Table()
	probe, err := e.runner.Run(ctx, "tesseract", images[0], "stdout", "-l", table.OCRPacks())
	if err != nil {
		return "", fmt.Errorf("ocr probe: %w", err)
	}
	tag := e.detector.Detect(string(probe))
	pack := table.OCRPack(tag)
	e.logger.Info("ocr language selected", "file", filepath.Base(path), "language", tag, "pack", pack, "pages", len(images))

	texts := make([]string, 0, len(images))
	for i, img := range images {
		out, err := e.runner.Run(ctx, "tesseract", img, "stdout", "-l", pack)
		if err != nil {
			e.logger.Warn("ocr page failed", "file", filepath.Base(path), "page", i+1, "error", err)
			continue
		}
		if t := strings.TrimSpace(string(out)); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}

// pageCount asks pdfinfo for the page count, capped at the OCR page limit.
// Unknown counts fall back to the cap.
func (e *Extractor) pageCount(ctx context.Context, path string) int {
	out, err := e.runner.Run(ctx, "pdfinfo", path)
	if err != nil {
		return e.maxPages
	}
	m := pagesLine.FindSubmatch(out)
	if m == nil {
		return e.maxPages
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil || n <= 0 {
		return e.maxPages
	}
	return min(n, e.maxPages)
}

func (e *Extractor) rasterize(ctx context.Context, path, dir string, pages int) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	_, err := e.runner.Run(ctx, "pdftoppm",
		"-r", strconv.Itoa(e.dpi), "-png",
		"-f", "1", "-l", strconv.Itoa(pages),
		path, prefix)
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	images, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("rasterize: no pages produced")
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(images)
	return images, nil
}
