package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoDocumentXML = errors.New("word/document.xml not found")

// readDocumentXML returns the main document part of a .docx archive.
func readDocumentXML(path string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, errNoDocumentXML
}

type docxBody struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

// readDocxParagraphs is the lightweight extractor: top-level body
// paragraphs only.
func readDocxParagraphs(_ context.Context, path string) (string, error) {
	content, err := readDocumentXML(path)
	if err != nil {
		return "", err
	}
	var doc docxBody
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, t := range run.Text {
				b.WriteString(t.Content)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// readDocxStructure walks the document token stream and collects body
// paragraphs and table cells separately. Paragraphs come first, then one
// line per table row with cells joined by " | ".
func readDocxStructure(_ context.Context, path string) (string, error) {
	content, err := readDocumentXML(path)
	if err != nil {
		return "", err
	}

	var (
		paras    []string
		rows     []string
		row      []string
		para     strings.Builder
		cell     strings.Builder
		inText   bool
		tblDepth int
	)
	target := func() *strings.Builder {
		if tblDepth > 0 {
			return &cell
		}
		return &para
	}

	dec := xml.NewDecoder(bytes.NewReader(content))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				target().WriteString("\t")
			case "br", "cr":
				target().WriteString("\n")
			case "tbl":
				tblDepth++
			case "tr":
				if tblDepth == 1 {
					row = row[:0]
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if tblDepth > 0 {
					cell.WriteString(" ")
					continue
				}
				if s := strings.TrimSpace(para.String()); s != "" {
					paras = append(paras, s)
				}
				para.Reset()
			case "tc":
				if tblDepth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
					cell.Reset()
				}
			case "tr":
				if tblDepth == 1 && strings.TrimSpace(strings.Join(row, "")) != "" {
					rows = append(rows, strings.Join(row, " | "))
				}
			case "tbl":
				tblDepth--
			}
		case xml.CharData:
			if inText {
				target().Write(t)
			}
		}
	}

	parts := make([]string, 0, 2)
	if len(paras) > 0 {
		parts = append(parts, strings.Join(paras, "\n"))
	}
	if len(rows) > 0 {
		parts = append(parts, strings.Join(rows, "\n"))
	}
	return strings.Join(parts, "\n\n"), nil
}
