// Package markdown turns markdown sources into plain text for the pipeline.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// Document is the plain-text rendering of a markdown source.
type Document struct {
	Text     string   // Block structure kept as blank-line separated paragraphs
	Headings []string // Hierarchy paths: "# Guide > ## Install"
}

// Converter renders markdown to plain text with goldmark.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter creates a converter configured like the indexer expects:
// heading IDs are generated so the outline can be inspected.
func NewConverter() *Converter {
	return &Converter{
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

// Convert parses source and returns its text and heading outline.
func (c *Converter) Convert(source []byte) (*Document, error) {
	doc := c.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(3),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var headings []string
	collectHeadings(tree.Items, nil, &headings)

	return &Document{
		Text:     renderText(doc, source),
		Headings: headings,
	}, nil
}

func renderText(doc ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(source))
				}
				return ast.WalkContinue, nil
			}
			buf.WriteString("\n\n")
		case *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.TextBlock:
			if !entering {
				buf.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading, *ast.List, *ast.Blockquote, *ast.ThematicBreak:
			if !entering {
				buf.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(excessNewlines.ReplaceAllString(buf.String(), "\n\n"))
}

func collectHeadings(items toc.Items, ancestors []string, out *[]string) {
	for _, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))
		if len(item.Title) > 0 {
			*out = append(*out, formatHeaderPath(path))
		}
		collectHeadings(item.Items, path, out)
	}
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Installation", "Prerequisites"] -> "# Installation > ## Prerequisites"
func formatHeaderPath(path []string) string {
	parts := make([]string, 0, len(path))
	for i, segment := range path {
		parts = append(parts, fmt.Sprintf("%s %s", strings.Repeat("#", i+1), segment))
	}
	return strings.Join(parts, " > ")
}
