package markdown

import (
	"strings"
	"testing"
)

func TestConvert_PlainText(t *testing.T) {
	input := "# Quarterly Report\n\nRevenue grew **strongly** in Vilnius.\n\n## Outlook\n\n- hiring\n- expansion\n\n```\ncode line\n```\n"

	doc, err := NewConverter().Convert([]byte(input))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	for _, want := range []string{"Quarterly Report", "Revenue grew strongly in Vilnius.", "Outlook", "hiring", "expansion", "code line"} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("text missing %q:\n%s", want, doc.Text)
		}
	}
	if strings.Contains(doc.Text, "**") || strings.Contains(doc.Text, "```") {
		t.Errorf("markup leaked into text: %q", doc.Text)
	}
	if strings.Contains(doc.Text, "\n\n\n") {
		t.Errorf("expected collapsed blank lines, got %q", doc.Text)
	}
}

func TestConvert_Headings(t *testing.T) {
	input := "# Guide\n\nintro\n\n## Install\n\nsteps\n\n## Configure\n\nmore\n"

	doc, err := NewConverter().Convert([]byte(input))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	want := []string{"# Guide", "# Guide > ## Install", "# Guide > ## Configure"}
	if len(doc.Headings) != len(want) {
		t.Fatalf("expected %d headings, got %v", len(want), doc.Headings)
	}
	for i := range want {
		if doc.Headings[i] != want[i] {
			t.Errorf("heading %d: expected %q, got %q", i, want[i], doc.Headings[i])
		}
	}
}

func TestConvert_NoHeadings(t *testing.T) {
	doc, err := NewConverter().Convert([]byte("just a paragraph"))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if doc.Text != "just a paragraph" {
		t.Errorf("unexpected text %q", doc.Text)
	}
	if len(doc.Headings) != 0 {
		t.Errorf("expected no headings, got %v", doc.Headings)
	}
}

func TestFormatHeaderPath(t *testing.T) {
	got := formatHeaderPath([]string{"Installation", "Prerequisites"})
	if got != "# Installation > ## Prerequisites" {
		t.Errorf("unexpected path %q", got)
	}
}
