package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docqa/internal/doctree"
)

func TestTextParser_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", doc.Title)
	}
	if doc.Kind != doctree.KindFlat || doc.Label != doctree.LabelFull {
		t.Errorf("expected flat document labelled %q, got %s/%q", doctree.LabelFull, doc.Kind, doc.Label)
	}
	want := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	if doc.Text != want {
		t.Errorf("expected %q, got %q", want, doc.Text)
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", doc.Title)
	}
	if doc.Text != "" {
		t.Errorf("expected empty text, got %q", doc.Text)
	}
}

func TestTextParser_CollapsesBlankRuns(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"multiple blank lines", "Para one.\n\n\n\nPara two."},
		{"whitespace-only line", "Para one.\n   \nPara two."},
		{"leading and trailing blanks", "\n\nPara one.\n\nPara two.\n\n"},
	}
	p := &TextParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := p.Parse(strings.NewReader(tt.input), "gaps.txt")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if doc.Text != "Para one.\n\nPara two." {
				t.Errorf("expected two paragraphs, got %q", doc.Text)
			}
		})
	}
}
