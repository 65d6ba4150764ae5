package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docqa/internal/doctree"
)

// DOCXParser handles .docx files. Paragraph style ids (e.g. "Heading2")
// carry the heading structure; tables and drawings are skipped.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var paras []doctree.Paragraph
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		paras = append(paras, doctree.Paragraph{
			Style: docxStyle(para),
			Text:  docxParagraphText(para),
		})
	}
	return doctree.NewStructured(titleFor(filename), paras), nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return bodyStyle
	}
	return para.Properties.Style.Val
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeRunText(&buf, c)
		case *docx.Hyperlink:
			writeRunText(&buf, &c.Run)
		}
	}
	return buf.String()
}

func writeRunText(buf *strings.Builder, run *docx.Run) {
	for _, rc := range run.Children {
		switch t := rc.(type) {
		case *docx.Text:
			buf.WriteString(t.Text)
		case *docx.Tab:
			buf.WriteByte('\t')
		case *docx.BarterRabbet:
			buf.WriteByte('\n')
		}
	}
}
