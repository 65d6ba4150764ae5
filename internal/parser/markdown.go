package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/docqa/internal/doctree"
)

// MarkdownParser handles Markdown files using goldmark. ATX and setext
// headings become heading paragraphs; every other top-level block is body.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var paras []doctree.Paragraph
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			paras = append(paras, doctree.Paragraph{
				Style: headingStyle(h.Level),
				Text:  blockText(h, src),
			})
			continue
		}
		if t := blockText(n, src); t != "" {
			paras = append(paras, doctree.Paragraph{Style: bodyStyle, Text: t})
		}
	}
	return doctree.NewStructured(titleFor(filename), paras), nil
}

// blockText gets the text content of a goldmark AST node: raw lines for
// code-like blocks, inline text otherwise.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		if s := blockText(c, src); s != "" {
			if c.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(s)
		}
	}
	return strings.TrimSpace(buf.String())
}
