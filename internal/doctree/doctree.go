package doctree

import "strings"

// Paragraph is a raw paragraph-like record produced by a format parser.
type Paragraph struct {
	Style string // Style name, e.g. "Heading 2", "Heading2", "Normal"
	Text  string
}

// Node is one paragraph-equivalent unit of a structured document.
type Node struct {
	Level       int    // Heading level; 0 for body text
	Text        string // Trimmed text
	SectionPath string // Open heading titles joined by " > "
}

// IsHeading reports whether the node is a heading.
func (n Node) IsHeading() bool {
	return n.Level > 0
}

// Chunk is a unit of retrievable text with its section label.
type Chunk struct {
	Section string `json:"section"`
	Text    string `json:"text"`
}

// Kind tags which variant a Document holds.
type Kind int

const (
	KindFlat Kind = iota
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	default:
		return "flat"
	}
}

// Document is the ingestion result of a single file: either heading-structured
// nodes or flat text. The variant is chosen once by the parser.
type Document struct {
	Title string
	Kind  Kind

	// Structured variant.
	Nodes []Node

	// Flat variant.
	Text  string
	Label string // Section label for flat chunks, e.g. "pdf"
	Pages int    // Source page count when known
}

// Section labels for documents without heading structure.
const (
	LabelFull = "full"
	LabelPDF  = "pdf"
)

// NewStructured builds a structured document and assigns section paths.
func NewStructured(title string, paras []Paragraph) *Document {
	return &Document{
		Title: title,
		Kind:  KindStructured,
		Nodes: Extract(paras),
	}
}

// NewFlat builds a flat-text document. An empty label defaults to "full".
func NewFlat(title, text, label string) *Document {
	if label == "" {
		label = LabelFull
	}
	return &Document{
		Title: title,
		Kind:  KindFlat,
		Text:  text,
		Label: label,
	}
}

// BodyText returns the document's body text. Structured documents join
// their body nodes with sep; headings are excluded.
func (d *Document) BodyText(sep string) string {
	if d.Kind == KindFlat {
		return d.Text
	}
	var sb strings.Builder
	for _, node := range d.Nodes {
		if node.IsHeading() || node.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(node.Text)
	}
	return sb.String()
}
