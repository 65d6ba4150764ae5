package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docqa/internal/doctree"
)

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// Options tune format-specific extraction.
type Options struct {
	FallbackPdftotext bool
}

var ErrUnsupported = errors.New("unsupported file type")

// ExtractionError reports a document that could not be read or parsed.
type ExtractionError struct {
	File string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.File, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Parse picks a parser by file extension and runs it. Every failure is
// returned as an *ExtractionError.
func Parse(r io.Reader, filename string, opts Options) (*doctree.Document, error) {
	p, err := ForFile(filename, opts)
	if err != nil {
		return nil, &ExtractionError{File: filename, Err: err}
	}
	doc, err := p.Parse(r, filename)
	if err != nil {
		var extErr *ExtractionError
		if errors.As(err, &extErr) {
			return nil, err
		}
		return nil, &ExtractionError{File: filename, Err: err}
	}
	return doc, nil
}

// ExtractFile parses the document at path.
func ExtractFile(path string, opts Options) (*doctree.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ExtractionError{File: path, Err: err}
	}
	defer f.Close()
	return Parse(f, filepath.Base(path), opts)
}

// DetectKind classifies a file name into a coarse kind for the upload
// inventory. It recognizes more kinds than can be parsed.
func DetectKind(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx":
		return "docx"
	case ".pdf":
		return "pdf"
	case ".csv":
		return "csv"
	case ".txt", ".md", ".markdown":
		return "text"
	case ".html", ".htm":
		return "html"
	case ".json":
		return "json"
	case ".xlsx":
		return "xlsx"
	case ".png", ".jpg", ".jpeg":
		return "image"
	case ".mp3":
		return "audio"
	case ".mp4":
		return "video"
	}
	return "unknown"
}

// titleFor strips the directory and extension from a file name.
func titleFor(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func headingStyle(level int) string {
	return fmt.Sprintf("Heading %d", level)
}

const bodyStyle = "Normal"
