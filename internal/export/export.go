// Package export persists chunk sequences as human-readable JSON.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docqa/internal/doctree"
)

// Suffix is appended to a source file name to name its export.
const Suffix = ".chunks.json"

// Write encodes chunks as an indented JSON array of {section, text}.
// Non-ASCII text and HTML characters are written verbatim.
func Write(w io.Writer, chunks []doctree.Chunk) error {
	if chunks == nil {
		chunks = []doctree.Chunk{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(chunks); err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	return nil
}

// Read decodes a chunk array written by Write.
func Read(r io.Reader) ([]doctree.Chunk, error) {
	var chunks []doctree.Chunk
	if err := json.NewDecoder(r).Decode(&chunks); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	return chunks, nil
}

// Save writes chunks to path through a temp file in the same directory,
// so readers never see a partial export.
func Save(path string, chunks []doctree.Chunk) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, chunks); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename export: %w", err)
	}
	return nil
}

// Load reads chunks saved by Save.
func Load(path string) ([]doctree.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// PathFor names the export of a source file inside dir.
func PathFor(dir, sourceName string) string {
	base := filepath.Base(sourceName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+Suffix)
}
