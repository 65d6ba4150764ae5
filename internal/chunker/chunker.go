package chunker

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docqa/internal/doctree"
)

// Strategy selects how a document is split.
type Strategy string

const (
	StrategyWords    Strategy = "words"    // Fixed word-count windows.
	StrategyHeadings Strategy = "headings" // Heading-aware accumulation.
	StrategyChars    Strategy = "chars"    // Character windows with overlap.
)

// Config controls chunking behavior.
type Config struct {
	Strategy  Strategy
	ChunkSize int // Words for words/headings, characters for chars.
	Overlap   int // Characters shared by consecutive windows (chars only).
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:  StrategyWords,
		ChunkSize: 800,
		Overlap:   0,
	}
}

// ConfigError reports an unusable chunking configuration.
type ConfigError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid chunk config: %s=%d: %s", e.Field, e.Value, e.Reason)
}

// ParseStrategy maps a user-supplied name to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyWords, "":
		return StrategyWords, nil
	case StrategyHeadings:
		return StrategyHeadings, nil
	case StrategyChars:
		return StrategyChars, nil
	}
	return "", fmt.Errorf("unknown chunk strategy %q", s)
}

// Validate rejects configurations that would produce no progress.
func (c Config) Validate() error {
	strategy, err := ParseStrategy(string(c.Strategy))
	if err != nil {
		return &ConfigError{Field: "strategy", Reason: err.Error()}
	}
	if c.ChunkSize <= 0 {
		return &ConfigError{Field: "chunk_size", Value: c.ChunkSize, Reason: "must be positive"}
	}
	if c.Overlap < 0 {
		return &ConfigError{Field: "overlap", Value: c.Overlap, Reason: "must not be negative"}
	}
	if strategy == StrategyChars && c.Overlap >= c.ChunkSize {
		return &ConfigError{Field: "overlap", Value: c.Overlap, Reason: fmt.Sprintf("must be smaller than chunk_size (%d)", c.ChunkSize)}
	}
	return nil
}

// Process chunks a document according to cfg, dispatching on the
// document variant. The configuration is validated before any work.
func Process(doc *doctree.Document, cfg Config) ([]doctree.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	strategy, _ := ParseStrategy(string(cfg.Strategy))

	switch strategy {
	case StrategyChars:
		texts, err := ByChars(doc.BodyText("\n"), cfg.ChunkSize, cfg.Overlap)
		if err != nil {
			return nil, err
		}
		return label(texts, flatLabel(doc)), nil

	case StrategyHeadings:
		if doc.Kind == doctree.KindStructured {
			return ByHeadings(doc.Nodes, cfg.ChunkSize), nil
		}
		// No heading structure to follow.
		return label(ByWords(doc.Text, cfg.ChunkSize), flatLabel(doc)), nil

	default:
		return label(ByWords(doc.BodyText(" "), cfg.ChunkSize), flatLabel(doc)), nil
	}
}

func flatLabel(doc *doctree.Document) string {
	if doc.Kind == doctree.KindFlat && doc.Label != "" {
		return doc.Label
	}
	return doctree.LabelFull
}

func label(texts []string, section string) []doctree.Chunk {
	if len(texts) == 0 {
		return nil
	}
	chunks := make([]doctree.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = doctree.Chunk{Section: section, Text: t}
	}
	return chunks
}

// ByWords splits text into consecutive, non-overlapping windows of size
// whitespace-separated words. The last window may be shorter.
func ByWords(text string, size int) []string {
	if size <= 0 {
		return nil
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	out := make([]string, 0, (len(words)+size-1)/size)
	for i := 0; i < len(words); i += size {
		end := min(i+size, len(words))
		out = append(out, strings.Join(words[i:end], " "))
	}
	return out
}

// ByHeadings accumulates body words under the most recent section path.
// The buffer is flushed before a heading changes the section, and after
// any body node that brings it to size words or more.
func ByHeadings(nodes []doctree.Node, size int) []doctree.Chunk {
	if size <= 0 {
		return nil
	}
	var (
		chunks     []doctree.Chunk
		buffer     []string
		current    string // section path of the latest heading
		bufSection string // section at the buffer's first word
	)

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		chunks = append(chunks, doctree.Chunk{
			Section: bufSection,
			Text:    strings.Join(buffer, " "),
		})
		buffer = buffer[:0]
	}

	for _, node := range nodes {
		if node.IsHeading() {
			flush()
			current = node.SectionPath
			continue
		}
		words := strings.Fields(node.Text)
		if len(words) == 0 {
			continue
		}
		if len(buffer) == 0 {
			bufSection = current
		}
		buffer = append(buffer, words...)
		if len(buffer) >= size {
			flush()
		}
	}
	flush()

	return chunks
}

// ByChars slides a window of size runes over text, advancing by
// size-overlap each step, and stops once a window reaches the end of the
// text. Windows are trimmed; windows that trim to nothing are skipped.
func ByChars(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, &ConfigError{Field: "chunk_size", Value: size, Reason: "must be positive"}
	}
	if overlap < 0 || overlap >= size {
		return nil, &ConfigError{Field: "overlap", Value: overlap, Reason: fmt.Sprintf("must be in [0, %d)", size)}
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	step := size - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		if part := strings.TrimSpace(string(runes[start:end])); part != "" {
			out = append(out, part)
		}
		if end == len(runes) {
			break
		}
	}
	return out, nil
}
