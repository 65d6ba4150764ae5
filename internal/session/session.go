// Package session holds per-conversation state: uploaded files, the
// current chunks and their index, and the chat history. Nothing here is
// process-wide; callers own a Store and pass sessions explicitly.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docqa/internal/doctree"
	"github.com/dgallion1/docqa/internal/embedder"
	"github.com/dgallion1/docqa/internal/index"
)

// FileInfo is one entry of the upload inventory.
type FileInfo struct {
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Size        int64     `json:"size"`
	Chunks      int       `json:"chunks"`
	Pages       int       `json:"pages,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	ExportPath  string    `json:"export_path,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Message is one question/answer exchange.
type Message struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Mode       string    `json:"mode"`
	ChunksUsed int       `json:"chunks_used"`
	Timestamp  time.Time `json:"timestamp"`
}

// View is an immutable snapshot of the session's current document: its
// chunks and the index built from exactly those chunks. Index is nil when
// no embedder is configured.
type View struct {
	Source      string
	ContentHash string
	Chunks      []doctree.Chunk
	Index       *index.Index
}

// Indexed reports whether the view carries a non-empty index.
func (v *View) Indexed() bool {
	return v.Index.Len() > 0
}

var emptyView = &View{}

type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	files     []FileInfo
	history   []Message
	updatedAt time.Time

	publishMu sync.Mutex // serializes index build + swap
	current   atomic.Pointer[View]
	emb       embedder.Embedder // nil disables the index
	log       *slog.Logger
}

func newSession(id string, emb embedder.Embedder, log *slog.Logger) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		updatedAt: now,
		emb:       emb,
		log:       log.With("session_id", id),
	}
}

// UpdatedAt is the time of the last activity.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Publish replaces the session's chunks with those of a newly processed
// document. The index is built first and the chunks and index are then
// swapped in together, so readers never see one without the other.
// Publishes to one session run one at a time; if indexing fails the
// previous view stays in place.
func (s *Session) Publish(ctx context.Context, file FileInfo, chunks []doctree.Chunk) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	var ix *index.Index
	if s.emb != nil {
		var err error
		if ix, err = index.Build(ctx, Texts(chunks), s.emb); err != nil {
			return err
		}
	}
	s.current.Store(&View{
		Source:      file.Name,
		ContentHash: file.ContentHash,
		Chunks:      chunks,
		Index:       ix,
	})

	file.Chunks = len(chunks)
	s.mu.Lock()
	s.files = append(s.files, file)
	s.updatedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// View returns the current document snapshot; never nil.
func (s *Session) View() *View {
	if v := s.current.Load(); v != nil {
		return v
	}
	return emptyView
}

// Chunks returns the current chunks and the file they came from.
func (s *Session) Chunks() ([]doctree.Chunk, string) {
	v := s.View()
	return v.Chunks, v.Source
}

// ContentHash identifies the text behind the current chunks.
func (s *Session) ContentHash() string {
	return s.View().ContentHash
}

// CanIndex reports whether publishes build an embedding index.
func (s *Session) CanIndex() bool {
	return s.emb != nil
}

// Search embeds query and searches the index of v. Result positions index
// into v.Chunks.
func (s *Session) Search(ctx context.Context, v *View, query string, k int) ([]index.Result, error) {
	if s.emb == nil || !v.Indexed() {
		return nil, nil
	}
	vecs, err := s.emb.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return v.Index.Search(vecs[0], k)
}

// Files returns a copy of the upload inventory.
func (s *Session) Files() []FileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FileInfo(nil), s.files...)
}

// History returns a copy of the chat history.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.history...)
}

func (s *Session) addMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, m)
	s.updatedAt = m.Timestamp
}

// ClearHistory drops the chat history but keeps documents.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.updatedAt = time.Now()
}

// Snapshot is a JSON-safe summary of a session.
type Snapshot struct {
	ID        string     `json:"session_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Source    string     `json:"source,omitempty"`
	Chunks    int        `json:"chunks"`
	Indexed   bool       `json:"indexed"`
	Messages  int        `json:"messages"`
	Files     []FileInfo `json:"files"`
}

func (s *Session) Snapshot() Snapshot {
	v := s.View()
	s.mu.Lock()
	defer s.mu.Unlock()
	files := append([]FileInfo{}, s.files...)
	return Snapshot{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
		Source:    v.Source,
		Chunks:    len(v.Chunks),
		Indexed:   v.Indexed(),
		Messages:  len(s.history),
		Files:     files,
	}
}

// Texts extracts the chunk texts in order.
func Texts(chunks []doctree.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
