package session

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docqa/internal/embedder"
)

var ErrNotFound = errors.New("session not found")

// Store is a thread-safe in-memory session registry with TTL eviction.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	emb      embedder.Embedder
	log      *slog.Logger
}

// NewStore creates a registry. emb may be nil, in which case sessions
// only support lexical search.
func NewStore(ttl time.Duration, emb embedder.Embedder, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		emb:      emb,
		log:      log,
	}
}

func (st *Store) Create() *Session {
	s := newSession(uuid.NewString(), st.emb, st.log)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	return s
}

func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(st.sessions, id)
	return nil
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// List returns snapshots of all sessions, newest first.
func (st *Store) List() []Snapshot {
	st.mu.Lock()
	all := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		all = append(all, s)
	}
	st.mu.Unlock()

	out := make([]Snapshot, len(all))
	for i, s := range all {
		out[i] = s.Snapshot()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Cleanup removes sessions idle for longer than the TTL and returns how
// many were removed.
func (st *Store) Cleanup() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, s := range st.sessions {
		if now.Sub(s.UpdatedAt()) > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}
