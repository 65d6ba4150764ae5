package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dgallion1/docqa/internal/search"
	"github.com/dgallion1/docqa/internal/session"
)

type searchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"` // embedding, lexical, or empty for the best available
	K     int    `json:"k"`
}

type hit struct {
	Position int      `json:"position"`
	Section  string   `json:"section,omitempty"`
	Text     string   `json:"text"`
	Score    *float64 `json:"score,omitempty"`
	Distance *float64 `json:"distance,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.K <= 0 {
		req.K = s.cfg.RetrievalK
	}

	sess := sessionFrom(r)
	view := sess.View()
	indexed := view.Indexed()
	if req.Mode == "" {
		req.Mode = session.ModeLexical
		if indexed {
			req.Mode = session.ModeEmbedding
		}
	}
	chunks := view.Chunks

	var hits []hit
	switch req.Mode {
	case session.ModeEmbedding:
		if !indexed {
			jsonError(w, "session has no embedding index", http.StatusConflict)
			return
		}
		results, err := sess.Search(r.Context(), view, req.Query, req.K)
		if err != nil {
			s.log.Error("embedding search failed", "error", err)
			jsonError(w, "embedding search failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		for _, res := range results {
			d := res.Distance
			hits = append(hits, hit{Position: res.Position, Section: chunks[res.Position].Section, Text: res.Text, Distance: &d})
		}
	case session.ModeLexical:
		ranked := search.Rank(session.Texts(chunks), req.Query)
		for _, res := range ranked[:min(req.K, len(ranked))] {
			sc := res.Score
			hits = append(hits, hit{Position: res.Position, Section: chunks[res.Position].Section, Text: res.Text, Score: &sc})
		}
	default:
		jsonError(w, "mode must be embedding or lexical", http.StatusBadRequest)
		return
	}

	if hits == nil {
		hits = []hit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": req.Mode, "results": hits})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if strings.TrimSpace(term) == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}
	chunks, _ := sessionFrom(r).Chunks()
	matches := search.FindMatches(session.Texts(chunks), term)
	if matches == nil {
		matches = []search.Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"term": term, "count": len(matches), "matches": matches})
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if s.chat == nil {
		jsonError(w, "no chat model configured", http.StatusServiceUnavailable)
		return
	}

	ans, err := sessionFrom(r).Ask(r.Context(), s.chat, req.Question, session.AskOptions{
		EmbeddingK:  s.cfg.RetrievalK,
		TokenBudget: s.cfg.ContextTokenBudget,
	})
	switch {
	case errors.Is(err, session.ErrEmptyQuestion):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.log.Error("ask failed", "error", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := sessionFrom(r).History()
	if history == nil {
		history = []session.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": history})
}

func (s *Server) handleHistoryText(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="chat_history_`+sess.ID+`.txt"`)
	w.Write([]byte(sess.HistoryText()))
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}
