package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docqa/internal/export"
	"github.com/dgallion1/docqa/internal/session"
)

type ctxKey struct{}

// sessionCtx resolves {sessionID} and stores the session in the request
// context.
func (s *Server) sessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(ctxKey{}).(*session.Session)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.log.Info("session created", "session_id", sess.ID)
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := s.sessions.Delete(sess.ID); err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"files": sessionFrom(r).Files()})
}

// handleExportChunks downloads the current chunks as a JSON attachment in
// the same format as the on-disk export.
func (s *Server) handleExportChunks(w http.ResponseWriter, r *http.Request) {
	chunks, source := sessionFrom(r).Chunks()
	if source == "" {
		source = "session"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.PathFor("", source)+`"`)
	if err := export.Write(w, chunks); err != nil {
		s.log.Error("chunk export failed", "error", err)
	}
}
