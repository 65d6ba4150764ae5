package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil || s.stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model":       s.chat.Model(),
		"stats":       s.stats.Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"sessions":    s.sessions.Len(),
	})
}
