package api

import (
	"net/http"
)

// handleStats reports service-level counters and latency percentiles.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"expansion":      s.orch.Stats().Snapshot(),
		"queue_depth":    s.orch.QueueDepth(),
		"cached_entries": s.cache.Len(),
	})
}
