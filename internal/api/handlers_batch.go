package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type batchRequest struct {
	Paths []string `json:"paths"`
}

// handleSubmitBatch queues a batch expansion job.
func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Paths) == 0 {
		jsonError(w, http.StatusBadRequest, "paths is required")
		return
	}
	for _, p := range req.Paths {
		if _, err := s.expander.Resolve(p); err != nil {
			jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid path %q: %v", p, err))
			return
		}
	}

	job, err := s.orch.Submit(req.Paths)
	if err != nil {
		jsonError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job.Snapshot())
}

// handleBatchStatus returns the current state of a batch job.
func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orch.GetJob(jobID)
	if job == nil {
		jsonError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}
