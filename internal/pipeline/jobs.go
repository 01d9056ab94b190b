package pipeline

import (
	"sync"
	"time"
)

// JobStatus represents the state of a batch expansion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExpanding  JobStatus = "expanding"
	StatusPublishing JobStatus = "publishing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// DocResult records the outcome for one document in a batch.
type DocResult struct {
	Path      string `json:"path"`
	OK        bool   `json:"ok"`
	Cached    bool   `json:"cached"`
	Imports   int    `json:"imports"`
	Published bool   `json:"published,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Progress tracks batch processing progress.
type Progress struct {
	TotalDocs     int      `json:"total_docs"`
	DocsProcessed int      `json:"docs_processed"`
	DocsPublished int      `json:"docs_published"`
	Errors        []string `json:"errors"`
}

// Job tracks the state of one batch expansion.
type Job struct {
	mu sync.Mutex

	ID     string    `json:"job_id"`
	Paths  []string  `json:"paths"`
	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress    `json:"progress"`
	Results  []DocResult `json:"results"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	errors []string
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// AddResult records one document's outcome.
func (j *Job) AddResult(r DocResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results = append(j.Results, r)
	j.Progress.DocsProcessed++
	if r.Published {
		j.Progress.DocsPublished++
	}
	j.UpdatedAt = time.Now()
}

// MarkPublished flips the published flag on an already-recorded result.
func (j *Job) MarkPublished(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.Results {
		if j.Results[i].Path == path {
			j.Results[i].Published = true
			j.Progress.DocsPublished++
			break
		}
	}
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string      `json:"job_id"`
	Status   JobStatus   `json:"status"`
	Phase    string      `json:"phase"`
	Progress Progress    `json:"progress"`
	Results  []DocResult `json:"results"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	results := make([]DocResult, len(j.Results))
	copy(results, j.Results)
	return JobSnapshot{
		ID:     j.ID,
		Status: j.Status,
		Phase:  j.Phase,
		Progress: Progress{
			TotalDocs:     j.Progress.TotalDocs,
			DocsProcessed: j.Progress.DocsProcessed,
			DocsPublished: j.Progress.DocsPublished,
			Errors:        errs,
		},
		Results: results,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
