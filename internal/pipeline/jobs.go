package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docqa/internal/chunker"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusChunking   JobStatus = "chunking"
	StatusIndexing   JobStatus = "indexing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Job tracks the state of a single document ingestion.
type Job struct {
	mu sync.Mutex

	ID        string `json:"job_id"`
	SessionID string `json:"session_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Chunking chunker.Config `json:"-"`
	Progress Progress       `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData   []byte
	exportPath string
	errors     []string
}

// Progress tracks processing progress.
type Progress struct {
	Pages       int      `json:"pages,omitempty"`
	TotalChunks int      `json:"total_chunks"`
	Indexed     bool     `json:"indexed"`
	Errors      []string `json:"errors"`
}

// NewJob creates a queued job for one uploaded file.
func NewJob(sessionID, filename string, data []byte, cfg chunker.Config) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Chunking:  cfg,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
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
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
	if status == StatusCompleted || status == StatusFailed || status == StatusDupSkipped {
		j.fileData = nil
	}
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetParsed records page count and content hash of the parsed document.
func (j *Job) SetParsed(pages int, hash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Pages = pages
	j.ContentHash = hash
	j.UpdatedAt = time.Now()
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// SetIndexed marks the session's index as rebuilt from this job.
func (j *Job) SetIndexed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Indexed = true
	j.UpdatedAt = time.Now()
}

// SetExportPath records where the chunks were written.
func (j *Job) SetExportPath(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.exportPath = path
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string    `json:"job_id"`
	SessionID  string    `json:"session_id"`
	Status     JobStatus `json:"status"`
	Phase      string    `json:"phase"`
	Filename   string    `json:"filename"`
	Strategy   string    `json:"strategy"`
	ExportPath string    `json:"export_path,omitempty"`
	Progress   Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:         j.ID,
		SessionID:  j.SessionID,
		Status:     j.Status,
		Phase:      j.Phase,
		Filename:   j.Filename,
		Strategy:   string(j.Chunking.Strategy),
		ExportPath: j.exportPath,
		Progress: Progress{
			Pages:       j.Progress.Pages,
			TotalChunks: j.Progress.TotalChunks,
			Indexed:     j.Progress.Indexed,
			Errors:      errs,
		},
	}
}

// Done reports whether the job has reached a terminal state.
func (s JobSnapshot) Done() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusDupSkipped:
		return true
	}
	return false
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
