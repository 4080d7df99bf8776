// Package jobs tracks analysis job records in memory.
package jobs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"paperlens/internal/models"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrTerminal = errors.New("job already finished")
)

// Patch is a partial update. Zero fields leave the record unchanged.
type Patch struct {
	Status   models.JobStatus
	Progress int
	Message  string
	Result   *models.AnalysisResult
	Error    string
}

func Progress(progress int, message string) Patch {
	return Patch{Progress: progress, Message: message}
}

func Complete(res models.AnalysisResult) Patch {
	return Patch{Status: models.JobCompleted, Progress: 100, Message: "analysis complete", Result: &res}
}

func Fail(err error) Patch {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Patch{Status: models.JobFailed, Message: "analysis failed", Error: msg}
}

// Registry owns every job record. Callers only ever see copies.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*models.AnalysisJob
}

func NewRegistry() *Registry {
	return &Registry{jobs: map[string]*models.AnalysisJob{}}
}

// Create registers a new processing job at progress 0 under a fresh id.
func (r *Registry) Create(message string) models.AnalysisJob {
	job := &models.AnalysisJob{JobID: uuid.NewString(), Status: models.JobProcessing, Message: message}
	r.mu.Lock()
	r.jobs[job.JobID] = job
	r.mu.Unlock()
	return *job
}

// Get never fails: unknown ids report not_found.
func (r *Registry) Get(id string) models.AnalysisJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return models.AnalysisJob{JobID: id, Status: models.JobNotFound, Message: "job not found"}
	}
	return *job
}

// Update applies p atomically. Progress never moves backwards and a
// completed or failed job rejects every further update.
func (r *Registry) Update(id string, p Patch) (models.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return models.AnalysisJob{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	if job.Status.Terminal() {
		return *job, fmt.Errorf("update %s: %w", id, ErrTerminal)
	}
	next := *job
	if p.Progress > next.Progress {
		next.Progress = min(p.Progress, 100)
	}
	if p.Message != "" {
		next.Message = p.Message
	}
	switch p.Status {
	case "", models.JobProcessing:
	case models.JobCompleted:
		if p.Result == nil {
			return *job, fmt.Errorf("update %s: completed without result", id)
		}
		next.Status = models.JobCompleted
		next.Progress = 100
		next.Result = p.Result
	case models.JobFailed:
		next.Status = models.JobFailed
		next.Error = p.Error
		if next.Error == "" {
			next.Error = "unknown error"
		}
	default:
		return *job, fmt.Errorf("update %s: invalid status %q", id, p.Status)
	}
	r.jobs[id] = &next
	return next, nil
}

// Len reports how many job records the registry holds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
