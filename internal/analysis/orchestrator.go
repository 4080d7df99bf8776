package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"paperlens/internal/jobs"
	"paperlens/internal/logger"
	"paperlens/internal/models"
	"paperlens/internal/providers"
)

// Runner accepts analysis requests and reports job status. The in-process
// Orchestrator and the Temporal runner both satisfy it.
type Runner interface {
	Submit(ctx context.Context, req Request) (string, error)
	Status(ctx context.Context, jobID string) (models.AnalysisJob, error)
}

// Orchestrator runs each job on its own goroutine against the shared
// pipeline and records progress in the registry.
type Orchestrator struct {
	pipeline *Pipeline
	registry *jobs.Registry
	log      *logger.Logger
	baseCtx  context.Context
	wg       sync.WaitGroup
}

func NewOrchestrator(pipeline *Pipeline, registry *jobs.Registry, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		pipeline: pipeline,
		registry: registry,
		log:      log.With("component", "orchestrator"),
		baseCtx:  context.Background(),
	}
}

// Submit validates req, registers a job and starts it. Jobs outlive the
// submitting request's context.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	job := o.registry.Create("analysis queued")
	o.log.Info("analysis submitted", "job_id", job.JobID, "uid", req.UID, "tracked_jobs", o.registry.Len())
	o.wg.Add(1)
	go o.run(job.JobID, req)
	return job.JobID, nil
}

func (o *Orchestrator) Status(ctx context.Context, jobID string) (models.AnalysisJob, error) {
	_ = ctx
	return o.registry.Get(jobID), nil
}

// Wait blocks until every started job has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(jobID string, req Request) {
	defer o.wg.Done()
	log := o.log.With("job_id", jobID, "uid", req.UID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("analysis panicked", "panic", r)
			o.finish(jobID, jobs.Fail(fmt.Errorf("internal error: %v", r)))
		}
	}()

	ctx := providers.WithScope(o.baseCtx, providers.Scope{UID: req.UID, DocID: req.DocID, JobID: jobID})
	res, err := o.pipeline.Run(ctx, jobID, req, func(progress int, message string) {
		if _, err := o.registry.Update(jobID, jobs.Progress(progress, message)); err != nil {
			log.Warn("progress update rejected", "error", err)
		}
	})
	if err != nil {
		log.Warn("analysis failed", "error", err)
		o.finish(jobID, jobs.Fail(err))
		return
	}
	o.finish(jobID, jobs.Complete(res))
}

func (o *Orchestrator) finish(jobID string, p jobs.Patch) {
	if _, err := o.registry.Update(jobID, p); err != nil && !errors.Is(err, jobs.ErrTerminal) {
		o.log.Error("final job update failed", "job_id", jobID, "error", err)
	}
}
