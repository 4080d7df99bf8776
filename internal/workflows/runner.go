package workflows

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"paperlens/internal/analysis"
	"paperlens/internal/logger"
	"paperlens/internal/models"
)

// TemporalRunner submits analysis jobs as workflows and answers status
// from the workflow query handler. Job ids are workflow ids.
type TemporalRunner struct {
	client    client.Client
	taskQueue string
	log       *logger.Logger
}

func NewTemporalRunner(c client.Client, taskQueue string, log *logger.Logger) *TemporalRunner {
	return &TemporalRunner{client: c, taskQueue: taskQueue, log: log.With("component", "temporal_runner")}
}

func (r *TemporalRunner) Submit(ctx context.Context, req analysis.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	opts := client.StartWorkflowOptions{
		ID:        "analysis-" + uuid.NewString(),
		TaskQueue: r.taskQueue,
	}
	run, err := r.client.ExecuteWorkflow(ctx, opts, AnalyzePaperWorkflow, AnalyzePaperInput{Request: req})
	if err != nil {
		return "", fmt.Errorf("start analysis workflow: %w", err)
	}
	r.log.Info("analysis workflow started", "job_id", run.GetID(), "run_id", run.GetRunID(), "uid", req.UID)
	return run.GetID(), nil
}

// Status reports not_found for ids Temporal does not know.
func (r *TemporalRunner) Status(ctx context.Context, jobID string) (models.AnalysisJob, error) {
	val, err := r.client.QueryWorkflow(ctx, jobID, "", QueryGetJobStatus)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return models.AnalysisJob{JobID: jobID, Status: models.JobNotFound}, nil
		}
		return models.AnalysisJob{}, fmt.Errorf("query analysis workflow: %w", err)
	}
	var job models.AnalysisJob
	if err := val.Get(&job); err != nil {
		return models.AnalysisJob{}, fmt.Errorf("decode job status: %w", err)
	}
	return job, nil
}
