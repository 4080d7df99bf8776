// Package workflows drives paper analysis as a Temporal workflow.
package workflows

import (
	"errors"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"paperlens/internal/activities"
	"paperlens/internal/analysis"
	"paperlens/internal/models"
	"paperlens/internal/util"
)

const QueryGetJobStatus = "GetJobStatus"

// AnalyzePaperWorkflow runs the analysis stages and always completes with
// the final job record; stage failures end in a failed record rather than a
// workflow error so the status stays queryable.
func AnalyzePaperWorkflow(ctx workflow.Context, input AnalyzePaperInput) (models.AnalysisJob, error) {
	req := input.Request
	job := models.AnalysisJob{
		JobID:   workflow.GetInfo(ctx).WorkflowExecution.ID,
		Status:  models.JobProcessing,
		Message: "analysis queued",
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetJobStatus, func() (models.AnalysisJob, error) {
		return job, nil
	}); err != nil {
		return job, err
	}
	logger := workflow.GetLogger(ctx)

	attempts := int32(defaultCount(input.MaxAttempts, 1))
	ioCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    attempts,
		},
	})
	modelCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: durationOrDefault(input.ModelTimeoutSeconds, 900),
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    attempts,
		},
	})

	step := func(progress int, message string) {
		job.Progress = progress
		job.Message = message
	}
	fail := func(stage string, err error) (models.AnalysisJob, error) {
		logger.Warn("analysis stage failed", "stage", stage, "error", err)
		job.Status = models.JobFailed
		job.Message = "analysis failed"
		job.Error = failReason(err)
		return job, nil
	}

	var resolved activities.ResolveInputOutput
	if err := workflow.ExecuteActivity(ioCtx, "ResolveInputActivity", activities.ResolveInputInput{Path: req.Path}).Get(ctx, &resolved); err != nil {
		return fail("resolve", err)
	}
	step(analysis.ProgressResolved, "input resolved")

	var text activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ioCtx, "ExtractTextActivity", activities.ExtractTextInput{Path: resolved.LocalPath}).Get(ctx, &text); err != nil {
		return fail("extract_text", err)
	}
	step(analysis.ProgressExtracted, "text extracted")

	step(analysis.ProgressSummarizing, "summarizing")
	var sum activities.SummarizeOutput
	if err := workflow.ExecuteActivity(modelCtx, "SummarizeActivity", activities.SummarizeInput{
		UID:   req.UID,
		DocID: req.DocID,
		Text:  text.Text,
		Meta:  req.Meta,
	}).Get(ctx, &sum); err != nil {
		return fail("summarize", err)
	}
	step(analysis.ProgressSummarized, "summary ready")

	var ins activities.InsightsOutput
	if err := workflow.ExecuteActivity(modelCtx, "InsightsActivity", activities.InsightsInput{
		UID:     req.UID,
		DocID:   req.DocID,
		Summary: sum.Summary,
	}).Get(ctx, &ins); err != nil {
		return fail("insights", err)
	}
	step(analysis.ProgressInsights, "insights extracted")

	res := models.AnalysisResult{Summary: sum.Summary, Insights: ins.Insights}
	var stored activities.StorePaperOutput
	if err := workflow.ExecuteActivity(modelCtx, "StorePaperActivity", activities.StorePaperInput{
		Request:  req,
		Summary:  sum.Summary,
		Insights: ins.Insights,
	}).Get(ctx, &stored); err != nil {
		logger.Error("paper store failed, skipping enrichment", "error", err)
		res.Warnings = append(res.Warnings, failReason(err))
	}
	res.DocID = stored.DocID
	step(analysis.ProgressStored, "paper stored")

	var enriched activities.EnrichOutput
	if res.DocID != "" {
		if err := workflow.ExecuteActivity(modelCtx, "EnrichActivity", activities.EnrichInput{
			UID:      req.UID,
			DocID:    res.DocID,
			Text:     text.Text,
			Summary:  sum.Summary,
			Insights: ins.Insights,
		}).Get(ctx, &enriched); err != nil {
			res.Warnings = append(res.Warnings, failReason(err))
		}
		res.ChunkCount = enriched.Written
		res.Warnings = append(res.Warnings, enriched.Warnings...)
		step(analysis.ProgressEnriched, "enrichment stored")
	}

	key := res.DocID
	if key == "" {
		key = job.JobID
	}
	if err := workflow.ExecuteActivity(ioCtx, "WriteArtifactActivity", activities.WriteArtifactInput{
		UID:    req.UID,
		Key:    key,
		Result: res,
		Chunks: enriched.Chunks,
	}).Get(ctx, nil); err != nil {
		logger.Warn("artifact write failed", "error", err)
	}

	job.Status = models.JobCompleted
	job.Progress = 100
	job.Message = "analysis complete"
	job.Result = &res
	return job, nil
}

// failReason turns an activity failure into the message stored on the job.
func failReason(err error) string {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	if appErr.Type() == activities.ErrTypeNoText {
		return util.ErrNoExtractableText.Error()
	}
	msg := appErr.Error()
	if i := strings.Index(msg, " (type: "); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
