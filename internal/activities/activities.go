// Package activities exposes the analysis stages as Temporal activities.
package activities

import (
	"context"
	"errors"
	"strings"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"paperlens/internal/analysis"
	"paperlens/internal/logger"
	"paperlens/internal/providers"
	"paperlens/internal/util"
)

// Application error types the workflow branches on.
const (
	ErrTypeInvalidInput = "InvalidInput"
	ErrTypeNoText       = "NoExtractableText"
)

type Activities struct {
	pipeline *analysis.Pipeline
	log      *logger.Logger
}

func New(pipeline *analysis.Pipeline, log *logger.Logger) *Activities {
	return &Activities{pipeline: pipeline, log: log.With("component", "activities")}
}

func (a *Activities) ResolveInputActivity(ctx context.Context, in ResolveInputInput) (ResolveInputOutput, error) {
	local, err := a.pipeline.Resolve(ctx, in.Path)
	if err != nil {
		return ResolveInputOutput{}, err
	}
	return ResolveInputOutput{LocalPath: local}, nil
}

// ExtractTextActivity fails without retry when the document yields no text.
func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	text := a.pipeline.ExtractText(ctx, in.Path)
	if strings.TrimSpace(text) == "" {
		return ExtractTextOutput{}, temporal.NewNonRetryableApplicationError(util.ErrNoExtractableText.Error(), ErrTypeNoText, nil)
	}
	return ExtractTextOutput{Text: text}, nil
}

func (a *Activities) SummarizeActivity(ctx context.Context, in SummarizeInput) (SummarizeOutput, error) {
	ctx = scoped(ctx, in.UID, in.DocID)
	summary, err := a.pipeline.Summarize(ctx, in.Text, in.Meta, func(progress int, _ string) {
		activity.RecordHeartbeat(ctx, progress)
	})
	if err != nil {
		return SummarizeOutput{}, a.modelError("summarize", err)
	}
	return SummarizeOutput{Summary: summary}, nil
}

func (a *Activities) InsightsActivity(ctx context.Context, in InsightsInput) (InsightsOutput, error) {
	ctx = scoped(ctx, in.UID, in.DocID)
	out, err := a.pipeline.ExtractInsights(ctx, in.Summary)
	if err != nil {
		return InsightsOutput{}, a.modelError("insights", err)
	}
	return InsightsOutput{Insights: out}, nil
}

func (a *Activities) StorePaperActivity(ctx context.Context, in StorePaperInput) (StorePaperOutput, error) {
	ctx = scoped(ctx, in.Request.UID, in.Request.DocID)
	docID, err := a.pipeline.Store(ctx, in.Request, in.Summary, in.Insights)
	if err != nil {
		if errors.Is(err, util.ErrInvalidInput) {
			return StorePaperOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInput, nil)
		}
		return StorePaperOutput{}, err
	}
	return StorePaperOutput{DocID: docID}, nil
}

// EnrichActivity never fails; batch problems come back as warnings.
func (a *Activities) EnrichActivity(ctx context.Context, in EnrichInput) (EnrichOutput, error) {
	ctx = scoped(ctx, in.UID, in.DocID)
	chunks, rep := a.pipeline.Enrich(ctx, in.UID, in.DocID, in.Text, in.Summary, in.Insights)
	out := EnrichOutput{Chunks: chunks, Written: rep.Written, Failed: rep.Failed}
	if err := rep.Err(); err != nil {
		out.Warnings = append(out.Warnings, err.Error())
	}
	return out, nil
}

func (a *Activities) WriteArtifactActivity(ctx context.Context, in WriteArtifactInput) (WriteArtifactOutput, error) {
	_ = ctx
	return WriteArtifactOutput{Dir: a.pipeline.WriteArtifact(in.UID, in.Key, in.Result, in.Chunks)}, nil
}

// modelError keeps rate limits and transient outages retryable and stops
// retries for everything else.
func (a *Activities) modelError(stage string, err error) error {
	if errors.Is(err, util.ErrNoExtractableText) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNoText, nil)
	}
	kind := providers.ClassifyError(err)
	a.log.Warn("model stage failed", "stage", stage, "error_type", kind, "error", err)
	switch kind {
	case providers.ErrorRate, providers.ErrorTransient:
		return temporal.NewApplicationError(err.Error(), string(kind))
	default:
		return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), nil)
	}
}

func scoped(ctx context.Context, uid, docID string) context.Context {
	jobID := activity.GetInfo(ctx).WorkflowExecution.ID
	return providers.WithScope(ctx, providers.Scope{UID: uid, DocID: docID, JobID: jobID})
}
