package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"paperlens/internal/activities"
	"paperlens/internal/analysis"
	"paperlens/internal/models"
	"paperlens/internal/util"
)

// registerStubs registers every stage except the ones named in skip, so a
// call to a skipped stage fails the activity.
func registerStubs(env *testsuite.TestWorkflowEnvironment, skip ...string) {
	skipped := map[string]bool{}
	for _, name := range skip {
		skipped[name] = true
	}
	register := func(name string, fn interface{}) {
		if !skipped[name] {
			env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
		}
	}
	register("ResolveInputActivity", func(context.Context, activities.ResolveInputInput) (activities.ResolveInputOutput, error) {
		return activities.ResolveInputOutput{}, nil
	})
	register("ExtractTextActivity", func(context.Context, activities.ExtractTextInput) (activities.ExtractTextOutput, error) {
		return activities.ExtractTextOutput{}, nil
	})
	register("SummarizeActivity", func(context.Context, activities.SummarizeInput) (activities.SummarizeOutput, error) {
		return activities.SummarizeOutput{}, nil
	})
	register("InsightsActivity", func(context.Context, activities.InsightsInput) (activities.InsightsOutput, error) {
		return activities.InsightsOutput{}, nil
	})
	register("StorePaperActivity", func(context.Context, activities.StorePaperInput) (activities.StorePaperOutput, error) {
		return activities.StorePaperOutput{}, nil
	})
	register("EnrichActivity", func(context.Context, activities.EnrichInput) (activities.EnrichOutput, error) {
		return activities.EnrichOutput{}, nil
	})
	register("WriteArtifactActivity", func(context.Context, activities.WriteArtifactInput) (activities.WriteArtifactOutput, error) {
		return activities.WriteArtifactOutput{}, nil
	})
}

var testRequest = analysis.Request{UID: "alice", Path: "/tmp/p.pdf", Meta: models.PaperMeta{Title: "Sparse Retrieval"}}

func testSummary() models.StructuredSummary {
	return models.StructuredSummary{
		Abstract:  "We study sparse retrieval.",
		KeyPoints: []string{"sparse beats dense on rare terms"},
		Meta:      models.PaperMeta{Title: "Sparse Retrieval"},
	}
}

func finalJob(t *testing.T, env *testsuite.TestWorkflowEnvironment) models.AnalysisJob {
	t.Helper()
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var job models.AnalysisJob
	require.NoError(t, env.GetWorkflowResult(&job))
	return job
}

func TestAnalyzePaperWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AnalyzePaperWorkflow)
	registerStubs(env)

	ins := models.StructuredOf(models.StructuredInsights{Findings: []string{"sparse retrieval improves recall"}})
	env.OnActivity("ResolveInputActivity", mock.Anything, activities.ResolveInputInput{Path: "/tmp/p.pdf"}).Return(activities.ResolveInputOutput{LocalPath: "/tmp/p.pdf"}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, activities.ExtractTextInput{Path: "/tmp/p.pdf"}).Return(activities.ExtractTextOutput{Text: "Abstract. We study sparse retrieval."}, nil)
	env.OnActivity("SummarizeActivity", mock.Anything, mock.Anything).Return(activities.SummarizeOutput{Summary: testSummary()}, nil)
	env.OnActivity("InsightsActivity", mock.Anything, mock.Anything).Return(activities.InsightsOutput{Insights: ins}, nil)
	env.OnActivity("StorePaperActivity", mock.Anything, mock.Anything).Return(activities.StorePaperOutput{DocID: "doc-1"}, nil)
	env.OnActivity("EnrichActivity", mock.Anything, mock.MatchedBy(func(in activities.EnrichInput) bool {
		return in.DocID == "doc-1" && in.UID == "alice"
	})).Return(activities.EnrichOutput{Written: 7}, nil)
	env.OnActivity("WriteArtifactActivity", mock.Anything, mock.MatchedBy(func(in activities.WriteArtifactInput) bool {
		return in.Key == "doc-1"
	})).Return(activities.WriteArtifactOutput{Dir: "/data/out/x/doc-1"}, nil)

	env.ExecuteWorkflow(AnalyzePaperWorkflow, AnalyzePaperInput{Request: testRequest})
	job := finalJob(t, env)
	require.Equal(t, models.JobCompleted, job.Status)
	require.Equal(t, 100, job.Progress)
	require.NotNil(t, job.Result)
	require.Equal(t, "doc-1", job.Result.DocID)
	require.Equal(t, 7, job.Result.ChunkCount)
	require.Equal(t, "Sparse Retrieval", job.Result.Summary.Meta.Title)
	require.Equal(t, []string{"sparse retrieval improves recall"}, job.Result.Insights.Structured.Findings)
	require.Empty(t, job.Result.Warnings)

	val, err := env.QueryWorkflow(QueryGetJobStatus)
	require.NoError(t, err)
	var queried models.AnalysisJob
	require.NoError(t, val.Get(&queried))
	require.Equal(t, models.JobCompleted, queried.Status)
	env.AssertExpectations(t)
}

func TestAnalyzePaperWorkflowNoTextFails(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AnalyzePaperWorkflow)
	registerStubs(env)

	env.OnActivity("ResolveInputActivity", mock.Anything, mock.Anything).Return(activities.ResolveInputOutput{LocalPath: "/tmp/p.pdf"}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{},
		temporal.NewNonRetryableApplicationError(util.ErrNoExtractableText.Error(), activities.ErrTypeNoText, nil))

	env.ExecuteWorkflow(AnalyzePaperWorkflow, AnalyzePaperInput{Request: testRequest})
	job := finalJob(t, env)
	require.Equal(t, models.JobFailed, job.Status)
	require.Equal(t, util.ErrNoExtractableText.Error(), job.Error)
	require.Equal(t, analysis.ProgressResolved, job.Progress)
	require.Nil(t, job.Result)
}

func TestAnalyzePaperWorkflowModelFailureFails(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AnalyzePaperWorkflow)
	registerStubs(env)

	env.OnActivity("ResolveInputActivity", mock.Anything, mock.Anything).Return(activities.ResolveInputOutput{LocalPath: "/tmp/p.pdf"}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "some text"}, nil)
	env.OnActivity("SummarizeActivity", mock.Anything, mock.Anything).Return(activities.SummarizeOutput{},
		temporal.NewNonRetryableApplicationError("summarize chunk 1/1: invalid model name", "permanent", nil))

	env.ExecuteWorkflow(AnalyzePaperWorkflow, AnalyzePaperInput{Request: testRequest})
	job := finalJob(t, env)
	require.Equal(t, models.JobFailed, job.Status)
	require.Equal(t, "summarize chunk 1/1: invalid model name", job.Error)
	require.Equal(t, analysis.ProgressSummarizing, job.Progress)
}

func TestAnalyzePaperWorkflowStoreFailureSkipsEnrichment(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(AnalyzePaperWorkflow)
	registerStubs(env, "EnrichActivity")

	env.OnActivity("ResolveInputActivity", mock.Anything, mock.Anything).Return(activities.ResolveInputOutput{LocalPath: "/tmp/p.pdf"}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "some text"}, nil)
	env.OnActivity("SummarizeActivity", mock.Anything, mock.Anything).Return(activities.SummarizeOutput{Summary: testSummary()}, nil)
	env.OnActivity("InsightsActivity", mock.Anything, mock.Anything).Return(activities.InsightsOutput{Insights: models.RawInsights("not json")}, nil)
	env.OnActivity("StorePaperActivity", mock.Anything, mock.Anything).Return(activities.StorePaperOutput{},
		temporal.NewNonRetryableApplicationError("store paper: connection reset", "permanent", nil))
	env.OnActivity("WriteArtifactActivity", mock.Anything, mock.MatchedBy(func(in activities.WriteArtifactInput) bool {
		return in.Key != "" && in.Result.DocID == ""
	})).Return(activities.WriteArtifactOutput{}, nil)

	env.ExecuteWorkflow(AnalyzePaperWorkflow, AnalyzePaperInput{Request: testRequest})
	job := finalJob(t, env)
	require.Equal(t, models.JobCompleted, job.Status)
	require.Empty(t, job.Result.DocID)
	require.Zero(t, job.Result.ChunkCount)
	require.Equal(t, []string{"store paper: connection reset"}, job.Result.Warnings)
	require.True(t, job.Result.Insights.IsRaw())
}

func TestFailReason(t *testing.T) {
	require.Equal(t, "boom", failReason(errors.New("boom")))
	require.Equal(t, "rate limited", failReason(temporal.NewApplicationError("rate limited", "rate")))
	require.Equal(t, util.ErrNoExtractableText.Error(), failReason(temporal.NewNonRetryableApplicationError("x", activities.ErrTypeNoText, nil)))
}
