package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"paperlens/internal/analysis"
	"paperlens/internal/logger"
	"paperlens/internal/models"
	"paperlens/internal/util"
)

type encodedJob struct {
	job models.AnalysisJob
}

func (e encodedJob) HasValue() bool { return true }

func (e encodedJob) Get(valuePtr interface{}) error {
	b, err := json.Marshal(e.job)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, valuePtr)
}

func TestTemporalRunnerSubmitStartsWorkflow(t *testing.T) {
	pdf := filepath.Join(t.TempDir(), "p.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))

	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("analysis-123")
	run.On("GetRunID").Return("run-1")
	c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
		return o.TaskQueue == "paperlens" && strings.HasPrefix(o.ID, "analysis-")
	}), mock.Anything, AnalyzePaperInput{Request: analysis.Request{UID: "alice", Path: pdf}}).Return(run, nil)

	r := NewTemporalRunner(c, "paperlens", logger.NewNop())
	id, err := r.Submit(context.Background(), analysis.Request{UID: "alice", Path: pdf})
	require.NoError(t, err)
	require.Equal(t, "analysis-123", id)
	c.AssertExpectations(t)
}

func TestTemporalRunnerSubmitValidatesFirst(t *testing.T) {
	c := &mocks.Client{}
	r := NewTemporalRunner(c, "paperlens", logger.NewNop())
	_, err := r.Submit(context.Background(), analysis.Request{Path: "/tmp/p.pdf"})
	require.ErrorIs(t, err, util.ErrInvalidInput)
	c.AssertNotCalled(t, "ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTemporalRunnerStatus(t *testing.T) {
	c := &mocks.Client{}
	want := models.AnalysisJob{JobID: "analysis-1", Status: models.JobProcessing, Progress: 60, Message: "summary ready"}
	c.On("QueryWorkflow", mock.Anything, "analysis-1", "", QueryGetJobStatus).Return(encodedJob{job: want}, nil)
	c.On("QueryWorkflow", mock.Anything, "missing", "", QueryGetJobStatus).Return(nil, serviceerror.NewNotFound("workflow not found"))
	c.On("QueryWorkflow", mock.Anything, "broken", "", QueryGetJobStatus).Return(nil, errors.New("frontend unavailable"))
	r := NewTemporalRunner(c, "paperlens", logger.NewNop())

	got, err := r.Status(context.Background(), "analysis-1")
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = r.Status(context.Background(), "missing")
	require.NoError(t, err)
	require.Equal(t, models.JobNotFound, got.Status)
	require.Equal(t, "missing", got.JobID)

	_, err = r.Status(context.Background(), "broken")
	require.ErrorContains(t, err, "frontend unavailable")
}
