/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autoerrors "github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/executor"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/scheduler"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/scorers"
)

const pipelineMeta = `{
	"job_id": "job-pipeline-001",
	"task_type": "classification",
	"scorer": "classification_f1",
	"input_uri": "local://input",
	"output_uri": "local://output",
	"resources": {"cpu": 1, "memory": "1Gi", "gpus": 0},
	"container": {"image": "scorer/cls:1.0", "cmd": ["python", "infer.py"]}
}`

type fakeRunner struct {
	err  error
	runs int
}

func (f *fakeRunner) Run(context.Context, *schemas.JobSpec, string) error {
	f.runs++
	return f.err
}

func newTestPipeline(runner *fakeRunner) *Pipeline {
	return &Pipeline{
		registry:  scorers.Default(),
		scheduler: scheduler.New(),
		newDocker: func() (executor.Executor, error) { return runner, nil },
	}
}

func newPipelineWorkspace(t *testing.T, gtCSV, predCSV string) string {
	t.Helper()
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "input"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "output"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "meta.json"), []byte(pipelineMeta), 0o644))
	if gtCSV != "" {
		require.NoError(t, os.WriteFile(filepath.Join(ws, "input", "gt.csv"), []byte(gtCSV), 0o644))
	}
	if predCSV != "" {
		require.NoError(t, os.WriteFile(filepath.Join(ws, "output", "pred.csv"), []byte(predCSV), 0o644))
	}
	return ws
}

func TestRunOnly(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestPipeline(runner)
	ws := newPipelineWorkspace(t, "id,label\n1,a\n", "")

	status, err := p.RunOnly(context.Background(), ws, "docker")
	require.NoError(t, err)
	assert.True(t, status.OK)
	assert.Equal(t, "inference_done", status.Stage)
	assert.Equal(t, "job-pipeline-001", status.JobID)
	assert.Equal(t, 1, runner.runs)
}

func TestRunOnlyValidationFailure(t *testing.T) {
	p := newTestPipeline(&fakeRunner{})
	ws := t.TempDir() // no input/, no meta.json

	_, err := p.RunOnly(context.Background(), ws, "docker")
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeMissingFile, typed.Code)
	assert.NotEmpty(t, typed.Details["all_errors"])
}

func TestScoreOnly(t *testing.T) {
	p := newTestPipeline(&fakeRunner{})
	ws := newPipelineWorkspace(t,
		"id,label\n1,cat\n2,dog\n",
		"id,label\n1,cat\n2,dog\n")

	result, out, err := p.ScoreOnly(ws, nil, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, "output", "result.json"), out)
	assert.InDelta(t, 1.0, result.Summary["score"], 1e-9)

	// Timing is filled by the pipeline, not the scorer.
	for _, key := range []string{"validate_time", "compute_time", "save_time", "total_time"} {
		_, ok := result.Timing[key]
		assert.True(t, ok, key)
	}

	// The persisted document carries its own file info from the second write.
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var persisted schemas.Result
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Equal(t, out, persisted.Artifacts["result_json"].Path)
	assert.Equal(t, filepath.Join(ws, "input", "gt.csv"), persisted.Artifacts["input_gt"].Path)
	assert.Equal(t, filepath.Join(ws, "output", "pred.csv"), persisted.Artifacts["output_pred"].Path)
}

func TestScoreOnlyScorerOverride(t *testing.T) {
	p := newTestPipeline(&fakeRunner{})
	ws := newPipelineWorkspace(t,
		"id,label\n1,cat\n2,dog\n",
		"id,label\n1,cat\n2,cat\n")

	result, _, err := p.ScoreOnly(ws, nil, "classification_accuracy")
	require.NoError(t, err)
	assert.Equal(t, "classification_accuracy", result.Versioning["scorer"])
	assert.InDelta(t, 0.5, result.Metrics["accuracy"], 1e-9)
}

func TestScoreOnlyScorerNotFound(t *testing.T) {
	p := newTestPipeline(&fakeRunner{})
	ws := newPipelineWorkspace(t, "id,label\n1,a\n", "id,label\n1,a\n")

	_, _, err := p.ScoreOnly(ws, nil, "no_such_scorer")
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeScorerNotFound, typed.Code)
	assert.Equal(t, "no_such_scorer", typed.Details["requested_scorer"])
}

func TestRunAndScoreSuccess(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestPipeline(runner)
	ws := newPipelineWorkspace(t,
		"id,label\n1,cat\n",
		"id,label\n1,cat\n")

	outcome := p.RunAndScore(context.Background(), ws, nil, "docker", "")
	assert.True(t, outcome.OK)
	require.NotNil(t, outcome.Result)
	assert.InDelta(t, 1.0, outcome.Result.Summary["score"], 1e-9)
	assert.Equal(t, 1, runner.runs)
}

func TestRunAndScoreRunFailure(t *testing.T) {
	runner := &fakeRunner{err: autoerrors.Newf(autoerrors.CodeContainerExitNonzero, "exit 2")}
	p := newTestPipeline(runner)
	ws := newPipelineWorkspace(t, "id,label\n1,a\n", "")

	outcome := p.RunAndScore(context.Background(), ws, nil, "docker", "")
	assert.False(t, outcome.OK)
	assert.Equal(t, "run", outcome.Stage)
	assert.Equal(t, autoerrors.CodeContainerExitNonzero, outcome.Code)
	assert.Equal(t, filepath.Join(ws, "logs", "container.log"), outcome.Logs)
}

func TestRunAndScoreScoreFailure(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestPipeline(runner)
	// No pred.csv: scoring fails after a successful run.
	ws := newPipelineWorkspace(t, "id,label\n1,a\n", "")

	outcome := p.RunAndScore(context.Background(), ws, nil, "docker", "")
	assert.False(t, outcome.OK)
	assert.Equal(t, "score", outcome.Stage)
	require.NotNil(t, outcome.Result)
	require.NotNil(t, outcome.Result.Error)
	assert.Equal(t, autoerrors.CodeMissingFile, outcome.Result.Error.Code)
	assert.Equal(t, "score", outcome.Result.Error.Stage)

	// The failure document is persisted.
	_, err := os.Stat(filepath.Join(ws, "output", "result.json"))
	assert.NoError(t, err)
}
