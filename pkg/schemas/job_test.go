/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package schemas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autoerrors "github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
)

func writeMeta(t *testing.T, content string) string {
	t.Helper()
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "meta.json"), []byte(content), 0o644))
	return ws
}

func TestLoadJobSpecDefaults(t *testing.T) {
	ws := writeMeta(t, `{
		"job_id": "job-001",
		"task_type": "classification",
		"scorer": "classification_f1",
		"input_uri": "s3://in",
		"output_uri": "s3://out",
		"container": {"image": "scorer/cls", "cmd": ["python", "infer.py"]}
	}`)

	spec, err := LoadJobSpec(ws)
	require.NoError(t, err)
	assert.Equal(t, "job-001", spec.JobID)
	assert.Equal(t, 1800, spec.TimeLimit)
	assert.Equal(t, 1.0, spec.Resources.CPU)
	assert.Equal(t, "2Gi", spec.Resources.Memory)
	assert.Equal(t, 0, spec.Resources.GPUs)
	assert.NotNil(t, spec.Container.Env)
}

func TestLoadJobSpecMissing(t *testing.T) {
	_, err := LoadJobSpec(t.TempDir())
	e, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeMissingFile, e.Code)
}

func TestLoadJobSpecBadJSON(t *testing.T) {
	ws := writeMeta(t, `{not json`)
	_, err := LoadJobSpec(ws)
	e, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeParseError, e.Code)
}

func TestEnvelopeShapes(t *testing.T) {
	ok := Success(map[string]any{"status": "healthy"}, map[string]any{"action": "healthz"})
	assert.True(t, ok.OK)
	assert.Equal(t, Version, ok.Meta["version"])
	assert.Equal(t, "healthz", ok.Meta["action"])

	fail := Failure("SCORE_ERROR", "boom", "scoring", nil)
	assert.False(t, fail.OK)
	assert.Equal(t, "SCORE_ERROR", fail.Error.Code)
	assert.Equal(t, "scoring", fail.Error.Stage)
}
