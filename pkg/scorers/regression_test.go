/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autoerrors "github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
)

func TestRegressionRMSEPerfect(t *testing.T) {
	ws := newScoringWorkspace(t,
		"id,label\na,1.0\nb,2.0\nc,3.0\n",
		"id,label\na,1.0\nb,2.0\nc,3.0\n")

	result, err := (&RegressionRMSE{}).Score(ws, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, result.Metrics["rmse"], 1e-9)
	assert.InDelta(t, 0.0, result.Metrics["mae"], 1e-9)
	assert.InDelta(t, 1.0, result.Metrics["r_squared"], 1e-9)
	assert.InDelta(t, 2.0, result.Metrics["gt_mean"], 1e-9)
	assert.Equal(t, float64(3), result.Metrics["n_samples"])
	assert.Equal(t, "A", result.Summary["rank"])
	assert.Equal(t, true, result.Summary["pass"])
	assert.Equal(t, "Root Mean Square Error", result.Versioning["algorithm"])
}

func TestRegressionRMSEArtifacts(t *testing.T) {
	ws := newScoringWorkspace(t,
		"id,label\na,1\nb,2\n",
		"id,label\na,1.5\nb,2.5\n")

	result, err := (&RegressionRMSE{}).Score(ws, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, result.Metrics["rmse"], 1e-9)

	data, err := os.ReadFile(filepath.Join(ws, "output", "artifacts", "residuals.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,gt,pred,residual", lines[0])
	assert.Equal(t, "a,1,1.5,0.5", lines[1])
	assert.Equal(t, "b,2,2.5,0.5", lines[2])

	var summary map[string]float64
	raw, err := os.ReadFile(filepath.Join(ws, "output", "artifacts", "summary.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.InDelta(t, 0.5, summary["rmse"], 1e-9)
}

func TestRegressionRMSENonNumeric(t *testing.T) {
	ws := newScoringWorkspace(t,
		"id,label\na,1\n",
		"id,label\na,oops\n")

	_, err := (&RegressionRMSE{}).Score(ws, nil)
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeTypeError, typed.Code)
	assert.Contains(t, typed.Message, "predictions")
}

func TestRegressionRMSENaN(t *testing.T) {
	ws := newScoringWorkspace(t,
		"id,label\na,NaN\n",
		"id,label\na,1\n")

	_, err := (&RegressionRMSE{}).Score(ws, nil)
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeBadFormat, typed.Code)
}

func TestRegressionRMSEThreshold(t *testing.T) {
	ws := newScoringWorkspace(t,
		"id,label\na,0\nb,0\n",
		"id,label\na,0.4\nb,0.4\n")

	result, err := (&RegressionRMSE{}).Score(ws, map[string]any{"pass_threshold": 0.3})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, result.Metrics["rmse"], 1e-9)
	assert.Equal(t, "B", result.Summary["rank"])
	assert.Equal(t, false, result.Summary["pass"])
}
