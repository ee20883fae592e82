/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autoerrors "github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadErrCode(t *testing.T, err error) string {
	t.Helper()
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok, "expected typed error, got %v", err)
	return typed.Code
}

func TestLoadLabelCSV(t *testing.T) {
	path := writeCSV(t, "id,label\n1,cat\n2,dog\n")
	table, err := LoadLabelCSV(path, "label")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, table.Order)
	assert.Equal(t, "cat", table.Get("1", "label"))
	assert.Equal(t, "dog", table.Get("2", "label"))
}

func TestLoadLabelCSVErrors(t *testing.T) {
	_, err := LoadLabelCSV(filepath.Join(t.TempDir(), "nope.csv"), "label")
	assert.Equal(t, autoerrors.CodeMissingFile, loadErrCode(t, err))

	_, err = LoadLabelCSV(writeCSV(t, "id,other\n1,x\n"), "label")
	assert.Equal(t, autoerrors.CodeBadFormat, loadErrCode(t, err))

	_, err = LoadLabelCSV(writeCSV(t, "id,label\n"), "label")
	assert.Equal(t, autoerrors.CodeBadFormat, loadErrCode(t, err))

	_, err = LoadLabelCSV(writeCSV(t, "id,label\n,cat\n"), "label")
	assert.Equal(t, autoerrors.CodeBadFormat, loadErrCode(t, err))

	_, err = LoadLabelCSV(writeCSV(t, "id,label\n1,cat\n1,dog\n"), "label")
	assert.Equal(t, autoerrors.CodeMismatch, loadErrCode(t, err))
}

func TestCheckIDConsistency(t *testing.T) {
	gt, err := LoadLabelCSV(writeCSV(t, "id,label\n1,a\n2,b\n"), "label")
	require.NoError(t, err)
	pred, err := LoadLabelCSV(writeCSV(t, "id,label\n1,a\n3,b\n"), "label")
	require.NoError(t, err)

	require.NoError(t, CheckIDConsistency(gt, gt))

	err = CheckIDConsistency(gt, pred)
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeMismatch, typed.Code)
	assert.Equal(t, 2, typed.Details["gt_count"])
	assert.Equal(t, 2, typed.Details["pred_count"])
	assert.Equal(t, 1, typed.Details["missing_in_pred"])
	assert.Equal(t, 1, typed.Details["extra_in_pred"])
	assert.Contains(t, typed.Message, "Missing in predictions")
	assert.Contains(t, typed.Message, "Extra in predictions")
}
