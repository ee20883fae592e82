/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/utils/jsonutil"
)

// RegressionRMSE scores numeric regression with root mean square error.
// Smaller is better; pass means rmse at or under the threshold.
type RegressionRMSE struct{}

func (s *RegressionRMSE) Score(workspace string, params map[string]any) (*schemas.Result, error) {
	gtTable, err := LoadLabelCSV(filepath.Join(workspace, "input", "gt.csv"), "label")
	if err != nil {
		return nil, err
	}
	predTable, err := LoadLabelCSV(filepath.Join(workspace, "output", "pred.csv"), "label")
	if err != nil {
		return nil, err
	}
	if err := CheckIDConsistency(gtTable, predTable); err != nil {
		return nil, err
	}

	gt, err := toNumeric(gtTable, "GT")
	if err != nil {
		return nil, err
	}
	pred, err := toNumeric(predTable, "predictions")
	if err != nil {
		return nil, err
	}

	metrics := computeRMSEMetrics(gtTable.Order, gt, pred)
	if err := writeRegressionArtifacts(workspace, gtTable.Order, gt, pred, metrics); err != nil {
		return nil, err
	}

	rmse := metrics["rmse"]
	result := schemas.NewResult()
	result.Summary = map[string]any{
		"score": rmse,
		"rmse":  rmse,
		"rank":  rankLowerBetter(rmse, 0.1, 0.3, 0.5),
		"pass":  rmse <= paramFloat(params, "pass_threshold", 0.5),
	}
	result.Metrics = metrics
	result.Versioning = versioning("regression_rmse", "2.0.0", "Root Mean Square Error")
	return result, nil
}

func toNumeric(table *LabelTable, side string) (map[string]float64, error) {
	values := make(map[string]float64, len(table.Rows))
	for id, row := range table.Rows {
		v, err := strconv.ParseFloat(row["label"], 64)
		if err != nil {
			return nil, errors.Newf(errors.CodeTypeError,
				"Label cannot be converted to float in %s for ID %s: '%s'", side, id, row["label"])
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Newf(errors.CodeBadFormat,
				"Invalid numeric value in %s for ID %s: %v", side, id, v)
		}
		values[id] = v
	}
	return values, nil
}

func computeRMSEMetrics(order []string, gt, pred map[string]float64) map[string]float64 {
	n := len(gt)
	var seSum, aeSum, gtSum, predSum float64
	for _, id := range order {
		diff := pred[id] - gt[id]
		seSum += diff * diff
		aeSum += math.Abs(diff)
		gtSum += gt[id]
		predSum += pred[id]
	}

	var mse, mae, gtMean, predMean float64
	if n > 0 {
		mse = seSum / float64(n)
		mae = aeSum / float64(n)
		gtMean = gtSum / float64(n)
		predMean = predSum / float64(n)
	}

	var ssTot float64
	for _, id := range order {
		d := gt[id] - gtMean
		ssTot += d * d
	}
	var rSquared float64
	if ssTot > 0 {
		rSquared = 1 - seSum/ssTot
	}

	return map[string]float64{
		"rmse":      math.Sqrt(mse),
		"mse":       mse,
		"mae":       mae,
		"r_squared": rSquared,
		"gt_mean":   gtMean,
		"pred_mean": predMean,
		"n_samples": float64(n),
	}
}

func writeRegressionArtifacts(workspace string, order []string, gt, pred, metrics map[string]float64) error {
	dir := filepath.Join(workspace, "output", "artifacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Newf(errors.CodePermissionError, "cannot create artifacts dir: %v", err)
	}

	f, err := os.Create(filepath.Join(dir, "residuals.csv"))
	if err != nil {
		return errors.Newf(errors.CodePermissionError, "cannot write residuals.csv: %v", err)
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"id", "gt", "pred", "residual"})
	for _, id := range order {
		_ = w.Write([]string{
			id,
			formatFloat(gt[id]),
			formatFloat(pred[id]),
			formatFloat(pred[id] - gt[id]),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.Newf(errors.CodePermissionError, "cannot write residuals.csv: %v", err)
	}
	if err := f.Close(); err != nil {
		return errors.Newf(errors.CodePermissionError, "cannot write residuals.csv: %v", err)
	}

	if err := jsonutil.WriteFile(filepath.Join(dir, "summary.json"), metrics); err != nil {
		return errors.Newf(errors.CodePermissionError, "cannot write summary.json: %v", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
