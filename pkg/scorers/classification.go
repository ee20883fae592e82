/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
)

// ClassificationF1 scores single-label classification with macro-averaged
// F1 over the ground-truth label set.
type ClassificationF1 struct{}

func (s *ClassificationF1) Score(workspace string, params map[string]any) (*schemas.Result, error) {
	gt, pred, err := loadClassificationTables(workspace)
	if err != nil {
		return nil, err
	}

	labels := sortedGTLabels(gt)
	metrics := map[string]float64{
		"f1_macro":      0,
		"num_labels":    float64(len(labels)),
		"total_samples": float64(len(gt.Rows)),
	}
	var sum float64
	for _, label := range labels {
		var tp, fp, fn int
		for id, row := range gt.Rows {
			gtLabel := row["label"]
			predLabel := pred.Get(id, "label")
			if gtLabel == label && predLabel == label {
				tp++
			}
			if gtLabel == label && predLabel != label {
				fn++
			}
		}
		for id, row := range pred.Rows {
			if row["label"] == label && gt.Get(id, "label") != label {
				fp++
			}
		}
		var precision, recall, f1 float64
		if tp+fp > 0 {
			precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			recall = float64(tp) / float64(tp+fn)
		}
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		metrics["f1_"+label] = f1
		sum += f1
	}
	if len(labels) > 0 {
		metrics["f1_macro"] = sum / float64(len(labels))
	}

	score := metrics["f1_macro"]
	result := schemas.NewResult()
	result.Summary = map[string]any{
		"score":    score,
		"f1_macro": score,
		"rank":     rankHigherBetter(score, 0.9, 0.8, 0.7),
		"pass":     score >= paramFloat(params, "pass_threshold", 0.8),
	}
	result.Metrics = metrics
	result.Versioning = versioning("classification_f1", "2.0.0", "F1-Score Macro Average")
	return result, nil
}

// ClassificationAccuracy scores single-label classification with overall
// and per-class accuracy.
type ClassificationAccuracy struct{}

func (s *ClassificationAccuracy) Score(workspace string, params map[string]any) (*schemas.Result, error) {
	gt, pred, err := loadClassificationTables(workspace)
	if err != nil {
		return nil, err
	}

	var correct int
	for id, row := range gt.Rows {
		if row["label"] == pred.Get(id, "label") {
			correct++
		}
	}
	total := len(gt.Rows)
	var accuracy float64
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}

	labels := sortedGTLabels(gt)
	metrics := map[string]float64{
		"accuracy":    accuracy,
		"correct":     float64(correct),
		"total":       float64(total),
		"num_classes": float64(len(labels)),
	}
	for _, label := range labels {
		var labelCorrect, labelTotal int
		for id, row := range gt.Rows {
			if row["label"] != label {
				continue
			}
			labelTotal++
			if pred.Get(id, "label") == label {
				labelCorrect++
			}
		}
		var acc float64
		if labelTotal > 0 {
			acc = float64(labelCorrect) / float64(labelTotal)
		}
		metrics["acc_"+label] = acc
	}

	result := schemas.NewResult()
	result.Summary = map[string]any{
		"score":    accuracy,
		"accuracy": accuracy,
		"rank":     rankHigherBetter(accuracy, 0.95, 0.85, 0.75),
		"pass":     accuracy >= paramFloat(params, "pass_threshold", 0.8),
	}
	result.Metrics = metrics
	result.Versioning = versioning("classification_accuracy", "2.0.0", "Classification Accuracy")
	return result, nil
}

func loadClassificationTables(workspace string) (gt, pred *LabelTable, err error) {
	gt, err = LoadLabelCSV(filepath.Join(workspace, "input", "gt.csv"), "label")
	if err != nil {
		return nil, nil, err
	}
	pred, err = LoadLabelCSV(filepath.Join(workspace, "output", "pred.csv"), "label")
	if err != nil {
		return nil, nil, err
	}
	if err = CheckIDConsistency(gt, pred); err != nil {
		return nil, nil, err
	}
	for id, row := range gt.Rows {
		if strings.TrimSpace(row["label"]) == "" {
			return nil, nil, errors.Newf(errors.CodeBadFormat, "Empty label in GT for ID: %s", id)
		}
	}
	for id, row := range pred.Rows {
		if strings.TrimSpace(row["label"]) == "" {
			return nil, nil, errors.Newf(errors.CodeBadFormat, "Empty label in predictions for ID: %s", id)
		}
	}
	return gt, pred, nil
}

func sortedGTLabels(gt *LabelTable) []string {
	seen := map[string]bool{}
	for _, row := range gt.Rows {
		seen[row["label"]] = true
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
