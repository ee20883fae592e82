/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
)

// DetectionMAP scores object detection with a simplified mean average
// precision: per-category AP is the running-precision average over
// confidence-sorted predictions with greedy IoU matching.
type DetectionMAP struct{}

func (s *DetectionMAP) Score(workspace string, params map[string]any) (*schemas.Result, error) {
	gt, err := loadDetectionJSON(filepath.Join(workspace, "input", "gt.json"), "ground truth")
	if err != nil {
		return nil, err
	}
	pred, err := loadDetectionJSON(filepath.Join(workspace, "output", "pred.json"), "predictions")
	if err != nil {
		return nil, err
	}
	if err := validateDetectionItems(gt, []string{"image_id", "bbox", "category_id"}, "GT"); err != nil {
		return nil, err
	}
	if err := validateDetectionItems(pred, []string{"image_id", "bbox", "category_id", "score"}, "Prediction"); err != nil {
		return nil, err
	}

	iouThreshold := paramFloat(params, "iou_threshold", 0.5)
	scoreThreshold := paramFloat(params, "score_threshold", 0.0)

	gtBoxes := toDetectionBoxes(gt)
	var predBoxes []detectionBox
	for _, item := range toDetectionBoxes(pred) {
		if item.Score >= scoreThreshold {
			predBoxes = append(predBoxes, item)
		}
	}

	categories := map[string]bool{}
	for _, b := range gtBoxes {
		categories[b.Category] = true
	}
	for _, b := range predBoxes {
		categories[b.Category] = true
	}
	sortedCategories := make([]string, 0, len(categories))
	for c := range categories {
		sortedCategories = append(sortedCategories, c)
	}
	sort.Strings(sortedCategories)

	metrics := map[string]float64{
		"num_categories":   float64(len(categories)),
		"total_gt_boxes":   float64(len(gtBoxes)),
		"total_pred_boxes": float64(len(predBoxes)),
		"iou_threshold":    iouThreshold,
		"score_threshold":  scoreThreshold,
	}
	var apSum float64
	for _, category := range sortedCategories {
		ap := computeCategoryAP(gtBoxes, predBoxes, category, iouThreshold)
		metrics["AP_class_"+category] = ap
		apSum += ap
	}
	var mapScore float64
	if len(categories) > 0 {
		mapScore = apSum / float64(len(categories))
	}
	metrics["mAP"] = mapScore

	result := schemas.NewResult()
	result.Summary = map[string]any{
		"score": mapScore,
		"mAP":   mapScore,
		"rank":  rankHigherBetter(mapScore, 0.7, 0.5, 0.3),
		"pass":  mapScore >= paramFloat(params, "pass_threshold", 0.5),
	}
	result.Metrics = metrics
	result.Versioning = versioning("detection_map", "2.0.0", "Mean Average Precision (simplified)")
	return result, nil
}

type detectionBox struct {
	Image    string
	Category string
	Bbox     []float64
	Score    float64
}

func loadDetectionJSON(path, side string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.CodeMissingFile, "File not found: %s", path)
		}
		return nil, errors.Newf(errors.CodePermissionError, "cannot read file: %s", path)
	}
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		var probe any
		if json.Unmarshal(data, &probe) == nil {
			return nil, errors.Newf(errors.CodeBadFormat, "%s must be a JSON array: %s", side, path)
		}
		return nil, errors.Newf(errors.CodeParseError, "JSON parsing failed for %s: %v", path, err)
	}
	items := make([]map[string]any, len(raw))
	for i, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			items[i] = nil
			continue
		}
		items[i] = obj
	}
	return items, nil
}

// validateDetectionItems checks only the first five entries.
func validateDetectionItems(items []map[string]any, required []string, side string) error {
	limit := len(items)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		item := items[i]
		if item == nil {
			return errors.Newf(errors.CodeBadFormat, "%s item %d must be an object", side, i)
		}
		for _, field := range required {
			if _, ok := item[field]; !ok {
				return errors.Newf(errors.CodeBadFormat, "%s item %d missing field: %s", side, i, field)
			}
		}
		bbox, ok := item["bbox"].([]any)
		if !ok || len(bbox) != 4 {
			return errors.Newf(errors.CodeBadFormat, "%s item %d bbox must be [x, y, width, height]", side, i)
		}
		if _, needScore := item["score"]; needScore && side == "Prediction" {
			score, ok := item["score"].(float64)
			if !ok {
				return errors.Newf(errors.CodeBadFormat, "%s item %d score must be a number: %v", side, i, item["score"])
			}
			if score < 0 || score > 1 {
				return errors.Newf(errors.CodeBadFormat, "%s item %d score must be between 0 and 1: %v", side, i, score)
			}
		}
	}
	return nil
}

func toDetectionBoxes(items []map[string]any) []detectionBox {
	boxes := make([]detectionBox, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		box := detectionBox{
			Image:    stringKey(item["image_id"]),
			Category: stringKey(item["category_id"]),
		}
		if raw, ok := item["bbox"].([]any); ok {
			for _, v := range raw {
				if f, ok := v.(float64); ok {
					box.Bbox = append(box.Bbox, f)
				}
			}
		}
		if score, ok := item["score"].(float64); ok {
			box.Score = score
		}
		boxes = append(boxes, box)
	}
	return boxes
}

// stringKey normalizes image and category ids, which may arrive as JSON
// strings or numbers.
func stringKey(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func computeCategoryAP(gtBoxes, predBoxes []detectionBox, category string, iouThreshold float64) float64 {
	var gts []detectionBox
	for _, b := range gtBoxes {
		if b.Category == category {
			gts = append(gts, b)
		}
	}
	var preds []detectionBox
	for _, b := range predBoxes {
		if b.Category == category {
			preds = append(preds, b)
		}
	}
	if len(gts) == 0 || len(preds) == 0 {
		return 0
	}

	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Score > preds[j].Score })

	matched := map[int]bool{}
	var tp, fp int
	var precisionSum float64
	for _, p := range preds {
		bestIoU := 0.0
		bestIdx := -1
		for i, g := range gts {
			if g.Image != p.Image || matched[i] {
				continue
			}
			if iou := computeIoU(p.Bbox, g.Bbox); iou > bestIoU {
				bestIoU = iou
				bestIdx = i
			}
		}
		if bestIoU >= iouThreshold && bestIdx >= 0 {
			tp++
			matched[bestIdx] = true
		} else {
			fp++
		}
		precisionSum += float64(tp) / float64(tp+fp)
	}
	return precisionSum / float64(len(preds))
}

// computeIoU expects [x, y, width, height] boxes.
func computeIoU(a, b []float64) float64 {
	if len(a) != 4 || len(b) != 4 {
		return 0
	}
	ax1, ay1, ax2, ay2 := a[0], a[1], a[0]+a[2], a[1]+a[3]
	bx1, by1, bx2, by2 := b[0], b[1], b[0]+b[2], b[1]+b[3]

	ix1 := maxFloat(ax1, bx1)
	iy1 := maxFloat(ay1, by1)
	ix2 := minFloat(ax2, bx2)
	iy2 := minFloat(ay2, by2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := a[2]*a[3] + b[2]*b[3] - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
