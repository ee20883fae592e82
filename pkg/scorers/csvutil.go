/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
)

// LabelTable holds one CSV table keyed by its id column. Order preserves
// the file's row order so downstream artifacts can mirror the input.
type LabelTable struct {
	Rows  map[string]map[string]string
	Order []string
}

// LoadLabelCSV reads a CSV that must contain an "id" column plus the given
// value columns. Ids must be unique and non-empty; cell values are not
// validated here, that is scorer-specific.
func LoadLabelCSV(path string, valueCols ...string) (*LabelTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.CodeMissingFile, "File not found: %s", path)
		}
		return nil, errors.Newf(errors.CodePermissionError, "cannot read file: %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Newf(errors.CodeParseError, "CSV parsing failed for %s: %v", path, err)
	}
	if len(records) == 0 {
		return nil, errors.Newf(errors.CodeBadFormat, "CSV file has no header: %s", path)
	}

	header := records[0]
	colIdx := map[string]int{}
	for i, name := range header {
		colIdx[name] = i
	}
	for _, col := range append([]string{"id"}, valueCols...) {
		if _, ok := colIdx[col]; !ok {
			return nil, errors.Newf(errors.CodeBadFormat, "Missing columns in %s: [%s]", path, col)
		}
	}

	table := &LabelTable{Rows: map[string]map[string]string{}}
	for i, record := range records[1:] {
		get := func(col string) string {
			idx := colIdx[col]
			if idx >= len(record) {
				return ""
			}
			return record[idx]
		}
		id := get("id")
		if id == "" {
			// +2 for the header line and 1-based numbering.
			return nil, errors.Newf(errors.CodeBadFormat, "Missing ID in row %d of %s", i+2, path)
		}
		if _, dup := table.Rows[id]; dup {
			return nil, errors.Newf(errors.CodeMismatch, "Duplicate ID in %s: %s", path, id)
		}
		row := map[string]string{}
		for _, col := range valueCols {
			row[col] = get(col)
		}
		table.Rows[id] = row
		table.Order = append(table.Order, id)
	}
	if len(table.Rows) == 0 {
		return nil, errors.Newf(errors.CodeBadFormat, "CSV file contains no data rows: %s", path)
	}
	return table, nil
}

// Get returns the value of col for id.
func (t *LabelTable) Get(id, col string) string {
	return t.Rows[id][col]
}

// CheckIDConsistency verifies both tables cover the same id set. On
// mismatch the message shows up to the first five sorted ids per side and
// the details carry the counts.
func CheckIDConsistency(gt, pred *LabelTable) error {
	var missing, extra []string
	for id := range gt.Rows {
		if _, ok := pred.Rows[id]; !ok {
			missing = append(missing, id)
		}
	}
	for id := range pred.Rows {
		if _, ok := gt.Rows[id]; !ok {
			extra = append(extra, id)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("Missing in predictions: %v", headIDs(missing)))
	}
	if len(extra) > 0 {
		parts = append(parts, fmt.Sprintf("Extra in predictions: %v", headIDs(extra)))
	}
	msg := "ID mismatch between GT and predictions. " + parts[0]
	if len(parts) == 2 {
		msg += "; " + parts[1]
	}
	return errors.New(errors.CodeMismatch, msg).
		WithDetails(map[string]any{
			"gt_count":        len(gt.Rows),
			"pred_count":      len(pred.Rows),
			"missing_in_pred": len(missing),
			"extra_in_pred":   len(extra),
		})
}

func headIDs(ids []string) []string {
	if len(ids) > 5 {
		return ids[:5]
	}
	return ids
}
