/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/quantity"
)

// ScorerExists reports whether a scorer name is resolvable. The validator
// checks existence only and never instantiates.
type ScorerExists func(name string) bool

// Validation is the outcome of a workspace check. Errors are ordered
// "CODE: message" strings; the first dictates the surfaced error.
type Validation struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

func (v *Validation) addError(code, format string, args ...any) {
	v.OK = false
	v.Errors = append(v.Errors, code+": "+fmt.Sprintf(format, args...))
}

// FirstError splits the leading "CODE: message" entry into its parts.
func (v *Validation) FirstError() (code, message string) {
	if len(v.Errors) == 0 {
		return "", ""
	}
	first := v.Errors[0]
	if idx := strings.Index(first, ":"); idx >= 0 {
		return strings.TrimSpace(first[:idx]), strings.TrimSpace(first[idx+1:])
	}
	return "VALIDATION_ERROR", first
}

// AsError converts a failed validation into a typed error carrying the full
// error list in details.
func (v *Validation) AsError() *errors.Error {
	code, message := v.FirstError()
	return errors.New(code, message).WithDetails(map[string]any{"all_errors": v.Errors})
}

// Validate checks the standard workspace layout and the manifest. Missing
// writable directories (output/, logs/) are created best-effort.
func Validate(ws string, scorerExists ScorerExists) *Validation {
	result := &Validation{OK: true}

	// Required paths.
	for _, name := range []string{"input", "meta.json"} {
		path := filepath.Join(ws, name)
		if _, err := os.Stat(path); err != nil {
			result.addError(errors.CodeMissingFile, "%s", name)
			continue
		}
		if !readable(path) {
			result.addError(errors.CodePermissionError, "%s not readable", name)
		}
	}

	// Writable paths, created when absent.
	for _, name := range []string{"output", "logs"} {
		path := filepath.Join(ws, name)
		if _, err := os.Stat(path); err != nil {
			if err := os.MkdirAll(path, 0o755); err != nil {
				result.addError(errors.CodePermissionError, "cannot create %s: %v", name, err)
				continue
			}
		} else if !readable(path) {
			result.addError(errors.CodePermissionError, "%s not readable", name)
		}
		if !writableDir(path) {
			result.addError(errors.CodePermissionError, "%s not writable", name)
		}
	}

	validateManifest(ws, result, scorerExists)
	return result
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func writableDir(path string) bool {
	probe, err := os.CreateTemp(path, ".probe-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return true
}

func validateManifest(ws string, result *Validation, scorerExists ScorerExists) {
	metaPath := filepath.Join(ws, "meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return // Missing manifest already reported above.
	}

	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		result.addError(errors.CodeParseError, "meta.json invalid JSON: %v", err)
		return
	}

	for _, field := range []string{"job_id", "task_type", "scorer", "input_uri", "output_uri"} {
		if _, ok := meta[field]; !ok {
			result.addError(errors.CodeBadFormat, "meta.json missing field: %s", field)
		}
	}

	if raw, ok := meta["resources"]; ok {
		resources, ok := raw.(map[string]any)
		if !ok {
			result.addError(errors.CodeBadFormat, "meta.json resources must be an object")
		} else {
			validateResources(resources, result)
		}
	}

	if raw, ok := meta["scorer"]; ok && scorerExists != nil {
		name, _ := raw.(string)
		if !scorerExists(name) {
			result.addError(errors.CodeScorerNotFound, "%s", name)
		}
	}
}

func validateResources(resources map[string]any, result *Validation) {
	if raw, ok := resources["cpu"]; ok {
		cpu, ok := asFloat(raw)
		if !ok {
			result.addError(errors.CodeInvalidResources, "cpu must be a number")
		} else if cpu <= 0 {
			result.addError(errors.CodeInvalidResources, "cpu must be > 0")
		}
	}
	if raw, ok := resources["memory"]; ok {
		memory := fmt.Sprintf("%v", raw)
		if !quantity.ValidMemoryFormat(memory) {
			result.addError(errors.CodeInvalidResources, "invalid memory format: %s", memory)
		}
	}
	if raw, ok := resources["gpus"]; ok {
		gpus, ok := asInt(raw)
		if !ok {
			result.addError(errors.CodeInvalidResources, "gpus must be an integer")
		} else if gpus < 0 {
			result.addError(errors.CodeInvalidResources, "gpus must be >= 0")
		}
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
