/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package schemas

// ArtifactInfo records the identity of a produced or consumed file.
type ArtifactInfo struct {
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	SHA256   string         `json:"sha256"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ErrorInfo is the normalized error payload carried by results, API
// envelopes and task records.
type ErrorInfo struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Stage   string         `json:"stage"`
	Details map[string]any `json:"details,omitempty"`
	Logs    string         `json:"logs,omitempty"`
}

// Result is the normalized scoring document written to output/result.json.
// Every scorer returns this shape; the pipeline merges in timing and
// artifact accounting before persisting.
type Result struct {
	Summary    map[string]any          `json:"summary"`
	Metrics    map[string]float64      `json:"metrics"`
	Artifacts  map[string]ArtifactInfo `json:"artifacts"`
	Timing     map[string]float64      `json:"timing"`
	Resources  map[string]float64      `json:"resources"`
	Versioning map[string]string       `json:"versioning"`
	Error      *ErrorInfo              `json:"error,omitempty"`
}

// NewResult returns a Result with all maps allocated.
func NewResult() *Result {
	return &Result{
		Summary:    map[string]any{},
		Metrics:    map[string]float64{},
		Artifacts:  map[string]ArtifactInfo{},
		Timing:     map[string]float64{},
		Resources:  map[string]float64{},
		Versioning: map[string]string{},
	}
}
