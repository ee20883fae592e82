/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package jsonutil

import (
	"encoding/json"
	"os"

	"k8s.io/klog/v2"
)

// MarshalSilently marshals the value and swallows failures, returning an
// empty string on error. Intended for log and label plumbing.
func MarshalSilently(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		klog.ErrorS(err, "failed to marshal value")
		return ""
	}
	return string(data)
}

// MarshalIndent marshals the value with two-space indentation.
func MarshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// WriteFile marshals the value with indentation and writes it to path.
func WriteFile(path string, v any) error {
	data, err := MarshalIndent(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile reads path and unmarshals its content into v.
func ReadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
