/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package schemas

import (
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/utils/timeutil"
)

// Version is the API/result document version stamped into envelope metadata.
const Version = "0.1.0"

// Envelope is the common JSON response shape for the REST API, the CLI and
// async callbacks.
type Envelope struct {
	OK    bool           `json:"ok"`
	Data  any            `json:"data,omitempty"`
	Error *ErrorInfo     `json:"error,omitempty"`
	Meta  map[string]any `json:"meta"`
}

func newMeta(extra map[string]any) map[string]any {
	meta := map[string]any{
		"timestamp": timeutil.NowISO8601(),
		"version":   Version,
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}

// Success builds a success envelope with the given payload and extra metadata.
func Success(data any, meta map[string]any) *Envelope {
	return &Envelope{OK: true, Data: data, Meta: newMeta(meta)}
}

// Failure builds an error envelope.
func Failure(code, message, stage string, details map[string]any) *Envelope {
	return &Envelope{
		OK: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Stage:   stage,
			Details: details,
		},
		Meta: newMeta(nil),
	}
}

// FailureFromInfo builds an error envelope from an already normalized error.
func FailureFromInfo(info *ErrorInfo) *Envelope {
	return &Envelope{OK: false, Error: info, Meta: newMeta(nil)}
}
