/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
)

// Scorer evaluates a workspace's predictions against its ground truth and
// returns a normalized result document.
type Scorer interface {
	Score(workspace string, params map[string]any) (*schemas.Result, error)
}

// Validator is an optional scorer hook invoked before scoring for
// scorer-specific pre-checks. A failure surfaces as DATA_VALIDATION_ERROR
// unless the hook returns a typed error.
type Validator interface {
	Validate(workspace string, params map[string]any) error
}

// Factory produces a fresh scorer instance. The registry stores factories,
// never instances, so hot reload can replace entries atomically.
type Factory func() Scorer
