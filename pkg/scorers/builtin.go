/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/utils/timeutil"
)

func init() {
	registerBuiltin("classification_f1", func() Scorer { return &ClassificationF1{} })
	registerBuiltin("classification_accuracy", func() Scorer { return &ClassificationAccuracy{} })
	registerBuiltin("regression_rmse", func() Scorer { return &RegressionRMSE{} })
	registerBuiltin("detection_map", func() Scorer { return &DetectionMAP{} })
	registerBuiltin("text_event_analysis", func() Scorer { return &TextEventAnalysis{} })
}

func registerBuiltin(name string, factory Factory) {
	if err := defaultRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// versioning builds the standard versioning block every scorer emits.
func versioning(name, version, algorithm string) map[string]string {
	return map[string]string{
		"scorer":    name,
		"version":   version,
		"algorithm": algorithm,
		"timestamp": timeutil.NowISO8601(),
	}
}

// paramFloat reads a numeric parameter, tolerating JSON decoding either as
// float64 or as an integer type.
func paramFloat(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

// paramString reads a string parameter with a default.
func paramString(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// rankHigherBetter grades a score where larger is better.
func rankHigherBetter(score, a, b, c float64) string {
	switch {
	case score >= a:
		return "A"
	case score >= b:
		return "B"
	case score >= c:
		return "C"
	default:
		return "D"
	}
}

// rankLowerBetter grades a score where smaller is better.
func rankLowerBetter(score, a, b, c float64) string {
	switch {
	case score <= a:
		return "A"
	case score <= b:
		return "B"
	case score <= c:
		return "C"
	default:
		return "D"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
