/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package quantity

import (
	"regexp"
	"strings"

	units "github.com/docker/go-units"
)

var memoryFormatRe = regexp.MustCompile(`^\d+(\.\d+)?[gGmM]i?$`)

// ValidMemoryFormat reports whether s matches the size-string grammar
// (e.g. 1Gi, 512Mi, 2g, 1024m).
func ValidMemoryFormat(s string) bool {
	return memoryFormatRe.MatchString(strings.TrimSpace(s))
}

// NormalizeMemory rewrites a size string to the engine form: Gi/GI/gi/G
// become g, Mi/MI/mi/M become m, and the result is lowercased. Empty input
// falls back to the given default.
func NormalizeMemory(s, defaultValue string) string {
	if strings.TrimSpace(s) == "" {
		s = defaultValue
	}
	s = strings.TrimSpace(s)
	for _, repl := range []struct{ old, new string }{
		{"Gi", "g"}, {"GI", "g"}, {"gi", "g"},
		{"Mi", "m"}, {"MI", "m"}, {"mi", "m"},
		{"G", "g"}, {"M", "m"},
	} {
		s = strings.ReplaceAll(s, repl.old, repl.new)
	}
	return strings.ToLower(s)
}

// MemoryBytes converts a normalized size string into bytes for engine
// resource limits.
func MemoryBytes(s string) (int64, error) {
	return units.RAMInBytes(s)
}
