/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package timeutil

import "time"

// NowISO8601 returns the current UTC time in RFC 3339 format with
// sub-second precision, the timestamp format used across result documents
// and task records.
func NowISO8601() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// FormatISO8601 formats t in UTC RFC 3339 format.
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
