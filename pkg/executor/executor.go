/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package executor

import (
	"context"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
)

// Executor runs the competitor container for the inference stage. The
// workspace is the host-side job directory holding input/, output/, logs/
// and meta.json.
type Executor interface {
	Run(ctx context.Context, spec *schemas.JobSpec, workspace string) error
}
