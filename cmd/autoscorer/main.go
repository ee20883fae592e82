/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"fmt"
	"os"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/cli"
)

func main() {
	root := cli.NewRootCmd()
	if err := root.Execute(); err != nil {
		if err != cli.ErrCommandFailed {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
