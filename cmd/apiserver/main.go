/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	klogv2 "k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/klog"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/server"
)

func main() {
	if err := config.LoadConfig(os.Getenv("AUTOSCORER_CONFIG")); err != nil {
		klogv2.Fatalf("failed to load config: %v", err)
	}
	if err := klog.Init(filepath.Join(config.GetLogDir(), "apiserver.log"), 100); err != nil {
		klogv2.Fatalf("failed to init logging: %v", err)
	}
	defer klogv2.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := server.NewDefault()
	if err := s.Start(ctx); err != nil {
		klogv2.Fatalf("server exited: %v", err)
	}
}
