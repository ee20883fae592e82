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
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/pipeline"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/taskstore"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/tasks"
)

func main() {
	if err := config.LoadConfig(os.Getenv("AUTOSCORER_CONFIG")); err != nil {
		klogv2.Fatalf("failed to load config: %v", err)
	}
	if err := klog.Init(filepath.Join(config.GetLogDir(), "worker.log"), 100); err != nil {
		klogv2.Fatalf("failed to init logging: %v", err)
	}
	defer klogv2.Flush()

	broker, err := tasks.NewBroker(config.GetBrokerURL())
	if err != nil {
		klogv2.Fatalf("failed to connect broker: %v", err)
	}
	defer broker.Close()

	store, err := taskstore.OpenDefault()
	if err != nil {
		klogv2.Warningf("task store unavailable, state will not be persisted: %v", err)
	} else {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := tasks.NewWorker(broker, store, pipeline.New())
	worker.Start(ctx)
	<-ctx.Done()
	klogv2.Infof("shutting down workers")
	worker.Wait()
}
