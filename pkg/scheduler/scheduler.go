/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"sort"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/executor"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/executor/docker"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/executor/k8s"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
)

// Scheduler picks an execution backend for each job. Docker is the
// primary path; Kubernetes is opt-in and falls back to Docker when the
// cluster client cannot be built.
type Scheduler struct {
	// Factories are swappable for tests.
	newK8s    func() (executor.Executor, error)
	newDocker func(nodeHost string) (executor.Executor, error)
}

func New() *Scheduler {
	s := &Scheduler{
		newK8s: func() (executor.Executor, error) { return k8s.New() },
		newDocker: func(nodeHost string) (executor.Executor, error) {
			return docker.New(nodeHost)
		},
	}
	klog.Infof("scheduler initialized with K8S_ENABLED=%v", config.IsK8sEnabled())
	return s
}

// SelectExecutor resolves the backend by configuration: the cluster
// executor when enabled and reachable, then an explicit DOCKER_HOST, then
// the best NODES entry when node scheduling is enabled, and finally the
// local daemon.
func (s *Scheduler) SelectExecutor() (executor.Executor, error) {
	if config.IsK8sEnabled() {
		exec, err := s.newK8s()
		if err == nil {
			klog.Infof("using k8s executor")
			return exec, nil
		}
		klog.Warningf("k8s executor initialization failed: %v, falling back to docker", err)
	}

	if host := config.GetDockerHost(); host != "" {
		klog.Infof("using configured DOCKER_HOST: %s", host)
		return s.dockerExecutor(host)
	}

	if config.IsDockerNodesEnabled() {
		if nodes := config.GetNodes(); len(nodes) > 0 {
			// Prefer the node advertising the most GPUs.
			sorted := make([]config.Node, len(nodes))
			copy(sorted, nodes)
			sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].GPUs > sorted[j].GPUs })
			klog.Infof("selected docker node from NODES: %s", sorted[0].Host)
			return s.dockerExecutor(sorted[0].Host)
		}
	}

	klog.Infof("using local docker daemon")
	return s.dockerExecutor("")
}

func (s *Scheduler) dockerExecutor(host string) (executor.Executor, error) {
	exec, err := s.newDocker(host)
	if err != nil {
		return nil, errors.Newf(errors.CodeSchedulerError, "Failed to initialize executor: %v", err)
	}
	return exec, nil
}

// Schedule runs the job on the selected backend.
func (s *Scheduler) Schedule(ctx context.Context, spec *schemas.JobSpec, workspace string) error {
	klog.Infof("scheduling job %s with image %s", spec.JobID, spec.Container.Image)
	exec, err := s.SelectExecutor()
	if err != nil {
		return err
	}
	if err := exec.Run(ctx, spec, workspace); err != nil {
		klog.ErrorS(err, "job failed", "job", spec.JobID)
		return err
	}
	klog.Infof("job %s completed successfully", spec.JobID)
	return nil
}
