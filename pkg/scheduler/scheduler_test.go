/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	autoerrors "github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/executor"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
)

type fakeExecutor struct {
	name string
	err  error
	runs int
}

func (f *fakeExecutor) Run(context.Context, *schemas.JobSpec, string) error {
	f.runs++
	return f.err
}

func newTestScheduler(k8sErr error) (*Scheduler, *fakeExecutor, *map[string]int) {
	hosts := map[string]int{}
	dockerExec := &fakeExecutor{name: "docker"}
	s := &Scheduler{
		newK8s: func() (executor.Executor, error) {
			if k8sErr != nil {
				return nil, k8sErr
			}
			return &fakeExecutor{name: "k8s"}, nil
		},
		newDocker: func(host string) (executor.Executor, error) {
			hosts[host]++
			return dockerExec, nil
		},
	}
	return s, dockerExec, &hosts
}

func TestSelectExecutorLocalDefault(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	s, _, hosts := newTestScheduler(nil)
	_, err := s.SelectExecutor()
	require.NoError(t, err)
	assert.Equal(t, 1, (*hosts)[""])
}

func TestSelectExecutorDockerHost(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetValue("DOCKER_HOST", "tcp://10.0.0.2:2375")

	s, _, hosts := newTestScheduler(nil)
	_, err := s.SelectExecutor()
	require.NoError(t, err)
	assert.Equal(t, 1, (*hosts)["tcp://10.0.0.2:2375"])
}

func TestSelectExecutorNodes(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetValue("DOCKER_NODES_ENABLED", true)
	config.SetValue("NODES", []map[string]any{
		{"host": "tcp://cpu-node:2375", "gpus": 0},
		{"host": "tcp://gpu-node:2375", "gpus": 4},
	})

	s, _, hosts := newTestScheduler(nil)
	_, err := s.SelectExecutor()
	require.NoError(t, err)
	assert.Equal(t, 1, (*hosts)["tcp://gpu-node:2375"])
}

func TestSelectExecutorK8sFallback(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetValue("K8S_ENABLED", true)

	s, _, hosts := newTestScheduler(autoerrors.New(autoerrors.CodeK8sConfigError, "K8S_API not configured"))
	_, err := s.SelectExecutor()
	require.NoError(t, err)
	assert.Equal(t, 1, (*hosts)[""])
}

func TestSelectExecutorK8s(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetValue("K8S_ENABLED", true)

	s, _, hosts := newTestScheduler(nil)
	exec, err := s.SelectExecutor()
	require.NoError(t, err)
	assert.Equal(t, "k8s", exec.(*fakeExecutor).name)
	assert.Empty(t, *hosts)
}

func TestScheduleRuns(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	s, dockerExec, _ := newTestScheduler(nil)
	spec := &schemas.JobSpec{JobID: "job-1", Container: schemas.ContainerSpec{Image: "img"}}
	require.NoError(t, s.Schedule(context.Background(), spec, t.TempDir()))
	assert.Equal(t, 1, dockerExec.runs)
}

func TestScheduleInitFailure(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	s := &Scheduler{
		newK8s: func() (executor.Executor, error) { return nil, nil },
		newDocker: func(string) (executor.Executor, error) {
			return nil, autoerrors.New(autoerrors.CodeExecError, "daemon unreachable")
		},
	}
	spec := &schemas.JobSpec{JobID: "job-1", Container: schemas.ContainerSpec{Image: "img"}}
	err := s.Schedule(context.Background(), spec, t.TempDir())
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeSchedulerError, typed.Code)
}
