/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/quantity"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/utils/jsonutil"
)

// Executor runs jobs against a Docker daemon, local or remote.
type Executor struct {
	baseURL string
	client  *client.Client
	images  imageAPI
}

// New connects to the daemon at nodeHost, falling back to the configured
// DOCKER_HOST and finally the local docker.sock.
func New(nodeHost string) (*Executor, error) {
	baseURL := nodeHost
	if baseURL == "" {
		baseURL = config.GetDockerHost()
	}
	if baseURL == "" {
		baseURL = client.DefaultDockerHost
	}
	cli, err := client.NewClientWithOpts(
		client.WithHost(baseURL),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, errors.Newf(errors.CodeExecError, "failed to create docker client for %s: %v", baseURL, err)
	}
	return &Executor{baseURL: baseURL, client: cli, images: cli}, nil
}

// Run executes the job container and blocks until it finishes, times out
// or fails. Container stdout/stderr always lands in logs/container.log.
func (e *Executor) Run(ctx context.Context, spec *schemas.JobSpec, workspace string) error {
	ws, err := filepath.Abs(workspace)
	if err != nil {
		return errors.Newf(errors.CodeExecError, "cannot resolve workspace path: %v", err)
	}
	logsDir := filepath.Join(ws, "logs")
	for _, dir := range []string{filepath.Join(ws, "output"), logsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Newf(errors.CodePermissionError, "cannot create %s: %v", dir, err)
		}
	}
	wsHost := hostWorkspacePath(e.baseURL, ws)

	memBytes, err := quantity.MemoryBytes(quantity.NormalizeMemory(spec.Resources.Memory, config.GetDefaultMemory()))
	if err != nil {
		return errors.Newf(errors.CodeInvalidResources, "invalid memory quantity: %v", err)
	}
	shmBytes, err := quantity.MemoryBytes(quantity.NormalizeMemory(spec.Container.ShmSize, config.GetDefaultShmSize()))
	if err != nil {
		return errors.Newf(errors.CodeInvalidResources, "invalid shm_size quantity: %v", err)
	}
	cpu := spec.Resources.CPU
	if cpu <= 0 {
		cpu = config.GetDefaultCPU()
	}
	gpus := spec.Resources.GPUs
	if spec.Container.GPUs != nil {
		gpus = *spec.Container.GPUs
	}
	timeout := spec.TimeLimit
	if timeout <= 0 {
		timeout = config.GetTimeout()
	}

	e.registryLogin(ctx)

	policy := config.GetImagePullPolicy()
	resolution, err := e.ensureImage(ctx, spec.Container.Image, policy, ws)
	if err != nil {
		return err
	}
	if err := jsonutil.WriteFile(filepath.Join(logsDir, "run_info.json"), newRunInfo(resolution, ws, wsHost)); err != nil {
		klog.ErrorS(err, "failed to write run_info.json")
	}
	klog.Infof("docker image: %s -> %s (%s)", resolution.Resolved, resolution.ImageID, resolution.Action)

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: filepath.Join(wsHost, "input"), Target: "/workspace/input", ReadOnly: true},
			{Type: mount.TypeBind, Source: filepath.Join(wsHost, "output"), Target: "/workspace/output"},
			{Type: mount.TypeBind, Source: filepath.Join(wsHost, "meta.json"), Target: "/workspace/meta.json", ReadOnly: true},
		},
		NetworkMode:    container.NetworkMode(networkMode(spec.Container.NetworkPolicy)),
		SecurityOpt:    config.GetSecurityOpts(),
		ShmSize:        shmBytes,
		ReadonlyRootfs: true,
		Resources: container.Resources{
			Memory:   memBytes,
			NanoCPUs: int64(cpu * 1e9),
		},
	}
	if gpus > 0 {
		hostConfig.Resources.DeviceRequests = []container.DeviceRequest{
			{Count: gpus, Capabilities: [][]string{{"gpu"}}},
		}
	}
	containerConfig := &container.Config{
		Image:      resolution.Resolved,
		Cmd:        strslice.StrSlice(spec.Container.Cmd),
		Env:        envList(spec.Container.Env),
		WorkingDir: "/workspace",
		Labels:     map[string]string{"app": "autoscorer", "job_id": spec.JobID},
	}

	created, err := e.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName(spec.JobID))
	if err != nil {
		return errors.New(errors.CodeContainerCreateFail, err.Error())
	}
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.client.ContainerRemove(removeCtx, created.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
			klog.ErrorS(err, "failed to remove container", "container", created.ID)
		}
	}()

	if err := e.client.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		return errors.New(errors.CodeContainerCreateFail, err.Error())
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()
	statusCh, errCh := e.client.ContainerWait(waitCtx, created.ID, container.WaitConditionNotRunning)

	var exitCode int64
	select {
	case status := <-statusCh:
		exitCode = status.StatusCode
	case err := <-errCh:
		e.captureLogs(created.ID, logsDir)
		if waitCtx.Err() == context.DeadlineExceeded {
			return errors.Newf(errors.CodeTimeoutError,
				"container execution timed out after %d seconds", timeout)
		}
		return errors.New(errors.CodeContainerWaitFailed, err.Error())
	}

	e.captureLogs(created.ID, logsDir)
	if exitCode != 0 {
		if inspect, err := e.client.ContainerInspect(ctx, created.ID); err == nil {
			if err := jsonutil.WriteFile(filepath.Join(logsDir, "inspect.json"), inspect); err != nil {
				klog.ErrorS(err, "failed to write inspect.json")
			}
		}
		return errors.Newf(errors.CodeContainerExitNonzero, "exit %d", exitCode)
	}
	return nil
}

// runInfo is the record written to logs/run_info.json: the image
// resolution plus the workspace path translation applied to the bind
// mount sources.
type runInfo struct {
	imageResolution
	Workspace       string `json:"workspace"`
	WorkspaceHost   string `json:"workspace_host"`
	PathTranslation string `json:"path_translation"`
}

func newRunInfo(res *imageResolution, workspace, hostPath string) *runInfo {
	info := &runInfo{
		imageResolution: *res,
		Workspace:       workspace,
		WorkspaceHost:   hostPath,
		PathTranslation: "unchanged",
	}
	if hostPath != workspace {
		info.PathTranslation = workspace + " -> " + hostPath
	}
	return info
}

// registryLogin authenticates against the configured registry. Failures
// are non-fatal; public pulls may still succeed.
func (e *Executor) registryLogin(ctx context.Context) {
	user := config.GetRegistryUser()
	pass := config.GetRegistryPass()
	url := config.GetRegistryURL()
	if user == "" || pass == "" || url == "" {
		return
	}
	if _, err := e.client.RegistryLogin(ctx, registry.AuthConfig{
		Username:      user,
		Password:      pass,
		ServerAddress: url,
	}); err != nil {
		klog.Warningf("registry login failed: %v", err)
	}
}

func (e *Executor) captureLogs(containerID, logsDir string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rc, err := e.client.ContainerLogs(ctx, containerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		klog.ErrorS(err, "failed to fetch container logs", "container", containerID)
		return
	}
	defer rc.Close()
	f, err := os.Create(filepath.Join(logsDir, "container.log"))
	if err != nil {
		klog.ErrorS(err, "failed to create container.log")
		return
	}
	defer f.Close()
	if _, err := stdcopy.StdCopy(f, f, rc); err != nil {
		klog.ErrorS(err, "failed to demux container logs", "container", containerID)
	}
}

// networkMode maps the job's network policy onto a Docker network mode.
// restricted degrades to none and allowlist to bridge; any other value is
// treated as a custom network name.
func networkMode(policy string) string {
	p := strings.ToLower(strings.TrimSpace(policy))
	switch p {
	case "":
		return "none"
	case "none", "host", "bridge":
		return p
	case "restricted":
		return "none"
	case "allowlist":
		return "bridge"
	default:
		return p
	}
}

func containerName(jobID string) string {
	if len(jobID) > 12 {
		jobID = jobID[:12]
	}
	return fmt.Sprintf("autoscorer-%s", jobID)
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
