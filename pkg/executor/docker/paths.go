/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import (
	"path/filepath"
	"strings"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
)

// hostWorkspacePath maps a container-visible workspace path back to the
// path the Docker daemon can see. When the scoring service itself runs in
// a container and talks to the host daemon over docker.sock, bind-mount
// sources must be host paths, not the service's own mount points.
//
// Translation only applies for local daemons (unix:// base URL); a remote
// daemon receives the path as given.
func hostWorkspacePath(baseURL, workspace string) string {
	if !strings.HasPrefix(baseURL, "unix://") {
		return workspace
	}
	containerProject := config.GetContainerProjectRoot()
	hostProject := config.GetHostProjectRoot()
	containerExamples := config.GetContainerExamplesRoot()
	hostExamples := config.GetHostExamplesRoot()

	if hostProject != "" && strings.HasPrefix(workspace, containerProject+"/") {
		return filepath.Clean(hostProject + workspace[len(containerProject):])
	}
	if hostExamples != "" && strings.HasPrefix(workspace, containerExamples+"/") {
		return filepath.Clean(hostExamples + workspace[len(containerExamples):])
	}
	return workspace
}
