/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package schemas

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
)

// Resources describes the compute budget requested by a job manifest.
type Resources struct {
	CPU    float64 `json:"cpu"`
	Memory string  `json:"memory"`
	GPUs   int     `json:"gpus"`
}

// ContainerSpec describes the contestant container to execute.
type ContainerSpec struct {
	Image         string            `json:"image"`
	Cmd           []string          `json:"cmd"`
	Env           map[string]string `json:"env"`
	ShmSize       string            `json:"shm_size,omitempty"`
	GPUs          *int              `json:"gpus,omitempty"`
	NetworkPolicy string            `json:"network_policy,omitempty"` // none|host|bridge|restricted|allowlist|<network>
}

// JobSpec is the parsed form of a workspace's meta.json manifest.
type JobSpec struct {
	JobID     string        `json:"job_id"`
	TaskType  string        `json:"task_type"`
	Scorer    string        `json:"scorer"`
	InputURI  string        `json:"input_uri"`
	OutputURI string        `json:"output_uri"`
	TimeLimit int           `json:"time_limit"`
	Resources Resources     `json:"resources"`
	Container ContainerSpec `json:"container"`
}

// applyDefaults fills the documented manifest defaults for omitted fields.
func (s *JobSpec) applyDefaults() {
	if s.TimeLimit == 0 {
		s.TimeLimit = 1800
	}
	if s.Resources.CPU == 0 {
		s.Resources.CPU = 1.0
	}
	if s.Resources.Memory == "" {
		s.Resources.Memory = "2Gi"
	}
	if s.Container.Env == nil {
		s.Container.Env = map[string]string{}
	}
}

// LoadJobSpec parses meta.json from the workspace root.
func LoadJobSpec(workspace string) (*JobSpec, error) {
	metaPath := filepath.Join(workspace, "meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.CodeMissingFile, "meta.json not found in %s", workspace)
		}
		return nil, errors.New(errors.CodePermissionError, err.Error()).WithError(err)
	}
	var spec JobSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, errors.Newf(errors.CodeParseError, "meta.json invalid JSON: %v", err).WithError(err)
	}
	spec.applyDefaults()
	return &spec, nil
}
