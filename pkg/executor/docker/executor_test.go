/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	autoerrors "github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
)

func TestParseRepositoryTag(t *testing.T) {
	cases := []struct {
		ref  string
		repo string
		tag  string
	}{
		{"ubuntu", "ubuntu", ""},
		{"ubuntu:22.04", "ubuntu", "22.04"},
		{"registry.local:5000/team/model", "registry.local:5000/team/model", ""},
		{"registry.local:5000/team/model:v1", "registry.local:5000/team/model", "v1"},
	}
	for _, tc := range cases {
		repo, tag := parseRepositoryTag(tc.ref)
		assert.Equal(t, tc.repo, repo, tc.ref)
		assert.Equal(t, tc.tag, tag, tc.ref)
	}
}

func TestNormalizeImageRef(t *testing.T) {
	assert.Equal(t, "ubuntu:latest", normalizeImageRef("ubuntu"))
	assert.Equal(t, "ubuntu:22.04", normalizeImageRef("ubuntu:22.04"))
	assert.Equal(t, "registry.local:5000/m:latest", normalizeImageRef("registry.local:5000/m"))
}

func TestNetworkMode(t *testing.T) {
	assert.Equal(t, "none", networkMode(""))
	assert.Equal(t, "none", networkMode("none"))
	assert.Equal(t, "host", networkMode("Host"))
	assert.Equal(t, "bridge", networkMode("bridge"))
	assert.Equal(t, "none", networkMode("restricted"))
	assert.Equal(t, "bridge", networkMode("allowlist"))
	assert.Equal(t, "scoring-net", networkMode("scoring-net"))
}

func TestContainerName(t *testing.T) {
	assert.Equal(t, "autoscorer-job-1", containerName("job-1"))
	assert.Equal(t, "autoscorer-123456789012", containerName("1234567890123456"))
}

func TestEnvList(t *testing.T) {
	assert.Nil(t, envList(nil))
	assert.Equal(t, []string{"A=1", "B=2"}, envList(map[string]string{"B": "2", "A": "1"}))
}

// fakeImageAPI is an in-memory image store standing in for the daemon.
// A successful pull or tar load registers the ref so the subsequent
// re-resolution finds it.
type fakeImageAPI struct {
	local   map[string]string // ref -> image id
	pullErr error
	tarRef  string // ref registered by ImageLoad
	pulls   int
	loads   int
}

func (f *fakeImageAPI) ImageInspectWithRaw(_ context.Context, ref string) (types.ImageInspect, []byte, error) {
	if id, ok := f.local[ref]; ok {
		return types.ImageInspect{ID: id}, nil, nil
	}
	return types.ImageInspect{}, nil, fmt.Errorf("no such image: %s", ref)
}

func (f *fakeImageAPI) ImageList(_ context.Context, opts types.ImageListOptions) ([]types.ImageSummary, error) {
	refs := opts.Filters.Get("reference")
	if len(refs) == 0 {
		return nil, nil
	}
	if id, ok := f.local[refs[0]]; ok {
		return []types.ImageSummary{{ID: id, RepoTags: []string{refs[0]}}}, nil
	}
	return nil, nil
}

func (f *fakeImageAPI) ImagePull(_ context.Context, ref string, _ types.ImagePullOptions) (io.ReadCloser, error) {
	f.pulls++
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	f.local[ref] = "sha256:pulled"
	return io.NopCloser(strings.NewReader("{}")), nil
}

func (f *fakeImageAPI) ImageLoad(_ context.Context, input io.Reader, _ bool) (types.ImageLoadResponse, error) {
	f.loads++
	_, _ = io.Copy(io.Discard, input)
	if f.tarRef != "" {
		f.local[f.tarRef] = "sha256:fromtar"
	}
	return types.ImageLoadResponse{}, nil
}

func TestEnsureImagePolicyMatrix(t *testing.T) {
	pullErr := fmt.Errorf("registry unreachable")
	cases := []struct {
		name       string
		policy     string
		local      bool
		tarball    bool
		pullErr    error
		wantCode   string
		wantAction string
		wantPulls  int
	}{
		{name: "never absent no tar", policy: "never",
			wantCode: autoerrors.CodeImageNotPresent},
		{name: "never absent with tar", policy: "never", tarball: true,
			wantAction: "loaded_tar"},
		{name: "never present uses local", policy: "never", local: true,
			wantAction: "use_local"},
		{name: "ifnotpresent present skips pull", policy: "ifnotpresent", local: true,
			wantAction: "use_local", wantPulls: 0},
		{name: "ifnotpresent absent pulls", policy: "ifnotpresent",
			wantAction: "pulled", wantPulls: 1},
		{name: "ifnotpresent pull failure falls back to tar", policy: "ifnotpresent",
			tarball: true, pullErr: pullErr, wantAction: "loaded_tar", wantPulls: pullAttempts},
		{name: "ifnotpresent pull failure without tar", policy: "ifnotpresent",
			pullErr: pullErr, wantCode: autoerrors.CodeImagePullFailed},
		{name: "always pull failure keeps local image", policy: "always", local: true,
			pullErr: pullErr, wantAction: "use_local_fallback", wantPulls: pullAttempts},
		{name: "always absent pulls", policy: "always",
			wantAction: "pulled", wantPulls: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ws := t.TempDir()
			fake := &fakeImageAPI{local: map[string]string{}, pullErr: tc.pullErr}
			if tc.local {
				fake.local["model:v1"] = "sha256:local"
			}
			if tc.tarball {
				require.NoError(t, os.WriteFile(filepath.Join(ws, "image.tar"), []byte("archive"), 0o644))
				fake.tarRef = "model:v1"
			}
			e := &Executor{baseURL: "unix:///var/run/docker.sock", images: fake}

			res, err := e.ensureImage(context.Background(), "model:v1", tc.policy, ws)
			if tc.wantCode != "" {
				require.Error(t, err)
				typed, ok := autoerrors.AsError(err)
				require.True(t, ok)
				assert.Equal(t, tc.wantCode, typed.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantAction, res.Action)
			assert.True(t, res.PresentLocal)
			assert.NotEmpty(t, res.ImageID)
			assert.Equal(t, tc.wantPulls, fake.pulls)
		})
	}
}

func TestRunInfoPathTranslation(t *testing.T) {
	res := &imageResolution{Requested: "model", Resolved: "model:latest", Action: "use_local"}

	info := newRunInfo(res, "/home/user/ws", "/home/user/ws")
	assert.Equal(t, "unchanged", info.PathTranslation)
	assert.Equal(t, "/home/user/ws", info.WorkspaceHost)

	info = newRunInfo(res, "/app/examples/job1", "/srv/autoscorer/examples/job1")
	assert.Equal(t, "/app/examples/job1 -> /srv/autoscorer/examples/job1", info.PathTranslation)
	assert.Equal(t, "/app/examples/job1", info.Workspace)
	assert.Equal(t, "use_local", info.Action)

	raw, err := json.Marshal(info)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"path_translation"`)
	assert.Contains(t, string(raw), `"image_resolved"`)
}

func TestHostWorkspacePath(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetValue("CONTAINER_PROJECT_ROOT", "/app")
	config.SetValue("HOST_PROJECT_ROOT", "/srv/autoscorer")
	config.SetValue("CONTAINER_EXAMPLES_ROOT", "/data/examples")

	// Remote daemons get the path untouched.
	assert.Equal(t, "/app/examples/job1",
		hostWorkspacePath("tcp://10.0.0.2:2375", "/app/examples/job1"))

	// Local daemon: project root substitution.
	assert.Equal(t, "/srv/autoscorer/examples/job1",
		hostWorkspacePath("unix:///var/run/docker.sock", "/app/examples/job1"))

	// Examples root derived from the host project root.
	assert.Equal(t, "/srv/autoscorer/examples/job2",
		hostWorkspacePath("unix:///var/run/docker.sock", "/data/examples/job2"))

	// Already host-visible paths stay as they are.
	assert.Equal(t, "/home/user/ws",
		hostWorkspacePath("unix:///var/run/docker.sock", "/home/user/ws"))
}
