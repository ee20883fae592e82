/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/utils/backoff"
)

const pullAttempts = 3

// imageAPI is the image-facing slice of the Docker client, substitutable
// in tests.
type imageAPI interface {
	ImageInspectWithRaw(ctx context.Context, image string) (types.ImageInspect, []byte, error)
	ImageList(ctx context.Context, options types.ImageListOptions) ([]types.ImageSummary, error)
	ImagePull(ctx context.Context, ref string, options types.ImagePullOptions) (io.ReadCloser, error)
	ImageLoad(ctx context.Context, input io.Reader, quiet bool) (types.ImageLoadResponse, error)
}

// parseRepositoryTag splits an image reference into repository and tag.
// The split happens on the last colon after the last slash so that
// registry ports (host:5000/name) survive intact.
func parseRepositoryTag(ref string) (repo, tag string) {
	slash := strings.LastIndex(ref, "/")
	colon := strings.LastIndex(ref, ":")
	if colon > slash {
		return ref[:colon], ref[colon+1:]
	}
	return ref, ""
}

// normalizeImageRef completes a missing tag with "latest".
func normalizeImageRef(ref string) string {
	repo, tag := parseRepositoryTag(ref)
	if tag == "" {
		tag = "latest"
	}
	return repo + ":" + tag
}

// resolveLocalImage reports whether ref is present in the local image
// store and, if so, its image id. It tries a direct inspect, then a
// reference filter, then a repository listing compared by tag.
func (e *Executor) resolveLocalImage(ctx context.Context, ref string) (bool, string) {
	if inspect, _, err := e.images.ImageInspectWithRaw(ctx, ref); err == nil {
		return true, inspect.ID
	}
	if list, err := e.images.ImageList(ctx, types.ImageListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	}); err == nil && len(list) > 0 {
		return true, list[0].ID
	}
	repo, _ := parseRepositoryTag(ref)
	if list, err := e.images.ImageList(ctx, types.ImageListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", repo)),
	}); err == nil {
		for _, img := range list {
			for _, t := range img.RepoTags {
				if t == ref {
					return true, img.ID
				}
			}
		}
	}
	return false, ""
}

// pullImage pulls ref with retries and exponential backoff between
// attempts.
func (e *Executor) pullImage(ctx context.Context, ref string) error {
	attempt := 0
	return backoff.RetryCount(func() error {
		attempt++
		klog.Infof("pulling image %s (attempt %d/%d)", ref, attempt, pullAttempts)
		rc, err := e.images.ImagePull(ctx, ref, types.ImagePullOptions{})
		if err != nil {
			klog.Warningf("pull attempt %d failed: %v", attempt, err)
			return err
		}
		defer rc.Close()
		if _, err := io.Copy(io.Discard, rc); err != nil {
			klog.Warningf("pull attempt %d failed: %v", attempt, err)
			return err
		}
		return nil
	}, pullAttempts, time.Second)
}

// loadImageTar imports an offline image archive placed in the workspace
// (image.tar, image.tar.gz or image.tgz). It reports whether an archive
// was loaded.
func (e *Executor) loadImageTar(ctx context.Context, workspace string) bool {
	for _, name := range []string{"image.tar", "image.tar.gz", "image.tgz"} {
		path := filepath.Join(workspace, name)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		klog.Infof("loading local image from %s", name)
		resp, err := e.images.ImageLoad(ctx, f, true)
		f.Close()
		if err != nil {
			klog.Warningf("failed to load %s: %v", name, err)
			continue
		}
		if resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return true
	}
	return false
}

// imageResolution is the outcome of ensureImage, recorded in
// logs/run_info.json.
type imageResolution struct {
	Requested    string `json:"image_requested"`
	Resolved     string `json:"image_resolved"`
	PresentLocal bool   `json:"image_present_local"`
	ImageID      string `json:"image_id"`
	PullPolicy   string `json:"pull_policy"`
	Action       string `json:"action"`
	DockerHost   string `json:"docker_host"`
}

// ensureImage makes the requested image available under the configured
// pull policy, falling back to an offline tar archive when pulling fails
// or is disallowed.
func (e *Executor) ensureImage(ctx context.Context, requested, policy, workspace string) (*imageResolution, error) {
	res := &imageResolution{
		Requested:  requested,
		Resolved:   normalizeImageRef(requested),
		PullPolicy: policy,
		Action:     "unknown",
		DockerHost: e.baseURL,
	}

	res.PresentLocal, res.ImageID = e.resolveLocalImage(ctx, res.Resolved)
	if res.PresentLocal {
		res.Action = "use_local"
		klog.Infof("found local image: %s -> %s", res.Resolved, res.ImageID)
	} else {
		klog.Infof("image not found locally: %s", res.Resolved)
	}

	shouldPull := false
	switch {
	case policy == "always":
		shouldPull = true
		klog.Infof("image pull strategy: policy=always, will pull")
	case policy == "ifnotpresent" && !res.PresentLocal:
		shouldPull = true
		klog.Infof("image pull strategy: policy=ifnotpresent, present=false, will pull")
	case policy == "ifnotpresent":
		klog.Infof("image pull strategy: policy=ifnotpresent, present=true, using local image")
	case policy == "never":
		klog.Infof("image pull strategy: policy=never, will not pull")
	}

	if shouldPull {
		if err := e.pullImage(ctx, res.Resolved); err != nil {
			if e.loadImageTar(ctx, workspace) {
				res.Action = "loaded_tar"
				klog.Infof("loaded image from local tar file")
			} else if res.PresentLocal {
				klog.Warningf("failed to pull new image, using existing local image")
				res.Action = "use_local_fallback"
			} else {
				return nil, errors.Newf(errors.CodeImagePullFailed,
					"failed to pull image %s after %d attempts: %v", res.Resolved, pullAttempts, err).
					WithDetails(map[string]any{
						"policy":     policy,
						"attempts":   pullAttempts,
						"last_error": err.Error(),
					})
			}
		} else {
			res.Action = "pulled"
			klog.Infof("successfully pulled image: %s", res.Resolved)
		}
		if present, id := e.resolveLocalImage(ctx, res.Resolved); present {
			res.PresentLocal, res.ImageID = present, id
		}
	}

	if policy == "never" && !res.PresentLocal {
		if e.loadImageTar(ctx, workspace) {
			res.Action = "loaded_tar"
			if present, id := e.resolveLocalImage(ctx, res.Resolved); present {
				res.PresentLocal, res.ImageID = present, id
			}
		} else {
			return nil, errors.Newf(errors.CodeImageNotPresent,
				"image '%s' not present locally and IMAGE_PULL_POLICY=never; "+
					"please pre-pull it or place an image.tar in %s", res.Resolved, workspace)
		}
	}
	return res, nil
}
