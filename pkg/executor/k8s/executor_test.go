/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package k8s

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	autoerrors "github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
)

func testJobSpec() *schemas.JobSpec {
	gpus := 0
	return &schemas.JobSpec{
		JobID:     "job-0123456789abcdef",
		TaskType:  "classification",
		Scorer:    "classification_f1",
		TimeLimit: 600,
		Resources: schemas.Resources{CPU: 1.5, Memory: "2Gi", GPUs: 1},
		Container: schemas.ContainerSpec{
			Image: "scorer/cls",
			Cmd:   []string{"python", "infer.py"},
			Env:   map[string]string{"MODE": "eval"},
			GPUs:  &gpus,
		},
	}
}

func TestJobManifest(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetValue("K8S_IMAGE_PULL_SECRET", "regcred")

	e := &Executor{namespace: "autoscorer"}
	job, err := e.jobManifest(testJobSpec())
	require.NoError(t, err)

	assert.Equal(t, "autoscorer-job-012345678", job.Name)
	assert.Equal(t, "job-0123456789abcdef", job.Labels["job-id"])
	assert.Equal(t, "classification", job.Labels["task-type"])

	require.Len(t, job.Spec.Template.Spec.Containers, 1)
	c := job.Spec.Template.Spec.Containers[0]
	assert.Equal(t, "autoscorer-job", c.Name)
	assert.Equal(t, "scorer/cls:latest", c.Image)
	assert.Equal(t, "/workspace", c.WorkingDir)
	assert.Equal(t, "1500m", c.Resources.Requests.Cpu().String())
	assert.Equal(t, "3", c.Resources.Limits.Cpu().String())
	assert.Equal(t, "2Gi", c.Resources.Requests.Memory().String())
	gpu := c.Resources.Limits["nvidia.com/gpu"]
	assert.Equal(t, "1", gpu.String())

	podSpec := job.Spec.Template.Spec
	assert.Equal(t, corev1.RestartPolicyNever, podSpec.RestartPolicy)
	assert.Equal(t, []corev1.LocalObjectReference{{Name: "regcred"}}, podSpec.ImagePullSecrets)
	require.NotNil(t, podSpec.SecurityContext.RunAsUser)
	assert.Equal(t, int64(1000), *podSpec.SecurityContext.RunAsUser)

	require.NotNil(t, job.Spec.BackoffLimit)
	assert.Equal(t, int32(0), *job.Spec.BackoffLimit)
	require.NotNil(t, job.Spec.ActiveDeadlineSeconds)
	assert.Equal(t, int64(600), *job.Spec.ActiveDeadlineSeconds)
}

func TestJobManifestBadMemory(t *testing.T) {
	spec := testJobSpec()
	spec.Resources.Memory = "not-a-size"
	e := &Executor{namespace: "autoscorer"}
	_, err := e.jobManifest(spec)
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeInvalidResources, typed.Code)
}

func seedJob(succeeded, failed int32) *batchv1.Job {
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "autoscorer-job-012345678", Namespace: "autoscorer"},
		Status:     batchv1.JobStatus{Succeeded: succeeded, Failed: failed},
	}
}

func TestWaitForCompletion(t *testing.T) {
	e := &Executor{namespace: "autoscorer", client: fake.NewSimpleClientset(seedJob(1, 0))}
	require.NoError(t, e.waitForCompletion(context.Background(), "autoscorer-job-012345678", time.Minute))

	e = &Executor{namespace: "autoscorer", client: fake.NewSimpleClientset(seedJob(0, 1))}
	err := e.waitForCompletion(context.Background(), "autoscorer-job-012345678", time.Minute)
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeK8sJobFailed, typed.Code)

	e = &Executor{namespace: "autoscorer", client: fake.NewSimpleClientset(seedJob(0, 0))}
	err = e.waitForCompletion(context.Background(), "autoscorer-job-012345678", 0)
	typed, ok = autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeK8sJobTimeout, typed.Code)
}

func TestAPIErrorMapping(t *testing.T) {
	gr := schema.GroupResource{Group: "batch", Resource: "jobs"}
	err := apiError(apierrors.NewAlreadyExists(gr, "autoscorer-x"))
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeK8sAPIError, typed.Code)
	assert.NotNil(t, typed.Details["status"])
}

func TestNormalizedImage(t *testing.T) {
	assert.Equal(t, "scorer/cls:latest", normalizedImage("scorer/cls"))
	assert.Equal(t, "scorer/cls:v2", normalizedImage("scorer/cls:v2"))
	assert.Equal(t, "registry:5000/m:latest", normalizedImage("registry:5000/m"))
}
