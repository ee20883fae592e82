/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package k8s

import (
	"context"
	"fmt"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
)

const (
	jobContainerName = "autoscorer-job"
	pollInterval     = 5 * time.Second
	jobTTLSeconds    = 3600
)

// Executor runs jobs as Kubernetes batch Jobs. The workspace is backed by
// an emptyDir; persistent volume wiring is a deployment concern.
type Executor struct {
	namespace string
	client    kubernetes.Interface
}

// New builds a cluster client from K8S_API plus bearer token when
// configured, otherwise from in-cluster config or the local kubeconfig.
func New() (*Executor, error) {
	apiServer := config.GetK8sAPI()
	if apiServer == "" {
		return nil, errors.New(errors.CodeK8sConfigError, "K8S_API not configured")
	}

	var restConfig *rest.Config
	if token := config.GetK8sToken(); token != "" {
		restConfig = &rest.Config{
			Host:        apiServer,
			BearerToken: token,
		}
		if caCert := config.GetK8sCACert(); caCert != "" {
			restConfig.TLSClientConfig = rest.TLSClientConfig{CAFile: caCert}
		} else {
			restConfig.TLSClientConfig = rest.TLSClientConfig{Insecure: true}
		}
	} else {
		var err error
		restConfig, err = rest.InClusterConfig()
		if err != nil {
			loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
			restConfig, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
				loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
			if err != nil {
				return nil, errors.Newf(errors.CodeK8sConfigError, "no usable cluster config: %v", err)
			}
		}
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Newf(errors.CodeK8sClientError, "failed to create cluster client: %v", err)
	}
	return &Executor{
		namespace: config.GetK8sNamespace(),
		client:    clientset,
	}, nil
}

// Run submits a batch Job for the spec and polls until it succeeds, fails
// or exceeds its deadline.
func (e *Executor) Run(ctx context.Context, spec *schemas.JobSpec, workspace string) error {
	manifest, err := e.jobManifest(spec)
	if err != nil {
		return err
	}
	klog.Infof("creating k8s job for %s", spec.JobID)

	job, err := e.client.BatchV1().Jobs(e.namespace).Create(ctx, manifest, metav1.CreateOptions{})
	if err != nil {
		return apiError(err)
	}
	klog.Infof("created k8s job: %s", job.Name)

	timeout := spec.TimeLimit
	if timeout <= 0 {
		timeout = config.GetTimeout()
	}
	return e.waitForCompletion(ctx, job.Name, time.Duration(timeout)*time.Second)
}

func (e *Executor) jobManifest(spec *schemas.JobSpec) (*batchv1.Job, error) {
	memory, err := resource.ParseQuantity(spec.Resources.Memory)
	if err != nil {
		return nil, errors.Newf(errors.CodeInvalidResources, "invalid memory quantity %q: %v", spec.Resources.Memory, err)
	}
	cpuMilli := int64(spec.Resources.CPU * 1000)
	cpuRequest := *resource.NewMilliQuantity(cpuMilli, resource.DecimalSI)
	// Limits allow a 2x burst over the request.
	cpuLimit := *resource.NewMilliQuantity(cpuMilli*2, resource.DecimalSI)

	limits := corev1.ResourceList{
		corev1.ResourceCPU:    cpuLimit,
		corev1.ResourceMemory: memory,
	}
	if spec.Resources.GPUs > 0 {
		limits["nvidia.com/gpu"] = *resource.NewQuantity(int64(spec.Resources.GPUs), resource.DecimalSI)
	}

	var env []corev1.EnvVar
	for k, v := range spec.Container.Env {
		env = append(env, corev1.EnvVar{Name: k, Value: v})
	}

	container := corev1.Container{
		Name:       jobContainerName,
		Image:      normalizedImage(spec.Container.Image),
		Command:    spec.Container.Cmd,
		Env:        env,
		WorkingDir: "/workspace",
		Resources: corev1.ResourceRequirements{
			Requests: corev1.ResourceList{
				corev1.ResourceCPU:    cpuRequest,
				corev1.ResourceMemory: memory,
			},
			Limits: limits,
		},
		VolumeMounts: []corev1.VolumeMount{
			{Name: "workspace", MountPath: "/workspace"},
		},
	}

	runAsNonRoot := true
	runAsUser := int64(1000)
	fsGroup := int64(1000)
	podSpec := corev1.PodSpec{
		Containers:    []corev1.Container{container},
		RestartPolicy: corev1.RestartPolicyNever,
		Volumes: []corev1.Volume{
			{
				Name:         "workspace",
				VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
			},
		},
		SecurityContext: &corev1.PodSecurityContext{
			RunAsNonRoot: &runAsNonRoot,
			RunAsUser:    &runAsUser,
			FSGroup:      &fsGroup,
		},
	}
	if secret := config.GetK8sImagePullSecret(); secret != "" {
		podSpec.ImagePullSecrets = []corev1.LocalObjectReference{{Name: secret}}
	}

	backoffLimit := int32(0)
	deadline := int64(spec.TimeLimit)
	ttl := int32(jobTTLSeconds)
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name: jobName(spec.JobID),
			Labels: map[string]string{
				"app":       "autoscorer",
				"job-id":    spec.JobID,
				"task-type": spec.TaskType,
			},
		},
		Spec: batchv1.JobSpec{
			Template:                corev1.PodTemplateSpec{Spec: podSpec},
			BackoffLimit:            &backoffLimit,
			ActiveDeadlineSeconds:   &deadline,
			TTLSecondsAfterFinished: &ttl,
		},
	}, nil
}

func (e *Executor) waitForCompletion(ctx context.Context, name string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		job, err := e.client.BatchV1().Jobs(e.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			klog.ErrorS(err, "error checking job status", "job", name)
		} else if job.Status.Succeeded > 0 {
			klog.Infof("job %s completed successfully", name)
			return nil
		} else if job.Status.Failed > 0 {
			return errors.Newf(errors.CodeK8sJobFailed, "Job %s failed", name)
		}

		select {
		case <-ctx.Done():
			return errors.Newf(errors.CodeK8sJobTimeout, "Job %s canceled: %v", name, ctx.Err())
		case <-ticker.C:
		}
	}
	return errors.Newf(errors.CodeK8sJobTimeout,
		"Job %s timed out after %d seconds", name, int(timeout.Seconds()))
}

func apiError(err error) error {
	if statusErr, ok := err.(*apierrors.StatusError); ok {
		status := statusErr.ErrStatus
		return errors.Newf(errors.CodeK8sAPIError, "K8s API error: %d - %s", status.Code, status.Reason).
			WithDetails(map[string]any{
				"status": status.Code,
				"reason": string(status.Reason),
			})
	}
	return errors.Newf(errors.CodeK8sAPIError, "K8s API error: %v", err)
}

// normalizedImage completes a missing tag with "latest", matching the
// Docker executor's resolution.
func normalizedImage(ref string) string {
	slash := -1
	colon := -1
	for i, r := range ref {
		switch r {
		case '/':
			slash = i
		case ':':
			colon = i
		}
	}
	if colon > slash {
		return ref
	}
	return ref + ":latest"
}

func jobName(jobID string) string {
	if len(jobID) > 12 {
		jobID = jobID[:12]
	}
	return fmt.Sprintf("autoscorer-%s", jobID)
}
