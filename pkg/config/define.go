/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

// Recognized configuration keys. Environment variables of the same name
// override file values.
const (
	dockerHost       = "DOCKER_HOST"
	imagePullPolicy  = "IMAGE_PULL_POLICY"
	defaultCPU       = "DEFAULT_CPU"
	defaultMemory    = "DEFAULT_MEMORY"
	defaultGPU       = "DEFAULT_GPU"
	defaultShmSize   = "DEFAULT_SHM_SIZE"
	timeout          = "TIMEOUT"
	securityOpts     = "SECURITY_OPTS"
	registryURL      = "REGISTRY_URL"
	registryUser     = "REGISTRY_USER"
	registryPass     = "REGISTRY_PASS"
	k8sEnabled       = "K8S_ENABLED"
	k8sAPI           = "K8S_API"
	k8sToken         = "K8S_TOKEN"
	k8sCACert        = "K8S_CA_CERT"
	k8sNamespace     = "K8S_NAMESPACE"
	k8sPullSecret    = "K8S_IMAGE_PULL_SECRET"
	nodes            = "NODES"
	dockerNodes      = "DOCKER_NODES_ENABLED"
	celeryBroker     = "CELERY_BROKER"
	celeryBackend    = "CELERY_BACKEND"
	taskDBPath       = "TASK_DB_PATH"
	logDir           = "LOG_DIR"
	printStacktrace  = "PRINT_STACKTRACE"
	serverPort       = "SERVER_PORT"
	workerConcurrent = "WORKER_CONCURRENCY"

	containerProjectRoot  = "CONTAINER_PROJECT_ROOT"
	hostProjectRoot       = "HOST_PROJECT_ROOT"
	containerExamplesRoot = "CONTAINER_EXAMPLES_ROOT"
	hostExamplesRoot      = "HOST_EXAMPLES_ROOT"
)

// sensitiveKeys are masked by Dump.
var sensitiveKeys = map[string]bool{
	registryPass:  true,
	k8sToken:      true,
	celeryBroker:  true,
	celeryBackend: true,
}
