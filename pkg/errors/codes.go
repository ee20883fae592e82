/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package errors

// Canonical error codes. The stage is carried separately on the Error.
const (
	// Workspace and configuration.
	CodeMissingFile       = "MISSING_FILE"
	CodeParseError        = "PARSE_ERROR"
	CodeBadFormat         = "BAD_FORMAT"
	CodePermissionError   = "PERMISSION_ERROR"
	CodeInvalidResources  = "INVALID_RESOURCES"
	CodeScorerNotFound    = "SCORER_NOT_FOUND"
	CodeWorkspaceNotFound = "WORKSPACE_NOT_FOUND"

	// Data and scoring.
	CodeMismatch            = "MISMATCH"
	CodeTypeError           = "TYPE_ERROR"
	CodeDataValidationError = "DATA_VALIDATION_ERROR"
	CodeScoreError          = "SCORE_ERROR"

	// Container execution.
	CodeImagePullFailed      = "IMAGE_PULL_FAILED"
	CodeImageNotPresent      = "IMAGE_NOT_PRESENT"
	CodeContainerCreateFail  = "CONTAINER_CREATE_FAILED"
	CodeContainerWaitFailed  = "CONTAINER_WAIT_FAILED"
	CodeContainerExitNonzero = "CONTAINER_EXIT_NONZERO"
	CodeTimeoutError         = "TIMEOUT_ERROR"
	CodeExecError            = "EXEC_ERROR"

	// Cluster and infra.
	CodeSchedulerError = "SCHEDULER_ERROR"
	CodeK8sClientError = "K8S_CLIENT_ERROR"
	CodeK8sConfigError = "K8S_CONFIG_ERROR"
	CodeK8sAPIError    = "K8S_API_ERROR"
	CodeK8sJobFailed   = "K8S_JOB_FAILED"
	CodeK8sJobTimeout  = "K8S_JOB_TIMEOUT"

	// Pipeline.
	CodePipelineError  = "PIPELINE_ERROR"
	CodeUnhandledError = "UNHANDLED_ERROR"
)

// notFoundCodes are the codes the API layer maps to HTTP 404.
var notFoundCodes = map[string]bool{
	CodeMissingFile:       true,
	CodeScorerNotFound:    true,
	CodeWorkspaceNotFound: true,
}

// IsNotFound reports whether the code designates a missing resource.
func IsNotFound(code string) bool {
	return notFoundCodes[code]
}
