/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tasks

// Registered task names. The name selects which pipeline stage a worker
// invokes for the message.
const (
	TaskRunJob         = "autoscorer.run_job"
	TaskScoreJob       = "autoscorer.score_job"
	TaskRunAndScoreJob = "autoscorer.run_and_score_job"
)

// ActionForTask maps a task name to the short action label persisted in
// the task store.
func ActionForTask(name string) string {
	switch name {
	case TaskRunJob:
		return "run"
	case TaskScoreJob:
		return "score"
	case TaskRunAndScoreJob:
		return "pipeline"
	default:
		return name
	}
}

// Message is the unit of work pushed onto the broker queue.
type Message struct {
	TaskID      string         `json:"task_id"`
	Name        string         `json:"name"`
	Workspace   string         `json:"workspace"`
	Params      map[string]any `json:"params,omitempty"`
	Backend     string         `json:"backend,omitempty"`
	Scorer      string         `json:"scorer,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	SubmittedAt string         `json:"submitted_at"`
}
