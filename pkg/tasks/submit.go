/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tasks

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/taskstore"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/utils/timeutil"
)

// SubmitRequest describes an async job submission.
type SubmitRequest struct {
	Name        string
	Workspace   string
	Params      map[string]any
	Backend     string
	Scorer      string
	CallbackURL string
}

// SubmitResult reports the accepted (or deduplicated) task.
type SubmitResult struct {
	TaskID  string `json:"task_id"`
	Action  string `json:"action"`
	State   string `json:"state"`
	Deduped bool   `json:"deduped"`
}

// Submitter enqueues tasks with workspace-level deduplication: a
// workspace with a queued or running task is not enqueued again, the
// existing task id is returned instead.
type Submitter struct {
	broker *Broker
	store  *taskstore.Store
}

func NewSubmitter(broker *Broker, store *taskstore.Store) *Submitter {
	return &Submitter{broker: broker, store: store}
}

// Submit enqueues the request unless the workspace already has an active
// task in the broker or the store.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	ws, err := filepath.Abs(req.Workspace)
	if err != nil {
		return nil, errors.Newf(errors.CodeExecError, "cannot resolve workspace path: %v", err)
	}
	action := ActionForTask(req.Name)

	if existing, err := s.broker.ActiveTaskForWorkspace(ctx, ws); err != nil {
		return nil, errors.Newf(errors.CodeExecError, "broker inspection failed: %v", err)
	} else if existing != "" {
		klog.Infof("dedup: workspace %s already queued as task %s", ws, existing)
		return s.dedupResult(existing, action)
	}
	if s.store != nil {
		if existing, err := s.store.ActiveTaskForWorkspace(ws); err != nil {
			klog.Warningf("task store inspection failed: %v", err)
		} else if existing != "" {
			klog.Infof("dedup: workspace %s held by unfinished task %s", ws, existing)
			return s.dedupResult(existing, action)
		}
	}

	msg := &Message{
		TaskID:      uuid.NewString(),
		Name:        req.Name,
		Workspace:   ws,
		Params:      req.Params,
		Backend:     req.Backend,
		Scorer:      req.Scorer,
		CallbackURL: req.CallbackURL,
		SubmittedAt: timeutil.NowISO8601(),
	}
	if err := s.broker.Enqueue(ctx, msg); err != nil {
		return nil, errors.Newf(errors.CodeExecError, "enqueue failed: %v", err)
	}
	if s.store != nil {
		state := taskstore.StateSubmitted
		if err := s.store.Upsert(msg.TaskID, taskstore.Update{
			Action:    &action,
			Workspace: &ws,
			State:     &state,
		}); err != nil {
			klog.Warningf("task store upsert failed for %s: %v", msg.TaskID, err)
		}
	}
	klog.Infof("submitted task %s (%s) for workspace %s", msg.TaskID, req.Name, ws)
	return &SubmitResult{TaskID: msg.TaskID, Action: action, State: taskstore.StateSubmitted}, nil
}

func (s *Submitter) dedupResult(taskID, action string) (*SubmitResult, error) {
	state := taskstore.StateSubmitted
	if s.store != nil {
		if task, err := s.store.Get(taskID); err == nil && task != nil && task.State != "" {
			state = task.State
			action = task.Action
		}
	}
	return &SubmitResult{TaskID: taskID, Action: action, State: state, Deduped: true}, nil
}

// Status resolves a task's current state, preferring the persistent store
// and falling back to broker caches for tasks the store never saw. Broker
// failures degrade the answer instead of failing it: the best-known state
// comes back with the broker error recorded in the result.
func (s *Submitter) Status(ctx context.Context, taskID string) (*taskstore.Task, error) {
	if s.store != nil {
		task, err := s.store.Get(taskID)
		if err != nil {
			return nil, err
		}
		if task != nil {
			return task, nil
		}
	}
	var brokerErr error
	if active, err := s.broker.Active(ctx); err != nil {
		brokerErr = err
	} else if msg, ok := active[taskID]; ok {
		return &taskstore.Task{
			TaskID:    taskID,
			Action:    ActionForTask(msg.Name),
			Workspace: msg.Workspace,
			State:     taskstore.StateSubmitted,
			CreatedAt: msg.SubmittedAt,
		}, nil
	}
	if cached, err := s.broker.CachedResult(ctx, taskID); err != nil {
		if brokerErr == nil {
			brokerErr = err
		}
	} else if cached != nil {
		state := taskstore.StateSuccess
		task := &taskstore.Task{TaskID: taskID}
		if ok, has := cached["ok"].(bool); has && !ok {
			state = taskstore.StateFailure
			if e, ok := cached["error"].(map[string]any); ok {
				task.Error = e
			}
		} else if data, ok := cached["data"].(map[string]any); ok {
			task.Result = data
		}
		task.State = state
		return task, nil
	}
	if brokerErr != nil {
		klog.Warningf("broker unreachable while resolving task %s: %v", taskID, brokerErr)
		return &taskstore.Task{
			TaskID: taskID,
			Result: map[string]any{"error": brokerErr.Error()},
		}, nil
	}
	return nil, nil
}
