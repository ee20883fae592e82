/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/pipeline"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/taskstore"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/utils/backoff"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/utils/httpclient"
)

const (
	dequeueTimeout  = time.Second
	callbackTimeout = 5 * time.Second
	callbackRetries = 2
)

// Runner is the pipeline surface workers execute tasks against.
type Runner interface {
	RunOnly(ctx context.Context, ws, backend string) (*pipeline.RunStatus, error)
	ScoreOnly(ws string, params map[string]any, scorerOverride string) (*schemas.Result, string, error)
	RunAndScore(ctx context.Context, ws string, params map[string]any, backend, scorerOverride string) *pipeline.Outcome
}

// Worker consumes the broker queue with a fixed goroutine pool and drives
// each message through the pipeline, persisting state transitions and
// delivering optional callbacks.
type Worker struct {
	broker      *Broker
	store       *taskstore.Store
	runner      Runner
	concurrency int
	client      httpclient.Interface

	wg sync.WaitGroup
}

func NewWorker(broker *Broker, store *taskstore.Store, runner Runner) *Worker {
	return &Worker{
		broker:      broker,
		store:       store,
		runner:      runner,
		concurrency: config.GetWorkerConcurrency(),
		client:      httpclient.NewWithTimeout(callbackTimeout, 1),
	}
}

// Start launches the consumer pool. It returns immediately; cancel the
// context and call Wait to stop.
func (w *Worker) Start(ctx context.Context) {
	if w.concurrency < 1 {
		w.concurrency = 1
	}
	klog.Infof("starting %d worker(s)", w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func(n int) {
			defer w.wg.Done()
			w.loop(ctx, n)
		}(i)
	}
}

// Wait blocks until all consumers have drained after cancellation.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context, n int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, err := w.broker.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			klog.Warningf("worker %d dequeue failed: %v", n, err)
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue
		}
		w.Process(ctx, msg)
	}
}

// Process executes one message end to end.
func (w *Worker) Process(ctx context.Context, msg *Message) {
	klog.Infof("starting %s for workspace: %s", msg.Name, msg.Workspace)
	action := ActionForTask(msg.Name)
	w.upsert(msg.TaskID, taskstore.Update{
		Action:    &action,
		Workspace: &msg.Workspace,
		State:     strPtr(taskstore.StateStarted),
	})

	result, taskErr := w.execute(ctx, msg)
	if taskErr != nil {
		w.finishFailure(ctx, msg, action, taskErr)
		return
	}
	klog.Infof("completed %s for workspace: %s", msg.Name, msg.Workspace)
	w.finishSuccess(ctx, msg, result)
}

func (w *Worker) execute(ctx context.Context, msg *Message) (map[string]any, *errors.Error) {
	switch msg.Name {
	case TaskRunJob:
		status, err := w.runner.RunOnly(ctx, msg.Workspace, msg.Backend)
		if err != nil {
			return nil, errors.Convert(err, errors.CodeExecError, "run")
		}
		return map[string]any{"result": status, "workspace": msg.Workspace}, nil
	case TaskScoreJob:
		result, out, err := w.runner.ScoreOnly(msg.Workspace, msg.Params, msg.Scorer)
		if err != nil {
			return nil, errors.Convert(err, errors.CodeScoreError, "score")
		}
		return map[string]any{"result": result, "output_path": out, "workspace": msg.Workspace}, nil
	case TaskRunAndScoreJob:
		outcome := w.runner.RunAndScore(ctx, msg.Workspace, msg.Params, msg.Backend, msg.Scorer)
		if !outcome.OK {
			if outcome.Stage == "score" && outcome.Result != nil && outcome.Result.Error != nil {
				e := outcome.Result.Error
				return nil, errors.New(e.Code, e.Message).WithStage("score").WithDetails(e.Details)
			}
			return nil, errors.New(outcome.Code, outcome.Message).
				WithStage(outcome.Stage).WithDetails(outcome.Details)
		}
		return map[string]any{"result": outcome, "workspace": msg.Workspace}, nil
	default:
		return nil, errors.Newf(errors.CodeExecError, "unknown task name: %s", msg.Name).WithStage("run")
	}
}

func (w *Worker) finishSuccess(ctx context.Context, msg *Message, result map[string]any) {
	envelope := &schemas.Envelope{
		OK:   true,
		Data: result,
		Meta: map[string]any{"task_id": msg.TaskID},
	}
	if msg.CallbackURL != "" {
		w.postCallback(msg.CallbackURL, envelope)
	}
	w.upsert(msg.TaskID, taskstore.Update{
		State:    strPtr(taskstore.StateSuccess),
		Result:   result,
		Finished: true,
	})
	if err := w.broker.Done(ctx, msg.TaskID, envelope); err != nil {
		klog.Warningf("broker done failed for %s: %v", msg.TaskID, err)
	}
}

func (w *Worker) finishFailure(ctx context.Context, msg *Message, action string, taskErr *errors.Error) {
	klog.Errorf("%s failed: %s - %s", msg.Name, taskErr.Code, taskErr.Message)
	stage := taskErr.Stage
	if stage == "" {
		stage = action
	}
	details := map[string]any{}
	for k, v := range taskErr.Details {
		details[k] = v
	}
	details["workspace"] = msg.Workspace

	envelope := schemas.Failure(taskErr.Code, taskErr.Message, stage, details)
	envelope.Meta["task_id"] = msg.TaskID
	if msg.CallbackURL != "" {
		w.postCallback(msg.CallbackURL, envelope)
	}
	w.upsert(msg.TaskID, taskstore.Update{
		State: strPtr(taskstore.StateFailure),
		Error: map[string]any{
			"code":    taskErr.Code,
			"message": taskErr.Message,
			"details": details,
		},
		Finished: true,
	})
	if err := w.broker.Done(ctx, msg.TaskID, envelope); err != nil {
		klog.Warningf("broker done failed for %s: %v", msg.TaskID, err)
	}
}

// postCallback delivers the envelope to the callback URL. Delivery is
// best effort, failures are logged and never fail the task.
func (w *Worker) postCallback(url string, payload any) {
	attempts := 0
	err := backoff.RetryCount(func() error {
		attempts++
		rsp, err := w.client.Post(url, payload)
		if err != nil {
			return err
		}
		if !rsp.IsSuccess() {
			return fmt.Errorf("callback returned %d", rsp.StatusCode)
		}
		return nil
	}, callbackRetries+1, time.Second)
	if err != nil {
		klog.Warningf("callback POST failed after %d attempts: %v", attempts, err)
	}
}

func (w *Worker) upsert(taskID string, update taskstore.Update) {
	if w.store == nil {
		return
	}
	if err := w.store.Upsert(taskID, update); err != nil {
		klog.Warningf("task store upsert failed for %s: %v", taskID, err)
	}
}

func strPtr(s string) *string { return &s }
