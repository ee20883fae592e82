/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/pipeline"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/taskstore"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/tasks"
)

// Runner is the pipeline surface CLI commands execute against.
type Runner interface {
	RunOnly(ctx context.Context, ws, backend string) (*pipeline.RunStatus, error)
	ScoreOnly(ws string, params map[string]any, scorerOverride string) (*schemas.Result, string, error)
	RunAndScore(ctx context.Context, ws string, params map[string]any, backend, scorerOverride string) *pipeline.Outcome
}

// Factories are swappable for tests.
var (
	newRunner = func() Runner { return pipeline.New() }

	newSubmitter = func() (*tasks.Submitter, error) {
		broker, err := tasks.NewBroker("")
		if err != nil {
			return nil, err
		}
		store, err := taskstore.OpenDefault()
		if err != nil {
			klog.Warningf("task store unavailable: %v", err)
		}
		return tasks.NewSubmitter(broker, store), nil
	}
)

func workspaceExists(w *cobra.Command, ws string) error {
	if _, err := os.Stat(ws); err != nil {
		return printError(w.OutOrStdout(), errors.CodeWorkspaceNotFound,
			"Workspace not found: "+ws, "validation", map[string]any{"workspace": ws})
	}
	return nil
}

func parseParams(w *cobra.Command, raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, printError(w.OutOrStdout(), "INVALID_PARAMS",
			"Invalid JSON params: "+err.Error(), "validation", map[string]any{"params": raw})
	}
	return params, nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workspace>",
		Short: "Validate workspace layout and meta.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := args[0]
			if err := workspaceExists(cmd, ws); err != nil {
				return err
			}
			spec, err := schemas.LoadJobSpec(ws)
			if err != nil {
				typed := errors.Convert(err, errors.CodeDataValidationError, "validation")
				return printError(cmd.OutOrStdout(), typed.Code, typed.Message,
					"validation", map[string]any{"workspace": ws})
			}
			abs, _ := filepath.Abs(ws)
			printSuccess(cmd.OutOrStdout(), map[string]any{
				"validated":      true,
				"job_id":         spec.JobID,
				"task_type":      spec.TaskType,
				"workspace_path": abs,
			}, map[string]any{"workspace": ws})
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "run <workspace>",
		Short: "Run the inference container without scoring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := args[0]
			if err := workspaceExists(cmd, ws); err != nil {
				return err
			}
			start := time.Now()
			status, err := newRunner().RunOnly(cmd.Context(), ws, backend)
			if err != nil {
				typed := errors.Convert(err, errors.CodeExecError, "execution")
				return printError(cmd.OutOrStdout(), typed.Code, typed.Message,
					"execution", map[string]any{"workspace": ws})
			}
			printSuccess(cmd.OutOrStdout(), map[string]any{"run_result": status}, map[string]any{
				"execution_time": time.Since(start).Seconds(),
				"workspace":      ws,
				"backend_used":   backend,
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "docker", "execution backend: docker|k8s|auto")
	return cmd
}

func newScoreCmd() *cobra.Command {
	var rawParams, scorer string
	cmd := &cobra.Command{
		Use:   "score <workspace>",
		Short: "Score existing predictions and write result.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := args[0]
			if err := workspaceExists(cmd, ws); err != nil {
				return err
			}
			params, err := parseParams(cmd, rawParams)
			if err != nil {
				return err
			}
			start := time.Now()
			result, out, err := newRunner().ScoreOnly(ws, params, scorer)
			if err != nil {
				typed := errors.Convert(err, errors.CodeScoreError, "scoring")
				return printError(cmd.OutOrStdout(), typed.Code, typed.Message,
					"scoring", map[string]any{"workspace": ws})
			}
			printSuccess(cmd.OutOrStdout(), map[string]any{
				"score_result": result,
				"output_path":  out,
			}, map[string]any{
				"execution_time": time.Since(start).Seconds(),
				"workspace":      ws,
				"scorer_used":    orAuto(scorer),
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&rawParams, "params", "", "scorer parameters as a JSON object")
	cmd.Flags().StringVar(&scorer, "scorer", "", "scorer name override")
	return cmd
}

func newPipelineCmd() *cobra.Command {
	var backend, rawParams, scorer string
	cmd := &cobra.Command{
		Use:   "pipeline <workspace>",
		Short: "Run inference and scoring end to end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := args[0]
			if err := workspaceExists(cmd, ws); err != nil {
				return err
			}
			params, err := parseParams(cmd, rawParams)
			if err != nil {
				return err
			}
			start := time.Now()
			outcome := newRunner().RunAndScore(cmd.Context(), ws, params, backend, scorer)
			if !outcome.OK {
				code, message, stage, details := outcomeFields(outcome)
				details["workspace"] = ws
				return printError(cmd.OutOrStdout(), code, message, stage, details)
			}
			printSuccess(cmd.OutOrStdout(), map[string]any{"pipeline_result": outcome}, map[string]any{
				"execution_time": time.Since(start).Seconds(),
				"workspace":      ws,
				"backend_used":   backend,
				"scorer_used":    orAuto(scorer),
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "docker", "execution backend: docker|k8s|auto")
	cmd.Flags().StringVar(&rawParams, "params", "", "scorer parameters as a JSON object")
	cmd.Flags().StringVar(&scorer, "scorer", "", "scorer name override")
	return cmd
}

func newSubmitCmd() *cobra.Command {
	var action, rawParams, backend, callbackURL string
	cmd := &cobra.Command{
		Use:   "submit <workspace>",
		Short: "Submit an async task to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := args[0]
			params, err := parseParams(cmd, rawParams)
			if err != nil {
				return err
			}
			if err := workspaceExists(cmd, ws); err != nil {
				return err
			}
			var name string
			switch strings.ToLower(action) {
			case "run":
				name = tasks.TaskRunJob
			case "score":
				name = tasks.TaskScoreJob
			case "pipeline":
				name = tasks.TaskRunAndScoreJob
			default:
				return printError(cmd.OutOrStdout(), "INVALID_ACTION",
					"Invalid action '"+action+"'. Use: run|score|pipeline", "validation", nil)
			}
			submitter, err := newSubmitter()
			if err != nil {
				return printError(cmd.OutOrStdout(), "SUBMIT_ERROR", err.Error(),
					"async_submission", map[string]any{"workspace": ws})
			}
			res, err := submitter.Submit(cmd.Context(), tasks.SubmitRequest{
				Name:        name,
				Workspace:   ws,
				Params:      params,
				Backend:     backend,
				CallbackURL: callbackURL,
			})
			if err != nil {
				return printError(cmd.OutOrStdout(), "SUBMIT_ERROR", err.Error(),
					"async_submission", map[string]any{"workspace": ws})
			}
			printSuccess(cmd.OutOrStdout(), map[string]any{
				"submitted": !res.Deduped,
				"running":   res.Deduped,
				"task_id":   res.TaskID,
				"action":    action,
				"params":    params,
			}, map[string]any{"workspace": ws})
			return nil
		},
	}
	cmd.Flags().StringVar(&action, "action", "run", "action: run|score|pipeline")
	cmd.Flags().StringVar(&rawParams, "params", "", "scorer parameters as a JSON object")
	cmd.Flags().StringVar(&backend, "backend", "", "execution backend: docker|k8s|auto")
	cmd.Flags().StringVar(&callbackURL, "callback-url", "", "URL notified when the task finishes")
	return cmd
}

func outcomeFields(outcome *pipeline.Outcome) (code, message, stage string, details map[string]any) {
	details = map[string]any{}
	if outcome.Stage == "score" && outcome.Result != nil && outcome.Result.Error != nil {
		e := outcome.Result.Error
		for k, v := range e.Details {
			details[k] = v
		}
		return e.Code, e.Message, "score", details
	}
	for k, v := range outcome.Details {
		details[k] = v
	}
	code = outcome.Code
	if code == "" {
		code = errors.CodePipelineError
	}
	stage = outcome.Stage
	if stage == "" {
		stage = "pipeline"
	}
	if outcome.Logs != "" {
		details["logs_path"] = outcome.Logs
	}
	return code, outcome.Message, stage, details
}

func orAuto(v string) string {
	if v == "" {
		return "auto"
	}
	return v
}
