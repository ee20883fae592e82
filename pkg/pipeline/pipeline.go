/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/executor"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/executor/docker"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/scheduler"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/scorers"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/utils/jsonutil"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/workspace"
)

// RunStatus reports a completed inference stage.
type RunStatus struct {
	OK    bool   `json:"ok"`
	Stage string `json:"stage"`
	JobID string `json:"job_id"`
}

// Outcome is the aggregate run-and-score report. A run-stage failure
// carries the error fields and a pointer to the container log; a
// score-stage failure carries a Result whose Error field is set.
type Outcome struct {
	OK         bool            `json:"ok"`
	Stage      string          `json:"stage,omitempty"`
	Code       string          `json:"code,omitempty"`
	Message    string          `json:"message,omitempty"`
	Details    map[string]any  `json:"details,omitempty"`
	Logs       string          `json:"logs,omitempty"`
	Result     *schemas.Result `json:"result,omitempty"`
	ResultPath string          `json:"result_path,omitempty"`
}

// Pipeline wires validation, execution and scoring together.
type Pipeline struct {
	registry  *scorers.Registry
	scheduler *scheduler.Scheduler

	// newDocker is swappable for tests; the "docker" backend hint
	// bypasses the scheduler and talks to the local daemon directly.
	newDocker func() (executor.Executor, error)
}

// New returns a pipeline over the default scorer registry and scheduler.
func New() *Pipeline {
	return &Pipeline{
		registry:  scorers.Default(),
		scheduler: scheduler.New(),
		newDocker: func() (executor.Executor, error) { return docker.New("") },
	}
}

// RunOnly validates the workspace and executes the inference container
// without scoring.
func (p *Pipeline) RunOnly(ctx context.Context, ws, backend string) (*RunStatus, error) {
	ws, err := filepath.Abs(ws)
	if err != nil {
		return nil, errors.Newf(errors.CodeExecError, "cannot resolve workspace path: %v", err)
	}
	if v := workspace.Validate(ws, p.registry.Has); !v.OK {
		return nil, v.AsError()
	}
	spec, err := schemas.LoadJobSpec(ws)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(backend) {
	case "docker":
		exec, err := p.newDocker()
		if err != nil {
			return nil, err
		}
		if err := exec.Run(ctx, spec, ws); err != nil {
			return nil, err
		}
	default:
		// "k8s" and "auto" both go through the scheduler.
		if err := p.scheduler.Schedule(ctx, spec, ws); err != nil {
			return nil, err
		}
	}
	return &RunStatus{OK: true, Stage: "inference_done", JobID: spec.JobID}, nil
}

// ScoreOnly scores an already-executed workspace and writes result.json.
// It returns the enriched result and the result.json path.
func (p *Pipeline) ScoreOnly(ws string, params map[string]any, scorerOverride string) (*schemas.Result, string, error) {
	ws, err := filepath.Abs(ws)
	if err != nil {
		return nil, "", errors.Newf(errors.CodeScoreError, "cannot resolve workspace path: %v", err)
	}
	start := time.Now()
	if params == nil {
		params = map[string]any{}
	}

	spec, err := schemas.LoadJobSpec(ws)
	if err != nil {
		return nil, "", err
	}
	if scorerOverride != "" {
		klog.Infof("using scorer override: %s (original: %s)", scorerOverride, spec.Scorer)
		spec.Scorer = scorerOverride
	}

	p.loadCustomScorers(ws)

	scorer, err := p.registry.Get(spec.Scorer)
	if err != nil {
		return nil, "", err
	}
	klog.Infof("using scorer: %s", spec.Scorer)

	var validateTime float64
	if v, ok := scorer.(scorers.Validator); ok {
		klog.Infof("running scorer-specific validation")
		v0 := time.Now()
		if err := v.Validate(ws, params); err != nil {
			if _, typed := errors.AsError(err); typed {
				return nil, "", err
			}
			return nil, "", errors.New(errors.CodeDataValidationError, err.Error())
		}
		validateTime = time.Since(v0).Seconds()
	}

	c0 := time.Now()
	result, err := scorer.Score(ws, params)
	if err != nil {
		return nil, "", errors.Convert(err, errors.CodeScoreError, "score")
	}
	computeTime := time.Since(c0).Seconds()

	if result.Timing == nil {
		result.Timing = map[string]float64{}
	}
	result.Timing["validate_time"] = validateTime
	result.Timing["compute_time"] = computeTime

	if result.Artifacts == nil {
		result.Artifacts = map[string]schemas.ArtifactInfo{}
	}
	if path, ok := firstExisting(filepath.Join(ws, "input", "gt.csv"), filepath.Join(ws, "input", "gt.json")); ok {
		result.Artifacts["input_gt"] = workspace.FileInfo(path)
	}
	if path, ok := firstExisting(filepath.Join(ws, "output", "pred.csv"), filepath.Join(ws, "output", "pred.json")); ok {
		result.Artifacts["output_pred"] = workspace.FileInfo(path)
	}
	for name, info := range workspace.CollectDir(filepath.Join(ws, "output", "artifacts")) {
		result.Artifacts["artifacts/"+name] = info
	}

	// First write, then record result.json's own file info and the final
	// timing figures with a second write.
	out := filepath.Join(ws, "output", "result.json")
	s0 := time.Now()
	if err := jsonutil.WriteFile(out, result); err != nil {
		return nil, "", errors.Newf(errors.CodePermissionError, "cannot write result.json: %v", err)
	}
	result.Artifacts["result_json"] = workspace.FileInfo(out)
	result.Timing["save_time"] = time.Since(s0).Seconds()
	result.Timing["total_time"] = time.Since(start).Seconds()
	if err := jsonutil.WriteFile(out, result); err != nil {
		return nil, "", errors.Newf(errors.CodePermissionError, "cannot write result.json: %v", err)
	}
	return result, out, nil
}

// RunAndScore chains inference and scoring. Failures are reported in the
// outcome rather than as an error so callers always get a structured
// payload.
func (p *Pipeline) RunAndScore(ctx context.Context, ws string, params map[string]any, backend, scorerOverride string) *Outcome {
	absWS, err := filepath.Abs(ws)
	if err == nil {
		ws = absWS
	}
	logsPath := filepath.Join(ws, "logs", "container.log")

	if _, err := p.RunOnly(ctx, ws, backend); err != nil {
		typed := errors.Convert(err, errors.CodeExecError, "run")
		return &Outcome{
			OK:      false,
			Stage:   "run",
			Code:    typed.Code,
			Message: typed.Message,
			Details: typed.Details,
			Logs:    logsPath,
		}
	}

	result, out, err := p.ScoreOnly(ws, params, scorerOverride)
	if err != nil {
		typed := errors.Convert(err, errors.CodeScoreError, "score")
		failed := schemas.NewResult()
		failed.Error = &schemas.ErrorInfo{
			Code:    typed.Code,
			Message: typed.Message,
			Stage:   "score",
			Details: typed.Details,
		}
		out = filepath.Join(ws, "output", "result.json")
		if err := jsonutil.WriteFile(out, failed); err != nil {
			klog.ErrorS(err, "failed to write failure result.json")
		}
		return &Outcome{OK: false, Stage: "score", Result: failed, ResultPath: out}
	}
	return &Outcome{OK: true, Result: result, ResultPath: out}
}

// loadCustomScorers loads plugin scorers from the conventional custom
// directories. Load failures are logged, never fatal.
func (p *Pipeline) loadCustomScorers(ws string) {
	dirs := []string{}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, "custom_scorers"))
	}
	dirs = append(dirs,
		filepath.Join(filepath.Dir(ws), "custom_scorers"),
		filepath.Join(ws, "custom_scorers"),
	)
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		loaded, err := p.registry.LoadFromDirectory(dir, "")
		if err != nil {
			klog.Warningf("failed to load custom scorers from %s: %v", dir, err)
			continue
		}
		if len(loaded) > 0 {
			klog.Infof("loaded %d custom scorer(s) from %s", len(loaded), dir)
		}
	}
}

func firstExisting(paths ...string) (string, bool) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}
