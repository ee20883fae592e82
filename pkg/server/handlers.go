/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/pipeline"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/tasks"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/taskstore"
)

type pipelineRequest struct {
	Workspace string         `json:"workspace" binding:"required"`
	Params    map[string]any `json:"params"`
	Backend   string         `json:"backend"`
	Scorer    string         `json:"scorer"`
}

type submitRequest struct {
	Workspace   string         `json:"workspace" binding:"required"`
	Params      map[string]any `json:"params"`
	Backend     string         `json:"backend"`
	Scorer      string         `json:"scorer"`
	Action      string         `json:"action"`
	CallbackURL string         `json:"callback_url"`
}

type loadScorerRequest struct {
	FilePath    string `json:"file_path" binding:"required"`
	ForceReload bool   `json:"force_reload"`
	AutoWatch   *bool  `json:"auto_watch"`
}

type watchFileRequest struct {
	FilePath      string  `json:"file_path" binding:"required"`
	CheckInterval float64 `json:"check_interval"`
}

type testScorerRequest struct {
	ScorerName string         `json:"scorer_name" binding:"required"`
	Workspace  string         `json:"workspace" binding:"required"`
	Params     map[string]any `json:"params"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"service": "autoscorer",
		"version": schemas.Version,
		"endpoints": gin.H{
			"GET /":                      "service info",
			"GET /healthz":               "health check",
			"POST /run":                  "execute the job container",
			"POST /score":                "score existing output",
			"POST /pipeline":             "run and score",
			"POST /submit":               "async submission",
			"GET /tasks/{task_id}":       "async task status",
			"GET /result":                "read output/result.json",
			"GET /logs":                  "read logs/container.log",
			"GET /scorers":               "list registered scorers",
			"POST /scorers/load":         "load scorers from a plugin file",
			"POST /scorers/reload":       "reload a plugin file",
			"POST /scorers/watch":        "watch a plugin file for changes",
			"DELETE /scorers/watch":      "stop watching a plugin file",
			"GET /scorers/watch":         "list watched files",
			"POST /scorers/test":         "run a scorer against a workspace",
		},
	}, nil))
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, schemas.Success(gin.H{"status": "healthy"}, nil))
}

func (s *Server) handleListScorers(c *gin.Context) {
	list := s.registry.List()
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"scorers":       list,
		"total":         len(list),
		"watched_files": s.registry.WatchedFiles(),
	}, nil))
}

func (s *Server) handleLoadScorer(c *gin.Context) {
	var req loadScorerRequest
	if !s.bind(c, &req) {
		return
	}
	loaded, err := s.registry.LoadFromFile(req.FilePath, req.ForceReload)
	if err != nil {
		s.writeError(c, err, "scorer_loading", nil)
		return
	}
	autoWatch := req.AutoWatch == nil || *req.AutoWatch
	if autoWatch && len(loaded) > 0 {
		if err := s.registry.StartWatching(req.FilePath, time.Second); err != nil {
			s.writeError(c, err, "scorer_watch", gin.H{"file_path": req.FilePath})
			return
		}
	}
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"loaded_scorers": loaded,
		"count":          len(loaded),
		"auto_watch":     autoWatch,
		"file_path":      req.FilePath,
	}, gin.H{"action": "load_scorer"}))
}

func (s *Server) handleReloadScorer(c *gin.Context) {
	var req loadScorerRequest
	if !s.bind(c, &req) {
		return
	}
	loaded, err := s.registry.Reload(req.FilePath)
	if err != nil {
		s.writeError(c, err, "scorer_reloading", nil)
		return
	}
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"reloaded_scorers": loaded,
		"count":            len(loaded),
		"file_path":        req.FilePath,
	}, gin.H{"action": "reload_scorer"}))
}

func (s *Server) handleStartWatch(c *gin.Context) {
	var req watchFileRequest
	if !s.bind(c, &req) {
		return
	}
	interval := time.Duration(req.CheckInterval * float64(time.Second))
	if interval <= 0 {
		interval = time.Second
	}
	if err := s.registry.StartWatching(req.FilePath, interval); err != nil {
		s.writeError(c, err, "scorer_watch", gin.H{"file_path": req.FilePath})
		return
	}
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"message":        fmt.Sprintf("Started watching %s", req.FilePath),
		"file_path":      req.FilePath,
		"check_interval": interval.Seconds(),
	}, gin.H{"action": "watch_start"}))
}

func (s *Server) handleStopWatch(c *gin.Context) {
	filePath := c.Query("file_path")
	if filePath == "" {
		c.JSON(http.StatusBadRequest,
			schemas.Failure("BAD_REQUEST", "file_path query parameter is required", "api", nil))
		return
	}
	if !s.registry.StopWatching(filePath) {
		c.JSON(http.StatusNotFound,
			schemas.Failure("NOT_WATCHING", fmt.Sprintf("File %s is not being watched", filePath),
				"scorer_watch", map[string]any{"file_path": filePath}))
		return
	}
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"message":   fmt.Sprintf("Stopped watching %s", filePath),
		"file_path": filePath,
	}, gin.H{"action": "watch_stop"}))
}

func (s *Server) handleWatchedFiles(c *gin.Context) {
	watched := s.registry.WatchedFiles()
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"watched_files": watched,
		"count":         len(watched),
	}, gin.H{"action": "watch_list"}))
}

func (s *Server) handleTestScorer(c *gin.Context) {
	var req testScorerRequest
	if !s.bind(c, &req) {
		return
	}
	start := time.Now()
	scorer, err := s.registry.Get(req.ScorerName)
	if err != nil {
		s.writeError(c, err, "scorer_testing", nil)
		return
	}
	result, err := scorer.Score(req.Workspace, req.Params)
	if err != nil {
		s.writeError(c, err, "scorer_testing", gin.H{"workspace": req.Workspace})
		return
	}
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"scorer_name":  req.ScorerName,
		"scorer_class": s.registry.List()[req.ScorerName],
		"workspace":    req.Workspace,
		"result":       result,
	}, gin.H{
		"action":         "test_scorer",
		"execution_time": time.Since(start).Seconds(),
		"scorer_used":    req.ScorerName,
	}))
}

func (s *Server) handleRun(c *gin.Context) {
	var req pipelineRequest
	if !s.bind(c, &req) {
		return
	}
	start := time.Now()
	status, err := s.runner.RunOnly(c.Request.Context(), req.Workspace, req.Backend)
	if err != nil {
		s.writeError(c, err, "execution", gin.H{
			"logs_path": containerLogPath(req.Workspace),
			"workspace": req.Workspace,
		})
		return
	}
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"run_result": status,
		"workspace":  req.Workspace,
	}, gin.H{
		"action":         "run_only",
		"execution_time": time.Since(start).Seconds(),
		"backend_used":   orAuto(req.Backend),
	}))
}

func (s *Server) handleScore(c *gin.Context) {
	var req pipelineRequest
	if !s.bind(c, &req) {
		return
	}
	start := time.Now()
	result, out, err := s.runner.ScoreOnly(req.Workspace, req.Params, req.Scorer)
	if err != nil {
		s.writeError(c, err, "scoring", gin.H{"workspace": req.Workspace})
		return
	}
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"score_result": result,
		"output_path":  out,
		"workspace":    req.Workspace,
	}, gin.H{
		"action":         "score_only",
		"execution_time": time.Since(start).Seconds(),
		"scorer_used":    orAuto(req.Scorer),
	}))
}

func (s *Server) handlePipeline(c *gin.Context) {
	var req pipelineRequest
	if !s.bind(c, &req) {
		return
	}
	start := time.Now()
	outcome := s.runner.RunAndScore(c.Request.Context(), req.Workspace, req.Params, req.Backend, req.Scorer)
	if !outcome.OK {
		code, message, stage, details := outcomeError(outcome)
		details["workspace"] = req.Workspace
		if stage == "run" {
			details["logs_path"] = containerLogPath(req.Workspace)
		}
		status := http.StatusBadRequest
		if errors.IsNotFound(code) {
			status = http.StatusNotFound
		}
		c.JSON(status, schemas.Failure(code, message, stage, details))
		return
	}
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"pipeline_result": outcome,
		"workspace":       req.Workspace,
	}, gin.H{
		"action":         "pipeline",
		"execution_time": time.Since(start).Seconds(),
		"backend_used":   orAuto(req.Backend),
		"scorer_used":    orAuto(req.Scorer),
	}))
}

func (s *Server) handleGetResult(c *gin.Context) {
	ws := c.Query("workspace")
	out := filepath.Join(ws, "output", "result.json")
	raw, err := os.ReadFile(out)
	if err != nil {
		c.JSON(http.StatusNotFound,
			schemas.Failure("RESULT_NOT_FOUND", "result.json not found", "score",
				map[string]any{"path": out}))
		return
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.JSON(http.StatusInternalServerError,
			schemas.Failure("READ_RESULT_ERROR", err.Error(), "score",
				map[string]any{"path": out}))
		return
	}
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"result": doc,
		"path":   out,
	}, gin.H{"action": "get_result"}))
}

func (s *Server) handleGetLogs(c *gin.Context) {
	ws := c.Query("workspace")
	logf := containerLogPath(ws)
	content, err := os.ReadFile(logf)
	if err != nil {
		c.JSON(http.StatusNotFound,
			schemas.Failure("LOG_NOT_FOUND", "container.log not found", "run",
				map[string]any{"path": logf}))
		return
	}
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"path":    logf,
		"content": string(content),
	}, gin.H{"action": "get_logs"}))
}

func (s *Server) handleSubmit(c *gin.Context) {
	if s.submitter == nil {
		c.JSON(http.StatusServiceUnavailable,
			schemas.Failure("BROKER_UNAVAILABLE", "async submission is not configured", "api", nil))
		return
	}
	var req submitRequest
	if !s.bind(c, &req) {
		return
	}
	action := strings.ToLower(req.Action)
	var name string
	switch action {
	case "run":
		name = tasks.TaskRunJob
	case "score":
		name = tasks.TaskScoreJob
	case "", "pipeline":
		action = "pipeline"
		name = tasks.TaskRunAndScoreJob
	default:
		c.JSON(http.StatusBadRequest,
			schemas.Failure("BAD_REQUEST", fmt.Sprintf("unknown action: %s", req.Action), "api", nil))
		return
	}
	res, err := s.submitter.Submit(c.Request.Context(), tasks.SubmitRequest{
		Name:        name,
		Workspace:   req.Workspace,
		Params:      req.Params,
		Backend:     req.Backend,
		Scorer:      req.Scorer,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		s.writeError(c, err, "api", gin.H{"workspace": req.Workspace})
		return
	}
	if res.Deduped {
		c.JSON(http.StatusOK, schemas.Success(gin.H{
			"submitted": false,
			"running":   true,
			"task_id":   res.TaskID,
			"action":    action,
			"workspace": req.Workspace,
		}, gin.H{"action": "submit_dedup"}))
		return
	}
	c.JSON(http.StatusOK, schemas.Success(gin.H{
		"submitted": true,
		"task_id":   res.TaskID,
		"action":    action,
		"workspace": req.Workspace,
	}, gin.H{"action": "submit"}))
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	if s.submitter == nil {
		c.JSON(http.StatusServiceUnavailable,
			schemas.Failure("BROKER_UNAVAILABLE", "async submission is not configured", "api", nil))
		return
	}
	taskID := c.Param("task_id")
	task, err := s.submitter.Status(c.Request.Context(), taskID)
	if err != nil {
		s.writeError(c, err, "api", nil)
		return
	}
	resp := gin.H{"id": taskID, "state": "PENDING"}
	if task != nil {
		if task.State != "" {
			resp["state"] = task.State
		}
		if task.Result != nil {
			resp["result"] = task.Result
		}
		if task.Error != nil {
			resp["error"] = task.Error
		}
	}
	c.JSON(http.StatusOK, schemas.Success(resp, gin.H{"action": "task_status"}))
}

// bind decodes the JSON body and writes a 400 envelope on failure.
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest,
			schemas.Failure("BAD_REQUEST", err.Error(), "api", nil))
		return false
	}
	return true
}

// writeError renders a typed error with its code and details, or a 500
// UNHANDLED_ERROR envelope for untyped failures. Extra details override
// nothing, they fill in request context like workspace and log paths.
func (s *Server) writeError(c *gin.Context, err error, stage string, extra gin.H) {
	typed, ok := errors.AsError(err)
	if !ok {
		details := map[string]any{}
		for k, v := range extra {
			details[k] = v
		}
		c.JSON(http.StatusInternalServerError,
			schemas.Failure(errors.CodeUnhandledError, err.Error(), stage, details))
		return
	}
	details := map[string]any{}
	for k, v := range typed.Details {
		details[k] = v
	}
	for k, v := range extra {
		if _, exists := details[k]; !exists {
			details[k] = v
		}
	}
	if typed.Stage != "" {
		stage = typed.Stage
	}
	c.JSON(statusForError(typed), schemas.Failure(typed.Code, typed.Message, stage, details))
}

func outcomeError(outcome *pipeline.Outcome) (code, message, stage string, details map[string]any) {
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
	return code, outcome.Message, stage, details
}

func containerLogPath(ws string) string {
	abs, err := filepath.Abs(filepath.Join(ws, "logs", "container.log"))
	if err != nil {
		return filepath.Join(ws, "logs", "container.log")
	}
	return abs
}

func orAuto(v string) string {
	if v == "" {
		return "auto"
	}
	return v
}

func taskStoreOrNil() (*taskstore.Store, error) {
	return taskstore.OpenDefault()
}
