/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/pipeline"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/scorers"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/tasks"
)

// Runner is the pipeline surface the API drives.
type Runner interface {
	RunOnly(ctx context.Context, ws, backend string) (*pipeline.RunStatus, error)
	ScoreOnly(ws string, params map[string]any, scorerOverride string) (*schemas.Result, string, error)
	RunAndScore(ctx context.Context, ws string, params map[string]any, backend, scorerOverride string) *pipeline.Outcome
}

// Server exposes the scoring service over REST.
type Server struct {
	engine    *gin.Engine
	registry  *scorers.Registry
	runner    Runner
	submitter *tasks.Submitter

	httpServer *http.Server
}

// New assembles the router. The submitter may be nil when the async layer
// is not configured; /submit and /tasks then report the broker as absent.
func New(registry *scorers.Registry, runner Runner, submitter *tasks.Submitter) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:    gin.New(),
		registry:  registry,
		runner:    runner,
		submitter: submitter,
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

// NewDefault wires the server over the default registry and pipeline and a
// broker from configuration. Broker connection failures disable the async
// endpoints but not the server.
func NewDefault() *Server {
	var submitter *tasks.Submitter
	broker, err := tasks.NewBroker(config.GetBrokerURL())
	if err != nil {
		klog.Warningf("async submission disabled: %v", err)
	} else {
		store, err := taskStoreOrNil()
		if err != nil {
			klog.Warningf("task store unavailable: %v", err)
		}
		submitter = tasks.NewSubmitter(broker, store)
	}
	return New(scorers.Default(), pipeline.New(), submitter)
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/healthz", s.handleHealthz)

	s.engine.GET("/scorers", s.handleListScorers)
	s.engine.POST("/scorers/load", s.handleLoadScorer)
	s.engine.POST("/scorers/reload", s.handleReloadScorer)
	s.engine.POST("/scorers/watch", s.handleStartWatch)
	s.engine.DELETE("/scorers/watch", s.handleStopWatch)
	s.engine.GET("/scorers/watch", s.handleWatchedFiles)
	s.engine.POST("/scorers/test", s.handleTestScorer)

	s.engine.POST("/run", s.handleRun)
	s.engine.POST("/score", s.handleScore)
	s.engine.POST("/pipeline", s.handlePipeline)
	s.engine.GET("/result", s.handleGetResult)
	s.engine.GET("/logs", s.handleGetLogs)

	s.engine.POST("/submit", s.handleSubmit)
	s.engine.GET("/tasks/:task_id", s.handleTaskStatus)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound,
			schemas.Failure("NOT_FOUND", fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path), "api", nil))
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", config.GetServerPort())
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("API server listening on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop drains in-flight requests with a 10 second grace period.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	klog.Infof("shutting down API server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		klog.Infof("%s %s %d %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}

// statusForError maps typed errors to HTTP status codes: not-found codes
// yield 404, other typed errors 400.
func statusForError(err *errors.Error) int {
	if errors.IsNotFound(err.Code) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
