/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package taskstore

import (
	"database/sql"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"k8s.io/klog/v2"
	_ "modernc.org/sqlite"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/config"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/utils/timeutil"
)

// Task states mirrored from the async layer.
const (
	StateSubmitted = "SUBMITTED"
	StateStarted   = "STARTED"
	StateSuccess   = "SUCCESS"
	StateFailure   = "FAILURE"
	StateRevoked   = "REVOKED"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id TEXT PRIMARY KEY,
	action TEXT,
	workspace TEXT,
	state TEXT,
	result_json TEXT,
	error_json TEXT,
	created_at TEXT,
	updated_at TEXT,
	finished_at TEXT
)`

// Task is a persisted task record with decoded JSON payloads.
type Task struct {
	TaskID     string         `json:"task_id"`
	Action     string         `json:"action"`
	Workspace  string         `json:"workspace"`
	State      string         `json:"state"`
	Result     map[string]any `json:"result,omitempty"`
	Error      map[string]any `json:"error,omitempty"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
}

type taskRow struct {
	TaskID     string         `db:"task_id"`
	Action     sql.NullString `db:"action"`
	Workspace  sql.NullString `db:"workspace"`
	State      sql.NullString `db:"state"`
	ResultJSON sql.NullString `db:"result_json"`
	ErrorJSON  sql.NullString `db:"error_json"`
	CreatedAt  sql.NullString `db:"created_at"`
	UpdatedAt  sql.NullString `db:"updated_at"`
	FinishedAt sql.NullString `db:"finished_at"`
}

// Update describes the fields to change in an upsert. Nil pointers leave
// the stored value untouched.
type Update struct {
	Action    *string
	Workspace *string
	State     *string
	Result    map[string]any
	Error     map[string]any
	Finished  bool
}

// Store persists task state in a local SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open creates (if needed) and opens the task database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := "file:" + path + "?" + url.Values{
		"_pragma": []string{"journal_mode(WAL)", "synchronous(NORMAL)", "busy_timeout(10000)"},
	}.Encode()
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenDefault opens the store at the configured TASK_DB_PATH.
func OpenDefault() (*Store, error) {
	return Open(config.GetTaskDBPath())
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts the task when absent, otherwise updates only the fields
// the update carries. updated_at always advances; finished stamps
// finished_at.
func (s *Store) Upsert(taskID string, update Update) error {
	now := timeutil.NowISO8601()
	resultJSON, err := encodeJSON(update.Result)
	if err != nil {
		return err
	}
	errorJSON, err := encodeJSON(update.Error)
	if err != nil {
		return err
	}

	var exists string
	err = s.db.Get(&exists, "SELECT task_id FROM tasks WHERE task_id = ?", taskID)
	if err == sql.ErrNoRows {
		var finishedAt any
		if update.Finished {
			finishedAt = now
		}
		query, args, err := sq.Insert("tasks").
			Columns("task_id", "action", "workspace", "state",
				"result_json", "error_json", "created_at", "updated_at", "finished_at").
			Values(taskID, deref(update.Action), deref(update.Workspace), deref(update.State),
				resultJSON, errorJSON, now, now, finishedAt).
			ToSql()
		if err != nil {
			return err
		}
		_, err = s.db.Exec(query, args...)
		return err
	}
	if err != nil {
		return err
	}

	builder := sq.Update("tasks").Where(sq.Eq{"task_id": taskID})
	if update.Action != nil {
		builder = builder.Set("action", *update.Action)
	}
	if update.Workspace != nil {
		builder = builder.Set("workspace", *update.Workspace)
	}
	if update.State != nil {
		builder = builder.Set("state", *update.State)
	}
	if update.Result != nil {
		builder = builder.Set("result_json", resultJSON)
	}
	if update.Error != nil {
		builder = builder.Set("error_json", errorJSON)
	}
	if update.Finished {
		builder = builder.Set("finished_at", now)
	}
	builder = builder.Set("updated_at", now)

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(query, args...)
	return err
}

// Get returns the task, or nil when unknown.
func (s *Store) Get(taskID string) (*Task, error) {
	query, args, err := sq.Select("task_id", "action", "workspace", "state",
		"result_json", "error_json", "created_at", "updated_at", "finished_at").
		From("tasks").Where(sq.Eq{"task_id": taskID}).ToSql()
	if err != nil {
		return nil, err
	}
	var row taskRow
	if err := s.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	task := &Task{
		TaskID:     row.TaskID,
		Action:     row.Action.String,
		Workspace:  row.Workspace.String,
		State:      row.State.String,
		CreatedAt:  row.CreatedAt.String,
		UpdatedAt:  row.UpdatedAt.String,
		FinishedAt: row.FinishedAt.String,
	}
	if row.ResultJSON.Valid && row.ResultJSON.String != "" {
		if err := json.Unmarshal([]byte(row.ResultJSON.String), &task.Result); err != nil {
			klog.ErrorS(err, "corrupt result_json", "task", taskID)
		}
	}
	if row.ErrorJSON.Valid && row.ErrorJSON.String != "" {
		if err := json.Unmarshal([]byte(row.ErrorJSON.String), &task.Error); err != nil {
			klog.ErrorS(err, "corrupt error_json", "task", taskID)
		}
	}
	return task, nil
}

// ActiveTaskForWorkspace returns the id of an unfinished task holding the
// workspace, if any. Submission uses it as an advisory lease so the same
// workspace is not scored twice concurrently.
func (s *Store) ActiveTaskForWorkspace(workspace string) (string, error) {
	query, args, err := sq.Select("task_id").From("tasks").
		Where(sq.Eq{"workspace": workspace}).
		Where(sq.Eq{"state": []string{StateSubmitted, StateStarted}}).
		OrderBy("created_at DESC").Limit(1).ToSql()
	if err != nil {
		return "", err
	}
	var taskID string
	if err := s.db.Get(&taskID, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return taskID, nil
}

func encodeJSON(v map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
