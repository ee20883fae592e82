/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package taskstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tasks", "task_results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func strptr(s string) *string { return &s }

func TestUpsertInsertAndGet(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Upsert("task-1", Update{
		Action:    strptr("pipeline"),
		Workspace: strptr("/data/ws1"),
		State:     strptr(StateSubmitted),
	}))

	task, err := store.Get("task-1")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "task-1", task.TaskID)
	assert.Equal(t, "pipeline", task.Action)
	assert.Equal(t, "/data/ws1", task.Workspace)
	assert.Equal(t, StateSubmitted, task.State)
	assert.NotEmpty(t, task.CreatedAt)
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)
	assert.Empty(t, task.FinishedAt)
	assert.Nil(t, task.Result)
	assert.Nil(t, task.Error)
}

func TestUpsertPartialUpdate(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Upsert("task-1", Update{
		Action:    strptr("score"),
		Workspace: strptr("/data/ws1"),
		State:     strptr(StateSubmitted),
	}))
	// Only the state changes; action and workspace must survive.
	require.NoError(t, store.Upsert("task-1", Update{State: strptr(StateStarted)}))

	task, err := store.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, "score", task.Action)
	assert.Equal(t, "/data/ws1", task.Workspace)
	assert.Equal(t, StateStarted, task.State)
	assert.Empty(t, task.FinishedAt)
}

func TestUpsertFinishedWithResult(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Upsert("task-1", Update{
		Action: strptr("score"),
		State:  strptr(StateSubmitted),
	}))
	require.NoError(t, store.Upsert("task-1", Update{
		State:    strptr(StateSuccess),
		Result:   map[string]any{"score": 0.91, "rank": "A"},
		Finished: true,
	}))

	task, err := store.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, task.State)
	assert.NotEmpty(t, task.FinishedAt)
	require.NotNil(t, task.Result)
	assert.InDelta(t, 0.91, task.Result["score"], 1e-9)
	assert.Equal(t, "A", task.Result["rank"])
}

func TestUpsertFailureWithError(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Upsert("task-1", Update{
		State: strptr(StateSubmitted),
	}))
	require.NoError(t, store.Upsert("task-1", Update{
		State:    strptr(StateFailure),
		Error:    map[string]any{"code": "SCORE_ERROR", "message": "boom"},
		Finished: true,
	}))

	task, err := store.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, StateFailure, task.State)
	require.NotNil(t, task.Error)
	assert.Equal(t, "SCORE_ERROR", task.Error["code"])
	assert.Nil(t, task.Result)
}

func TestGetUnknownTask(t *testing.T) {
	store := newTestStore(t)

	task, err := store.Get("no-such-task")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestActiveTaskForWorkspace(t *testing.T) {
	store := newTestStore(t)

	id, err := store.ActiveTaskForWorkspace("/data/ws1")
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, store.Upsert("task-1", Update{
		Workspace: strptr("/data/ws1"),
		State:     strptr(StateSubmitted),
	}))
	id, err = store.ActiveTaskForWorkspace("/data/ws1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)

	// A finished task releases the workspace.
	require.NoError(t, store.Upsert("task-1", Update{
		State:    strptr(StateSuccess),
		Finished: true,
	}))
	id, err = store.ActiveTaskForWorkspace("/data/ws1")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task_results.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert("task-1", Update{State: strptr(StateSubmitted)}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	task, err := reopened.Get("task-1")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, StateSubmitted, task.State)
}
