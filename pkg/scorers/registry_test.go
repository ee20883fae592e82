/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autoerrors "github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
)

type fakeScorer struct{}

func (s *fakeScorer) Score(string, map[string]any) (*schemas.Result, error) {
	return schemas.NewResult(), nil
}

type stubLoader struct {
	entries map[string]Factory
	err     error
	calls   int
}

func (l *stubLoader) Load(string) (map[string]Factory, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.entries, nil
}

func (l *stubLoader) Pattern() string { return "*.so" }

func newFakeFactory() Factory {
	return func() Scorer { return &fakeScorer{} }
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry(&stubLoader{})
	require.NoError(t, r.Register("demo", newFakeFactory()))

	assert.True(t, r.Has("demo"))
	scorer, err := r.Get("demo")
	require.NoError(t, err)
	assert.IsType(t, &fakeScorer{}, scorer)

	// Replacement is allowed.
	require.NoError(t, r.Register("demo", newFakeFactory()))
	assert.Equal(t, []string{"demo"}, r.Names())
}

func TestResolveNotFound(t *testing.T) {
	r := NewRegistry(&stubLoader{})
	require.NoError(t, r.Register("demo", newFakeFactory()))

	_, err := r.Get("missing")
	require.Error(t, err)
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeScorerNotFound, typed.Code)
	assert.Equal(t, "missing", typed.Details["requested_scorer"])
	assert.Equal(t, []string{"demo"}, typed.Details["available_scorers"])
}

func TestListReportsTypeNames(t *testing.T) {
	r := NewRegistry(&stubLoader{})
	require.NoError(t, r.Register("demo", newFakeFactory()))
	assert.Equal(t, map[string]string{"demo": "fakeScorer"}, r.List())
}

func TestUnregisterAndClear(t *testing.T) {
	r := NewRegistry(&stubLoader{})
	require.NoError(t, r.Register("demo", newFakeFactory()))

	assert.True(t, r.Unregister("demo"))
	assert.False(t, r.Unregister("demo"))

	require.NoError(t, r.Register("demo", newFakeFactory()))
	r.Clear()
	assert.Empty(t, r.Names())
}

func touchFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scorers.so")
	require.NoError(t, os.WriteFile(path, []byte("plugin"), 0o644))
	return path
}

func TestLoadFromFileMtimeGating(t *testing.T) {
	loader := &stubLoader{entries: map[string]Factory{"plug": newFakeFactory()}}
	r := NewRegistry(loader)
	path := touchFile(t)

	loaded, err := r.LoadFromFile(path, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"plug": "fakeScorer"}, loaded)
	assert.Equal(t, 1, loader.calls)

	// Unchanged file, no force: skipped.
	loaded, err = r.LoadFromFile(path, false)
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.Equal(t, 1, loader.calls)

	// Force always reloads.
	_, err = r.Reload(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)

	// Newer mtime reloads without force.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	_, err = r.LoadFromFile(path, false)
	require.NoError(t, err)
	assert.Equal(t, 3, loader.calls)
}

func TestLoadFromFileMissing(t *testing.T) {
	r := NewRegistry(&stubLoader{})
	_, err := r.LoadFromFile(filepath.Join(t.TempDir(), "nope.so"), false)
	typed, ok := autoerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, autoerrors.CodeMissingFile, typed.Code)
}

func TestLoadFailureKeepsRegistry(t *testing.T) {
	loader := &stubLoader{err: autoerrors.New(autoerrors.CodeParseError, "broken plugin")}
	r := NewRegistry(loader)
	require.NoError(t, r.Register("stable", newFakeFactory()))

	_, err := r.LoadFromFile(touchFile(t), false)
	require.Error(t, err)
	assert.True(t, r.Has("stable"))
	assert.Equal(t, []string{"stable"}, r.Names())
}

func TestLoadFromDirectory(t *testing.T) {
	loader := &stubLoader{entries: map[string]Factory{"plug": newFakeFactory()}}
	r := NewRegistry(loader)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.so"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644))

	loaded, err := r.LoadFromDirectory(dir, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"plug": "fakeScorer"}, loaded)
	assert.Equal(t, 1, loader.calls)
}

func TestWatcherReloadsOnChange(t *testing.T) {
	loader := &stubLoader{entries: map[string]Factory{"plug": newFakeFactory()}}
	r := NewRegistry(loader)
	defer r.StopAll()
	path := touchFile(t)

	require.NoError(t, r.StartWatching(path, 20*time.Millisecond))
	assert.Equal(t, []string{path}, r.WatchedFiles())

	// Let the watcher record the initial mtime first.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, loader.calls)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	assert.Eventually(t, func() bool { return loader.calls >= 1 },
		3*time.Second, 20*time.Millisecond)
}

func TestStopWatching(t *testing.T) {
	r := NewRegistry(&stubLoader{})
	defer r.StopAll()
	path := touchFile(t)

	require.NoError(t, r.StartWatching(path, time.Second))
	assert.True(t, r.StopWatching(path))
	assert.False(t, r.StopWatching(path))
	assert.Empty(t, r.WatchedFiles())
}

func TestBuiltinsRegistered(t *testing.T) {
	for _, name := range []string{
		"classification_f1",
		"classification_accuracy",
		"regression_rmse",
		"detection_map",
		"text_event_analysis",
	} {
		assert.True(t, Default().Has(name), name)
	}
}
