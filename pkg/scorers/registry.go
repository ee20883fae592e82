/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
)

// Registry is the process-wide mapping from scorer name to factory.
// Concurrent readers during scoring see a consistent factory; writers
// (registration, reload) serialize. A failed load never partially mutates
// the registry.
type Registry struct {
	mu          sync.RWMutex
	scorers     map[string]Factory
	loadedFiles map[string]time.Time

	loader Loader

	watchMu     sync.Mutex
	cron        *cron.Cron
	watchers    map[string]cron.EntryID
	watchMtimes map[string]time.Time
}

// NewRegistry creates an empty registry backed by the given loader.
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		scorers:     map[string]Factory{},
		loadedFiles: map[string]time.Time{},
		loader:      loader,
		watchers:    map[string]cron.EntryID{},
		watchMtimes: map[string]time.Time{},
	}
}

// Register adds or replaces a scorer factory. Replacement is allowed and
// logged.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return errors.New(errors.CodeBadFormat, "scorer name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.scorers[name]
	r.scorers[name] = factory
	if replaced {
		klog.Infof("replaced existing scorer: %s", name)
	} else {
		klog.Infof("registered scorer: %s", name)
	}
	return nil
}

// Resolve returns the factory registered under name. This is the single
// resolution path; Get instantiates through it.
func (r *Registry) Resolve(name string) (Factory, error) {
	r.mu.RLock()
	factory, ok := r.scorers[name]
	r.mu.RUnlock()
	if !ok {
		available := r.Names()
		return nil, errors.Newf(errors.CodeScorerNotFound,
			"scorer '%s' not found. Available scorers: %v", name, available).
			WithDetails(map[string]any{
				"requested_scorer":  name,
				"available_scorers": available,
			})
	}
	return factory, nil
}

// Get returns a fresh scorer instance for name.
func (r *Registry) Get(name string) (Scorer, error) {
	factory, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return factory(), nil
}

// Has reports whether name is registered, without instantiating.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.scorers[name]
	return ok
}

// Names returns the sorted registered scorer names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scorers))
	for name := range r.scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns a snapshot of name to implementing type name.
func (r *Registry) List() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]string, len(r.scorers))
	for name, factory := range r.scorers {
		result[name] = typeName(factory())
	}
	return result
}

// Unregister removes a scorer. It reports whether the name was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scorers[name]; !ok {
		return false
	}
	delete(r.scorers, name)
	klog.Infof("unregistered scorer: %s", name)
	return true
}

// Clear removes all scorers.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scorers = map[string]Factory{}
	klog.Infof("cleared all scorers")
}

// LoadFromFile loads the scorer artifact at path and registers every entry
// it declares. When force is false and the recorded mtime is at least the
// on-disk mtime, the load is skipped. A loader failure leaves prior entries
// intact.
func (r *Registry) LoadFromFile(path string, force bool) (map[string]string, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, errors.Newf(errors.CodeMissingFile, "scorer file not found: %s", path)
	}

	r.mu.RLock()
	recorded, seen := r.loadedFiles[path]
	r.mu.RUnlock()
	if !force && seen && !recorded.Before(stat.ModTime()) {
		klog.V(4).Infof("scorer file %s already loaded and not modified", path)
		return map[string]string{}, nil
	}

	entries, err := r.loader.Load(path)
	if err != nil {
		return nil, err
	}

	loaded := map[string]string{}
	r.mu.Lock()
	for name, factory := range entries {
		_, replaced := r.scorers[name]
		r.scorers[name] = factory
		loaded[name] = typeName(factory())
		if replaced {
			klog.Infof("replaced scorer from %s: %s", path, name)
		} else {
			klog.Infof("registered scorer from %s: %s", path, name)
		}
	}
	r.loadedFiles[path] = stat.ModTime()
	r.mu.Unlock()
	return loaded, nil
}

// LoadFromDirectory applies LoadFromFile to every file in dir matching
// pattern. Failures on individual files are logged and skipped.
func (r *Registry) LoadFromDirectory(dir, pattern string) (map[string]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, errors.Newf(errors.CodeMissingFile, "directory not found: %s", dir)
	}
	if pattern == "" {
		pattern = r.loader.Pattern()
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.New(errors.CodeBadFormat, err.Error())
	}
	loaded := map[string]string{}
	for _, path := range matches {
		entries, err := r.LoadFromFile(path, false)
		if err != nil {
			klog.ErrorS(err, "failed to load scorer file", "path", path)
			continue
		}
		for name, class := range entries {
			loaded[name] = class
		}
	}
	return loaded, nil
}

// Reload force-loads the given file.
func (r *Registry) Reload(path string) (map[string]string, error) {
	return r.LoadFromFile(path, true)
}

// StartWatching polls path every interval and reloads on mtime change. The
// first observation records the mtime without reloading.
func (r *Registry) StartWatching(path string, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if _, ok := r.watchers[path]; ok {
		klog.Warningf("already watching file: %s", path)
		return nil
	}
	if r.cron == nil {
		r.cron = cron.New()
		r.cron.Start()
	}
	id, err := r.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		r.checkWatched(path)
	})
	if err != nil {
		return err
	}
	r.watchers[path] = id
	klog.Infof("started watching file: %s", path)
	return nil
}

func (r *Registry) checkWatched(path string) {
	stat, err := os.Stat(path)
	if err != nil {
		return
	}
	r.watchMu.Lock()
	last, seen := r.watchMtimes[path]
	if _, watching := r.watchers[path]; !watching {
		r.watchMu.Unlock()
		return
	}
	r.watchMtimes[path] = stat.ModTime()
	r.watchMu.Unlock()

	if seen && stat.ModTime().After(last) {
		klog.Infof("file changed, reloading: %s", path)
		if _, err := r.Reload(path); err != nil {
			klog.ErrorS(err, "failed to reload scorer file", "path", path)
		}
	}
}

// StopWatching stops the watcher for path. It reports whether the path was
// being watched.
func (r *Registry) StopWatching(path string) bool {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	id, ok := r.watchers[path]
	if !ok {
		return false
	}
	r.cron.Remove(id)
	delete(r.watchers, path)
	delete(r.watchMtimes, path)
	klog.Infof("stopped watching file: %s", path)
	return true
}

// StopAll terminates the watching subsystem.
func (r *Registry) StopAll() {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if r.cron != nil {
		r.cron.Stop()
		r.cron = nil
	}
	r.watchers = map[string]cron.EntryID{}
	r.watchMtimes = map[string]time.Time{}
	klog.Infof("stopped all file watching")
}

// WatchedFiles returns the sorted list of watched paths.
func (r *Registry) WatchedFiles() []string {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	files := make([]string, 0, len(r.watchers))
	for path := range r.watchers {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

func typeName(s Scorer) string {
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

var defaultRegistry = NewRegistry(NewPluginLoader())

// Default returns the process-wide registry used by the pipeline and API.
func Default() *Registry {
	return defaultRegistry
}
