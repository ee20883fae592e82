/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scorers

import (
	"plugin"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/errors"
)

// Loader turns an on-disk scorer artifact into registrable factories. A
// Load failure must not return partial entries.
type Loader interface {
	Load(path string) (map[string]Factory, error)
	// Pattern is the default file glob for directory scans.
	Pattern() string
}

// PluginLoader loads Go plugins that export a package-level variable
//
//	var Scorers = map[string]scorers.Factory{...}
//
// under the symbol name "Scorers".
type PluginLoader struct{}

// NewPluginLoader returns the plugin-based loader used by the default
// registry.
func NewPluginLoader() *PluginLoader {
	return &PluginLoader{}
}

func (l *PluginLoader) Pattern() string {
	return "*.so"
}

func (l *PluginLoader) Load(path string) (map[string]Factory, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, errors.Newf(errors.CodeParseError, "failed to open plugin %s: %v", path, err)
	}
	sym, err := p.Lookup("Scorers")
	if err != nil {
		return nil, errors.Newf(errors.CodeBadFormat, "plugin %s does not export Scorers: %v", path, err)
	}
	switch entries := sym.(type) {
	case map[string]Factory:
		return validEntries(path, entries)
	case *map[string]Factory:
		return validEntries(path, *entries)
	default:
		return nil, errors.Newf(errors.CodeBadFormat,
			"plugin %s exports Scorers with unexpected type %T", path, sym)
	}
}

func validEntries(path string, entries map[string]Factory) (map[string]Factory, error) {
	if len(entries) == 0 {
		return nil, errors.Newf(errors.CodeBadFormat, "plugin %s declares no scorers", path)
	}
	for name, factory := range entries {
		if name == "" || factory == nil {
			return nil, errors.Newf(errors.CodeBadFormat,
				"plugin %s declares an invalid scorer entry", path)
		}
	}
	return entries, nil
}
