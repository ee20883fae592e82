/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/autoscorer/pkg/schemas"
)

// DefaultArtifactPatterns are the file globs collected from output/artifacts.
var DefaultArtifactPatterns = []string{"*.json", "*.csv", "*.txt", "*.png", "*.svg"}

// FileInfo computes path, size and SHA-256 for a file. A missing file
// yields a zero-value ArtifactInfo.
func FileInfo(path string) schemas.ArtifactInfo {
	stat, err := os.Stat(path)
	if err != nil {
		return schemas.ArtifactInfo{}
	}
	f, err := os.Open(path)
	if err != nil {
		klog.ErrorS(err, "failed to open artifact", "path", path)
		return schemas.ArtifactInfo{}
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		klog.ErrorS(err, "failed to hash artifact", "path", path)
		return schemas.ArtifactInfo{}
	}
	return schemas.ArtifactInfo{
		Path:   path,
		Size:   stat.Size(),
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}
}

// CollectDir walks dir recursively and returns artifact info for every file
// matching one of the patterns, keyed by base name. A missing directory
// yields an empty map.
func CollectDir(dir string, patterns ...string) map[string]schemas.ArtifactInfo {
	if len(patterns) == 0 {
		patterns = DefaultArtifactPatterns
	}
	result := map[string]schemas.ArtifactInfo{}
	if _, err := os.Stat(dir); err != nil {
		return result
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, d.Name()); ok {
				result[d.Name()] = FileInfo(path)
				break
			}
		}
		return nil
	})
	return result
}
