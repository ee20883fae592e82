/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pred.csv")
	content := []byte("id,label\n1,A\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	info := FileInfo(path)
	assert.Equal(t, path, info.Path)
	assert.Equal(t, int64(len(content)), info.Size)
	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), info.SHA256)
}

func TestFileInfoMissing(t *testing.T) {
	info := FileInfo(filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, "", info.Path)
	assert.Equal(t, int64(0), info.Size)
}

func TestCollectDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "residuals.csv"), []byte("id\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{0}, 0o644))

	items := CollectDir(dir)
	assert.Len(t, items, 2)
	assert.Contains(t, items, "summary.json")
	assert.Contains(t, items, "residuals.csv")
}

func TestCollectDirMissing(t *testing.T) {
	items := CollectDir(filepath.Join(t.TempDir(), "absent"))
	assert.Empty(t, items)
}
