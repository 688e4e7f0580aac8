// Package testutils holds fixtures shared by tests that need a loam repository.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// BoardSeed is a Markdown seed document declaring a schema in its frontmatter.
const BoardSeed = `---
id: board
description: Task board
schema: "{title:text,tags:list<string>,meta:map{done:bool}}"
---
title: !text hello
tags: !list [a, b]
meta: !map
  done: false
`

// SetupTestRepo creates a temporary directory and initializes a Loam repository in it.
// It returns the absolute path to the temp dir and the initialized repository.
// It fails the test immediately on error.
func SetupTestRepo(t *testing.T, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	absPath, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	repo, err := loam.Init(absPath, opts...)
	require.NoError(t, err, "Failed to init loam repo")

	return absPath, repo
}

// WriteSeeds writes each name/content pair under dir and returns dir.
func WriteSeeds(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "Failed to write %s", name)
	}
	return dir
}

// SetupSeedRepo is SetupTestRepo followed by WriteSeeds.
func SetupSeedRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir, _ := SetupTestRepo(t)
	return WriteSeeds(t, dir, files)
}
