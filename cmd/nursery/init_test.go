// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daneel-ai/nursery/internal/config"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

func TestInitCommand_WritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nursery.yaml")

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"init", "--path", path})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Wrote default config to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigYAML, data)
}

func TestInitCommand_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "nursery.yaml")

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"init", "--path", path})

	require.NoError(t, root.Execute())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestInitCommand_RefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nursery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("identity:\n  name: Sarah\n"), 0o600))

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"init", "--path", path})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, nurseryerr.HasCode(err, nurseryerr.CodeConfigAlreadyExists),
		"expected already-exists code, got: %v", err)
	assert.Contains(t, err.Error(), "--force to overwrite")

	// The edited file must be untouched.
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "Sarah")
}

func TestInitCommand_ForceOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nursery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stale: true\n"), 0o600))

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"init", "--path", path, "--force"})

	require.NoError(t, root.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigYAML, data)
}

func TestInitCommand_WrittenConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nursery.yaml")

	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetArgs([]string{"init", "--path", path})
	require.NoError(t, root.Execute())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Timmy", cfg.Identity.Name)
}
