// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"bytes"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daneel-ai/nursery/internal/secrets"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string // key -> value (service is always "nursery")
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Store(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", nurseryerr.Errorf(nurseryerr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return nurseryerr.Errorf(nurseryerr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func (m *mockSecretStore) List(_ string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// bindMockStore swaps the secret store factory for the test's duration.
func bindMockStore(t *testing.T, mock *mockSecretStore) {
	t.Helper()
	origFactory := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return mock }
	t.Cleanup(func() { secretStoreFactory = origFactory })
}

func TestSecretSet(t *testing.T) {
	mock := newMockSecretStore()
	bindMockStore(t, mock)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader("redis://:hunter2@mind-host:6379\n"))
	cmd.SetArgs([]string{"secret", "set", "stream-url"})

	err := cmd.Execute()
	require.NoError(t, err)

	assert.Equal(t, "redis://:hunter2@mind-host:6379", mock.data["stream-url"])
	assert.Contains(t, buf.String(), "Stored secret: stream-url")
	assert.Contains(t, buf.String(), "keyring://nursery/stream-url")
}

func TestSecretSet_TrimsTrailingNewline(t *testing.T) {
	mock := newMockSecretStore()
	bindMockStore(t, mock)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetIn(strings.NewReader("swordfish\r\n"))
	cmd.SetArgs([]string{"secret", "set", "vector-url"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "swordfish", mock.data["vector-url"])
}

func TestSecretSet_EmptyValueRejected(t *testing.T) {
	mock := newMockSecretStore()
	bindMockStore(t, mock)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetArgs([]string{"secret", "set", "stream-url"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, nurseryerr.HasCode(err, nurseryerr.CodeSecretInvalidInput),
		"expected invalid input code, got: %v", err)
	assert.Empty(t, mock.data)
}

func TestSecretList(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		wantKeys []string // expected keys in output (sorted for comparison)
		wantMsg  string   // exact output for empty case
	}{
		{
			name:    "empty store",
			keys:    nil,
			wantMsg: "No secrets stored.\n",
		},
		{
			name:     "single key",
			keys:     []string{"stream-url"},
			wantKeys: []string{"stream-url"},
		},
		{
			name:     "multiple keys",
			keys:     []string{"stream-url", "vector-url"},
			wantKeys: []string{"stream-url", "vector-url"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bindMockStore(t, newMockSecretStore(tt.keys...))

			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{"secret", "list"})

			err := cmd.Execute()
			require.NoError(t, err)

			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, buf.String())
			} else {
				// Sort output lines for deterministic comparison (map iteration order).
				got := strings.Split(strings.TrimSpace(buf.String()), "\n")
				sort.Strings(got)
				want := append([]string(nil), tt.wantKeys...)
				sort.Strings(want)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestSecretDelete(t *testing.T) {
	tests := []struct {
		name       string
		keys       []string
		deleteKey  string
		wantOutput string
		wantErr    bool
		wantCode   nurseryerr.Code
	}{
		{
			name:       "delete existing key",
			keys:       []string{"stream-url"},
			deleteKey:  "stream-url",
			wantOutput: "Deleted secret: stream-url\n",
		},
		{
			name:      "delete non-existent key",
			keys:      nil,
			deleteKey: "missing-key",
			wantErr:   true,
			wantCode:  nurseryerr.CodeSecretNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bindMockStore(t, newMockSecretStore(tt.keys...))

			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{"secret", "delete", tt.deleteKey})

			err := cmd.Execute()

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, nurseryerr.HasCode(err, tt.wantCode),
					"expected error code %s, got: %v", tt.wantCode, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOutput, buf.String())
			}
		})
	}
}
