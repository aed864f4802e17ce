// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daneel-ai/nursery/internal/secrets"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

func TestIsKeyringURI(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"valid URI", "keyring://nursery/stream-url", true},
		{"valid URI with dashes", "keyring://my-svc/my-key", true},
		{"env var reference", "${NURSERY_STREAM_URL}", false},
		{"literal value", "redis://localhost:6379", false},
		{"empty string", "", false},
		{"just scheme", "keyring://", true},
		{"other scheme", "vault://secret/key", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := secrets.IsKeyringURI(tt.value)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeyringURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		wantService string
		wantKey     string
		wantErr     bool
	}{
		{"valid", "keyring://nursery/stream-url", "nursery", "stream-url", false},
		{"dashes", "keyring://my-service/my-key-name", "my-service", "my-key-name", false},
		{"slashes in key", "keyring://nursery/path/to/key", "nursery", "path/to/key", false},
		{"not a keyring URI", "vault://secret/key", "", "", true},
		{"missing key", "keyring://nursery/", "", "", true},
		{"missing service", "keyring:///key", "", "", true},
		{"missing both", "keyring://", "", "", true},
		{"no path", "keyring://nursery", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, key, err := secrets.ParseKeyringURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, nurseryerr.HasCode(err, nurseryerr.CodeSecretInvalidInput))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantService, svc)
				assert.Equal(t, tt.wantKey, key)
			}
		})
	}
}

func TestResolveKeyringURI(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("nursery", "test-key", "redis://:resolved@host:6379"))

	t.Run("resolves keyring URI", func(t *testing.T) {
		val, err := secrets.ResolveKeyringURI(ks, "keyring://nursery/test-key")
		require.NoError(t, err)
		assert.Equal(t, "redis://:resolved@host:6379", val)
	})

	t.Run("passes through non-keyring values", func(t *testing.T) {
		val, err := secrets.ResolveKeyringURI(ks, "redis://localhost:6379")
		require.NoError(t, err)
		assert.Equal(t, "redis://localhost:6379", val)
	})

	t.Run("passes through env var references", func(t *testing.T) {
		val, err := secrets.ResolveKeyringURI(ks, "${ENV_VAR}")
		require.NoError(t, err)
		assert.Equal(t, "${ENV_VAR}", val)
	})

	t.Run("error on missing secret", func(t *testing.T) {
		_, err := secrets.ResolveKeyringURI(ks, "keyring://nursery/nonexistent")
		require.Error(t, err)
		assert.True(t, nurseryerr.HasCode(err, nurseryerr.CodeSecretResolveFailure))
		assert.Contains(t, err.Error(), "resolving keyring URI")
	})

	t.Run("error on malformed URI", func(t *testing.T) {
		_, err := secrets.ResolveKeyringURI(ks, "keyring://bad")
		require.Error(t, err)
	})
}
