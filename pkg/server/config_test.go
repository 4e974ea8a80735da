// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metacat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: 0.0.0.0:9000
store:
  dir: /var/lib/metacat
  lock_timeout: 2s
region:
  start: acme/a
  end: acme/m
cache:
  max_bytes: 128MiB
log:
  level: warning
  format: json
  verbosity: 2
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	require.Equal(t, "/var/lib/metacat", cfg.Store.Dir)
	require.Equal(t, 2*time.Second, cfg.Store.LockTimeout)
	require.EqualValues(t, 128<<20, cfg.Cache.MaxBytes)
	require.Equal(t, "json", cfg.Log.Format)
	require.EqualValues(t, 2, cfg.Log.Verbosity)
	// Unset fields keep their defaults.
	require.Equal(t, MakeConfig().SlowOperationThreshold, cfg.SlowOperationThreshold)

	start, end := cfg.Region.Bounds()
	require.Equal(t, []byte("acme\x00a"), start)
	require.Equal(t, []byte("acme\x00m"), end)
	k := catalogkeys.MakeKey([]byte("acme"), "b", "t")
	require.True(t, string(start) <= string(k) && string(k) < string(end))

	require.Contains(t, cfg.String(), "128 MiB")
	require.Contains(t, cfg.String(), "/var/lib/metacat")
}

func TestConfigErrors(t *testing.T) {
	for _, tc := range []struct {
		name, yaml, err string
	}{
		{"unknown field", "listen: x", "field listen not found"},
		{"bad size", "cache: {max_bytes: lots}", "parsing size"},
		{"negative size", "cache: {max_bytes: -1MiB}", "negative cache size"},
		{"no address", "listen_addr: ''", "listen address required"},
		{"no dir", "store: {dir: ''}", "store directory required"},
		{"empty region", "region: {start: b, end: a}", "empty region"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := MakeConfig()
			require.ErrorContains(t, cfg.Unmarshal([]byte(tc.yaml)), tc.err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "reading configuration")
}

func TestInMemoryConfig(t *testing.T) {
	cfg := MakeConfig()
	require.NoError(t, cfg.Unmarshal([]byte("store: {in_memory: true, dir: ''}")))
	require.Contains(t, cfg.String(), "in-memory")
}
