// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package humanizeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseBytes(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int64
		err  bool
	}{
		{in: "0", want: 0},
		{in: "4096", want: 4096},
		{in: "64MiB", want: 64 << 20},
		{in: "1 KB", want: 1000},
		{in: "-2KiB", want: -2048},
		{in: "", err: true},
		{in: "lots", err: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			v, err := ParseBytes(tc.in)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, v)
		})
	}
	require.Equal(t, "64 MiB", IBytes(64<<20))
	require.Equal(t, "-1.0 KiB", IBytes(-1024))
}

func TestBytesYAML(t *testing.T) {
	var cfg struct {
		Size Bytes `yaml:"size"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("size: 16MiB\n"), &cfg))
	require.Equal(t, Bytes(16<<20), cfg.Size)
	require.NoError(t, yaml.Unmarshal([]byte("size: 512\n"), &cfg))
	require.Equal(t, Bytes(512), cfg.Size)
	require.Error(t, yaml.Unmarshal([]byte("size: huge\n"), &cfg))

	out, err := yaml.Marshal(struct {
		Size Bytes `yaml:"size"`
	}{Size: 2 << 30})
	require.NoError(t, err)
	require.Equal(t, "size: 2.0 GiB\n", string(out))
}

func TestBytesValue(t *testing.T) {
	var v int64
	bv := NewBytesValue(&v)
	require.False(t, bv.IsSet())
	require.NoError(t, bv.Set("1GiB"))
	require.True(t, bv.IsSet())
	require.Equal(t, int64(1<<30), v)
	require.Equal(t, "1.0 GiB", bv.String())
	require.Error(t, bv.Set("x"))
}

func TestDuration(t *testing.T) {
	for d, want := range map[time.Duration]string{
		0:                       "0µs",
		123456:                  "123µs",
		12345678:                "12ms",
		12345678912:             "12.3s",
		90 * time.Minute:        "1h30m0s",
		1500 * time.Microsecond: "2ms",
	} {
		require.Equal(t, want, Duration(d), "%d", d)
	}
}
