// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package server

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/catalog/metacache"
	"github.com/cockroachdb/metacat/pkg/catalog/metadata"
	"github.com/cockroachdb/metacat/pkg/storage"
	"github.com/cockroachdb/metacat/pkg/util/humanizeutil"
	"github.com/cockroachdb/metacat/pkg/util/log"
	"gopkg.in/yaml.v3"
)

// DefaultListenAddr is the address the server listens on by default.
const DefaultListenAddr = "localhost:26280"

// StoreConfig selects the engine holding the catalog.
type StoreConfig struct {
	// Dir is the directory of the pebble store. Ignored if InMemory is set.
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
	// LockTimeout bounds the wait for a row lock.
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// RegionConfig bounds the part of the catalog served. Bounds are written as
// catalog key prefixes with '/' standing for the key separator, e.g.
// "acme/sales" for the sales schema of tenant acme or "/s" for schema s of
// the default tenant. An empty End is unbounded.
type RegionConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Bounds returns the encoded key bounds of the region.
func (r RegionConfig) Bounds() (start, end []byte) {
	enc := func(s string) []byte {
		if s == "" {
			return nil
		}
		return []byte(strings.ReplaceAll(s, "/", string([]byte{catalogkeys.Separator})))
	}
	return enc(r.Start), enc(r.End)
}

// Config holds the parameters needed to set up a server.
type Config struct {
	ListenAddr string           `yaml:"listen_addr"`
	Store      StoreConfig      `yaml:"store"`
	Region     RegionConfig     `yaml:"region"`
	Cache      metacache.Config `yaml:"cache"`
	// SlowOperationThreshold is the latency above which catalog operations
	// are logged.
	SlowOperationThreshold time.Duration `yaml:"slow_operation_threshold"`
	// ShutdownTimeout bounds the wait for in-flight requests in Stop.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Log             log.Config    `yaml:"log"`
}

// MakeConfig returns a Config with default values.
func MakeConfig() Config {
	return Config{
		ListenAddr: DefaultListenAddr,
		Store: StoreConfig{
			Dir:         "metacat-data",
			LockTimeout: storage.DefaultLockTimeout,
		},
		Cache:                  metacache.Config{MaxBytes: metacache.DefaultMaxBytes},
		SlowOperationThreshold: metadata.DefaultSlowOperationThreshold,
		ShutdownTimeout:        10 * time.Second,
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := MakeConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading configuration")
	}
	if err := cfg.Unmarshal(b); err != nil {
		return Config{}, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}

// Unmarshal decodes YAML over cfg and validates the result.
func (cfg *Config) Unmarshal(b []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate checks the consistency of cfg.
func (cfg *Config) Validate() error {
	if cfg.ListenAddr == "" {
		return errors.New("listen address required")
	}
	if !cfg.Store.InMemory && cfg.Store.Dir == "" {
		return errors.New("store directory required unless the store is in memory")
	}
	if cfg.Cache.MaxBytes < 0 {
		return errors.Newf("negative cache size %s", cfg.Cache.MaxBytes)
	}
	if start, end := cfg.Region.Bounds(); end != nil && bytes.Compare(start, end) >= 0 {
		return errors.Newf("empty region [%q, %q)", cfg.Region.Start, cfg.Region.End)
	}
	return nil
}

// String implements the fmt.Stringer interface.
func (cfg *Config) String() string {
	var buf bytes.Buffer

	w := tabwriter.NewWriter(&buf, 2, 1, 2, ' ', 0)
	fmt.Fprintln(w, "listen address\t", cfg.ListenAddr)
	if cfg.Store.InMemory {
		fmt.Fprintln(w, "store\t", "in-memory")
	} else {
		fmt.Fprintln(w, "store\t", cfg.Store.Dir)
	}
	fmt.Fprintln(w, "lock timeout\t", cfg.Store.LockTimeout)
	fmt.Fprintln(w, "cache size\t", humanizeutil.IBytes(int64(cfg.Cache.MaxBytes)))
	if cfg.Region.Start != "" || cfg.Region.End != "" {
		fmt.Fprintf(w, "region\t [%q, %q)\n", cfg.Region.Start, cfg.Region.End)
	}
	fmt.Fprintln(w, "slow operation threshold\t", cfg.SlowOperationThreshold)
	_ = w.Flush()

	return buf.String()
}

// Report logs an overview of the server configuration parameters via
// the given context.
func (cfg *Config) Report(ctx context.Context) {
	log.Infof(ctx, "server configuration:\n%s", cfg)
}

// CreateStore opens the store described by cfg.Store.
func (cfg *Config) CreateStore(ctx context.Context) (*storage.Store, error) {
	var engine storage.Engine
	if cfg.Store.InMemory {
		log.Info(ctx, "initializing in-memory store")
		engine = storage.NewInMem()
	} else {
		log.Infof(ctx, "initializing pebble store in %s", cfg.Store.Dir)
		var err error
		if engine, err = storage.NewPebble(cfg.Store.Dir, nil); err != nil {
			return nil, err
		}
	}
	return storage.NewStore(engine, storage.Options{LockTimeout: cfg.Store.LockTimeout}), nil
}
