// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/build"
	"github.com/cockroachdb/metacat/pkg/cli/cliflags"
	"github.com/cockroachdb/metacat/pkg/server"
	"github.com/cockroachdb/metacat/pkg/util/humanizeutil"
	"github.com/cockroachdb/metacat/pkg/util/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// startCmd starts a catalog server.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start a catalog server",
	Long: `
Start a catalog server serving the configured key range of the catalog
until it receives SIGINT or SIGTERM. Configuration is read from the file
given with --config; command-line flags override its values.
`,
	Example: `  metacat start --store=/mnt/metacat --cache=256MiB`,
	Args:    cobra.NoArgs,
	RunE:    runStart,
}

// startContext holds the values of the start flags.
type startContext struct {
	configPath string
	// cfg receives the flag values. Only flags set on the command line are
	// applied over the configuration file.
	cfg       server.Config
	cacheSize int64
}

var startCtx startContext

func (sc *startContext) init() {
	sc.configPath = ""
	sc.cfg = server.MakeConfig()
	sc.cacheSize = int64(sc.cfg.Cache.MaxBytes)
}

func registerStartFlags(f *pflag.FlagSet, sc *startContext) {
	StringFlag(f, &sc.configPath, cliflags.Config, sc.configPath)
	StringFlag(f, &sc.cfg.ListenAddr, cliflags.ListenAddr, sc.cfg.ListenAddr)
	StringFlag(f, &sc.cfg.Store.Dir, cliflags.Store, sc.cfg.Store.Dir)
	BoolFlag(f, &sc.cfg.Store.InMemory, cliflags.InMemory, sc.cfg.Store.InMemory)
	VarFlag(f, humanizeutil.NewBytesValue(&sc.cacheSize), cliflags.CacheSize)
	StringFlag(f, &sc.cfg.Region.Start, cliflags.RegionStart, sc.cfg.Region.Start)
	StringFlag(f, &sc.cfg.Region.End, cliflags.RegionEnd, sc.cfg.Region.End)
	DurationFlag(f, &sc.cfg.Store.LockTimeout, cliflags.LockTimeout, sc.cfg.Store.LockTimeout)
}

// resolve returns the server configuration: the configuration file, or the
// defaults without one, overridden by the flags of f which were set.
// Logging flags are read from logFlags.
func (sc *startContext) resolve(f *pflag.FlagSet, logFlags log.Config) (server.Config, error) {
	cfg := server.MakeConfig()
	if sc.configPath != "" {
		var err error
		if cfg, err = server.LoadConfig(sc.configPath); err != nil {
			return server.Config{}, err
		}
	}
	f.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case cliflags.ListenAddr.Name:
			cfg.ListenAddr = sc.cfg.ListenAddr
		case cliflags.Store.Name:
			cfg.Store.Dir = sc.cfg.Store.Dir
		case cliflags.InMemory.Name:
			cfg.Store.InMemory = sc.cfg.Store.InMemory
		case cliflags.CacheSize.Name:
			cfg.Cache.MaxBytes = humanizeutil.Bytes(sc.cacheSize)
		case cliflags.RegionStart.Name:
			cfg.Region.Start = sc.cfg.Region.Start
		case cliflags.RegionEnd.Name:
			cfg.Region.End = sc.cfg.Region.End
		case cliflags.LockTimeout.Name:
			cfg.Store.LockTimeout = sc.cfg.Store.LockTimeout
		case cliflags.LogLevel.Name:
			cfg.Log.Level = logFlags.Level
		case cliflags.LogFormat.Name:
			cfg.Log.Format = logFlags.Format
		case cliflags.Verbosity.Name:
			cfg.Log.Verbosity = logFlags.Verbosity
		}
	})
	if err := cfg.Validate(); err != nil {
		return server.Config{}, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := startCtx.resolve(cmd.Flags(), logCfg)
	if err != nil {
		return err
	}
	if err := configureLogging(cfg.Log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg.Report(ctx)

	s, err := server.NewServer(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to initialize server")
	}
	if err := s.Start(ctx); err != nil {
		return errors.CombineErrors(err, s.Stop(context.Background()))
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 1, 2, ' ', 0)
	fmt.Fprintf(tw, "metacat server starting\n")
	fmt.Fprintf(tw, "build:\t%s\n", build.GetInfo().Short())
	fmt.Fprintf(tw, "api:\thttp://%s/api/v1/\n", s.Addr())
	if cfg.Store.InMemory {
		fmt.Fprintf(tw, "store:\tin-memory\n")
	} else {
		fmt.Fprintf(tw, "store:\t%s\n", cfg.Store.Dir)
	}
	_ = tw.Flush()

	select {
	case <-ctx.Done():
		log.Info(ctx, "received signal, initiating shutdown")
	case <-s.Done():
		log.Warningf(ctx, "server stopped serving: %v", s.Err())
	}
	// Shutdown must not inherit a canceled start context.
	return s.Stop(context.Background())
}
