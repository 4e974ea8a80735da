// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cli implements the metacat command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cockroachdb/metacat/pkg/build"
	"github.com/cockroachdb/metacat/pkg/util/log"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "output version information",
	Long: `
Output build version information.
`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := build.GetInfo()
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 1, 2, ' ', 0)
		fmt.Fprintf(tw, "Build Tag:   %s\n", info.Tag)
		fmt.Fprintf(tw, "Build Time:  %s\n", info.Time)
		fmt.Fprintf(tw, "Revision:    %s\n", info.Revision)
		fmt.Fprintf(tw, "Platform:    %s\n", info.Platform)
		fmt.Fprintf(tw, "Go Version:  %s\n", info.GoVersion)
		_ = tw.Flush()
	},
}

var metacatCmd = &cobra.Command{
	Use:   "metacat [command] (flags)",
	Short: "metacat catalog server",
	Long: `
metacat serves versioned table, view and index definitions for a
multi-tenant SQL layer.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// flushLog flushes the logger configured by the last command.
var flushLog = func() {}

func init() {
	cobra.EnableCommandSorting = false

	metacatCmd.AddCommand(
		startCmd,
		versionCmd,
		debugCmd,
	)
	AddPersistentPreRunE(metacatCmd, func(cmd *cobra.Command, _ []string) error {
		return configureLogging(logCfg)
	})
}

func configureLogging(cfg log.Config) error {
	flush, err := log.Configure(cfg)
	if err != nil {
		return err
	}
	flushLog()
	flushLog = flush
	return nil
}

// Main is the entry point of the metacat binary.
func Main() {
	err := Run(os.Args[1:])
	flushLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// Run executes the command line args.
func Run(args []string) error {
	return RunContext(context.Background(), args)
}

// RunContext executes the command line args. Long-running commands return
// when ctx is done.
func RunContext(ctx context.Context, args []string) error {
	metacatCmd.SetArgs(args)
	return metacatCmd.ExecuteContext(ctx)
}
