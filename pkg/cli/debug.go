// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/storage"
	"github.com/cockroachdb/metacat/pkg/util/iterutil"
	"github.com/spf13/cobra"
)

var debugCtx struct {
	start, end string
	limit      int
}

var debugCmd = &cobra.Command{
	Use:   "debug [command]",
	Short: "debugging commands",
	Long: `Various commands for debugging.

These commands are useful for extracting data from a catalog store which
is not being served. Their output is not stable.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

var debugScanCmd = &cobra.Command{
	Use:   "scan <directory>",
	Short: "dump every version of the catalog rows of a store",
	Long: `
Print every version of every row of the catalog store in <directory>,
including row deletions. The store must not be in use by a server.
`,
	Args: cobra.ExactArgs(1),
	RunE: runDebugScan,
}

func init() {
	debugCmd.AddCommand(debugScanCmd)
}

// debugKey encodes a key written with '/' separating segments.
func debugKey(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(strings.ReplaceAll(s, "/", string([]byte{catalogkeys.Separator})))
}

func runDebugScan(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if _, err := os.Stat(dir); err != nil {
		return errors.Wrapf(err, "opening store")
	}
	engine, err := storage.NewPebble(dir, nil)
	if err != nil {
		return err
	}
	store := storage.NewStore(engine, storage.Options{})
	defer func() { _ = store.Close() }()

	out := cmd.OutOrStdout()
	var n int
	err = store.Scan(cmd.Context(), storage.ScanOptions{
		Start: debugKey(debugCtx.start),
		End:   debugKey(debugCtx.end),
		Raw:   true,
	}, func(row storage.Row) error {
		if debugCtx.limit > 0 && n >= debugCtx.limit {
			return iterutil.StopIteration()
		}
		n++
		return printRow(out, row)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d rows\n", n)
	return nil
}

func printRow(w io.Writer, row storage.Row) error {
	if _, err := fmt.Fprintln(w, formatRowKey(row.Key)); err != nil {
		return err
	}
	for _, c := range row.Cells {
		if _, err := fmt.Fprintf(w, "  %s\n", c); err != nil {
			return err
		}
	}
	return nil
}

// formatRowKey renders a catalog row key as tenant/schema/table, followed
// by the column and family segments of child rows.
func formatRowKey(key []byte) string {
	rk, err := catalogkeys.DecodeRowKey(key)
	if err != nil {
		return fmt.Sprintf("%q", key)
	}
	s := fmt.Sprintf("%s/%s/%s", rk.TenantID, rk.Schema, rk.Table)
	if rk.Child {
		s += fmt.Sprintf(" [%s/%s]", rk.Column, rk.Family)
	}
	return s
}
