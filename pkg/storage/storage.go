// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package storage implements a sorted, multi-versioned cell store with
// per-row exclusive locks and atomic multi-row commits.
//
// Data is addressed as (row, family, qualifier, timestamp) -> value. A row
// may additionally carry deletion markers; a marker at timestamp t hides
// every cell of the row whose timestamp is at or below t.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
)

// ErrLockTimeout is returned by Store.Lock when the lock could not be
// acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for row lock")

// Cell is one version of one column of a row. In raw scans, row deletion
// markers surface as cells with Deleted set and empty Family and Qualifier.
type Cell struct {
	Family    []byte
	Qualifier []byte
	Timestamp hlc.Timestamp
	Value     []byte
	Deleted   bool
}

func (c Cell) String() string {
	if c.Deleted {
		return fmt.Sprintf("<delete>@%s", c.Timestamp)
	}
	return fmt.Sprintf("%s:%s@%s=%x", c.Family, c.Qualifier, c.Timestamp, c.Value)
}

// Row is the set of cells of one row key returned by a scan, sorted by
// family and qualifier (and by descending timestamp in raw scans).
type Row struct {
	Key   []byte
	Cells []Cell
}

// Get returns the first cell of the row with the given family and qualifier.
func (r Row) Get(family, qualifier []byte) (Cell, bool) {
	for _, c := range r.Cells {
		if bytes.Equal(c.Family, family) && bytes.Equal(c.Qualifier, qualifier) {
			return c, true
		}
	}
	return Cell{}, false
}

// MutationKind distinguishes puts from row deletions.
type MutationKind int

const (
	// MutationPut writes the values of a Mutation.
	MutationPut MutationKind = iota
	// MutationDeleteRow writes a row deletion marker.
	MutationDeleteRow
)

func (k MutationKind) String() string {
	switch k {
	case MutationPut:
		return "put"
	case MutationDeleteRow:
		return "delete"
	}
	return fmt.Sprintf("MutationKind(%d)", int(k))
}

// ColumnValue is one cell written by a put. A non-empty Timestamp overrides
// the timestamp of the enclosing mutation.
type ColumnValue struct {
	Family    []byte
	Qualifier []byte
	Value     []byte
	Timestamp hlc.Timestamp
}

// Mutation is a put or a row deletion against a single row. An empty
// Timestamp is assigned by the store at commit.
type Mutation struct {
	Key       []byte
	Timestamp hlc.Timestamp
	Kind      MutationKind
	Values    []ColumnValue
}

// Put returns a put mutation for key.
func Put(key []byte, ts hlc.Timestamp, values ...ColumnValue) Mutation {
	return Mutation{Key: key, Timestamp: ts, Kind: MutationPut, Values: values}
}

// DeleteRow returns a row deletion mutation for key.
func DeleteRow(key []byte, ts hlc.Timestamp) Mutation {
	return Mutation{Key: key, Timestamp: ts, Kind: MutationDeleteRow}
}

// Get returns the value written for family and qualifier by a put.
func (m Mutation) Get(family, qualifier []byte) ([]byte, bool) {
	for _, v := range m.Values {
		if bytes.Equal(v.Family, family) && bytes.Equal(v.Qualifier, qualifier) {
			return v.Value, true
		}
	}
	return nil, false
}

// ScanOptions configures Store.Scan. Rows in [Start, End) are visited; a nil
// End is unbounded. Only versions with MinTimestamp <= ts <= MaxTimestamp
// are considered; an empty MaxTimestamp means hlc.MaxTimestamp.
type ScanOptions struct {
	Start, End   []byte
	MinTimestamp hlc.Timestamp
	MaxTimestamp hlc.Timestamp
	// Raw returns every version, including row deletion markers, and ignores
	// deletion semantics.
	Raw bool
	// Family and Qualifier, when set, restrict the cells returned.
	Family    []byte
	Qualifier []byte
}

// Version is one entry of the raw version space of an Engine.
type Version struct {
	Row       []byte
	Family    []byte
	Qualifier []byte
	Timestamp hlc.Timestamp
	Deleted   bool
	Value     []byte
}

// compareVersions orders versions by row, family and qualifier ascending,
// then by timestamp descending.
func compareVersions(a, b *Version) int {
	if c := bytes.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	if c := bytes.Compare(a.Family, b.Family); c != 0 {
		return c
	}
	if c := bytes.Compare(a.Qualifier, b.Qualifier); c != 0 {
		return c
	}
	return b.Timestamp.Compare(a.Timestamp)
}

// Engine is the raw, ordered version space underlying a Store.
type Engine interface {
	// Iterate calls fn for each version whose row is in [start, end), in
	// (row, family, qualifier) ascending, timestamp descending order. A nil
	// end is unbounded. The Version passed to fn is only valid for the
	// duration of the call.
	Iterate(ctx context.Context, start, end []byte, fn func(*Version) error) error
	// Write atomically writes versions.
	Write(ctx context.Context, versions []Version) error
	// Close releases the resources held by the engine.
	Close() error
}
