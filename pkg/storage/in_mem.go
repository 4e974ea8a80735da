// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package storage

import (
	"bytes"
	"context"

	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/iterutil"
	"github.com/cockroachdb/metacat/pkg/util/syncutil"
	"github.com/google/btree"
)

type versionItem struct {
	Version
}

var _ btree.Item = (*versionItem)(nil)

// Less implements btree.Item.
func (v *versionItem) Less(than btree.Item) bool {
	return compareVersions(&v.Version, &than.(*versionItem).Version) < 0
}

// inMem is an Engine backed by an in-memory B-tree. Readers iterate over a
// copy-on-write clone of the tree and never block writers.
type inMem struct {
	mu struct {
		syncutil.RWMutex
		tree *btree.BTree
	}
}

// NewInMem returns an empty in-memory Engine.
func NewInMem() Engine {
	e := &inMem{}
	e.mu.tree = btree.New(32 /* degree */)
	return e
}

func (e *inMem) snapshot() *btree.BTree {
	// Clone mutates bookkeeping on the source tree.
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mu.tree.Clone()
}

// Iterate implements Engine.
func (e *inMem) Iterate(
	ctx context.Context, start, end []byte, fn func(*Version) error,
) error {
	tree := e.snapshot()
	pivot := &versionItem{Version{Row: start, Timestamp: hlc.MaxTimestamp}}
	var err error
	tree.AscendGreaterOrEqual(pivot, func(i btree.Item) bool {
		v := &i.(*versionItem).Version
		if end != nil && bytes.Compare(v.Row, end) >= 0 {
			return false
		}
		if err = ctx.Err(); err != nil {
			return false
		}
		err = fn(v)
		return err == nil
	})
	return iterutil.Map(err)
}

// Write implements Engine.
func (e *inMem) Write(_ context.Context, versions []Version) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range versions {
		v := versions[i]
		v.Row = append([]byte(nil), v.Row...)
		v.Family = append([]byte(nil), v.Family...)
		v.Qualifier = append([]byte(nil), v.Qualifier...)
		v.Value = append([]byte(nil), v.Value...)
		e.mu.tree.ReplaceOrInsert(&versionItem{v})
	}
	return nil
}

// Close implements Engine.
func (e *inMem) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mu.tree.Clear(false /* addNodesToFreelist */)
	return nil
}
