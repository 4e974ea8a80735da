// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/iterutil"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

var fam = []byte("0")

func ts(wall int64) hlc.Timestamp { return hlc.Timestamp{WallTime: wall} }

func val(q, v string) ColumnValue {
	return ColumnValue{Family: fam, Qualifier: []byte(q), Value: []byte(v)}
}

// forEachEngine runs fn against a fresh store over every engine
// implementation.
func forEachEngine(t *testing.T, fn func(t *testing.T, s *Store)) {
	engines := map[string]func(t *testing.T) Engine{
		"inmem": func(t *testing.T) Engine { return NewInMem() },
		"pebble": func(t *testing.T) Engine {
			e, err := NewPebble("", vfs.NewMem())
			require.NoError(t, err)
			return e
		},
	}
	for _, name := range []string{"inmem", "pebble"} {
		t.Run(name, func(t *testing.T) {
			s := NewStore(engines[name](t), Options{
				Clock: hlc.NewClock(hlc.NewManualClock(1000)),
			})
			defer func() { require.NoError(t, s.Close()) }()
			fn(t, s)
		})
	}
}

func scanAll(t *testing.T, s *Store, opts ScanOptions) []string {
	var out []string
	require.NoError(t, s.Scan(context.Background(), opts, func(r Row) error {
		for _, c := range r.Cells {
			if c.Deleted {
				out = append(out, fmt.Sprintf("%s <del>@%d", r.Key, c.Timestamp.WallTime))
				continue
			}
			out = append(out, fmt.Sprintf("%s %s=%s@%d", r.Key, c.Qualifier, c.Value, c.Timestamp.WallTime))
		}
		return nil
	}))
	return out
}

func TestScanVisibility(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		_, err := s.Apply(ctx, []Mutation{
			Put([]byte("a"), ts(10), val("x", "1"), val("y", "1")),
			Put([]byte("b"), ts(10), val("x", "b1")),
		})
		require.NoError(t, err)
		_, err = s.Apply(ctx, []Mutation{Put([]byte("a"), ts(20), val("x", "2"))})
		require.NoError(t, err)

		require.Equal(t, []string{"a x=2@20", "a y=1@10", "b x=b1@10"},
			scanAll(t, s, ScanOptions{}))
		require.Equal(t, []string{"a x=1@10", "a y=1@10", "b x=b1@10"},
			scanAll(t, s, ScanOptions{MaxTimestamp: ts(15)}))
		require.Empty(t, scanAll(t, s, ScanOptions{MaxTimestamp: ts(9)}))
		require.Equal(t, []string{"a x=2@20"},
			scanAll(t, s, ScanOptions{MinTimestamp: ts(15)}))
		require.Equal(t, []string{"a x=2@20", "a y=1@10"},
			scanAll(t, s, ScanOptions{Start: []byte("a"), End: []byte("b")}))
		require.Equal(t, []string{"a y=1@10"},
			scanAll(t, s, ScanOptions{Qualifier: []byte("y")}))
	})
}

func TestScanDeleteMarkers(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		_, err := s.Apply(ctx, []Mutation{Put([]byte("a"), ts(10), val("x", "1"))})
		require.NoError(t, err)
		_, err = s.Apply(ctx, []Mutation{DeleteRow([]byte("a"), ts(20))})
		require.NoError(t, err)

		require.Empty(t, scanAll(t, s, ScanOptions{}))
		require.Equal(t, []string{"a x=1@10"}, scanAll(t, s, ScanOptions{MaxTimestamp: ts(19)}))

		_, err = s.Apply(ctx, []Mutation{
			Put([]byte("a"), ts(30), val("y", "2")),
			DeleteRow([]byte("a"), ts(25)),
		})
		require.NoError(t, err)
		require.Equal(t, []string{"a y=2@30"}, scanAll(t, s, ScanOptions{}))

		// Raw scans see every version, deletion markers first and newest first.
		require.Equal(t, []string{
			"a <del>@25", "a <del>@20", "a x=1@10", "a y=2@30",
		}, scanAll(t, s, ScanOptions{Raw: true}))
		require.Equal(t, []string{"a <del>@25", "a y=2@30"},
			scanAll(t, s, ScanOptions{Raw: true, MinTimestamp: ts(21)}))
	})
}

func TestScanStopIteration(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		for _, k := range []string{"a", "b", "c"} {
			_, err := s.Apply(ctx, []Mutation{Put([]byte(k), ts(10), val("x", k))})
			require.NoError(t, err)
		}
		var keys []string
		require.NoError(t, s.Scan(ctx, ScanOptions{}, func(r Row) error {
			keys = append(keys, string(r.Key))
			if len(keys) == 2 {
				return iterutil.StopIteration()
			}
			return nil
		}))
		require.Equal(t, []string{"a", "b"}, keys)

		boom := errors.New("boom")
		err := s.Scan(ctx, ScanOptions{}, func(Row) error { return boom })
		require.True(t, errors.Is(err, boom))
	})
}

func TestApplyTimestamps(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		commitTS, err := s.Apply(ctx, []Mutation{
			Put([]byte("a"), hlc.Timestamp{}, val("x", "1")),
			Put([]byte("b"), hlc.Timestamp{}, val("x", "1")),
		})
		require.NoError(t, err)
		require.Equal(t, int64(1000), commitTS.WallTime)

		var cells []Cell
		require.NoError(t, s.Scan(ctx, ScanOptions{}, func(r Row) error {
			cells = append(cells, r.Cells...)
			return nil
		}))
		require.Len(t, cells, 2)
		require.Equal(t, commitTS, cells[0].Timestamp)
		require.Equal(t, commitTS, cells[1].Timestamp)

		// Per-value overrides win over the mutation timestamp.
		override := val("y", "2")
		override.Timestamp = ts(5)
		commitTS, err = s.Apply(ctx, []Mutation{Put([]byte("c"), ts(50), val("x", "3"), override)})
		require.NoError(t, err)
		require.Equal(t, ts(50), commitTS)
		require.Equal(t, []string{"c x=3@50", "c y=2@5"},
			scanAll(t, s, ScanOptions{Start: []byte("c")}))

		// The clock never hands out a timestamp below a committed one.
		_, err = s.Apply(ctx, []Mutation{Put([]byte("d"), ts(5000), val("x", "4"))})
		require.NoError(t, err)
		require.True(t, ts(5000).Less(s.Clock().Now()))

		_, err = s.Apply(ctx, nil)
		require.Error(t, err)
		_, err = s.Apply(ctx, []Mutation{Put([]byte("e"), ts(1))})
		require.Error(t, err)
	})
}

func TestLock(t *testing.T) {
	s := NewStore(NewInMem(), Options{LockTimeout: 20 * time.Millisecond})
	defer func() { require.NoError(t, s.Close()) }()
	ctx := context.Background()

	g, err := s.Lock(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), g.Key())

	// Other keys are independent.
	g2, err := s.Lock(ctx, []byte("b"))
	require.NoError(t, err)
	g2.Release()

	_, err = s.Lock(ctx, []byte("a"))
	require.True(t, errors.Is(err, ErrLockTimeout), "%v", err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Lock(canceled, []byte("a"))
	require.True(t, errors.Is(err, ErrLockTimeout), "%v", err)

	g.Release()
	g.Release()
	require.Equal(t, 0, s.locks.numLocks())

	g, err = s.Lock(ctx, []byte("a"))
	require.NoError(t, err)
	g.Release()
}

func TestLockHandoff(t *testing.T) {
	s := NewStore(NewInMem(), Options{LockTimeout: -1})
	ctx := context.Background()
	g, err := s.Lock(ctx, []byte("k"))
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		g2, err := s.Lock(ctx, []byte("k"))
		if err == nil {
			g2.Release()
		}
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(10 * time.Millisecond):
	}
	require.Eventually(t, func() bool { return s.TestingLockWaiters([]byte("k")) == 1 },
		5*time.Second, time.Millisecond)
	g.Release()
	<-acquired
	require.Zero(t, s.TestingLockWaiters([]byte("k")))
}
