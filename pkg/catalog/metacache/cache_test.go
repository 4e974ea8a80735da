// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metacache

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/humanizeutil"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func makeDef(table string, wall int64) (catalogkeys.Key, *catpb.TableDefinition) {
	def := &catpb.TableDefinition{
		SchemaName: "s",
		TableName:  table,
		Type:       catpb.TableTypeTable,
		Timestamp:  hlc.Timestamp{WallTime: wall},
	}
	return def.Key(), def
}

func entrySize(key catalogkeys.Key, def *catpb.TableDefinition) int64 {
	return def.EstimatedSize() + int64(len(key))
}

func TestCacheBasic(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	k1, d1 := makeDef("a", 1)
	k2, d2 := makeDef("b", 2)
	_, ok := c.Get(k1)
	require.False(t, ok)

	c.Put(k1, d1)
	c.Put(k2, d2)
	got, ok := c.Get(k1)
	require.True(t, ok)
	require.Same(t, d1, got)
	require.Equal(t, 2, c.Len())
	require.Equal(t, entrySize(k1, d1)+entrySize(k2, d2), c.Size())

	// Replacing an entry accounts for the old entry's size.
	_, d1b := makeDef("a", 3)
	d1b.PKName = strings.Repeat("x", 100)
	c.Put(k1, d1b)
	got, _ = c.Get(k1)
	require.Same(t, d1b, got)
	require.Equal(t, entrySize(k1, d1b)+entrySize(k2, d2), c.Size())

	c.Invalidate(k1)
	_, ok = c.Get(k1)
	require.False(t, ok)
	require.Equal(t, entrySize(k2, d2), c.Size())
	// Invalidating a missing key is a no-op.
	c.Invalidate(k1)

	c.InvalidateAll()
	require.Equal(t, 0, c.Len())
	require.Equal(t, int64(0), c.Size())
	c.Put(k1, d1)
	require.Equal(t, 1, c.Len())

	m := c.Metrics()
	require.Equal(t, float64(2), testutil.ToFloat64(m.Hits))
	require.Equal(t, float64(2), testutil.ToFloat64(m.Misses))
	require.Equal(t, float64(0), testutil.ToFloat64(m.Evictions))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Entries))
}

func TestCacheEviction(t *testing.T) {
	k1, d1 := makeDef("a", 1)
	k2, d2 := makeDef("b", 1)
	k3, d3 := makeDef("c", 1)
	// Room for two entries.
	c := New(Config{MaxBytes: humanizeutil.Bytes(2*entrySize(k1, d1) + 1)})
	defer c.Close()

	c.Put(k1, d1)
	c.Put(k2, d2)
	// Touch a so that b is the least recently used.
	_, ok := c.Get(k1)
	require.True(t, ok)
	c.Put(k3, d3)

	_, ok = c.Get(k2)
	require.False(t, ok)
	_, ok = c.Get(k1)
	require.True(t, ok)
	_, ok = c.Get(k3)
	require.True(t, ok)
	require.Equal(t, float64(1), testutil.ToFloat64(c.Metrics().Evictions))

	// A definition larger than the budget is never cached, and does not
	// flush the others.
	kBig, big := makeDef("big", 1)
	big.ViewStatement = strings.Repeat("x", int(2*entrySize(k1, d1)))
	c.Put(kBig, big)
	_, ok = c.Get(kBig)
	require.False(t, ok)
	require.Equal(t, 2, c.Len())
}

func TestCacheClose(t *testing.T) {
	c := New(Config{})
	k, d := makeDef("a", 1)
	c.Put(k, d)
	c.Close()
	_, ok := c.Get(k)
	require.False(t, ok)
	c.Put(k, d)
	require.Equal(t, 0, c.Len())
	c.Invalidate(k)
	c.InvalidateAll()
	c.Close()
}

func TestCacheFill(t *testing.T) {
	ctx := context.Background()
	c := New(Config{})
	defer c.Close()
	k, d := makeDef("a", 1)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fill := func(ctx context.Context) (*catpb.TableDefinition, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		c.Put(k, d)
		return d, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		got, err := c.Fill(gCtx, k, hlc.MaxTimestamp, fill)
		if err != nil {
			return err
		}
		if got != d {
			return errors.New("unexpected definition")
		}
		return nil
	})
	<-started
	const waiters = 4
	var joined atomic.Int32
	for i := 0; i < waiters; i++ {
		g.Go(func() error {
			joined.Add(1)
			got, err := c.Fill(gCtx, k, hlc.MaxTimestamp, fill)
			if err != nil {
				return err
			}
			if got != d {
				return errors.New("unexpected definition")
			}
			return nil
		})
	}
	for joined.Load() < waiters {
		runtime.Gosched()
	}
	close(release)
	require.NoError(t, g.Wait())
	// Waiters which arrived after the first fill completed run their own.
	require.LessOrEqual(t, calls.Load(), int32(1+waiters))
	got, ok := c.Get(k)
	require.True(t, ok)
	require.Same(t, d, got)

	boom := errors.New("boom")
	_, err := c.Fill(ctx, k, hlc.MaxTimestamp, func(context.Context) (*catpb.TableDefinition, error) {
		return nil, boom
	})
	require.True(t, errors.Is(err, boom))
}

// TestCacheFillAbandoned checks that a waiter does not inherit the
// cancellation of the caller whose fill it joined.
func TestCacheFillAbandoned(t *testing.T) {
	c := New(Config{})
	defer c.Close()
	k, d := makeDef("a", 1)

	var calls atomic.Int32
	started := make(chan struct{})
	fill := func(ctx context.Context) (*catpb.TableDefinition, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		c.Put(k, d)
		return d, nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Fill(leaderCtx, k, hlc.MaxTimestamp, fill)
		leaderErr <- err
	}()
	<-started

	waiter := make(chan *catpb.TableDefinition, 1)
	go func() {
		got, err := c.Fill(context.Background(), k, hlc.MaxTimestamp, fill)
		if err != nil {
			got = nil
		}
		waiter <- got
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	require.True(t, errors.Is(<-leaderErr, context.Canceled))
	require.Same(t, d, <-waiter)
	require.EqualValues(t, 2, calls.Load())
}
