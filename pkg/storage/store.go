// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package storage

import (
	"bytes"
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/iterutil"
	"github.com/cockroachdb/metacat/pkg/util/log"
)

// DefaultLockTimeout is the lock wait used when Options.LockTimeout is zero.
const DefaultLockTimeout = 10 * time.Second

// Options configures a Store.
type Options struct {
	// Clock assigns commit timestamps. Defaults to the system clock.
	Clock *hlc.Clock
	// LockTimeout bounds the wait of Lock. Negative disables the bound.
	LockTimeout time.Duration
}

// Store layers multi-version visibility, row locks and timestamped commits
// over an Engine.
type Store struct {
	engine  Engine
	clock   *hlc.Clock
	locks   *lockTable
	metrics Metrics
}

// NewStore returns a Store over engine. The store takes ownership of the
// engine and closes it in Close.
func NewStore(engine Engine, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = hlc.NewSystemClock()
	}
	switch {
	case opts.LockTimeout == 0:
		opts.LockTimeout = DefaultLockTimeout
	case opts.LockTimeout < 0:
		opts.LockTimeout = 0
	}
	return &Store{
		engine:  engine,
		clock:   opts.Clock,
		locks:   newLockTable(opts.LockTimeout),
		metrics: makeMetrics(),
	}
}

// Clock returns the clock assigning the store's commit timestamps.
func (s *Store) Clock() *hlc.Clock { return s.clock }

// Metrics returns the store's metrics.
func (s *Store) Metrics() Metrics { return s.metrics }

// Close closes the underlying engine.
func (s *Store) Close() error { return s.engine.Close() }

// Lock acquires the exclusive lock on the row key. It fails with an error
// marked ErrLockTimeout if the lock is not acquired within the configured
// timeout or ctx is done first.
func (s *Store) Lock(ctx context.Context, key []byte) (*LockGuard, error) {
	start := time.Now()
	g, err := s.locks.acquire(ctx, key)
	s.metrics.LockWaitSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.LockTimeouts.Inc()
		return nil, err
	}
	return g, nil
}

// TestingLockWaiters returns the number of callers blocked on the lock of
// the row key.
func (s *Store) TestingLockWaiters(key []byte) int {
	return s.locks.waiters(string(key))
}

// Scan visits the rows in [opts.Start, opts.End) in ascending key order. fn
// may return iterutil.StopIteration() to end the scan early; Scan then
// returns nil.
func (s *Store) Scan(ctx context.Context, opts ScanOptions, fn func(Row) error) error {
	if opts.MaxTimestamp.IsEmpty() {
		opts.MaxTimestamp = hlc.MaxTimestamp
	}
	var cur []Version
	var visited int
	flush := func() error {
		if len(cur) == 0 {
			return nil
		}
		var row Row
		if opts.Raw {
			row = makeRawRow(cur, &opts)
		} else {
			row = makeVisibleRow(cur, &opts)
		}
		cur = cur[:0]
		if len(row.Cells) == 0 {
			return nil
		}
		return fn(row)
	}
	err := s.engine.Iterate(ctx, opts.Start, opts.End, func(v *Version) error {
		visited++
		if len(cur) > 0 && !bytes.Equal(cur[0].Row, v.Row) {
			if err := flush(); err != nil {
				return err
			}
		}
		cur = append(cur, copyVersion(v))
		return nil
	})
	if err == nil {
		err = flush()
	}
	s.metrics.ScannedVersions.Add(float64(visited))
	return iterutil.Map(err)
}

func copyVersion(v *Version) Version {
	return Version{
		Row:       append([]byte(nil), v.Row...),
		Family:    append([]byte(nil), v.Family...),
		Qualifier: append([]byte(nil), v.Qualifier...),
		Timestamp: v.Timestamp,
		Deleted:   v.Deleted,
		Value:     append([]byte(nil), v.Value...),
	}
}

func (o *ScanOptions) inTimeRange(ts hlc.Timestamp) bool {
	return o.MinTimestamp.LessEq(ts) && ts.LessEq(o.MaxTimestamp)
}

func (o *ScanOptions) matchesColumn(v *Version) bool {
	if o.Family != nil && !bytes.Equal(o.Family, v.Family) {
		return false
	}
	if o.Qualifier != nil && !bytes.Equal(o.Qualifier, v.Qualifier) {
		return false
	}
	return true
}

func makeRawRow(versions []Version, opts *ScanOptions) Row {
	row := Row{Key: versions[0].Row}
	for i := range versions {
		v := &versions[i]
		if !opts.inTimeRange(v.Timestamp) {
			continue
		}
		if !v.Deleted && !opts.matchesColumn(v) {
			continue
		}
		row.Cells = append(row.Cells, Cell{
			Family:    v.Family,
			Qualifier: v.Qualifier,
			Timestamp: v.Timestamp,
			Value:     v.Value,
			Deleted:   v.Deleted,
		})
	}
	return row
}

// makeVisibleRow returns the newest version of each column within the
// scan's time range which is not hidden by a row deletion marker. Deletion
// markers sort first in a row, newest first.
func makeVisibleRow(versions []Version, opts *ScanOptions) Row {
	row := Row{Key: versions[0].Row}
	var deletedAt hlc.Timestamp
	i := 0
	for ; i < len(versions) && versions[i].Deleted; i++ {
		if deletedAt.IsEmpty() && versions[i].Timestamp.LessEq(opts.MaxTimestamp) {
			deletedAt = versions[i].Timestamp
		}
	}
	for i < len(versions) {
		// Find the end of this column's versions.
		j := i + 1
		for j < len(versions) && bytes.Equal(versions[j].Family, versions[i].Family) &&
			bytes.Equal(versions[j].Qualifier, versions[i].Qualifier) {
			j++
		}
		if opts.matchesColumn(&versions[i]) {
			for k := i; k < j; k++ {
				v := &versions[k]
				if opts.MaxTimestamp.Less(v.Timestamp) {
					continue
				}
				if v.Timestamp.Less(opts.MinTimestamp) || v.Timestamp.LessEq(deletedAt) {
					break
				}
				row.Cells = append(row.Cells, Cell{
					Family:    v.Family,
					Qualifier: v.Qualifier,
					Timestamp: v.Timestamp,
					Value:     v.Value,
				})
				break
			}
		}
		i = j
	}
	return row
}

// Apply atomically commits mutations. Mutations and values without a
// timestamp are assigned a fresh timestamp from the store's clock. The
// returned commit timestamp is the largest timestamp written.
func (s *Store) Apply(ctx context.Context, mutations []Mutation) (hlc.Timestamp, error) {
	if len(mutations) == 0 {
		return hlc.Timestamp{}, errors.AssertionFailedf("empty mutation batch")
	}
	var now, commitTS hlc.Timestamp
	stamp := func(ts hlc.Timestamp) hlc.Timestamp {
		if ts.IsEmpty() {
			if now.IsEmpty() {
				now = s.clock.Now()
			}
			ts = now
		}
		commitTS.Forward(ts)
		return ts
	}
	versions := make([]Version, 0, len(mutations))
	for _, m := range mutations {
		if len(m.Key) == 0 {
			return hlc.Timestamp{}, errors.AssertionFailedf("mutation with empty key")
		}
		switch m.Kind {
		case MutationDeleteRow:
			versions = append(versions, Version{
				Row: m.Key, Timestamp: stamp(m.Timestamp), Deleted: true,
			})
		case MutationPut:
			if len(m.Values) == 0 {
				return hlc.Timestamp{}, errors.AssertionFailedf("put to %q without values", m.Key)
			}
			for _, cv := range m.Values {
				if len(cv.Family) == 0 || len(cv.Qualifier) == 0 {
					return hlc.Timestamp{}, errors.AssertionFailedf(
						"put to %q with empty family or qualifier", m.Key)
				}
				ts := cv.Timestamp
				if ts.IsEmpty() {
					ts = m.Timestamp
				}
				versions = append(versions, Version{
					Row:       m.Key,
					Family:    cv.Family,
					Qualifier: cv.Qualifier,
					Timestamp: stamp(ts),
					Value:     cv.Value,
				})
			}
		default:
			return hlc.Timestamp{}, errors.AssertionFailedf("unknown mutation kind %s", m.Kind)
		}
	}
	s.clock.Update(commitTS)
	if err := s.engine.Write(ctx, versions); err != nil {
		return hlc.Timestamp{}, errors.Wrap(err, "committing mutations")
	}
	s.metrics.Commits.Inc()
	s.metrics.CommittedRows.Add(float64(len(mutations)))
	if log.V(3) {
		log.Infof(ctx, "committed %d mutations at %s", len(mutations), commitTS)
	}
	return commitTS, nil
}
