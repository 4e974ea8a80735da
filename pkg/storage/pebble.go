// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package storage

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/util/encoding"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/iterutil"
	"github.com/cockroachdb/metacat/pkg/util/log"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

const (
	valueTagPut    byte = 0
	valueTagDelete byte = 1
)

// encodeVersionKey encodes the (row, family, qualifier, timestamp) tuple of
// v so that the byte order of the keys matches compareVersions.
func encodeVersionKey(b []byte, v *Version) []byte {
	b = encoding.EncodeBytesAscending(b, v.Row)
	b = encoding.EncodeBytesAscending(b, v.Family)
	b = encoding.EncodeBytesAscending(b, v.Qualifier)
	b = encoding.EncodeUint64Descending(b, uint64(v.Timestamp.WallTime))
	return encoding.EncodeUint32Descending(b, uint32(v.Timestamp.Logical))
}

func decodeVersionKey(b []byte, v *Version) error {
	var err error
	var wall uint64
	var logical uint32
	if b, v.Row, err = encoding.DecodeBytesAscending(b, nil); err != nil {
		return errors.Wrap(err, "decoding row")
	}
	if b, v.Family, err = encoding.DecodeBytesAscending(b, nil); err != nil {
		return errors.Wrap(err, "decoding family")
	}
	if b, v.Qualifier, err = encoding.DecodeBytesAscending(b, nil); err != nil {
		return errors.Wrap(err, "decoding qualifier")
	}
	if b, wall, err = encoding.DecodeUint64Descending(b); err != nil {
		return errors.Wrap(err, "decoding wall time")
	}
	if b, logical, err = encoding.DecodeUint32Descending(b); err != nil {
		return errors.Wrap(err, "decoding logical time")
	}
	if len(b) != 0 {
		return errors.Errorf("%d trailing bytes in version key", len(b))
	}
	v.Timestamp = hlc.Timestamp{WallTime: int64(wall), Logical: int32(logical)}
	return nil
}

// pebbleLogger routes pebble's logging through the log package.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	if log.V(2) {
		log.Infof(context.Background(), format, args...)
	}
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Fatalf(context.Background(), format, args...)
}

type pebbleEngine struct {
	db *pebble.DB
}

// NewPebble opens a pebble-backed Engine in dir. A nil fs uses the local
// filesystem; tests pass vfs.NewMem().
func NewPebble(dir string, fs vfs.FS) (Engine, error) {
	if fs == nil {
		fs = vfs.Default
	}
	db, err := pebble.Open(dir, &pebble.Options{
		FS:     fs,
		Logger: pebbleLogger{},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening pebble store in %q", dir)
	}
	return &pebbleEngine{db: db}, nil
}

// Iterate implements Engine.
func (p *pebbleEngine) Iterate(
	ctx context.Context, start, end []byte, fn func(*Version) error,
) error {
	opts := &pebble.IterOptions{
		LowerBound: encoding.EncodeBytesAscending(nil, start),
	}
	if end != nil {
		opts.UpperBound = encoding.EncodeBytesAscending(nil, end)
	}
	iter, err := p.db.NewIterWithContext(ctx, opts)
	if err != nil {
		return err
	}
	var v Version
	for valid := iter.First(); valid; valid = iter.Next() {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = decodeVersionKey(iter.Key(), &v); err != nil {
			break
		}
		val := iter.Value()
		if len(val) == 0 {
			err = errors.AssertionFailedf("empty value for version %s@%s", v.Row, v.Timestamp)
			break
		}
		v.Deleted = val[0] == valueTagDelete
		v.Value = val[1:]
		if err = fn(&v); err != nil {
			break
		}
	}
	err = errors.CombineErrors(iterutil.Map(err), iter.Error())
	return errors.CombineErrors(err, iter.Close())
}

// Write implements Engine.
func (p *pebbleEngine) Write(_ context.Context, versions []Version) error {
	b := p.db.NewBatch()
	defer b.Close()
	var key []byte
	for i := range versions {
		v := &versions[i]
		key = encodeVersionKey(key[:0], v)
		tag := valueTagPut
		if v.Deleted {
			tag = valueTagDelete
		}
		val := make([]byte, 0, 1+len(v.Value))
		val = append(append(val, tag), v.Value...)
		if err := b.Set(key, val, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Close implements Engine.
func (p *pebbleEngine) Close() error {
	return p.db.Close()
}
