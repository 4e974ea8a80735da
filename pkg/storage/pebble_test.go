// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package storage

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestVersionKeyOrdering(t *testing.T) {
	genVersion := gopter.CombineGens(
		gen.SliceOf(gen.UInt8Range(0, 2)),
		gen.SliceOf(gen.UInt8Range(0, 2)),
		gen.SliceOf(gen.UInt8Range(0, 2)),
		gen.Int64Range(0, 3),
		gen.Int32Range(0, 2),
	).Map(func(vals []interface{}) Version {
		return Version{
			Row:       vals[0].([]uint8),
			Family:    vals[1].([]uint8),
			Qualifier: vals[2].([]uint8),
			Timestamp: hlc.Timestamp{WallTime: vals[3].(int64), Logical: vals[4].(int32)},
		}
	})

	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("encoded keys sort like versions", prop.ForAll(
		func(a, b Version) bool {
			ka, kb := encodeVersionKey(nil, &a), encodeVersionKey(nil, &b)
			return bytes.Compare(ka, kb) == compareVersions(&a, &b)
		},
		genVersion, genVersion,
	))
	properties.Property("encoded keys round trip", prop.ForAll(
		func(a Version) bool {
			var b Version
			if err := decodeVersionKey(encodeVersionKey(nil, &a), &b); err != nil {
				return false
			}
			return compareVersions(&a, &b) == 0
		},
		genVersion,
	))
	properties.TestingRun(t)
}

func TestDecodeVersionKeyErrors(t *testing.T) {
	var v Version
	require.Error(t, decodeVersionKey(nil, &v))
	key := encodeVersionKey(nil, &Version{Row: []byte("r"), Family: []byte("0")})
	require.Error(t, decodeVersionKey(key[:len(key)-1], &v))
	require.Error(t, decodeVersionKey(append(key, 0), &v))
}
