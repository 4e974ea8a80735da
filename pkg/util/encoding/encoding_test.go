// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package encoding

import (
	"bytes"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBytes(t *testing.T) {
	testCases := []struct {
		value   []byte
		encoded []byte
	}{
		{[]byte{0, 1, 'a'}, []byte{0x12, 0x00, 0xff, 1, 'a', 0x00, 0x01}},
		{[]byte{0, 'a'}, []byte{0x12, 0x00, 0xff, 'a', 0x00, 0x01}},
		{[]byte{0, 0xff, 'a'}, []byte{0x12, 0x00, 0xff, 0xff, 'a', 0x00, 0x01}},
		{[]byte{'a'}, []byte{0x12, 'a', 0x00, 0x01}},
		{[]byte{'b'}, []byte{0x12, 'b', 0x00, 0x01}},
		{[]byte{'b', 0}, []byte{0x12, 'b', 0x00, 0xff, 0x00, 0x01}},
		{[]byte{'b', 0, 0}, []byte{0x12, 'b', 0x00, 0xff, 0x00, 0xff, 0x00, 0x01}},
		{[]byte{'b', 0, 0, 'a'}, []byte{0x12, 'b', 0x00, 0xff, 0x00, 0xff, 'a', 0x00, 0x01}},
		{[]byte{'b', 0xff}, []byte{0x12, 'b', 0xff, 0x00, 0x01}},
		{[]byte("hello"), []byte{0x12, 'h', 'e', 'l', 'l', 'o', 0x00, 0x01}},
	}
	for i, c := range testCases {
		enc := EncodeBytesAscending(nil, c.value)
		require.Equal(t, c.encoded, enc, "case %d", i)
		if i > 0 {
			require.Equal(t, -1, bytes.Compare(testCases[i-1].encoded, enc),
				"%v: expected %q to sort before %q", c.value, testCases[i-1].encoded, enc)
		}
		remainder, dec, err := DecodeBytesAscending(enc, nil)
		require.NoError(t, err)
		require.Equal(t, c.value, dec)
		require.Empty(t, remainder)
	}
}

func TestDecodeBytesMalformed(t *testing.T) {
	for _, b := range [][]byte{
		nil,
		{'a'},
		{0x12, 'a'},
		{0x12, 'a', 0x00},
		{0x12, 'a', 0x00, 0x07},
	} {
		_, _, err := DecodeBytesAscending(b, nil)
		require.Error(t, err, "%x", b)
	}
}

func TestEncodeDecodeUints(t *testing.T) {
	for _, v := range []uint64{0, 1, 1 << 16, 1<<32 - 1, 1 << 40, math.MaxUint64} {
		b := EncodeUint64Ascending(nil, v)
		_, d, err := DecodeUint64Ascending(b)
		require.NoError(t, err)
		require.Equal(t, v, d)

		b = EncodeUint64Descending(nil, v)
		_, d, err = DecodeUint64Descending(b)
		require.NoError(t, err)
		require.Equal(t, v, d)
	}
	_, _, err := DecodeUint64Ascending([]byte{1, 2, 3})
	require.Error(t, err)
	_, _, err = DecodeUint32Ascending([]byte{1})
	require.Error(t, err)
	_, _, err = DecodeUint16Ascending(nil)
	require.Error(t, err)
}

func TestPrefixEnd(t *testing.T) {
	require.Equal(t, []byte("b"), PrefixEnd([]byte("a")))
	require.Equal(t, []byte{'a', 0x01}, PrefixEnd([]byte{'a', 0x00}))
	require.Equal(t, []byte{'b'}, PrefixEnd([]byte{'a', 0xff}))
	require.Equal(t, []byte{0xff, 0xff}, PrefixEnd([]byte{0xff, 0xff}))
	require.Nil(t, PrefixEnd(nil))
}

func TestOrderPreservingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("int64 encoding preserves order", prop.ForAll(
		func(a, b int64) bool {
			ea, eb := EncodeInt64Ascending(nil, a), EncodeInt64Ascending(nil, b)
			_, da, errA := DecodeInt64Ascending(ea)
			_, db, errB := DecodeInt64Ascending(eb)
			if errA != nil || errB != nil || da != a || db != b {
				return false
			}
			return cmpInt(a, b) == bytes.Compare(ea, eb)
		},
		gen.Int64(), gen.Int64(),
	))

	properties.Property("int32 encoding preserves order", prop.ForAll(
		func(a, b int32) bool {
			ea, eb := EncodeInt32Ascending(nil, a), EncodeInt32Ascending(nil, b)
			_, da, _ := DecodeInt32Ascending(ea)
			return da == a && cmpInt(int64(a), int64(b)) == bytes.Compare(ea, eb)
		},
		gen.Int32(), gen.Int32(),
	))

	properties.Property("int16 round trips", prop.ForAll(
		func(a int16) bool {
			_, d, err := DecodeInt16Ascending(EncodeInt16Ascending(nil, a))
			return err == nil && d == a
		},
		gen.Int16(),
	))

	properties.Property("uint64 descending reverses order", prop.ForAll(
		func(a, b uint64) bool {
			ea, eb := EncodeUint64Descending(nil, a), EncodeUint64Descending(nil, b)
			return bytes.Compare(ea, eb) == -cmpUint(a, b)
		},
		gen.UInt64(), gen.UInt64(),
	))

	properties.Property("bytes encoding preserves order and round trips", prop.ForAll(
		func(a, b []byte) bool {
			ea, eb := EncodeBytesAscending(nil, a), EncodeBytesAscending(nil, b)
			_, da, err := DecodeBytesAscending(ea, nil)
			if err != nil || !bytes.Equal(da, a) {
				return false
			}
			return bytes.Compare(a, b) == bytes.Compare(ea, eb)
		},
		gen.SliceOf(gen.UInt8()), gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
