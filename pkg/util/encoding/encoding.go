// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package encoding implements order-preserving encodings: the encoded
// forms of two values compare bytewise in the same order as the values.
package encoding

import (
	"bytes"

	"github.com/cockroachdb/errors"
)

const (
	bytesMarker byte = 0x12

	// <term>     -> \x00\x01
	// \x00       -> \x00\xff
	escape      byte = 0x00
	escapedTerm byte = 0x01
	escaped00   byte = 0xff
	escapedFF   byte = 0x00
)

// EncodeUint16Ascending encodes the uint16 value using a big-endian 2 byte
// representation. The bytes are appended to the supplied buffer and
// the final buffer is returned.
func EncodeUint16Ascending(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

// DecodeUint16Ascending decodes a uint16 from the input buffer, treating
// the input as a big-endian 2 byte uint16 representation. The remainder
// of the input buffer and the decoded uint16 are returned.
func DecodeUint16Ascending(b []byte) ([]byte, uint16, error) {
	if len(b) < 2 {
		return nil, 0, errors.Errorf("insufficient bytes to decode uint16 int value")
	}
	v := (uint16(b[0]) << 8) | uint16(b[1])
	return b[2:], v, nil
}

// EncodeUint32Ascending encodes the uint32 value using a big-endian 4 byte
// representation. The bytes are appended to the supplied buffer and
// the final buffer is returned.
func EncodeUint32Ascending(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// EncodeUint32Descending encodes the uint32 value so that it sorts in
// reverse order, from largest to smallest.
func EncodeUint32Descending(b []byte, v uint32) []byte {
	return EncodeUint32Ascending(b, ^v)
}

// DecodeUint32Ascending decodes a uint32 from the input buffer, treating
// the input as a big-endian 4 byte uint32 representation. The remainder
// of the input buffer and the decoded uint32 are returned.
func DecodeUint32Ascending(b []byte) ([]byte, uint32, error) {
	if len(b) < 4 {
		return nil, 0, errors.Errorf("insufficient bytes to decode uint32 int value")
	}
	v := (uint32(b[0]) << 24) | (uint32(b[1]) << 16) |
		(uint32(b[2]) << 8) | uint32(b[3])
	return b[4:], v, nil
}

// DecodeUint32Descending decodes a uint32 value which was encoded
// using EncodeUint32Descending.
func DecodeUint32Descending(b []byte) ([]byte, uint32, error) {
	leftover, v, err := DecodeUint32Ascending(b)
	return leftover, ^v, err
}

// EncodeUint64Ascending encodes the uint64 value using a big-endian 8 byte
// representation. The bytes are appended to the supplied buffer and
// the final buffer is returned.
func EncodeUint64Ascending(b []byte, v uint64) []byte {
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// EncodeUint64Descending encodes the uint64 value so that it sorts in
// reverse order, from largest to smallest.
func EncodeUint64Descending(b []byte, v uint64) []byte {
	return EncodeUint64Ascending(b, ^v)
}

// DecodeUint64Ascending decodes a uint64 from the input buffer, treating
// the input as a big-endian 8 byte uint64 representation. The remainder
// of the input buffer and the decoded uint64 are returned.
func DecodeUint64Ascending(b []byte) ([]byte, uint64, error) {
	if len(b) < 8 {
		return nil, 0, errors.Errorf("insufficient bytes to decode uint64 int value")
	}
	v := (uint64(b[0]) << 56) | (uint64(b[1]) << 48) |
		(uint64(b[2]) << 40) | (uint64(b[3]) << 32) |
		(uint64(b[4]) << 24) | (uint64(b[5]) << 16) |
		(uint64(b[6]) << 8) | uint64(b[7])
	return b[8:], v, nil
}

// DecodeUint64Descending decodes a uint64 value which was encoded
// using EncodeUint64Descending.
func DecodeUint64Descending(b []byte) ([]byte, uint64, error) {
	leftover, v, err := DecodeUint64Ascending(b)
	return leftover, ^v, err
}

// EncodeInt32Ascending encodes a signed int32 as 4 bytes with the sign bit
// flipped, so that negative values sort before positive ones.
func EncodeInt32Ascending(b []byte, v int32) []byte {
	return EncodeUint32Ascending(b, uint32(v)^(1<<31))
}

// DecodeInt32Ascending decodes a value encoded with EncodeInt32Ascending.
func DecodeInt32Ascending(b []byte) ([]byte, int32, error) {
	leftover, v, err := DecodeUint32Ascending(b)
	return leftover, int32(v ^ (1 << 31)), err
}

// EncodeInt64Ascending encodes a signed int64 as 8 bytes with the sign bit
// flipped.
func EncodeInt64Ascending(b []byte, v int64) []byte {
	return EncodeUint64Ascending(b, uint64(v)^(1<<63))
}

// DecodeInt64Ascending decodes a value encoded with EncodeInt64Ascending.
func DecodeInt64Ascending(b []byte) ([]byte, int64, error) {
	leftover, v, err := DecodeUint64Ascending(b)
	return leftover, int64(v ^ (1 << 63)), err
}

// EncodeInt16Ascending encodes a signed int16 as 2 bytes with the sign bit
// flipped.
func EncodeInt16Ascending(b []byte, v int16) []byte {
	return EncodeUint16Ascending(b, uint16(v)^(1<<15))
}

// DecodeInt16Ascending decodes a value encoded with EncodeInt16Ascending.
func DecodeInt16Ascending(b []byte) ([]byte, int16, error) {
	leftover, v, err := DecodeUint16Ascending(b)
	return leftover, int16(v ^ (1 << 15)), err
}

// EncodeBytesAscending encodes the []byte value using an escape-based
// encoding. The encoded value is terminated with the sequence
// "\x00\x01" which is guaranteed to not occur elsewhere in the
// encoded value. The encoded bytes are append to the supplied buffer
// and the resulting buffer is returned.
func EncodeBytesAscending(b []byte, data []byte) []byte {
	b = append(b, bytesMarker)
	for {
		// IndexByte is implemented by the go runtime in assembly and is
		// much faster than looping over the bytes in the slice.
		i := bytes.IndexByte(data, escape)
		if i == -1 {
			break
		}
		b = append(b, data[:i]...)
		b = append(b, escape, escaped00)
		data = data[i+1:]
	}
	b = append(b, data...)
	return append(b, escape, escapedTerm)
}

// DecodeBytesAscending decodes a []byte value from the input buffer
// which was encoded using EncodeBytesAscending. The decoded bytes
// are appended to r. The remainder of the input buffer and the
// decoded []byte are returned.
func DecodeBytesAscending(b []byte, r []byte) ([]byte, []byte, error) {
	if len(b) == 0 || b[0] != bytesMarker {
		return nil, nil, errors.Errorf("did not find marker %#x in buffer %#x", bytesMarker, b)
	}
	b = b[1:]

	for {
		i := bytes.IndexByte(b, escape)
		if i == -1 {
			return nil, nil, errors.Errorf("did not find terminator %#x in buffer %#x", escape, b)
		}
		if i+1 >= len(b) {
			return nil, nil, errors.Errorf("malformed escape in buffer %#x", b)
		}

		v := b[i+1]
		if v == escapedTerm {
			if r == nil {
				r = b[:i]
			} else {
				r = append(r, b[:i]...)
			}
			return b[i+2:], r, nil
		}

		if v == escaped00 {
			r = append(r, b[:i]...)
			r = append(r, escapedFF)
		} else {
			return nil, nil, errors.Errorf("unknown escape sequence: %#x %#x", escape, v)
		}

		b = b[i+2:]
	}
}

// PrefixEnd determines the end key given b as a prefix, that is the key
// that sorts precisely behind all keys starting with prefix: "1" is added
// to the final byte and the carry propagated. An empty prefix has no end
// and returns nil.
func PrefixEnd(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	end := append([]byte(nil), b...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i] = end[i] + 1
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	// This statement will only be reached if the key is already a
	// maximal byte string (i.e. already \xff...).
	return b
}
