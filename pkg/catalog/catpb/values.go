// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catpb

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/util/encoding"
)

// Attribute values are stored in the same form as the SQL layer stores
// column values: fixed-width big-endian integers with the sign bit flipped,
// one byte booleans, one byte enums and raw UTF-8 strings.

// EncodeInt encodes an INTEGER attribute value.
func EncodeInt(v int32) []byte {
	return encoding.EncodeInt32Ascending(nil, v)
}

// DecodeInt decodes an INTEGER attribute value.
func DecodeInt(b []byte) (int32, error) {
	if len(b) != 4 {
		return 0, Corruptf("INTEGER value of length %d", len(b))
	}
	_, v, err := encoding.DecodeInt32Ascending(b)
	return v, err
}

// EncodeLong encodes a LONG attribute value.
func EncodeLong(v int64) []byte {
	return encoding.EncodeInt64Ascending(nil, v)
}

// DecodeLong decodes a LONG attribute value.
func DecodeLong(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, Corruptf("LONG value of length %d", len(b))
	}
	_, v, err := encoding.DecodeInt64Ascending(b)
	return v, err
}

// EncodeShort encodes a SMALLINT attribute value.
func EncodeShort(v int16) []byte {
	return encoding.EncodeInt16Ascending(nil, v)
}

// DecodeShort decodes a SMALLINT attribute value.
func DecodeShort(b []byte) (int16, error) {
	if len(b) != 2 {
		return 0, Corruptf("SMALLINT value of length %d", len(b))
	}
	_, v, err := encoding.DecodeInt16Ascending(b)
	return v, err
}

// EncodeBool encodes a BOOLEAN attribute value.
func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeBool decodes a BOOLEAN attribute value.
func DecodeBool(b []byte) (bool, error) {
	if len(b) != 1 {
		return false, Corruptf("BOOLEAN value of length %d", len(b))
	}
	return b[0] != 0, nil
}

// DecodeByte decodes a single byte enum attribute value.
func DecodeByte(b []byte) (byte, error) {
	if len(b) == 0 {
		return 0, Corruptf("empty enum value")
	}
	return b[0], nil
}

// Nullability as stored in the NULLABLE attribute.
const (
	columnNoNulls  int32 = 0
	columnNullable int32 = 1
)

// EncodeNullable encodes the NULLABLE attribute.
func EncodeNullable(nullable bool) []byte {
	if nullable {
		return EncodeInt(columnNullable)
	}
	return EncodeInt(columnNoNulls)
}

// DecodeNullable decodes the NULLABLE attribute.
func DecodeNullable(b []byte) (bool, error) {
	v, err := DecodeInt(b)
	return v != columnNoNulls, err
}

// Corruptf returns an error marked ErrCorruptCatalog.
func Corruptf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrCorruptCatalog)
}
