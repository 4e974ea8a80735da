// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package humanizeutil parses and prints byte sizes and durations in the
// forms operators write in configuration files and flags.
package humanizeutil

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// IBytes formats value with binary (KiB, MiB, ...) suffixes.
func IBytes(value int64) string {
	if value < 0 {
		return "-" + humanize.IBytes(uint64(-value))
	}
	return humanize.IBytes(uint64(value))
}

// ParseBytes parses sizes such as "64MiB", "1.5 GB" or "4096". Negative
// sizes are accepted.
func ParseBytes(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("parsing \"\": invalid syntax")
	}
	neg := s[0] == '-'
	if neg {
		s = s[1:]
	}
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing size %q", s)
	}
	if v > math.MaxInt64 {
		return 0, errors.Newf("size %q too large", s)
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}

// Bytes is a byte size which reads from and writes to YAML and flags in
// human-readable form.
type Bytes int64

func (b Bytes) String() string { return IBytes(int64(b)) }

// UnmarshalYAML implements yaml.Unmarshaler. Plain integers are accepted.
func (b *Bytes) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := ParseBytes(s)
	if err != nil {
		return errors.Wrapf(err, "line %d", n.Line)
	}
	*b = Bytes(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b Bytes) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// BytesValue is a pflag.Value setting an int64 from a human-readable size.
type BytesValue struct {
	val   *int64
	isSet bool
}

var _ pflag.Value = &BytesValue{}

// NewBytesValue returns a BytesValue writing to val.
func NewBytesValue(val *int64) *BytesValue {
	return &BytesValue{val: val}
}

// Set implements pflag.Value.
func (b *BytesValue) Set(s string) error {
	v, err := ParseBytes(s)
	if err != nil {
		return err
	}
	*b.val = v
	b.isSet = true
	return nil
}

// Type implements pflag.Value.
func (b *BytesValue) Type() string { return "bytes" }

// String implements pflag.Value.
func (b *BytesValue) String() string {
	if b.val == nil {
		return IBytes(0)
	}
	return IBytes(*b.val)
}

// IsSet returns whether Set succeeded at least once.
func (b *BytesValue) IsSet() bool { return b.isSet }
