// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hlc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Timestamp is a hybrid logical clock timestamp. WallTime is nanoseconds
// since the unix epoch; Logical orders events which share a WallTime.
type Timestamp struct {
	WallTime int64 `json:"wall_time"`
	Logical  int32 `json:"logical,omitempty"`
}

// MaxTimestamp is the largest possible timestamp. Reads at MaxTimestamp see
// the latest version of every cell.
var MaxTimestamp = Timestamp{WallTime: math.MaxInt64, Logical: math.MaxInt32}

// MinTimestamp is the smallest non-empty timestamp.
var MinTimestamp = Timestamp{WallTime: 0, Logical: 1}

// IsEmpty returns true if t is the zero timestamp.
func (t Timestamp) IsEmpty() bool {
	return t == Timestamp{}
}

// Less returns whether t precedes s.
func (t Timestamp) Less(s Timestamp) bool {
	return t.WallTime < s.WallTime || (t.WallTime == s.WallTime && t.Logical < s.Logical)
}

// LessEq returns whether t precedes or equals s.
func (t Timestamp) LessEq(s Timestamp) bool {
	return t.WallTime < s.WallTime || (t.WallTime == s.WallTime && t.Logical <= s.Logical)
}

// Compare returns -1 if t < s, 0 if t == s and 1 if t > s.
func (t Timestamp) Compare(s Timestamp) int {
	switch {
	case t.Less(s):
		return -1
	case s.Less(t):
		return 1
	default:
		return 0
	}
}

// Next returns the timestamp with the next later logical component.
func (t Timestamp) Next() Timestamp {
	if t.Logical == math.MaxInt32 {
		if t.WallTime == math.MaxInt64 {
			panic("cannot take the next value of a max timestamp")
		}
		return Timestamp{WallTime: t.WallTime + 1}
	}
	return Timestamp{WallTime: t.WallTime, Logical: t.Logical + 1}
}

// Prev returns the next earliest timestamp.
func (t Timestamp) Prev() Timestamp {
	if t.Logical > 0 {
		return Timestamp{WallTime: t.WallTime, Logical: t.Logical - 1}
	} else if t.WallTime > 0 {
		return Timestamp{WallTime: t.WallTime - 1, Logical: math.MaxInt32}
	}
	panic("cannot take the previous value of a zero timestamp")
}

// Forward replaces the receiver with the argument if that moves it forwards
// in time. Returns true if the timestamp was adjusted.
func (t *Timestamp) Forward(s Timestamp) bool {
	if t.Less(s) {
		*t = s
		return true
	}
	return false
}

// String implements the fmt.Stringer interface.
func (t Timestamp) String() string {
	return redact.StringWithoutMarkers(t)
}

// SafeFormat implements the redact.SafeFormatter interface.
func (t Timestamp) SafeFormat(w redact.SafePrinter, _ rune) {
	if t == MaxTimestamp {
		w.SafeString("max")
		return
	}
	w.Printf("%d.%09d,%d", redact.Safe(t.WallTime/1e9), redact.Safe(t.WallTime%1e9), redact.Safe(t.Logical))
}

var _ fmt.Stringer = Timestamp{}

// ParseTimestamp parses the String form of a timestamp: "max", or
// "<seconds>.<nanoseconds>[,<logical>]".
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "max" {
		return MaxTimestamp, nil
	}
	wall, logical, hasLogical := strings.Cut(s, ",")
	secs, nanos, hasNanos := strings.Cut(wall, ".")
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return Timestamp{}, errors.Wrapf(err, "parsing timestamp %q", s)
	}
	var ts Timestamp
	ts.WallTime = sec * 1e9
	if hasNanos {
		if len(nanos) != 9 {
			return Timestamp{}, errors.Newf("parsing timestamp %q: want 9 fractional digits", s)
		}
		ns, err := strconv.ParseInt(nanos, 10, 64)
		if err != nil {
			return Timestamp{}, errors.Wrapf(err, "parsing timestamp %q", s)
		}
		ts.WallTime += ns
	}
	if hasLogical {
		l, err := strconv.ParseInt(logical, 10, 32)
		if err != nil {
			return Timestamp{}, errors.Wrapf(err, "parsing timestamp %q", s)
		}
		ts.Logical = int32(l)
	}
	return ts, nil
}
