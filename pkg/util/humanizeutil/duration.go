// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package humanizeutil

import "time"

// Duration formats d for logs, keeping at most two significant digits
// above a millisecond:
//
//	123456ns      -> 123µs
//	12345678ns    -> 12ms
//	12345678912ns -> 12.3s
func Duration(d time.Duration) string {
	for _, r := range []struct {
		below, round time.Duration
	}{
		{time.Millisecond, time.Microsecond},
		{time.Second, time.Millisecond},
		{time.Minute, 100 * time.Millisecond},
	} {
		if d < r.below {
			if d = d.Round(r.round); d == 0 {
				return "0µs"
			}
			return d.String()
		}
	}
	return d.Round(time.Second).String()
}
