// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
)

// FormatWithContextTags formats the string and prepends the context tags in
// brackets. Arguments not marked safe are enclosed in redaction markers.
func FormatWithContextTags(
	ctx context.Context, format string, args ...interface{},
) redact.RedactableString {
	var b redact.StringBuilder
	if formatTags(ctx, &b) {
		b.SafeRune(' ')
	}
	if len(args) == 0 {
		b.Print(redact.Safe(format))
	} else {
		b.Printf(format, args...)
	}
	return b.RedactableString()
}

// formatTags writes the context tags of ctx into b as "[k1=v1,k2]". It
// returns false when the context carries no tags.
func formatTags(ctx context.Context, b *redact.StringBuilder) bool {
	tags := logtags.FromContext(ctx)
	if tags == nil || len(tags.Get()) == 0 {
		return false
	}
	b.SafeRune('[')
	for i, t := range tags.Get() {
		if i > 0 {
			b.SafeRune(',')
		}
		b.SafeString(redact.SafeString(t.Key()))
		if v := t.Value(); v != nil {
			// Single-letter keys render as "n1".
			if len(t.Key()) > 1 {
				b.SafeRune('=')
			}
			b.Print(v)
		}
	}
	b.SafeRune(']')
	return true
}
