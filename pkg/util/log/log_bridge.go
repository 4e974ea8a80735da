// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"context"
	stdLog "log"
	"regexp"
)

// NewStdLogger creates a *stdLog.Logger that forwards messages to this
// package's logger with the specified severity. It is meant for libraries
// which accept a standard logger, such as net/http.Server.ErrorLog.
func NewStdLogger(severity Severity, prefix string) *stdLog.Logger {
	return stdLog.New(logBridge(severity), prefix, 0)
}

// logBridge provides the Write method that connects Go's standard logs to the
// logs provided by this package.
type logBridge Severity

var ignoredLogMessagesRe = regexp.MustCompile(
	// The HTTP package complains when a client opens a TCP connection
	// and immediately closes it. We don't care.
	`http: TLS handshake error from .*: EOF\s*$`,
)

// Write implements io.Writer.
func (lb logBridge) Write(b []byte) (n int, err error) {
	if ignoredLogMessagesRe.Match(b) {
		return len(b), nil
	}
	msg := string(bytes.TrimRight(b, "\n"))
	logDepth(context.Background(), 3, Severity(lb), "%s", []interface{}{msg})
	return len(b), nil
}
