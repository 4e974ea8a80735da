// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package build reports the version information linked into the binary.
package build

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// TimeFormat is the reference format for build.Time. Make sure it stays in sync
// with the string passed to the linker.
const TimeFormat = "2006/01/02 15:04:05"

var (
	// These variables are initialized via the linker -X flag when compiling
	// release binaries.
	tag      = "unknown" // Tag of this build (git describe --tags w/ optional '-dirty' suffix)
	utcTime  string      // Build time in UTC (year/month/day hour:min:sec)
	rev      string      // SHA-1 of this build (git rev-parse)
	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
	typ      string // Type of this build: <empty>, "development", or "release"
)

// Info describes the running binary.
type Info struct {
	GoVersion string `json:"go_version"`
	Tag       string `json:"tag"`
	Time      string `json:"time,omitempty"`
	Revision  string `json:"revision,omitempty"`
	Platform  string `json:"platform"`
	Type      string `json:"type,omitempty"`
}

// IsRelease returns true if the binary was produced by a "release" build.
func IsRelease() bool {
	return typ == "release"
}

// parseTag returns the major and minor version of a "vX.Y.Z[-suffix]" tag.
func parseTag(t string) (major, minor int, ok bool) {
	if !strings.HasPrefix(t, "v") {
		return 0, 0, false
	}
	parts := strings.SplitN(t[1:], ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	var err error
	if major, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, false
	}
	if minor, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

// VersionPrefix returns the version prefix of the current build.
func VersionPrefix() string {
	major, minor, ok := parseTag(tag)
	if !ok {
		return "dev"
	}
	return fmt.Sprintf("v%d.%d", major, minor)
}

// Short returns a pretty printed build and version summary.
func (b Info) Short() string {
	return fmt.Sprintf("metacat %s (%s, built %s, %s)", b.Tag, b.Platform, b.Time, b.GoVersion)
}

// GoTime parses the utcTime string and returns a time.Time.
func (b Info) GoTime() time.Time {
	val, err := time.Parse(TimeFormat, b.Time)
	if err != nil {
		return time.Time{}
	}
	return val
}

// GetInfo returns an Info struct populated with the build information.
func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Tag:       tag,
		Time:      utcTime,
		Revision:  rev,
		Platform:  platform,
		Type:      typ,
	}
}

// TestingOverrideTag allows tests to override the build tag.
func TestingOverrideTag(t string) func() {
	prev := tag
	tag = t
	return func() { tag = prev }
}
