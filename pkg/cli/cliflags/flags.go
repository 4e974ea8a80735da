// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cliflags describes the command-line flags of the metacat binary.
package cliflags

import "strings"

// FlagInfo contains the static information for a CLI flag and helper
// to format the description.
type FlagInfo struct {
	// Name of the flag as used on the command line.
	Name string

	// Shorthand is the short form of the flag (optional).
	Shorthand string

	// EnvVar is the name of the environment variable through which the flag
	// can also be set (optional).
	EnvVar string

	// Description of the flag.
	Description string
}

// Usage returns a formatted usage string for the flag.
func (f FlagInfo) Usage() string {
	s := strings.TrimSpace(f.Description)
	if f.EnvVar != "" {
		s += "\nEnvironment variable: " + f.EnvVar
	}
	return s
}

// Flags of the start command.
var (
	Config = FlagInfo{
		Name:        "config",
		Shorthand:   "c",
		EnvVar:      "METACAT_CONFIG",
		Description: `Path to a YAML configuration file. Flags override its values.`,
	}

	ListenAddr = FlagInfo{
		Name:        "listen-addr",
		EnvVar:      "METACAT_LISTEN_ADDR",
		Description: `Address on which the catalog API is served.`,
	}

	Store = FlagInfo{
		Name:        "store",
		Shorthand:   "s",
		EnvVar:      "METACAT_STORE",
		Description: `Directory of the catalog store.`,
	}

	InMemory = FlagInfo{
		Name:        "in-memory",
		Description: `Keep the catalog in memory. Its contents are lost on shutdown.`,
	}

	CacheSize = FlagInfo{
		Name:        "cache",
		EnvVar:      "METACAT_CACHE",
		Description: `Memory budget of the definition cache, e.g. 64MiB.`,
	}

	RegionStart = FlagInfo{
		Name: "region-start",
		Description: `
Inclusive start of the served key range, written as tenant/schema with
'/' separating key segments.`,
	}

	RegionEnd = FlagInfo{
		Name:        "region-end",
		Description: `Exclusive end of the served key range. Empty is unbounded.`,
	}

	LockTimeout = FlagInfo{
		Name:        "lock-timeout",
		Description: `Maximum time an operation waits for a row lock.`,
	}
)

// Logging flags, accepted by every command.
var (
	LogLevel = FlagInfo{
		Name:        "log-level",
		EnvVar:      "METACAT_LOG_LEVEL",
		Description: `Minimum severity logged: info, warning or error.`,
	}

	LogFormat = FlagInfo{
		Name:        "log-format",
		Description: `Log output format: console or json.`,
	}

	Verbosity = FlagInfo{
		Name:        "verbosity",
		Shorthand:   "v",
		Description: `Verbosity of trace events written to the log.`,
	}
)

// Flags of the debug commands.
var (
	ScanStart = FlagInfo{
		Name:        "start",
		Description: `First key scanned, with '/' separating key segments.`,
	}

	ScanEnd = FlagInfo{
		Name:        "end",
		Description: `Key at which the scan stops, with '/' separating key segments.`,
	}

	ScanLimit = FlagInfo{
		Name:        "limit",
		Description: `Maximum number of rows printed. Zero is unlimited.`,
	}
)
