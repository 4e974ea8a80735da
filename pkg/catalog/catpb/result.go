// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catpb

import (
	"fmt"

	"github.com/cockroachdb/metacat/pkg/util/hlc"
)

// MutationCode is the outcome of a catalog operation. Every code other than
// MutationCodeSuccess reports a violated precondition, not a fault.
type MutationCode int

// MutationCode values.
const (
	_ MutationCode = iota
	MutationCodeSuccess
	TableNotFound
	TableAlreadyExists
	NewerTableFound
	ParentTableNotFound
	ConcurrentTableMutation
	UnallowedTableMutation
	ColumnAlreadyExists
	ColumnNotFound
	NoPKColumns
	TableNotInRegion
)

var mutationCodeNames = map[MutationCode]string{
	MutationCodeSuccess:     "SUCCESS",
	TableNotFound:           "TABLE_NOT_FOUND",
	TableAlreadyExists:      "TABLE_ALREADY_EXISTS",
	NewerTableFound:         "NEWER_TABLE_FOUND",
	ParentTableNotFound:     "PARENT_TABLE_NOT_FOUND",
	ConcurrentTableMutation: "CONCURRENT_TABLE_MUTATION",
	UnallowedTableMutation:  "UNALLOWED_TABLE_MUTATION",
	ColumnAlreadyExists:     "COLUMN_ALREADY_EXISTS",
	ColumnNotFound:          "COLUMN_NOT_FOUND",
	NoPKColumns:             "NO_PK_COLUMNS",
	TableNotInRegion:        "TABLE_NOT_IN_REGION",
}

func (c MutationCode) String() string {
	if n, ok := mutationCodeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("MutationCode(%d)", int(c))
}

// SafeValue implements redact.SafeValue.
func (MutationCode) SafeValue() {}

// MarshalText implements encoding.TextMarshaler.
func (c MutationCode) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *MutationCode) UnmarshalText(b []byte) (err error) {
	*c, err = enumParse(mutationCodeNames, b, "mutation code")
	return err
}

// MutationResult is the typed result of a catalog operation.
type MutationResult struct {
	Code MutationCode `json:"code"`
	// MutationTime is the commit timestamp of a successful mutation, or the
	// time at which a precondition was checked.
	MutationTime hlc.Timestamp `json:"mutation_time"`
	// Table is the current or conflicting definition, when there is one.
	Table *TableDefinition `json:"table,omitempty"`
	// Column is the offending column of a column operation.
	Column *ColumnDefinition `json:"column,omitempty"`
	// PhysicalNames lists the physical tables a drop made obsolete.
	PhysicalNames []string `json:"physical_names,omitempty"`
}

// MakeResult returns a result without a definition.
func MakeResult(code MutationCode, ts hlc.Timestamp) MutationResult {
	return MutationResult{Code: code, MutationTime: ts}
}

// OK returns whether the operation succeeded.
func (r MutationResult) OK() bool {
	return r.Code == MutationCodeSuccess
}
