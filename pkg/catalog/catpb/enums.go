// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catpb

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// TableType is the kind of a catalog entity. Its value is the byte stored in
// the TABLE_TYPE attribute.
type TableType byte

// TableType values.
const (
	TableTypeSystem TableType = 's'
	TableTypeTable  TableType = 'u'
	TableTypeView   TableType = 'v'
	TableTypeIndex  TableType = 'i'
)

var tableTypeNames = map[TableType]string{
	TableTypeSystem: "SYSTEM",
	TableTypeTable:  "TABLE",
	TableTypeView:   "VIEW",
	TableTypeIndex:  "INDEX",
}

// IndexState is the lifecycle state of an index. Its value is the byte
// stored in the INDEX_STATE attribute.
type IndexState byte

// IndexState values. USABLE and UNUSABLE are only ever requested; they are
// normalized before being stored.
const (
	IndexStateBuilding IndexState = 'b'
	IndexStateUsable   IndexState = 'e'
	IndexStateUnusable IndexState = 'd'
	IndexStateActive   IndexState = 'a'
	IndexStateInactive IndexState = 'i'
	IndexStateDisable  IndexState = 'x'
)

var indexStateNames = map[IndexState]string{
	IndexStateBuilding: "BUILDING",
	IndexStateUsable:   "USABLE",
	IndexStateUnusable: "UNUSABLE",
	IndexStateActive:   "ACTIVE",
	IndexStateInactive: "INACTIVE",
	IndexStateDisable:  "DISABLE",
}

// LinkType is the relationship expressed by a link row.
type LinkType byte

// LinkType values.
const (
	// LinkTypeIndexTable links a table to one of its indexes.
	LinkTypeIndexTable LinkType = 1
	// LinkTypePhysicalTable links a view to the table storing its data.
	LinkTypePhysicalTable LinkType = 2
)

var linkTypeNames = map[LinkType]string{
	LinkTypeIndexTable:    "INDEX_TABLE",
	LinkTypePhysicalTable: "PHYSICAL_TABLE",
}

// ViewType describes how a view maps onto its physical table.
type ViewType byte

// ViewType values.
const (
	ViewTypeMapped    ViewType = 1
	ViewTypeReadOnly  ViewType = 2
	ViewTypeUpdatable ViewType = 3
)

var viewTypeNames = map[ViewType]string{
	ViewTypeMapped:    "MAPPED",
	ViewTypeReadOnly:  "READ_ONLY",
	ViewTypeUpdatable: "UPDATABLE",
}

// SortOrder is the ordering of a column in a key.
type SortOrder int32

// SortOrder values.
const (
	SortOrderDesc SortOrder = 1
	SortOrderAsc  SortOrder = 2
)

var sortOrderNames = map[SortOrder]string{
	SortOrderAsc:  "ASC",
	SortOrderDesc: "DESC",
}

// DefaultSortOrder is used for columns without a SORT_ORDER attribute.
const DefaultSortOrder = SortOrderAsc

// DataType is the SQL type identifier of a column.
type DataType int32

// DataType values, by SQL type id. Array types are offset by
// ArrayTypeBase.
const (
	DataTypeChar      DataType = 1
	DataTypeDecimal   DataType = 3
	DataTypeInteger   DataType = 4
	DataTypeSmallInt  DataType = 5
	DataTypeFloat     DataType = 6
	DataTypeDouble    DataType = 8
	DataTypeVarchar   DataType = 12
	DataTypeBoolean   DataType = 16
	DataTypeDate      DataType = 91
	DataTypeTime      DataType = 92
	DataTypeTimestamp DataType = 93
	DataTypeBinary    DataType = -2
	DataTypeVarbinary DataType = -3
	DataTypeBigInt    DataType = -5
	DataTypeTinyInt   DataType = -6

	ArrayTypeBase DataType = 3000
)

var dataTypeNames = map[DataType]string{
	DataTypeChar:      "CHAR",
	DataTypeDecimal:   "DECIMAL",
	DataTypeInteger:   "INTEGER",
	DataTypeSmallInt:  "SMALLINT",
	DataTypeFloat:     "FLOAT",
	DataTypeDouble:    "DOUBLE",
	DataTypeVarchar:   "VARCHAR",
	DataTypeBoolean:   "BOOLEAN",
	DataTypeDate:      "DATE",
	DataTypeTime:      "TIME",
	DataTypeTimestamp: "TIMESTAMP",
	DataTypeBinary:    "BINARY",
	DataTypeVarbinary: "VARBINARY",
	DataTypeBigInt:    "BIGINT",
	DataTypeTinyInt:   "TINYINT",
}

// IsArray returns whether t is an array type.
func (t DataType) IsArray() bool {
	_, ok := dataTypeNames[t-ArrayTypeBase]
	return ok
}

func (t DataType) String() string {
	if n, ok := dataTypeNames[t]; ok {
		return n
	}
	if t.IsArray() {
		return dataTypeNames[t-ArrayTypeBase] + " ARRAY"
	}
	return fmt.Sprintf("DataType(%d)", int32(t))
}

// SafeValue implements redact.SafeValue.
func (DataType) SafeValue() {}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	if _, ok := dataTypeNames[t]; !ok && !t.IsArray() {
		return nil, errors.Newf("unknown data type %d", int32(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataType) UnmarshalText(b []byte) error {
	s := strings.ToUpper(string(b))
	base, isArray := strings.CutSuffix(s, " ARRAY")
	for v, n := range dataTypeNames {
		if n == base {
			if isArray {
				v += ArrayTypeBase
			}
			*t = v
			return nil
		}
	}
	return errors.Newf("unknown data type %q", b)
}

func enumString[T comparable](names map[T]string, v T, kind string) string {
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("%s(%v)", kind, v)
}

func enumParse[T comparable](names map[T]string, b []byte, kind string) (T, error) {
	s := strings.ToUpper(string(b))
	for v, n := range names {
		if n == s {
			return v, nil
		}
	}
	var zero T
	return zero, errors.Newf("unknown %s %q", redact.SafeString(kind), b)
}

func (t TableType) String() string { return enumString(tableTypeNames, t, "TableType") }

// SafeValue implements redact.SafeValue.
func (TableType) SafeValue() {}

// MarshalText implements encoding.TextMarshaler.
func (t TableType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TableType) UnmarshalText(b []byte) (err error) {
	*t, err = enumParse(tableTypeNames, b, "table type")
	return err
}

// Valid returns whether t is a known table type.
func (t TableType) Valid() bool {
	_, ok := tableTypeNames[t]
	return ok
}

func (s IndexState) String() string { return enumString(indexStateNames, s, "IndexState") }

// SafeValue implements redact.SafeValue.
func (IndexState) SafeValue() {}

// MarshalText implements encoding.TextMarshaler.
func (s IndexState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *IndexState) UnmarshalText(b []byte) (err error) {
	*s, err = enumParse(indexStateNames, b, "index state")
	return err
}

// Valid returns whether s is a known index state.
func (s IndexState) Valid() bool {
	_, ok := indexStateNames[s]
	return ok
}

func (t LinkType) String() string { return enumString(linkTypeNames, t, "LinkType") }

// SafeValue implements redact.SafeValue.
func (LinkType) SafeValue() {}

func (t ViewType) String() string { return enumString(viewTypeNames, t, "ViewType") }

// SafeValue implements redact.SafeValue.
func (ViewType) SafeValue() {}

// MarshalText implements encoding.TextMarshaler.
func (t ViewType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ViewType) UnmarshalText(b []byte) (err error) {
	*t, err = enumParse(viewTypeNames, b, "view type")
	return err
}

func (o SortOrder) String() string { return enumString(sortOrderNames, o, "SortOrder") }

// SafeValue implements redact.SafeValue.
func (SortOrder) SafeValue() {}

// MarshalText implements encoding.TextMarshaler.
func (o SortOrder) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *SortOrder) UnmarshalText(b []byte) (err error) {
	*o, err = enumParse(sortOrderNames, b, "sort order")
	return err
}

// ParseTableType parses a table type by name.
func ParseTableType(s string) (TableType, error) {
	return enumParse(tableTypeNames, []byte(s), "table type")
}

// ParseIndexState parses an index state by name.
func ParseIndexState(s string) (IndexState, error) {
	return enumParse(indexStateNames, []byte(s), "index state")
}
