// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catpb

// Family is the column family holding every catalog attribute.
var Family = []byte("0")

// Attribute qualifiers of an entity's own row.
var (
	TableTypeQualifier           = []byte("TABLE_TYPE")
	TableSeqNumQualifier         = []byte("TABLE_SEQ_NUM")
	ColumnCountQualifier         = []byte("COLUMN_COUNT")
	SaltBucketsQualifier         = []byte("SALT_BUCKETS")
	PKNameQualifier              = []byte("PK_NAME")
	DataTableNameQualifier       = []byte("DATA_TABLE_NAME")
	IndexStateQualifier          = []byte("INDEX_STATE")
	ImmutableRowsQualifier       = []byte("IMMUTABLE_ROWS")
	ViewStatementQualifier       = []byte("VIEW_STATEMENT")
	DefaultColumnFamilyQualifier = []byte("DEFAULT_COLUMN_FAMILY")
	DisableWALQualifier          = []byte("DISABLE_WAL")
	MultiTenantQualifier         = []byte("MULTI_TENANT")
	ViewTypeQualifier            = []byte("VIEW_TYPE")
	ViewIndexIDQualifier         = []byte("VIEW_INDEX_ID")
)

// Attribute qualifiers of column rows. DATA_TABLE_NAME is shared with the
// entity row.
var (
	DecimalDigitsQualifier   = []byte("DECIMAL_DIGITS")
	ColumnSizeQualifier      = []byte("COLUMN_SIZE")
	NullableQualifier        = []byte("NULLABLE")
	DataTypeQualifier        = []byte("DATA_TYPE")
	OrdinalPositionQualifier = []byte("ORDINAL_POSITION")
	SortOrderQualifier       = []byte("SORT_ORDER")
	ArraySizeQualifier       = []byte("ARRAY_SIZE")
	ViewConstantQualifier    = []byte("VIEW_CONSTANT")
)

// LinkTypeQualifier is the attribute of link rows.
var LinkTypeQualifier = []byte("LINK_TYPE")
