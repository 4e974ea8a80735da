// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package catpb defines the catalog's data model: table and column
// definitions, the enumerations stored in catalog rows, their value codecs,
// and the typed results of catalog operations.
package catpb

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
)

var (
	// ErrCorruptCatalog marks errors caused by stored catalog data violating
	// its invariants, e.g. a missing required attribute.
	ErrCorruptCatalog = errors.New("corrupt catalog data")
	// ErrColumnNotFound is returned by column lookups which find nothing.
	ErrColumnNotFound = errors.New("column not found")
	// ErrFamilyNotFound is returned by lookups of a family with no columns.
	ErrFamilyNotFound = errors.New("column family not found")
	// ErrAmbiguousColumn is returned by name lookups matching several columns.
	ErrAmbiguousColumn = errors.New("ambiguous column name")
)

// TableDefinition is an immutable snapshot of a catalog entity as of
// Timestamp. The sequence number, timestamp and column set of a definition
// always come from the same multi-version read.
type TableDefinition struct {
	TenantID       string              `json:"tenant_id,omitempty"`
	SchemaName     string              `json:"schema_name"`
	TableName      string              `json:"table_name"`
	Type           TableType           `json:"type,omitempty"`
	Timestamp      hlc.Timestamp       `json:"timestamp"`
	SequenceNumber int64               `json:"sequence_number"`
	PKName         string              `json:"pk_name,omitempty"`
	SaltBuckets    *int32              `json:"salt_buckets,omitempty"`
	Columns        []*ColumnDefinition `json:"columns,omitempty"`
	// Indexes are resolved from INDEX_TABLE links.
	Indexes []*TableDefinition `json:"indexes,omitempty"`
	// PhysicalNames are resolved from PHYSICAL_TABLE links.
	PhysicalNames []string `json:"physical_names,omitempty"`
	// DataTableName and IndexState are only set on indexes.
	DataTableName string     `json:"data_table_name,omitempty"`
	IndexState    IndexState `json:"index_state,omitempty"`
	ImmutableRows bool       `json:"immutable_rows,omitempty"`
	MultiTenant   bool       `json:"multi_tenant,omitempty"`
	DefaultFamily string     `json:"default_family,omitempty"`
	ViewStatement string     `json:"view_statement,omitempty"`
	ViewType      ViewType   `json:"view_type,omitempty"`
	ViewIndexID   *int16     `json:"view_index_id,omitempty"`
	DisableWAL    bool       `json:"disable_wal,omitempty"`
}

// ColumnDefinition describes one column of a table.
type ColumnDefinition struct {
	Name string `json:"name"`
	// Family is empty for primary key columns.
	Family    string   `json:"family,omitempty"`
	DataType  DataType `json:"data_type"`
	MaxLength *int32   `json:"max_length,omitempty"`
	Scale     *int32   `json:"scale,omitempty"`
	Nullable  bool     `json:"nullable"`
	// Position is 0-based; it is stored 1-based.
	Position  int       `json:"position"`
	SortOrder SortOrder `json:"sort_order,omitempty"`
	ArraySize *int32    `json:"array_size,omitempty"`
	// ViewConstant is set on columns pinned by the WHERE clause of a view.
	ViewConstant []byte `json:"view_constant,omitempty"`
}

// NewTombstone returns the marker of an entity deleted at ts.
func NewTombstone(ts hlc.Timestamp) *TableDefinition {
	return &TableDefinition{Timestamp: ts}
}

// IsTombstone returns whether t marks a deleted entity.
func (t *TableDefinition) IsTombstone() bool {
	return t.TableName == ""
}

// Name returns the catalog name of the entity.
func (t *TableDefinition) Name() catalogkeys.Name {
	var tenantID []byte
	if t.TenantID != "" {
		tenantID = []byte(t.TenantID)
	}
	return catalogkeys.MakeName(tenantID, t.SchemaName, t.TableName)
}

// Key returns the row key of the entity.
func (t *TableDefinition) Key() catalogkeys.Key {
	return t.Name().Key()
}

// FullName returns "schema.table", or "table" with an empty schema.
func (t *TableDefinition) FullName() string {
	return catalogkeys.FullName(t.SchemaName, t.TableName)
}

// IsPK returns whether c is a primary key column.
func (c *ColumnDefinition) IsPK() bool {
	return c.Family == ""
}

// IndexColumnName returns the name under which an index stores the data
// column c: "family:name", with an empty family for primary key columns.
func IndexColumnName(c *ColumnDefinition) string {
	return c.Family + ":" + c.Name
}

// PKColumns returns the primary key columns in position order.
func (t *TableDefinition) PKColumns() []*ColumnDefinition {
	var pk []*ColumnDefinition
	for _, c := range t.Columns {
		if c.IsPK() {
			pk = append(pk, c)
		}
	}
	return pk
}

// PKColumn returns the primary key column called name.
func (t *TableDefinition) PKColumn(name string) (*ColumnDefinition, error) {
	for _, c := range t.Columns {
		if c.IsPK() && c.Name == name {
			return c, nil
		}
	}
	return nil, errors.Wrapf(ErrColumnNotFound, "primary key column %q of %s", name, t.FullName())
}

// FamilyColumn returns the column called name in family. It fails with
// ErrFamilyNotFound if no column of the table is in family.
func (t *TableDefinition) FamilyColumn(family, name string) (*ColumnDefinition, error) {
	found := false
	for _, c := range t.Columns {
		if c.Family != family {
			continue
		}
		found = true
		if c.Name == name {
			return c, nil
		}
	}
	if !found {
		return nil, errors.Wrapf(ErrFamilyNotFound, "family %q of %s", family, t.FullName())
	}
	return nil, errors.Wrapf(ErrColumnNotFound, "column %q.%q of %s", family, name, t.FullName())
}

// Column returns the column called name regardless of family. It fails with
// ErrAmbiguousColumn if several families have such a column.
func (t *TableDefinition) Column(name string) (*ColumnDefinition, error) {
	var res *ColumnDefinition
	for _, c := range t.Columns {
		if c.Name != name {
			continue
		}
		if res != nil {
			return nil, errors.Wrapf(ErrAmbiguousColumn, "column %q of %s", name, t.FullName())
		}
		res = c
	}
	if res == nil {
		return nil, errors.Wrapf(ErrColumnNotFound, "column %q of %s", name, t.FullName())
	}
	return res, nil
}

// EstimatedSize returns the approximate number of heap bytes retained by t,
// including its resolved indexes.
func (t *TableDefinition) EstimatedSize() int64 {
	if t == nil {
		return 0
	}
	size := int64(unsafe.Sizeof(*t)) +
		int64(len(t.TenantID)+len(t.SchemaName)+len(t.TableName)+len(t.PKName)) +
		int64(len(t.DataTableName)+len(t.DefaultFamily)+len(t.ViewStatement))
	for _, c := range t.Columns {
		size += int64(unsafe.Sizeof(*c)) + int64(len(c.Name)+len(c.Family)+len(c.ViewConstant))
	}
	for _, n := range t.PhysicalNames {
		size += int64(unsafe.Sizeof(n)) + int64(len(n))
	}
	for _, idx := range t.Indexes {
		size += idx.EstimatedSize()
	}
	return size
}
