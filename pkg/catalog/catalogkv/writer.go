// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catalogkv

import (
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/storage"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
)

// The helpers below build the mutation sets clients submit to the metadata
// coordinator. The first mutation of every set targets the entity row of
// the entity being changed; a put to the entity row of a parent, when there
// is one, comes last. An empty ts leaves the timestamps to the coordinator.

func attr(q, v []byte) storage.ColumnValue {
	return storage.ColumnValue{Family: catpb.Family, Qualifier: q, Value: v}
}

// headerValues encodes the entity row of def. The sequence number and
// column count are passed separately so that callers can bump them.
func headerValues(def *catpb.TableDefinition, seq int64, count int) []storage.ColumnValue {
	vals := []storage.ColumnValue{
		attr(catpb.TableTypeQualifier, []byte{byte(def.Type)}),
		attr(catpb.TableSeqNumQualifier, catpb.EncodeLong(seq)),
		attr(catpb.ColumnCountQualifier, catpb.EncodeInt(int32(count))),
	}
	if def.SaltBuckets != nil {
		vals = append(vals, attr(catpb.SaltBucketsQualifier, catpb.EncodeInt(*def.SaltBuckets)))
	}
	if def.PKName != "" {
		vals = append(vals, attr(catpb.PKNameQualifier, []byte(def.PKName)))
	}
	if def.DataTableName != "" {
		vals = append(vals, attr(catpb.DataTableNameQualifier, []byte(def.DataTableName)))
	}
	if def.IndexState != 0 {
		vals = append(vals, attr(catpb.IndexStateQualifier, []byte{byte(def.IndexState)}))
	}
	if def.ImmutableRows {
		vals = append(vals, attr(catpb.ImmutableRowsQualifier, catpb.EncodeBool(true)))
	}
	if def.DisableWAL {
		vals = append(vals, attr(catpb.DisableWALQualifier, catpb.EncodeBool(true)))
	}
	if def.MultiTenant {
		vals = append(vals, attr(catpb.MultiTenantQualifier, catpb.EncodeBool(true)))
	}
	if def.DefaultFamily != "" {
		vals = append(vals, attr(catpb.DefaultColumnFamilyQualifier, []byte(def.DefaultFamily)))
	}
	if def.ViewStatement != "" {
		vals = append(vals, attr(catpb.ViewStatementQualifier, []byte(def.ViewStatement)))
	}
	if def.ViewType != 0 {
		vals = append(vals, attr(catpb.ViewTypeQualifier, []byte{byte(def.ViewType)}))
	}
	if def.ViewIndexID != nil {
		vals = append(vals, attr(catpb.ViewIndexIDQualifier, catpb.EncodeShort(*def.ViewIndexID)))
	}
	return vals
}

func columnValues(c *catpb.ColumnDefinition) []storage.ColumnValue {
	vals := []storage.ColumnValue{
		attr(catpb.DataTypeQualifier, catpb.EncodeInt(int32(c.DataType))),
		attr(catpb.NullableQualifier, catpb.EncodeNullable(c.Nullable)),
		attr(catpb.OrdinalPositionQualifier, catpb.EncodeInt(int32(c.Position+1))),
	}
	if c.MaxLength != nil {
		vals = append(vals, attr(catpb.ColumnSizeQualifier, catpb.EncodeInt(*c.MaxLength)))
	}
	if c.Scale != nil {
		vals = append(vals, attr(catpb.DecimalDigitsQualifier, catpb.EncodeInt(*c.Scale)))
	}
	if c.SortOrder != 0 {
		vals = append(vals, attr(catpb.SortOrderQualifier, catpb.EncodeInt(int32(c.SortOrder))))
	}
	if c.ArraySize != nil {
		vals = append(vals, attr(catpb.ArraySizeQualifier, catpb.EncodeInt(*c.ArraySize)))
	}
	if c.ViewConstant != nil {
		vals = append(vals, attr(catpb.ViewConstantQualifier, c.ViewConstant))
	}
	return vals
}

func linkMutation(
	key catalogkeys.Key, related string, t catpb.LinkType, ts hlc.Timestamp,
) storage.Mutation {
	return storage.Put(key.LinkKey(related), ts, attr(catpb.LinkTypeQualifier, []byte{byte(t)}))
}

// MakeTableMutations returns the puts creating def at ts: its entity row,
// one row per column and one link row per index and physical table. The
// rows of the linked indexes themselves are not included.
func MakeTableMutations(def *catpb.TableDefinition, ts hlc.Timestamp) []storage.Mutation {
	key := def.Key()
	muts := make([]storage.Mutation, 0, 1+len(def.Columns)+len(def.Indexes)+len(def.PhysicalNames))
	muts = append(muts, storage.Put(key, ts, headerValues(def, def.SequenceNumber, len(def.Columns))...))
	for _, c := range def.Columns {
		muts = append(muts, storage.Put(key.ChildKey(c.Name, c.Family), ts, columnValues(c)...))
	}
	for _, idx := range def.Indexes {
		muts = append(muts, linkMutation(key, idx.TableName, catpb.LinkTypeIndexTable, ts))
	}
	for _, n := range def.PhysicalNames {
		muts = append(muts, linkMutation(key, n, catpb.LinkTypePhysicalTable, ts))
	}
	return muts
}

// bumpHeader returns a put to the entity row of def advancing its sequence
// number and setting its column count.
func bumpHeader(def *catpb.TableDefinition, count int, ts hlc.Timestamp) storage.Mutation {
	return storage.Put(def.Key(), ts,
		attr(catpb.TableTypeQualifier, []byte{byte(def.Type)}),
		attr(catpb.TableSeqNumQualifier, catpb.EncodeLong(def.SequenceNumber+1)),
		attr(catpb.ColumnCountQualifier, catpb.EncodeInt(int32(count))),
	)
}

// MakeCreateIndexMutations returns the mutations creating index on parent:
// the rows of the index, the INDEX_TABLE link from parent and a bump of the
// sequence number of parent.
func MakeCreateIndexMutations(
	parent, index *catpb.TableDefinition, ts hlc.Timestamp,
) []storage.Mutation {
	def := *index
	def.TenantID, def.SchemaName = parent.TenantID, parent.SchemaName
	def.Type = catpb.TableTypeIndex
	def.DataTableName = parent.TableName
	if def.IndexState == 0 {
		def.IndexState = catpb.IndexStateBuilding
	}
	def.Indexes = nil
	muts := MakeTableMutations(&def, ts)
	muts = append(muts,
		linkMutation(parent.Key(), def.TableName, catpb.LinkTypeIndexTable, ts),
		bumpHeader(parent, len(parent.Columns), ts))
	return muts
}

// MakeDropTableMutations returns the mutations dropping def. The
// coordinator deletes the remaining rows of def and of its indexes. When
// def is an index, parent is its table: the link to def is deleted and the
// sequence number of parent is bumped.
func MakeDropTableMutations(
	def, parent *catpb.TableDefinition, ts hlc.Timestamp,
) []storage.Mutation {
	muts := []storage.Mutation{storage.DeleteRow(def.Key(), ts)}
	if parent != nil {
		muts = append(muts,
			storage.DeleteRow(parent.Key().LinkKey(def.TableName), ts),
			bumpHeader(parent, len(parent.Columns), ts))
	}
	return muts
}

// MakeAddColumnMutations returns the mutations appending cols to table.
// Primary key columns are also added to the primary key of every index of
// table.
func MakeAddColumnMutations(
	table *catpb.TableDefinition, cols []*catpb.ColumnDefinition, ts hlc.Timestamp,
) []storage.Mutation {
	key := table.Key()
	muts := []storage.Mutation{bumpHeader(table, len(table.Columns)+len(cols), ts)}
	var pk []*catpb.ColumnDefinition
	for i, c := range cols {
		c := *c
		c.Position = len(table.Columns) + i
		muts = append(muts, storage.Put(key.ChildKey(c.Name, c.Family), ts, columnValues(&c)...))
		if c.IsPK() {
			pk = append(pk, &c)
		}
	}
	if len(pk) == 0 {
		return muts
	}
	for _, idx := range table.Indexes {
		muts = append(muts, bumpHeader(idx, len(idx.Columns)+len(pk), ts))
		for i, c := range pk {
			ic := *c
			ic.Name, ic.Family = catpb.IndexColumnName(c), ""
			ic.Position = len(idx.Columns) + i
			muts = append(muts, storage.Put(idx.Key().ChildKey(ic.Name, ""), ts, columnValues(&ic)...))
		}
	}
	return muts
}

// MakeDropColumnMutations returns the mutations dropping col from table.
// Indexes covering col lose their copy of it; indexes keyed on col are
// dropped by the coordinator.
func MakeDropColumnMutations(
	table *catpb.TableDefinition, col *catpb.ColumnDefinition, ts hlc.Timestamp,
) []storage.Mutation {
	muts := []storage.Mutation{
		bumpHeader(table, len(table.Columns)-1, ts),
		storage.DeleteRow(table.Key().ChildKey(col.Name, col.Family), ts),
	}
	for _, idx := range table.Indexes {
		ic, err := idx.Column(catpb.IndexColumnName(col))
		if err != nil || ic.IsPK() {
			continue
		}
		muts = append(muts,
			bumpHeader(idx, len(idx.Columns)-1, ts),
			storage.DeleteRow(idx.Key().ChildKey(ic.Name, ic.Family), ts))
	}
	return muts
}

// MakeIndexStateMutation returns the put requesting that the index at key
// move to state.
func MakeIndexStateMutation(
	key catalogkeys.Key, state catpb.IndexState, ts hlc.Timestamp,
) storage.Mutation {
	return storage.Put(key, ts,
		attr(catpb.TableTypeQualifier, []byte{byte(catpb.TableTypeIndex)}),
		attr(catpb.IndexStateQualifier, []byte{byte(state)}))
}
