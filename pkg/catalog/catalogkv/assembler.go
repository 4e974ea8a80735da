// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package catalogkv converts between catalog rows in the versioned store
// and catpb.TableDefinitions.
package catalogkv

import (
	"bytes"
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/storage"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/iterutil"
	"github.com/cockroachdb/metacat/pkg/util/log"
)

// ErrDanglingLink is returned when an INDEX_TABLE link names an index which
// does not exist at the read timestamp.
var ErrDanglingLink = errors.New("link to missing catalog entity")

// Resolver loads the index entities linked from a table. The metadata
// coordinator resolves through its cache; a nil Resolver makes the
// Assembler build indexes directly from the store.
type Resolver interface {
	ResolveIndex(ctx context.Context, key catalogkeys.Key, asOf hlc.Timestamp) (*catpb.TableDefinition, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, key catalogkeys.Key, asOf hlc.Timestamp) (*catpb.TableDefinition, error)

// ResolveIndex implements Resolver.
func (f ResolverFunc) ResolveIndex(
	ctx context.Context, key catalogkeys.Key, asOf hlc.Timestamp,
) (*catpb.TableDefinition, error) {
	return f(ctx, key, asOf)
}

// Assembler builds table definitions from the rows of the versioned store.
type Assembler struct {
	Store    *storage.Store
	Resolver Resolver
}

// Build returns the definition of the entity at key as of asOf, or nil if
// no row of the entity is visible at asOf.
func (a *Assembler) Build(
	ctx context.Context, key catalogkeys.Key, asOf hlc.Timestamp,
) (*catpb.TableDefinition, error) {
	name, err := key.Name()
	if err != nil {
		return nil, err
	}
	start, end := key.Span()
	var b builder
	err = a.Store.Scan(ctx, storage.ScanOptions{
		Start:        start,
		End:          end,
		MaxTimestamp: asOf,
		Family:       catpb.Family,
	}, func(row storage.Row) error {
		if b.def == nil {
			if !bytes.Equal(row.Key, key) {
				return catpb.Corruptf("%s: child row %q without entity row", name, row.Key)
			}
			return b.header(name, row)
		}
		return b.child(ctx, row)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "building %s", name)
	}
	if b.def == nil {
		return nil, nil
	}
	for _, l := range b.indexLinks {
		idx, err := a.resolve(ctx, l, asOf)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving index %s of %s", l, name)
		}
		if idx == nil || idx.IsTombstone() {
			return nil, errors.Wrapf(ErrDanglingLink, "index %s of %s", l, name)
		}
		b.def.Indexes = append(b.def.Indexes, idx)
	}
	sort.SliceStable(b.def.Columns, func(i, j int) bool {
		return b.def.Columns[i].Position < b.def.Columns[j].Position
	})
	return b.def, nil
}

func (a *Assembler) resolve(
	ctx context.Context, key catalogkeys.Key, asOf hlc.Timestamp,
) (*catpb.TableDefinition, error) {
	if a.Resolver != nil {
		return a.Resolver.ResolveIndex(ctx, key, asOf)
	}
	return a.Build(ctx, key, asOf)
}

// BuildDeleted looks for a deletion of the entity at key committed after
// clientTS. It returns a tombstone carrying the deletion timestamp if the
// newest version of the entity row after clientTS is a deletion marker, and
// nil otherwise.
func (a *Assembler) BuildDeleted(
	ctx context.Context, key catalogkeys.Key, clientTS hlc.Timestamp,
) (*catpb.TableDefinition, error) {
	if clientTS == hlc.MaxTimestamp {
		return nil, nil
	}
	var tombstone *catpb.TableDefinition
	err := a.Store.Scan(ctx, storage.ScanOptions{
		Start:        key,
		End:          append(append([]byte(nil), key...), catalogkeys.Separator),
		MinTimestamp: clientTS.Next(),
		Raw:          true,
	}, func(row storage.Row) error {
		if first := row.Cells[0]; first.Deleted && clientTS.Less(first.Timestamp) {
			tombstone = catpb.NewTombstone(first.Timestamp)
		}
		return iterutil.StopIteration()
	})
	if err != nil {
		return nil, errors.Wrapf(err, "looking for deletion of %s", key)
	}
	return tombstone, nil
}

// builder accumulates the rows of one entity, entity row first.
type builder struct {
	def        *catpb.TableDefinition
	indexLinks []catalogkeys.Key
	hdr        [numHeaderAttrs]*storage.Cell
	col        [numColumnAttrs]*storage.Cell
}

func (b *builder) header(name catalogkeys.Name, row storage.Row) error {
	mergeMatch(row.Cells, headerQualifiers[:], b.hdr[:])
	def := &catpb.TableDefinition{
		TenantID:   string(name.TenantID),
		SchemaName: name.Schema,
		TableName:  name.Table,
	}
	for _, c := range row.Cells {
		def.Timestamp.Forward(c.Timestamp)
	}
	for _, req := range []int{hdrTableType, hdrTableSeqNum, hdrColumnCount} {
		if b.hdr[req] == nil {
			return catpb.Corruptf("%s: missing required attribute %s", name, headerQualifiers[req])
		}
	}
	t, err := catpb.DecodeByte(b.hdr[hdrTableType].Value)
	if err != nil {
		return err
	}
	if def.Type = catpb.TableType(t); !def.Type.Valid() {
		return catpb.Corruptf("%s: invalid table type %q", name, t)
	}
	if def.SequenceNumber, err = catpb.DecodeLong(b.hdr[hdrTableSeqNum].Value); err != nil {
		return err
	}
	count, err := catpb.DecodeInt(b.hdr[hdrColumnCount].Value)
	if err != nil {
		return err
	}
	if count > 0 {
		def.Columns = make([]*catpb.ColumnDefinition, 0, count)
	}
	if c := b.hdr[hdrSaltBuckets]; c != nil {
		v, err := catpb.DecodeInt(c.Value)
		if err != nil {
			return err
		}
		def.SaltBuckets = &v
	}
	if c := b.hdr[hdrViewIndexID]; c != nil {
		v, err := catpb.DecodeShort(c.Value)
		if err != nil {
			return err
		}
		def.ViewIndexID = &v
	}
	if c := b.hdr[hdrIndexState]; c != nil {
		v, err := catpb.DecodeByte(c.Value)
		if err != nil {
			return err
		}
		def.IndexState = catpb.IndexState(v)
	}
	if c := b.hdr[hdrViewType]; c != nil {
		v, err := catpb.DecodeByte(c.Value)
		if err != nil {
			return err
		}
		def.ViewType = catpb.ViewType(v)
	}
	for _, f := range []struct {
		attr int
		dst  *bool
	}{
		{hdrImmutableRows, &def.ImmutableRows},
		{hdrDisableWAL, &def.DisableWAL},
		{hdrMultiTenant, &def.MultiTenant},
	} {
		if c := b.hdr[f.attr]; c != nil {
			if *f.dst, err = catpb.DecodeBool(c.Value); err != nil {
				return err
			}
		}
	}
	def.PKName = stringAttr(b.hdr[hdrPKName])
	def.DataTableName = stringAttr(b.hdr[hdrDataTableName])
	def.DefaultFamily = stringAttr(b.hdr[hdrDefaultColumnFamily])
	def.ViewStatement = stringAttr(b.hdr[hdrViewStatement])
	b.def = def
	return nil
}

func (b *builder) child(ctx context.Context, row storage.Row) error {
	rk, err := catalogkeys.DecodeRowKey(row.Key)
	if err != nil {
		return catpb.Corruptf("%s: %v", b.def.FullName(), err)
	}
	if !rk.Child {
		return catpb.Corruptf("%s: unexpected entity row %s", b.def.FullName(), rk.Name)
	}
	if rk.IsLink() {
		return b.link(ctx, rk, row)
	}
	return b.column(rk, row)
}

func (b *builder) link(ctx context.Context, rk catalogkeys.RowKey, row storage.Row) error {
	c, ok := row.Get(catpb.Family, catpb.LinkTypeQualifier)
	if !ok {
		return catpb.Corruptf("%s: link to %q without link type", b.def.FullName(), rk.Family)
	}
	t, err := catpb.DecodeByte(c.Value)
	if err != nil {
		return err
	}
	switch catpb.LinkType(t) {
	case catpb.LinkTypeIndexTable:
		b.indexLinks = append(b.indexLinks, catalogkeys.MakeKey(rk.TenantID, rk.Schema, rk.Family))
	case catpb.LinkTypePhysicalTable:
		b.def.PhysicalNames = append(b.def.PhysicalNames, rk.Family)
	default:
		log.Warningf(ctx, "%s: ignoring link to %q of unknown type %d", b.def.Name(), rk.Family, t)
	}
	return nil
}

func (b *builder) column(rk catalogkeys.RowKey, row storage.Row) error {
	mergeMatch(row.Cells, columnQualifiers[:], b.col[:])
	for _, req := range []int{colDataType, colNullable, colOrdinalPosition} {
		if b.col[req] == nil {
			return catpb.Corruptf("%s: column %q missing required attribute %s",
				b.def.FullName(), rk.Column, columnQualifiers[req])
		}
	}
	col := &catpb.ColumnDefinition{
		Name:      rk.Column,
		Family:    rk.Family,
		SortOrder: catpb.DefaultSortOrder,
	}
	dt, err := catpb.DecodeInt(b.col[colDataType].Value)
	if err != nil {
		return err
	}
	col.DataType = catpb.DataType(dt)
	if col.Nullable, err = catpb.DecodeNullable(b.col[colNullable].Value); err != nil {
		return err
	}
	pos, err := catpb.DecodeInt(b.col[colOrdinalPosition].Value)
	if err != nil {
		return err
	}
	if pos < 1 {
		return catpb.Corruptf("%s: column %q at position %d", b.def.FullName(), rk.Column, pos)
	}
	col.Position = int(pos) - 1
	for _, f := range []struct {
		attr int
		dst  **int32
	}{
		{colColumnSize, &col.MaxLength},
		{colDecimalDigits, &col.Scale},
		{colArraySize, &col.ArraySize},
	} {
		if c := b.col[f.attr]; c != nil {
			v, err := catpb.DecodeInt(c.Value)
			if err != nil {
				return err
			}
			*f.dst = &v
		}
	}
	if c := b.col[colSortOrder]; c != nil {
		v, err := catpb.DecodeInt(c.Value)
		if err != nil {
			return err
		}
		col.SortOrder = catpb.SortOrder(v)
	}
	// A present cell pins the column even when its value is empty.
	if c := b.col[colViewConstant]; c != nil {
		col.ViewConstant = append([]byte{}, c.Value...)
	}
	// Older clients wrote BINARY for columns which have no declared length.
	if col.MaxLength == nil && col.DataType == catpb.DataTypeBinary {
		col.DataType = catpb.DataTypeVarbinary
	}
	b.def.Columns = append(b.def.Columns, col)
	return nil
}

func stringAttr(c *storage.Cell) string {
	if c == nil {
		return ""
	}
	return string(c.Value)
}
