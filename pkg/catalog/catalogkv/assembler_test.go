// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catalogkv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/storage"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/google/go-cmp/cmp"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
)

func ts(wall int64) hlc.Timestamp { return hlc.Timestamp{WallTime: wall} }

func newTestStore(t *testing.T) *storage.Store {
	s := storage.NewStore(storage.NewInMem(), storage.Options{
		Clock: hlc.NewClock(hlc.NewManualClock(1)),
	})
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func apply(t *testing.T, s *storage.Store, muts []storage.Mutation) {
	_, err := s.Apply(context.Background(), muts)
	require.NoError(t, err)
}

func formatKey(k []byte) string {
	return string(bytes.ReplaceAll(k, []byte{catalogkeys.Separator}, []byte("/")))
}

func formatMutations(buf *strings.Builder, muts []storage.Mutation) {
	for _, m := range muts {
		fmt.Fprintf(buf, "%s %s", m.Kind, formatKey(m.Key))
		for _, v := range m.Values {
			fmt.Fprintf(buf, " %s", v.Qualifier)
		}
		buf.WriteByte('\n')
	}
}

func formatDef(buf *strings.Builder, def *catpb.TableDefinition, indent string) {
	if def == nil {
		fmt.Fprintf(buf, "%s<nil>\n", indent)
		return
	}
	if def.IsTombstone() {
		fmt.Fprintf(buf, "%stombstone @%d\n", indent, def.Timestamp.WallTime)
		return
	}
	fmt.Fprintf(buf, "%s%s %s @%d seq=%d", indent, def.Type, def.Name(), def.Timestamp.WallTime, def.SequenceNumber)
	if def.PKName != "" {
		fmt.Fprintf(buf, " pk=%s", def.PKName)
	}
	if def.SaltBuckets != nil {
		fmt.Fprintf(buf, " salt=%d", *def.SaltBuckets)
	}
	if def.IndexState != 0 {
		fmt.Fprintf(buf, " state=%s", def.IndexState)
	}
	if def.DataTableName != "" {
		fmt.Fprintf(buf, " data-table=%s", def.DataTableName)
	}
	if def.ImmutableRows {
		buf.WriteString(" immutable")
	}
	if def.MultiTenant {
		buf.WriteString(" multi-tenant")
	}
	if def.DisableWAL {
		buf.WriteString(" disable-wal")
	}
	if def.DefaultFamily != "" {
		fmt.Fprintf(buf, " default-family=%s", def.DefaultFamily)
	}
	if def.ViewType != 0 {
		fmt.Fprintf(buf, " view-type=%s", def.ViewType)
	}
	if def.ViewIndexID != nil {
		fmt.Fprintf(buf, " view-index-id=%d", *def.ViewIndexID)
	}
	if def.ViewStatement != "" {
		fmt.Fprintf(buf, " view=%q", def.ViewStatement)
	}
	buf.WriteByte('\n')
	for _, c := range def.Columns {
		name := c.Name
		if c.Family != "" {
			name = c.Family + "." + c.Name
		}
		fmt.Fprintf(buf, "%s  column %s %s", indent, name, c.DataType)
		if c.MaxLength != nil {
			fmt.Fprintf(buf, "(%d", *c.MaxLength)
			if c.Scale != nil {
				fmt.Fprintf(buf, ",%d", *c.Scale)
			}
			buf.WriteByte(')')
		}
		fmt.Fprintf(buf, " pos=%d", c.Position)
		if !c.Nullable {
			buf.WriteString(" not-null")
		}
		if c.SortOrder == catpb.SortOrderDesc {
			buf.WriteString(" desc")
		}
		if c.ArraySize != nil {
			fmt.Fprintf(buf, " array-size=%d", *c.ArraySize)
		}
		if c.ViewConstant != nil {
			fmt.Fprintf(buf, " view-constant=%s", c.ViewConstant)
		}
		buf.WriteByte('\n')
	}
	for _, n := range def.PhysicalNames {
		fmt.Fprintf(buf, "%s  physical %s\n", indent, n)
	}
	for _, idx := range def.Indexes {
		formatDef(buf, idx, indent+"  ")
	}
}

func scanName(t *testing.T, d *datadriven.TestData) catalogkeys.Key {
	var name, tenant string
	d.ScanArgs(t, "name", &name)
	d.MaybeScanArgs(t, "tenant", &tenant)
	schema, table := catalogkeys.SplitFullName(name)
	var tenantID []byte
	if tenant != "" {
		tenantID = []byte(tenant)
	}
	return catalogkeys.MakeKey(tenantID, schema, table)
}

func TestAssembler(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		ctx := context.Background()
		s := newTestStore(t)
		a := &Assembler{Store: s}
		latest := func(key catalogkeys.Key) *catpb.TableDefinition {
			def, err := a.Build(ctx, key, hlc.MaxTimestamp)
			require.NoError(t, err)
			require.NotNil(t, def, "%s", key)
			return def
		}

		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			var buf strings.Builder
			var wall int64
			d.MaybeScanArgs(t, "ts", &wall)
			var muts []storage.Mutation
			switch d.Cmd {
			case "create":
				var def catpb.TableDefinition
				require.NoError(t, json.Unmarshal([]byte(d.Input), &def))
				muts = MakeTableMutations(&def, ts(wall))

			case "create-index":
				var idx catpb.TableDefinition
				require.NoError(t, json.Unmarshal([]byte(d.Input), &idx))
				var parent string
				d.ScanArgs(t, "parent", &parent)
				schema, table := catalogkeys.SplitFullName(parent)
				muts = MakeCreateIndexMutations(latest(catalogkeys.MakeKey(nil, schema, table)), &idx, ts(wall))

			case "add-column":
				var cols []*catpb.ColumnDefinition
				require.NoError(t, json.Unmarshal([]byte(d.Input), &cols))
				muts = MakeAddColumnMutations(latest(scanName(t, d)), cols, ts(wall))

			case "drop":
				// Deletes every row of the entity.
				start, end := scanName(t, d).Span()
				require.NoError(t, s.Scan(ctx, storage.ScanOptions{Start: start, End: end},
					func(r storage.Row) error {
						muts = append(muts, storage.DeleteRow(r.Key, ts(wall)))
						return nil
					}))

			case "build":
				asOf := hlc.MaxTimestamp
				if d.HasArg("as-of") {
					var w int64
					d.ScanArgs(t, "as-of", &w)
					asOf = ts(w)
				}
				def, err := a.Build(ctx, scanName(t, d), asOf)
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}
				formatDef(&buf, def, "")
				return buf.String()

			case "build-deleted":
				var w int64
				d.ScanArgs(t, "client-ts", &w)
				def, err := a.BuildDeleted(ctx, scanName(t, d), ts(w))
				require.NoError(t, err)
				formatDef(&buf, def, "")
				return buf.String()

			default:
				d.Fatalf(t, "unknown command %s", d.Cmd)
			}
			apply(t, s, muts)
			formatMutations(&buf, muts)
			return buf.String()
		})
	})
}

func TestQualifiersSorted(t *testing.T) {
	for _, list := range [][][]byte{headerQualifiers[:], columnQualifiers[:]} {
		require.True(t, sort.SliceIsSorted(list, func(i, j int) bool {
			return bytes.Compare(list[i], list[j]) < 0
		}))
		for _, q := range list {
			require.NotNil(t, q)
		}
	}
}

func TestMergeMatch(t *testing.T) {
	cell := func(fam, q string) storage.Cell {
		return storage.Cell{Family: []byte(fam), Qualifier: []byte(q)}
	}
	cells := []storage.Cell{
		cell("0", "A"), cell("0", "B"), cell("1", "C"), cell("0", "D"), cell("0", "F"), cell("0", "G"),
	}
	expected := [][]byte{[]byte("B"), []byte("C"), []byte("E"), []byte("F"), []byte("H")}
	out := make([]*storage.Cell, len(expected))
	mergeMatch(cells, expected, out)

	var got []string
	for _, c := range out {
		if c == nil {
			got = append(got, "-")
			continue
		}
		got = append(got, string(c.Qualifier))
	}
	require.Equal(t, []string{"B", "-", "-", "F", "-"}, got)
}

// TestRoundTrip checks that building the rows written for a definition
// yields the definition back.
func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := &Assembler{Store: s}

	i32 := func(v int32) *int32 { return &v }
	i16 := func(v int16) *int16 { return &v }
	table := &catpb.TableDefinition{
		TenantID:       "acme",
		SchemaName:     "app",
		TableName:      "orders",
		Type:           catpb.TableTypeTable,
		SequenceNumber: 7,
		PKName:         "pk_orders",
		SaltBuckets:    i32(8),
		ImmutableRows:  true,
		MultiTenant:    true,
		DisableWAL:     true,
		DefaultFamily:  "f",
		ViewIndexID:    i16(-3),
		Columns: []*catpb.ColumnDefinition{
			{Name: "tenant", DataType: catpb.DataTypeVarchar, Position: 0, SortOrder: catpb.SortOrderAsc},
			{Name: "id", DataType: catpb.DataTypeBigInt, Position: 1, SortOrder: catpb.SortOrderDesc},
			{
				Name: "price", Family: "f", DataType: catpb.DataTypeDecimal, MaxLength: i32(12),
				Scale: i32(2), Nullable: true, Position: 2, SortOrder: catpb.SortOrderAsc,
			},
			{
				Name: "tags", Family: "f", DataType: catpb.DataTypeVarchar + catpb.ArrayTypeBase,
				ArraySize: i32(4), Nullable: true, Position: 3, SortOrder: catpb.SortOrderAsc,
			},
			{
				Name: "region", Family: "f", DataType: catpb.DataTypeVarchar, Nullable: true,
				Position: 4, SortOrder: catpb.SortOrderAsc, ViewConstant: []byte("eu"),
			},
			{
				// An empty constant still pins the column.
				Name: "kind", Family: "f", DataType: catpb.DataTypeVarchar, Nullable: true,
				Position: 5, SortOrder: catpb.SortOrderAsc, ViewConstant: []byte{},
			},
		},
		PhysicalNames: []string{"app.orders_v1"},
	}
	apply(t, s, MakeTableMutations(table, ts(10)))

	got, err := a.Build(ctx, table.Key(), hlc.MaxTimestamp)
	require.NoError(t, err)
	want := *table
	want.Timestamp = ts(10)
	if diff := cmp.Diff(&want, got); diff != "" {
		t.Fatalf("unexpected definition (-want +got):\n%s\n%s", diff, pretty.Sprint(got))
	}
	kind, err := got.FamilyColumn("f", "kind")
	require.NoError(t, err)
	require.NotNil(t, kind.ViewConstant)
	require.Empty(t, kind.ViewConstant)
}

func TestBuildCorruption(t *testing.T) {
	ctx := context.Background()
	key := catalogkeys.MakeKey(nil, "s", "t")
	fam := catpb.Family
	hdr := func(skip []byte) []storage.ColumnValue {
		var vals []storage.ColumnValue
		for _, v := range []storage.ColumnValue{
			{Family: fam, Qualifier: catpb.TableTypeQualifier, Value: []byte{byte(catpb.TableTypeTable)}},
			{Family: fam, Qualifier: catpb.TableSeqNumQualifier, Value: catpb.EncodeLong(1)},
			{Family: fam, Qualifier: catpb.ColumnCountQualifier, Value: catpb.EncodeInt(1)},
		} {
			if !bytes.Equal(v.Qualifier, skip) {
				vals = append(vals, v)
			}
		}
		return vals
	}
	col := func(skip []byte) []storage.ColumnValue {
		var vals []storage.ColumnValue
		for _, v := range []storage.ColumnValue{
			{Family: fam, Qualifier: catpb.DataTypeQualifier, Value: catpb.EncodeInt(int32(catpb.DataTypeInteger))},
			{Family: fam, Qualifier: catpb.NullableQualifier, Value: catpb.EncodeNullable(false)},
			{Family: fam, Qualifier: catpb.OrdinalPositionQualifier, Value: catpb.EncodeInt(1)},
		} {
			if !bytes.Equal(v.Qualifier, skip) {
				vals = append(vals, v)
			}
		}
		return vals
	}

	testCases := []struct {
		name string
		muts []storage.Mutation
	}{
		{"missing table type", []storage.Mutation{storage.Put(key, ts(1), hdr(catpb.TableTypeQualifier)...)}},
		{"missing seq num", []storage.Mutation{storage.Put(key, ts(1), hdr(catpb.TableSeqNumQualifier)...)}},
		{"missing column count", []storage.Mutation{storage.Put(key, ts(1), hdr(catpb.ColumnCountQualifier)...)}},
		{"missing data type", []storage.Mutation{
			storage.Put(key, ts(1), hdr(nil)...),
			storage.Put(key.ChildKey("k", ""), ts(1), col(catpb.DataTypeQualifier)...),
		}},
		{"missing position", []storage.Mutation{
			storage.Put(key, ts(1), hdr(nil)...),
			storage.Put(key.ChildKey("k", ""), ts(1), col(catpb.OrdinalPositionQualifier)...),
		}},
		{"short seq num", []storage.Mutation{
			storage.Put(key, ts(1), append(hdr(catpb.TableSeqNumQualifier), storage.ColumnValue{
				Family: fam, Qualifier: catpb.TableSeqNumQualifier, Value: []byte{1},
			})...),
		}},
		{"orphan column", []storage.Mutation{
			storage.Put(key.ChildKey("k", ""), ts(1), col(nil)...),
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t)
			apply(t, s, tc.muts)
			_, err := (&Assembler{Store: s}).Build(ctx, key, hlc.MaxTimestamp)
			require.Error(t, err)
			require.True(t, errors.Is(err, catpb.ErrCorruptCatalog), "%+v", err)
		})
	}
}

func TestBuildLinks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	table := &catpb.TableDefinition{
		SchemaName: "s", TableName: "t", Type: catpb.TableTypeTable,
		Columns: []*catpb.ColumnDefinition{{Name: "k", DataType: catpb.DataTypeInteger}},
	}
	index := &catpb.TableDefinition{
		TableName: "i",
		Columns:   []*catpb.ColumnDefinition{{Name: ":k", DataType: catpb.DataTypeInteger}},
	}
	apply(t, s, MakeTableMutations(table, ts(10)))
	apply(t, s, MakeCreateIndexMutations(table, index, ts(20)))
	// A link of a type this version does not know about is skipped.
	apply(t, s, []storage.Mutation{storage.Put(table.Key().LinkKey("future"), ts(20), storage.ColumnValue{
		Family: catpb.Family, Qualifier: catpb.LinkTypeQualifier, Value: []byte{9},
	})})

	t.Run("resolver", func(t *testing.T) {
		var resolved []string
		a := &Assembler{Store: s}
		a.Resolver = ResolverFunc(func(
			ctx context.Context, key catalogkeys.Key, asOf hlc.Timestamp,
		) (*catpb.TableDefinition, error) {
			resolved = append(resolved, fmt.Sprintf("%s@%d", key, asOf.WallTime))
			return (&Assembler{Store: s}).Build(ctx, key, asOf)
		})
		def, err := a.Build(ctx, table.Key(), ts(25))
		require.NoError(t, err)
		require.Equal(t, []string{"s.i@25"}, resolved)
		require.Len(t, def.Indexes, 1)
		require.Equal(t, catpb.IndexStateBuilding, def.Indexes[0].IndexState)
		require.Equal(t, "t", def.Indexes[0].DataTableName)
		require.Equal(t, int64(1), def.SequenceNumber)
		require.Empty(t, def.PhysicalNames)
	})

	t.Run("resolver error", func(t *testing.T) {
		boom := errors.New("boom")
		a := &Assembler{Store: s, Resolver: ResolverFunc(func(
			context.Context, catalogkeys.Key, hlc.Timestamp,
		) (*catpb.TableDefinition, error) {
			return nil, boom
		})}
		_, err := a.Build(ctx, table.Key(), hlc.MaxTimestamp)
		require.True(t, errors.Is(err, boom))
	})

	t.Run("dangling", func(t *testing.T) {
		idxKey := catalogkeys.MakeKey(nil, "s", "i")
		apply(t, s, []storage.Mutation{
			storage.DeleteRow(idxKey, ts(30)),
			storage.DeleteRow(idxKey.ChildKey(":k", ""), ts(30)),
		})
		_, err := (&Assembler{Store: s}).Build(ctx, table.Key(), hlc.MaxTimestamp)
		require.True(t, errors.Is(err, ErrDanglingLink), "%v", err)
		require.False(t, errors.Is(err, catpb.ErrCorruptCatalog))
	})
}
