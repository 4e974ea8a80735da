// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catpb

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func testTable() *TableDefinition {
	return &TableDefinition{
		SchemaName: "s",
		TableName:  "t",
		Type:       TableTypeTable,
		Columns: []*ColumnDefinition{
			{Name: "k", DataType: DataTypeVarchar, Position: 0},
			{Name: "k2", DataType: DataTypeInteger, Position: 1},
			{Name: "v", Family: "0", DataType: DataTypeBigInt, Nullable: true, Position: 2},
			{Name: "v", Family: "1", DataType: DataTypeBigInt, Nullable: true, Position: 3},
		},
	}
}

func TestColumnLookups(t *testing.T) {
	tbl := testTable()
	require.Len(t, tbl.PKColumns(), 2)

	c, err := tbl.PKColumn("k2")
	require.NoError(t, err)
	require.Equal(t, 1, c.Position)
	_, err = tbl.PKColumn("v")
	require.True(t, errors.Is(err, ErrColumnNotFound))

	c, err = tbl.FamilyColumn("1", "v")
	require.NoError(t, err)
	require.Equal(t, 3, c.Position)
	_, err = tbl.FamilyColumn("0", "w")
	require.True(t, errors.Is(err, ErrColumnNotFound))
	_, err = tbl.FamilyColumn("2", "v")
	require.True(t, errors.Is(err, ErrFamilyNotFound))

	c, err = tbl.Column("k")
	require.NoError(t, err)
	require.True(t, c.IsPK())
	_, err = tbl.Column("v")
	require.True(t, errors.Is(err, ErrAmbiguousColumn))
	_, err = tbl.Column("nope")
	require.True(t, errors.Is(err, ErrColumnNotFound))

	require.Equal(t, ":k", IndexColumnName(tbl.Columns[0]))
	require.Equal(t, "1:v", IndexColumnName(tbl.Columns[3]))
}

func TestTombstone(t *testing.T) {
	ts := hlc.Timestamp{WallTime: 7}
	tomb := NewTombstone(ts)
	require.True(t, tomb.IsTombstone())
	require.Equal(t, ts, tomb.Timestamp)
	require.False(t, testTable().IsTombstone())
}

func TestNames(t *testing.T) {
	tbl := testTable()
	require.Equal(t, "s.t", tbl.FullName())
	require.Equal(t, []byte("\x00s\x00t"), []byte(tbl.Key()))
	tbl.TenantID = "ten"
	require.Equal(t, []byte("ten\x00s\x00t"), []byte(tbl.Key()))
}

func TestEstimatedSize(t *testing.T) {
	tbl := testTable()
	base := tbl.EstimatedSize()
	require.Greater(t, base, int64(0))
	tbl.Indexes = []*TableDefinition{testTable()}
	require.Greater(t, tbl.EstimatedSize(), base)
	var nilTable *TableDefinition
	require.Zero(t, nilTable.EstimatedSize())
}

func TestEnumJSON(t *testing.T) {
	res := MutationResult{
		Code: TableAlreadyExists,
		Table: &TableDefinition{
			TableName:  "i",
			Type:       TableTypeIndex,
			IndexState: IndexStateActive,
			Columns: []*ColumnDefinition{
				{Name: "c", DataType: DataTypeVarchar + ArrayTypeBase, SortOrder: SortOrderDesc},
			},
		},
	}
	b, err := json.Marshal(res)
	require.NoError(t, err)
	require.Contains(t, string(b), `"code":"TABLE_ALREADY_EXISTS"`)
	require.Contains(t, string(b), `"type":"INDEX"`)
	require.Contains(t, string(b), `"index_state":"ACTIVE"`)
	require.Contains(t, string(b), `"data_type":"VARCHAR ARRAY"`)
	require.Contains(t, string(b), `"sort_order":"DESC"`)

	var back MutationResult
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, res, back)

	_, err = ParseTableType("nope")
	require.Error(t, err)
	st, err := ParseIndexState("usable")
	require.NoError(t, err)
	require.Equal(t, IndexStateUsable, st)
}

func TestValueCodecs(t *testing.T) {
	_, err := DecodeInt([]byte{1})
	require.True(t, errors.Is(err, ErrCorruptCatalog))
	_, err = DecodeLong(nil)
	require.True(t, errors.Is(err, ErrCorruptCatalog))
	_, err = DecodeBool([]byte{1, 2})
	require.True(t, errors.Is(err, ErrCorruptCatalog))
	_, err = DecodeByte(nil)
	require.True(t, errors.Is(err, ErrCorruptCatalog))

	n, err := DecodeNullable(EncodeNullable(true))
	require.NoError(t, err)
	require.True(t, n)
	n, err = DecodeNullable(EncodeNullable(false))
	require.NoError(t, err)
	require.False(t, n)

	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("INTEGER round trips", prop.ForAll(
		func(v int32) bool {
			d, err := DecodeInt(EncodeInt(v))
			return err == nil && d == v
		},
		gen.Int32(),
	))
	properties.Property("LONG round trips", prop.ForAll(
		func(v int64) bool {
			d, err := DecodeLong(EncodeLong(v))
			return err == nil && d == v
		},
		gen.Int64(),
	))
	properties.Property("SMALLINT round trips", prop.ForAll(
		func(v int16) bool {
			d, err := DecodeShort(EncodeShort(v))
			return err == nil && d == v
		},
		gen.Int16(),
	))
	properties.Property("BOOLEAN round trips", prop.ForAll(
		func(v bool) bool {
			d, err := DecodeBool(EncodeBool(v))
			return err == nil && d == v
		},
		gen.Bool(),
	))
	properties.TestingRun(t)
}
