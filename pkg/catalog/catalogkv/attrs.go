// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catalogkv

import (
	"bytes"

	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/storage"
)

// Positions of the entity row attributes in headerQualifiers, which is
// sorted by qualifier.
const (
	hdrColumnCount = iota
	hdrDataTableName
	hdrDefaultColumnFamily
	hdrDisableWAL
	hdrImmutableRows
	hdrIndexState
	hdrMultiTenant
	hdrPKName
	hdrSaltBuckets
	hdrTableSeqNum
	hdrTableType
	hdrViewIndexID
	hdrViewStatement
	hdrViewType
	numHeaderAttrs
)

var headerQualifiers = [numHeaderAttrs][]byte{
	hdrColumnCount:         catpb.ColumnCountQualifier,
	hdrDataTableName:       catpb.DataTableNameQualifier,
	hdrDefaultColumnFamily: catpb.DefaultColumnFamilyQualifier,
	hdrDisableWAL:          catpb.DisableWALQualifier,
	hdrImmutableRows:       catpb.ImmutableRowsQualifier,
	hdrIndexState:          catpb.IndexStateQualifier,
	hdrMultiTenant:         catpb.MultiTenantQualifier,
	hdrPKName:              catpb.PKNameQualifier,
	hdrSaltBuckets:         catpb.SaltBucketsQualifier,
	hdrTableSeqNum:         catpb.TableSeqNumQualifier,
	hdrTableType:           catpb.TableTypeQualifier,
	hdrViewIndexID:         catpb.ViewIndexIDQualifier,
	hdrViewStatement:       catpb.ViewStatementQualifier,
	hdrViewType:            catpb.ViewTypeQualifier,
}

// Positions of the column row attributes in columnQualifiers, which is
// sorted by qualifier.
const (
	colArraySize = iota
	colColumnSize
	colDataTableName
	colDataType
	colDecimalDigits
	colNullable
	colOrdinalPosition
	colSortOrder
	colViewConstant
	numColumnAttrs
)

var columnQualifiers = [numColumnAttrs][]byte{
	colArraySize:       catpb.ArraySizeQualifier,
	colColumnSize:      catpb.ColumnSizeQualifier,
	colDataTableName:   catpb.DataTableNameQualifier,
	colDataType:        catpb.DataTypeQualifier,
	colDecimalDigits:   catpb.DecimalDigitsQualifier,
	colNullable:        catpb.NullableQualifier,
	colOrdinalPosition: catpb.OrdinalPositionQualifier,
	colSortOrder:       catpb.SortOrderQualifier,
	colViewConstant:    catpb.ViewConstantQualifier,
}

// mergeMatch matches cells, sorted by qualifier, against expected, also
// sorted by qualifier, and stores the match of expected[j] in out[j]. Cells
// outside the catalog family and unexpected qualifiers are skipped.
func mergeMatch(cells []storage.Cell, expected [][]byte, out []*storage.Cell) {
	for j := range out {
		out[j] = nil
	}
	i, j := 0, 0
	for i < len(cells) && j < len(expected) {
		c := &cells[i]
		if !bytes.Equal(c.Family, catpb.Family) {
			i++
			continue
		}
		switch cmp := bytes.Compare(c.Qualifier, expected[j]); {
		case cmp == 0:
			out[j] = c
			i++
			j++
		case cmp > 0:
			j++
		default:
			i++
		}
	}
}
