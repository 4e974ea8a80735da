// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package catalogkeys encodes catalog entity names into sortable row keys.
//
// An entity (table, view or index) is addressed by
//
//	tenantID 0x00 schema 0x00 table
//
// where the tenant segment is empty for entities that are not tenant
// scoped. The rows describing the entity's columns and links sort directly
// behind it:
//
//	tenantID 0x00 schema 0x00 table 0x00 column 0x00 family
//
// Link rows have an empty column segment and carry the name of the related
// entity in the family segment.
package catalogkeys

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/util/encoding"
	"github.com/cockroachdb/redact"
)

// Separator delimits the segments of a catalog key.
const Separator byte = 0x00

// Name identifies a catalog entity.
type Name struct {
	TenantID []byte
	Schema   string
	Table    string
}

// MakeName returns the Name of the entity schema.table owned by tenantID.
func MakeName(tenantID []byte, schema, table string) Name {
	return Name{TenantID: tenantID, Schema: schema, Table: table}
}

// FullName returns the qualified name of the entity: "schema.table", or
// just "table" if the schema is empty.
func (n Name) FullName() string {
	return FullName(n.Schema, n.Table)
}

// Key returns the row key of the entity.
func (n Name) Key() Key {
	return MakeKey(n.TenantID, n.Schema, n.Table)
}

// Validate checks that no segment of n contains the separator byte.
func (n Name) Validate() error {
	if n.Table == "" {
		return errors.New("empty table name")
	}
	for _, seg := range [][]byte{n.TenantID, []byte(n.Schema), []byte(n.Table)} {
		if bytes.IndexByte(seg, Separator) >= 0 {
			return errors.Newf("catalog name %q contains a separator byte", seg)
		}
	}
	return nil
}

// SafeFormat implements the redact.SafeFormatter interface.
func (n Name) SafeFormat(w redact.SafePrinter, _ rune) {
	if len(n.TenantID) > 0 {
		w.Printf("%s/", string(n.TenantID))
	}
	w.Print(n.FullName())
}

func (n Name) String() string {
	return redact.StringWithoutMarkers(n)
}

// FullName returns "schema.table", or just "table" if schema is empty.
func FullName(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

// SplitFullName is the inverse of FullName.
func SplitFullName(fullName string) (schema, table string) {
	if i := strings.IndexByte(fullName, '.'); i >= 0 {
		return fullName[:i], fullName[i+1:]
	}
	return "", fullName
}

// Key is the encoded row key of a catalog entity.
type Key []byte

// MakeKey encodes the row key of schema.table owned by tenantID.
func MakeKey(tenantID []byte, schema, table string) Key {
	k := make([]byte, 0, len(tenantID)+len(schema)+len(table)+2)
	k = append(k, tenantID...)
	k = append(k, Separator)
	k = append(k, schema...)
	k = append(k, Separator)
	k = append(k, table...)
	return k
}

// Name decodes the entity name of k.
func (k Key) Name() (Name, error) {
	segs := bytes.Split(k, []byte{Separator})
	if len(segs) != 3 {
		return Name{}, errors.Newf("malformed catalog key %q: %d segments", []byte(k), len(segs))
	}
	return makeName(segs), nil
}

func makeName(segs [][]byte) Name {
	var tenantID []byte
	if len(segs[0]) > 0 {
		tenantID = append([]byte(nil), segs[0]...)
	}
	return Name{TenantID: tenantID, Schema: string(segs[1]), Table: string(segs[2])}
}

// ChildKey returns the key of the row describing column in family of the
// entity.
func (k Key) ChildKey(column, family string) []byte {
	b := make([]byte, 0, len(k)+len(column)+len(family)+2)
	b = append(b, k...)
	b = append(b, Separator)
	b = append(b, column...)
	b = append(b, Separator)
	b = append(b, family...)
	return b
}

// LinkKey returns the key of the row linking the entity to the entity
// named related.
func (k Key) LinkKey(related string) []byte {
	return k.ChildKey("", related)
}

// Span returns the [start, end) bounds of a scan covering the entity's own
// row and all of its child rows, and nothing else.
func (k Key) Span() (start, end []byte) {
	prefix := append(append([]byte(nil), k...), Separator)
	return []byte(k), encoding.PrefixEnd(prefix)
}

// Equal returns whether k and o are the same key.
func (k Key) Equal(o Key) bool {
	return bytes.Equal(k, o)
}

func (k Key) String() string {
	n, err := k.Name()
	if err != nil {
		return string(bytes.ReplaceAll(k, []byte{Separator}, []byte("/")))
	}
	return n.String()
}

// RowKey is a decoded catalog row key: either an entity's own row or one of
// its child rows.
type RowKey struct {
	Name
	// Child is set for column and link rows.
	Child  bool
	Column string
	Family string
}

// IsLink returns whether the row is a link row.
func (r RowKey) IsLink() bool {
	return r.Child && r.Column == "" && r.Family != ""
}

// DecodeRowKey decodes an entity or child row key.
func DecodeRowKey(b []byte) (RowKey, error) {
	segs := bytes.Split(b, []byte{Separator})
	switch len(segs) {
	case 3:
		return RowKey{Name: makeName(segs)}, nil
	case 5:
		return RowKey{
			Name:   makeName(segs[:3]),
			Child:  true,
			Column: string(segs[3]),
			Family: string(segs[4]),
		}, nil
	}
	return RowKey{}, errors.Newf("malformed catalog row key %q: %d segments", b, len(segs))
}
