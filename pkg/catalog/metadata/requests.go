// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metadata

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/storage"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
)

// ErrInvalidRequest marks requests which cannot be interpreted, as opposed
// to requests whose preconditions do not hold.
var ErrInvalidRequest = errors.New("invalid catalog request")

func invalidf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidRequest)
}

// GetTableRequest reads the definition of an entity.
type GetTableRequest struct {
	Key catalogkeys.Key
	// TableTimestamp is the timestamp of the definition the caller already
	// has. The definition is only returned when it differs.
	TableTimestamp hlc.Timestamp
	// ClientTimestamp is the snapshot to read at. Empty reads the latest
	// version.
	ClientTimestamp hlc.Timestamp
}

// CreateTableRequest creates a table, view or index.
type CreateTableRequest struct {
	// ParentKey is the key of the data table when an index is created.
	ParentKey catalogkeys.Key
	Key       catalogkeys.Key
	// ExpectedParentSeqNum is the sequence number the parent must be at.
	ExpectedParentSeqNum int64
	Mutations            []storage.Mutation
}

// DropTableRequest drops an entity and, for tables, its indexes.
type DropTableRequest struct {
	// ParentKey is the key of the data table when an index is dropped.
	ParentKey catalogkeys.Key
	Key       catalogkeys.Key
	// Type is the type the caller believes the entity has.
	Type      catpb.TableType
	Mutations []storage.Mutation
}

// ColumnRequest adds columns to or drops columns from a table or view.
type ColumnRequest struct {
	Key catalogkeys.Key
	// ExpectedSeqNum is the sequence number the entity must be at: one less
	// than the sequence number written by the header mutation.
	ExpectedSeqNum int64
	// Type is the entity type written by the header mutation.
	Type      catpb.TableType
	Mutations []storage.Mutation
}

// UpdateIndexStateRequest moves an index to a new state.
type UpdateIndexStateRequest struct {
	Key catalogkeys.Key
	// State is the requested state, carried by the INDEX_STATE value of the
	// first mutation.
	State     catpb.IndexState
	Mutations []storage.Mutation
}

// entityKey returns the key of the entity row targeted by the first
// mutation.
func entityKey(muts []storage.Mutation) (catalogkeys.Key, error) {
	if len(muts) == 0 {
		return nil, invalidf("no mutations")
	}
	rk, err := catalogkeys.DecodeRowKey(muts[0].Key)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidRequest)
	}
	if rk.Child {
		return nil, invalidf("first mutation targets child row %q", muts[0].Key)
	}
	return rk.Key(), nil
}

// parentHeader returns the trailing put to the entity row of another
// entity, which names the parent of the entity being changed.
func parentHeader(muts []storage.Mutation) (storage.Mutation, bool) {
	if len(muts) < 2 {
		return storage.Mutation{}, false
	}
	last := muts[len(muts)-1]
	if last.Kind != storage.MutationPut || bytes.Equal(last.Key, muts[0].Key) {
		return storage.Mutation{}, false
	}
	rk, err := catalogkeys.DecodeRowKey(last.Key)
	if err != nil || rk.Child {
		return storage.Mutation{}, false
	}
	return last, true
}

func seqNum(m storage.Mutation) (int64, error) {
	v, ok := m.Get(catpb.Family, catpb.TableSeqNumQualifier)
	if !ok {
		return 0, invalidf("mutation of %q lacks %s", m.Key, catpb.TableSeqNumQualifier)
	}
	seq, err := catpb.DecodeLong(v)
	if err != nil {
		return 0, errors.Mark(err, ErrInvalidRequest)
	}
	return seq, nil
}

func tableType(m storage.Mutation) (catpb.TableType, error) {
	v, ok := m.Get(catpb.Family, catpb.TableTypeQualifier)
	if !ok || len(v) != 1 {
		return 0, invalidf("mutation of %q lacks %s", m.Key, catpb.TableTypeQualifier)
	}
	t := catpb.TableType(v[0])
	if !t.Valid() {
		return 0, invalidf("mutation of %q: invalid table type %q", m.Key, v)
	}
	return t, nil
}

// MakeCreateTableRequest derives a CreateTableRequest from the mutations
// written by catalogkv.MakeTableMutations or MakeCreateIndexMutations.
func MakeCreateTableRequest(muts []storage.Mutation) (CreateTableRequest, error) {
	key, err := entityKey(muts)
	if err != nil {
		return CreateTableRequest{}, err
	}
	req := CreateTableRequest{Key: key, Mutations: muts}
	if parent, ok := parentHeader(muts); ok {
		seq, err := seqNum(parent)
		if err != nil {
			return CreateTableRequest{}, err
		}
		req.ParentKey = parent.Key
		req.ExpectedParentSeqNum = seq - 1
	}
	return req, nil
}

// MakeDropTableRequest derives a DropTableRequest from the mutations written
// by catalogkv.MakeDropTableMutations. The type of a deleted entity is not
// carried by its mutations and is passed explicitly.
func MakeDropTableRequest(
	muts []storage.Mutation, typ catpb.TableType,
) (DropTableRequest, error) {
	key, err := entityKey(muts)
	if err != nil {
		return DropTableRequest{}, err
	}
	req := DropTableRequest{Key: key, Type: typ, Mutations: muts}
	if parent, ok := parentHeader(muts); ok {
		req.ParentKey = parent.Key
	}
	return req, nil
}

// MakeColumnRequest derives a ColumnRequest from the mutations written by
// catalogkv.MakeAddColumnMutations or MakeDropColumnMutations.
func MakeColumnRequest(muts []storage.Mutation) (ColumnRequest, error) {
	key, err := entityKey(muts)
	if err != nil {
		return ColumnRequest{}, err
	}
	seq, err := seqNum(muts[0])
	if err != nil {
		return ColumnRequest{}, err
	}
	typ, err := tableType(muts[0])
	if err != nil {
		return ColumnRequest{}, err
	}
	return ColumnRequest{Key: key, ExpectedSeqNum: seq - 1, Type: typ, Mutations: muts}, nil
}

// MakeUpdateIndexStateRequest derives an UpdateIndexStateRequest from the
// mutation written by catalogkv.MakeIndexStateMutation.
func MakeUpdateIndexStateRequest(muts []storage.Mutation) (UpdateIndexStateRequest, error) {
	key, err := entityKey(muts)
	if err != nil {
		return UpdateIndexStateRequest{}, err
	}
	v, ok := muts[0].Get(catpb.Family, catpb.IndexStateQualifier)
	if !ok || len(v) != 1 {
		return UpdateIndexStateRequest{}, invalidf("mutation of %s lacks %s", key, catpb.IndexStateQualifier)
	}
	return UpdateIndexStateRequest{Key: key, State: catpb.IndexState(v[0]), Mutations: muts}, nil
}

func validateKey(key catalogkeys.Key) error {
	if _, err := key.Name(); err != nil {
		return errors.Mark(err, ErrInvalidRequest)
	}
	return nil
}

func validateMutations(key catalogkeys.Key, muts []storage.Mutation) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if len(muts) == 0 {
		return invalidf("%s: no mutations", key)
	}
	if !bytes.Equal(muts[0].Key, key) {
		return invalidf("%s: first mutation targets %q", key, muts[0].Key)
	}
	return nil
}
