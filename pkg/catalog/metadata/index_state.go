// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metadata

import (
	"bytes"
	"context"

	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/catalog/indexstate"
	"github.com/cockroachdb/metacat/pkg/storage"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/iterutil"
	"github.com/cockroachdb/metacat/pkg/util/log"
)

// UpdateIndexState moves an index to the state requested by the
// INDEX_STATE value of its first mutation, normalized by
// indexstate.Transition. The data table of the index is locked before the
// index and evicted from the cache along with it.
func (c *Coordinator) UpdateIndexState(
	ctx context.Context, req UpdateIndexStateRequest,
) (catpb.MutationResult, error) {
	return c.run(ctx, "index-state", req.Key, func(ctx context.Context) (catpb.MutationResult, error) {
		if err := validateMutations(req.Key, req.Mutations); err != nil {
			return catpb.MutationResult{}, err
		}
		if req.Mutations[0].Kind != storage.MutationPut {
			return catpb.MutationResult{}, invalidf("%s: index state change must be a put", req.Key)
		}
		if !c.inRegion(req.Key) {
			return c.result(catpb.TableNotInRegion), nil
		}
		o := c.newOperation()
		defer o.release()
		parentKey, err := o.lockIndex(ctx, req.Key)
		if err != nil {
			return catpb.MutationResult{}, err
		}
		muts, opTS := c.stamp(req.Mutations)

		current, _, found, err := c.readIndexHeader(ctx, req.Key, opTS.Prev())
		if err != nil {
			return catpb.MutationResult{}, err
		}
		if !found || len(current.Value) != 1 {
			return c.result(catpb.TableNotFound), nil
		}

		dec, code := indexstate.Transition(
			catpb.IndexState(current.Value[0]), current.Timestamp, req.State, opTS)
		if code != catpb.MutationCodeSuccess {
			return c.result(code), nil
		}
		if dec.NoOp {
			log.VEventf(ctx, 2, "index already %s", dec.State)
			return catpb.MakeResult(catpb.MutationCodeSuccess, opTS), nil
		}
		if dec.State != req.State {
			log.VEventf(ctx, 1, "requested %s, storing %s", req.State, dec.State)
		}
		muts[0].Values = withIndexState(muts[0].Values, dec)

		ts, err := o.commit(ctx, muts, req.Key, parentKey)
		if err != nil {
			return catpb.MutationResult{}, err
		}
		return catpb.MakeResult(catpb.MutationCodeSuccess, ts), nil
	})
}

// lockIndex locks the data table of the index at key and then the index
// itself. The data table embeds the definitions of its indexes, so it is
// locked first like the parent of any other child row. The key of the data
// table is returned, or nil when the index has none.
func (o *operation) lockIndex(
	ctx context.Context, key catalogkeys.Key,
) (catalogkeys.Key, error) {
	for {
		_, parentKey, _, err := o.c.readIndexHeader(ctx, key, hlc.MaxTimestamp)
		if err != nil {
			return nil, err
		}
		if parentKey != nil {
			if err := o.lock(ctx, parentKey); err != nil {
				return nil, err
			}
		}
		if err := o.lock(ctx, key); err != nil {
			return nil, err
		}
		// The index may have been recreated on another table before it
		// was locked.
		_, locked, _, err := o.c.readIndexHeader(ctx, key, hlc.MaxTimestamp)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(locked, parentKey) {
			return parentKey, nil
		}
		log.VEventf(ctx, 2, "data table of %s changed to %s, relocking", key, locked)
		o.release()
	}
}

// readIndexHeader reads the INDEX_STATE cell of the index at key as of ts,
// along with the key of its data table.
func (c *Coordinator) readIndexHeader(
	ctx context.Context, key catalogkeys.Key, ts hlc.Timestamp,
) (state storage.Cell, parentKey catalogkeys.Key, found bool, _ error) {
	err := c.store.Scan(ctx, storage.ScanOptions{
		Start:        key,
		End:          append(append([]byte(nil), key...), catalogkeys.Separator),
		MaxTimestamp: ts,
		Family:       catpb.Family,
	}, func(row storage.Row) error {
		state, found = row.Get(catpb.Family, catpb.IndexStateQualifier)
		if dataTable, ok := row.Get(catpb.Family, catpb.DataTableNameQualifier); ok &&
			len(dataTable.Value) > 0 {
			name, err := key.Name()
			if err != nil {
				return err
			}
			parentKey = catalogkeys.MakeKey(name.TenantID, name.Schema, string(dataTable.Value))
		}
		return iterutil.StopIteration()
	})
	return state, parentKey, found, err
}

// withIndexState returns a copy of vals in which INDEX_STATE is the decided
// state, written at the decided timestamp.
func withIndexState(vals []storage.ColumnValue, dec indexstate.Decision) []storage.ColumnValue {
	out := make([]storage.ColumnValue, 0, len(vals))
	for _, v := range vals {
		if bytes.Equal(v.Family, catpb.Family) && bytes.Equal(v.Qualifier, catpb.IndexStateQualifier) {
			continue
		}
		out = append(out, v)
	}
	return append(out, storage.ColumnValue{
		Family:    catpb.Family,
		Qualifier: catpb.IndexStateQualifier,
		Value:     []byte{byte(dec.State)},
		Timestamp: dec.Timestamp,
	})
}
