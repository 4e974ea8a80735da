// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metadata

import (
	"context"

	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/storage"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/log"
)

// DropTable deletes every row of an entity and, for tables, of its
// indexes. SYSTEM tables cannot be dropped, nor can tables which views
// read from. The result carries the dropped definition and the physical
// tables the drop made obsolete.
func (c *Coordinator) DropTable(
	ctx context.Context, req DropTableRequest,
) (catpb.MutationResult, error) {
	return c.run(ctx, "drop", req.Key, func(ctx context.Context) (catpb.MutationResult, error) {
		if err := validateMutations(req.Key, req.Mutations); err != nil {
			return catpb.MutationResult{}, err
		}
		if req.Type == catpb.TableTypeSystem {
			return c.result(catpb.UnallowedTableMutation), nil
		}
		lockKey := req.Key
		if req.ParentKey != nil {
			if err := validateKey(req.ParentKey); err != nil {
				return catpb.MutationResult{}, err
			}
			lockKey = req.ParentKey
		}
		if !c.inRegion(req.Key) {
			return c.result(catpb.TableNotInRegion), nil
		}

		o := c.newOperation()
		defer o.release()
		if err := o.lock(ctx, lockKey); err != nil {
			return catpb.MutationResult{}, err
		}
		if err := o.lock(ctx, req.Key); err != nil {
			return catpb.MutationResult{}, err
		}
		muts, opTS := c.stamp(req.Mutations)

		d := dropper{o: o, ts: opTS, muts: muts}
		res, err := d.drop(ctx, req.Key, req.Type)
		if err != nil || !res.OK() {
			return res, err
		}
		ts, err := o.commit(ctx, d.muts, append(d.visited, req.ParentKey)...)
		if err != nil {
			return catpb.MutationResult{}, err
		}
		if len(d.visited) > 1 {
			log.VEventf(ctx, 1, "dropped %d indexes", len(d.visited)-1)
		}
		res.MutationTime = ts
		return res, nil
	})
}

// dropper accumulates the mutations of a drop and of the drops it cascades
// to.
type dropper struct {
	o    *operation
	ts   hlc.Timestamp
	muts []storage.Mutation
	// visited are the keys of every dropped entity, root first.
	visited       []catalogkeys.Key
	physicalNames []string
}

type dropItem struct {
	key catalogkeys.Key
	typ catpb.TableType
}

// drop deletes the entity at key and, through a worklist, every index
// linked from a dropped entity. The first precondition failure aborts the
// whole drop.
func (d *dropper) drop(
	ctx context.Context, key catalogkeys.Key, typ catpb.TableType,
) (catpb.MutationResult, error) {
	var root *catpb.TableDefinition
	work := []dropItem{{key: key, typ: typ}}
	for len(work) > 0 {
		item := work[0]
		work = work[1:]
		def, indexes, res, err := d.dropOne(ctx, item.key, item.typ)
		if err != nil || res != nil {
			if res == nil {
				return catpb.MutationResult{}, err
			}
			return *res, err
		}
		if root == nil {
			root = def
		}
		name, _ := item.key.Name()
		for _, idx := range indexes {
			idxKey := catalogkeys.MakeKey(name.TenantID, name.Schema, idx)
			d.muts = append(d.muts, storage.DeleteRow(idxKey, d.ts))
			if err := d.o.lock(ctx, idxKey); err != nil {
				return catpb.MutationResult{}, err
			}
			work = append(work, dropItem{key: idxKey, typ: catpb.TableTypeIndex})
		}
	}
	res := d.o.c.resultWithTable(catpb.MutationCodeSuccess, root)
	res.PhysicalNames = d.physicalNames
	return res, nil
}

// dropOne checks that the entity at key can be dropped at d.ts and adds the
// deletion of its rows. It returns the names of the indexes linked from it,
// or a result when a precondition fails.
func (d *dropper) dropOne(
	ctx context.Context, key catalogkeys.Key, typ catpb.TableType,
) (*catpb.TableDefinition, []string, *catpb.MutationResult, error) {
	c := d.o.c
	fail := func(code catpb.MutationCode, def *catpb.TableDefinition) *catpb.MutationResult {
		res := c.resultWithTable(code, def)
		return &res
	}
	def, deleted, err := d.o.latestOrDeleted(ctx, key, d.ts)
	if err != nil {
		return nil, nil, nil, err
	}
	switch {
	case deleted:
		return nil, nil, fail(catpb.NewerTableFound, nil), nil
	case def == nil:
		return nil, nil, fail(catpb.TableNotFound, nil), nil
	case !def.Timestamp.Less(d.ts):
		return nil, nil, fail(catpb.NewerTableFound, def), nil
	case def.IsTombstone():
		return nil, nil, fail(catpb.TableAlreadyExists, nil), nil
	case def.Type != typ:
		return nil, nil, fail(catpb.TableNotFound, nil), nil
	}
	if typ == catpb.TableTypeTable {
		views, err := d.o.hasViews(ctx, def)
		if err != nil {
			return nil, nil, nil, err
		}
		if views {
			return nil, nil, fail(catpb.UnallowedTableMutation, def), nil
		}
	}

	start, end := key.Span()
	var rows int
	var indexes []string
	err = c.store.Scan(ctx, storage.ScanOptions{
		Start:        start,
		End:          end,
		MaxTimestamp: d.ts,
		Family:       catpb.Family,
	}, func(row storage.Row) error {
		rows++
		d.muts = append(d.muts, storage.DeleteRow(row.Key, d.ts))
		rk, err := catalogkeys.DecodeRowKey(row.Key)
		if err != nil || !rk.IsLink() {
			return nil
		}
		lt, ok := row.Get(catpb.Family, catpb.LinkTypeQualifier)
		if ok && len(lt.Value) == 1 && catpb.LinkType(lt.Value[0]) == catpb.LinkTypeIndexTable {
			indexes = append(indexes, rk.Family)
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if rows == 0 {
		return nil, nil, fail(catpb.TableNotFound, nil), nil
	}
	if typ != catpb.TableTypeView {
		d.physicalNames = append(d.physicalNames, def.FullName())
	}
	d.visited = append(d.visited, key)
	return def, indexes, nil, nil
}
