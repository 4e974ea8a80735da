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
)

// AddColumn commits the rows of new columns of a table or view.
func (c *Coordinator) AddColumn(
	ctx context.Context, req ColumnRequest,
) (catpb.MutationResult, error) {
	return c.run(ctx, "add-column", req.Key, func(ctx context.Context) (catpb.MutationResult, error) {
		return c.mutateColumn(ctx, req, addColumns{})
	})
}

// DropColumn deletes columns of a table or view. Indexes keyed on a dropped
// column are dropped with it.
func (c *Coordinator) DropColumn(
	ctx context.Context, req ColumnRequest,
) (catpb.MutationResult, error) {
	return c.run(ctx, "drop-column", req.Key, func(ctx context.Context) (catpb.MutationResult, error) {
		return c.mutateColumn(ctx, req, dropColumns{})
	})
}

// columnMutation is the state shared by mutateColumn and a columnMutator.
type columnMutation struct {
	o     *operation
	table *catpb.TableDefinition
	name  catalogkeys.Name
	ts    hlc.Timestamp
	muts  []storage.Mutation
	// invalidate are the keys evicted from the cache after commit.
	invalidate    []catalogkeys.Key
	physicalNames []string
}

// columns returns the decoded row keys of the mutations of column rows of
// the table.
func (m *columnMutation) columns(kind storage.MutationKind) []catalogkeys.RowKey {
	var out []catalogkeys.RowKey
	for _, mut := range m.muts {
		if mut.Kind != kind {
			continue
		}
		rk, err := catalogkeys.DecodeRowKey(mut.Key)
		if err != nil || !rk.Child || rk.Schema != m.name.Schema || rk.Table != m.name.Table {
			continue
		}
		out = append(out, rk)
	}
	return out
}

func (m *columnMutation) fail(
	code catpb.MutationCode, col *catpb.ColumnDefinition,
) *catpb.MutationResult {
	res := m.o.c.resultWithTable(code, m.table)
	res.Column = col
	return &res
}

// columnMutator checks the column changes of a request against the current
// definition and adds the mutations they imply.
type columnMutator interface {
	mutateColumns(ctx context.Context, m *columnMutation) (*catpb.MutationResult, error)
}

// mutateColumn runs the checks common to adding and dropping columns, then
// m, then commits.
func (c *Coordinator) mutateColumn(
	ctx context.Context, req ColumnRequest, m columnMutator,
) (catpb.MutationResult, error) {
	if err := validateMutations(req.Key, req.Mutations); err != nil {
		return catpb.MutationResult{}, err
	}
	if !c.inRegion(req.Key) {
		return c.result(catpb.TableNotInRegion), nil
	}
	o := c.newOperation()
	defer o.release()
	if err := o.lock(ctx, req.Key); err != nil {
		return catpb.MutationResult{}, err
	}
	muts, opTS := c.stamp(req.Mutations)

	table, deleted, err := o.latestOrDeleted(ctx, req.Key, opTS)
	if err != nil {
		return catpb.MutationResult{}, err
	}
	switch {
	case deleted:
		return c.result(catpb.NewerTableFound), nil
	case table == nil:
		return c.result(catpb.TableNotFound), nil
	case !table.Timestamp.Less(opTS):
		return c.resultWithTable(catpb.NewerTableFound, table), nil
	case table.IsTombstone():
		return c.result(catpb.TableNotFound), nil
	case table.SequenceNumber != req.ExpectedSeqNum:
		return c.resultWithTable(catpb.ConcurrentTableMutation, table), nil
	case table.Type == catpb.TableTypeIndex:
		return c.result(catpb.UnallowedTableMutation), nil
	case table.Type != req.Type:
		return c.result(catpb.TableNotFound), nil
	}
	views, err := o.hasViews(ctx, table)
	if err != nil {
		return catpb.MutationResult{}, err
	}
	if views {
		return c.resultWithTable(catpb.UnallowedTableMutation, table), nil
	}

	name, _ := req.Key.Name()
	cm := &columnMutation{
		o:          o,
		table:      table,
		name:       name,
		ts:         opTS,
		muts:       muts,
		invalidate: []catalogkeys.Key{req.Key},
	}
	res, err := m.mutateColumns(ctx, cm)
	if err != nil || res != nil {
		if res == nil {
			return catpb.MutationResult{}, err
		}
		return *res, err
	}
	ts, err := o.commit(ctx, cm.muts, cm.invalidate...)
	if err != nil {
		return catpb.MutationResult{}, err
	}
	out := catpb.MakeResult(catpb.MutationCodeSuccess, ts)
	out.PhysicalNames = cm.physicalNames
	return out, nil
}

type addColumns struct{}

var _ columnMutator = addColumns{}

// mutateColumns rejects columns which already exist. Adding a primary key
// column changes the key of every index, which are evicted from the cache.
func (addColumns) mutateColumns(
	_ context.Context, m *columnMutation,
) (*catpb.MutationResult, error) {
	for _, rk := range m.columns(storage.MutationPut) {
		switch {
		case rk.Family != "":
			if _, err := m.table.FamilyColumn(rk.Family, rk.Column); err == nil {
				return m.fail(catpb.ColumnAlreadyExists, nil), nil
			}
		case rk.Column != "":
			if _, err := m.table.PKColumn(rk.Column); err == nil {
				return m.fail(catpb.ColumnAlreadyExists, nil), nil
			}
			for _, idx := range m.table.Indexes {
				m.invalidate = append(m.invalidate, idx.Key())
			}
		}
	}
	return nil, nil
}

type dropColumns struct{}

var _ columnMutator = dropColumns{}

// mutateColumns rejects columns which do not exist or which a view pins to
// a constant. An index keyed on a dropped column is dropped with its own
// indexes; other indexes containing the column are evicted from the cache.
func (dropColumns) mutateColumns(
	ctx context.Context, m *columnMutation,
) (*catpb.MutationResult, error) {
	var deletePK bool
	var extra []storage.Mutation
	for _, rk := range m.columns(storage.MutationDeleteRow) {
		var col *catpb.ColumnDefinition
		var err error
		switch {
		case rk.Family != "":
			col, err = m.table.FamilyColumn(rk.Family, rk.Column)
		case rk.Column != "":
			deletePK = true
			col, err = m.table.PKColumn(rk.Column)
		default:
			continue
		}
		if err != nil {
			return m.fail(catpb.ColumnNotFound, nil), nil
		}
		if col.ViewConstant != nil {
			return m.fail(catpb.UnallowedTableMutation, col), nil
		}
		for _, idx := range m.table.Indexes {
			ic, err := idx.Column(catpb.IndexColumnName(col))
			if err != nil {
				continue
			}
			idxKey := idx.Key()
			if !ic.IsPK() {
				m.invalidate = append(m.invalidate, idxKey)
				continue
			}
			if err := m.o.lock(ctx, idxKey); err != nil {
				return nil, err
			}
			extra = append(extra,
				storage.DeleteRow(idxKey, m.ts),
				storage.DeleteRow(m.table.Key().LinkKey(idx.TableName), m.ts))
			d := dropper{o: m.o, ts: m.ts}
			res, err := d.drop(ctx, idxKey, catpb.TableTypeIndex)
			if err != nil {
				return nil, err
			}
			if !res.OK() {
				return &res, nil
			}
			extra = append(extra, d.muts...)
			m.invalidate = append(m.invalidate, d.visited...)
			m.physicalNames = append(m.physicalNames, d.physicalNames...)
		}
	}
	// Only the last primary key column is protected. A single request
	// deleting every primary key column of a compound key is accepted.
	if deletePK && len(m.table.PKColumns()) == 1 {
		return m.fail(catpb.NoPKColumns, nil), nil
	}
	m.muts = append(m.muts, extra...)
	return nil, nil
}
