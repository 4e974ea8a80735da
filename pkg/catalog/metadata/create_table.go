// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metadata

import (
	"context"

	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/log"
)

// CreateTable commits the rows of a new table, view or index. An index is
// created under the lock of its data table, whose sequence number must
// still be req.ExpectedParentSeqNum.
func (c *Coordinator) CreateTable(
	ctx context.Context, req CreateTableRequest,
) (catpb.MutationResult, error) {
	return c.run(ctx, "create", req.Key, func(ctx context.Context) (catpb.MutationResult, error) {
		if err := validateMutations(req.Key, req.Mutations); err != nil {
			return catpb.MutationResult{}, err
		}
		lockKey := req.Key
		if req.ParentKey != nil {
			if err := validateKey(req.ParentKey); err != nil {
				return catpb.MutationResult{}, err
			}
			lockKey = req.ParentKey
		}
		if !c.inRegion(lockKey) {
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

		if req.ParentKey != nil {
			parent, err := o.loadTable(ctx, req.ParentKey, opTS, opTS)
			if err != nil {
				return catpb.MutationResult{}, err
			}
			if parent == nil || parent.IsTombstone() {
				return c.result(catpb.ParentTableNotFound), nil
			}
			if parent.SequenceNumber != req.ExpectedParentSeqNum {
				log.VEventf(ctx, 2, "parent at sequence number %d, expected %d",
					parent.SequenceNumber, req.ExpectedParentSeqNum)
				return c.resultWithTable(catpb.ConcurrentTableMutation, parent), nil
			}
		}

		existing, err := o.loadTable(ctx, req.Key, opTS, hlc.MaxTimestamp)
		if err != nil {
			return catpb.MutationResult{}, err
		}
		if existing != nil {
			if !existing.Timestamp.Less(opTS) {
				return c.resultWithTable(catpb.NewerTableFound, existing), nil
			}
			if !existing.IsTombstone() {
				return c.resultWithTable(catpb.TableAlreadyExists, existing), nil
			}
		}

		ts, err := o.commit(ctx, muts, req.ParentKey, req.Key)
		if err != nil {
			return catpb.MutationResult{}, err
		}
		return catpb.MakeResult(catpb.MutationCodeSuccess, ts), nil
	})
}
