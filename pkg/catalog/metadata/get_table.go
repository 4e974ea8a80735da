// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metadata

import (
	"context"

	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
)

// GetTable returns the definition of req.Key visible at
// req.ClientTimestamp. The definition is omitted from a successful result
// when its timestamp equals req.TableTimestamp.
func (c *Coordinator) GetTable(
	ctx context.Context, req GetTableRequest,
) (catpb.MutationResult, error) {
	return c.run(ctx, "get", req.Key, func(ctx context.Context) (catpb.MutationResult, error) {
		if err := validateKey(req.Key); err != nil {
			return catpb.MutationResult{}, err
		}
		if !c.inRegion(req.Key) {
			return c.result(catpb.TableNotInRegion), nil
		}
		asOf := req.ClientTimestamp
		if asOf.IsEmpty() {
			asOf = hlc.MaxTimestamp
		}
		o := c.newOperation()
		defer o.release()
		def, err := o.getTable(ctx, req.Key, asOf)
		if err != nil {
			return catpb.MutationResult{}, err
		}
		if def == nil {
			return c.result(catpb.TableNotFound), nil
		}
		res := c.result(catpb.MutationCodeSuccess)
		if def.Timestamp != req.TableTimestamp {
			res.Table = def
		}
		return res, nil
	})
}
