// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package indexstate validates and normalizes index state changes.
//
// Index population is asynchronous, so clients request states describing
// what they observed (USABLE, UNUSABLE) and the stored state is normalized
// to what is safe: an index is readable iff it is stored ACTIVE.
package indexstate

import (
	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
)

// Decision is the outcome of an allowed state change.
type Decision struct {
	// State is the normalized state to store.
	State catpb.IndexState
	// Timestamp is the timestamp at which State is to be written.
	Timestamp hlc.Timestamp
	// NoOp is set when State equals the current state; nothing is written.
	NoOp bool
}

// Transition decides the change of an index stored in state current,
// written at currentTS, to the requested state by an operation at opTS. It
// returns catpb.UnallowedTableMutation for changes which are not allowed.
func Transition(
	current catpb.IndexState, currentTS hlc.Timestamp, requested catpb.IndexState, opTS hlc.Timestamp,
) (Decision, catpb.MutationCode) {
	if !requested.Valid() {
		return Decision{}, catpb.UnallowedTableMutation
	}
	next := requested
	switch current {
	case catpb.IndexStateBuilding:
		if requested == catpb.IndexStateUsable {
			return Decision{}, catpb.UnallowedTableMutation
		}
	case catpb.IndexStateDisable:
		if requested != catpb.IndexStateBuilding && requested != catpb.IndexStateDisable &&
			requested != catpb.IndexStateActive {
			return Decision{}, catpb.UnallowedTableMutation
		}
		// A build which completes while the index is disabled leaves it
		// disabled.
		if requested == catpb.IndexStateActive {
			next = catpb.IndexStateDisable
		}
	}

	ts := opTS
	// An interrupted build keeps the timestamp it started at.
	if current == catpb.IndexStateBuilding && next != catpb.IndexStateActive {
		ts = currentTS
	}

	switch {
	case current == catpb.IndexStateUnusable && next == catpb.IndexStateActive,
		current == catpb.IndexStateActive && next == catpb.IndexStateUnusable:
		next = catpb.IndexStateInactive
	case current == catpb.IndexStateInactive && next == catpb.IndexStateUsable:
		next = catpb.IndexStateActive
	}
	return Decision{State: next, Timestamp: ts, NoOp: next == current}, catpb.MutationCodeSuccess
}
