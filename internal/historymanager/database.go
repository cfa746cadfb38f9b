// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package historymanager

import (
	"context"
	"time"

	"github.com/dp3/historymgr/internal/datapoint"
)

// Record is one entity's current-value document: attribute id to value,
// with the parallel confidence/expiration sidecars of §3. Multi-value
// attributes store a slice in V/C/Exp at matching indices (I8).
type Record struct {
	EType string
	EID   string

	V   map[string]any
	C   map[string]any
	Exp map[string][]time.Time

	dirty bool
}

// Set stages a single-value attribute write, flushed by the database on
// PushRecord.
func (r *Record) Set(attr string, v any) {
	if r.V == nil {
		r.V = map[string]any{}
	}
	r.V[attr] = v
	r.dirty = true
}

// SetConfidence stages a confidence write for attr.
func (r *Record) SetConfidence(attr string, c any) {
	if r.C == nil {
		r.C = map[string]any{}
	}
	r.C[attr] = c
	r.dirty = true
}

// Dirty reports whether any field of this record has been staged for
// write since it was loaded.
func (r *Record) Dirty() bool { return r.dirty }

// Database is the storage collaborator the History Manager depends on
// (§6). The reference implementation is internal/repository.SQLiteDatabase;
// the core only ever depends on this interface.
type Database interface {
	// GetDatapointsRange implements §6's get_datapoints_range.
	GetDatapointsRange(ctx context.Context, q datapoint.RangeQuery) ([]datapoint.Datapoint, error)

	CreateDatapoint(ctx context.Context, etype, attrID string, dp datapoint.Datapoint) error
	RewriteDatapoints(ctx context.Context, etype, attrID string, dps []datapoint.Datapoint) error
	DeleteMultipleRecords(ctx context.Context, etype, attrID string, ids []string) error
	DeleteRecord(ctx context.Context, etype, attrID, id string) error

	// DeleteOldDatapoints implements §6's delete_old_datapoints primitive:
	// delete every datapoint with t2 < tOld, optionally restricted to
	// tag (when non-nil). When tRedundant is non-nil it is used as the
	// cutoff in place of tOld.
	DeleteOldDatapoints(ctx context.Context, etype, attrName string, tOld time.Time, tRedundant *time.Time, tag *datapoint.Tag) error

	GetEntities(ctx context.Context, etype string) ([]string, error)
	GetEntitiesWithExpiredValues(ctx context.Context, etype, attrID string, now time.Time) ([]string, error)
	// UnsetExpiredValues clears a single-value attribute's expired slot
	// for every entity in etype whose expiration has passed, returning
	// the touched entity ids (§4.6 Expiration, single-value delegate path).
	UnsetExpiredValues(ctx context.Context, etype, attrID string, hasConfidence bool, now time.Time) ([]string, error)

	LoadRecord(ctx context.Context, etype, eid string) (*Record, error)
	PushRecord(ctx context.Context, rec *Record) error
}
