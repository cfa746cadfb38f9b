// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package historymanager

import (
	"context"
	"sort"
	"time"

	"github.com/dp3/historymgr/internal/datapoint"
)

// fakeDB is an in-memory Database used only by this package's tests; it
// implements just enough of the range-query contract (§6) to drive the
// ingest and housekeeping algorithms end to end.
type fakeDB struct {
	rows    map[string]map[string][]datapoint.Datapoint // etype -> attr -> rows
	records map[string]*Record                           // etype/eid -> record
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: map[string]map[string][]datapoint.Datapoint{}, records: map[string]*Record{}}
}

func (f *fakeDB) table(etype, attr string) []datapoint.Datapoint {
	if f.rows[etype] == nil {
		return nil
	}
	return f.rows[etype][attr]
}

func (f *fakeDB) setTable(etype, attr string, rows []datapoint.Datapoint) {
	if f.rows[etype] == nil {
		f.rows[etype] = map[string][]datapoint.Datapoint{}
	}
	f.rows[etype][attr] = rows
}

func (f *fakeDB) GetDatapointsRange(ctx context.Context, q datapoint.RangeQuery) ([]datapoint.Datapoint, error) {
	var out []datapoint.Datapoint
	for _, d := range f.table(q.EType, q.Attr) {
		if q.EID != "" && d.EID != q.EID {
			continue
		}
		switch q.FilterRedundant {
		case datapoint.FilterExcludeRedundant:
			if d.Tag == datapoint.Redundant {
				continue
			}
		case datapoint.FilterOnlyRedundant:
			if d.Tag != datapoint.Redundant {
				continue
			}
		}
		if q.T1 != nil && q.T2 != nil {
			if q.ClosedInterval {
				if d.T2.Before(*q.T1) || d.T1.After(*q.T2) {
					continue
				}
			} else if !d.Overlaps(*q.T1, *q.T2) {
				continue
			}
		}
		out = append(out, d)
	}
	switch q.Sort {
	case datapoint.SortDescByT2:
		sort.Slice(out, func(i, j int) bool { return out[i].T2.After(out[j].T2) })
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].T1.Before(out[j].T1) })
	}
	return out, nil
}

func (f *fakeDB) CreateDatapoint(ctx context.Context, etype, attrID string, dp datapoint.Datapoint) error {
	f.setTable(etype, attrID, append(f.table(etype, attrID), dp))
	return nil
}

func (f *fakeDB) RewriteDatapoints(ctx context.Context, etype, attrID string, dps []datapoint.Datapoint) error {
	rows := f.table(etype, attrID)
	for _, updated := range dps {
		for i, r := range rows {
			if r.ID == updated.ID {
				rows[i] = updated
			}
		}
	}
	f.setTable(etype, attrID, rows)
	return nil
}

func (f *fakeDB) DeleteMultipleRecords(ctx context.Context, etype, attrID string, ids []string) error {
	idSet := map[string]bool{}
	for _, id := range ids {
		idSet[id] = true
	}
	var kept []datapoint.Datapoint
	for _, r := range f.table(etype, attrID) {
		if !idSet[r.ID] {
			kept = append(kept, r)
		}
	}
	f.setTable(etype, attrID, kept)
	return nil
}

func (f *fakeDB) DeleteRecord(ctx context.Context, etype, attrID, id string) error {
	return f.DeleteMultipleRecords(ctx, etype, attrID, []string{id})
}

func (f *fakeDB) DeleteOldDatapoints(ctx context.Context, etype, attrName string, tOld time.Time, tRedundant *time.Time, tag *datapoint.Tag) error {
	var kept []datapoint.Datapoint
	for _, r := range f.table(etype, attrName) {
		cutoff := tOld
		if tRedundant != nil {
			cutoff = *tRedundant
		}
		if tag != nil && r.Tag != *tag {
			kept = append(kept, r)
			continue
		}
		if r.T2.Before(cutoff) {
			continue
		}
		kept = append(kept, r)
	}
	f.setTable(etype, attrName, kept)
	return nil
}

func (f *fakeDB) GetEntities(ctx context.Context, etype string) ([]string, error) { return nil, nil }

func (f *fakeDB) GetEntitiesWithExpiredValues(ctx context.Context, etype, attrID string, now time.Time) ([]string, error) {
	return nil, nil
}

func (f *fakeDB) UnsetExpiredValues(ctx context.Context, etype, attrID string, hasConfidence bool, now time.Time) ([]string, error) {
	return nil, nil
}

func (f *fakeDB) LoadRecord(ctx context.Context, etype, eid string) (*Record, error) {
	key := etype + "/" + eid
	if r, ok := f.records[key]; ok {
		return r, nil
	}
	return &Record{EType: etype, EID: eid, V: map[string]any{}, C: map[string]any{}, Exp: map[string][]time.Time{}}, nil
}

func (f *fakeDB) PushRecord(ctx context.Context, rec *Record) error {
	f.records[rec.EType+"/"+rec.EID] = rec
	return nil
}
