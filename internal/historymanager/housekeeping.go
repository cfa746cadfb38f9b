// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package historymanager

import (
	"context"
	"fmt"
	"time"

	"github.com/dp3/historymgr/internal/attrspec"
	"github.com/dp3/historymgr/internal/confidence"
	"github.com/dp3/historymgr/internal/datapoint"
	"github.com/dp3/historymgr/internal/metrics"
	"github.com/dp3/historymgr/pkg/log"
)

// DeleteOldDatapoints runs the first housekeeping job of §4.6 across every
// known (etype, attr) pair. A per-attribute ErrStorage is logged and the
// loop continues to the next attribute (§7).
func (hm *HistoryManager) DeleteOldDatapoints(ctx context.Context, now time.Time) error {
	defer metrics.ObserveHousekeeping("delete_old_datapoints", time.Now())
	for etype, attrs := range hm.specs {
		for attrID, spec := range attrs {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := hm.deleteOldDatapointsForAttr(ctx, etype, attrID, spec, now); err != nil {
				log.Errorf("delete_old_datapoints %s.%s: %v", etype, attrID, err)
				metrics.CountError("StorageError")
			}
		}
	}
	return nil
}

func (hm *HistoryManager) deleteOldDatapointsForAttr(ctx context.Context, etype, attrID string, spec *attrspec.AttrSpec, now time.Time) error {
	switch spec.Type {
	case attrspec.TypeObservations:
		hp := spec.HistoryParams
		if hp == nil {
			return nil
		}
		if hp.AggregationMaxAge > 0 {
			tRedundant := now.Add(-hp.AggregationMaxAge)
			redundant := datapoint.Redundant
			if err := hm.db.DeleteOldDatapoints(ctx, etype, attrID, tRedundant, nil, &redundant); err != nil {
				return fmt.Errorf("%w: %v", ErrStorage, err)
			}
		}
		if !hp.MaxAge.IsInfinite() {
			tOld := now.Add(-hp.MaxAge.Duration())
			if err := hm.db.DeleteOldDatapoints(ctx, etype, attrID, tOld, nil, nil); err != nil {
				return fmt.Errorf("%w: %v", ErrStorage, err)
			}
		}
	case attrspec.TypeTimeseries:
		if spec.TimeseriesParams != nil && spec.TimeseriesParams.MaxAge != nil {
			tOld := now.Add(-*spec.TimeseriesParams.MaxAge)
			if err := hm.db.DeleteOldDatapoints(ctx, etype, attrID, tOld, nil, nil); err != nil {
				return fmt.Errorf("%w: %v", ErrStorage, err)
			}
		}
	}
	return nil
}

// ManageCurrentEntityValues runs the second housekeeping job of §4.6:
// re-derive confidences from history and clear expired values, emitting
// one task per touched entity.
func (hm *HistoryManager) ManageCurrentEntityValues(ctx context.Context, now time.Time) error {
	defer metrics.ObserveHousekeeping("manage_current_entity_values", time.Now())
	for etype, attrs := range hm.specs {
		entities, err := hm.db.GetEntities(ctx, etype)
		if err != nil {
			log.Errorf("manage_current_entity_values %s: list entities: %v", etype, err)
			metrics.CountError("StorageError")
			continue
		}
		for _, eid := range entities {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := hm.manageEntity(ctx, etype, eid, attrs, now); err != nil {
				log.Errorf("%v", fmt.Errorf("%w: %s.%s: %v", ErrHandler, etype, eid, err))
				metrics.CountError("HandlerError")
			}
		}
	}
	return nil
}

func (hm *HistoryManager) manageEntity(ctx context.Context, etype, eid string, attrs map[string]*attrspec.AttrSpec, now time.Time) error {
	rec, err := hm.db.LoadRecord(ctx, etype, eid)
	if err != nil {
		return fmt.Errorf("%w: load record: %v", ErrStorage, err)
	}

	events := map[string]bool{}

	for attrID, spec := range attrs {
		if spec.Type != attrspec.TypeObservations {
			continue
		}
		hp := spec.HistoryParams
		if hp == nil {
			continue
		}

		if spec.Confidence {
			if err := hm.refreshConfidence(ctx, etype, eid, attrID, spec, rec, now); err != nil {
				// a corrupted vector is recovered by clearing it and
				// continuing, per §7 HandlerError recovery.
				log.Errorf("refresh confidence %s.%s eid=%s: %v", etype, attrID, eid, err)
				if spec.MultiValue {
					rec.V[attrID] = []any{}
					rec.C[attrID] = []any{}
					rec.Exp[attrID] = nil
					rec.dirty = true
				}
			} else {
				events["!CONFIDENCE"] = true
			}
		}

		if spec.MultiValue {
			if hm.expireMultiValue(rec, attrID, now) {
				events["!EXPIRED"] = true
			}
		} else {
			touched, err := hm.db.UnsetExpiredValues(ctx, etype, attrID, spec.Confidence, now)
			if err != nil {
				return fmt.Errorf("%w: unset expired values: %v", ErrStorage, err)
			}
			for _, id := range touched {
				if id == eid {
					events["!EXPIRED"] = true
				}
			}
		}
	}

	if rec.Dirty() {
		if err := hm.db.PushRecord(ctx, rec); err != nil {
			return fmt.Errorf("%w: push record: %v", ErrStorage, err)
		}
	}

	if len(events) > 0 && hm.tasks != nil {
		list := make([]string, 0, len(events))
		for e := range events {
			list = append(list, e)
		}
		if err := hm.tasks.PutTask(etype, eid, list); err != nil {
			log.Warnf("put_task %s eid=%s: %v", etype, eid, err)
		}
	}
	return nil
}

// refreshConfidence implements §4.6's Confidence bullet for both
// single-value and multi-value attributes.
func (hm *HistoryManager) refreshConfidence(ctx context.Context, etype, eid, attrID string, spec *attrspec.AttrSpec, rec *Record, now time.Time) error {
	hp := spec.HistoryParams
	window := confidence.Window{PreValidity: hp.PreValidity, PostValidity: hp.PostValidity}
	winStart := now.Add(-hp.PreValidity)
	winEnd := now.Add(hp.PostValidity)

	dps, err := hm.db.GetDatapointsRange(ctx, datapoint.RangeQuery{
		EType: etype, Attr: attrID, EID: eid,
		T1: &winStart, T2: &winEnd,
		ClosedInterval:  true,
		FilterRedundant: datapoint.FilterExcludeRedundant,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if spec.MultiValue {
		values, _ := rec.V[attrID].([]any)
		confs := make([]any, len(values))
		for i, v := range values {
			best := 0.0
			found := false
			for _, d := range dps {
				if !valueEqual(d.V, v) {
					continue
				}
				c := confidence.Extrapolate(d, now, window)
				if !found || c > best {
					best = c
					found = true
				}
			}
			if found {
				confs[i] = best
			} else {
				confs[i] = 0.0
			}
		}
		rec.C[attrID] = confs
		rec.dirty = true
		return nil
	}

	cur, hasCur := rec.V[attrID]
	if !hasCur {
		return nil
	}
	best := 0.0
	found := false
	for _, d := range dps {
		if !valueEqual(d.V, cur) {
			continue
		}
		c := confidence.Extrapolate(d, now, window)
		if !found || c > best {
			best = c
			found = true
		}
	}
	if found {
		rec.C[attrID] = best
		rec.dirty = true
	}
	return nil
}

// expireMultiValue removes every value/confidence/expiration triplet whose
// exp has passed, reporting whether anything was removed (§4.6
// Expiration, I8).
func (hm *HistoryManager) expireMultiValue(rec *Record, attrID string, now time.Time) bool {
	values, _ := rec.V[attrID].([]any)
	confs, _ := rec.C[attrID].([]any)
	exps := rec.Exp[attrID]

	if len(confs) != len(values) || len(exps) != len(values) {
		// corrupted vector state: recover by clearing all three.
		rec.V[attrID] = []any{}
		rec.C[attrID] = []any{}
		rec.Exp[attrID] = nil
		rec.dirty = true
		return true
	}

	var keptV, keptC []any
	var keptExp []time.Time
	removed := false
	for i, exp := range exps {
		if exp.Before(now) {
			removed = true
			continue
		}
		keptV = append(keptV, values[i])
		keptC = append(keptC, confs[i])
		keptExp = append(keptExp, exp)
	}
	if removed {
		rec.V[attrID] = keptV
		rec.C[attrID] = keptC
		rec.Exp[attrID] = keptExp
		rec.dirty = true
	}
	return removed
}

func valueEqual(a, b any) bool {
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			return af == bf
		}
	}
	return a == b
}
