// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package historymanager implements the core ingest and housekeeping
// algorithms of the DP3 History Manager: process_datapoint (§4.5) and the
// two periodic jobs of §4.6.
package historymanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dp3/historymgr/internal/attrspec"
	"github.com/dp3/historymgr/internal/datapoint"
	"github.com/dp3/historymgr/internal/merge"
	"github.com/dp3/historymgr/internal/metrics"
	"github.com/dp3/historymgr/pkg/log"
)

// TaskQueueWriter is the §6 put_task collaborator. Modeled as an interface
// here (rather than a direct internal/taskqueue import) so History Manager
// stays decoupled from the broker, per §9's "reimplement as a
// dependency-injected context" note.
type TaskQueueWriter interface {
	PutTask(etype, eid string, events []string) error
}

// HistoryManager is the ingest/housekeeping core of §4.5/§4.6. It is
// constructed once per worker process with the AttrSpec universe, the
// database, and the task queue writer as dependencies — no process-wide
// globals (§9 "Global state").
type HistoryManager struct {
	specs       map[string]map[string]*attrspec.AttrSpec // etype -> attrID -> spec
	db          Database
	tasks       TaskQueueWriter
	workerIndex int
}

// New constructs a HistoryManager. workerIndex identifies this process
// among its peers; only workerIndex == 0 may register housekeeping (§5,
// §9 "Thread-affine housekeeping").
func New(specs map[string]map[string]*attrspec.AttrSpec, db Database, tasks TaskQueueWriter, workerIndex int) *HistoryManager {
	return &HistoryManager{specs: specs, db: db, tasks: tasks, workerIndex: workerIndex}
}

// IsHousekeepingWorker reports whether this process should run the
// periodic jobs of §4.6.
func (hm *HistoryManager) IsHousekeepingWorker() bool { return hm.workerIndex == 0 }

func (hm *HistoryManager) spec(etype, attrID string) (*attrspec.AttrSpec, error) {
	ent, ok := hm.specs[etype]
	if !ok {
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidSpec, etype)
	}
	a, ok := ent[attrID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown attribute %q.%q", ErrInvalidSpec, etype, attrID)
	}
	return a, nil
}

func mergeParams(hp *attrspec.HistoryParams) merge.Params {
	return merge.Params{
		Value:      hp.AggregationFunctionValue,
		Confidence: hp.AggregationFunctionConfidence,
		Source:     hp.AggregationFunctionSource,
	}
}

// ProcessDatapoint runs the ingest algorithm of §4.5 for one incoming,
// already-validated datapoint. data.Tag must be datapoint.Plain on entry.
func (hm *HistoryManager) ProcessDatapoint(ctx context.Context, etype, attrID string, data datapoint.Datapoint) error {
	started := time.Now()
	err := hm.processDatapoint(ctx, etype, attrID, data)
	metrics.ObserveIngest(etype, attrID, started, err)
	if err != nil {
		switch {
		case errors.Is(err, ErrOverlapConflict):
			metrics.CountError("OverlapConflict")
		case errors.Is(err, ErrSplitUnderflow):
			metrics.CountError("SplitUnderflow")
		case errors.Is(err, ErrStorage):
			metrics.CountError("StorageError")
		case errors.Is(err, ErrInvalidSpec):
			metrics.CountError("InvalidSpec")
		}
	}
	return err
}

func (hm *HistoryManager) processDatapoint(ctx context.Context, etype, attrID string, data datapoint.Datapoint) error {
	spec, err := hm.spec(etype, attrID)
	if err != nil {
		return err
	}

	// Fast path: timeseries attributes persist verbatim (§4.5).
	if spec.Type == attrspec.TypeTimeseries {
		if err := hm.db.CreateDatapoint(ctx, etype, attrID, data); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		return nil
	}

	if spec.HistoryParams == nil {
		return fmt.Errorf("%w: %q is not an observations attribute", ErrInvalidSpec, attrID)
	}
	hp := spec.HistoryParams
	params := mergeParams(hp)
	multiValue := spec.MultiValue

	// Open-ended declarations up front (§9 Open Question (b)).
	var toRewrite []datapoint.Datapoint
	var toDelete []string

	overlapping, err := hm.db.GetDatapointsRange(ctx, datapoint.RangeQuery{
		EType: etype, Attr: attrID, EID: data.EID,
		T1: &data.T1, T2: &data.T2,
		FilterRedundant: datapoint.FilterAllTags,
		Sort:            datapoint.SortAscByT1,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// Step 1 — direct overlap, collision detection.
	mergeableWith := make(map[string]bool, len(overlapping))
	for _, d := range overlapping {
		if !d.Overlaps(data.T1, data.T2) {
			continue
		}
		ok := merge.Mergeable(data, d, params)
		mergeableWith[d.ID] = ok
		if d.Tag != datapoint.Aggregated && !ok && !multiValue {
			return fmt.Errorf("%w: %s.%s eid=%s overlaps non-mergeable datapoint %s", ErrOverlapConflict, etype, attrID, data.EID, d.ID)
		}
	}

	// Step 2 — merge overlapping.
	agg := data.Copy()
	for _, d := range overlapping {
		if !d.Overlaps(data.T1, data.T2) {
			continue
		}
		if d.Tag == datapoint.Redundant {
			continue
		}
		if mergeableWith[d.ID] {
			merge.Merge(&agg, d, params)
			if d.Tag == datapoint.Aggregated {
				toDelete = append(toDelete, d.ID)
			} else {
				d.Tag = datapoint.Redundant
				toRewrite = append(toRewrite, d)
			}
			continue
		}
		if multiValue {
			continue
		}
		if err := hm.splitDatapoint(ctx, etype, attrID, d, data.T1, params); err != nil {
			return err
		}
	}

	// Step 3 — merge adjacent, each side walked from closest to data
	// outward, stopping at the first non-mergeable gap.
	preStart := data.T1.Add(-hp.AggregationInterval)
	pre, err := hm.db.GetDatapointsRange(ctx, datapoint.RangeQuery{
		EType: etype, Attr: attrID, EID: data.EID,
		T1: &preStart, T2: &data.T1,
		FilterRedundant: datapoint.FilterExcludeRedundant,
		Sort:            datapoint.SortDescByT2,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := hm.walkAdjacent(pre, &agg, &data, params, multiValue, &toRewrite, &toDelete); err != nil {
		return err
	}

	postEnd := data.T2.Add(hp.AggregationInterval)
	post, err := hm.db.GetDatapointsRange(ctx, datapoint.RangeQuery{
		EType: etype, Attr: attrID, EID: data.EID,
		T1: &data.T2, T2: &postEnd,
		FilterRedundant: datapoint.FilterExcludeRedundant,
		Sort:            datapoint.SortAscByT1,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := hm.walkAdjacent(post, &agg, &data, params, multiValue, &toRewrite, &toDelete); err != nil {
		return err
	}

	// Step 4 — commit.
	if !agg.T1.Equal(data.T1) || !agg.T2.Equal(data.T2) {
		agg.ID = uuid.NewString()
		agg.Tag = datapoint.Aggregated
		data.Tag = datapoint.Redundant
		if err := hm.db.CreateDatapoint(ctx, etype, attrID, agg); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	if data.ID == "" {
		data.ID = uuid.NewString()
	}
	if err := hm.db.CreateDatapoint(ctx, etype, attrID, data); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(toRewrite) > 0 {
		if err := hm.db.RewriteDatapoints(ctx, etype, attrID, toRewrite); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	if len(toDelete) > 0 {
		if err := hm.db.DeleteMultipleRecords(ctx, etype, attrID, toDelete); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	return nil
}

// walkAdjacent implements one side of Step 3: neighbors already sorted by
// proximity to data. A mergeable neighbor is folded into agg and walking
// continues; a non-mergeable neighbor stops the walk unless the attribute
// is multi_value, in which case it is merely skipped.
func (hm *HistoryManager) walkAdjacent(neighbors []datapoint.Datapoint, agg, data *datapoint.Datapoint, params merge.Params, multiValue bool, toRewrite *[]datapoint.Datapoint, toDelete *[]string) error {
	for _, d := range neighbors {
		if d.Overlaps(data.T1, data.T2) {
			continue
		}
		if merge.Mergeable(*data, d, params) {
			merge.Merge(agg, d, params)
			if d.Tag == datapoint.Aggregated {
				*toDelete = append(*toDelete, d.ID)
			} else {
				d.Tag = datapoint.Redundant
				*toRewrite = append(*toRewrite, d)
			}
			continue
		}
		if multiValue {
			continue
		}
		break
	}
	return nil
}

// splitDatapoint implements §4.5.1: it reconstructs an AGGREGATED d by
// replaying its REDUNDANT constituents around pivot, producing up to two
// new aggregates (PLAIN if a side reduces to a single constituent).
func (hm *HistoryManager) splitDatapoint(ctx context.Context, etype, attrID string, d datapoint.Datapoint, pivot time.Time, params merge.Params) error {
	constituents, err := hm.db.GetDatapointsRange(ctx, datapoint.RangeQuery{
		EType: etype, Attr: attrID, EID: d.EID,
		T1: &d.T1, T2: &d.T2,
		ClosedInterval:  true,
		FilterRedundant: datapoint.FilterOnlyRedundant,
		Sort:            datapoint.SortAscByT1,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(constituents) < 1 || !constituents[0].T1.Before(pivot) {
		return fmt.Errorf("%w: %s.%s split of %s at %s", ErrSplitUnderflow, etype, attrID, d.ID, pivot.Format(time.RFC3339))
	}

	var pre, post []datapoint.Datapoint
	for _, c := range constituents {
		if !c.T2.After(pivot) {
			pre = append(pre, c)
		} else {
			post = append(post, c)
		}
	}

	var newAggs []datapoint.Datapoint
	toDelete := []string{d.ID}
	for _, group := range [][]datapoint.Datapoint{pre, post} {
		if len(group) == 0 {
			continue
		}
		built := group[0].Copy()
		for _, rest := range group[1:] {
			merge.Merge(&built, rest, params)
		}
		built.ID = uuid.NewString()
		if len(group) == 1 {
			// A side that collapses to a single constituent is promoted to
			// PLAIN under a new id; the original REDUNDANT row it replaces
			// must be deleted or it is left with no AGGREGATED parent (I2).
			built.Tag = datapoint.Plain
			toDelete = append(toDelete, group[0].ID)
		} else {
			built.Tag = datapoint.Aggregated
		}
		newAggs = append(newAggs, built)
	}

	if err := hm.db.DeleteMultipleRecords(ctx, etype, attrID, toDelete); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	for _, na := range newAggs {
		if err := hm.db.CreateDatapoint(ctx, etype, attrID, na); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	log.Debugf("split %s.%s datapoint %s into %d aggregate(s) at pivot %s", etype, attrID, d.ID, len(newAggs), pivot.Format(time.RFC3339))
	return nil
}
