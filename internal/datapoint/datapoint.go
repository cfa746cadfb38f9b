// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package datapoint defines the interval-valued observation record the
// History Manager ingests, merges, and prunes.
package datapoint

import (
	"fmt"
	"time"
)

// Tag identifies which of the three mutually exclusive lifecycle states a
// stored datapoint occupies (§3, §9 "Tag encoding").
type Tag int

const (
	Plain Tag = iota
	Aggregated
	Redundant
)

func (t Tag) String() string {
	switch t {
	case Plain:
		return "PLAIN"
	case Aggregated:
		return "AGGREGATED"
	case Redundant:
		return "REDUNDANT"
	default:
		return "UNKNOWN"
	}
}

// Datapoint is one observation row: {id, eid, v, c, src, t1, t2, tag} (§3).
type Datapoint struct {
	ID  string
	EID string

	V   any
	C   float64
	Src string

	T1 time.Time
	T2 time.Time

	Tag Tag
}

// Copy returns a value copy suitable for use as the running aggregate built
// by History Manager ingest (§4.5 Step 2's `agg ← copy(data)`).
func (d Datapoint) Copy() Datapoint {
	return d
}

// Overlaps reports whether this datapoint's closed interval intersects the
// open-ended query interval (t1, t2), matching §4.5 Step 1's overlap
// predicate: datapoints that merely touch at an endpoint do not overlap.
func (d Datapoint) Overlaps(t1, t2 time.Time) bool {
	return d.T2.After(t1) && d.T1.Before(t2)
}

// Contains reports whether this datapoint's closed interval contains the
// other's closed interval, used by I2 (no double subsumption).
func (d Datapoint) Contains(other Datapoint) bool {
	return !d.T1.After(other.T1) && !other.T2.After(d.T2)
}

func (d Datapoint) String() string {
	return fmt.Sprintf("Datapoint{id=%s eid=%s v=%v c=%.3f src=%q t1=%s t2=%s tag=%s}",
		d.ID, d.EID, d.V, d.C, d.Src, d.T1.Format(time.RFC3339), d.T2.Format(time.RFC3339), d.Tag)
}

// Sort orders and directions accepted by a range query (§6
// get_datapoints_range).
type SortOrder int

const (
	SortAscByT1 SortOrder = iota
	SortDescByT2
)

// RedundantFilter selects which tag subset a range query returns.
type RedundantFilter int

const (
	// FilterExcludeRedundant returns every tag except REDUNDANT.
	FilterExcludeRedundant RedundantFilter = iota
	// FilterOnlyRedundant returns only REDUNDANT-tagged datapoints.
	FilterOnlyRedundant
	// FilterAllTags returns every tag, REDUNDANT included.
	FilterAllTags
)

// RangeQuery is the parameter set of §6's get_datapoints_range.
type RangeQuery struct {
	EType  string
	Attr   string
	EID    string // empty means "all entities"
	T1, T2 *time.Time
	// ClosedInterval, when true, includes datapoints touching the query
	// bounds exactly at an endpoint; the ingest path always queries with
	// open-ended semantics itself via Datapoint.Overlaps, so this flag
	// only affects database-level range queries.
	ClosedInterval  bool
	Sort            SortOrder
	FilterRedundant RedundantFilter
	Limit           int // 0 means unlimited
}
