// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package updateplanner implements the Update Planner (§4.7): on entity
// creation it plants the next-regular-update fields an external Updater
// later consumes to issue periodic regular-update events.
package updateplanner

import "time"

const (
	oneDay  = 24 * time.Hour
	oneWeek = 7 * 24 * time.Hour
)

// RecordPatch names the two fields a !NEW event handler writes onto a
// freshly created entity.
type RecordPatch struct {
	NRU1D time.Time // _nru1d
	NRU1W time.Time // _nru1w
}

// Planner computes RecordPatch values for newly created entities.
type Planner struct{}

// New constructs a Planner. It carries no state: the computation is a pure
// function of the entity's creation instant.
func New() *Planner { return &Planner{} }

// HandleNew implements the !NEW event handler of §4.7.
func (p *Planner) HandleNew(etype, eid string, tsAdded time.Time) RecordPatch {
	return RecordPatch{
		NRU1D: tsAdded.Add(oneDay),
		NRU1W: tsAdded.Add(oneWeek),
	}
}
