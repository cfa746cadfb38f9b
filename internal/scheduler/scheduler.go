// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scheduler binds the two housekeeping jobs (datapoint pruning and
// current-value maintenance, §4.6) to a gocron schedule, the same
// go-co-op/gocron/v2 wiring the teacher's taskManager package uses for its
// own background jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/dp3/historymgr/pkg/log"
)

// Housekeeper is the subset of HistoryManager the scheduler drives. Kept as
// an interface so tests can substitute a fake rather than building a full
// HistoryManager.
type Housekeeper interface {
	IsHousekeepingWorker() bool
	DeleteOldDatapoints(ctx context.Context, now time.Time) error
	ManageCurrentEntityValues(ctx context.Context, now time.Time) error
}

// Scheduler owns the gocron scheduler instance running both housekeeping
// jobs (§5: only the worker whose index is 0 runs them).
type Scheduler struct {
	s  gocron.Scheduler
	hk Housekeeper
}

// New builds a Scheduler for hk, running DeleteOldDatapoints every
// pruneInterval and ManageCurrentEntityValues every refreshInterval. If hk
// is not the housekeeping worker, the returned Scheduler starts no jobs: it
// exists so other workers can still call Shutdown uniformly.
func New(hk Housekeeper, pruneInterval, refreshInterval time.Duration) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		log.Errorf("scheduler: could not create gocron scheduler: %s", err.Error())
		return nil, err
	}
	sched := &Scheduler{s: s, hk: hk}

	if !hk.IsHousekeepingWorker() {
		log.Info("scheduler: not the housekeeping worker, no jobs registered")
		return sched, nil
	}

	if _, err := s.NewJob(
		gocron.DurationJob(pruneInterval),
		gocron.NewTask(func() {
			log.Info("scheduler: running DeleteOldDatapoints")
			if err := hk.DeleteOldDatapoints(context.Background(), time.Now()); err != nil {
				log.Errorf("scheduler: DeleteOldDatapoints failed: %s", err.Error())
			}
		}),
	); err != nil {
		return nil, err
	}

	if _, err := s.NewJob(
		gocron.DurationJob(refreshInterval),
		gocron.NewTask(func() {
			log.Info("scheduler: running ManageCurrentEntityValues")
			if err := hk.ManageCurrentEntityValues(context.Background(), time.Now()); err != nil {
				log.Errorf("scheduler: ManageCurrentEntityValues failed: %s", err.Error())
			}
		}),
	); err != nil {
		return nil, err
	}

	return sched, nil
}

// Start begins running the registered jobs. A no-op Scheduler (non-
// housekeeping worker) is safe to Start too: gocron simply has nothing to do.
func (sc *Scheduler) Start() { sc.s.Start() }

// Shutdown stops the scheduler and waits for any in-flight job to finish.
func (sc *Scheduler) Shutdown() error { return sc.s.Shutdown() }
