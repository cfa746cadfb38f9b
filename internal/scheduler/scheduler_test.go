// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeHousekeeper struct {
	housekeeping bool
	pruneCalls   atomic.Int32
	refreshCalls atomic.Int32
}

func (f *fakeHousekeeper) IsHousekeepingWorker() bool { return f.housekeeping }

func (f *fakeHousekeeper) DeleteOldDatapoints(ctx context.Context, now time.Time) error {
	f.pruneCalls.Add(1)
	return nil
}

func (f *fakeHousekeeper) ManageCurrentEntityValues(ctx context.Context, now time.Time) error {
	f.refreshCalls.Add(1)
	return nil
}

func TestSchedulerRunsJobsOnHousekeepingWorker(t *testing.T) {
	hk := &fakeHousekeeper{housekeeping: true}
	sc, err := New(hk, 20*time.Millisecond, 20*time.Millisecond)
	require.NoError(t, err)

	sc.Start()
	t.Cleanup(func() { sc.Shutdown() })

	require.Eventually(t, func() bool {
		return hk.pruneCalls.Load() > 0 && hk.refreshCalls.Load() > 0
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerSkipsNonHousekeepingWorker(t *testing.T) {
	hk := &fakeHousekeeper{housekeeping: false}
	sc, err := New(hk, 10*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)

	sc.Start()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sc.Shutdown())

	require.Equal(t, int32(0), hk.pruneCalls.Load())
	require.Equal(t, int32(0), hk.refreshCalls.Load())
}
