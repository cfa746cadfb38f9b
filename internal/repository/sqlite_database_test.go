// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dp3/historymgr/internal/datapoint"
	"github.com/dp3/historymgr/internal/historymanager"
)

func setupSQLiteDatabase(t *testing.T) *SQLiteDatabase {
	t.Helper()
	dbfile := filepath.Join(t.TempDir(), "history.db")
	conn, err := Connect(dbfile)
	require.NoError(t, err)
	t.Cleanup(func() { conn.DB.Close() })
	return NewSQLiteDatabase(conn)
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSQLiteDatabaseCreateAndRangeQuery(t *testing.T) {
	db := setupSQLiteDatabase(t)
	ctx := context.Background()

	dp := datapoint.Datapoint{
		ID: "dp1", EID: "sensor1", V: float64(42), C: 1, Src: "a",
		T1: ts("2026-01-01T00:00:00Z"), T2: ts("2026-01-01T00:01:00Z"), Tag: datapoint.Plain,
	}
	require.NoError(t, db.CreateDatapoint(ctx, "host", "temp", dp))

	t1, t2 := ts("2026-01-01T00:00:00Z"), ts("2026-01-01T00:02:00Z")
	got, err := db.GetDatapointsRange(ctx, datapoint.RangeQuery{
		EType: "host", Attr: "temp", EID: "sensor1", T1: &t1, T2: &t2, ClosedInterval: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "dp1", got[0].ID)
	require.Equal(t, float64(42), got[0].V)
}

func TestSQLiteDatabaseRewriteAndDelete(t *testing.T) {
	db := setupSQLiteDatabase(t)
	ctx := context.Background()

	dp := datapoint.Datapoint{
		ID: "dp1", EID: "sensor1", V: "red", C: 0.5, Src: "a",
		T1: ts("2026-01-01T00:00:00Z"), T2: ts("2026-01-01T00:01:00Z"), Tag: datapoint.Plain,
	}
	require.NoError(t, db.CreateDatapoint(ctx, "host", "color", dp))

	dp.V = "blue"
	dp.Tag = datapoint.Aggregated
	require.NoError(t, db.RewriteDatapoints(ctx, "host", "color", []datapoint.Datapoint{dp}))

	t1, t2 := ts("2026-01-01T00:00:00Z"), ts("2026-01-01T00:02:00Z")
	got, err := db.GetDatapointsRange(ctx, datapoint.RangeQuery{
		EType: "host", Attr: "color", EID: "sensor1", T1: &t1, T2: &t2, ClosedInterval: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "blue", got[0].V)
	require.Equal(t, datapoint.Aggregated, got[0].Tag)

	require.NoError(t, db.DeleteRecord(ctx, "host", "color", "dp1"))
	got, err = db.GetDatapointsRange(ctx, datapoint.RangeQuery{
		EType: "host", Attr: "color", EID: "sensor1", T1: &t1, T2: &t2, ClosedInterval: true,
	})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSQLiteDatabaseDeleteOldDatapointsByTag(t *testing.T) {
	db := setupSQLiteDatabase(t)
	ctx := context.Background()

	old := datapoint.Datapoint{
		ID: "old", EID: "e1", V: float64(1), Src: "a",
		T1: ts("2026-01-01T00:00:00Z"), T2: ts("2026-01-01T00:01:00Z"), Tag: datapoint.Redundant,
	}
	recent := datapoint.Datapoint{
		ID: "recent", EID: "e1", V: float64(2), Src: "a",
		T1: ts("2026-01-05T00:00:00Z"), T2: ts("2026-01-05T00:01:00Z"), Tag: datapoint.Redundant,
	}
	plainOld := datapoint.Datapoint{
		ID: "plain-old", EID: "e1", V: float64(3), Src: "a",
		T1: ts("2026-01-01T00:00:00Z"), T2: ts("2026-01-01T00:01:00Z"), Tag: datapoint.Plain,
	}
	require.NoError(t, db.CreateDatapoint(ctx, "host", "val", old))
	require.NoError(t, db.CreateDatapoint(ctx, "host", "val", recent))
	require.NoError(t, db.CreateDatapoint(ctx, "host", "val", plainOld))

	cutoff := ts("2026-01-02T00:00:00Z")
	redundant := datapoint.Redundant
	require.NoError(t, db.DeleteOldDatapoints(ctx, "host", "val", cutoff, nil, &redundant))

	t1, t2 := ts("2020-01-01T00:00:00Z"), ts("2030-01-01T00:00:00Z")
	got, err := db.GetDatapointsRange(ctx, datapoint.RangeQuery{
		EType: "host", Attr: "val", T1: &t1, T2: &t2, ClosedInterval: true,
		FilterRedundant: datapoint.FilterAllTags,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := map[string]bool{}
	for _, d := range got {
		ids[d.ID] = true
	}
	require.True(t, ids["recent"])
	require.True(t, ids["plain-old"])
	require.False(t, ids["old"])
}

func TestSQLiteDatabaseRecordRoundtrip(t *testing.T) {
	db := setupSQLiteDatabase(t)
	ctx := context.Background()

	rec, err := db.LoadRecord(ctx, "host", "e1")
	require.NoError(t, err)
	require.Empty(t, rec.V)

	rec.Set("temp", float64(21))
	rec.SetConfidence("temp", 0.8)
	require.True(t, rec.Dirty())
	require.NoError(t, db.PushRecord(ctx, rec))

	reloaded, err := db.LoadRecord(ctx, "host", "e1")
	require.NoError(t, err)
	require.Equal(t, float64(21), reloaded.V["temp"])
	require.Equal(t, 0.8, reloaded.C["temp"])
}

var _ historymanager.Database = (*SQLiteDatabase)(nil)
