// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package confidence

import (
	"testing"
	"time"

	"github.com/dp3/historymgr/internal/datapoint"
	"github.com/stretchr/testify/assert"
)

func parseT(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestExtrapolateInsideInterval(t *testing.T) {
	d := datapoint.Datapoint{C: 0.8, T1: parseT("2024-01-01T00:00:00Z"), T2: parseT("2024-01-01T00:10:00Z")}
	w := Window{PreValidity: time.Minute, PostValidity: time.Minute}
	got := Extrapolate(d, parseT("2024-01-01T00:05:00Z"), w)
	assert.Equal(t, d.C, got)
}

func TestExtrapolateDecaysAfterEnd(t *testing.T) {
	d := datapoint.Datapoint{C: 1.0, T1: parseT("2024-01-01T00:00:00Z"), T2: parseT("2024-01-01T00:10:00Z")}
	w := Window{PreValidity: 0, PostValidity: 10 * time.Minute}
	got := Extrapolate(d, parseT("2024-01-01T00:15:00Z"), w)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestExtrapolateDecaysBeforeStart(t *testing.T) {
	d := datapoint.Datapoint{C: 1.0, T1: parseT("2024-01-01T00:10:00Z"), T2: parseT("2024-01-01T00:20:00Z")}
	w := Window{PreValidity: 10 * time.Minute, PostValidity: 0}
	got := Extrapolate(d, parseT("2024-01-01T00:05:00Z"), w)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestExtrapolateZeroValidityUndefinedIsZero(t *testing.T) {
	d := datapoint.Datapoint{C: 1.0, T1: parseT("2024-01-01T00:10:00Z"), T2: parseT("2024-01-01T00:20:00Z")}
	w := Window{PreValidity: 0, PostValidity: 0}
	got := Extrapolate(d, parseT("2024-01-01T00:05:00Z"), w)
	assert.Equal(t, 0.0, got)
}

func TestExtrapolateBounded(t *testing.T) {
	d := datapoint.Datapoint{C: 0.6, T1: parseT("2024-01-01T00:10:00Z"), T2: parseT("2024-01-01T00:20:00Z")}
	w := Window{PreValidity: time.Minute, PostValidity: time.Minute}
	got := Extrapolate(d, parseT("2024-01-01T05:00:00Z"), w)
	assert.GreaterOrEqual(t, got, 0.0)
	assert.LessOrEqual(t, got, d.C)
}
