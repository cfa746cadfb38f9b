// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package merge

import (
	"testing"
	"time"

	"github.com/dp3/historymgr/internal/attrspec"
	"github.com/dp3/historymgr/internal/datapoint"
	"github.com/stretchr/testify/assert"
)

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMergeableCommutative(t *testing.T) {
	a := datapoint.Datapoint{V: 1, C: 0.5, Src: "A"}
	b := datapoint.Datapoint{V: 2, C: 0.5, Src: "A"}
	params := Params{Value: attrspec.AggKeep, Confidence: attrspec.AggAvg, Source: attrspec.AggCSVUnion}
	assert.Equal(t, Mergeable(a, b, params), Mergeable(b, a, params))
}

func TestMergeIdempotenceKeep(t *testing.T) {
	x := datapoint.Datapoint{V: 1, C: 0.7, Src: "A", T1: mustParse("2024-01-01T00:00:00Z"), T2: mustParse("2024-01-01T00:01:00Z")}
	params := Params{Value: attrspec.AggKeep, Confidence: attrspec.AggKeep, Source: attrspec.AggKeep}
	require := x
	Merge(&x, require, params)
	assert.Equal(t, require.V, x.V)
	assert.Equal(t, require.C, x.C)
	assert.Equal(t, require.Src, x.Src)
}

func TestMergeIdempotenceAdd(t *testing.T) {
	x := datapoint.Datapoint{V: 3, C: 0.5}
	orig := x
	params := Params{Value: attrspec.AggAdd, Confidence: attrspec.AggKeep, Source: attrspec.AggKeep}
	Merge(&x, orig, params)
	assert.Equal(t, 6, x.V)
}

func TestMergeIntervalEnvelope(t *testing.T) {
	a := datapoint.Datapoint{V: 1, C: 0.8, Src: "A", T1: mustParse("2024-01-01T00:00:00Z"), T2: mustParse("2024-01-01T00:01:00Z")}
	b := datapoint.Datapoint{V: 1, C: 1.0, Src: "B", T1: mustParse("2024-01-01T00:00:30Z"), T2: mustParse("2024-01-01T00:01:30Z")}
	params := Params{Value: attrspec.AggKeep, Confidence: attrspec.AggAvg, Source: attrspec.AggCSVUnion}
	require_ := Mergeable(a, b, params)
	assert.True(t, require_)
	Merge(&a, b, params)
	assert.Equal(t, mustParse("2024-01-01T00:00:00Z"), a.T1)
	assert.Equal(t, mustParse("2024-01-01T00:01:30Z"), a.T2)
	assert.Equal(t, 1, a.V)
	assert.InDelta(t, 0.9, a.C, 1e-9)
	assert.Equal(t, "A,B", a.Src)
}

func TestMergeableKeepRejectsDifferentValues(t *testing.T) {
	a := datapoint.Datapoint{V: 1}
	b := datapoint.Datapoint{V: 2}
	params := Params{Value: attrspec.AggKeep, Confidence: attrspec.AggAvg, Source: attrspec.AggCSVUnion}
	assert.False(t, Mergeable(a, b, params))
}

func TestCSVUnionDeduplicates(t *testing.T) {
	assert.Equal(t, "A,B", csvUnion("A,B", "B"))
}
