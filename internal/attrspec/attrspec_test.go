// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package attrspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainSpec(dataType string) map[string]any {
	return map[string]any{
		"type":      "plain",
		"data_type": dataType,
	}
}

func TestNewRejectsMissingFields(t *testing.T) {
	_, err := New("x", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestNewColorValidation(t *testing.T) {
	cases := []struct {
		color string
		ok    bool
	}{
		{"#abcdef", true},
		{"#ABCDEF", true},
		{"#GGGGGG", false},
		{"abcdef", false},
	}
	for _, c := range cases {
		spec := plainSpec("string")
		spec["color"] = c.color
		_, err := New("x", spec)
		if c.ok {
			assert.NoError(t, err, c.color)
		} else {
			assert.ErrorIs(t, err, ErrInvalidSpec, c.color)
		}
	}
}

func TestPlainPrimitiveValidator(t *testing.T) {
	a, err := New("name", plainSpec("string"))
	require.NoError(t, err)
	assert.True(t, a.Validate("hello"))
	assert.False(t, a.Validate(42))
}

func TestCategoryValidatorWithList(t *testing.T) {
	spec := map[string]any{
		"type":       "plain",
		"data_type":  "category",
		"categories": []any{"red", "green", "blue"},
	}
	a, err := New("color", spec)
	require.NoError(t, err)
	assert.True(t, a.Validate("red"))
	assert.False(t, a.Validate("purple"))
}

func TestCategoryValidatorWithoutList(t *testing.T) {
	a, err := New("color", plainSpec("category"))
	require.NoError(t, err)
	assert.True(t, a.Validate("anything"))
	assert.False(t, a.Validate(1))
}

func TestArrayAndSetValidators(t *testing.T) {
	arr, err := New("x", plainSpec("array<int>"))
	require.NoError(t, err)
	assert.True(t, arr.Validate([]any{1, 2, 3}))
	assert.False(t, arr.Validate([]any{1, "2"}))

	set, err := New("x", plainSpec("set<int>"))
	require.NoError(t, err)
	assert.True(t, set.Validate([]any{1, 2, 3}))
	assert.False(t, set.Validate([]any{1, 1}))
}

func TestDictValidator(t *testing.T) {
	a, err := New("x", plainSpec("dict<k1:int,k2?:string>"))
	require.NoError(t, err)
	assert.True(t, a.Validate(map[string]any{"k1": 1}))
	assert.True(t, a.Validate(map[string]any{"k1": 1, "k2": "hi"}))
	assert.False(t, a.Validate(map[string]any{"k2": "hi"}))
}

func TestLinkValidator(t *testing.T) {
	a, err := New("x", plainSpec("link<ip>"))
	require.NoError(t, err)
	assert.True(t, a.Validate("1.2.3.4"))
	assert.False(t, a.Validate(nil))
}

func TestProbabilityRequiresPrimitive(t *testing.T) {
	spec := plainSpec("string")
	spec["probability"] = true
	a, err := New("x", spec)
	require.NoError(t, err)
	assert.True(t, a.Validate(map[string]any{"a": 0.5, "b": 0.5}))

	bad := plainSpec("array<int>")
	bad["probability"] = true
	_, err = New("x", bad)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestObservationsDefaultHistoryParams(t *testing.T) {
	spec := map[string]any{
		"type":      "observations",
		"data_type": "int",
		"history_params": map[string]any{
			"pre_validity":  "10s",
			"post_validity": "20s",
		},
	}
	a, err := New("ttl", spec)
	require.NoError(t, err)
	require.True(t, a.History)
	require.NotNil(t, a.HistoryParams)
	assert.Equal(t, AggKeep, a.HistoryParams.AggregationFunctionValue)
	assert.Equal(t, AggAvg, a.HistoryParams.AggregationFunctionConfidence)
	assert.Equal(t, AggCSVUnion, a.HistoryParams.AggregationFunctionSource)
	assert.Equal(t, a.HistoryParams.PreValidity+a.HistoryParams.PostValidity, a.HistoryParams.AggregationInterval)
	assert.True(t, a.HistoryParams.ExpireTime.IsInfinite())
}

func TestObservationsRejectsBadAggregationFunction(t *testing.T) {
	spec := map[string]any{
		"type":      "observations",
		"data_type": "int",
		"history_params": map[string]any{
			"aggregation_function_value": "min",
		},
	}
	_, err := New("x", spec)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestTimeseriesDefaultSeries(t *testing.T) {
	spec := map[string]any{
		"type":            "timeseries",
		"timeseries_type": "irregular",
		"series":          map[string]any{},
	}
	a, err := New("load", spec)
	require.NoError(t, err)
	_, hasTime := a.Series["time"]
	assert.True(t, hasTime)
	assert.True(t, a.Validate("anything"))
}

func TestTimeseriesRegularRequiresTimeStep(t *testing.T) {
	spec := map[string]any{
		"type":            "timeseries",
		"timeseries_type": "regular",
		"series":          map[string]any{},
	}
	_, err := New("load", spec)
	assert.ErrorIs(t, err, ErrInvalidSpec)

	spec["time_step"] = "10s"
	a, err := New("load", spec)
	require.NoError(t, err)
	assert.Equal(t, int64(10), a.TimeStep.Nanoseconds()/int64(1e9))
}
