// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package attrspec

import (
	"time"

	"github.com/dp3/historymgr/internal/durationfmt"
)

// TimeseriesType selects the shape of a timeseries attribute's default
// series.
type TimeseriesType int

const (
	TimeseriesRegular TimeseriesType = iota
	TimeseriesIrregular
	TimeseriesIrregularIntervals
)

func parseTimeseriesType(s string) (TimeseriesType, bool) {
	switch s {
	case "regular":
		return TimeseriesRegular, true
	case "irregular":
		return TimeseriesIrregular, true
	case "irregular_intervals":
		return TimeseriesIrregularIntervals, true
	default:
		return 0, false
	}
}

// defaultSeries returns the series auto-added for a timeseries type, per
// §3: regular → {}, irregular → {time}, irregular_intervals →
// {time_first, time_last}.
func defaultSeries(t TimeseriesType) map[string]SeriesSpec {
	switch t {
	case TimeseriesIrregular:
		return map[string]SeriesSpec{"time": {DataType: Time}}
	case TimeseriesIrregularIntervals:
		return map[string]SeriesSpec{
			"time_first": {DataType: Time},
			"time_last":  {DataType: Time},
		}
	default:
		return map[string]SeriesSpec{}
	}
}

// SeriesSpec is one entry of a timeseries attribute's series map.
type SeriesSpec struct {
	DataType Primitive
}

var seriesPrimitives = map[Primitive]bool{Time: true, Int: true, Float: true}

// TimeseriesParams holds the timeseries-only max_age parameter. A nil
// MaxAge means "not configured" — delete_old_datapoints skips the
// attribute entirely (§4.6).
type TimeseriesParams struct {
	MaxAge *time.Duration
}

func parseTimeseriesParams(raw map[string]any) (*TimeseriesParams, error) {
	tp := &TimeseriesParams{}
	if raw == nil {
		return tp, nil
	}
	if v, ok := raw["max_age"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, wrongType("max_age", "string")
		}
		d, err := durationfmt.Parse(s)
		if err != nil {
			return nil, invalidField("max_age", err.Error())
		}
		if d.IsInfinite() {
			return tp, nil
		}
		dur := d.Duration()
		tp.MaxAge = &dur
	}
	return tp, nil
}
