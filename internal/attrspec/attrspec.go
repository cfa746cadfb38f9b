// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package attrspec parses and validates the AttrSpec documents that
// parameterize every decision the History Manager makes: attribute type,
// data type, history/timeseries retention parameters, and the value
// validator derived from them.
package attrspec

import (
	"regexp"
	"time"

	"github.com/dp3/historymgr/internal/durationfmt"
)

// Type is the top-level discriminator of an attribute: whether it carries
// a single current value, an observation history, or a timeseries.
type Type int

const (
	TypePlain Type = iota
	TypeObservations
	TypeTimeseries
)

func (t Type) String() string {
	switch t {
	case TypePlain:
		return "plain"
	case TypeObservations:
		return "observations"
	case TypeTimeseries:
		return "timeseries"
	default:
		return "unknown"
	}
}

func parseType(s string) (Type, bool) {
	switch s {
	case "plain":
		return TypePlain, true
	case "observations":
		return TypeObservations, true
	case "timeseries":
		return TypeTimeseries, true
	default:
		return 0, false
	}
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const defaultColor = "#000000"

// AttrSpec is the immutable, validated specification of one attribute of
// one entity type. Once constructed it is safe to share read-only across
// workers (§4.2).
type AttrSpec struct {
	ID          string
	Type        Type
	Name        string
	Description string
	Color       string

	// plain/observations only
	DataType    DataType
	Categories  []string
	Confidence  bool
	Probability bool
	Editable    bool

	// observations only
	History           bool
	MultiValue        bool
	HistoryForceGraph bool
	HistoryParams     *HistoryParams

	// timeseries only
	TimeseriesType   TimeseriesType
	Series           map[string]SeriesSpec
	TimeStep         time.Duration
	TimeseriesParams *TimeseriesParams
}

// New constructs an AttrSpec from its id and a loosely-typed spec document
// (as produced by unmarshaling YAML into map[string]any), or returns an
// error wrapping ErrInvalidSpec naming the offending field.
func New(id string, spec map[string]any) (*AttrSpec, error) {
	typeStr, err := requireString(spec, "type")
	if err != nil {
		return nil, err
	}
	t, ok := parseType(typeStr)
	if !ok {
		return nil, invalidField("type", "must be one of plain, observations, timeseries")
	}

	a := &AttrSpec{ID: id, Type: t}

	if a.Name, err = getString(spec, "name", id); err != nil {
		return nil, err
	}
	if a.Description, err = getString(spec, "description", ""); err != nil {
		return nil, err
	}
	if a.Color, err = getString(spec, "color", defaultColor); err != nil {
		return nil, err
	}
	if !colorPattern.MatchString(a.Color) {
		return nil, invalidField("color", "must match #RRGGBB")
	}

	switch t {
	case TypePlain:
		if err := a.initValueTyped(spec); err != nil {
			return nil, err
		}
	case TypeObservations:
		if err := a.initValueTyped(spec); err != nil {
			return nil, err
		}
		a.History = true
		if a.MultiValue, err = getBool(spec, "multi_value", false); err != nil {
			return nil, err
		}
		if a.HistoryForceGraph, err = getBool(spec, "history_force_graph", false); err != nil {
			return nil, err
		}
		hpRaw, err := getMap(spec, "history_params")
		if err != nil {
			return nil, err
		}
		if a.HistoryParams, err = parseHistoryParams(hpRaw); err != nil {
			return nil, err
		}
	case TypeTimeseries:
		if err := a.initTimeseries(spec); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *AttrSpec) initValueTyped(spec map[string]any) error {
	dataTypeStr, err := requireString(spec, "data_type")
	if err != nil {
		return err
	}

	if a.Categories, err = getStringSlice(spec, "categories"); err != nil {
		return err
	}
	if a.Confidence, err = getBool(spec, "confidence", false); err != nil {
		return err
	}
	if a.Probability, err = getBool(spec, "probability", false); err != nil {
		return err
	}
	if a.Editable, err = getBool(spec, "editable", false); err != nil {
		return err
	}

	dt, err := ParseDataType(dataTypeStr, a.Categories)
	if err != nil {
		return err
	}
	a.DataType = dt

	if a.Probability {
		if dt.Kind != KindPrimitive {
			return invalidField("probability", "only supported for primitive data types")
		}
	}

	return nil
}

func (a *AttrSpec) initTimeseries(spec map[string]any) error {
	tsTypeStr, err := requireString(spec, "timeseries_type")
	if err != nil {
		return err
	}
	tsType, ok := parseTimeseriesType(tsTypeStr)
	if !ok {
		return invalidField("timeseries_type", "must be one of regular, irregular, irregular_intervals")
	}
	a.TimeseriesType = tsType

	seriesRaw, err := getMap(spec, "series")
	if err != nil {
		return err
	}
	series := map[string]SeriesSpec{}
	for id, v := range seriesRaw {
		entry, ok := v.(map[string]any)
		if !ok {
			return invalidField("series", "each entry must be a mapping")
		}
		dtStr, err := requireString(entry, "data_type")
		if err != nil {
			return err
		}
		p := Primitive(dtStr)
		if !seriesPrimitives[p] {
			return invalidField("series", "data_type must be one of time, int, float")
		}
		series[id] = SeriesSpec{DataType: p}
	}

	if tsType == TimeseriesRegular {
		stepStr, err := requireString(spec, "time_step")
		if err != nil {
			return err
		}
		d, err := parseRequiredDuration(stepStr, "time_step")
		if err != nil {
			return err
		}
		a.TimeStep = d
	}

	// Automatically add default series (non-default entries win no
	// precedence conflicts in practice; §3).
	for id, s := range defaultSeries(tsType) {
		if _, exists := series[id]; !exists {
			series[id] = s
		}
	}
	a.Series = series

	tsParamsRaw, err := getMap(spec, "timeseries_params")
	if err != nil {
		return err
	}
	if a.TimeseriesParams, err = parseTimeseriesParams(tsParamsRaw); err != nil {
		return err
	}

	return nil
}

func parseRequiredDuration(s, field string) (time.Duration, error) {
	d, err := durationfmt.Parse(s)
	if err != nil {
		return 0, invalidField(field, err.Error())
	}
	if d.IsInfinite() {
		return 0, invalidField(field, "must not be \"inf\"")
	}
	return d.Duration(), nil
}

// Validate checks a single attribute value against this spec's rules
// (§4.2): timeseries values are always accepted (validation is delegated
// elsewhere), probability-flagged attributes validate a value->confidence
// mapping, and everything else dispatches to DataType.Validate.
func (a *AttrSpec) Validate(v any) bool {
	if a.Type == TypeTimeseries {
		return true
	}
	if a.Probability {
		m, ok := v.(map[string]any)
		if !ok {
			return false
		}
		for key, prob := range m {
			if !a.DataType.Validate(key) {
				// keys of a probability mapping are themselves primitive
				// values; if they don't round-trip through the string
				// form accepted by most primitives, fall back to
				// accepting any non-empty key.
				if key == "" {
					return false
				}
			}
			if _, ok := prob.(float64); !ok {
				return false
			}
		}
		return true
	}
	return a.DataType.Validate(v)
}
