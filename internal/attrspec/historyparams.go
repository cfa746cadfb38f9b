// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package attrspec

import (
	"time"

	"github.com/dp3/historymgr/internal/durationfmt"
)

// AggFunc is one of the aggregation-function selectors observations
// history_params can name for value/confidence/source merging.
type AggFunc string

const (
	AggKeep     AggFunc = "keep"
	AggAdd      AggFunc = "add"
	AggAvg      AggFunc = "avg"
	AggCSVUnion AggFunc = "csv_union"
)

var aggFuncs = map[AggFunc]bool{
	AggKeep: true, AggAdd: true, AggAvg: true, AggCSVUnion: true,
}

// HistoryParams holds the observations-only retention/aggregation
// parameters of §3.
type HistoryParams struct {
	MaxAge   durationfmt.Duration
	MaxItems *int
	// ExpireTime is the per-value expiration window written into an
	// entity's {attr}:exp slot. Infinite() means values never expire.
	ExpireTime durationfmt.Duration

	PreValidity         time.Duration
	PostValidity        time.Duration
	AggregationInterval time.Duration
	AggregationMaxAge   time.Duration

	AggregationFunctionValue      AggFunc
	AggregationFunctionConfidence AggFunc
	AggregationFunctionSource     AggFunc
}

func parseHistoryParams(raw map[string]any) (*HistoryParams, error) {
	if raw == nil {
		return nil, missingField("history_params")
	}

	hp := &HistoryParams{
		ExpireTime:                    durationfmt.Infinite(),
		AggregationFunctionValue:      AggKeep,
		AggregationFunctionConfidence: AggAvg,
		AggregationFunctionSource:     AggCSVUnion,
	}

	if maxAgeStr, ok := raw["max_age"]; ok && maxAgeStr != nil {
		s, ok := maxAgeStr.(string)
		if !ok {
			return nil, wrongType("max_age", "string")
		}
		d, err := durationfmt.Parse(s)
		if err != nil {
			return nil, invalidField("max_age", err.Error())
		}
		hp.MaxAge = d
	} else {
		hp.MaxAge = durationfmt.Infinite()
	}

	if n, present, err := getInt(raw, "max_items"); err != nil {
		return nil, err
	} else if present {
		if n <= 0 {
			return nil, invalidField("max_items", "must be a positive int")
		}
		hp.MaxItems = &n
	}

	if expStr, ok := raw["expire_time"]; ok && expStr != nil {
		s, ok := expStr.(string)
		if !ok {
			return nil, wrongType("expire_time", "string")
		}
		d, err := durationfmt.Parse(s)
		if err != nil {
			return nil, invalidField("expire_time", err.Error())
		}
		hp.ExpireTime = d
	}

	var err error
	if hp.PreValidity, err = parseDurationField(raw, "pre_validity", "0s"); err != nil {
		return nil, err
	}
	if hp.PostValidity, err = parseDurationField(raw, "post_validity", "0s"); err != nil {
		return nil, err
	}

	if raw["aggregation_interval"] != nil {
		if hp.AggregationInterval, err = parseDurationField(raw, "aggregation_interval", ""); err != nil {
			return nil, err
		}
	} else {
		hp.AggregationInterval = hp.PreValidity + hp.PostValidity
	}

	if hp.AggregationMaxAge, err = parseDurationField(raw, "aggregation_max_age", "0s"); err != nil {
		return nil, err
	}

	for _, f := range []struct {
		field string
		dst   *AggFunc
	}{
		{"aggregation_function_value", &hp.AggregationFunctionValue},
		{"aggregation_function_confidence", &hp.AggregationFunctionConfidence},
		{"aggregation_function_source", &hp.AggregationFunctionSource},
	} {
		if v, ok := raw[f.field]; ok {
			s, ok := v.(string)
			if !ok {
				return nil, wrongType(f.field, "string")
			}
			*f.dst = AggFunc(s)
		}
		if !aggFuncs[*f.dst] {
			return nil, invalidField(f.field, "must be one of keep, add, avg, csv_union")
		}
	}

	return hp, nil
}

func parseDurationField(raw map[string]any, field, def string) (time.Duration, error) {
	s := def
	if v, ok := raw[field]; ok {
		str, ok := v.(string)
		if !ok {
			return 0, wrongType(field, "string")
		}
		s = str
	}
	d, err := durationfmt.Parse(s)
	if err != nil {
		return 0, invalidField(field, err.Error())
	}
	if d.IsInfinite() {
		return 0, invalidField(field, "must not be \"inf\"")
	}
	return d.Duration(), nil
}
