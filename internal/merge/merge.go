// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package merge implements the pure mergeable/merge functions of the
// History Manager's Merge Engine (§4.3), parameterized by the triple of
// aggregation-function selectors an AttrSpec's history_params names.
package merge

import (
	"sort"
	"strings"

	"github.com/dp3/historymgr/internal/attrspec"
	"github.com/dp3/historymgr/internal/datapoint"
)

// Params is the triple of aggregation functions two datapoints of the same
// attribute are merged under.
type Params struct {
	Value      attrspec.AggFunc
	Confidence attrspec.AggFunc
	Source     attrspec.AggFunc
}

// Mergeable reports whether a and b may be combined into a single
// datapoint under params (§4.3). Commutative by construction (I4): each
// sub-check only compares equality or unconditionally permits.
func Mergeable(a, b datapoint.Datapoint, params Params) bool {
	return compatible(params.Value, a.V, b.V) &&
		compatible(params.Confidence, a.C, b.C) &&
		compatible(params.Source, a.Src, b.Src)
}

func compatible(fn attrspec.AggFunc, a, b any) bool {
	if fn != attrspec.AggKeep {
		return true
	}
	return valuesEqual(a, b)
}

func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

// Merge combines b into a in place, per §4.3: value/confidence/source are
// each recomputed via the corresponding aggregation function, and the
// interval is widened to the envelope of both (I5).
func Merge(a *datapoint.Datapoint, b datapoint.Datapoint, params Params) {
	a.V = applyValue(params.Value, a.V, b.V)
	a.C = applyConfidence(params.Confidence, a.C, b.C)
	a.Src = applySource(params.Source, a.Src, b.Src)

	if b.T1.Before(a.T1) {
		a.T1 = b.T1
	}
	if b.T2.After(a.T2) {
		a.T2 = b.T2
	}
}

func applyValue(fn attrspec.AggFunc, a, b any) any {
	switch fn {
	case attrspec.AggKeep:
		return a
	case attrspec.AggAdd:
		return numeric(fn, a, b)
	case attrspec.AggAvg:
		return numeric(fn, a, b)
	case attrspec.AggCSVUnion:
		return csvUnion(toString(a), toString(b))
	default:
		return a
	}
}

func applyConfidence(fn attrspec.AggFunc, a, b float64) float64 {
	switch fn {
	case attrspec.AggKeep:
		return a
	case attrspec.AggAdd:
		return a + b
	case attrspec.AggAvg:
		return (a + b) / 2
	case attrspec.AggCSVUnion:
		// confidence has no textual form to union; treat as avg, the
		// closest defined behavior, matching keep/add/avg's numeric
		// nature.
		return (a + b) / 2
	default:
		return a
	}
}

func applySource(fn attrspec.AggFunc, a, b string) string {
	switch fn {
	case attrspec.AggKeep:
		return a
	case attrspec.AggCSVUnion:
		return csvUnion(a, b)
	case attrspec.AggAdd, attrspec.AggAvg:
		// source is not numeric; add/avg on a CSV source degrade to
		// csv_union, the only operation that makes sense on tokens.
		return csvUnion(a, b)
	default:
		return a
	}
}

// numeric applies add/avg to two values that may be int or float64
// (as produced by JSON decoding), preserving int results when both inputs
// are int.
func numeric(fn attrspec.AggFunc, a, b any) any {
	ai, aIsInt := a.(int)
	bi, bIsInt := b.(int)
	if aIsInt && bIsInt {
		switch fn {
		case attrspec.AggAdd:
			return ai + bi
		case attrspec.AggAvg:
			return (ai + bi) / 2
		}
	}
	af, _ := toFloat(a)
	bf, _ := toFloat(b)
	switch fn {
	case attrspec.AggAdd:
		return af + bf
	case attrspec.AggAvg:
		return (af + bf) / 2
	default:
		return a
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// csvUnion returns the comma-separated, de-duplicated, sorted union of the
// tokens in a and b (§4.3 "comma-separated union of tokens"). Sorting
// keeps the result deterministic regardless of merge order.
func csvUnion(a, b string) string {
	seen := map[string]bool{}
	var tokens []string
	for _, src := range []string{a, b} {
		for _, tok := range strings.Split(src, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" || seen[tok] {
				continue
			}
			seen[tok] = true
			tokens = append(tokens, tok)
		}
	}
	sort.Strings(tokens)
	return strings.Join(tokens, ",")
}
