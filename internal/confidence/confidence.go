// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package confidence implements the Confidence Extrapolator (§4.4): the
// effective confidence of a datapoint at an arbitrary instant, decaying
// across the pre/post validity windows around its interval.
package confidence

import (
	"time"

	"github.com/dp3/historymgr/internal/datapoint"
)

// Window holds the pre/post validity durations a given attribute's
// history_params declare.
type Window struct {
	PreValidity  time.Duration
	PostValidity time.Duration
}

// Extrapolate returns d's effective confidence at instant t (§4.4, I6).
// Outside [d.T1, d.T2] the confidence decays linearly across the
// corresponding validity window and clamps to zero once undefined
// (zero-length validity with nonzero distance).
func Extrapolate(d datapoint.Datapoint, t time.Time, w Window) float64 {
	var multiplier float64
	switch {
	case d.T2.Before(t):
		dist := t.Sub(d.T2)
		if w.PostValidity <= 0 {
			return 0
		}
		multiplier = 1 - float64(dist)/float64(w.PostValidity)
	case d.T1.After(t):
		dist := d.T1.Sub(t)
		if w.PreValidity <= 0 {
			return 0
		}
		multiplier = 1 - float64(dist)/float64(w.PreValidity)
	default:
		multiplier = 1
	}
	if multiplier < 0 {
		multiplier = 0
	}
	return d.C * multiplier
}
