// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package durationfmt parses the short human duration strings and RFC3339
// timestamps used throughout AttrSpec documents.
package durationfmt

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrMalformedDuration is returned when a duration string does not match the
// "<integer><unit>" grammar, and is not "0" or "inf".
var ErrMalformedDuration = errors.New("malformed duration")

// ErrMalformedTimestamp is returned when a string is not a valid RFC3339
// timestamp of the accepted shape.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

var durationPattern = regexp.MustCompile(`^([0-9]+)([smhdw])$`)

var unitScale = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// Duration is either a concrete time.Duration or the "inf" sentinel meaning
// "never expires". The zero value is the finite duration 0.
type Duration struct {
	d   time.Duration
	inf bool
}

// Infinite returns the "inf" (no-expiration) duration.
func Infinite() Duration {
	return Duration{inf: true}
}

// Finite wraps a concrete time.Duration.
func Finite(d time.Duration) Duration {
	return Duration{d: d}
}

// IsInfinite reports whether this duration is the "inf" sentinel.
func (d Duration) IsInfinite() bool {
	return d.inf
}

// Duration returns the wrapped time.Duration. It returns 0 for an infinite
// duration; callers must check IsInfinite first when that distinction
// matters.
func (d Duration) Duration() time.Duration {
	if d.inf {
		return 0
	}
	return d.d
}

func (d Duration) String() string {
	if d.inf {
		return "inf"
	}
	return d.d.String()
}

// Parse parses a duration string of the grammar "<integer><unit>" with
// unit in {s,m,h,d,w}, plus the literals "0" and "inf".
func Parse(s string) (Duration, error) {
	switch s {
	case "inf":
		return Infinite(), nil
	case "0":
		return Finite(0), nil
	}

	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return Duration{}, fmt.Errorf("%w: %q", ErrMalformedDuration, s)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Duration{}, fmt.Errorf("%w: %q", ErrMalformedDuration, s)
	}

	return Finite(time.Duration(n) * unitScale[m[2][0]]), nil
}

var timestampPattern = regexp.MustCompile(
	`^[0-9]{4}-[0-9]{2}-[0-9]{2}[Tt ][0-9]{2}:[0-9]{2}:[0-9]{2}(?:\.[0-9]+)?([Zz]|(?:[+-][0-9]{2}:[0-9]{2}))?$`)

// ParseTimestamp parses an RFC3339-ish timestamp string. Strings that do
// not match the YYYY-MM-DDThh:mm:ss[.fff][Z|±hh:mm] shape fail with
// ErrMalformedTimestamp, even if they would otherwise be accepted by
// time.Parse.
func ParseTimestamp(s string) (time.Time, error) {
	if !timestampPattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}

	// Normalize the (rare) "YYYY-MM-DD hh:mm:ss" and lowercase-separator
	// forms to what time.Parse(time.RFC3339Nano, ...) accepts.
	norm := []byte(s)
	if norm[10] == ' ' || norm[10] == 't' {
		norm[10] = 'T'
	}
	if len(norm) > 0 {
		last := len(norm) - 1
		if norm[last] == 'z' {
			norm[last] = 'Z'
		}
	}

	t, err := time.Parse(time.RFC3339Nano, string(norm))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	return t, nil
}

// FormatTimestamp renders t as RFC3339Nano, the inverse of ParseTimestamp
// for any instant it produced.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
