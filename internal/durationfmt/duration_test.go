// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package durationfmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		inf  bool
	}{
		{"0", 0, false},
		{"1s", time.Second, false},
		{"90m", 90 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"inf", 0, true},
	}

	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := Parse(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.inf, got.IsInfinite())
			if !c.inf {
				assert.Equal(t, c.want, got.Duration())
			}
		})
	}
}

func TestParseDurationMalformed(t *testing.T) {
	for _, in := range []string{"10y", "abc", "1", "-5s", "5", "10 s", ""} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrMalformedDuration)
		})
	}
}

func TestParseTimestampRoundTrip(t *testing.T) {
	in := "2024-01-01T00:01:30Z"
	got, err := ParseTimestamp(in)
	require.NoError(t, err)
	assert.Equal(t, in, FormatTimestamp(got)[:len(in)])
}

func TestParseTimestampMalformed(t *testing.T) {
	for _, in := range []string{"2024-01-01", "not-a-time", "2024-13-40T00:00:00Z"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTimestamp(in)
			assert.ErrorIs(t, err, ErrMalformedTimestamp)
		})
	}
}
