// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUnlimitedAllowsBurst(t *testing.T) {
	w := New(nil, 0)
	require.True(t, w.limiter.Allow())
	require.True(t, w.limiter.Allow())
}

func TestNewWithRateConfiguresBurst(t *testing.T) {
	w := New(nil, 5)
	require.Equal(t, 5, w.limiter.Burst())
}

func TestPutTaskNoopWithoutClient(t *testing.T) {
	w := New(nil, 0)
	require.NoError(t, w.PutTask("host", "e1", []string{"!NEW"}))
}
