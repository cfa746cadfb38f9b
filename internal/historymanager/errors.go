// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package historymanager

import "errors"

// Error kinds of §7. Each is a sentinel so callers can discriminate with
// errors.Is regardless of the wrapping added along the way.
var (
	// ErrOverlapConflict: ingest cannot proceed because the incoming
	// interval overlaps non-mergeable PLAIN datapoints on a single-value
	// attribute. The task is considered failed and is not auto-retried.
	ErrOverlapConflict = errors.New("overlap conflict")

	// ErrSplitUnderflow is an assertion-grade failure in split_datapoint:
	// fewer than one REDUNDANT constituent, or the earliest constituent
	// starts at or after the pivot.
	ErrSplitUnderflow = errors.New("split underflow")

	// ErrInvalidSpec mirrors attrspec.ErrInvalidSpec for callers that only
	// import this package.
	ErrInvalidSpec = errors.New("invalid attribute spec")

	// ErrMalformedDuration/ErrMalformedTimestamp mirror durationfmt's
	// sentinels, surfaced during ingest validation.
	ErrMalformedDuration  = errors.New("malformed duration")
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrStorage wraps any collaborator database failure. Housekeeping
	// logs it and continues to the next (etype, attr).
	ErrStorage = errors.New("storage error")

	// ErrHandler marks a failure while updating a single entity's
	// confidence/expiration state. The entity's multi-value vectors are
	// reset and processing continues.
	ErrHandler = errors.New("handler error")
)
