// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package attrspec

import (
	"errors"
	"fmt"
)

// ErrInvalidSpec is the sentinel wrapped by every construction failure, so
// callers can test with errors.Is regardless of which field failed.
var ErrInvalidSpec = errors.New("invalid attribute spec")

// InvalidFieldError names the offending field of a rejected AttrSpec
// document.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

func (e *InvalidFieldError) Unwrap() error {
	return ErrInvalidSpec
}

func invalidField(field, reason string) error {
	return &InvalidFieldError{Field: field, Reason: reason}
}

func missingField(field string) error {
	return invalidField(field, "mandatory field is missing")
}

func wrongType(field, want string) error {
	return invalidField(field, fmt.Sprintf("must be of type %s", want))
}
