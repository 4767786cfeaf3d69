// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedHeader    = errors.New("malformed header")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
	ErrDimensionMismatch  = errors.New("dimension mismatch")
	ErrInconsistentMask   = errors.New("inconsistent epoch mask")
	ErrOverlap            = errors.New("overlapping intervals")
	ErrHeaderMismatch     = errors.New("incompatible headers")
	ErrDuplicateChannel   = errors.New("duplicate channel label")
	ErrNotDataChannel     = errors.New("not a data channel")
	ErrLayoutChanged      = errors.New("record layout no longer matches storage")
)

// HeaderError describes a header field that could not be parsed or is
// inconsistent with the rest of the header.
type HeaderError struct {
	Field  string
	Signal int // -1 for file level fields
	Value  string
	Err    error
}

func (e *HeaderError) Error() string {
	msg := fmt.Sprintf("%s: field %q", ErrMalformedHeader, e.Field)
	if e.Signal >= 0 {
		msg += fmt.Sprintf(" of signal %d", e.Signal)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HeaderError) Is(target error) bool {
	return target == ErrMalformedHeader
}

func (e *HeaderError) Unwrap() error {
	return e.Err
}

// IOError wraps a failure of the underlying storage.
type IOError struct {
	Op     string
	Record int // -1 when not tied to a data record
	Err    error
}

func (e *IOError) Error() string {
	if e.Record >= 0 {
		return fmt.Sprintf("error %s record %d: %v", e.Op, e.Record, e.Err)
	}
	return fmt.Sprintf("error %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
