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
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	talSeparator = 0x14 // separates the onset, annotations and the end of a TAL
	talDuration  = 0x15 // introduces the optional duration of a TAL
)

// parseSeconds parses a decimal number of seconds ("30", "0.25", "+12.5")
// into an exact duration.
func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty number of seconds")
	}

	// Exponents are legal in the header but never exact.
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return time.Duration(math.Round(f * float64(time.Second))), nil
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid number of seconds %q", s)
	}

	var d time.Duration
	if whole != "" {
		secs, err := strconv.ParseUint(whole, 10, 63)
		if err != nil {
			return 0, err
		}
		d = time.Duration(secs) * time.Second
	}
	if frac != "" {
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		ns, err := strconv.ParseUint(frac, 10, 32)
		if err != nil {
			return 0, err
		}
		d += time.Duration(ns)
	}

	if neg {
		d = -d
	}
	return d, nil
}

// formatSeconds renders a duration as the shortest exact decimal number of seconds.
func formatSeconds(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	whole := int64(d / time.Second)
	frac := int64(d % time.Second)
	if frac == 0 {
		return sign + strconv.FormatInt(whole, 10)
	}
	fs := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return sign + strconv.FormatInt(whole, 10) + "." + fs
}

// timeKeepingTAL returns the annotation list that opens a time-track buffer:
// the record onset followed by an empty annotation.
func timeKeepingTAL(onset time.Duration) []byte {
	s := formatSeconds(onset)
	if onset >= 0 {
		s = "+" + s
	}
	return append([]byte(s), talSeparator, talSeparator, 0)
}

// recordOnset extracts the onset of the first TAL in a time-track buffer.
func recordOnset(b []byte) (time.Duration, error) {
	end := bytes.IndexAny(b, string([]byte{talSeparator, talDuration}))
	if end <= 0 {
		return 0, errors.New("missing time-keeping annotation")
	}
	onset := string(b[:end])
	if onset[0] != '+' && onset[0] != '-' {
		return 0, fmt.Errorf("onset %q has no sign", onset)
	}
	return parseSeconds(onset)
}
