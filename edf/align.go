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
	"cmp"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// AlignResult summarises an Align call.
type AlignResult struct {
	Accepted int // selectors copied into the new record layout
	Skipped  int // selectors that were not gap free or not a whole number of records
	Records  int // records in the aligned recording
}

// Align re-chunks the recording so that data records start exactly at the
// given selectors. Each selector must be covered by records without gaps
// and last a whole number of record durations; selectors that are not are
// skipped and counted. Overlapping selectors are an error. Accepted
// selectors are laid end to end in chronological order and every new record
// is stamped with the original time of its first sample, so the result is
// always a discontinuous EDF+ file.
func (f *File) Align(selectors []Interval) (AlignResult, error) {
	sel := slices.Clone(selectors)
	slices.SortFunc(sel, func(a, b Interval) int { return cmp.Compare(a.Start, b.Start) })
	for i := 1; i < len(sel); i++ {
		if sel[i-1].Overlaps(sel[i]) {
			return AlignResult{}, fmt.Errorf("%w: selectors %s and %s", ErrOverlap, sel[i-1], sel[i])
		}
	}

	d := f.tl.duration
	var res AlignResult
	accepted := sel[:0]
	for _, s := range sel {
		switch {
		case s.Length() == 0 || s.Length()%d != 0:
			f.log.Warn("Skipping selector that is not a whole number of records",
				zap.Stringer("selector", s), zap.Duration("record_duration", d))
		case f.tl.ValidTicks(s) != s.Length():
			f.log.Warn("Skipping selector that spans a discontinuity",
				zap.Stringer("selector", s), zap.Duration("covered", f.tl.ValidTicks(s)))
		default:
			accepted = append(accepted, s)
			res.Records += int(s.Length() / d)
			continue
		}
		res.Skipped++
	}
	res.Accepted = len(accepted)

	if err := f.loadAll(); err != nil {
		return AlignResult{}, err
	}

	hdr := f.Header()
	recs := make([]record, res.Records)
	for i := range recs {
		recs[i] = newRecord(&hdr)
	}

	for c, sig := range hdr.Signals {
		if sig.IsAnnotation() {
			continue
		}
		n := sig.SamplesPerRecord
		k := 0
		for _, s := range accepted {
			sl, err := extract(f, c, s, 1, func(v int16) int16 { return v })
			if err != nil {
				return AlignResult{}, err
			}
			if want := int(s.Length()/d) * n; sl.Len() != want {
				return AlignResult{}, fmt.Errorf("%w: signal %q yielded %d samples for selector %s, expected %d",
					ErrDimensionMismatch, sig.Label, sl.Len(), s, want)
			}
			for _, v := range sl.Samples {
				recs[k/n][c][k%n] = v
				k++
			}
		}
		if k != res.Records*n {
			return AlignResult{}, fmt.Errorf("%w: signal %q filled %d samples, expected %d",
				ErrDimensionMismatch, sig.Label, k, res.Records*n)
		}
	}

	onsets := make([]time.Duration, 0, res.Records)
	for _, s := range accepted {
		for t := s.Start; t < s.Stop; t += d {
			onsets = append(onsets, t)
		}
	}
	if len(onsets) != res.Records {
		return AlignResult{}, fmt.Errorf("%w: %d onsets for %d records", ErrDimensionMismatch, len(onsets), res.Records)
	}

	recs = writeTimeTrack(&hdr, recs, onsets)
	hdr.Reserved = ReservedDiscontinuous
	hdr.DataRecords = res.Records

	// Commit the new layout.
	if err := f.tl.rebuild(res.Records, onsets); err != nil {
		return AlignResult{}, err
	}
	f.hdr = &hdr
	f.records = recs
	f.layout = nil
	f.dirty = make([]bool, len(recs))
	for i := range f.dirty {
		f.dirty[i] = true
	}
	f.rebuildLabels()

	f.log.Info("Aligned recording",
		zap.Int("accepted", res.Accepted),
		zap.Int("skipped", res.Skipped),
		zap.Int("records", res.Records))
	return res, nil
}
