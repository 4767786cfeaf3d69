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
	"time"

	"go.uber.org/zap"
)

// Merge concatenates recordings with identical signal layouts into a new
// in-memory recording. Inputs are joined in argument order, so callers must
// pass them chronologically; the earliest start time becomes the start of
// the result. Every layout check runs before any sample is copied, and
// nothing is written until the result is saved.
func Merge(files ...*File) (*File, error) {
	if len(files) == 0 {
		return nil, errors.New("nothing to merge")
	}

	ref := files[0].hdr
	for i, f := range files {
		if err := checkMergeable(ref, f, i); err != nil {
			return nil, err
		}
	}

	total := 0
	start := ref.StartTime
	for _, f := range files {
		total += len(f.records)
		if f.hdr.StartTime.Before(start) {
			start = f.hdr.StartTime
		}
	}

	hdr := files[0].Header()
	hdr.StartTime = start
	recs := make([]record, total)
	for i := range recs {
		recs[i] = newRecord(&hdr)
	}

	for c, sig := range hdr.Signals {
		if sig.IsAnnotation() {
			continue
		}
		n := sig.SamplesPerRecord
		k := 0
		for _, f := range files {
			if err := f.loadAll(); err != nil {
				return nil, err
			}
			src := f.hdr.Signals[c]
			same := sameScale(src, sig)
			for _, rec := range f.records {
				for _, v := range rec[c] {
					if !same {
						v = sig.ToDigital(src.ToPhysical(v))
					}
					recs[k/n][c][k%n] = v
					k++
				}
			}
		}
		if k != total*n {
			return nil, fmt.Errorf("%w: signal %q merged %d samples, expected %d", ErrDimensionMismatch, sig.Label, k, total*n)
		}
	}

	if hdr.EDFPlus() {
		onsets := make([]time.Duration, total)
		for i := range onsets {
			onsets[i] = time.Duration(i) * hdr.DataRecordDuration
		}
		recs = writeTimeTrack(&hdr, recs, onsets)
		hdr.Reserved = ReservedContinuous
	}

	out, err := newDetachedFile(&hdr, recs, nil, files[0].log)
	if err != nil {
		return nil, err
	}
	out.log.Info("Merged recordings",
		zap.Int("inputs", len(files)),
		zap.Int("records", total),
		zap.Time("start", start))
	return out, nil
}

// checkMergeable compares the layout of f against ref field by field.
func checkMergeable(ref *Header, f *File, i int) error {
	hdr := f.hdr
	if !f.tl.Continuous() {
		return fmt.Errorf("%w: input %d is discontinuous", ErrHeaderMismatch, i)
	}
	if hdr.EDFPlus() != ref.EDFPlus() {
		return fmt.Errorf("%w: input %d mixes EDF and EDF+", ErrHeaderMismatch, i)
	}
	if len(hdr.Signals) != len(ref.Signals) {
		return fmt.Errorf("%w: input %d has %d signals, expected %d", ErrHeaderMismatch, i, len(hdr.Signals), len(ref.Signals))
	}
	if hdr.DataRecordDuration != ref.DataRecordDuration {
		return fmt.Errorf("%w: input %d has %s records, expected %s",
			ErrSampleRateMismatch, i, hdr.DataRecordDuration, ref.DataRecordDuration)
	}
	for c, sig := range hdr.Signals {
		want := ref.Signals[c]
		if sig.Label != want.Label {
			return fmt.Errorf("%w: input %d signal %d is %q, expected %q", ErrHeaderMismatch, i, c, sig.Label, want.Label)
		}
		if sig.SamplesPerRecord != want.SamplesPerRecord {
			return fmt.Errorf("%w: input %d signal %q has %d samples per record, expected %d",
				ErrSampleRateMismatch, i, sig.Label, sig.SamplesPerRecord, want.SamplesPerRecord)
		}
	}
	return nil
}

func sameScale(a, b Signal) bool {
	return a.PhysicalMin == b.PhysicalMin && a.PhysicalMax == b.PhysicalMax &&
		a.DigitalMin == b.DigitalMin && a.DigitalMax == b.DigitalMax
}
