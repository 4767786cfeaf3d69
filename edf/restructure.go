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
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Restructure physically removes the records covered by masked epochs and
// renumbers the remaining records. A record is removed when a masked epoch
// covers it and no unmasked epoch touches it. Remaining records keep their
// onsets, so removing records from the middle of a recording turns it into
// a discontinuous EDF+ file. The epoch definition is kept and the mask is
// cleared. It returns the number of records removed.
func (f *File) Restructure() (int, error) {
	tl := f.tl
	masked := make([]bool, len(f.records))
	keep := make([]bool, len(f.records))

	for id := 0; id < tl.NumEpochs(); id++ {
		iv, _ := tl.Epoch(id)
		first, last := tl.overlapping(iv)
		for r := first; r < last; r++ {
			if !tl.Masked(id) {
				keep[r] = true
				continue
			}
			if ri := tl.RecordInterval(r); ri.Start < iv.Start || ri.Stop > iv.Stop {
				return 0, fmt.Errorf("%w: masked epoch %d %s covers part of record %d %s",
					ErrInconsistentMask, id, iv, r, ri)
			}
			masked[r] = true
		}
	}

	removed := 0
	for r := range masked {
		if masked[r] && !keep[r] {
			removed++
		}
	}
	if removed == 0 {
		tl.ClearMask()
		return 0, nil
	}

	if err := f.detach(); err != nil {
		return 0, err
	}

	recs := make([]record, 0, len(f.records)-removed)
	starts := make([]time.Duration, 0, len(f.records)-removed)
	for r, rec := range f.records {
		if masked[r] && !keep[r] {
			continue
		}
		recs = append(recs, rec)
		starts = append(starts, tl.recordStart(r))
	}

	hdr := f.Header()
	contiguous := true
	for i, s := range starts {
		if s != time.Duration(i)*tl.duration {
			contiguous = false
			break
		}
	}
	if !contiguous {
		if hdr.TimeTrack() < 0 {
			// The new time-track is the only place the original onsets survive.
			recs = writeTimeTrack(&hdr, recs, starts)
		}
		hdr.Reserved = ReservedDiscontinuous
	} else {
		if hdr.EDFPlus() {
			hdr.Reserved = ReservedContinuous
		}
		starts = nil
	}
	hdr.DataRecords = len(recs)

	if err := tl.rebuild(len(recs), starts); err != nil {
		return 0, err
	}
	f.hdr = &hdr
	f.records = recs
	f.dirty = make([]bool, len(recs))
	for i := range f.dirty {
		f.dirty[i] = true
	}
	f.rebuildLabels()

	f.log.Info("Restructured recording",
		zap.Int("removed", removed),
		zap.Int("records", len(recs)),
		zap.Bool("continuous", contiguous))
	return removed, nil
}
