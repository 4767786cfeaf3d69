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
	"iter"
	"sort"
	"time"
)

// DefaultEpochLength is the epoch length and increment of a freshly opened file.
const DefaultEpochLength = 30 * time.Second

// MaskMode selects how Mask interprets its epoch list.
type MaskMode int

const (
	// MaskExclude masks the listed epochs.
	MaskExclude MaskMode = iota
	// MaskInclude masks every epoch except the listed ones.
	MaskInclude
)

// Timeline maps between time and data records and defines the epochs of a
// recording. Continuous recordings place record n at [n*D, (n+1)*D);
// discontinuous recordings carry an explicit onset for every record.
type Timeline struct {
	duration time.Duration   // record duration
	records  int             // number of records
	starts   []time.Duration // per-record onsets, nil when continuous

	epochLength    time.Duration
	epochIncrement time.Duration
	mask           []bool
	cursor         int
}

// newTimeline builds a timeline. starts must be nil for continuous
// recordings, otherwise it holds one strictly increasing, non-overlapping
// onset per record.
func newTimeline(d time.Duration, records int, starts []time.Duration) (*Timeline, error) {
	if starts != nil {
		if len(starts) != records {
			return nil, fmt.Errorf("%w: %d record onsets for %d records", ErrDimensionMismatch, len(starts), records)
		}
		for i := 1; i < len(starts); i++ {
			if starts[i] < starts[i-1]+d {
				return nil, fmt.Errorf("%w: record %d starts at %s before record %d ends at %s",
					ErrOverlap, i, starts[i], i-1, starts[i-1]+d)
			}
		}
	}
	t := &Timeline{duration: d, records: records, starts: starts}
	if err := t.SetEpochs(DefaultEpochLength, DefaultEpochLength); err != nil {
		return nil, err
	}
	return t, nil
}

// Continuous reports whether records are laid out back to back from time zero.
func (t *Timeline) Continuous() bool {
	return t.starts == nil
}

// RecordDuration returns the duration of one data record.
func (t *Timeline) RecordDuration() time.Duration {
	return t.duration
}

// Records returns the number of data records.
func (t *Timeline) Records() int {
	return t.records
}

// Duration returns the end of the last record, or zero for an empty recording.
func (t *Timeline) Duration() time.Duration {
	if t.records == 0 {
		return 0
	}
	return t.recordStart(t.records-1) + t.duration
}

func (t *Timeline) recordStart(i int) time.Duration {
	if t.starts == nil {
		return time.Duration(i) * t.duration
	}
	return t.starts[i]
}

// RecordInterval returns the span covered by record i.
func (t *Timeline) RecordInterval(i int) Interval {
	start := t.recordStart(i)
	return Interval{Start: start, Stop: start + t.duration}
}

// RecordAt returns the record that covers tick, if any.
func (t *Timeline) RecordAt(tick time.Duration) (int, bool) {
	if tick < 0 {
		return 0, false
	}
	if t.starts == nil {
		i := int(tick / t.duration)
		return i, i < t.records
	}
	i := sort.Search(t.records, func(i int) bool { return t.starts[i] > tick }) - 1
	if i < 0 || tick >= t.starts[i]+t.duration {
		return 0, false
	}
	return i, true
}

// overlapping returns the half-open range of records that share ticks with iv.
func (t *Timeline) overlapping(iv Interval) (int, int) {
	if iv.Length() == 0 {
		return 0, 0
	}
	first := sort.Search(t.records, func(i int) bool { return t.recordStart(i)+t.duration > iv.Start })
	last := sort.Search(t.records, func(i int) bool { return t.recordStart(i) >= iv.Stop })
	if last < first {
		last = first
	}
	return first, last
}

// ValidTicks returns how much of iv is covered by existing records.
func (t *Timeline) ValidTicks(iv Interval) time.Duration {
	first, last := t.overlapping(iv)
	var covered time.Duration
	for i := first; i < last; i++ {
		ri := t.RecordInterval(i)
		covered += min(ri.Stop, iv.Stop) - max(ri.Start, iv.Start)
	}
	return covered
}

// SetEpochs defines the epoch table and clears the epoch mask. An increment
// below the length yields overlapping epochs, above it leaves gaps.
func (t *Timeline) SetEpochs(length, increment time.Duration) error {
	if length <= 0 || increment <= 0 {
		return fmt.Errorf("invalid epoch length %s and increment %s", length, increment)
	}
	t.epochLength = length
	t.epochIncrement = increment
	t.ClearMask()
	return nil
}

// EpochLength returns the length of every epoch.
func (t *Timeline) EpochLength() time.Duration {
	return t.epochLength
}

// EpochIncrement returns the distance between the starts of consecutive epochs.
func (t *Timeline) EpochIncrement() time.Duration {
	return t.epochIncrement
}

// NumEpochs returns the number of epochs that fit within the recording.
func (t *Timeline) NumEpochs() int {
	total := t.Duration()
	if total < t.epochLength {
		return 0
	}
	return int((total-t.epochLength)/t.epochIncrement) + 1
}

// Epoch returns the interval of an epoch, masked or not.
func (t *Timeline) Epoch(id int) (Interval, error) {
	if id < 0 || id >= t.NumEpochs() {
		return Interval{}, fmt.Errorf("epoch %d out of range [0, %d)", id, t.NumEpochs())
	}
	start := time.Duration(id) * t.epochIncrement
	return Interval{Start: start, Stop: start + t.epochLength}, nil
}

// Epochs yields every unmasked epoch in order. The sequence can be ranged
// over any number of times.
func (t *Timeline) Epochs() iter.Seq2[int, Interval] {
	return func(yield func(int, Interval) bool) {
		for id := 0; id < t.NumEpochs(); id++ {
			if t.Masked(id) {
				continue
			}
			iv, _ := t.Epoch(id)
			if !yield(id, iv) {
				return
			}
		}
	}
}

// FirstEpoch rewinds the epoch cursor used by NextEpoch.
func (t *Timeline) FirstEpoch() {
	t.cursor = 0
}

// NextEpoch returns the next unmasked epoch after the cursor.
func (t *Timeline) NextEpoch() (int, Interval, bool) {
	for t.cursor < t.NumEpochs() {
		id := t.cursor
		t.cursor++
		if t.Masked(id) {
			continue
		}
		iv, _ := t.Epoch(id)
		return id, iv, true
	}
	return 0, Interval{}, false
}

// EpochValid reports whether every tick of an epoch is covered by a record.
func (t *Timeline) EpochValid(id int) bool {
	iv, err := t.Epoch(id)
	if err != nil {
		return false
	}
	return t.ValidTicks(iv) == iv.Length()
}

// Mask marks epochs for removal by Restructure.
func (t *Timeline) Mask(ids []int, mode MaskMode) error {
	if mode != MaskExclude && mode != MaskInclude {
		return fmt.Errorf("unknown mask mode %d", mode)
	}
	n := t.NumEpochs()
	listed := make([]bool, n)
	for _, id := range ids {
		if id < 0 || id >= n {
			return fmt.Errorf("epoch %d out of range [0, %d)", id, n)
		}
		listed[id] = true
	}
	for id := range listed {
		if listed[id] == (mode == MaskExclude) {
			t.mask[id] = true
		}
	}
	return nil
}

// ClearMask unmasks every epoch.
func (t *Timeline) ClearMask() {
	t.mask = make([]bool, t.NumEpochs())
	t.cursor = 0
}

// Masked reports whether an epoch is masked.
func (t *Timeline) Masked(id int) bool {
	return id >= 0 && id < len(t.mask) && t.mask[id]
}

// MaskedEpochs returns the number of masked epochs.
func (t *Timeline) MaskedEpochs() int {
	n := 0
	for _, m := range t.mask {
		if m {
			n++
		}
	}
	return n
}

// rebuild replaces the record map, keeping the epoch definition and clearing the mask.
func (t *Timeline) rebuild(records int, starts []time.Duration) error {
	nt, err := newTimeline(t.duration, records, starts)
	if err != nil {
		return err
	}
	nt.epochLength = t.epochLength
	nt.epochIncrement = t.epochIncrement
	nt.ClearMask()
	*t = *nt
	return nil
}
