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

	"gonum.org/v1/gonum/mat"
)

// Sample is the element type of a Slice: raw digital or physical values.
type Sample interface {
	~int16 | ~float64
}

// Slice holds the samples of one signal over an interval. Ticks and Records
// run parallel to Samples: the time of each sample and the record it came
// from. A jump in Records that is not matched by a jump of one record
// duration in Ticks marks a discontinuity.
type Slice[T Sample] struct {
	Samples []T
	Ticks   []time.Duration
	Records []int
}

// Len returns the number of samples in the slice.
func (s *Slice[T]) Len() int {
	return len(s.Samples)
}

// Slice returns the physical values of signal ch within iv, keeping every
// downsample-th sample. Only ticks covered by records are returned.
func (f *File) Slice(ch int, iv Interval, downsample int) (*Slice[float64], error) {
	sig, err := f.dataSignal(ch)
	if err != nil {
		return nil, err
	}
	bv, off := sig.BitValue(), sig.Offset()
	return extract(f, ch, iv, downsample, func(d int16) float64 {
		return bv * (float64(d) + off)
	})
}

// DigitalSlice is like Slice but returns the stored digital values unscaled.
func (f *File) DigitalSlice(ch int, iv Interval, downsample int) (*Slice[int16], error) {
	if _, err := f.dataSignal(ch); err != nil {
		return nil, err
	}
	return extract(f, ch, iv, downsample, func(d int16) int16 { return d })
}

// MSlice slices several signals sampled at the same rate over the same interval.
func (f *File) MSlice(chs []int, iv Interval, downsample int) ([]*Slice[float64], error) {
	if err := f.sameRate(chs); err != nil {
		return nil, err
	}
	out := make([]*Slice[float64], len(chs))
	for i, ch := range chs {
		s, err := f.Slice(ch, iv, downsample)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// MatSlice returns the physical values of several equally sampled signals as
// a matrix with one row per sample and one column per signal, plus the tick
// of every row. An interval without samples yields a nil matrix.
func (f *File) MatSlice(chs []int, iv Interval, downsample int) (*mat.Dense, []time.Duration, error) {
	cols, err := f.MSlice(chs, iv, downsample)
	if err != nil {
		return nil, nil, err
	}
	if len(cols) == 0 || cols[0].Len() == 0 {
		return nil, nil, nil
	}

	rows := cols[0].Len()
	m := mat.NewDense(rows, len(cols), nil)
	for c, s := range cols {
		for r, v := range s.Samples {
			m.Set(r, c, v)
		}
	}
	return m, cols[0].Ticks, nil
}

func (f *File) sameRate(chs []int) error {
	for i, ch := range chs {
		sig, err := f.dataSignal(ch)
		if err != nil {
			return err
		}
		if i > 0 {
			first := f.hdr.Signals[chs[0]]
			if sig.SamplesPerRecord != first.SamplesPerRecord {
				return fmt.Errorf("%w: %q has %d samples per record, %q has %d",
					ErrSampleRateMismatch, first.Label, first.SamplesPerRecord, sig.Label, sig.SamplesPerRecord)
			}
		}
	}
	return nil
}

// extract is the single slicing path shared by every slice flavour.
func extract[T Sample](f *File, ch int, iv Interval, downsample int, conv func(int16) T) (*Slice[T], error) {
	if downsample < 1 {
		downsample = 1
	}

	n := f.hdr.Signals[ch].SamplesPerRecord
	d := f.tl.duration
	out := &Slice[T]{}

	first, last := f.tl.overlapping(iv)
	k := 0
	for r := first; r < last; r++ {
		if err := f.ensureLoaded(r); err != nil {
			return nil, err
		}
		start := f.tl.recordStart(r)
		lo := sampleIndex(iv.Start-start, d, n)
		hi := sampleIndex(iv.Stop-start, d, n)
		buf := f.records[r][ch]
		for j := lo; j < hi; j++ {
			if k%downsample == 0 {
				out.Samples = append(out.Samples, conv(buf[j]))
				out.Ticks = append(out.Ticks, start+sampleOffset(j, d, n))
				out.Records = append(out.Records, r)
			}
			k++
		}
	}
	return out, nil
}

// sampleOffset returns the offset of sample j from the start of its record.
func sampleOffset(j int, d time.Duration, n int) time.Duration {
	return time.Duration(int64(d) * int64(j) / int64(n))
}

// sampleIndex returns the first sample whose offset within a record is at
// least at, clamped to [0, n].
func sampleIndex(at, d time.Duration, n int) int {
	if at <= 0 {
		return 0
	}
	if at >= d {
		return n
	}
	num := int64(at) * int64(n)
	j := num / int64(d)
	if num%int64(d) != 0 {
		j++
	}
	return int(j)
}
