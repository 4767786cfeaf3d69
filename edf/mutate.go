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
	"slices"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// UpdateChannel replaces every sample of signal ch with physical values.
// samples must hold exactly Records()*SamplesPerRecord values. With rescale
// the physical range is recomputed from samples, otherwise the current range
// is kept and out of range values are clamped.
func (f *File) UpdateChannel(ch int, samples []float64, rescale bool) error {
	sig, err := f.dataSignal(ch)
	if err != nil {
		return err
	}
	n := sig.SamplesPerRecord
	if want := len(f.records) * n; len(samples) != want {
		return fmt.Errorf("%w: signal %q expects %d samples, got %d", ErrDimensionMismatch, sig.Label, want, len(samples))
	}
	if err := f.loadAll(); err != nil {
		return err
	}

	if rescale && len(samples) > 0 {
		sig.PhysicalMin, sig.PhysicalMax = physicalRange(samples)
		f.hdr.Signals[ch] = sig
		if f.layout != nil {
			f.layout.file.Signals[f.layout.index[ch]] = sig
			f.layout.headerDirty = true
		}
	}

	for r, rec := range f.records {
		buf := rec[ch]
		for j := range buf {
			buf[j] = sig.ToDigital(samples[r*n+j])
		}
		f.dirty[r] = true
	}

	f.log.Debug("Updated channel", zap.String("label", sig.Label), zap.Bool("rescaled", rescale))
	return nil
}

// AddChannel appends a data signal. sig.SamplesPerRecord must be set (see
// SamplesForRate) and samples must hold Records()*SamplesPerRecord physical
// values. Missing digital limits default to the full 16-bit range and missing
// physical limits are taken from the data.
func (f *File) AddChannel(sig Signal, samples []float64) error {
	sig.Label = truncate(strings.TrimSpace(sig.Label), 16)
	if sig.Label == "" || sig.IsAnnotation() {
		return &HeaderError{Field: "label", Signal: len(f.hdr.Signals), Value: sig.Label}
	}
	if _, err := f.Channel(sig.Label); err == nil {
		return fmt.Errorf("%w: %q", ErrDuplicateChannel, sig.Label)
	}
	n := sig.SamplesPerRecord
	if n <= 0 {
		return &HeaderError{Field: "number of samples", Signal: len(f.hdr.Signals), Value: fmt.Sprint(n)}
	}
	if want := len(f.records) * n; len(samples) != want {
		return fmt.Errorf("%w: signal %q expects %d samples, got %d", ErrDimensionMismatch, sig.Label, want, len(samples))
	}

	if sig.DigitalMin == 0 && sig.DigitalMax == 0 {
		sig.DigitalMin, sig.DigitalMax = -32768, 32767
	}
	if sig.DigitalMin >= sig.DigitalMax {
		return &HeaderError{Field: "digital minimum", Signal: len(f.hdr.Signals), Value: fmt.Sprint(sig.DigitalMin)}
	}
	if sig.PhysicalMin == sig.PhysicalMax {
		if len(samples) > 0 {
			sig.PhysicalMin, sig.PhysicalMax = physicalRange(samples)
		} else {
			sig.PhysicalMin, sig.PhysicalMax = -1, 1
		}
	}

	// Nothing below may fail once records start changing.
	if err := f.detach(); err != nil {
		return err
	}
	bufs := make([][]int16, len(f.records))
	for r := range bufs {
		bufs[r] = make([]int16, n)
		for j := range bufs[r] {
			bufs[r][j] = sig.ToDigital(samples[r*n+j])
		}
	}
	for r := range f.records {
		f.records[r] = append(f.records[r], bufs[r])
		f.dirty[r] = true
	}
	f.hdr.Signals = append(f.hdr.Signals, sig)
	f.hdr.SignalCount = len(f.hdr.Signals)
	f.hdr.HeaderBytes = 256 * (f.hdr.SignalCount + 1)
	f.rebuildLabels()

	f.log.Debug("Added channel", zap.String("label", sig.Label), zap.Int("samples_per_record", n))
	return nil
}

// DropChannel removes signal ch from the header and every record.
func (f *File) DropChannel(ch int) error {
	if ch < 0 || ch >= len(f.hdr.Signals) {
		return fmt.Errorf("%w: index %d", ErrChannelNotFound, ch)
	}
	sig := f.hdr.Signals[ch]
	if ch == f.hdr.TimeTrack() && !f.tl.Continuous() {
		return errors.New("cannot drop the time-track of a discontinuous recording")
	}

	if err := f.detach(); err != nil {
		return err
	}
	for r, rec := range f.records {
		f.records[r] = slices.Delete(rec, ch, ch+1)
		f.dirty[r] = true
	}
	f.hdr.Signals = slices.Delete(f.hdr.Signals, ch, ch+1)
	f.hdr.SignalCount = len(f.hdr.Signals)
	f.hdr.HeaderBytes = 256 * (f.hdr.SignalCount + 1)
	if f.hdr.EDFPlus() && f.hdr.TimeTrack() < 0 {
		// EDF+ requires a time-track; without one the file is plain EDF.
		f.hdr.Reserved = ""
	}
	f.rebuildLabels()

	f.log.Debug("Dropped channel", zap.String("label", sig.Label))
	return nil
}

// physicalRange returns header-representable limits that span samples.
func physicalRange(samples []float64) (float64, float64) {
	lo := quantizePhysical(floats.Min(samples))
	hi := quantizePhysical(floats.Max(samples))
	if hi <= lo {
		hi = quantizePhysical(lo + 1)
	}
	return lo, hi
}
