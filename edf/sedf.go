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
	"math"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SignalType is a coarse classification of a signal by its label.
type SignalType int

const (
	SignalOther SignalType = iota
	SignalEEG
	SignalEOG
	SignalEMG
	SignalECG
)

func (t SignalType) String() string {
	switch t {
	case SignalEEG:
		return "EEG"
	case SignalEOG:
		return "EOG"
	case SignalEMG:
		return "EMG"
	case SignalECG:
		return "ECG"
	default:
		return "other"
	}
}

// Hjorth reports whether a signal type is summarised by Hjorth parameters.
func (t SignalType) Hjorth() bool {
	return t != SignalOther
}

// 10-20 system electrode names, used to recognise EEG derivations such as "C3-M2".
var eegElectrodes = map[string]bool{
	"FP1": true, "FP2": true, "FPZ": true, "F3": true, "F4": true, "F7": true, "F8": true, "FZ": true,
	"C3": true, "C4": true, "CZ": true, "P3": true, "P4": true, "PZ": true, "O1": true, "O2": true,
	"OZ": true, "T3": true, "T4": true, "T5": true, "T6": true, "A1": true, "A2": true, "M1": true, "M2": true,
}

// ClassifySignal guesses the signal type from its label.
func ClassifySignal(label string) SignalType {
	tokens := strings.FieldsFunc(strings.ToUpper(label), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		switch {
		case strings.HasPrefix(tok, "EEG"):
			return SignalEEG
		case strings.HasPrefix(tok, "EOG"), tok == "LOC", tok == "ROC", tok == "E1", tok == "E2":
			return SignalEOG
		case strings.HasPrefix(tok, "EMG"), tok == "CHIN":
			return SignalEMG
		case strings.HasPrefix(tok, "ECG"), strings.HasPrefix(tok, "EKG"):
			return SignalECG
		}
	}
	for _, tok := range tokens {
		if eegElectrodes[tok] {
			return SignalEEG
		}
	}
	return SignalOther
}

// Summarize builds a reduced recording with one data record per valid,
// unmasked epoch. Every data signal becomes three single-sample signals:
// Hjorth activity, mobility and complexity for EEG, EOG, EMG and ECG, and
// mean, minimum and maximum otherwise. Records are stamped with their epoch
// onset in an EDF+ time-track. Epochs must not overlap.
func (f *File) Summarize() (*File, error) {
	tl := f.tl
	if tl.epochIncrement < tl.epochLength {
		return nil, fmt.Errorf("%w: epochs of %s every %s overlap", ErrInconsistentMask, tl.epochLength, tl.epochIncrement)
	}
	// The epoch length becomes the record duration of the summary.
	if err := checkRecordDuration(tl.epochLength); err != nil {
		return nil, err
	}

	var epochs []Interval
	for id, iv := range tl.Epochs() {
		if !tl.EpochValid(id) {
			f.log.Debug("Skipping epoch with missing data", zap.Int("epoch", id), zap.Stringer("interval", iv))
			continue
		}
		epochs = append(epochs, iv)
	}

	hdr := Header{
		Version:            f.hdr.Version,
		PatientID:          f.hdr.PatientID,
		RecordingID:        f.hdr.RecordingID,
		StartTime:          f.hdr.StartTime,
		DataRecordDuration: tl.epochLength,
	}

	// values[s][e] is summary signal s in epoch e.
	var values [][]float64
	for c, sig := range f.hdr.Signals {
		if sig.IsAnnotation() {
			continue
		}
		kind := ClassifySignal(sig.Label)
		suffixes := [3]string{"_MEAN", "_MIN", "_MAX"}
		if kind.Hjorth() {
			suffixes = [3]string{"_H1", "_H2", "_H3"}
		}

		stats := [3][]float64{}
		for _, iv := range epochs {
			sl, err := f.Slice(c, iv, 1)
			if err != nil {
				return nil, err
			}
			var v [3]float64
			if kind.Hjorth() {
				v[0], v[1], v[2] = hjorth(sl.Samples)
			} else {
				v[0], v[1], v[2] = meanMinMax(sl.Samples)
			}
			for k := range v {
				stats[k] = append(stats[k], v[k])
			}
		}

		for k, suffix := range suffixes {
			out := Signal{
				Label:             summaryLabel(sig.Label, suffix),
				TransducerType:    sig.TransducerType,
				PhysicalDimension: sig.PhysicalDimension,
				DigitalMin:        -32768,
				DigitalMax:        32767,
				Prefiltering:      sig.Prefiltering,
				SamplesPerRecord:  1,
			}
			if kind.Hjorth() && k > 0 {
				out.PhysicalDimension = ""
			}
			out.PhysicalMin, out.PhysicalMax = -1, 1
			if len(stats[k]) > 0 {
				out.PhysicalMin, out.PhysicalMax = physicalRange(stats[k])
			}
			hdr.Signals = append(hdr.Signals, out)
			values = append(values, stats[k])
		}
	}

	recs := make([]record, len(epochs))
	onsets := make([]time.Duration, len(epochs))
	contiguous := true
	for e, iv := range epochs {
		recs[e] = newRecord(&hdr)
		for s, sig := range hdr.Signals {
			recs[e][s][0] = sig.ToDigital(values[s][e])
		}
		onsets[e] = iv.Start
		if iv.Start != time.Duration(e)*tl.epochLength {
			contiguous = false
		}
	}

	recs = writeTimeTrack(&hdr, recs, onsets)
	hdr.Reserved = ReservedContinuous
	var starts []time.Duration
	if !contiguous {
		hdr.Reserved = ReservedDiscontinuous
		starts = onsets
	}

	out, err := newDetachedFile(&hdr, recs, starts, f.log)
	if err != nil {
		return nil, err
	}
	f.log.Info("Summarized recording",
		zap.Int("epochs", len(epochs)),
		zap.Duration("epoch_length", tl.epochLength),
		zap.Int("signals", len(hdr.Signals)))
	return out, nil
}

// hjorth returns the Hjorth activity, mobility and complexity of x.
func hjorth(x []float64) (activity, mobility, complexity float64) {
	if len(x) < 4 {
		return 0, 0, 0
	}
	dx := diff(x)
	ddx := diff(dx)

	activity = stat.Variance(x, nil)
	vdx := stat.Variance(dx, nil)
	vddx := stat.Variance(ddx, nil)
	if activity == 0 || vdx == 0 {
		return activity, 0, 0
	}
	mobility = math.Sqrt(vdx / activity)
	complexity = math.Sqrt(vddx/vdx) / mobility
	return activity, mobility, complexity
}

func meanMinMax(x []float64) (mean, lo, hi float64) {
	if len(x) == 0 {
		return 0, 0, 0
	}
	return stat.Mean(x, nil), floats.Min(x), floats.Max(x)
}

func diff(x []float64) []float64 {
	out := make([]float64, len(x)-1)
	for i := range out {
		out[i] = x[i+1] - x[i]
	}
	return out
}

// summaryLabel appends suffix to label, shortening label to keep within 16 characters.
func summaryLabel(label, suffix string) string {
	return truncate(label, 16-len(suffix)) + suffix
}
