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
	"encoding/binary"
	"time"
)

// record holds one data record: a buffer of digital samples per signal, in
// header order. Annotation signals keep their bytes packed two per sample.
type record [][]int16

// newRecord allocates zeroed buffers sized for every signal of hdr.
func newRecord(hdr *Header) record {
	rec := make(record, len(hdr.Signals))
	for c, sig := range hdr.Signals {
		rec[c] = make([]int16, sig.SamplesPerRecord)
	}
	return rec
}

func decodeSamples(b []byte, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

func encodeSamples(dst []byte, samples []int16) {
	for i, v := range samples {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(v))
	}
}

// annotationBytes views an annotation buffer as the bytes it was read from.
func annotationBytes(samples []int16) []byte {
	b := make([]byte, 2*len(samples))
	encodeSamples(b, samples)
	return b
}

// annotationSamples packs b into n samples, zero padded.
func annotationSamples(b []byte, n int) []int16 {
	padded := make([]byte, 2*n)
	copy(padded, b)
	return decodeSamples(padded, n)
}

// timeTrackSignal describes a fresh EDF+ time-keeping signal.
func timeTrackSignal(samples int) Signal {
	return Signal{
		Label:            AnnotationLabel,
		PhysicalMin:      -1,
		PhysicalMax:      1,
		DigitalMin:       -32768,
		DigitalMax:       32767,
		SamplesPerRecord: samples,
	}
}

// writeTimeTrack rewrites the time-track of every record so record i opens
// with onsets[i]. The first annotation signal serves as the time-track; one is
// appended when hdr has none and grown when an onset does not fit. Existing
// time-track content beyond the time-keeping annotation is discarded.
func writeTimeTrack(hdr *Header, recs []record, onsets []time.Duration) []record {
	tals := make([][]byte, len(recs))
	need := 1
	for i := range recs {
		tals[i] = timeKeepingTAL(onsets[i])
		need = max(need, (len(tals[i])+1)/2)
	}

	tt := -1
	for i, sig := range hdr.Signals {
		if sig.IsAnnotation() {
			tt = i
			break
		}
	}

	if tt < 0 {
		tt = len(hdr.Signals)
		hdr.Signals = append(hdr.Signals, timeTrackSignal(need))
		for i, rec := range recs {
			recs[i] = append(rec, nil)
		}
	} else if hdr.Signals[tt].SamplesPerRecord < need {
		sig := hdr.Signals[tt]
		sig.SamplesPerRecord = need
		sig.samplesText = ""
		hdr.Signals[tt] = sig
	}
	hdr.SignalCount = len(hdr.Signals)
	hdr.HeaderBytes = 256 * (hdr.SignalCount + 1)

	n := hdr.Signals[tt].SamplesPerRecord
	for i, rec := range recs {
		rec[tt] = annotationSamples(tals[i], n)
	}
	return recs
}
