// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/OpenPSG/edfkit/edf"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC)

// unitSignal has identical physical and digital ranges, so physical values
// equal the stored digital values.
func unitSignal(label string, samples int) edf.Signal {
	return edf.Signal{
		Label:             label,
		TransducerType:    "AgAgCl electrode",
		PhysicalDimension: "uV",
		PhysicalMin:       -32768,
		PhysicalMax:       32767,
		DigitalMin:        -32768,
		DigitalMax:        32767,
		SamplesPerRecord:  samples,
	}
}

func testHeader(d time.Duration, signals ...edf.Signal) edf.Header {
	return edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        "Startdate 01-MAR-2024 X X X",
		StartTime:          testStart,
		DataRecordDuration: d,
		SignalCount:        len(signals),
		Signals:            signals,
	}
}

// pattern is the digital value of sample j of signal s in record r.
func pattern(r, s, j int) int16 {
	return int16((r*7919 + s*101 + j) % 30000)
}

// writeRecording encodes records whose samples come from value into a buffer.
func writeRecording(t *testing.T, hdr edf.Header, records int, value func(r, s, j int) int16) *edf.Buffer {
	t.Helper()

	buf := edf.NewBuffer(nil)
	ew, err := edf.Create(buf, hdr)
	require.NoError(t, err)

	for r := 0; r < records; r++ {
		rec := make([][]int16, len(hdr.Signals))
		for s, sig := range hdr.Signals {
			rec[s] = make([]int16, sig.SamplesPerRecord)
			for j := range rec[s] {
				rec[s][j] = value(r, s, j)
			}
		}
		require.NoError(t, ew.WriteDigitalRecord(rec))
	}
	require.NoError(t, ew.Close())

	return buf
}

func newRecording(t *testing.T, hdr edf.Header, records int, value func(r, s, j int) int16, opts ...edf.Option) *edf.File {
	t.Helper()

	f, err := edf.Open(writeRecording(t, hdr, records, value), opts...)
	require.NoError(t, err)
	return f
}

// newDiscontinuous builds an EDF+D recording with one data signal of n
// samples per record and a time-track holding the given onsets.
func newDiscontinuous(t *testing.T, d time.Duration, n int, onsets []string) *edf.File {
	t.Helper()

	hdr := testHeader(d, unitSignal("EEG C3-M2", n), annotationSignal(15))
	hdr.Reserved = edf.ReservedDiscontinuous

	buf := edf.NewBuffer(nil)
	ew, err := edf.Create(buf, hdr)
	require.NoError(t, err)
	for r, onset := range onsets {
		data := make([]int16, n)
		for j := range data {
			data[j] = pattern(r, 0, j)
		}
		require.NoError(t, ew.WriteDigitalRecord([][]int16{data, talSamples(onset, 15)}))
	}
	require.NoError(t, ew.Close())

	f, err := edf.Open(buf)
	require.NoError(t, err)
	return f
}

func annotationSignal(samples int) edf.Signal {
	return edf.Signal{
		Label:            edf.AnnotationLabel,
		PhysicalMin:      -1,
		PhysicalMax:      1,
		DigitalMin:       -32768,
		DigitalMax:       32767,
		SamplesPerRecord: samples,
	}
}

// talSamples packs a time-keeping annotation into n annotation samples.
func talSamples(onset string, n int) []int16 {
	b := make([]byte, 2*n)
	copy(b, onset+"\x14\x14\x00")
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// reopen saves f to memory and opens the result.
func reopen(t *testing.T, f *edf.File) *edf.File {
	t.Helper()

	buf := edf.NewBuffer(nil)
	require.NoError(t, f.Save(buf))
	out, err := edf.Open(buf)
	require.NoError(t, err)
	return out
}

func recordSamples(t *testing.T, f *edf.File, ch, rec int) []int16 {
	t.Helper()

	sl, err := f.DigitalSlice(ch, f.Timeline().RecordInterval(rec), 1)
	require.NoError(t, err)
	for _, r := range sl.Records {
		require.Equal(t, rec, r)
	}
	return sl.Samples
}

func expectedSamples(r, s, n int) []int16 {
	out := make([]int16, n)
	for j := range out {
		out[j] = pattern(r, s, j)
	}
	return out
}
