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
	"testing"
	"time"

	"github.com/OpenPSG/edfkit/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	x := newRecording(t, testHeader(time.Second, unitSignal("EEG C3-M2", 10)), 100, pattern)

	hdr := testHeader(time.Second, unitSignal("EEG C3-M2", 10))
	hdr.StartTime = testStart.Add(-time.Hour)
	y := newRecording(t, hdr, 50, func(r, s, j int) int16 {
		return -pattern(r, s, j)
	})

	m, err := edf.Merge(x, y)
	require.NoError(t, err)
	assert.Equal(t, 150, m.Records())
	assert.Equal(t, testStart.Add(-time.Hour), m.Header().StartTime)

	sl, err := m.DigitalSlice(0, edf.Interval{Start: 0, Stop: 150 * time.Second}, 1)
	require.NoError(t, err)
	require.Equal(t, 1500, sl.Len())
	assert.Equal(t, pattern(0, 0, 0), sl.Samples[0])
	assert.Equal(t, pattern(99, 0, 9), sl.Samples[999])
	assert.Equal(t, -pattern(0, 0, 0), sl.Samples[1000])
	assert.Equal(t, -pattern(49, 0, 9), sl.Samples[1499])

	out := reopen(t, m)
	assert.Equal(t, 150, out.Records())
	assert.Equal(t, expectedSamples(99, 0, 10), recordSamples(t, out, 0, 99))
}

func TestMergeRequantizes(t *testing.T) {
	x := newRecording(t, testHeader(time.Second, unitSignal("Flow", 2)), 1, pattern)

	sig := unitSignal("Flow", 2)
	sig.PhysicalMin, sig.PhysicalMax = -65536, 65534
	y := newRecording(t, testHeader(time.Second, sig), 1, func(_, _, j int) int16 {
		return int16(100 * (j + 1))
	})

	m, err := edf.Merge(x, y)
	require.NoError(t, err)
	assert.Equal(t, []int16{200, 400}, recordSamples(t, m, 0, 1))
}

func TestMergeEDFPlus(t *testing.T) {
	hdr := testHeader(time.Second, unitSignal("EEG C3-M2", 2), annotationSignal(8))
	hdr.Reserved = edf.ReservedContinuous
	x := newRecording(t, hdr, 3, pattern)
	y := newRecording(t, hdr, 2, pattern)

	m, err := edf.Merge(x, y)
	require.NoError(t, err)
	got := m.Header()
	assert.Equal(t, edf.ReservedContinuous, got.Reserved)
	assert.Equal(t, 1, got.TimeTrack())

	// Relabel the saved file as discontinuous to read its time-track back.
	buf := edf.NewBuffer(nil)
	require.NoError(t, m.Save(buf))
	raw := buf.Bytes()
	copy(raw[192:197], edf.ReservedDiscontinuous)

	out, err := edf.Open(edf.NewBuffer(raw))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second}, recordOnsets(out.Timeline()))
}

func TestMergeRejects(t *testing.T) {
	base := newRecording(t, testHeader(time.Second, unitSignal("EEG C3-M2", 10)), 5, pattern)

	tests := []struct {
		name  string
		other *edf.File
		err   error
	}{
		{
			name:  "samples per record",
			other: newRecording(t, testHeader(time.Second, unitSignal("EEG C3-M2", 20)), 5, pattern),
			err:   edf.ErrSampleRateMismatch,
		},
		{
			name:  "record duration",
			other: newRecording(t, testHeader(2*time.Second, unitSignal("EEG C3-M2", 20)), 5, pattern),
			err:   edf.ErrSampleRateMismatch,
		},
		{
			name:  "label",
			other: newRecording(t, testHeader(time.Second, unitSignal("EEG C4-M1", 10)), 5, pattern),
			err:   edf.ErrHeaderMismatch,
		},
		{
			name:  "signal count",
			other: newRecording(t, testHeader(time.Second, unitSignal("EEG C3-M2", 10), unitSignal("Flow", 1)), 5, pattern),
			err:   edf.ErrHeaderMismatch,
		},
		{
			name:  "discontinuous",
			other: newDiscontinuous(t, time.Second, 10, []string{"+0", "+5"}),
			err:   edf.ErrHeaderMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := edf.Merge(base, tt.other)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, m)
		})
	}

	_, err := edf.Merge()
	assert.Error(t, err)
}
