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
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/OpenPSG/edfkit/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateChannel(t *testing.T) {
	hdr := testHeader(time.Second, unitSignal("EEG C3-M2", 4), unitSignal("Flow", 2))
	f := newRecording(t, hdr, 3, pattern)

	err := f.UpdateChannel(1, make([]float64, 5), false)
	assert.ErrorIs(t, err, edf.ErrDimensionMismatch)

	samples := []float64{1, 2, 3, 4, 5, 1e6}
	require.NoError(t, f.UpdateChannel(1, samples, false))
	assert.Equal(t, []int16{5, 32767}, recordSamples(t, f, 1, 2))
	assert.Equal(t, expectedSamples(2, 0, 4), recordSamples(t, f, 0, 2))
}

func TestUpdateChannelRescale(t *testing.T) {
	sig := edf.Signal{
		Label:            "Flow",
		PhysicalMin:      -1,
		PhysicalMax:      1,
		DigitalMin:       -32768,
		DigitalMax:       32767,
		SamplesPerRecord: 2,
	}
	buf := writeRecording(t, testHeader(time.Second, sig), 2, pattern)
	f, err := edf.Open(buf)
	require.NoError(t, err)

	samples := []float64{-40, 10, 25, 80}
	require.NoError(t, f.UpdateChannel(0, samples, true))

	got := f.Header().Signals[0]
	assert.Equal(t, -40.0, got.PhysicalMin)
	assert.Equal(t, 80.0, got.PhysicalMax)

	// The rescaled header reaches storage on flush.
	require.NoError(t, f.Flush())
	g, err := edf.Open(buf)
	require.NoError(t, err)
	assert.Equal(t, 80.0, g.Header().Signals[0].PhysicalMax)

	sl, err := g.Slice(0, edf.Interval{Start: 0, Stop: 2 * time.Second}, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, samples, sl.Samples, got.BitValue())
}

func TestAddChannel(t *testing.T) {
	hdr := testHeader(30*time.Second, unitSignal("EEG C3-M2", 3))
	f := newRecording(t, hdr, 4, pattern)

	n, err := f.SamplesForRate(0.1)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	samples := make([]float64, 4*n)
	for i := range samples {
		samples[i] = float64(i) * 0.5
	}

	sig := edf.Signal{Label: "  Hypnogram  ", PhysicalDimension: "stage", SamplesPerRecord: n}
	assert.ErrorIs(t, f.AddChannel(sig, samples[:5]), edf.ErrDimensionMismatch)
	require.NoError(t, f.AddChannel(sig, samples))

	ch, err := f.Channel("hypnogram")
	require.NoError(t, err)
	assert.Equal(t, 1, ch)

	got := f.Header()
	require.Len(t, got.Signals, 2)
	assert.Equal(t, 2, got.SignalCount)
	assert.Equal(t, 768, got.HeaderBytes)
	assert.Equal(t, -32768, got.Signals[1].DigitalMin)
	assert.Equal(t, 0.0, got.Signals[1].PhysicalMin)
	assert.Equal(t, 5.5, got.Signals[1].PhysicalMax)

	// The storage no longer matches, so changes must be saved instead.
	assert.ErrorIs(t, f.Flush(), edf.ErrLayoutChanged)

	out := reopen(t, f)
	sl, err := out.Slice(1, edf.Interval{Start: 0, Stop: 120 * time.Second}, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, samples, sl.Samples, got.Signals[1].BitValue())
	assert.Equal(t, expectedSamples(3, 0, 3), recordSamples(t, out, 0, 3))
}

func TestAddChannelLongLabel(t *testing.T) {
	f := newRecording(t, testHeader(time.Second, unitSignal("EEG C3-M2", 2)), 2, pattern)

	// 17 bytes, the last rune straddles the 16 byte label field.
	sig := edf.Signal{Label: "Débit ééééééé", SamplesPerRecord: 2}
	require.NoError(t, f.AddChannel(sig, []float64{1, 2, 3, 4}))

	got := f.Header()
	assert.Equal(t, "Débit éééé", got.Signals[1].Label)
	assert.True(t, utf8.ValidString(got.Signals[1].Label))

	out := reopen(t, f)
	ch, err := out.Channel("débit éééé")
	require.NoError(t, err)
	assert.Equal(t, 1, ch)
}

func TestAddChannelRejects(t *testing.T) {
	hdr := testHeader(time.Second, unitSignal("EEG C3-M2", 2))
	f := newRecording(t, hdr, 2, pattern)
	samples := make([]float64, 4)

	err := f.AddChannel(edf.Signal{Label: "eeg c3-m2", SamplesPerRecord: 2}, samples)
	assert.ErrorIs(t, err, edf.ErrDuplicateChannel)

	err = f.AddChannel(edf.Signal{Label: " ", SamplesPerRecord: 2}, samples)
	assert.ErrorIs(t, err, edf.ErrMalformedHeader)

	err = f.AddChannel(edf.Signal{Label: edf.AnnotationLabel, SamplesPerRecord: 2}, samples)
	assert.ErrorIs(t, err, edf.ErrMalformedHeader)

	err = f.AddChannel(edf.Signal{Label: "Flow"}, samples)
	var herr *edf.HeaderError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, "number of samples", herr.Field)

	assert.Len(t, f.Header().Signals, 1)
}

func TestDropChannel(t *testing.T) {
	hdr := testHeader(time.Second, unitSignal("EEG C3-M2", 4), unitSignal("Flow", 2), unitSignal("SaO2", 1))
	f := newRecording(t, hdr, 3, pattern)

	require.NoError(t, f.DropChannel(1))
	got := f.Header()
	require.Len(t, got.Signals, 2)
	assert.Equal(t, "SaO2", got.Signals[1].Label)

	ch, err := f.Channel("SaO2")
	require.NoError(t, err)
	assert.Equal(t, 1, ch)
	_, err = f.Channel("Flow")
	assert.ErrorIs(t, err, edf.ErrChannelNotFound)

	out := reopen(t, f)
	assert.Equal(t, expectedSamples(1, 2, 1), recordSamples(t, out, 1, 1))
	assert.Equal(t, expectedSamples(2, 0, 4), recordSamples(t, out, 0, 2))

	assert.ErrorIs(t, f.DropChannel(5), edf.ErrChannelNotFound)
}

func TestDropTimeTrack(t *testing.T) {
	f := newDiscontinuous(t, 30*time.Second, 3, []string{"+0", "+60"})
	assert.Error(t, f.DropChannel(1))

	hdr := testHeader(time.Second, unitSignal("EEG C3-M2", 4), annotationSignal(8))
	hdr.Reserved = edf.ReservedContinuous
	g := newRecording(t, hdr, 2, pattern)

	require.NoError(t, g.DropChannel(1))
	got := g.Header()
	assert.False(t, got.EDFPlus())
	assert.Equal(t, -1, got.TimeTrack())
}
