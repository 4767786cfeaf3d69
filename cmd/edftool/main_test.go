// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OpenPSG/edfkit/edf"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestFile writes a plain EDF recording with 30 s records, a 10 Hz
// EEG signal and a 1 Hz flow signal.
func writeTestFile(t *testing.T, dir, name string, records int, start time.Time) string {
	t.Helper()

	path := filepath.Join(dir, name)
	fh, err := os.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = fh.Close()
	})

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        "Startdate X X X X",
		StartTime:          start,
		DataRecordDuration: 30 * time.Second,
		SignalCount:        2,
		Signals: []edf.Signal{
			{Label: "EEG C3-M2", PhysicalDimension: "uV", PhysicalMin: -500, PhysicalMax: 500,
				DigitalMin: -32768, DigitalMax: 32767, SamplesPerRecord: 300},
			{Label: "Flow", PhysicalDimension: "L/s", PhysicalMin: -32768, PhysicalMax: 32767,
				DigitalMin: -32768, DigitalMax: 32767, SamplesPerRecord: 30},
		},
	}
	ew, err := edf.Create(fh, hdr)
	require.NoError(t, err)
	for r := 0; r < records; r++ {
		eeg := make([]int16, 300)
		flow := make([]int16, 30)
		for j := range eeg {
			eeg[j] = int16((r*300 + j) % 1000)
		}
		for j := range flow {
			flow[j] = int16(r*30 + j)
		}
		require.NoError(t, ew.WriteDigitalRecord([][]int16{eeg, flow}))
	}
	require.NoError(t, ew.Close())
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd, err := newRootCommand(viper.New())
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err = cmd.Execute()
	return out.String(), err
}

func openRecording(t *testing.T, path string) *edf.File {
	t.Helper()

	fh, err := os.Open(path)
	require.NoError(t, err)
	f, err := edf.Open(fh)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})
	return f
}

var testStart = time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC)

func TestHeaderCommand(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "night.edf", 4, testStart)

	out, err := execute(t, "header", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Format:    EDF version 0")
	assert.Contains(t, out, "Start:     2024-03-01T22:30:00Z")
	assert.Contains(t, out, "Records:   4 of 30s")
	assert.Contains(t, out, "Duration:  2m0s, 0 gaps")
	assert.Contains(t, out, "EEG C3-M2")
	assert.Contains(t, out, "KiB")

	out, err = execute(t, "header", "--channels", "flow", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "EEG C3-M2")

	_, err = execute(t, "header", filepath.Join(t.TempDir(), "missing.edf"))
	assert.Error(t, err)
}

func TestSliceCommand(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "night.edf", 4, testStart)

	out, err := execute(t, "slice", path, "--channel", "flow", "--start", "30s", "--stop", "33s", "--digital")
	require.NoError(t, err)
	assert.Equal(t, "time\tFlow\n30\t30\n31\t31\n32\t32\n", out)

	out, err = execute(t, "slice", path, "--channel", "flow", "--start", "60s", "--stop", "62s")
	require.NoError(t, err)
	assert.Equal(t, "time\tFlow\n60\t60\n61\t61\n", out)

	_, err = execute(t, "slice", path, "--channel", "*")
	assert.ErrorIs(t, err, edf.ErrSampleRateMismatch)

	_, err = execute(t, "slice", path, "--channel", "ecg*")
	assert.ErrorIs(t, err, edf.ErrChannelNotFound)
}

func TestRestructureCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "night.edf", 6, testStart)
	out := filepath.Join(dir, "clean.edf")

	stdout, err := execute(t, "restructure", path, "--out", out, "--exclude", "1,4")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed 2 records, 4 remain")

	f := openRecording(t, out)
	assert.Equal(t, 4, f.Records())
	assert.Equal(t, edf.ReservedDiscontinuous, f.Header().Reserved)
	assert.Equal(t, 60*time.Second, f.Timeline().RecordInterval(1).Start)

	_, err = execute(t, "restructure", path, "--out", out)
	assert.Error(t, err)

	// Without --out the input is rewritten.
	_, err = execute(t, "restructure", path, "--include", "0,1,2")
	require.NoError(t, err)
	g := openRecording(t, path)
	assert.Equal(t, 3, g.Records())
	assert.True(t, g.Timeline().Continuous())
}

func TestAlignCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "night.edf", 10, testStart)
	out := filepath.Join(dir, "aligned.edf")

	selectors := filepath.Join(dir, "selectors.toml")
	require.NoError(t, os.WriteFile(selectors, []byte(strings.Join([]string{
		`[[selector]]`,
		`start = "1m"`,
		`stop = "2m"`,
		``,
		`[[selector]]`,
		`start = "3m"`,
		`stop = "3m45s"`,
		``,
		`[[selector]]`,
		`start = "4m"`,
		`stop = "4m30s"`,
	}, "\n")), 0o644))

	stdout, err := execute(t, "align", path, "--out", out, "--selectors", selectors)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Aligned 2 selectors into 3 records, skipped 1")

	f := openRecording(t, out)
	assert.Equal(t, 3, f.Records())
	assert.Equal(t, 240*time.Second, f.Timeline().RecordInterval(2).Start)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[[selector]]\nstart = \"1m\"\nstop = \"2m\"\nlabel = \"x\"\n"), 0o644))
	_, err = execute(t, "align", path, "--out", out, "--selectors", bad)
	assert.ErrorContains(t, err, "unknown keys")
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	first := writeTestFile(t, dir, "first.edf", 3, testStart)
	second := writeTestFile(t, dir, "second.edf", 2, testStart.Add(2*time.Hour))
	out := filepath.Join(dir, "merged.edf")

	stdout, err := execute(t, "merge", "--out", out, first, second)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Merged 2 recordings into 5 records")

	f := openRecording(t, out)
	assert.Equal(t, 5, f.Records())
	assert.Equal(t, testStart, f.Header().StartTime)

	_, err = execute(t, "merge", "--out", out, first)
	assert.Error(t, err)
}

func TestSummarizeCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "night.edf", 4, testStart)
	out := filepath.Join(dir, "summary.edf")

	stdout, err := execute(t, "sedf", path, "--out", out, "--epoch", "1m")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Summarized 2 epochs into 7 signals")

	f := openRecording(t, out)
	assert.Equal(t, 2, f.Records())
	assert.Equal(t, time.Minute, f.Header().DataRecordDuration)
	_, err = f.Channel("Flow_MEAN")
	assert.NoError(t, err)
}

func TestDropCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "night.edf", 2, testStart)

	stdout, err := execute(t, "drop", path, "--channels", "eeg*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Dropped 1 signals")

	f := openRecording(t, path)
	hdr := f.Header()
	require.Len(t, hdr.Signals, 1)
	assert.Equal(t, "Flow", hdr.Signals[0].Label)
}
