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
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Widths of the per-signal header columns, in file order.
var signalFieldWidths = [...]int{16, 80, 8, 8, 8, 8, 8, 80, 8, 32}

// ParseHeader parses the fixed EDF/EDF+ header from r.
func ParseHeader(r io.Reader) (*Header, error) {
	reader := bufio.NewReader(r)

	b := make([]byte, 256)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, &IOError{Op: "reading header", Record: -1, Err: err}
	}

	// Parse fields based on EDF/EDF+ specifications
	hdr := &Header{}
	hdr.Version = Version(trimField(b[0:8]))
	hdr.PatientID = trimField(b[8:88])
	hdr.RecordingID = trimField(b[88:168])

	var err error
	hdr.StartTime, err = parseStartTime(string(b[168:176]), string(b[176:184]))
	if err != nil {
		return nil, err
	}

	hdr.headerBytesText = string(b[184:192])
	if hdr.HeaderBytes, err = intField(b[184:192], "header bytes", -1); err != nil {
		return nil, err
	}

	hdr.Reserved = trimField(b[192:236])

	hdr.recordsText = string(b[236:244])
	if hdr.DataRecords, err = intField(b[236:244], "number of data records", -1); err != nil {
		return nil, err
	}
	if hdr.DataRecords < -1 {
		return nil, &HeaderError{Field: "number of data records", Signal: -1, Value: strings.TrimSpace(hdr.recordsText)}
	}

	hdr.durationText = string(b[244:252])
	hdr.DataRecordDuration, err = parseSeconds(string(b[244:252]))
	if err != nil {
		return nil, &HeaderError{Field: "data record duration", Signal: -1, Value: strings.TrimSpace(hdr.durationText), Err: err}
	}
	if hdr.DataRecordDuration <= 0 {
		return nil, &HeaderError{Field: "data record duration", Signal: -1, Value: strings.TrimSpace(hdr.durationText),
			Err: errors.New("duration must be positive")}
	}

	hdr.signalCountText = string(b[252:256])
	if hdr.SignalCount, err = intField(b[252:256], "number of signals", -1); err != nil {
		return nil, err
	}
	if hdr.SignalCount <= 0 {
		return nil, &HeaderError{Field: "number of signals", Signal: -1, Value: strings.TrimSpace(hdr.signalCountText)}
	}
	if hdr.HeaderBytes != 256*(hdr.SignalCount+1) {
		return nil, &HeaderError{Field: "header bytes", Signal: -1, Value: strings.TrimSpace(hdr.headerBytesText),
			Err: fmt.Errorf("expected %d bytes for %d signals", 256*(hdr.SignalCount+1), hdr.SignalCount)}
	}

	// Read signal headers, stored column by column.
	ns := hdr.SignalCount
	b = make([]byte, ns*256)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, &IOError{Op: "reading signal headers", Record: -1, Err: err}
	}

	var columns [len(signalFieldWidths)][]byte
	off := 0
	for k, w := range signalFieldWidths {
		columns[k] = b[off : off+ns*w]
		off += ns * w
	}
	field := func(k, i int) []byte {
		w := signalFieldWidths[k]
		return columns[k][i*w : (i+1)*w]
	}

	hdr.Signals = make([]Signal, ns)
	for i := range hdr.Signals {
		sig := &hdr.Signals[i]
		sig.Label = trimField(field(0, i))
		sig.TransducerType = trimField(field(1, i))
		sig.PhysicalDimension = trimField(field(2, i))

		sig.physicalMinText = string(field(3, i))
		if sig.PhysicalMin, err = floatField(field(3, i), "physical minimum", i); err != nil {
			return nil, err
		}
		sig.physicalMaxText = string(field(4, i))
		if sig.PhysicalMax, err = floatField(field(4, i), "physical maximum", i); err != nil {
			return nil, err
		}
		sig.digitalMinText = string(field(5, i))
		if sig.DigitalMin, err = intField(field(5, i), "digital minimum", i); err != nil {
			return nil, err
		}
		sig.digitalMaxText = string(field(6, i))
		if sig.DigitalMax, err = intField(field(6, i), "digital maximum", i); err != nil {
			return nil, err
		}

		sig.Prefiltering = trimField(field(7, i))

		sig.samplesText = string(field(8, i))
		if sig.SamplesPerRecord, err = intField(field(8, i), "number of samples", i); err != nil {
			return nil, err
		}
		if sig.SamplesPerRecord <= 0 {
			return nil, &HeaderError{Field: "number of samples", Signal: i, Value: strings.TrimSpace(sig.samplesText)}
		}

		sig.Reserved = trimField(field(9, i))

		if !sig.IsAnnotation() && sig.DigitalMin >= sig.DigitalMax {
			return nil, &HeaderError{Field: "digital minimum", Signal: i, Value: strings.TrimSpace(sig.digitalMinText),
				Err: fmt.Errorf("digital minimum must be below digital maximum %d", sig.DigitalMax)}
		}
	}

	return hdr, nil
}

// parseStartTime combines the dd.mm.yy and hh.mm.ss header fields. Two digit
// years are clipped to 1985-2084.
func parseStartTime(dateStr, timeStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	timeStr = strings.TrimSpace(timeStr)

	startDate, err := time.Parse("02.01.06", dateStr)
	if err != nil {
		return time.Time{}, &HeaderError{Field: "start date", Signal: -1, Value: dateStr, Err: err}
	}
	startTime, err := time.Parse("15.04.05", timeStr)
	if err != nil {
		return time.Time{}, &HeaderError{Field: "start time", Signal: -1, Value: timeStr, Err: err}
	}

	year := startDate.Year()
	if year < 1985 {
		year += 100
	}
	return time.Date(year, startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC), nil
}

func trimField(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

func intField(b []byte, name string, signal int) (int, error) {
	s := strings.TrimSpace(string(b))
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &HeaderError{Field: name, Signal: signal, Value: s, Err: err}
	}
	return v, nil
}

func floatField(b []byte, name string, signal int) (float64, error) {
	s := strings.TrimSpace(string(b))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &HeaderError{Field: name, Signal: signal, Value: s, Err: err}
	}
	return v, nil
}

// SignalReader reads continuous physical signal data from a File.
type SignalReader struct {
	f             *File
	signalIndex   int // Index of the signal to read
	currentRecord int // Current record being processed
	currentSample int // Current sample in the record
}

// Signal creates a new SignalReader for a specified signal index.
func (f *File) Signal(signalIndex int) (*SignalReader, error) {
	if _, err := f.dataSignal(signalIndex); err != nil {
		return nil, err
	}

	return &SignalReader{
		f:           f,
		signalIndex: signalIndex,
	}, nil
}

// Read fills the provided float64 slice with the physical values from the signal.
func (sr *SignalReader) Read(data []float64) (int, error) {
	signal := sr.f.hdr.Signals[sr.signalIndex]

	n := 0
	for n < len(data) {
		if sr.currentRecord >= len(sr.f.records) {
			return n, io.EOF // End of data records
		}

		if err := sr.f.ensureLoaded(sr.currentRecord); err != nil {
			return n, err
		}
		buf := sr.f.records[sr.currentRecord][sr.signalIndex]

		m := copyPhysical(data[n:], buf[sr.currentSample:], signal)
		n += m

		// Move to the next record once this one is drained
		sr.currentSample += m
		if sr.currentSample >= len(buf) {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}

	return n, nil
}

func copyPhysical(dst []float64, src []int16, sig Signal) int {
	bv, off := sig.BitValue(), sig.Offset()
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = bv * (float64(src[i]) + off)
	}
	return n
}
