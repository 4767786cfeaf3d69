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
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int // Number of data records written so far.
	buf         []byte
}

// Create creates a new EDF writer that writes to the given writer.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	hdr.Signals = append([]Signal(nil), hdr.Signals...)
	hdr.SignalCount = len(hdr.Signals)
	hdr.HeaderBytes = 256 * (hdr.SignalCount + 1)
	hdr.DataRecords = -1 // Unknown number of data records (at this time).

	ew := &Writer{w: w, hdr: &hdr, buf: make([]byte, hdr.RecordSize())}

	// Write the initial header
	if err := ew.writeHeader(); err != nil {
		return nil, &IOError{Op: "writing header", Record: -1, Err: err}
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	// Finalize the header with the actual number of data records
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return &IOError{Op: "writing header", Record: -1, Err: err}
	}

	return nil
}

// WriteRecord writes a single data record of physical values to the EDF file.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != ew.hdr.SignalCount {
		return fmt.Errorf("%w: expected %d signals, got %d", ErrDimensionMismatch, ew.hdr.SignalCount, len(signals))
	}

	digital := make([][]int16, len(signals))
	for i, samples := range signals {
		signal := ew.hdr.Signals[i]
		digital[i] = make([]int16, len(samples))
		for j, sample := range samples {
			digital[i][j] = signal.ToDigital(sample)
		}
	}

	return ew.WriteDigitalRecord(digital)
}

// WriteDigitalRecord writes a single data record of raw digital samples.
func (ew *Writer) WriteDigitalRecord(signals [][]int16) error {
	if len(signals) != ew.hdr.SignalCount {
		return fmt.Errorf("%w: expected %d signals, got %d", ErrDimensionMismatch, ew.hdr.SignalCount, len(signals))
	}

	off := 0
	for i, samples := range signals {
		signal := ew.hdr.Signals[i]
		if len(samples) != signal.SamplesPerRecord {
			return fmt.Errorf("%w: signal %q expects %d samples per record, got %d",
				ErrDimensionMismatch, signal.Label, signal.SamplesPerRecord, len(samples))
		}
		encodeSamples(ew.buf[off:], samples)
		off += len(samples) * 2
	}

	if _, err := ew.w.Write(ew.buf); err != nil {
		return &IOError{Op: "writing", Record: ew.dataRecords, Err: err}
	}

	ew.dataRecords++
	return nil
}

// writeHeader writes the EDF header to the start of the underlying writer.
func (ew *Writer) writeHeader() error {
	// Rewind to the beginning of the file.
	_, err := ew.w.Seek(0, io.SeekStart)
	if err != nil {
		return err
	}

	b, err := ew.hdr.MarshalBinary()
	if err != nil {
		return err
	}

	writer := bufio.NewWriter(ew.w)
	if _, err := writer.Write(b); err != nil {
		return err
	}

	// Ensure all data is flushed to the underlying writer
	if err := writer.Flush(); err != nil {
		return err
	}

	// Leave the writer positioned after the last record.
	_, err = ew.w.Seek(int64(len(b))+int64(ew.dataRecords)*int64(len(ew.buf)), io.SeekStart)
	return err
}

// MarshalBinary encodes the header in its fixed-width ASCII layout.
func (h *Header) MarshalBinary() ([]byte, error) {
	ns := len(h.Signals)
	if h.SignalCount != ns {
		return nil, fmt.Errorf("%w: header declares %d signals but describes %d", ErrDimensionMismatch, h.SignalCount, ns)
	}

	buf := bytes.NewBuffer(make([]byte, 0, 256*(ns+1)))

	var werr error
	write := func(s string, err error) {
		if err != nil && werr == nil {
			werr = err
		}
		buf.WriteString(s)
	}

	// Write version, patient and recording IDs
	write(pad(string(h.Version), 8), nil)
	write(pad(h.PatientID, 80), nil)
	write(pad(h.RecordingID, 80), nil)

	// Write start date and time
	write(pad(h.StartTime.Format("02.01.06"), 8), nil)
	write(pad(h.StartTime.Format("15.04.05"), 8), nil)

	// Write header bytes, reserved, data records, record duration and signal count.
	write(intText(h.headerBytesText, 256*(ns+1), 8))
	write(pad(h.Reserved, 44), nil)
	write(intText(h.recordsText, h.DataRecords, 8))
	write(durationText(h))
	write(intText(h.signalCountText, ns, 4))

	// Write signal details, column by column.
	for _, signal := range h.Signals {
		write(pad(signal.Label, 16), nil)
	}
	for _, signal := range h.Signals {
		write(pad(signal.TransducerType, 80), nil)
	}
	for _, signal := range h.Signals {
		write(pad(signal.PhysicalDimension, 8), nil)
	}
	for _, signal := range h.Signals {
		write(floatText(signal.physicalMinText, signal.PhysicalMin, 8))
	}
	for _, signal := range h.Signals {
		write(floatText(signal.physicalMaxText, signal.PhysicalMax, 8))
	}
	for _, signal := range h.Signals {
		write(intText(signal.digitalMinText, signal.DigitalMin, 8))
	}
	for _, signal := range h.Signals {
		write(intText(signal.digitalMaxText, signal.DigitalMax, 8))
	}
	for _, signal := range h.Signals {
		write(pad(signal.Prefiltering, 80), nil)
	}
	for _, signal := range h.Signals {
		write(intText(signal.samplesText, signal.SamplesPerRecord, 8))
	}
	for _, signal := range h.Signals {
		write(pad(signal.Reserved, 32), nil)
	}

	if werr != nil {
		return nil, werr
	}
	return buf.Bytes(), nil
}

// pad left-aligns s in a field of width bytes, truncating if necessary.
func pad(s string, width int) string {
	s = truncate(s, width)
	return s + strings.Repeat(" ", width-len(s))
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func intText(orig string, v, width int) (string, error) {
	if orig != "" {
		if o, err := strconv.Atoi(strings.TrimSpace(orig)); err == nil && o == v {
			return orig, nil
		}
	}
	s := strconv.Itoa(v)
	if len(s) > width {
		return "", fmt.Errorf("%w: %d does not fit in %d characters", ErrMalformedHeader, v, width)
	}
	return pad(s, width), nil
}

func floatText(orig string, v float64, width int) (string, error) {
	if orig != "" {
		if o, err := strconv.ParseFloat(strings.TrimSpace(orig), 64); err == nil && o == v {
			return orig, nil
		}
	}
	s := formatPhysicalValue(v, width)
	if len(s) > width {
		return "", fmt.Errorf("%w: %g does not fit in %d characters", ErrMalformedHeader, v, width)
	}
	return pad(s, width), nil
}

func durationText(h *Header) (string, error) {
	if h.durationText != "" {
		if d, err := parseSeconds(h.durationText); err == nil && d == h.DataRecordDuration {
			return h.durationText, nil
		}
	}
	if err := checkRecordDuration(h.DataRecordDuration); err != nil {
		return "", err
	}
	return pad(formatSeconds(h.DataRecordDuration), 8), nil
}

// checkRecordDuration reports whether d can be stored exactly in the 8
// character record duration field.
func checkRecordDuration(d time.Duration) error {
	if d <= 0 {
		return &HeaderError{Field: "duration of a data record", Signal: -1, Value: d.String(),
			Err: errors.New("must be positive")}
	}
	if s := formatSeconds(d); len(s) > 8 {
		return &HeaderError{Field: "duration of a data record", Signal: -1, Value: s,
			Err: errors.New("does not fit in 8 characters")}
	}
	return nil
}

// formatPhysicalValue renders val in at most width characters, trading
// decimal places for width.
func formatPhysicalValue(val float64, width int) string {
	s := strconv.FormatFloat(val, 'f', -1, 64)
	for prec := width - 2; len(s) > width && prec >= 0; prec-- {
		s = strconv.FormatFloat(val, 'f', prec, 64)
		if strings.Contains(s, ".") {
			s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
		}
	}
	if len(s) > width {
		s = strconv.FormatFloat(val, 'g', width-6, 64)
	}
	return s
}

// quantizePhysical returns the value a physical limit takes once written to
// and read back from the header.
func quantizePhysical(val float64) float64 {
	v, err := strconv.ParseFloat(formatPhysicalValue(val, 8), 64)
	if err != nil {
		return val
	}
	return v
}
