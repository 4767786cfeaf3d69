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
)

type Version string

const (
	// Version0 represents the version of the EDF/EDF+ standard.
	Version0 Version = "0"
)

const (
	// AnnotationLabel is the label reserved for EDF+ annotation signals.
	AnnotationLabel = "EDF Annotations"

	// ReservedContinuous marks an EDF+ file with contiguous data records.
	ReservedContinuous = "EDF+C"
	// ReservedDiscontinuous marks an EDF+ file whose records may be separated by gaps.
	ReservedDiscontinuous = "EDF+D"
)

// Header represents the EDF/EDF+ file header.
type Header struct {
	Version            Version       // Version of the EDF/EDF+ standard (usually "0")
	PatientID          string        // Identification of the patient
	RecordingID        string        // Identification of the recording session
	StartTime          time.Time     // Start date of the recording
	HeaderBytes        int           // Number of bytes in the header
	Reserved           string        // EDF+C / EDF+D for EDF+ files, empty for plain EDF
	DataRecordDuration time.Duration // Duration of a single data record in seconds
	DataRecords        int           // Number of data records, -1 if unknown
	SignalCount        int           // Number of signals in each data record
	Signals            []Signal      // Details of each signal

	// Original text of numeric fields, re-emitted when the value is unchanged.
	headerBytesText string
	recordsText     string
	durationText    string
	signalCountText string
}

// Signal represents the characteristics of each signal in the EDF/EDF+ file.
type Signal struct {
	Label             string  // Label of the signal (e.g., EEG Fpz-Cz)
	TransducerType    string  // Type of transducer used
	PhysicalDimension string  // Physical dimension (e.g., uV, mV)
	PhysicalMin       float64 // Minimum physical value
	PhysicalMax       float64 // Maximum physical value
	DigitalMin        int     // Minimum digital value
	DigitalMax        int     // Maximum digital value
	Prefiltering      string  // Pre-filtering information
	SamplesPerRecord  int     // Number of samples in each data record for this signal
	Reserved          string  // Reserved for future use

	physicalMinText string
	physicalMaxText string
	digitalMinText  string
	digitalMaxText  string
	samplesText     string
}

// IsAnnotation reports whether the signal carries EDF+ annotations rather than samples.
func (s Signal) IsAnnotation() bool {
	return s.Label == AnnotationLabel
}

// BitValue is the physical size of one digital step.
func (s Signal) BitValue() float64 {
	if s.DigitalMax == s.DigitalMin {
		return 0
	}
	return (s.PhysicalMax - s.PhysicalMin) / float64(s.DigitalMax-s.DigitalMin)
}

// Offset is the digital offset such that physical = BitValue * (digital + Offset).
func (s Signal) Offset() float64 {
	bv := s.BitValue()
	if bv == 0 {
		return 0
	}
	return s.PhysicalMax/bv - float64(s.DigitalMax)
}

// ToPhysical converts a digital sample to its physical value.
func (s Signal) ToPhysical(digital int16) float64 {
	return s.BitValue() * (float64(digital) + s.Offset())
}

// ToDigital converts a physical value to the nearest digital sample, clamped to
// the signal's digital range.
func (s Signal) ToDigital(physical float64) int16 {
	bv := s.BitValue()
	if bv == 0 {
		return 0
	}
	d := math.Round(physical/bv - s.Offset())
	if d < float64(s.DigitalMin) {
		d = float64(s.DigitalMin)
	}
	if d > float64(s.DigitalMax) {
		d = float64(s.DigitalMax)
	}
	return int16(d)
}

// EDFPlus reports whether the header declares an EDF+ file.
func (h *Header) EDFPlus() bool {
	return strings.HasPrefix(h.Reserved, "EDF+")
}

// Continuous reports whether data records follow each other without gaps.
func (h *Header) Continuous() bool {
	return h.Reserved != ReservedDiscontinuous
}

// TimeTrack returns the index of the EDF+ time-keeping signal, or -1.
func (h *Header) TimeTrack() int {
	if !h.EDFPlus() {
		return -1
	}
	for i, sig := range h.Signals {
		if sig.IsAnnotation() {
			return i
		}
	}
	return -1
}

// SamplingRate returns the number of samples per second of a signal.
func (h *Header) SamplingRate(ch int) float64 {
	if ch < 0 || ch >= len(h.Signals) || h.DataRecordDuration <= 0 {
		return 0
	}
	return float64(h.Signals[ch].SamplesPerRecord) / h.DataRecordDuration.Seconds()
}

// RecordSize returns the size in bytes of one data record.
func (h *Header) RecordSize() int {
	size := 0
	for _, sig := range h.Signals {
		size += sig.SamplesPerRecord * 2
	}
	return size
}

// Interval is a half-open span [Start, Stop) of time measured from the start
// of the recording. One tick is one nanosecond.
type Interval struct {
	Start time.Duration
	Stop  time.Duration
}

// Length returns the duration covered by the interval.
func (iv Interval) Length() time.Duration {
	if iv.Stop <= iv.Start {
		return 0
	}
	return iv.Stop - iv.Start
}

// Overlaps reports whether two intervals share at least one tick.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start < o.Stop && o.Start < iv.Stop
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start, iv.Stop)
}
