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
	"io"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ryanuber/go-glob"
	"go.uber.org/zap"
)

// File is an EDF/EDF+ recording attached to random access storage. Data
// records are read on first use and stay resident until the file is closed.
// A File is not safe for concurrent use.
type File struct {
	r   io.ReaderAt
	w   io.WriterAt // nil when the storage is read-only
	log *zap.Logger

	hdr     *Header
	layout  *layout  // nil once the in-memory layout has diverged from storage
	records []record // nil entries have not been loaded yet
	dirty   []bool
	tl      *Timeline
	labels  map[string]int
}

// layout describes where the in-memory signals live in the backing storage.
type layout struct {
	file        *Header // header of the stored file, all signals
	index       []int   // stored signal index of each in-memory signal
	offsets     []int   // byte offset within a stored record of each in-memory signal
	recordSize  int
	headerDirty bool
}

type options struct {
	log     *zap.Logger
	signals string
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithSignals restricts the signals materialised in memory to those matched
// by a comma separated label pattern (see Header.Resolve). The EDF+
// time-track of a discontinuous file is always kept.
func WithSignals(pattern string) Option {
	return func(o *options) {
		o.signals = pattern
	}
}

// Open attaches to an EDF/EDF+ file. If r also implements io.WriterAt,
// records can be rewritten in place.
func Open(r io.ReaderAt, opts ...Option) (*File, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	full, err := ParseHeader(io.NewSectionReader(r, 0, math.MaxInt64))
	if err != nil {
		return nil, err
	}

	recordSize := full.RecordSize()
	if full.DataRecords < 0 {
		size, ok := storageSize(r)
		if !ok {
			return nil, &HeaderError{Field: "number of data records", Signal: -1, Value: "-1",
				Err: errors.New("unknown record count and storage size")}
		}
		full.DataRecords = int((size - int64(full.HeaderBytes)) / int64(recordSize))
		full.recordsText = ""
	}

	offsets := make([]int, len(full.Signals))
	off := 0
	for i, sig := range full.Signals {
		offsets[i] = off
		off += sig.SamplesPerRecord * 2
	}

	index := make([]int, len(full.Signals))
	for i := range index {
		index[i] = i
	}
	if o.signals != "" {
		if index, err = full.Resolve(o.signals); err != nil {
			return nil, err
		}
		if tt := full.TimeTrack(); tt >= 0 && !full.Continuous() && !slices.Contains(index, tt) {
			index = append(index, tt)
		}
		slices.Sort(index)
	}

	hdr := *full
	hdr.Signals = make([]Signal, len(index))
	l := &layout{file: full, index: index, offsets: make([]int, len(index)), recordSize: recordSize}
	for i, si := range index {
		hdr.Signals[i] = full.Signals[si]
		l.offsets[i] = offsets[si]
	}
	hdr.SignalCount = len(hdr.Signals)
	hdr.HeaderBytes = 256 * (hdr.SignalCount + 1)

	f := &File{
		r:       r,
		log:     o.log.With(zap.String("component", "edf")),
		hdr:     &hdr,
		layout:  l,
		records: make([]record, full.DataRecords),
		dirty:   make([]bool, full.DataRecords),
	}
	if w, ok := r.(io.WriterAt); ok {
		f.w = w
	}
	f.rebuildLabels()

	var starts []time.Duration
	if !hdr.Continuous() {
		if starts, err = f.readOnsets(); err != nil {
			return nil, err
		}
	}
	if f.tl, err = newTimeline(hdr.DataRecordDuration, full.DataRecords, starts); err != nil {
		return nil, err
	}

	f.log.Debug("Opened recording",
		zap.Int("signals", len(hdr.Signals)),
		zap.Int("records", full.DataRecords),
		zap.Duration("record_duration", hdr.DataRecordDuration),
		zap.Bool("continuous", hdr.Continuous()))

	return f, nil
}

// newDetachedFile wraps records that exist only in memory.
func newDetachedFile(hdr *Header, recs []record, starts []time.Duration, log *zap.Logger) (*File, error) {
	hdr.SignalCount = len(hdr.Signals)
	hdr.HeaderBytes = 256 * (hdr.SignalCount + 1)
	hdr.DataRecords = len(recs)

	tl, err := newTimeline(hdr.DataRecordDuration, len(recs), starts)
	if err != nil {
		return nil, err
	}
	f := &File{
		log:     log,
		hdr:     hdr,
		records: recs,
		dirty:   make([]bool, len(recs)),
		tl:      tl,
	}
	f.rebuildLabels()
	return f, nil
}

// readOnsets decodes the onset of every record from the EDF+ time-track.
func (f *File) readOnsets() ([]time.Duration, error) {
	tt := f.hdr.TimeTrack()
	if tt < 0 {
		return nil, &HeaderError{Field: "reserved", Signal: -1, Value: f.hdr.Reserved,
			Err: errors.New("discontinuous recording without a time-track")}
	}

	buf := make([]byte, f.hdr.Signals[tt].SamplesPerRecord*2)
	starts := make([]time.Duration, len(f.records))
	for i := range starts {
		if err := f.readAt(buf, i, f.layout.offsets[tt]); err != nil {
			return nil, err
		}
		onset, err := recordOnset(buf)
		if err != nil {
			return nil, &HeaderError{Field: "time-track onset", Signal: tt, Value: fmt.Sprintf("record %d", i), Err: err}
		}
		starts[i] = onset
	}
	return starts, nil
}

func (f *File) readAt(buf []byte, rec, off int) error {
	pos := int64(f.layout.file.HeaderBytes) + int64(rec)*int64(f.layout.recordSize) + int64(off)
	if n, err := f.r.ReadAt(buf, pos); n < len(buf) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return &IOError{Op: "reading", Record: rec, Err: err}
	}
	return nil
}

// ensureLoaded reads record i from storage unless it is already resident.
func (f *File) ensureLoaded(i int) error {
	if i < 0 || i >= len(f.records) {
		return fmt.Errorf("record %d out of range [0, %d)", i, len(f.records))
	}
	if f.records[i] != nil {
		return nil
	}
	if f.layout == nil {
		return ErrLayoutChanged
	}

	buf := make([]byte, f.layout.recordSize)
	if err := f.readAt(buf, i, 0); err != nil {
		return err
	}

	rec := make(record, len(f.hdr.Signals))
	for c, sig := range f.hdr.Signals {
		rec[c] = decodeSamples(buf[f.layout.offsets[c]:], sig.SamplesPerRecord)
	}
	f.records[i] = rec
	return nil
}

// loadAll makes every record resident.
func (f *File) loadAll() error {
	for i := range f.records {
		if err := f.ensureLoaded(i); err != nil {
			return err
		}
	}
	return nil
}

// detach loads every record and stops treating storage as the record
// source. Structural changes call it before touching anything.
func (f *File) detach() error {
	if err := f.loadAll(); err != nil {
		return err
	}
	f.layout = nil
	return nil
}

// WriteRecord re-encodes record i into the backing storage in place.
func (f *File) WriteRecord(i int) error {
	if f.w == nil {
		return &IOError{Op: "writing", Record: i, Err: errors.New("storage is read-only")}
	}
	if f.layout == nil {
		return ErrLayoutChanged
	}
	if err := f.ensureLoaded(i); err != nil {
		return err
	}

	base := int64(f.layout.file.HeaderBytes) + int64(i)*int64(f.layout.recordSize)
	for c, samples := range f.records[i] {
		buf := make([]byte, len(samples)*2)
		encodeSamples(buf, samples)
		if _, err := f.w.WriteAt(buf, base+int64(f.layout.offsets[c])); err != nil {
			return &IOError{Op: "writing", Record: i, Err: err}
		}
	}
	f.dirty[i] = false
	return nil
}

// Flush writes every modified record, and the header if signal scaling
// changed, back to storage in place.
func (f *File) Flush() error {
	if f.layout == nil {
		return ErrLayoutChanged
	}
	if f.layout.headerDirty {
		if f.w == nil {
			return &IOError{Op: "writing header", Record: -1, Err: errors.New("storage is read-only")}
		}
		b, err := f.layout.file.MarshalBinary()
		if err != nil {
			return err
		}
		if _, err := f.w.WriteAt(b, 0); err != nil {
			return &IOError{Op: "writing header", Record: -1, Err: err}
		}
		f.layout.headerDirty = false
	}
	n := 0
	for i, d := range f.dirty {
		if !d {
			continue
		}
		if err := f.WriteRecord(i); err != nil {
			return err
		}
		n++
	}
	f.log.Debug("Flushed records", zap.Int("records", n))
	return nil
}

// Save writes the recording in its current layout to w.
func (f *File) Save(w io.WriteSeeker) error {
	ew, err := Create(w, *f.hdr)
	if err != nil {
		return err
	}
	for i := range f.records {
		if err := f.ensureLoaded(i); err != nil {
			return err
		}
		if err := ew.WriteDigitalRecord(f.records[i]); err != nil {
			return err
		}
	}
	if err := ew.Close(); err != nil {
		return err
	}
	f.log.Debug("Saved recording", zap.Int("records", len(f.records)), zap.Int("signals", len(f.hdr.Signals)))
	return nil
}

// Close releases every resident record and closes the storage if it is an io.Closer.
func (f *File) Close() error {
	f.records = nil
	f.dirty = nil
	if c, ok := f.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Header returns a copy of the in-memory header.
func (f *File) Header() Header {
	hdr := *f.hdr
	hdr.Signals = slices.Clone(f.hdr.Signals)
	return hdr
}

// Timeline returns the record index and epoch table of the recording.
func (f *File) Timeline() *Timeline {
	return f.tl
}

// Records returns the number of data records.
func (f *File) Records() int {
	return len(f.records)
}

// Channel returns the index of the signal with the given label, ignoring case.
func (f *File) Channel(label string) (int, error) {
	if i, ok := f.labels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return i, nil
	}
	return -1, fmt.Errorf("%w: %q", ErrChannelNotFound, label)
}

// Resolve returns the signals matched by a comma separated label pattern.
func (f *File) Resolve(pattern string) ([]int, error) {
	return f.hdr.Resolve(pattern)
}

// SamplesForRate returns the per-record sample count of a signal sampled at rate Hz.
func (f *File) SamplesForRate(rate float64) (int, error) {
	n := rate * f.hdr.DataRecordDuration.Seconds()
	rounded := math.Round(n)
	if rounded < 1 || math.Abs(n-rounded) > 1e-6 {
		return 0, fmt.Errorf("%w: %g Hz is not a whole number of samples per %s record",
			ErrSampleRateMismatch, rate, f.hdr.DataRecordDuration)
	}
	return int(rounded), nil
}

func (f *File) rebuildLabels() {
	f.labels = make(map[string]int, len(f.hdr.Signals))
	for i, sig := range f.hdr.Signals {
		key := strings.ToLower(sig.Label)
		if _, ok := f.labels[key]; !ok {
			f.labels[key] = i
		}
	}
}

// dataSignal returns signal ch if it exists and holds samples.
func (f *File) dataSignal(ch int) (Signal, error) {
	if ch < 0 || ch >= len(f.hdr.Signals) {
		return Signal{}, fmt.Errorf("%w: index %d", ErrChannelNotFound, ch)
	}
	sig := f.hdr.Signals[ch]
	if sig.IsAnnotation() {
		return Signal{}, fmt.Errorf("%w: %q", ErrNotDataChannel, sig.Label)
	}
	return sig, nil
}

// Resolve returns the indices of the signals matched by pattern: comma
// separated terms, each a case-insensitive label that may contain '*'
// wildcards. Every term must match at least one signal.
func (h *Header) Resolve(pattern string) ([]int, error) {
	var out []int
	for _, term := range strings.Split(pattern, ",") {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		matched := false
		for i, sig := range h.Signals {
			if glob.Glob(term, strings.ToLower(sig.Label)) {
				matched = true
				if !slices.Contains(out, i) {
					out = append(out, i)
				}
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: %q", ErrChannelNotFound, term)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty pattern %q", ErrChannelNotFound, pattern)
	}
	return out, nil
}

func storageSize(r io.ReaderAt) (int64, bool) {
	switch s := r.(type) {
	case interface{ Size() int64 }:
		return s.Size(), true
	case interface{ Stat() (os.FileInfo, error) }:
		fi, err := s.Stat()
		if err != nil {
			return 0, false
		}
		return fi.Size(), true
	}
	return 0, false
}
