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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/OpenPSG/edfkit/edf"
	"github.com/spf13/cobra"
)

type sliceArgs struct {
	channels   string
	start      time.Duration
	stop       time.Duration
	downsample int
	digital    bool
}

func (a *app) newSliceCommand() *cobra.Command {
	var arguments sliceArgs
	cmd := &cobra.Command{
		Use:   "slice FILE",
		Short: "Prints samples of equally sampled signals as tab separated values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (retErr error) {
			f, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer closeAll(&retErr, f)

			return arguments.print(cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVar(&arguments.channels, "channel", "*",
		"Comma separated label patterns of the signals to print")
	cmd.Flags().DurationVar(&arguments.start, "start", 0,
		"Start of the interval, from the start of the recording")
	cmd.Flags().DurationVar(&arguments.stop, "stop", 0,
		"End of the interval, the end of the recording if zero")
	cmd.Flags().IntVar(&arguments.downsample, "downsample", 1,
		"Print every n-th sample")
	cmd.Flags().BoolVar(&arguments.digital, "digital", false,
		"Print stored digital values instead of physical values")

	return cmd
}

func (s *sliceArgs) print(w io.Writer, f *edf.File) error {
	chs, err := f.Resolve(s.channels)
	if err != nil {
		return err
	}
	hdr := f.Header()
	data := chs[:0]
	for _, ch := range chs {
		if !hdr.Signals[ch].IsAnnotation() {
			data = append(data, ch)
		}
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: %q matches no data signals", edf.ErrChannelNotFound, s.channels)
	}

	iv := edf.Interval{Start: s.start, Stop: s.stop}
	if iv.Stop == 0 {
		iv.Stop = f.Timeline().Duration()
	}

	var (
		ticks []time.Duration
		cols  [][]string
	)
	if s.digital {
		for _, ch := range data {
			sl, err := f.DigitalSlice(ch, iv, s.downsample)
			if err != nil {
				return err
			}
			if len(cols) > 0 && sl.Len() != len(ticks) {
				return fmt.Errorf("%w: %q", edf.ErrSampleRateMismatch, hdr.Signals[ch].Label)
			}
			ticks = sl.Ticks
			col := make([]string, sl.Len())
			for i, v := range sl.Samples {
				col[i] = strconv.Itoa(int(v))
			}
			cols = append(cols, col)
		}
	} else {
		m, t, err := f.MatSlice(data, iv, s.downsample)
		if err != nil {
			return err
		}
		ticks = t
		if m != nil {
			rows, _ := m.Dims()
			for c := range data {
				col := make([]string, rows)
				for r := range col {
					col[r] = strconv.FormatFloat(m.At(r, c), 'g', -1, 64)
				}
				cols = append(cols, col)
			}
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "time")
	for _, ch := range data {
		fmt.Fprintf(bw, "\t%s", hdr.Signals[ch].Label)
	}
	fmt.Fprintln(bw)
	for r, tick := range ticks {
		fmt.Fprint(bw, strconv.FormatFloat(tick.Seconds(), 'f', -1, 64))
		for _, col := range cols {
			fmt.Fprintf(bw, "\t%s", col[r])
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
