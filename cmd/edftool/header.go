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
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/OpenPSG/edfkit/edf"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *app) newHeaderCommand() *cobra.Command {
	var channels string
	cmd := &cobra.Command{
		Use:   "header FILE...",
		Short: "Prints the header and record layout of recordings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := a.printHeader(cmd.OutOrStdout(), path, channels); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&channels, "channels", "",
		"Comma separated label patterns of the signals to show")

	return cmd
}

func (a *app) printHeader(w io.Writer, path, channels string) (retErr error) {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}

	var opts []edf.Option
	if channels != "" {
		opts = append(opts, edf.WithSignals(channels))
	}
	f, err := a.open(path, opts...)
	if err != nil {
		return err
	}
	defer closeAll(&retErr, f)

	hdr := f.Header()
	tl := f.Timeline()

	format := "EDF"
	if hdr.EDFPlus() {
		format = hdr.Reserved
	}
	gaps := 0
	for i := 1; i < tl.Records(); i++ {
		if tl.RecordInterval(i).Start != tl.RecordInterval(i-1).Stop {
			gaps++
		}
	}

	fmt.Fprintf(w, "File:      %s (%s)\n", path, humanize.IBytes(uint64(fi.Size())))
	fmt.Fprintf(w, "Format:    %s version %s\n", format, hdr.Version)
	fmt.Fprintf(w, "Patient:   %s\n", hdr.PatientID)
	fmt.Fprintf(w, "Recording: %s\n", hdr.RecordingID)
	fmt.Fprintf(w, "Start:     %s\n", hdr.StartTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Records:   %s of %s\n", humanize.Comma(int64(tl.Records())), tl.RecordDuration())
	fmt.Fprintf(w, "Duration:  %s, %d gaps\n", tl.Duration(), gaps)
	fmt.Fprintf(w, "Epochs:    %s of %s\n", humanize.Comma(int64(tl.NumEpochs())), tl.EpochLength())
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 8, 8, 1, '\t', 0)
	fmt.Fprintln(tw, "#\tLabel\tRate (Hz)\tSamples\tPhysical\tDigital\tTransducer")
	for i, sig := range hdr.Signals {
		rate := "-"
		if !sig.IsAnnotation() {
			rate = strconv.FormatFloat(hdr.SamplingRate(i), 'g', 6, 64)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%g..%g %s\t%d..%d\t%s\n",
			i, sig.Label, rate, sig.SamplesPerRecord,
			sig.PhysicalMin, sig.PhysicalMax, sig.PhysicalDimension,
			sig.DigitalMin, sig.DigitalMax, sig.TransducerType)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}
