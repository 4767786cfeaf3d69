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
	"time"

	"github.com/OpenPSG/edfkit/edf"
	"github.com/spf13/cobra"
)

func (a *app) newSummarizeCommand() *cobra.Command {
	var (
		out   string
		epoch time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sedf FILE",
		Short: "Writes a summary recording with one record of statistics per epoch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (retErr error) {
			f, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer closeAll(&retErr, f)

			if err := f.Timeline().SetEpochs(epoch, epoch); err != nil {
				return err
			}
			summary, err := f.Summarize()
			if err != nil {
				return err
			}
			cmd.Printf("Summarized %d epochs into %d signals\n", summary.Records(), len(summary.Header().Signals))

			return save(summary, out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file")
	cmd.Flags().DurationVar(&epoch, "epoch", edf.DefaultEpochLength, "Epoch length")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
