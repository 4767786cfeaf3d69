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
	"errors"
	"fmt"
	"time"

	"github.com/OpenPSG/edfkit/edf"
	"github.com/spf13/cobra"
)

type restructureArgs struct {
	out       string        // output path, the input is rewritten if empty
	epoch     time.Duration // epoch length
	increment time.Duration // epoch increment, the epoch length if zero
	exclude   []int         // epochs to remove
	include   []int         // epochs to keep
}

func (a *app) newRestructureCommand() *cobra.Command {
	var arguments restructureArgs
	cmd := &cobra.Command{
		Use:   "restructure FILE",
		Short: "Removes the data records of masked epochs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (retErr error) {
			if (len(arguments.exclude) == 0) == (len(arguments.include) == 0) {
				return errors.New("exactly one of --exclude or --include is required")
			}

			f, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer closeAll(&retErr, f)

			removed, err := arguments.restructure(f)
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d records, %d remain\n", removed, f.Records())

			out := arguments.out
			if out == "" {
				out = args[0]
			}
			return save(f, out)
		},
	}

	cmd.Flags().StringVarP(&arguments.out, "out", "o", "",
		"Output file, the input file is rewritten if not set")
	cmd.Flags().DurationVar(&arguments.epoch, "epoch", edf.DefaultEpochLength,
		"Epoch length")
	cmd.Flags().DurationVar(&arguments.increment, "increment", 0,
		"Distance between epoch starts, the epoch length if not set")
	cmd.Flags().IntSliceVar(&arguments.exclude, "exclude", nil,
		"Epochs to remove")
	cmd.Flags().IntSliceVar(&arguments.include, "include", nil,
		"Epochs to keep, every other epoch is removed")

	return cmd
}

func (r *restructureArgs) restructure(f *edf.File) (int, error) {
	increment := r.increment
	if increment == 0 {
		increment = r.epoch
	}

	tl := f.Timeline()
	if err := tl.SetEpochs(r.epoch, increment); err != nil {
		return 0, err
	}

	ids, mode := r.exclude, edf.MaskExclude
	if len(r.include) > 0 {
		ids, mode = r.include, edf.MaskInclude
	}
	if err := tl.Mask(ids, mode); err != nil {
		return 0, fmt.Errorf("failed to mask epochs: %w", err)
	}

	return f.Restructure()
}
