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
	"slices"

	"github.com/spf13/cobra"
)

func (a *app) newDropCommand() *cobra.Command {
	var out, channels string
	cmd := &cobra.Command{
		Use:   "drop FILE",
		Short: "Removes signals from a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (retErr error) {
			f, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer closeAll(&retErr, f)

			chs, err := f.Resolve(channels)
			if err != nil {
				return err
			}
			// Drop from the end so earlier indices stay valid.
			slices.Sort(chs)
			slices.Reverse(chs)
			for _, ch := range chs {
				if err := f.DropChannel(ch); err != nil {
					return err
				}
			}
			cmd.Printf("Dropped %d signals\n", len(chs))

			if out == "" {
				out = args[0]
			}
			return save(f, out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "",
		"Output file, the input file is rewritten if not set")
	cmd.Flags().StringVar(&channels, "channels", "",
		"Comma separated label patterns of the signals to remove")
	_ = cmd.MarkFlagRequired("channels")

	return cmd
}
