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
	"github.com/OpenPSG/edfkit/edf"
	"github.com/spf13/cobra"
)

func (a *app) newMergeCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "merge FILE...",
		Short: "Concatenates recordings with identical signal layouts",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (retErr error) {
			files := make([]*edf.File, 0, len(args))
			defer func() { closeAll(&retErr, files...) }()

			for _, path := range args {
				f, err := a.open(path)
				if err != nil {
					return err
				}
				files = append(files, f)
			}

			merged, err := edf.Merge(files...)
			if err != nil {
				return err
			}
			cmd.Printf("Merged %d recordings into %d records\n", len(files), merged.Records())

			return save(merged, out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
