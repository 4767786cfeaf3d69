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
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/OpenPSG/edfkit/edf"
	"github.com/spf13/cobra"
)

// selectorFile is the TOML layout of a selector list:
//
//	[[selector]]
//	start = "1m"
//	stop = "2m30s"
type selectorFile struct {
	Selectors []struct {
		Start string `toml:"start"`
		Stop  string `toml:"stop"`
	} `toml:"selector"`
}

func (a *app) newAlignCommand() *cobra.Command {
	var out, selectors string
	cmd := &cobra.Command{
		Use:   "align FILE",
		Short: "Re-chunks data records to start at the given selectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (retErr error) {
			sel, err := readSelectors(selectors)
			if err != nil {
				return err
			}

			f, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer closeAll(&retErr, f)

			res, err := f.Align(sel)
			if err != nil {
				return err
			}
			cmd.Printf("Aligned %d selectors into %d records, skipped %d\n", res.Accepted, res.Records, res.Skipped)

			return save(f, out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file")
	cmd.Flags().StringVar(&selectors, "selectors", "", "TOML file listing [[selector]] start and stop offsets")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("selectors")

	return cmd
}

func readSelectors(path string) ([]edf.Interval, error) {
	var sf selectorFile
	md, err := toml.DecodeFile(path, &sf)
	if err != nil {
		return nil, fmt.Errorf("failed to read selectors from %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %q: %s", path, strings.Join(keys, ", "))
	}

	out := make([]edf.Interval, len(sf.Selectors))
	for i, s := range sf.Selectors {
		start, err := time.ParseDuration(s.Start)
		if err != nil {
			return nil, fmt.Errorf("selector %d: invalid start: %w", i, err)
		}
		stop, err := time.ParseDuration(s.Stop)
		if err != nil {
			return nil, fmt.Errorf("selector %d: invalid stop: %w", i, err)
		}
		if stop <= start {
			return nil, fmt.Errorf("selector %d: stop %s is not after start %s", i, stop, start)
		}
		out[i] = edf.Interval{Start: start, Stop: stop}
	}
	return out, nil
}
