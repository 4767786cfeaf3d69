// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command edftool inspects and transforms EDF/EDF+ recordings.
package main

import (
	"fmt"
	"os"

	"github.com/OpenPSG/edfkit/internal/cli"
	"github.com/OpenPSG/edfkit/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cmd, err := newRootCommand(viper.New())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries state shared by every sub-command.
type app struct {
	logConfig logger.Config
	log       *zap.Logger
}

func newRootCommand(v *viper.Viper) (*cobra.Command, error) {
	a := &app{logConfig: logger.NewConfig(), log: zap.NewNop()}

	cmd, err := cli.NewCommand(v, &cli.Program{
		Name:  "edftool",
		Short: "Inspect and transform EDF/EDF+ recordings",
		Opts: []cli.Opt{
			cli.NewOpt(&a.logConfig.Level, "log-level", zapcore.InfoLevel,
				"Log level: debug, info, warn or error"),
			cli.NewOpt(&a.logConfig.Format, "log-format", "console",
				"Log encoding: console or json"),
		},
	})
	if err != nil {
		return nil, err
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		log, err := a.logConfig.New(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		a.log = log
		return nil
	}

	// List of available sub-commands
	// If a new sub-command is created, it must be added here
	subCommands := []*cobra.Command{
		a.newHeaderCommand(),
		a.newSliceCommand(),
		a.newRestructureCommand(),
		a.newAlignCommand(),
		a.newMergeCommand(),
		a.newSummarizeCommand(),
		a.newDropCommand(),
	}
	cmd.AddCommand(subCommands...)

	return cmd, nil
}
