// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// Levels are the log levels accepted on the command line. The panic and
// fatal levels are left out since the tools never log at them.
var Levels = []zapcore.Level{
	zapcore.DebugLevel,
	zapcore.InfoLevel,
	zapcore.WarnLevel,
	zapcore.ErrorLevel,
}

// levelFlag is a pflag.Value writing through to a zapcore.Level.
type levelFlag struct {
	p *zapcore.Level
}

func (f levelFlag) String() string {
	if f.p == nil {
		return ""
	}
	return f.p.String()
}

func (f levelFlag) Set(s string) error {
	level, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*f.p = level
	return nil
}

func (levelFlag) Type() string {
	return "level"
}

// ParseLevel parses one of Levels, ignoring case and surrounding space.
func ParseLevel(s string) (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || !slices.Contains(Levels, level) {
		names := make([]string, len(Levels))
		for i, l := range Levels {
			names[i] = l.String()
		}
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q, expected one of %s", s, strings.Join(names, ", "))
	}
	return level, nil
}

// LevelVar registers a log level flag storing into p, starting at value.
func LevelVar(fs *pflag.FlagSet, p *zapcore.Level, name string, value zapcore.Level, usage string) {
	*p = value
	fs.Var(levelFlag{p: p}, name, usage)
}
