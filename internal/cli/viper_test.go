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
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type options struct {
	format   string
	epochs   int
	digital  bool
	epoch    time.Duration
	channels []string
	level    zapcore.Level
}

func newTestCommand(t *testing.T, o *options, run func() error) *cobra.Command {
	t.Helper()

	cmd, err := NewCommand(viper.New(), &Program{
		Run:  run,
		Name: "edftest",
		Opts: []Opt{
			NewOpt(&o.format, "log-format", "console", "log encoding"),
			NewOpt(&o.epochs, "epochs", 10, "number of epochs"),
			NewOpt(&o.digital, "digital", false, "print digital values"),
			NewOpt(&o.epoch, "epoch", 30*time.Second, "epoch length"),
			NewOpt(&o.channels, "channels", []string{"eeg*"}, "channel patterns"),
			NewOpt(&o.level, "log-level", zapcore.InfoLevel, "log level"),
		},
	})
	require.NoError(t, err)
	return cmd
}

func TestNewCommandDefaults(t *testing.T) {
	var o options
	ran := false
	cmd := newTestCommand(t, &o, func() error {
		ran = true
		return nil
	})
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.True(t, ran)
	assert.Equal(t, "console", o.format)
	assert.Equal(t, 10, o.epochs)
	assert.False(t, o.digital)
	assert.Equal(t, 30*time.Second, o.epoch)
	assert.Equal(t, []string{"eeg*"}, o.channels)
	assert.Equal(t, zapcore.InfoLevel, o.level)
}

func TestNewCommandEnvironment(t *testing.T) {
	t.Setenv("EDFTEST_LOG_FORMAT", "json")
	t.Setenv("EDFTEST_EPOCHS", "4")
	t.Setenv("EDFTEST_DIGITAL", "true")
	t.Setenv("EDFTEST_EPOCH", "1m")
	t.Setenv("EDFTEST_LOG_LEVEL", "debug")

	var o options
	cmd := newTestCommand(t, &o, func() error { return nil })
	cmd.SetArgs([]string{"--epochs", "7"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "json", o.format)
	assert.Equal(t, 7, o.epochs)
	assert.True(t, o.digital)
	assert.Equal(t, time.Minute, o.epoch)
	assert.Equal(t, zapcore.DebugLevel, o.level)
}

func TestLevelFlag(t *testing.T) {
	var o options
	cmd := newTestCommand(t, &o, func() error { return nil })

	cmd.SetArgs([]string{"--log-level", "warn"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, zapcore.WarnLevel, o.level)

	cmd.SetArgs([]string{"--log-level", "loud"})
	assert.Error(t, cmd.Execute())
}

func TestLevelFlagFromEnv(t *testing.T) {
	t.Setenv("EDFTEST_LOG_LEVEL", "fatal")

	var level zapcore.Level
	_, err := NewCommand(viper.New(), &Program{
		Name: "edftest",
		Opts: []Opt{NewOpt(&level, "log-level", zapcore.InfoLevel, "log level")},
	})
	assert.ErrorContains(t, err, "invalid log-level")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "debug", want: zapcore.DebugLevel},
		{in: " WARN ", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "panic", wantErr: true},
		{in: "fatal", wantErr: true},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.ErrorContains(t, err, "debug, info, warn, error")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBindOptionsUnknownType(t *testing.T) {
	var f float32
	cmd := &cobra.Command{Use: "x"}
	err := BindOptions(viper.New(), cmd.Flags(), []Opt{NewOpt(&f, "ratio", nil, "")})
	assert.Error(t, err)
}
