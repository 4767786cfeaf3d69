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
	"os"

	"github.com/OpenPSG/edfkit/edf"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// open attaches to the recording at path. Closing the returned file closes
// the underlying os.File.
func (a *app) open(path string, opts ...edf.Option) (*edf.File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}

	fi, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, fmt.Errorf("failed to read FileInfo of file %s: %w", path, err)
	}
	if fi.IsDir() {
		_ = fh.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	opts = append([]edf.Option{edf.WithLogger(a.log.With(zap.String("path", path)))}, opts...)
	f, err := edf.Open(fh, opts...)
	if err != nil {
		_ = fh.Close()
		return nil, fmt.Errorf("unable to read EDF file %q: %w", path, err)
	}
	return f, nil
}

// save writes f to a temporary file next to path and renames it into place,
// so path may be the file f was opened from.
func save(f *edf.File, path string) error {
	tmp := path + ".rewriting.tmp"

	// Nested function to ensure the output is closed before the rename.
	err := func() (retErr error) {
		if err := os.RemoveAll(tmp); err != nil {
			return fmt.Errorf("failed to remove existing temp file at %q: %w", tmp, err)
		}
		out, err := os.Create(tmp)
		if err != nil {
			return fmt.Errorf("failed to create temporary file at %q: %w", tmp, err)
		}
		defer multierr.AppendInvoke(&retErr, multierr.Close(out))

		return f.Save(out)
	}()
	if err != nil {
		return multierr.Append(err, os.RemoveAll(tmp))
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move temporary file to %q: %w", path, err)
	}
	return nil
}

// closeAll closes every file, combining the errors into retErr.
func closeAll(retErr *error, files ...*edf.File) {
	for _, f := range files {
		if f != nil {
			multierr.AppendInto(retErr, f.Close())
		}
	}
}
