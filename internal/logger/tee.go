// Copyright (C) 2024 Yota Hamada
// SPDX-License-Identifier: GPL-3.0-or-later

package logger

import (
	"io"
	"os"
)

// Tee duplicates process-wide stdout onto Writer, in addition to the
// terminal, for the duration it is Open. This captures output written
// directly to os.Stdout by executed step commands, which bypass the
// structured Logger entirely.
type Tee struct {
	Writer io.Writer

	orig *os.File
	pw   *os.File
	done chan struct{}
}

// Open redirects os.Stdout through a pipe that tees to both the
// original stdout and t.Writer.
func (t *Tee) Open() error {
	r, w, err := os.Pipe()
	if err != nil {
		return err
	}

	t.orig = os.Stdout
	t.pw = w
	t.done = make(chan struct{})

	os.Stdout = w

	go func() {
		defer close(t.done)
		_, _ = io.Copy(io.MultiWriter(t.orig, t.Writer), r)
	}()

	return nil
}

// Close restores os.Stdout and waits for buffered output to drain.
func (t *Tee) Close() {
	if t.pw == nil {
		return
	}
	os.Stdout = t.orig
	_ = t.pw.Close()
	<-t.done
	t.pw = nil
}
