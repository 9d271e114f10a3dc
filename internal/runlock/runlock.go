// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package runlock guards against two instances of the same job running
// concurrently out of the same log directory.
package runlock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned by Acquire when another process already
// holds the lock.
var ErrAlreadyRunning = fmt.Errorf("job is already running")

// Lock is a single-instance guard backed by an advisory file lock.
type Lock struct {
	flock *flock.Flock
}

// New returns a Lock backed by a ".lock" file inside dir. dir must
// already exist.
func New(dir string) *Lock {
	return &Lock{flock: flock.New(filepath.Join(dir, ".lock"))}
}

// Acquire takes the lock without blocking. It returns ErrAlreadyRunning
// if another process currently holds it.
func (l *Lock) Acquire() error {
	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Release gives up the lock. Safe to call even if Acquire was never
// called or failed.
func (l *Lock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	return l.flock.Unlock()
}
