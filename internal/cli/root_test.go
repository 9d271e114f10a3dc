// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCommandRegistersConfigFlag(t *testing.T) {
	cmd := NewRootCommand()

	flag := cmd.Flags().Lookup("config")

	assert.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
}

func TestExitCodeNilIsZero(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
}

func TestExitCodeExitErrorCarriesCode(t *testing.T) {
	assert.Equal(t, 3, ExitCode(&exitError{code: 3}))
}

func TestExitCodeOtherErrorDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
}
