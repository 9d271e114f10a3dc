// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package graph

import "errors"

// Sentinel errors for the configuration-error taxonomy. Wrapped with
// %w so callers can use errors.Is against the specific failure.
var (
	ErrDuplicateKey          = errors.New("duplicate step key")
	ErrDanglingDependency    = errors.New("dependency references an unknown step")
	ErrMultipleAllSteps      = errors.New("more than one step declares dependencies \"ALL\"")
	ErrCycleDetected         = errors.New("step dependency graph contains a cycle")
	ErrUnknownVariable       = errors.New("unknown variable referenced in substitution")
	ErrMissingRequiredVariable = errors.New("required variable not resolved")
)
