// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"time"

	"github.com/graphrun/jobrunner/internal/graph"
)

// StepSummary is one row of a job's step table, as carried in the
// Summary handed to the notifier.
type StepSummary struct {
	Key      string
	Name     string
	Status   graph.Status
	Elapsed  time.Duration
	ExitCode int
}

// Outcome is the terminal job-level result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeFailure:
		return "FAILURE"
	case OutcomeCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// Summary describes a job run for the notifier and for Run's caller.
type Summary struct {
	JobName    string
	ConfigPath string
	RequestID  string
	StartedAt  time.Time
	EndedAt    time.Time
	Outcome    Outcome
	Steps      []StepSummary
	MailTo     string
	MailToFail string
}

// Notifier composes and dispatches job lifecycle emails. Implementations
// must never let a delivery failure change the job outcome.
type Notifier interface {
	NotifyStart(ctx context.Context, summary Summary) error
	NotifySuccess(ctx context.Context, summary Summary) error
	NotifyFailure(ctx context.Context, summary Summary) error
}

// NoopNotifier discards every notification.
type NoopNotifier struct{}

func (NoopNotifier) NotifyStart(context.Context, Summary) error   { return nil }
func (NoopNotifier) NotifySuccess(context.Context, Summary) error { return nil }
func (NoopNotifier) NotifyFailure(context.Context, Summary) error { return nil }
