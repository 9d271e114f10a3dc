// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"time"

	"github.com/graphrun/jobrunner/internal/executor"
	"github.com/graphrun/jobrunner/internal/graph"
)

// node is the scheduler's mutable view of one step: the step's static
// definition plus its runtime status and, once it has run, its result.
type node struct {
	step      *graph.Step
	status    graph.Status
	startedAt time.Time
	result    executor.Result
}

func newNode(step *graph.Step) *node {
	status := graph.StatusPending
	if !step.Enabled {
		status = graph.StatusSkipped
	}
	return &node{step: step, status: status}
}

func (n *node) elapsed() time.Duration {
	if n.startedAt.IsZero() {
		return 0
	}
	end := n.result.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(n.startedAt)
}
