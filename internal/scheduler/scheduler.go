// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler drives the ready-set, enforces the concurrency cap,
// advances step states, handles the "ALL" sentinel, and propagates
// cancellation. It is the only component with mutable job state.
package scheduler

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"github.com/graphrun/jobrunner/internal/executor"
	"github.com/graphrun/jobrunner/internal/graph"
	"github.com/graphrun/jobrunner/internal/hostinfo"
	"github.com/graphrun/jobrunner/internal/logger"
)

const (
	defaultDelay        = time.Second
	defaultRunningDelay = 900 * time.Second
	minRunningDelay     = 60 * time.Second
)

// Config configures a single job run.
type Config struct {
	Graph               *graph.Graph
	Env                 graph.Env
	ConcurrencyExplicit bool
	Executor            *executor.Executor
	Logger              logger.Logger
	Notifier            Notifier
	JobName             string
	ConfigPath          string
	RequestID           string
	Delay               time.Duration
	RunningDelay        time.Duration
	NoSuccessEmail      bool
}

// Scheduler advances one job's steps to completion.
type Scheduler struct {
	cfg   Config
	nodes map[string]*node
}

// New builds a Scheduler for one job run.
func New(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg}
}

type completion struct {
	key    string
	result executor.Result
}

// Run drives the job to a terminal outcome. ctx cancellation (external
// SIGINT/SIGTERM) stops admitting new steps and cancels in-flight
// workers; Run still waits for every in-flight step to reach a terminal
// state before returning.
func (s *Scheduler) Run(ctx context.Context) Summary {
	start := time.Now()

	s.nodes = make(map[string]*node, len(s.cfg.Graph.Steps))
	for key, step := range s.cfg.Graph.Steps {
		s.nodes[key] = newNode(step)
	}

	concurrency := s.effectiveConcurrency()
	s.cfg.Logger.Infof("job %q starting: %d steps, concurrency %d", s.cfg.JobName, len(s.nodes), concurrency)

	if err := s.cfg.Notifier.NotifyStart(ctx, s.summarize(start, OutcomeSuccess)); err != nil {
		s.cfg.Logger.Warnf("start notification failed: %v", err)
	}

	delay := s.cfg.Delay
	if delay <= 0 {
		delay = defaultDelay
	}
	runningDelay := s.cfg.RunningDelay
	if runningDelay < minRunningDelay {
		runningDelay = defaultRunningDelay
	}

	ticker := time.NewTicker(delay)
	defer ticker.Stop()
	runningTicker := time.NewTicker(runningDelay)
	defer runningTicker.Stop()

	completions := make(chan completion, len(s.nodes))
	running := map[string]struct{}{}
	canceling := false

	s.recomputeReadySet()
	s.dispatch(ctx, running, completions, concurrency)

	for !s.allTerminal() {
		select {
		case c := <-completions:
			s.reap(c, running)
		case <-ticker.C:
		case <-runningTicker.C:
			s.logRunningSummary(running)
		case <-ctx.Done():
			if !canceling {
				canceling = true
				s.cfg.Logger.Warnf("job %q canceling: %v", s.cfg.JobName, ctx.Err())
			}
		}

		if canceling {
			s.cancelRemaining()
		} else {
			s.recomputeReadySet()
			s.dispatch(ctx, running, completions, concurrency)
		}
	}

	outcome := s.jobOutcome(canceling)
	summary := s.summarize(start, outcome)
	s.notifyEnd(ctx, outcome, summary)
	return summary
}

// recomputeReadySet advances PENDING steps: straight to CANCELED as soon
// as any predecessor has failed or been canceled (even while other
// predecessors are still running), otherwise to READY once every
// predecessor succeeded or was skipped. The ALL-step's virtual
// predecessor edges (every other step) make it follow this exact same
// rule.
func (s *Scheduler) recomputeReadySet() {
	pendingKeys := lo.Filter(s.cfg.Graph.Order, func(key string, _ int) bool {
		return s.nodes[key].status == graph.StatusPending
	})

	for _, key := range pendingKeys {
		deps := s.cfg.Graph.Dependencies(key)
		blocked := lo.SomeBy(deps, func(dep string) bool {
			return s.nodes[dep].status.BlocksDependent()
		})
		if blocked {
			s.nodes[key].status = graph.StatusCanceled
			s.cfg.Logger.Infof("step %q canceled: predecessor failed or canceled", key)
			continue
		}

		ready := lo.EveryBy(deps, func(dep string) bool {
			return s.nodes[dep].status.SatisfiesDependency()
		})
		if ready {
			s.nodes[key].status = graph.StatusReady
		}
	}
}

// cancelRemaining forces every step that has not yet started (PENDING or
// READY) straight to CANCELED. Once the job is canceling, no new step
// will ever be dispatched, so leaving one parked in PENDING/READY would
// strand it there forever and Run would never observe allTerminal.
func (s *Scheduler) cancelRemaining() {
	for _, key := range s.cfg.Graph.Order {
		n := s.nodes[key]
		if n.status == graph.StatusPending || n.status == graph.StatusReady {
			n.status = graph.StatusCanceled
			s.cfg.Logger.Infof("step %q canceled: job canceling", key)
		}
	}
}

// dispatch hands READY steps to workers up to the concurrency cap. It
// must only be called while the job is not canceling; cancelRemaining
// handles the canceling case instead.
func (s *Scheduler) dispatch(ctx context.Context, running map[string]struct{}, completions chan completion, concurrency int) {
	readyKeys := lo.Filter(s.cfg.Graph.Order, func(key string, _ int) bool {
		return s.nodes[key].status == graph.StatusReady
	})
	sort.Strings(readyKeys)

	for _, key := range readyKeys {
		if len(running) >= concurrency {
			break
		}
		n := s.nodes[key]
		n.status = graph.StatusRunning
		n.startedAt = time.Now()
		running[key] = struct{}{}

		s.cfg.Logger.Infof("step %q dispatched", key)
		go func(step *graph.Step) {
			result := s.cfg.Executor.Run(ctx, step)
			completions <- completion{key: step.Key, result: result}
		}(n.step)
	}
}

func (s *Scheduler) reap(c completion, running map[string]struct{}) {
	n := s.nodes[c.key]
	n.status = c.result.Status
	n.result = c.result
	delete(running, c.key)

	s.cfg.Logger.Infof("step %q %s exit=%d elapsed=%s", c.key, n.status, c.result.ExitCode, n.elapsed().Round(time.Millisecond))
}

func (s *Scheduler) allTerminal() bool {
	return lo.EveryBy(s.cfg.Graph.Order, func(key string) bool {
		return s.nodes[key].status.Terminal()
	})
}

func (s *Scheduler) jobOutcome(canceling bool) Outcome {
	if canceling {
		return OutcomeCanceled
	}
	allGood := lo.EveryBy(s.cfg.Graph.Order, func(key string) bool {
		n := s.nodes[key]
		return n.status == graph.StatusSkipped || n.status == graph.StatusSucceeded
	})
	if allGood {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

func (s *Scheduler) effectiveConcurrency() int {
	n, err := strconv.Atoi(s.cfg.Env["concurrency"])
	if err != nil || n < 1 {
		n = 1
	}
	if !s.cfg.ConcurrencyExplicit {
		if cpuCount := hostinfo.CPUCount(); cpuCount < n {
			n = cpuCount
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (s *Scheduler) logRunningSummary(running map[string]struct{}) {
	if len(running) == 0 {
		return
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Key", "Name", "Elapsed"})
	keys := lo.Keys(running)
	sort.Strings(keys)
	for _, key := range keys {
		n := s.nodes[key]
		t.AppendRow(table.Row{n.step.Key, n.step.Name, n.elapsed().Round(time.Second)})
	}
	s.cfg.Logger.Infof("running steps:\n%s", t.Render())
}

func (s *Scheduler) summarize(start time.Time, outcome Outcome) Summary {
	steps := make([]StepSummary, 0, len(s.cfg.Graph.Order))
	for _, key := range s.cfg.Graph.Order {
		n := s.nodes[key]
		steps = append(steps, StepSummary{
			Key:      n.step.Key,
			Name:     n.step.Name,
			Status:   n.status,
			Elapsed:  n.elapsed(),
			ExitCode: n.result.ExitCode,
		})
	}
	end := time.Now()
	return Summary{
		JobName:    s.cfg.JobName,
		ConfigPath: s.cfg.ConfigPath,
		RequestID:  s.cfg.RequestID,
		StartedAt:  start,
		EndedAt:    end,
		Outcome:    outcome,
		Steps:      steps,
		MailTo:     s.cfg.Env["mail_to"],
		MailToFail: s.cfg.Env["mail_to_fail"],
	}
}

func (s *Scheduler) notifyEnd(ctx context.Context, outcome Outcome, summary Summary) {
	switch outcome {
	case OutcomeSuccess:
		if s.cfg.NoSuccessEmail {
			return
		}
		if err := s.cfg.Notifier.NotifySuccess(ctx, summary); err != nil {
			s.cfg.Logger.Warnf("success notification failed: %v", err)
		}
	default:
		if err := s.cfg.Notifier.NotifyFailure(ctx, summary); err != nil {
			s.cfg.Logger.Warnf("failure notification failed: %v", err)
		}
	}
}
