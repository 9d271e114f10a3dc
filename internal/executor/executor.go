// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package executor runs a single step to completion: an OS command, an
// internal send_mail or sleep task, or (in simulate mode) a no-op.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/graphrun/jobrunner/internal/graph"
	"github.com/graphrun/jobrunner/internal/mailer"
)

// defaultKillGrace is the time a canceled os step is given to exit
// after SIGTERM before the executor escalates to SIGKILL.
const defaultKillGrace = 5 * time.Second

// Result is the outcome of running one step.
type Result struct {
	Status     graph.Status
	ExitCode   int
	StdoutPath string
	StderrPath string
	StartedAt  time.Time
	EndedAt    time.Time
	Message    string
}

// mailSender is the subset of *mailer.Mailer the executor needs, kept
// as an interface so tests can substitute a fake transport.
type mailSender interface {
	Send(mailer.Message) error
}

// Executor runs steps against a log directory and an SMTP mailer.
type Executor struct {
	LogDir    string
	Simulate  bool
	Mailer    mailSender
	KillGrace time.Duration
}

// New builds an Executor. killGrace of zero uses the recommended 5s
// default.
func New(logDir string, simulate bool, m mailSender, killGrace time.Duration) *Executor {
	if killGrace <= 0 {
		killGrace = defaultKillGrace
	}
	return &Executor{LogDir: logDir, Simulate: simulate, Mailer: m, KillGrace: killGrace}
}

// Run executes step to completion, honoring ctx cancellation.
func (e *Executor) Run(ctx context.Context, step *graph.Step) Result {
	if e.Simulate {
		return e.runSimulated(step)
	}

	switch action := step.Action.(type) {
	case graph.OsCommand:
		return e.runOS(ctx, step, action)
	case graph.SendMail:
		return e.runSendMail(step, action)
	case graph.Sleep:
		return e.runSleep(ctx, step, action)
	default:
		return Result{
			Status:    graph.StatusFailed,
			Message:   fmt.Sprintf("unknown action type %T", action),
			StartedAt: time.Now(),
			EndedAt:   time.Now(),
		}
	}
}

func (e *Executor) runSimulated(step *graph.Step) Result {
	start := time.Now()
	path := e.stepLogPath(step.Key)
	if err := appendLine(path, "simulated"); err != nil {
		return Result{Status: graph.StatusFailed, Message: err.Error(), StartedAt: start, EndedAt: time.Now()}
	}
	return Result{
		Status:     graph.StatusSucceeded,
		ExitCode:   0,
		StdoutPath: path,
		StderrPath: path,
		StartedAt:  start,
		EndedAt:    time.Now(),
		Message:    "simulated",
	}
}

func (e *Executor) runOS(ctx context.Context, step *graph.Step, action graph.OsCommand) Result {
	start := time.Now()

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	stdoutPath := e.stepLogPath(step.Key + ".stdout")
	stderrPath := e.stepLogPath(step.Key + ".stderr")

	outFile, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return Result{Status: graph.StatusFailed, Message: err.Error(), StartedAt: start, EndedAt: time.Now()}
	}
	defer outFile.Close()
	errFile, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return Result{Status: graph.StatusFailed, Message: err.Error(), StartedAt: start, EndedAt: time.Now()}
	}
	defer errFile.Close()

	cmd := exec.Command(shell, "-c", action.Cmdline)
	cmd.Stdout = outFile
	cmd.Stderr = errFile

	if err := cmd.Start(); err != nil {
		return Result{
			Status: graph.StatusFailed, Message: fmt.Sprintf("start: %v", err),
			StdoutPath: stdoutPath, StderrPath: stderrPath,
			StartedAt: start, EndedAt: time.Now(),
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case waitErr := <-done:
		exitCode := exitCodeOf(waitErr)
		status := graph.StatusFailed
		if slices.Contains(step.ResultCodeAllowed, exitCode) {
			status = graph.StatusSucceeded
		}
		return Result{
			Status: status, ExitCode: exitCode,
			StdoutPath: stdoutPath, StderrPath: stderrPath,
			StartedAt: start, EndedAt: time.Now(),
		}

	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case waitErr := <-done:
			return Result{
				Status: graph.StatusCanceled, ExitCode: exitCodeOf(waitErr),
				StdoutPath: stdoutPath, StderrPath: stderrPath,
				StartedAt: start, EndedAt: time.Now(), Message: "canceled",
			}
		case <-time.After(e.KillGrace):
			_ = cmd.Process.Kill()
			<-done
			return Result{
				Status: graph.StatusCanceled,
				StdoutPath: stdoutPath, StderrPath: stderrPath,
				StartedAt: start, EndedAt: time.Now(), Message: "killed after grace period",
			}
		}
	}
}

func (e *Executor) runSendMail(step *graph.Step, action graph.SendMail) Result {
	start := time.Now()
	path := e.stepLogPath(step.Key)

	err := e.Mailer.Send(mailer.Message{
		From:    action.From,
		To:      []string{action.To},
		Subject: action.Subject,
		Body:    action.Body,
	})
	if err != nil {
		_ = appendLine(path, fmt.Sprintf("send_mail failed: %v", err))
		return Result{
			Status: graph.StatusFailed, Message: err.Error(),
			StdoutPath: path, StderrPath: path,
			StartedAt: start, EndedAt: time.Now(),
		}
	}

	_ = appendLine(path, fmt.Sprintf("mail sent to %s", action.To))
	return Result{
		Status:     graph.StatusSucceeded,
		StdoutPath: path, StderrPath: path,
		StartedAt: start, EndedAt: time.Now(),
	}
}

func (e *Executor) runSleep(ctx context.Context, step *graph.Step, action graph.Sleep) Result {
	start := time.Now()
	path := e.stepLogPath(step.Key)
	_ = appendLine(path, fmt.Sprintf("sleeping %ds", action.Seconds))

	select {
	case <-time.After(time.Duration(action.Seconds) * time.Second):
		return Result{
			Status:     graph.StatusSucceeded,
			StdoutPath: path, StderrPath: path,
			StartedAt: start, EndedAt: time.Now(),
		}
	case <-ctx.Done():
		return Result{
			Status:     graph.StatusCanceled,
			StdoutPath: path, StderrPath: path,
			StartedAt: start, EndedAt: time.Now(), Message: "canceled",
		}
	}
}

func (e *Executor) stepLogPath(name string) string {
	return filepath.Join(e.LogDir, name+".log")
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, line)
	return err
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
