// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphrun/jobrunner/internal/graph"
	"github.com/graphrun/jobrunner/internal/mailer"
)

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(msg mailer.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func newStep(key string, action graph.Action, resultCodes []int) *graph.Step {
	if resultCodes == nil {
		resultCodes = []int{0}
	}
	return &graph.Step{Key: key, Name: key, Action: action, ResultCodeAllowed: resultCodes}
}

func TestRunOSCommandSuccess(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, false, &fakeMailer{}, 0)

	step := newStep("s1", graph.OsCommand{Cmdline: "echo hello"}, nil)
	result := e.Run(context.Background(), step)

	assert.Equal(t, graph.StatusSucceeded, result.Status)
	assert.Equal(t, 0, result.ExitCode)
	content, err := os.ReadFile(result.StdoutPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello")
}

func TestRunOSCommandFailure(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, false, &fakeMailer{}, 0)

	step := newStep("s1", graph.OsCommand{Cmdline: "exit 7"}, nil)
	result := e.Run(context.Background(), step)

	assert.Equal(t, graph.StatusFailed, result.Status)
	assert.Equal(t, 7, result.ExitCode)
}

func TestRunOSCommandAllowedNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, false, &fakeMailer{}, 0)

	step := newStep("s1", graph.OsCommand{Cmdline: "exit 3"}, []int{0, 3})
	result := e.Run(context.Background(), step)

	assert.Equal(t, graph.StatusSucceeded, result.Status)
	assert.Equal(t, 3, result.ExitCode)
}

func TestRunOSCommandCanceled(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, false, &fakeMailer{}, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	step := newStep("s1", graph.OsCommand{Cmdline: "sleep 5"}, nil)

	done := make(chan Result, 1)
	go func() { done <- e.Run(ctx, step) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	result := <-done
	assert.Equal(t, graph.StatusCanceled, result.Status)
}

func TestRunSleepCompletes(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, false, &fakeMailer{}, 0)

	step := newStep("s1", graph.Sleep{Seconds: 0}, nil)
	result := e.Run(context.Background(), step)

	assert.Equal(t, graph.StatusSucceeded, result.Status)
}

func TestRunSleepCanceled(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, false, &fakeMailer{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step := newStep("s1", graph.Sleep{Seconds: 10}, nil)
	result := e.Run(ctx, step)

	assert.Equal(t, graph.StatusCanceled, result.Status)
}

func TestRunSendMailSuccess(t *testing.T) {
	dir := t.TempDir()
	fm := &fakeMailer{}
	e := New(dir, false, fm, 0)

	step := newStep("s1", graph.SendMail{To: "a@example.com", From: "r@example.com", Subject: "hi", Body: "body"}, nil)
	result := e.Run(context.Background(), step)

	assert.Equal(t, graph.StatusSucceeded, result.Status)
	require.Len(t, fm.sent, 1)
	assert.Equal(t, "a@example.com", fm.sent[0].To[0])
}

func TestRunSendMailFailure(t *testing.T) {
	dir := t.TempDir()
	fm := &fakeMailer{err: assertErr{}}
	e := New(dir, false, fm, 0)

	step := newStep("s1", graph.SendMail{To: "a@example.com"}, nil)
	result := e.Run(context.Background(), step)

	assert.Equal(t, graph.StatusFailed, result.Status)
}

type assertErr struct{}

func (assertErr) Error() string { return "smtp failure" }

func TestSimulateModeSkipsSideEffects(t *testing.T) {
	dir := t.TempDir()
	fm := &fakeMailer{}
	e := New(dir, true, fm, 0)

	step := newStep("s1", graph.OsCommand{Cmdline: "exit 1"}, nil)
	result := e.Run(context.Background(), step)

	assert.Equal(t, graph.StatusSucceeded, result.Status)
	content, err := os.ReadFile(filepath.Join(dir, "s1.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "simulated")
	assert.Empty(t, fm.sent)
}
