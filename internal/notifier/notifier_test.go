// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphrun/jobrunner/internal/graph"
	"github.com/graphrun/jobrunner/internal/mailer"
	"github.com/graphrun/jobrunner/internal/scheduler"
)

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testSummary() scheduler.Summary {
	return scheduler.Summary{
		JobName:    "nightly-batch",
		ConfigPath: "/etc/jobrunner/nightly.json",
		StartedAt:  time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC),
		EndedAt:    time.Date(2026, 1, 1, 2, 5, 0, 0, time.UTC),
		Outcome:    scheduler.OutcomeSuccess,
		MailTo:     "ops@example.com",
		MailToFail: "oncall@example.com",
		Steps: []scheduler.StepSummary{
			{Key: "A", Name: "extract", Status: graph.StatusSucceeded, Elapsed: time.Second, ExitCode: 0},
		},
	}
}

func TestNotifySuccessSendsToMailTo(t *testing.T) {
	m := &fakeMailer{}
	n := New(m, "jobrunner@example.com", "")

	err := n.NotifySuccess(context.Background(), testSummary())

	require.NoError(t, err)
	require.Len(t, m.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, m.sent[0].To)
	assert.Contains(t, m.sent[0].Subject, "succeeded")
	assert.Contains(t, m.sent[0].Body, "extract")
}

func TestNotifySuccessUsesConfiguredFromAddress(t *testing.T) {
	m := &fakeMailer{}
	n := New(m, "jobs@batch.example.com", "")

	err := n.NotifySuccess(context.Background(), testSummary())

	require.NoError(t, err)
	require.Len(t, m.sent, 1)
	assert.Equal(t, "jobs@batch.example.com", m.sent[0].From)
}

func TestNotifyFailureSendsToUnionOfMailToAndMailToFail(t *testing.T) {
	m := &fakeMailer{}
	n := New(m, "jobrunner@example.com", "")
	s := testSummary()
	s.Outcome = scheduler.OutcomeFailure

	err := n.NotifyFailure(context.Background(), s)

	require.NoError(t, err)
	require.Len(t, m.sent, 1)
	assert.ElementsMatch(t, []string{"ops@example.com", "oncall@example.com"}, m.sent[0].To)
}

func TestNotifyFailureDeduplicatesIdenticalRecipients(t *testing.T) {
	m := &fakeMailer{}
	n := New(m, "jobrunner@example.com", "")
	s := testSummary()
	s.Outcome = scheduler.OutcomeFailure
	s.MailToFail = s.MailTo

	err := n.NotifyFailure(context.Background(), s)

	require.NoError(t, err)
	require.Len(t, m.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, m.sent[0].To)
}

func TestNotifyStartSkipsSendWhenMailToEmpty(t *testing.T) {
	m := &fakeMailer{}
	n := New(m, "jobrunner@example.com", "")
	s := testSummary()
	s.MailTo = ""

	err := n.NotifyStart(context.Background(), s)

	require.NoError(t, err)
	assert.Empty(t, m.sent)
}

func TestNotifyReturnsMailerError(t *testing.T) {
	m := &fakeMailer{err: assertErr("smtp down")}
	n := New(m, "jobrunner@example.com", "")

	err := n.NotifySuccess(context.Background(), testSummary())

	require.Error(t, err)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
