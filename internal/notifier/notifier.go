// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package notifier composes and dispatches job lifecycle summary
// emails, with an optional Slack channel alongside the mandatory SMTP
// path.
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/slack-go/slack"

	"github.com/graphrun/jobrunner/internal/mailer"
	"github.com/graphrun/jobrunner/internal/scheduler"
)

// mailSender is the subset of *mailer.Mailer the notifier needs.
type mailSender interface {
	Send(mailer.Message) error
}

// Notifier composes job summary emails and, optionally, posts the same
// summary to a Slack incoming webhook.
type Notifier struct {
	Mailer       mailSender
	From         string // RFC5322 address used as the mail From header
	SlackWebhook string // empty disables the Slack channel
}

// New builds a Notifier. from is the mail From address (typically the
// graph's mail_from built-in variable); slackWebhook may be empty.
func New(m mailSender, from, slackWebhook string) *Notifier {
	return &Notifier{Mailer: m, From: from, SlackWebhook: slackWebhook}
}

// NotifyStart sends an optional job-start notice to mail_to.
func (n *Notifier) NotifyStart(_ context.Context, s scheduler.Summary) error {
	return n.send(s, []string{s.MailTo}, fmt.Sprintf("[%s] job started", s.JobName), n.startBody(s))
}

// NotifySuccess sends a success summary to mail_to.
func (n *Notifier) NotifySuccess(_ context.Context, s scheduler.Summary) error {
	return n.send(s, []string{s.MailTo}, fmt.Sprintf("[%s] job succeeded", s.JobName), n.summaryBody(s))
}

// NotifyFailure sends a failure/cancel summary to the union of mail_to
// and mail_to_fail.
func (n *Notifier) NotifyFailure(_ context.Context, s scheduler.Summary) error {
	recipients := unionRecipients(s.MailTo, s.MailToFail)
	subject := fmt.Sprintf("[%s] job %s", s.JobName, strings.ToLower(s.Outcome.String()))
	return n.send(s, recipients, subject, n.summaryBody(s))
}

func unionRecipients(a, b string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, addr := range []string{a, b} {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

func (n *Notifier) send(s scheduler.Summary, to []string, subject, body string) error {
	var recipients []string
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	to = recipients
	if len(to) == 0 {
		return nil
	}

	var mailErr error
	if n.Mailer != nil {
		mailErr = n.Mailer.Send(mailer.Message{
			From:    n.From,
			To:      to,
			Subject: subject,
			Body:    body,
		})
	}

	if n.SlackWebhook != "" {
		if err := n.postSlack(subject, body); err != nil && mailErr == nil {
			mailErr = err
		}
	}

	return mailErr
}

func (n *Notifier) postSlack(subject, body string) error {
	return slack.PostWebhook(n.SlackWebhook, &slack.WebhookMessage{
		Text: fmt.Sprintf("%s\n%s", subject, body),
	})
}

func (n *Notifier) startBody(s scheduler.Summary) string {
	return fmt.Sprintf("Job: %s\nConfig: %s\nStarted: %s\n", s.JobName, s.ConfigPath, s.StartedAt.Format("2006-01-02 15:04:05"))
}

func (n *Notifier) summaryBody(s scheduler.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job: %s\n", s.JobName)
	fmt.Fprintf(&b, "Config: %s\n", s.ConfigPath)
	fmt.Fprintf(&b, "Started: %s\n", s.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Ended: %s\n", s.EndedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Outcome: %s\n\n", s.Outcome)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Key", "Name", "Status", "Elapsed", "Exit"})
	for _, step := range s.Steps {
		t.AppendRow(table.Row{step.Key, step.Name, step.Status, step.Elapsed.Round(1e6), step.ExitCode})
	}
	b.WriteString(t.Render())
	return b.String()
}
