// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package mailer sends email notifications through an SMTP relay. It is
// used both by the internal/send_mail step task and by the notifier's
// job summary emails.
package mailer

import (
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is a single email to send.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer sends Messages over an SMTP relay with no authentication,
// matching a local or network submission relay (e.g. postfix, a
// sendmail-compatible smarthost).
type Mailer struct {
	Relay string // host:port; port defaults to 25 if omitted
}

// New returns a Mailer that submits through relay.
func New(relay string) *Mailer {
	return &Mailer{Relay: relay}
}

// Send composes and delivers msg.
func (m *Mailer) Send(msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mailer: no recipients")
	}
	addr := m.Relay
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "25")
	}

	raw, err := buildMessage(msg)
	if err != nil {
		return fmt.Errorf("mailer: build message: %w", err)
	}

	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return fmt.Errorf("mailer: invalid from address %q: %w", msg.From, err)
	}

	if err := smtp.SendMail(addr, nil, from.Address, msg.To, []byte(raw)); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", addr, err)
	}
	return nil
}

func buildMessage(msg Message) (string, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return "", err
	}

	body := processEmailBody(msg.Body)
	contentType := "text/plain"
	if isHTMLContent(msg.Body) {
		contentType = "text/html"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from.String()))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	b.WriteString(fmt.Sprintf("Message-ID: <%s@jobrunner>\r\n", uuid.NewString()))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: %s; charset=UTF-8\r\n\r\n", contentType))
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.String(), nil
}

var doctypeRe = regexp.MustCompile(`(?i)^\s*<!doctype\s+html`)

// isHTMLContent reports whether content looks like a full HTML document,
// i.e. it begins (ignoring leading whitespace) with a <!DOCTYPE html>
// declaration. A bare <html> tag, or a plain-text message that happens
// to quote something in angle brackets, is not considered HTML.
func isHTMLContent(content string) bool {
	return doctypeRe.MatchString(content)
}

var newlineRe = regexp.MustCompile(`\r\n|\\r\\n|\r|\\r|\n|\\n`)

// newlineToBrTag replaces every newline variant (real or escaped,
// Unix/Windows/classic-Mac) with an HTML line break.
func newlineToBrTag(s string) string {
	return newlineRe.ReplaceAllString(s, "<br />")
}

// processEmailBody converts plain-text bodies to HTML-safe line breaks,
// leaving bodies that already look like HTML untouched.
func processEmailBody(body string) string {
	if isHTMLContent(body) {
		return body
	}
	return newlineToBrTag(body)
}
