// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/graphrun/jobrunner/internal/executor"
	"github.com/graphrun/jobrunner/internal/graph"
	"github.com/graphrun/jobrunner/internal/jobconfig"
	"github.com/graphrun/jobrunner/internal/logger"
	"github.com/graphrun/jobrunner/internal/mailer"
	"github.com/graphrun/jobrunner/internal/notifier"
	"github.com/graphrun/jobrunner/internal/runlock"
	"github.com/graphrun/jobrunner/internal/scheduler"
)

// Run resolves flags, builds the job graph, and drives it to completion.
// It returns the process exit code: 0 on job SUCCESS, non-zero on
// FAILURE, CANCELED, or any pre-scheduling configuration error.
func Run(ctx context.Context) (int, error) {
	flags, err := jobconfig.Resolve()
	if err != nil {
		return 1, err
	}

	logPath := flags.LogPath
	if logPath == "" {
		logPath = filepath.Join(flags.Path, "logs")
	}
	if err := os.MkdirAll(logPath, 0750); err != nil {
		return 1, fmt.Errorf("log directory %q uncreatable: %w", logPath, err)
	}

	lock := runlock.New(logPath)
	if err := lock.Acquire(); err != nil {
		return 1, err
	}
	defer lock.Release()

	configFile := filepath.Join(flags.Path, flags.ConfigFile)
	data, err := os.ReadFile(configFile)
	if err != nil {
		return 1, fmt.Errorf("reading config file %q: %w", configFile, err)
	}

	doc, err := graph.ParseDocument(data)
	if err != nil {
		return 1, err
	}

	extrasFileVars, cliVars, err := flags.Variables()
	if err != nil {
		return 1, err
	}

	env, concurrencyExplicit, err := graph.Load(graph.LoadOptions{
		ConfigFile:     flags.ConfigFile,
		ConfigVars:     doc.Variables,
		ExtrasFileVars: extrasFileVars,
		CLIVars:        cliVars,
	})
	if err != nil {
		return 1, err
	}

	g, err := graph.BuildJob(doc, env)
	if err != nil {
		return 1, err
	}
	g.DisableSteps(flags.Disabled)

	jobName := strings.TrimSuffix(filepath.Base(flags.ConfigFile), filepath.Ext(flags.ConfigFile))
	requestID := uuid.NewString()

	logFile, err := logger.OpenLogFile(logger.LogFileConfig{
		JobLogDir: logPath,
		JobName:   jobName,
		RequestID: requestID,
	})
	if err != nil {
		return 1, fmt.Errorf("opening job transcript: %w", err)
	}
	defer logFile.Close()

	logOpts := []logger.Option{logger.WithLogFile(logFile)}
	if flags.Verbose {
		logOpts = append(logOpts, logger.WithDebug())
	}
	log := logger.NewLogger(logOpts...)

	m := mailer.New(env["smtp_relay"])
	exec := executor.New(logPath, flags.Simulate, m, 0)
	notify := notifier.New(m, env["mail_from"], env["slack_webhook"])

	sched := scheduler.New(scheduler.Config{
		Graph:               g,
		Env:                 env,
		ConcurrencyExplicit: concurrencyExplicit,
		Executor:            exec,
		Logger:              log,
		Notifier:            notify,
		JobName:             jobName,
		ConfigPath:          configFile,
		RequestID:           requestID,
		Delay:               flags.Delay,
		RunningDelay:        flags.RunningDelay,
		NoSuccessEmail:      flags.NoSuccessEmail,
	})

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary := sched.Run(runCtx)
	if summary.Outcome != scheduler.OutcomeSuccess {
		return 1, nil
	}
	return 0, nil
}
