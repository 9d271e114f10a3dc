// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cli wires the resolved CLI flags, job configuration, graph,
// executor, scheduler, and notifier together into one runnable command.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/graphrun/jobrunner/internal/jobconfig"
)

// version is set at build time via -ldflags.
var version = "0.0.0"

// NewRootCommand builds the top-level "jobrunner" command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobrunner",
		Short: "Runs a DAG of steps on a single host",
		Long:  "jobrunner -c job.json [flags]",
		RunE: func(cmd *cobra.Command, _ []string) error {
			exitCode, err := Run(cmd.Context())
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			if exitCode != 0 {
				return &exitError{code: exitCode}
			}
			return nil
		},
	}
	jobconfig.BindFlags(cmd)
	return cmd
}

// exitError carries a non-zero process exit code through cobra's error
// path without printing anything extra.
type exitError struct{ code int }

func (e *exitError) Error() string { return "" }

// ExitCode extracts the process exit code from an error returned by the
// root command, defaulting to 1 for any other error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	return 1
}
