// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package jobconfig binds the CLI surface to a spf13/cobra command and
// spf13/viper, so every flag can also be set by environment variable,
// matching the way the teacher binds its persistent flags.
package jobconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const minRunningDelay = 60

// Flags holds the resolved CLI surface for one invocation.
type Flags struct {
	Path           string
	LogPath        string
	ConfigFile     string
	Delay          time.Duration
	Disabled       []string
	Email          string
	Extras         string
	ExtrasFile     string
	RunningDelay   time.Duration
	Simulate       bool
	Verbose        bool
	NoSuccessEmail bool
}

// BindFlags registers every flag in spec.md's CLI surface table on cmd
// and binds each one to a like-named viper key.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("path", "p", "./", "config directory")
	flags.StringP("log_path", "l", "", "log directory (default <path>/logs)")
	flags.StringP("config", "c", "", "config file name (required)")
	flags.IntP("delay", "d", 1, "tick interval seconds")
	flags.StringP("disabled", "D", "", "comma-separated step keys to force-disable")
	flags.StringP("email", "e", "", "override failure email recipient")
	flags.StringP("Extras", "E", "", "JSON snippet; highest precedence variables")
	flags.String("extras_file", "", "path to JSON file of variables")
	flags.IntP("running_delay", "r", 900, "running-summary interval seconds (min 60)")
	flags.BoolP("simulate", "s", false, "job-wide simulate")
	flags.BoolP("verbose", "v", true, "verbose logging")
	flags.Bool("no_success_email", false, "suppress success notice")

	for _, name := range []string{
		"path", "log_path", "config", "delay", "disabled", "email",
		"Extras", "extras_file", "running_delay", "simulate", "verbose",
		"no_success_email",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
	viper.SetEnvPrefix("jobrunner")
	viper.AutomaticEnv()
}

// Resolve reads every bound flag (through viper, so a JOBRUNNER_<NAME>
// environment variable applies wherever the flag is not given on the
// command line) into a Flags value.
func Resolve() (*Flags, error) {
	configFile := viper.GetString("config")
	if strings.TrimSpace(configFile) == "" {
		return nil, fmt.Errorf("--config is required")
	}

	path := viper.GetString("path")
	if strings.TrimSpace(path) == "" {
		path = "./"
	}

	logPath := viper.GetString("log_path")

	runningDelay := viper.GetInt("running_delay")
	if runningDelay < minRunningDelay {
		runningDelay = minRunningDelay
	}

	var disabled []string
	if raw := strings.TrimSpace(viper.GetString("disabled")); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			key = strings.TrimSpace(key)
			if key != "" {
				disabled = append(disabled, key)
			}
		}
	}

	return &Flags{
		Path:           path,
		LogPath:        logPath,
		ConfigFile:     configFile,
		Delay:          time.Duration(viper.GetInt("delay")) * time.Second,
		Disabled:       disabled,
		Email:          viper.GetString("email"),
		Extras:         viper.GetString("Extras"),
		ExtrasFile:     viper.GetString("extras_file"),
		RunningDelay:   time.Duration(runningDelay) * time.Second,
		Simulate:       viper.GetBool("simulate"),
		Verbose:        viper.GetBool("verbose"),
		NoSuccessEmail: viper.GetBool("no_success_email"),
	}, nil
}

// Variables gathers the extras-file and command-line-extras variable
// layers and the override failure recipient, ready to hand to
// graph.Load.
func (f *Flags) Variables() (extrasFile map[string]string, cli map[string]string, err error) {
	if f.ExtrasFile != "" {
		data, readErr := os.ReadFile(f.ExtrasFile)
		if readErr != nil {
			return nil, nil, fmt.Errorf("reading extras file: %w", readErr)
		}
		extrasFile = map[string]string{}
		if unmarshalErr := json.Unmarshal(data, &extrasFile); unmarshalErr != nil {
			return nil, nil, fmt.Errorf("parsing extras file: %w", unmarshalErr)
		}
	}

	if f.Extras != "" {
		cli = map[string]string{}
		if unmarshalErr := json.Unmarshal([]byte(f.Extras), &cli); unmarshalErr != nil {
			return nil, nil, fmt.Errorf("parsing --Extras snippet: %w", unmarshalErr)
		}
	}

	if f.Email != "" {
		if cli == nil {
			cli = map[string]string{}
		}
		cli["mail_to_fail"] = f.Email
	}

	return extrasFile, cli, nil
}
