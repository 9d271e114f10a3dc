// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/graphrun/jobrunner/internal/hostinfo"
)

// Env is the frozen, resolved variable environment a job runs with. It
// is immutable after Load returns.
type Env map[string]string

// requiredVariables must be present in the merged environment or the
// job fails initialization.
var requiredVariables = []string{"mail_to", "mail_to_fail"}

// LoadOptions supplies the three overlay layers merged on top of the
// built-in defaults, in increasing order of precedence.
type LoadOptions struct {
	ConfigFile     string
	ConfigVars     map[string]string
	ExtrasFileVars map[string]string
	CLIVars        map[string]string
}

// Load merges the built-in defaults with config, extras-file, and
// command-line variables, in that order of increasing precedence, and
// validates that every required variable resolved. The second return
// value reports whether "concurrency" was set explicitly by one of the
// overlay layers, as opposed to carrying its host-CPU-count default —
// the scheduler's concurrency cap treats the two cases differently.
func Load(opts LoadOptions) (Env, bool, error) {
	env := builtinDefaults(opts.ConfigFile)
	concurrencyExplicit := false

	merge := func(layer map[string]string) {
		for k, v := range layer {
			if k == "concurrency" {
				concurrencyExplicit = true
			}
			env[k] = v
		}
	}
	merge(opts.ConfigVars)
	merge(opts.ExtrasFileVars)
	merge(opts.CLIVars)

	if _, ok := env["mail_from"]; !ok {
		env["mail_from"] = fmt.Sprintf("%s@%s", hostinfo.Hostname(), env["mail_from_domain"])
	}

	var missing []string
	for _, name := range requiredVariables {
		if strings.TrimSpace(env[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrMissingRequiredVariable, strings.Join(missing, ", "))
	}

	return env, concurrencyExplicit, nil
}

func builtinDefaults(configFile string) Env {
	now := time.Now()
	return Env{
		"concurrency":        fmt.Sprintf("%d", hostinfo.CPUCount()),
		"config_file":        configFile,
		"date":               now.Format("2006_01_02"),
		"date_time":          now.Format("20060102_150405"),
		"date_time_2":        now.Format("20060102-150405"),
		"date_time_3":        now.Format("20060102150405"),
		"date_time_4":        now.Format("2006-01-02 15:04:05"),
		"date_time_friendly": now.Format("Mon Jan _2 15:04:05 2006"),
		"hostname":           hostinfo.Hostname(),
		"hostname_fqdn":      hostinfo.FQDN(),
		"mail_from_domain":   "",
		"smtp_relay":         "localhost",
	}
}
