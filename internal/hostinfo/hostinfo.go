// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package hostinfo reports facts about the host the runner executes on,
// used to derive built-in variable defaults.
package hostinfo

import (
	"context"
	"net"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
)

// CPUCount returns the number of logical CPUs available, used as the
// default concurrency cap when the job does not set one explicitly. It
// falls back to 1 if the host facts cannot be read.
func CPUCount() int {
	counts, err := cpu.CountsWithContext(context.Background(), true)
	if err != nil || counts < 1 {
		return 1
	}
	return counts
}

// Hostname returns the host's short name, falling back to "localhost".
func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

// FQDN attempts to resolve the host's fully-qualified domain name via
// DNS, falling back to the short hostname if it cannot be resolved.
func FQDN() string {
	short := Hostname()
	addrs, err := net.LookupHost(short)
	if err != nil || len(addrs) == 0 {
		return short
	}
	names, err := net.LookupAddr(addrs[0])
	if err != nil || len(names) == 0 {
		return short
	}
	fqdn := names[0]
	for len(fqdn) > 0 && fqdn[len(fqdn)-1] == '.' {
		fqdn = fqdn[:len(fqdn)-1]
	}
	if fqdn == "" {
		return short
	}
	return fqdn
}
