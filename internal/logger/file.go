// Copyright (C) 2024 Yota Hamada
// SPDX-License-Identifier: GPL-3.0-or-later

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LogFileConfig describes where a step or job's transcript log file
// should be created.
type LogFileConfig struct {
	// Prefix is prepended to the generated filename.
	Prefix string
	// LogDir is the root log directory; JobName is appended to it
	// unless JobLogDir overrides the per-job subdirectory.
	LogDir string
	// JobLogDir, if set, is used instead of LogDir/JobName.
	JobLogDir string
	// JobName identifies the job the log belongs to.
	JobName string
	// RequestID is the per-run identifier, included in the filename.
	RequestID string
}

// OpenLogFile prepares the log directory for config and opens a new,
// uniquely-named log file inside it.
func OpenLogFile(config LogFileConfig) (*os.File, error) {
	dir, err := prepareLogDirectory(config)
	if err != nil {
		return nil, fmt.Errorf("prepare log directory: %w", err)
	}
	filename := generateLogFilename(config)
	return openFile(filepath.Join(dir, filename))
}

func prepareLogDirectory(config LogFileConfig) (string, error) {
	dir := config.JobLogDir
	if dir == "" {
		dir = filepath.Join(config.LogDir, sanitizeFilename(config.JobName))
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create directory %q: %w", dir, err)
	}
	return dir, nil
}

func generateLogFilename(config LogFileConfig) string {
	requestID := config.RequestID
	if len(requestID) > 8 {
		requestID = requestID[:8]
	}
	return fmt.Sprintf("%s%s.%s.%s.log",
		config.Prefix,
		sanitizeFilename(config.JobName),
		time.Now().Format("20060102.15:04:05.000"),
		requestID,
	)
}

func sanitizeFilename(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

func openFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return f, nil
}
