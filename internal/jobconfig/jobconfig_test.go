// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package jobconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper() {
	viper.Reset()
}

func TestResolveRequiresConfigFlag(t *testing.T) {
	resetViper()
	cmd := &cobra.Command{}
	BindFlags(cmd)
	require.NoError(t, cmd.ParseFlags(nil))

	_, err := Resolve()
	require.Error(t, err)
}

func TestResolveAppliesDefaults(t *testing.T) {
	resetViper()
	cmd := &cobra.Command{}
	BindFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--config", "job.json"}))

	f, err := Resolve()

	require.NoError(t, err)
	assert.Equal(t, "job.json", f.ConfigFile)
	assert.Equal(t, "./", f.Path)
	assert.Equal(t, time.Second, f.Delay)
	assert.Equal(t, 900*time.Second, f.RunningDelay)
	assert.True(t, f.Verbose)
	assert.False(t, f.Simulate)
	assert.False(t, f.NoSuccessEmail)
}

func TestResolveClampsRunningDelayToMinimum(t *testing.T) {
	resetViper()
	cmd := &cobra.Command{}
	BindFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--config", "job.json", "--running_delay", "10"}))

	f, err := Resolve()

	require.NoError(t, err)
	assert.Equal(t, minRunningDelay*time.Second, f.RunningDelay)
}

func TestResolveSplitsDisabledList(t *testing.T) {
	resetViper()
	cmd := &cobra.Command{}
	BindFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--config", "job.json", "--disabled", "A, B ,C"}))

	f, err := Resolve()

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, f.Disabled)
}

func TestVariablesReadsExtrasFileAndCLISnippet(t *testing.T) {
	dir := t.TempDir()
	extrasPath := filepath.Join(dir, "extras.json")
	require.NoError(t, os.WriteFile(extrasPath, []byte(`{"db":"prod"}`), 0o644))

	f := &Flags{ExtrasFile: extrasPath, Extras: `{"mail_to":"a@example.com"}`}

	extrasFile, cli, err := f.Variables()

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"db": "prod"}, extrasFile)
	assert.Equal(t, map[string]string{"mail_to": "a@example.com"}, cli)
}

func TestVariablesEmailOverridesMailToFail(t *testing.T) {
	f := &Flags{Email: "oncall@example.com"}

	_, cli, err := f.Variables()

	require.NoError(t, err)
	assert.Equal(t, "oncall@example.com", cli["mail_to_fail"])
}

func TestVariablesWithNoExtrasReturnsNilMaps(t *testing.T) {
	f := &Flags{}

	extrasFile, cli, err := f.Variables()

	require.NoError(t, err)
	assert.Nil(t, extrasFile)
	assert.Nil(t, cli)
}
