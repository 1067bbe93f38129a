package alarm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemdInstallerReplacesUnit(t *testing.T) {
	var commands [][]string
	installer := NewSystemdInstaller("sleepwake", map[TriggerKind][]string{
		TriggerWake: {"/usr/local/bin/sleepwake-fade", "-alarm"},
	}, discardLogger())
	installer.run = func(ctx context.Context, name string, args ...string) error {
		commands = append(commands, append([]string{name}, args...))
		return nil
	}

	at := time.Date(2025, 11, 29, 7, 30, 0, 0, time.Local)
	require.NoError(t, installer.Install(context.Background(), TriggerWake, at))

	require.Len(t, commands, 2)
	assert.Equal(t, []string{"systemctl", "stop", "sleepwake-wake.timer"}, commands[0])

	runCmd := strings.Join(commands[1], " ")
	assert.Contains(t, runCmd, "systemd-run")
	assert.Contains(t, runCmd, "--unit=sleepwake-wake")
	assert.Contains(t, runCmd, "--on-calendar=2025-11-29 07:30:00")
	assert.Contains(t, runCmd, "/usr/local/bin/sleepwake-fade -alarm")
}

func TestSystemdInstallerPrivilegedFailure(t *testing.T) {
	installer := NewSystemdInstaller("sleepwake", map[TriggerKind][]string{
		TriggerWake: {"true"},
	}, discardLogger())
	installer.run = func(ctx context.Context, name string, args ...string) error {
		if name == "systemd-run" {
			return assert.AnError
		}
		return nil
	}

	err := installer.Install(context.Background(), TriggerWake, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "privileged")
}

func TestSystemdInstallerUnknownKind(t *testing.T) {
	installer := NewSystemdInstaller("sleepwake", nil, discardLogger())
	err := installer.Install(context.Background(), TriggerPreWake, time.Now())
	assert.Error(t, err)
}

func TestMemoryInstallerReplaceSemantics(t *testing.T) {
	installer := NewMemoryInstaller()

	first := time.Now().Add(time.Hour)
	second := first.Add(30 * time.Minute)

	require.NoError(t, installer.Install(context.Background(), TriggerWake, first))
	require.NoError(t, installer.Install(context.Background(), TriggerWake, second))

	at, ok := installer.Installed(TriggerWake)
	require.True(t, ok)
	assert.Equal(t, second, at)
	assert.Equal(t, 2, installer.Installs())
}
