package alarm

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// TriggerKind identifies a logical externally installed trigger. Installing a
// kind fully replaces any previous installation of the same kind.
type TriggerKind string

const (
	// TriggerWake fires the alarm-mode wake sequence at the alarm instant.
	TriggerWake TriggerKind = "wake"
	// TriggerPreWake starts the light fade ahead of the alarm.
	TriggerPreWake TriggerKind = "prewake"
)

// Installer installs OS-level time-based triggers. Installation is a
// privileged operation; a failure is fatal to that scheduling attempt only.
type Installer interface {
	Install(ctx context.Context, kind TriggerKind, at time.Time) error
}

// MemoryInstaller records installations in memory. It backs dry runs and
// tests.
type MemoryInstaller struct {
	mu        sync.Mutex
	installed map[TriggerKind]time.Time
	installs  int
}

// NewMemoryInstaller returns an empty MemoryInstaller.
func NewMemoryInstaller() *MemoryInstaller {
	return &MemoryInstaller{installed: make(map[TriggerKind]time.Time)}
}

// Install implements Installer with replace semantics.
func (m *MemoryInstaller) Install(ctx context.Context, kind TriggerKind, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installed[kind] = at
	m.installs++
	return nil
}

// Installed returns the currently installed instant for kind.
func (m *MemoryInstaller) Installed(kind TriggerKind) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.installed[kind]
	return at, ok
}

// Installs reports the total number of Install calls.
func (m *MemoryInstaller) Installs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installs
}

// SystemdInstaller installs transient systemd timer units via systemd-run.
// Each trigger kind maps to a fixed unit name, so reinstalling replaces the
// previous timer instead of stacking a new one.
type SystemdInstaller struct {
	unitPrefix string
	commands   map[TriggerKind][]string
	logger     *slog.Logger

	// run is swappable for tests.
	run func(ctx context.Context, name string, args ...string) error
}

// NewSystemdInstaller constructs an installer. commands maps each kind to the
// command line its timer executes.
func NewSystemdInstaller(unitPrefix string, commands map[TriggerKind][]string, logger *slog.Logger) *SystemdInstaller {
	return &SystemdInstaller{
		unitPrefix: unitPrefix,
		commands:   commands,
		logger:     logger,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Install implements Installer.
func (s *SystemdInstaller) Install(ctx context.Context, kind TriggerKind, at time.Time) error {
	command, ok := s.commands[kind]
	if !ok || len(command) == 0 {
		return eris.Errorf("no command configured for trigger %s", kind)
	}

	unit := s.unitPrefix + "-" + string(kind)

	// Stop any previous incarnation; a missing unit is not an error.
	if err := s.run(ctx, "systemctl", "stop", unit+".timer"); err != nil {
		s.logger.Debug("no previous timer to stop", slog.String("unit", unit))
	}

	args := []string{
		"--unit=" + unit,
		"--collect",
		"--on-calendar=" + at.Format("2006-01-02 15:04:05"),
	}
	args = append(args, command...)

	if err := s.run(ctx, "systemd-run", args...); err != nil {
		return eris.Wrapf(err, "install %s trigger (privileged)", kind)
	}

	s.logger.Info("trigger installed",
		slog.String("kind", string(kind)),
		slog.Time("at", at),
		slog.String("unit", unit),
	)
	return nil
}
