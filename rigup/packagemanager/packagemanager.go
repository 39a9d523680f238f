package packagemanager

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	cm "github.com/steelcutops/rigup/rigup/commandmanager"
)

var aptOptions = []string{
	"-y",
	"-o", "Dpkg::Options::=--force-confdef",
	"-o", "Dpkg::Options::=--force-confold",
}

// Manager drives apt-get noninteractively.
type Manager struct {
	Runner cm.CommandManager
	Log    *logrus.Logger
}

// Update refreshes the package index.
func (m *Manager) Update(ctx context.Context) error {
	if _, err := m.Runner.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Args:    []string{"update"},
	}); err != nil {
		return fmt.Errorf("apt-get update: %w", err)
	}
	return nil
}

// Install installs the whole package list in a single transaction so apt
// can resolve the dependency set once.
func (m *Manager) Install(ctx context.Context, packages []string) error {
	if len(packages) == 0 {
		return nil
	}

	args := append([]string{"install"}, aptOptions...)
	args = append(args, packages...)

	m.Log.WithField("count", len(packages)).Info("installing packages")
	if _, err := m.Runner.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Env:     []string{"DEBIAN_FRONTEND=noninteractive"},
		Args:    args,
	}); err != nil {
		return fmt.Errorf("apt-get install: %w", err)
	}
	return nil
}
