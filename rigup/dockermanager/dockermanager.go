package dockermanager

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	cm "github.com/steelcutops/rigup/rigup/commandmanager"
	"github.com/steelcutops/rigup/rigup/config"
	"github.com/steelcutops/rigup/rigup/remote"
)

const scriptPath = "/tmp/get-docker.sh"

// Manager installs the container runtime via the vendor convenience
// script.
type Manager struct {
	Fs     afero.Fs
	Runner cm.CommandManager
	Log    *logrus.Logger
	Config config.Config
	Fetch  func(url string) ([]byte, error) // defaults to remote.FetchURL
}

func (m *Manager) fetch(url string) ([]byte, error) {
	if m.Fetch != nil {
		return m.Fetch(url)
	}
	return remote.FetchURL(url)
}

// Install fetches and runs the vendor install script. The vendor script is
// not trusted to be rerun-safe, so an existing docker binary short-circuits
// the stage.
func (m *Manager) Install(ctx context.Context) error {
	if _, err := m.Runner.Run(ctx, cm.CommandConfig{
		Command: "docker",
		Args:    []string{"--version"},
	}); err == nil {
		m.Log.Info("docker already installed; skipping")
		return nil
	}

	script, err := m.fetch(m.Config.DockerScriptURL)
	if err != nil {
		return fmt.Errorf("fetch install script: %w", err)
	}
	if err := afero.WriteFile(m.Fs, scriptPath, script, 0755); err != nil {
		return fmt.Errorf("stage install script: %w", err)
	}

	if _, err := m.Runner.Run(ctx, cm.CommandConfig{
		Command: "sh",
		Args:    []string{scriptPath},
	}); err != nil {
		return fmt.Errorf("run install script: %w", err)
	}

	m.Log.Info("docker installed")
	return nil
}
