package repomanager

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	cm "github.com/steelcutops/rigup/rigup/commandmanager"
	"github.com/steelcutops/rigup/rigup/config"
	"github.com/steelcutops/rigup/rigup/manifest"
	"github.com/steelcutops/rigup/rigup/remote"
)

// Manager rewrites the APT source definitions, installs vendor signing
// keys, and enables the foreign architecture. Everything here is fatal:
// a half-configured package surface poisons every later stage.
type Manager struct {
	Fs       afero.Fs
	Runner   cm.CommandManager
	Log      *logrus.Logger
	Config   config.Config
	Manifest manifest.Manifest
	Fetch    func(url string) ([]byte, error) // defaults to remote.FetchURL
}

func (m *Manager) fetch(url string) ([]byte, error) {
	if m.Fetch != nil {
		return m.Fetch(url)
	}
	return remote.FetchURL(url)
}

// Configure applies the whole repository surface in order: base sources,
// vendor keyrings and source lists, foreign architecture.
func (m *Manager) Configure(ctx context.Context) error {
	if err := m.writeSources(); err != nil {
		return err
	}
	for _, repo := range m.Manifest.Repositories {
		if err := m.installRepository(ctx, repo); err != nil {
			return err
		}
	}
	return m.enableForeignArch(ctx)
}

func (m *Manager) writeSources() error {
	if len(m.Manifest.Sources) == 0 {
		m.Log.Debug("manifest carries no base sources; leaving sources.list alone")
		return nil
	}
	content := strings.Join(m.Manifest.Sources, "\n") + "\n"
	if err := afero.WriteFile(m.Fs, m.Config.AptSourcesPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", m.Config.AptSourcesPath, err)
	}
	m.Log.WithField("path", m.Config.AptSourcesPath).Info("rewrote base sources")
	return nil
}

func (m *Manager) installRepository(ctx context.Context, repo manifest.Repository) error {
	if err := m.Fs.MkdirAll(m.Config.KeyringDir, 0755); err != nil {
		return fmt.Errorf("create keyring dir: %w", err)
	}

	key, err := m.fetch(repo.KeyURL)
	if err != nil {
		return fmt.Errorf("fetch %s signing key: %w", repo.Name, err)
	}

	armored := filepath.Join("/tmp", repo.Name+".asc")
	if err := afero.WriteFile(m.Fs, armored, key, 0644); err != nil {
		return fmt.Errorf("stage %s signing key: %w", repo.Name, err)
	}

	keyring := filepath.Join(m.Config.KeyringDir, repo.Keyring)
	if _, err := m.Runner.Run(ctx, cm.CommandConfig{
		Command: "gpg",
		Args:    []string{"--dearmor", "--yes", "-o", keyring, armored},
	}); err != nil {
		return fmt.Errorf("dearmor %s signing key: %w", repo.Name, err)
	}

	listPath := filepath.Join(filepath.Dir(m.Config.AptSourcesPath), "sources.list.d", repo.Name+".list")
	if err := m.Fs.MkdirAll(filepath.Dir(listPath), 0755); err != nil {
		return fmt.Errorf("create sources.list.d: %w", err)
	}
	if err := afero.WriteFile(m.Fs, listPath, []byte(repo.Line+"\n"), 0644); err != nil {
		return fmt.Errorf("write %s: %w", listPath, err)
	}

	m.Log.WithField("repository", repo.Name).Info("installed vendor repository")
	return nil
}

func (m *Manager) enableForeignArch(ctx context.Context) error {
	if m.Config.ForeignArch == "" {
		return nil
	}
	if _, err := m.Runner.Run(ctx, cm.CommandConfig{
		Command: "dpkg",
		Args:    []string{"--add-architecture", m.Config.ForeignArch},
	}); err != nil {
		return fmt.Errorf("add architecture %s: %w", m.Config.ForeignArch, err)
	}
	m.Log.WithField("arch", m.Config.ForeignArch).Info("enabled foreign architecture")
	return nil
}
