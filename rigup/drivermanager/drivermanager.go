package drivermanager

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	cm "github.com/steelcutops/rigup/rigup/commandmanager"
	"github.com/steelcutops/rigup/rigup/config"
	"github.com/steelcutops/rigup/rigup/remote"
)

const blacklistPath = "/etc/modprobe.d/blacklist-nouveau.conf"

const blacklistContent = "blacklist nouveau\noptions nouveau modeset=0\n"

var versionPattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// Manager downloads and runs the vendor GPU driver installer. This is the
// one tolerated stage of the pipeline: a workstation without the
// proprietary driver is still baseline-usable, so every failure here is
// reported to the sequencer and absorbed by policy.
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

// Detect reports whether an NVIDIA device is present on the PCI bus.
func (m *Manager) Detect(ctx context.Context) (bool, error) {
	result, err := m.Runner.Run(ctx, cm.CommandConfig{Command: "lspci"})
	if err != nil {
		return false, fmt.Errorf("lspci: %w", err)
	}
	return strings.Contains(strings.ToLower(result.STDOUT), "nvidia"), nil
}

// Install resolves the latest driver version from the vendor listing,
// downloads the matching installer, blacklists the in-tree module and runs
// the installer silently.
func (m *Manager) Install(ctx context.Context) error {
	listing, err := m.fetch(m.Config.DriverIndexURL)
	if err != nil {
		return fmt.Errorf("fetch driver listing: %w", err)
	}

	version, err := LatestVersion(string(listing))
	if err != nil {
		return err
	}
	m.Log.WithField("version", version).Info("resolved driver version")

	url := fmt.Sprintf(m.Config.DriverDownloadTemplate, version, version)
	installer, err := m.fetch(url)
	if err != nil {
		return fmt.Errorf("download driver installer: %w", err)
	}

	runPath := fmt.Sprintf("/tmp/NVIDIA-Linux-x86_64-%s.run", version)
	if err := afero.WriteFile(m.Fs, runPath, installer, 0755); err != nil {
		return fmt.Errorf("stage driver installer: %w", err)
	}

	if err := afero.WriteFile(m.Fs, blacklistPath, []byte(blacklistContent), 0644); err != nil {
		return fmt.Errorf("write nouveau blacklist: %w", err)
	}

	if _, err := m.Runner.Run(ctx, cm.CommandConfig{
		Command: runPath,
		Args:    []string{"--silent", "--no-questions"},
	}); err != nil {
		return fmt.Errorf("run driver installer: %w", err)
	}

	m.Log.Info("driver installed")
	return nil
}

// LatestVersion extracts the version string from the vendor listing. The
// listing's first line is "<version> <installer name>".
func LatestVersion(listing string) (string, error) {
	line := listing
	if i := strings.IndexByte(line, '\n'); i != -1 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 || !versionPattern.MatchString(fields[0]) {
		return "", fmt.Errorf("no driver version in listing %q", line)
	}
	return fields[0], nil
}
