package usermanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	cm "github.com/steelcutops/rigup/rigup/commandmanager"
	"github.com/steelcutops/rigup/rigup/config"
	"github.com/steelcutops/rigup/rigup/remote"
)

// User represents an individual user account on the system.
type User struct {
	Username string
	UID      int
	GID      int
	Comment  string
	HomeDir  string
	Shell    string
}

// Manager provisions the primary user's home directory and group
// memberships. The account itself must already exist; this never creates
// users.
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

// PrimaryUser resolves the account at the configured UID via getent.
func (m *Manager) PrimaryUser(ctx context.Context) (User, error) {
	output, err := m.Runner.Run(ctx, cm.CommandConfig{
		Command: "getent",
		Args:    []string{"passwd", strconv.Itoa(m.Config.PrimaryUID)},
	})
	if err != nil {
		return User{}, fmt.Errorf("look up uid %d: %w", m.Config.PrimaryUID, err)
	}

	parts := strings.Split(strings.TrimSpace(output.STDOUT), ":")
	if len(parts) < 7 {
		return User{}, errors.New("unexpected passwd entry format")
	}

	uid, _ := strconv.Atoi(parts[2])
	gid, _ := strconv.Atoi(parts[3])

	return User{
		Username: parts[0],
		UID:      uid,
		GID:      gid,
		Comment:  parts[4],
		HomeDir:  parts[5],
		Shell:    parts[6],
	}, nil
}

// BootstrapHome ensures the user's home directory exists and is owned and
// configured for daily use: skeleton population on first creation, a
// known-good shell configuration, recursive ownership, group memberships.
func (m *Manager) BootstrapHome(ctx context.Context, user User) error {
	exists, err := afero.DirExists(m.Fs, user.HomeDir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", user.HomeDir, err)
	}
	if !exists {
		if err := m.Fs.MkdirAll(user.HomeDir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", user.HomeDir, err)
		}
		if err := m.copySkeleton(user.HomeDir); err != nil {
			return err
		}
		m.Log.WithField("home", user.HomeDir).Info("populated home from skeleton")
	} else {
		// Existence is the only guard. A home that exists but never got
		// its skeleton (prior crash between mkdir and copy) stays as-is;
		// repairing it would overwrite user files on every rerun.
		m.Log.WithField("home", user.HomeDir).Debug("home already exists; skeleton untouched")
	}

	m.installBashrc(user)

	if _, err := m.Runner.Run(ctx, cm.CommandConfig{
		Command: "chown",
		Args:    []string{"-R", fmt.Sprintf("%d:%d", user.UID, user.GID), user.HomeDir},
	}); err != nil {
		return fmt.Errorf("chown %s: %w", user.HomeDir, err)
	}

	for _, group := range m.Config.Groups {
		if err := m.ensureGroupMembership(ctx, user.Username, group); err != nil {
			return err
		}
	}

	return nil
}

// installBashrc fetches the canonical shell configuration and overwrites
// the user's copy. A fetch failure is logged and swallowed: a stale or
// missing bashrc must never block a baseline-usable machine.
func (m *Manager) installBashrc(user User) {
	data, err := m.fetch(m.Config.BashrcURL)
	if err != nil {
		m.Log.WithError(err).Warn("bashrc fetch failed; keeping whatever is in place")
		return
	}
	target := filepath.Join(user.HomeDir, ".bashrc")
	if err := afero.WriteFile(m.Fs, target, data, 0644); err != nil {
		m.Log.WithError(err).Warn("bashrc write failed; keeping whatever is in place")
		return
	}
	m.Log.WithField("path", target).Info("installed shell configuration")
}

func (m *Manager) copySkeleton(home string) error {
	skel := m.Config.SkelDir
	return afero.Walk(m.Fs, skel, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", skel, err)
		}
		rel, err := filepath.Rel(skel, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(home, rel)
		if info.IsDir() {
			return m.Fs.MkdirAll(target, info.Mode().Perm())
		}
		data, err := afero.ReadFile(m.Fs, path)
		if err != nil {
			return fmt.Errorf("read skeleton file %s: %w", path, err)
		}
		return afero.WriteFile(m.Fs, target, data, info.Mode().Perm())
	})
}

// ensureGroupMembership creates the group if it is missing and appends the
// user to it.
func (m *Manager) ensureGroupMembership(ctx context.Context, username, group string) error {
	if _, err := m.Runner.Run(ctx, cm.CommandConfig{
		Command: "getent",
		Args:    []string{"group", group},
	}); err != nil {
		if _, err := m.Runner.Run(ctx, cm.CommandConfig{
			Command: "groupadd",
			Args:    []string{group},
		}); err != nil {
			return fmt.Errorf("create group %s: %w", group, err)
		}
		m.Log.WithField("group", group).Info("created group")
	}

	if _, err := m.Runner.Run(ctx, cm.CommandConfig{
		Command: "usermod",
		Args:    []string{"-aG", group, username},
	}); err != nil {
		return fmt.Errorf("add %s to group %s: %w", username, group, err)
	}
	return nil
}
