package storagemanager

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	cm "github.com/steelcutops/rigup/rigup/commandmanager"
	"github.com/steelcutops/rigup/rigup/config"
)

// ReservedVolume is never mapped under the srv root. The name is an
// administrative reservation inherited from the machine archetype; it is
// deliberately a single constant, not a configurable list.
const ReservedVolume = "lvol0"

const homeMountPoint = "/home"

// Manager owns the storage bootstrap: volume group activation, logical
// volume to mount point mapping, and mount enforcement. A misconfigured
// mount can brick the machine, so every step here is fatal to the run.
type Manager struct {
	Fs     afero.Fs
	Runner cm.CommandManager
	Log    *logrus.Logger
	Config config.Config
}

// ActivateVolumeGroups scans for volume groups and activates them all,
// making the logical volume device nodes appear under /dev/<group>/.
func (m *Manager) ActivateVolumeGroups(ctx context.Context) error {
	if _, err := m.Runner.Run(ctx, cm.CommandConfig{Command: "vgscan"}); err != nil {
		return fmt.Errorf("vgscan: %w", err)
	}
	if _, err := m.Runner.Run(ctx, cm.CommandConfig{Command: "vgchange", Args: []string{"-ay"}}); err != nil {
		return fmt.Errorf("vgchange -ay: %w", err)
	}
	return nil
}

// MapVolumes enumerates the logical volumes of the srv volume group and
// ensures each has a mount directory and an fstab record, then ensures the
// singular /home mapping. Enumeration order is whatever the directory
// listing yields; nothing here depends on it.
func (m *Manager) MapVolumes(ctx context.Context) error {
	groupDir := filepath.Join("/dev", m.Config.SrvVolumeGroup)

	infos, err := afero.ReadDir(m.Fs, groupDir)
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", groupDir, err)
	}

	table, err := LoadTable(m.Fs, m.Config.FstabPath)
	if err != nil {
		return err
	}

	for _, info := range infos {
		name := info.Name()
		if name == ReservedVolume {
			m.Log.WithField("volume", name).Info("skipping reserved volume")
			continue
		}

		device := filepath.Join(groupDir, name)
		target := filepath.Join(m.Config.SrvRoot, name)

		if err := m.Fs.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("create mount directory %s: %w", target, err)
		}

		if table.HasDevice(device) {
			m.Log.WithField("device", device).Debug("fstab record already present")
			continue
		}
		table.Append(Entry{Device: device, MountPoint: target, Type: "auto", Options: "defaults", Freq: 0, PassNo: 2})
		m.Log.WithFields(logrus.Fields{"device": device, "target": target}).Info("mapped logical volume")
	}

	if !table.HasDevice(m.Config.HomeDevice) {
		table.Append(Entry{Device: m.Config.HomeDevice, MountPoint: homeMountPoint, Type: "auto", Options: "defaults", Freq: 0, PassNo: 2})
		m.Log.WithField("device", m.Config.HomeDevice).Info("mapped home volume")
	}

	return table.Save(m.Fs, m.Config.FstabPath)
}

// EnforceMounts mounts everything the mount table describes and then
// independently verifies that /home is a real mount point, not just a
// directory. The verification guards against a run where the /home mapping
// was skipped while everything else mounted cleanly; continuing past that
// would write user data onto the root volume.
func (m *Manager) EnforceMounts(ctx context.Context) error {
	result, err := m.Runner.Run(ctx, cm.CommandConfig{Command: "mount", Args: []string{"-a"}})
	if err != nil {
		return fmt.Errorf("mount -a failed: %w: %s", err, strings.TrimSpace(result.STDERR))
	}

	result, err = m.Runner.Run(ctx, cm.CommandConfig{
		Command: "findmnt",
		Args:    []string{"--noheadings", "--output", "TARGET", "--target", homeMountPoint},
	})
	if err != nil {
		return fmt.Errorf("verify %s mount: %w", homeMountPoint, err)
	}
	if strings.TrimSpace(result.STDOUT) != homeMountPoint {
		return fmt.Errorf("%s is not a mount point", homeMountPoint)
	}

	return nil
}
