package storagemanager

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steelcutops/rigup/logger"
	cm "github.com/steelcutops/rigup/rigup/commandmanager"
	"github.com/steelcutops/rigup/rigup/config"
)

// fakeRunner records composed command lines and serves scripted results.
type fakeRunner struct {
	calls    []string
	failures map[string]error
	outputs  map[string]string
}

func (f *fakeRunner) Run(ctx context.Context, cfg cm.CommandConfig) (cm.CommandResult, error) {
	line := strings.TrimSpace(cfg.Command + " " + strings.Join(cfg.Args, " "))
	f.calls = append(f.calls, line)
	if err, ok := f.failures[line]; ok {
		return cm.CommandResult{ExitCode: 1, STDERR: "scripted failure"}, err
	}
	return cm.CommandResult{STDOUT: f.outputs[line]}, nil
}

func newManager(runner *fakeRunner) (*Manager, afero.Fs) {
	fs := afero.NewMemMapFs()
	return &Manager{
		Fs:     fs,
		Runner: runner,
		Log:    logger.Discard(),
		Config: config.Default(),
	}, fs
}

func TestActivateVolumeGroups(t *testing.T) {
	runner := &fakeRunner{}
	m, _ := newManager(runner)

	require.NoError(t, m.ActivateVolumeGroups(context.Background()))
	assert.Equal(t, []string{"vgscan", "vgchange -ay"}, runner.calls)
}

func TestActivateVolumeGroupsFailure(t *testing.T) {
	runner := &fakeRunner{failures: map[string]error{"vgscan": assert.AnError}}
	m, _ := newManager(runner)

	assert.Error(t, m.ActivateVolumeGroups(context.Background()))
}

func TestMapVolumesScenario(t *testing.T) {
	m, fs := newManager(&fakeRunner{})
	for _, lv := range []string{"lvol0", "data1", "backup2"} {
		require.NoError(t, afero.WriteFile(fs, "/dev/VG0/"+lv, nil, 0600))
	}

	require.NoError(t, m.MapVolumes(context.Background()))

	table, err := LoadTable(fs, "/etc/fstab")
	require.NoError(t, err)

	assert.True(t, table.HasDevice("/dev/VG0/data1"))
	assert.True(t, table.HasDevice("/dev/VG0/backup2"))
	assert.True(t, table.HasDevice("/dev/lvm0/home"))
	assert.False(t, table.HasDevice("/dev/VG0/lvol0"))
	assert.Len(t, table.Entries(), 3)

	for _, dir := range []string{"/srv/data1", "/srv/backup2"} {
		exists, err := afero.DirExists(fs, dir)
		require.NoError(t, err)
		assert.True(t, exists, dir)
	}
	exists, err := afero.DirExists(fs, "/srv/lvol0")
	require.NoError(t, err)
	assert.False(t, exists, "reserved volume must not get a mount directory")
}

func TestMapVolumesSkipsExistingDevice(t *testing.T) {
	m, fs := newManager(&fakeRunner{})
	require.NoError(t, afero.WriteFile(fs, "/dev/VG0/data1", nil, 0600))
	existing := "/dev/VG0/data1 /srv/data1 ext4 noatime 0 2\n"
	require.NoError(t, afero.WriteFile(fs, "/etc/fstab", []byte(existing), 0644))

	require.NoError(t, m.MapVolumes(context.Background()))

	table, err := LoadTable(fs, "/etc/fstab")
	require.NoError(t, err)
	var count int
	for _, e := range table.Entries() {
		if e.Device == "/dev/VG0/data1" {
			count++
		}
	}
	assert.Equal(t, 1, count, "existing mapping must not be duplicated")
	// The pre-existing line keeps its options.
	data, _ := afero.ReadFile(fs, "/etc/fstab")
	assert.Contains(t, string(data), "noatime")
}

func TestMapVolumesIgnoresCoincidentalSubstring(t *testing.T) {
	// An unrelated line that merely contains the text "/home" no longer
	// suppresses the home mapping; only a matching device field does.
	m, fs := newManager(&fakeRunner{})
	require.NoError(t, fs.MkdirAll("/dev/VG0", 0755))
	existing := "/dev/sda1 /mnt/home-archive ext4 defaults 0 2\n"
	require.NoError(t, afero.WriteFile(fs, "/etc/fstab", []byte(existing), 0644))

	require.NoError(t, m.MapVolumes(context.Background()))

	table, err := LoadTable(fs, "/etc/fstab")
	require.NoError(t, err)
	assert.True(t, table.HasDevice("/dev/lvm0/home"))
}

func TestMapVolumesMissingGroupDir(t *testing.T) {
	m, _ := newManager(&fakeRunner{})
	assert.Error(t, m.MapVolumes(context.Background()))
}

func TestEnforceMountsFailureStopsBeforeVerification(t *testing.T) {
	runner := &fakeRunner{failures: map[string]error{"mount -a": assert.AnError}}
	m, _ := newManager(runner)

	err := m.EnforceMounts(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"mount -a"}, runner.calls, "verification must not run after a failed mount")
}

func TestEnforceMountsHomeNotAMountPoint(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"findmnt --noheadings --output TARGET --target /home": "/\n",
	}}
	m, _ := newManager(runner)

	err := m.EnforceMounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a mount point")
}

func TestEnforceMountsOK(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"findmnt --noheadings --output TARGET --target /home": "/home\n",
	}}
	m, _ := newManager(runner)

	assert.NoError(t, m.EnforceMounts(context.Background()))
}
