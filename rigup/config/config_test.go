package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "VG0", c.SrvVolumeGroup)
	assert.Equal(t, "/dev/lvm0/home", c.HomeDevice)
	assert.Equal(t, 1000, c.PrimaryUID)
	assert.Equal(t, []string{"sudo", "dialout", "docker"}, c.Groups)
	assert.Equal(t, "/etc/fstab", c.FstabPath)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	c, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadOverrides(t *testing.T) {
	fs := afero.NewMemMapFs()
	ini := `[storage]
volume_group = tank
fstab = /tmp/fstab

[user]
uid = 1001
groups = sudo, video

[log]
path = /tmp/rigup.log
`
	require.NoError(t, afero.WriteFile(fs, "/etc/rigup.ini", []byte(ini), 0644))

	c, err := Load(fs, "/etc/rigup.ini")
	require.NoError(t, err)

	assert.Equal(t, "tank", c.SrvVolumeGroup)
	assert.Equal(t, "/tmp/fstab", c.FstabPath)
	assert.Equal(t, 1001, c.PrimaryUID)
	assert.Equal(t, []string{"sudo", "video"}, c.Groups)
	assert.Equal(t, "/tmp/rigup.log", c.LogPath)
	// Untouched keys keep their defaults.
	assert.Equal(t, "/dev/lvm0/home", c.HomeDevice)
	assert.Equal(t, "i386", c.ForeignArch)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nope.ini")
	assert.Error(t, err)
}
