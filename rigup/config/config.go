package config

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/ini.v1"
)

// Config captures everything about the target machine that a stage needs to
// know. It is constructed once in main and passed by value; stages never see
// ambient globals or environment variables.
type Config struct {
	// Storage layout.
	SrvVolumeGroup string // volume group whose LVs are mapped under SrvRoot
	HomeDevice     string // device mapped to /home, independent of the group scan
	SrvRoot        string
	FstabPath      string

	// Primary user.
	PrimaryUID int
	Groups     []string
	SkelDir    string
	BashrcURL  string

	// APT surface.
	AptSourcesPath string
	KeyringDir     string
	ForeignArch    string

	// Vendor installers.
	DriverIndexURL         string
	DriverDownloadTemplate string // fmt template taking the version string twice
	DockerScriptURL        string

	LogPath string
}

// Default returns the configuration for the one machine archetype this tool
// targets: a Debian workstation with volume groups VG0 (data) and lvm0
// (home), primary user at UID 1000.
func Default() Config {
	return Config{
		SrvVolumeGroup: "VG0",
		HomeDevice:     "/dev/lvm0/home",
		SrvRoot:        "/srv",
		FstabPath:      "/etc/fstab",

		PrimaryUID: 1000,
		Groups:     []string{"sudo", "dialout", "docker"},
		SkelDir:    "/etc/skel",
		BashrcURL:  "https://raw.githubusercontent.com/steelcutops/rigup/master/dotfiles/bashrc",

		AptSourcesPath: "/etc/apt/sources.list",
		KeyringDir:     "/etc/apt/keyrings",
		ForeignArch:    "i386",

		DriverIndexURL:         "https://download.nvidia.com/XFree86/Linux-x86_64/latest.txt",
		DriverDownloadTemplate: "https://download.nvidia.com/XFree86/Linux-x86_64/%s/NVIDIA-Linux-x86_64-%s.run",
		DockerScriptURL:        "https://get.docker.com",

		LogPath: "/var/log/rigup.log",
	}
}

// Load merges an optional INI override file over the defaults. An empty path
// returns the defaults unchanged.
func Load(fsys afero.Fs, path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	f, err := ini.Load(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	storage := f.Section("storage")
	c.SrvVolumeGroup = storage.Key("volume_group").MustString(c.SrvVolumeGroup)
	c.HomeDevice = storage.Key("home_device").MustString(c.HomeDevice)
	c.SrvRoot = storage.Key("srv_root").MustString(c.SrvRoot)
	c.FstabPath = storage.Key("fstab").MustString(c.FstabPath)

	user := f.Section("user")
	c.PrimaryUID = user.Key("uid").MustInt(c.PrimaryUID)
	if raw := user.Key("groups").String(); raw != "" {
		c.Groups = splitList(raw)
	}
	c.SkelDir = user.Key("skel").MustString(c.SkelDir)
	c.BashrcURL = user.Key("bashrc_url").MustString(c.BashrcURL)

	apt := f.Section("apt")
	c.AptSourcesPath = apt.Key("sources").MustString(c.AptSourcesPath)
	c.KeyringDir = apt.Key("keyring_dir").MustString(c.KeyringDir)
	c.ForeignArch = apt.Key("foreign_arch").MustString(c.ForeignArch)

	driver := f.Section("driver")
	c.DriverIndexURL = driver.Key("index_url").MustString(c.DriverIndexURL)
	c.DriverDownloadTemplate = driver.Key("download_template").MustString(c.DriverDownloadTemplate)

	c.DockerScriptURL = f.Section("docker").Key("script_url").MustString(c.DockerScriptURL)
	c.LogPath = f.Section("log").Key("path").MustString(c.LogPath)

	return c, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
