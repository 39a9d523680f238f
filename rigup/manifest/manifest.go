package manifest

import (
	_ "embed"
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultManifest []byte

// Repository is a vendor APT repository with its signing key.
type Repository struct {
	Name    string `yaml:"name"`
	KeyURL  string `yaml:"key_url"`
	Keyring string `yaml:"keyring"` // file name under the keyring dir
	Line    string `yaml:"line"`    // deb822-free single source line
}

// Manifest declares what goes onto the machine: the rewritten base source
// lines, vendor repositories, and the package set.
type Manifest struct {
	Sources      []string     `yaml:"sources"`
	Repositories []Repository `yaml:"repositories"`
	Packages     []string     `yaml:"packages"`
}

// Default returns the embedded workstation manifest.
func Default() (Manifest, error) {
	return parse(defaultManifest)
}

// Load reads a manifest override from disk.
func Load(fsys afero.Fs, path string) (Manifest, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Packages) == 0 {
		return Manifest{}, fmt.Errorf("manifest declares no packages")
	}
	return m, nil
}
