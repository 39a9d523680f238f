package main

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManifestDefault(t *testing.T) {
	m, err := loadManifest(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, m.Packages)
}

func TestLoadManifestOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := "packages:\n  - vim\n"
	require.NoError(t, afero.WriteFile(fs, "/tmp/m.yaml", []byte(doc), 0644))

	m, err := loadManifest(fs, "/tmp/m.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"vim"}, m.Packages)
}

func TestLoadManifestMissingOverride(t *testing.T) {
	_, err := loadManifest(afero.NewMemMapFs(), "/tmp/absent.yaml")
	assert.Error(t, err)
}
