// SPDX-License-Identifier: MIT

package artifact_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udib-project/udib/internal/artifact"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "udib.yaml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		cfg, err := artifact.LoadConfig("")
		require.NoError(t, err)
		assert.Empty(t, cfg.Mirror)
		assert.Equal(t, artifact.DefaultKeyserver, cfg.KeyserverOrDefault())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := artifact.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "mirror: [")
		_, err := artifact.LoadConfig(path)
		require.Error(t, err)
	})

	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
mirror: https://mirror.example.org/debian-cd/current/amd64/iso-cd
keyserver: keys.example.org
artifacts:
  preseed-file-basic:
    url: https://mirror.example.org/preseed/basic.txt
`)

		cfg, err := artifact.LoadConfig(path)
		require.NoError(t, err)

		// A missing trailing slash is added so URL joining works.
		assert.Equal(t,
			"https://mirror.example.org/debian-cd/current/amd64/iso-cd/",
			cfg.Mirror)
		assert.Equal(t, "keys.example.org", cfg.KeyserverOrDefault())
	})
}

func TestConfigApply(t *testing.T) {
	cfg := artifact.Config{
		Mirror: "https://mirror.example.org/iso-cd/",
		Artifacts: map[string]artifact.ArtifactConfig{
			artifact.NamePreseedBasic: {
				URL: "https://mirror.example.org/preseed.txt",
			},
		},
	}

	t.Run("mirror rewrites iso URLs", func(t *testing.T) {
		art, err := artifact.Lookup(artifact.NameISO)
		require.NoError(t, err)

		cfg.Apply(&art)

		assert.Equal(t, "https://mirror.example.org/iso-cd/", art.BaseURL)
		assert.Equal(t,
			"https://mirror.example.org/iso-cd/SHA512SUMS", art.ChecksumURL)
		assert.Equal(t,
			"https://mirror.example.org/iso-cd/SHA512SUMS.sign",
			art.SignatureURL)
	})

	t.Run("url override for fixed-name artifact", func(t *testing.T) {
		art, err := artifact.Lookup(artifact.NamePreseedBasic)
		require.NoError(t, err)

		cfg.Apply(&art)

		assert.Equal(t, "https://mirror.example.org/preseed.txt", art.URL)
	})

	t.Run("zero config changes nothing", func(t *testing.T) {
		art, err := artifact.Lookup(artifact.NameISO)
		require.NoError(t, err)

		unmodified := art

		artifact.Config{}.Apply(&art)

		assert.Equal(t, unmodified, art)
	})
}
