// SPDX-License-Identifier: MIT

package artifact

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config carries optional overrides for artifact sources, read from a YAML
// file. The zero value changes nothing.
type Config struct {
	// Mirror replaces the Debian CD mirror directory the installer image
	// and its checksum manifest are fetched from.
	Mirror string `yaml:"mirror"`
	// Keyserver replaces the default keyserver used to import the
	// signing key.
	Keyserver string `yaml:"keyserver"`
	// Artifacts overrides the direct URL of fixed-name artifacts,
	// keyed by logical name.
	Artifacts map[string]ArtifactConfig `yaml:"artifacts"`
}

// ArtifactConfig is a per-artifact override.
type ArtifactConfig struct {
	URL string `yaml:"url"`
}

// LoadConfig reads a mirror configuration file. An empty path returns the
// zero config.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Mirror != "" && !strings.HasSuffix(cfg.Mirror, "/") {
		cfg.Mirror += "/"
	}

	return cfg, nil
}

// Apply rewrites the artifact's URLs according to the config.
func (c Config) Apply(a *Artifact) {
	if c.Mirror != "" && a.BaseURL != "" {
		a.BaseURL = c.Mirror
		if a.ChecksumURL != "" {
			a.ChecksumURL = c.Mirror + "SHA512SUMS"
		}
		if a.SignatureURL != "" {
			a.SignatureURL = c.Mirror + "SHA512SUMS.sign"
		}
	}

	if override, exists := c.Artifacts[a.Name]; exists && override.URL != "" {
		a.URL = override.URL
	}
}

// KeyserverOrDefault returns the configured keyserver, falling back to the
// default one.
func (c Config) KeyserverOrDefault() string {
	if c.Keyserver != "" {
		return c.Keyserver
	}

	return DefaultKeyserver
}
