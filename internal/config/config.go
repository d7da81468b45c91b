// Package config parses the optional .sandbox.yaml file at the repo root.
// The file supplements the built-in sandbox setup: environment passthrough,
// extra mounts, and an image tag override.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the config file name looked up at the repo root.
const File = ".sandbox.yaml"

type Config struct {
	// Env lists host environment variables that must be set and are passed
	// through to the container.
	Env    []string `yaml:"env"`
	Mounts Mounts   `yaml:"mounts"`
	Image  Image    `yaml:"image"`
}

type Mounts struct {
	ReadOnly []Entry `yaml:"readonly"`
	// UnsafeWrite mounts propagate container writes back to the host; the
	// name states the risk.
	UnsafeWrite []Entry `yaml:"unsafe-write"`
	Overlay     []Entry `yaml:"overlay"`
}

// Entry is a single extra mount. Host paths expand ~ to the host home and
// resolve relative paths against the repo root; the container path defaults
// to the expanded host path.
type Entry struct {
	Host      string `yaml:"host"`
	Container string `yaml:"container"`
}

type Image struct {
	// Tag, when set, skips the Dockerfile build entirely and uses a
	// pre-built image.
	Tag string `yaml:"tag"`
}

// Load reads .sandbox.yaml from the repo root. A missing file yields the
// zero config.
func Load(repoRoot string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(repoRoot, File))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", File, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", File, err)
	}
	return &cfg, nil
}

// ResolveEnv returns name→value pairs for the configured passthrough
// variables, failing on any that are unset on the host.
func (c *Config) ResolveEnv() (map[string]string, error) {
	env := make(map[string]string, len(c.Env))
	for _, name := range c.Env {
		v, ok := os.LookupEnv(name)
		if !ok {
			return nil, fmt.Errorf("environment variable %s is required by %s but not set", name, File)
		}
		env[name] = v
	}
	return env, nil
}

// ExpandHost expands a config host path: ~ to home, relative against the
// repo root.
func ExpandHost(path, repoRoot, home string) string {
	switch {
	case path == "~":
		return home
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(home, path[2:])
	case filepath.IsAbs(path):
		return filepath.Clean(path)
	default:
		return filepath.Join(repoRoot, path)
	}
}

// ExpandContainer resolves an entry's container path, defaulting to the
// expanded host path. ~ refers to the container user's home.
func ExpandContainer(e Entry, repoRoot, home, containerHome string) string {
	if e.Container == "" {
		return ExpandHost(e.Host, repoRoot, home)
	}
	switch {
	case e.Container == "~":
		return containerHome
	case strings.HasPrefix(e.Container, "~/"):
		return filepath.Join(containerHome, e.Container[2:])
	default:
		return filepath.Clean(e.Container)
	}
}
