package cluster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// hostsFile is the on-disk shape of a standalone hosts file: a top-level
// hosts list plus the primary-cluster ordering.
type hostsFile struct {
	Hosts     []HostConfig `yaml:"hosts"`
	Primaries []string     `yaml:"primaries"`
}

// LoadHostsFile reads host definitions from a dedicated YAML file, for
// deployments that keep database credentials out of the main config.
func LoadHostsFile(path string) ([]HostConfig, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read hosts file: %w", err)
	}
	return ParseHosts(data)
}

// ParseHosts decodes YAML host definitions and validates each driver.
func ParseHosts(data []byte) ([]HostConfig, []string, error) {
	var f hostsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse hosts file: %w", err)
	}
	for i, h := range f.Hosts {
		if h.Host == "" {
			return nil, nil, fmt.Errorf("hosts[%d]: host is required", i)
		}
		if _, err := DialectFor(h.Driver); err != nil {
			return nil, nil, fmt.Errorf("hosts[%d]: %w", i, err)
		}
	}
	return f.Hosts, f.Primaries, nil
}
