package main

import (
	"encoding/json"
	"fmt"

	"github.com/swarmie-robotics/abridge/internal/fsutil"
)

// defaultFleetPath is where the fleet config is looked up when --fleet is
// not given.
const defaultFleetPath = "fleet.json"

// Rover is one fleet config entry.
type Rover struct {
	Name    string `json:"name"`
	Host    string `json:"host"`
	SSHUser string `json:"ssh_user,omitempty"`
	SSHKey  string `json:"ssh_key,omitempty"`
	APIPort int    `json:"api_port,omitempty"`
	Device  string `json:"device,omitempty"`
}

// FleetConfig lists the rovers abridge-deploy can address by name.
type FleetConfig struct {
	Rovers []Rover `json:"rovers"`
}

// LoadFleetConfig reads and validates a fleet config file.
func LoadFleetConfig(fsys fsutil.FileSystem, path string) (*FleetConfig, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg FleetConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid fleet config %s: %w", path, err)
	}
	return &cfg, nil
}

// Rover looks up a fleet entry by name.
func (c *FleetConfig) Rover(name string) (Rover, bool) {
	for _, r := range c.Rovers {
		if r.Name == name {
			return r, true
		}
	}
	return Rover{}, false
}

func (c *FleetConfig) validate() error {
	if len(c.Rovers) == 0 {
		return fmt.Errorf("no rovers defined")
	}
	seen := make(map[string]bool, len(c.Rovers))
	for i, r := range c.Rovers {
		if r.Name == "" {
			return fmt.Errorf("rover %d has no name", i)
		}
		if r.Host == "" {
			return fmt.Errorf("rover %q has no host", r.Name)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate rover name %q", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}
