package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/swarmie-robotics/abridge/internal/drive"
)

// TuningConfig represents the bridge's tunable parameters. The schema
// matches the /api/config endpoint so the same JSON serves as both the
// startup file format and the runtime view.
type TuningConfig struct {
	// Drive limits and gains
	MaxLinearVel  *float64 `json:"max_linear_vel,omitempty"`  // m/s
	MaxAngularVel *float64 `json:"max_angular_vel,omitempty"` // rad/s
	MaxMotorCmd   *int     `json:"max_motor_cmd,omitempty"`
	Kp            *float64 `json:"kp,omitempty"`
	Ki            *float64 `json:"ki,omitempty"`

	// Scheduler cadence
	PollInterval      *string `json:"poll_interval,omitempty"`      // duration string like "100ms"
	HeartbeatInterval *string `json:"heartbeat_interval,omitempty"` // duration string like "2s"

	// StartupSettle is how long to wait after opening the serial port
	// before the first poll; the controller reboots when the port opens.
	StartupSettle *string `json:"startup_settle,omitempty"` // duration string like "5s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil. The
// Get* methods then serve the built-in defaults, which match the values the
// rover firmware ships with.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxLinearVel != nil && *c.MaxLinearVel <= 0 {
		return fmt.Errorf("max_linear_vel must be positive, got %f", *c.MaxLinearVel)
	}

	if c.MaxAngularVel != nil && *c.MaxAngularVel <= 0 {
		return fmt.Errorf("max_angular_vel must be positive, got %f", *c.MaxAngularVel)
	}

	if c.MaxMotorCmd != nil && (*c.MaxMotorCmd <= 0 || *c.MaxMotorCmd > 255) {
		return fmt.Errorf("max_motor_cmd must be in 1..255, got %d", *c.MaxMotorCmd)
	}

	if c.Kp != nil && *c.Kp < 0 {
		return fmt.Errorf("kp must be non-negative, got %f", *c.Kp)
	}

	if c.Ki != nil && *c.Ki < 0 {
		return fmt.Errorf("ki must be non-negative, got %f", *c.Ki)
	}

	// Validate duration strings can be parsed if set
	for name, v := range map[string]*string{
		"poll_interval":      c.PollInterval,
		"heartbeat_interval": c.HeartbeatInterval,
		"startup_settle":     c.StartupSettle,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 && name != "startup_settle" {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	return nil
}

// GetMaxLinearVel returns the max_linear_vel value or the default.
func (c *TuningConfig) GetMaxLinearVel() float64 {
	if c.MaxLinearVel == nil {
		return 0.3 // default, m/s
	}
	return *c.MaxLinearVel
}

// GetMaxAngularVel returns the max_angular_vel value or the default.
// The default matches the linear bound the shipped firmware clamps
// angular commands against.
func (c *TuningConfig) GetMaxAngularVel() float64 {
	if c.MaxAngularVel == nil {
		return 0.3 // default, rad/s
	}
	return *c.MaxAngularVel
}

// GetMaxMotorCmd returns the max_motor_cmd value or the default.
func (c *TuningConfig) GetMaxMotorCmd() int {
	if c.MaxMotorCmd == nil {
		return 120 // default
	}
	return *c.MaxMotorCmd
}

// GetKp returns the kp value or the default.
func (c *TuningConfig) GetKp() float64 {
	if c.Kp == nil {
		return 10 // default
	}
	return *c.Kp
}

// GetKi returns the ki value or the default.
func (c *TuningConfig) GetKi() float64 {
	if c.Ki == nil {
		return 10 // default
	}
	return *c.Ki
}

// GetPollInterval parses and returns the PollInterval as a time.Duration.
func (c *TuningConfig) GetPollInterval() time.Duration {
	if c.PollInterval == nil || *c.PollInterval == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.PollInterval)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// GetHeartbeatInterval parses and returns the HeartbeatInterval as a time.Duration.
func (c *TuningConfig) GetHeartbeatInterval() time.Duration {
	if c.HeartbeatInterval == nil || *c.HeartbeatInterval == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.HeartbeatInterval)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetStartupSettle parses and returns the StartupSettle as a time.Duration.
func (c *TuningConfig) GetStartupSettle() time.Duration {
	if c.StartupSettle == nil || *c.StartupSettle == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.StartupSettle)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

// Limits bundles the drive bounds for the limiter.
func (c *TuningConfig) Limits() drive.Limits {
	return drive.Limits{
		MaxLinearVel:  c.GetMaxLinearVel(),
		MaxAngularVel: c.GetMaxAngularVel(),
		MaxMotorCmd:   c.GetMaxMotorCmd(),
	}
}

// Gains bundles the controller gains for the limiter.
func (c *TuningConfig) Gains() drive.Gains {
	return drive.Gains{Kp: c.GetKp(), Ki: c.GetKi()}
}
