package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/swarmie-robotics/abridge/internal/deploy"
)

const (
	serviceName = "abridge"
	installPath = "/usr/local/bin/abridge"
	dataDir     = "/var/lib/abridge"
	servicePath = "/etc/systemd/system/abridge.service"
	serviceUser = "swarmie"

	defaultSSHUser = "swarmie"
	defaultAPIPort = 8080
	defaultDevice  = "/dev/ttyUSB0"
)

// Service management timing constants.
const (
	// serviceStopGracePeriod is the time to wait after stopping the
	// service to allow systemd to fully terminate the process.
	serviceStopGracePeriod = 2 * time.Second
	// serviceStartGracePeriod is the time to wait after starting the
	// service to allow it to open the serial port and start listening.
	serviceStartGracePeriod = 3 * time.Second
)

// Runner is the subset of deploy.Executor the deployment steps use.
// Tests substitute a recorder.
type Runner interface {
	Run(command string) (string, error)
	RunSudo(command string) (string, error)
	CopyFile(src, dst string) error
	WriteFile(path, content string) error
	IsLocal() bool
}

var _ Runner = (*deploy.Executor)(nil)

// apiHost extracts the plain hostname from a target that may carry a
// user@ prefix. An empty target means this machine.
func apiHost(target string) string {
	if target == "" {
		return "localhost"
	}
	if parts := strings.Split(target, "@"); len(parts) > 1 {
		return parts[1]
	}
	return target
}

// buildServiceFile renders the systemd unit for a rover.
func buildServiceFile(rover, device string) string {
	return fmt.Sprintf(`[Unit]
Description=Swarmie serial to MQTT bridge (%s)
After=network.target

[Service]
User=%s
Group=%s
Type=simple
ExecStart=%s -name %s -device %s -db %s/drivelog.db
WorkingDirectory=%s
Restart=on-failure
RestartSec=5
StandardOutput=journal
StandardError=journal
SyslogIdentifier=abridge

[Install]
WantedBy=multi-user.target
`, rover, serviceUser, serviceUser, installPath, rover, device, dataDir, dataDir)
}
