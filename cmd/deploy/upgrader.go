package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/swarmie-robotics/abridge/internal/fsutil"
	"github.com/swarmie-robotics/abridge/internal/httputil"
)

// Upgrader replaces the abridge binary on a rover, with a backup and a
// health check after restart.
type Upgrader struct {
	RoverName  string
	APIHost    string
	APIPort    int
	BinaryPath string
	NoBackup   bool
	FS         fsutil.FileSystem
	Exec       Runner
	HTTP       httputil.HTTPClient
}

// Upgrade performs the upgrade.
func (u *Upgrader) Upgrade() error {
	fmt.Printf("Starting upgrade of abridge on %s...\n", u.RoverName)

	// Step 1: Validate binary exists locally
	if !u.FS.Exists(u.BinaryPath) {
		return fmt.Errorf("binary not found: %s", u.BinaryPath)
	}

	// Step 2: Check if service is installed
	if installed, err := u.checkInstalled(); err != nil {
		return fmt.Errorf("failed to check installation: %w", err)
	} else if !installed {
		return fmt.Errorf("abridge is not installed. Use 'install' command first")
	}

	// Step 3: Get current version from the running service
	currentVersion := u.currentVersion()
	fmt.Printf("Current version: %s\n", currentVersion)

	// Step 4: Backup current installation
	if !u.NoBackup {
		if err := u.backupCurrent(currentVersion); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
	} else {
		fmt.Println("Skipping backup (--no-backup flag set)")
	}

	// Step 5: Stop service
	if err := u.stopService(); err != nil {
		return fmt.Errorf("failed to stop service: %w", err)
	}

	// Step 6: Install new binary
	if err := u.installNewBinary(); err != nil {
		return fmt.Errorf("failed to install new binary: %w", err)
	}

	// Step 7: Start service
	if err := u.startService(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	// Step 8: Verify service is healthy
	if err := u.verifyHealth(); err != nil {
		fmt.Println("\n⚠ Warning: Service health check failed!")
		fmt.Printf("You may want to rollback using: abridge-deploy rollback --rover %s\n", u.RoverName)
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Println("\n✓ Upgrade completed successfully!")
	return nil
}

func (u *Upgrader) checkInstalled() (bool, error) {
	output, err := u.Exec.Run(fmt.Sprintf("test -f %s && echo 'exists' || echo 'not found'", servicePath))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) == "exists", nil
}

// currentVersion asks the running service over its status API; a rover that
// is down or mid-crash still upgrades, so failures degrade to "unknown".
func (u *Upgrader) currentVersion() string {
	resp, err := u.HTTP.Get(u.healthURL())
	if err != nil {
		return "unknown"
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "unknown"
	}

	var health struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health.Version == "" {
		return "unknown"
	}
	return health.Version
}

func (u *Upgrader) backupCurrent(currentVersion string) error {
	fmt.Println("Backing up current installation...")

	timestamp := time.Now().Format("20060102-150405")
	backupDir := fmt.Sprintf("%s/backups/%s", dataDir, timestamp)

	if _, err := u.Exec.RunSudo(fmt.Sprintf("mkdir -p %s", backupDir)); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	output, err := u.Exec.RunSudo(fmt.Sprintf("cp %s %s/abridge", installPath, backupDir))
	if err != nil {
		return fmt.Errorf("failed to backup binary to %s: %w (output: %s)", backupDir, err, output)
	}

	// Drive log backup is best effort; a fresh install has none yet.
	dbPath := fmt.Sprintf("%s/drivelog.db", dataDir)
	output, err = u.Exec.RunSudo(fmt.Sprintf("test -f %s && cp %s %s/drivelog.db || true", dbPath, dbPath, backupDir))
	if err != nil {
		fmt.Printf("Warning: could not backup drive log: %v (output: %s)\n", err, output)
	}

	versionInfo := fmt.Sprintf("Backup created: %s\nRover: %s\nVersion: %s\n", timestamp, u.RoverName, currentVersion)
	versionFile := filepath.Join(backupDir, "version.txt")
	if err := u.Exec.WriteFile(versionFile, versionInfo); err != nil {
		fmt.Printf("Warning: could not write version info: %v\n", err)
	}

	fmt.Printf("  ✓ Backup saved to: %s\n", backupDir)
	return nil
}

func (u *Upgrader) stopService() error {
	fmt.Println("Stopping service...")

	if _, err := u.Exec.RunSudo(fmt.Sprintf("systemctl stop %s.service", serviceName)); err != nil {
		return err
	}
	u.Exec.Run(fmt.Sprintf("sleep %d", int(serviceStopGracePeriod.Seconds())))

	fmt.Println("  ✓ Service stopped")
	return nil
}

func (u *Upgrader) installNewBinary() error {
	fmt.Printf("Installing new binary from: %s\n", u.BinaryPath)

	tempPath := "/tmp/abridge-new"
	if err := u.Exec.CopyFile(u.BinaryPath, tempPath); err != nil {
		return fmt.Errorf("failed to copy binary: %w", err)
	}
	if _, err := u.Exec.RunSudo(fmt.Sprintf("mv %s %s", tempPath, installPath)); err != nil {
		return fmt.Errorf("failed to move binary: %w", err)
	}
	if _, err := u.Exec.RunSudo(fmt.Sprintf("chown root:root %s", installPath)); err != nil {
		return fmt.Errorf("failed to set ownership: %w", err)
	}
	if _, err := u.Exec.RunSudo(fmt.Sprintf("chmod 0755 %s", installPath)); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	fmt.Println("  ✓ New binary installed")
	return nil
}

func (u *Upgrader) startService() error {
	fmt.Println("Starting service...")

	if _, err := u.Exec.RunSudo(fmt.Sprintf("systemctl start %s.service", serviceName)); err != nil {
		return err
	}
	u.Exec.Run(fmt.Sprintf("sleep %d", int(serviceStartGracePeriod.Seconds())))

	fmt.Println("  ✓ Service started")
	return nil
}

func (u *Upgrader) verifyHealth() error {
	fmt.Println("Verifying service health...")

	output, err := u.Exec.RunSudo(fmt.Sprintf("systemctl is-active %s.service", serviceName))
	if err != nil || strings.TrimSpace(output) != "active" {
		return fmt.Errorf("service is not active")
	}
	fmt.Println("  ✓ Service is running")

	resp, err := u.HTTP.Get(u.healthURL())
	if err != nil {
		return fmt.Errorf("status API not responding: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("status API returned %d", resp.StatusCode)
	}

	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to parse health response: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("service reports status %q", health.Status)
	}

	fmt.Printf("  ✓ Status API healthy (version %s)\n", health.Version)
	return nil
}

func (u *Upgrader) healthURL() string {
	port := u.APIPort
	if port == 0 {
		port = defaultAPIPort
	}
	return fmt.Sprintf("http://%s:%d/api/health", u.APIHost, port)
}
