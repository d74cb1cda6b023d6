package main

import (
	"fmt"
	"strings"
)

// Rollback restores the previous abridge binary from the newest backup.
type Rollback struct {
	RoverName string
	AssumeYes bool
	Exec      Runner
}

// Execute performs the rollback.
func (r *Rollback) Execute() error {
	fmt.Printf("Starting rollback on %s...\n", r.RoverName)

	// Step 1: Find most recent backup
	backupDir, err := r.findLatestBackup()
	if err != nil {
		return fmt.Errorf("failed to find backup: %w", err)
	}
	fmt.Printf("Found backup: %s\n", backupDir)

	// Step 2: Confirm rollback
	if !r.AssumeYes {
		fmt.Print("Are you sure you want to rollback? This will stop the service and restore the backup. [y/N]: ")
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Println("Rollback cancelled")
			return nil
		}
	}

	// Step 3: Stop service
	if err := r.stopService(); err != nil {
		return fmt.Errorf("failed to stop service: %w", err)
	}

	// Step 4: Restore binary
	if err := r.restoreBinary(backupDir); err != nil {
		return fmt.Errorf("failed to restore binary: %w", err)
	}

	// Step 5: Start service
	if err := r.startService(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	// Step 6: Verify service is running
	if err := r.verifyActive(); err != nil {
		return fmt.Errorf("health check failed after rollback: %w", err)
	}

	fmt.Println("\n✓ Rollback completed successfully!")
	return nil
}

func (r *Rollback) findLatestBackup() (string, error) {
	fmt.Println("Looking for backups...")

	output, err := r.Exec.RunSudo(fmt.Sprintf("ls -1t %s/backups/ 2>/dev/null | head -1", dataDir))
	if err != nil {
		return "", fmt.Errorf("no backups found")
	}

	backupName := strings.TrimSpace(output)
	if backupName == "" {
		return "", fmt.Errorf("no backups found in %s/backups/", dataDir)
	}

	backupDir := fmt.Sprintf("%s/backups/%s", dataDir, backupName)

	checkOutput, err := r.Exec.RunSudo(fmt.Sprintf("test -f %s/abridge && echo 'exists' || echo 'missing'", backupDir))
	if err != nil || strings.TrimSpace(checkOutput) != "exists" {
		return "", fmt.Errorf("backup directory exists but binary not found: %s", backupDir)
	}

	return backupDir, nil
}

func (r *Rollback) stopService() error {
	fmt.Println("Stopping service...")

	if _, err := r.Exec.RunSudo(fmt.Sprintf("systemctl stop %s.service", serviceName)); err != nil {
		return err
	}
	r.Exec.Run(fmt.Sprintf("sleep %d", int(serviceStopGracePeriod.Seconds())))

	fmt.Println("  ✓ Service stopped")
	return nil
}

func (r *Rollback) restoreBinary(backupDir string) error {
	fmt.Printf("Restoring binary from: %s\n", backupDir)

	if _, err := r.Exec.RunSudo(fmt.Sprintf("cp %s/abridge %s", backupDir, installPath)); err != nil {
		return fmt.Errorf("failed to restore binary: %w", err)
	}
	if _, err := r.Exec.RunSudo(fmt.Sprintf("chown root:root %s && chmod 0755 %s", installPath, installPath)); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	fmt.Println("  ✓ Binary restored")
	return nil
}

func (r *Rollback) startService() error {
	fmt.Println("Starting service...")

	if _, err := r.Exec.RunSudo(fmt.Sprintf("systemctl start %s.service", serviceName)); err != nil {
		return err
	}
	r.Exec.Run(fmt.Sprintf("sleep %d", int(serviceStartGracePeriod.Seconds())))

	fmt.Println("  ✓ Service started")
	return nil
}

func (r *Rollback) verifyActive() error {
	fmt.Println("Verifying service health...")

	output, err := r.Exec.RunSudo(fmt.Sprintf("systemctl is-active %s.service", serviceName))
	if err != nil || strings.TrimSpace(output) != "active" {
		return fmt.Errorf("service is not active")
	}

	fmt.Println("  ✓ Service is running")
	return nil
}
