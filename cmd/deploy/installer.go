package main

import (
	"fmt"
	"strings"

	"github.com/swarmie-robotics/abridge/internal/fsutil"
)

// Installer puts the abridge service onto a rover for the first time.
type Installer struct {
	RoverName  string
	Device     string
	BinaryPath string
	FS         fsutil.FileSystem
	Exec       Runner
}

// Install performs the installation.
func (i *Installer) Install() error {
	fmt.Printf("Starting installation of abridge on %s...\n", i.RoverName)

	// Step 1: Validate binary exists locally
	if err := i.validateBinary(); err != nil {
		return fmt.Errorf("binary validation failed: %w", err)
	}

	// Step 2: Check if already installed
	if installed, err := i.checkExisting(); err != nil {
		return fmt.Errorf("failed to check existing installation: %w", err)
	} else if installed {
		fmt.Println("abridge is already installed. Use 'upgrade' command to update.")
		return nil
	}

	// Step 3: Create service user
	if err := i.createServiceUser(); err != nil {
		return fmt.Errorf("failed to create service user: %w", err)
	}

	// Step 4: Create data directory
	if err := i.createDataDirectory(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Step 5: Install binary
	if err := i.installBinary(); err != nil {
		return fmt.Errorf("failed to install binary: %w", err)
	}

	// Step 6: Install systemd service
	if err := i.installService(); err != nil {
		return fmt.Errorf("failed to install service: %w", err)
	}

	// Step 7: Start service
	if err := i.startService(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	fmt.Println("\n✓ Installation completed successfully!")
	fmt.Println("\nUseful commands:")
	fmt.Printf("  Health check:  abridge-deploy health --rover %s\n", i.RoverName)
	fmt.Println("  View logs:     sudo journalctl -u abridge.service -f")

	return nil
}

func (i *Installer) validateBinary() error {
	fmt.Printf("Validating binary: %s\n", i.BinaryPath)

	if !i.FS.Exists(i.BinaryPath) {
		return fmt.Errorf("binary not found: %s", i.BinaryPath)
	}

	info, err := i.FS.Stat(i.BinaryPath)
	if err != nil {
		return err
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("binary is not executable: %s", i.BinaryPath)
	}

	fmt.Println("  ✓ Binary validated")
	return nil
}

func (i *Installer) checkExisting() (bool, error) {
	fmt.Println("Checking for existing installation...")

	output, err := i.Exec.Run(fmt.Sprintf("test -f %s && echo 'exists' || echo 'not found'", servicePath))
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(output) == "exists" {
		return true, nil
	}

	fmt.Println("  ✓ No existing installation found")
	return false, nil
}

func (i *Installer) createServiceUser() error {
	fmt.Printf("Creating service user '%s'...\n", serviceUser)

	output, err := i.Exec.Run(fmt.Sprintf("id %s >/dev/null 2>&1 && echo 'exists' || echo 'not found'", serviceUser))
	if err != nil {
		return err
	}
	if strings.TrimSpace(output) == "exists" {
		fmt.Printf("  ✓ User '%s' already exists\n", serviceUser)
		return nil
	}

	_, err = i.Exec.RunSudo(fmt.Sprintf("useradd --system --no-create-home --groups dialout %s", serviceUser))
	if err != nil {
		return err
	}

	fmt.Printf("  ✓ User '%s' created\n", serviceUser)
	return nil
}

func (i *Installer) createDataDirectory() error {
	fmt.Printf("Creating data directory %s...\n", dataDir)

	if _, err := i.Exec.RunSudo(fmt.Sprintf("mkdir -p %s", dataDir)); err != nil {
		return err
	}
	if _, err := i.Exec.RunSudo(fmt.Sprintf("chown %s:%s %s", serviceUser, serviceUser, dataDir)); err != nil {
		return err
	}

	fmt.Println("  ✓ Data directory ready")
	return nil
}

func (i *Installer) installBinary() error {
	fmt.Printf("Installing binary to %s...\n", installPath)

	tempPath := "/tmp/abridge-new"
	if err := i.Exec.CopyFile(i.BinaryPath, tempPath); err != nil {
		return fmt.Errorf("failed to copy binary: %w", err)
	}
	if _, err := i.Exec.RunSudo(fmt.Sprintf("mv %s %s", tempPath, installPath)); err != nil {
		return fmt.Errorf("failed to move binary: %w", err)
	}
	if _, err := i.Exec.RunSudo(fmt.Sprintf("chown root:root %s", installPath)); err != nil {
		return fmt.Errorf("failed to set ownership: %w", err)
	}
	if _, err := i.Exec.RunSudo(fmt.Sprintf("chmod 0755 %s", installPath)); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	fmt.Println("  ✓ Binary installed")
	return nil
}

func (i *Installer) installService() error {
	fmt.Println("Installing systemd service...")

	tempPath := "/tmp/abridge.service.tmp"
	if err := i.Exec.WriteFile(tempPath, buildServiceFile(i.RoverName, i.Device)); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}
	if _, err := i.Exec.RunSudo(fmt.Sprintf("mv %s %s", tempPath, servicePath)); err != nil {
		return fmt.Errorf("failed to move service file: %w", err)
	}
	if _, err := i.Exec.RunSudo("systemctl daemon-reload"); err != nil {
		return fmt.Errorf("failed to reload systemd: %w", err)
	}
	if _, err := i.Exec.RunSudo(fmt.Sprintf("systemctl enable %s.service", serviceName)); err != nil {
		return fmt.Errorf("failed to enable service: %w", err)
	}

	fmt.Println("  ✓ Service installed")
	return nil
}

func (i *Installer) startService() error {
	fmt.Println("Starting service...")

	if _, err := i.Exec.RunSudo(fmt.Sprintf("systemctl start %s.service", serviceName)); err != nil {
		return err
	}
	i.Exec.Run(fmt.Sprintf("sleep %d", int(serviceStartGracePeriod.Seconds())))

	fmt.Println("  ✓ Service started")
	return nil
}
